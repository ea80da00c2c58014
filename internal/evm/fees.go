package evm

import (
	"context"
	"fmt"
	"math/big"
)

// suggestFees returns (maxFeePerGas, maxPriorityFeePerGas) for a dynamic-fee
// transaction: tip from the node, fee cap at 2x base fee plus tip.
func suggestFees(ctx context.Context, rpc Client) (*big.Int, *big.Int, error) {
	tip, err := rpc.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to suggest gas tip: %w", err)
	}

	head, err := rpc.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get chain head: %w", err)
	}
	if head.BaseFee == nil {
		// Pre-1559 network: flat price from the tip suggestion.
		return tip, tip, nil
	}

	feeCap := new(big.Int).Add(
		new(big.Int).Mul(head.BaseFee, big.NewInt(2)),
		tip,
	)
	return feeCap, tip, nil
}
