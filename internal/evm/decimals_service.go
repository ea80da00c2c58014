package evm

import (
	"context"
	"fmt"

	ethereum "github.com/ethereum/go-ethereum"
	ecommon "github.com/ethereum/go-ethereum/common"
)

type decimalsService struct {
	rpc Client
}

func newDecimalsService(rpc Client) *decimalsService {
	return &decimalsService{rpc: rpc}
}

// GetDecimals fetches the decimals for an ERC20 token.
func (d *decimalsService) GetDecimals(ctx context.Context, tokenAddress ecommon.Address) (uint8, error) {
	if tokenAddress == (ecommon.Address{}) {
		return 0, fmt.Errorf("token address cannot be zero")
	}

	ret, err := d.rpc.CallContract(ctx, ethereum.CallMsg{
		To:   &tokenAddress,
		Data: packDecimals(),
	}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to get decimals for token %s: %w", tokenAddress.Hex(), err)
	}

	decimals, err := unpackDecimals(ret)
	if err != nil {
		return 0, fmt.Errorf("failed to decode decimals for token %s: %w", tokenAddress.Hex(), err)
	}
	return decimals, nil
}
