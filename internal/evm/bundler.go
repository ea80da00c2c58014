package evm

import (
	"context"
	"fmt"
	"math/big"

	ecommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// rpcCaller is the one method bundler and paymaster calls need.
type rpcCaller interface {
	CallContext(ctx context.Context, result any, method string, args ...any) error
}

// BundlerClient submits user operations and polls their status over the
// bundler's JSON-RPC interface.
type BundlerClient struct {
	caller rpcCaller
}

func DialBundler(url string) (*BundlerClient, error) {
	c, err := rpc.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to bundler: %w", err)
	}
	return &BundlerClient{caller: c}, nil
}

func NewBundlerClient(caller rpcCaller) *BundlerClient {
	return &BundlerClient{caller: caller}
}

// GasEstimate is the bundler's gas quote for a user operation.
type GasEstimate struct {
	PreVerificationGas   *big.Int
	VerificationGasLimit *big.Int
	CallGasLimit         *big.Int
}

type gasEstimateRPC struct {
	PreVerificationGas   *hexutil.Big `json:"preVerificationGas"`
	VerificationGasLimit *hexutil.Big `json:"verificationGasLimit"`
	CallGasLimit         *hexutil.Big `json:"callGasLimit"`
}

func (b *BundlerClient) EstimateUserOperationGas(
	ctx context.Context,
	op UserOperation,
	entryPoint ecommon.Address,
) (*GasEstimate, error) {
	var res gasEstimateRPC
	err := b.caller.CallContext(ctx, &res, "eth_estimateUserOperationGas", op.toRPC(), entryPoint)
	if err != nil {
		return nil, fmt.Errorf("failed to estimate user operation gas: %w", err)
	}
	return &GasEstimate{
		PreVerificationGas:   (*big.Int)(res.PreVerificationGas),
		VerificationGasLimit: (*big.Int)(res.VerificationGasLimit),
		CallGasLimit:         (*big.Int)(res.CallGasLimit),
	}, nil
}

// SendUserOperation submits the signed operation and returns its hash.
func (b *BundlerClient) SendUserOperation(
	ctx context.Context,
	op UserOperation,
	entryPoint ecommon.Address,
) (string, error) {
	var opHash string
	err := b.caller.CallContext(ctx, &opHash, "eth_sendUserOperation", op.toRPC(), entryPoint)
	if err != nil {
		return "", fmt.Errorf("failed to send user operation: %w", err)
	}
	return opHash, nil
}

// UserOpReceipt is the bundler's view of an included operation.
type UserOpReceipt struct {
	UserOpHash string `json:"userOpHash"`
	Success    bool   `json:"success"`
	Receipt    struct {
		TransactionHash string `json:"transactionHash"`
	} `json:"receipt"`
}

// GetUserOperationReceipt returns nil without error while the operation is
// still pending.
func (b *BundlerClient) GetUserOperationReceipt(ctx context.Context, opHash string) (*UserOpReceipt, error) {
	var res *UserOpReceipt
	err := b.caller.CallContext(ctx, &res, "eth_getUserOperationReceipt", opHash)
	if err != nil {
		return nil, fmt.Errorf("failed to get user operation receipt: %w", err)
	}
	return res, nil
}

// PaymasterClient asks a paymaster service to sponsor a user operation.
type PaymasterClient struct {
	caller rpcCaller
}

func DialPaymaster(url string) (*PaymasterClient, error) {
	c, err := rpc.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to paymaster: %w", err)
	}
	return &PaymasterClient{caller: c}, nil
}

func NewPaymasterClient(caller rpcCaller) *PaymasterClient {
	return &PaymasterClient{caller: caller}
}

type sponsorResultRPC struct {
	PaymasterAndData hexutil.Bytes `json:"paymasterAndData"`
}

// SponsorUserOperation returns the paymasterAndData blob to attach to the
// operation. The operation's signature is not yet set at this point.
func (p *PaymasterClient) SponsorUserOperation(
	ctx context.Context,
	op UserOperation,
	entryPoint ecommon.Address,
) ([]byte, error) {
	var res sponsorResultRPC
	err := p.caller.CallContext(ctx, &res, "pm_sponsorUserOperation", op.toRPC(), entryPoint)
	if err != nil {
		return nil, fmt.Errorf("failed to sponsor user operation: %w", err)
	}
	return res.PaymasterAndData, nil
}
