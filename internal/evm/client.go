package evm

import (
	"context"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	ecommon "github.com/ethereum/go-ethereum/common"
	etypes "github.com/ethereum/go-ethereum/core/types"
)

// Client is the subset of the JSON-RPC surface this engine actually calls.
// *ethclient.Client satisfies it; tests use fakes.
type Client interface {
	BalanceAt(ctx context.Context, account ecommon.Address, blockNumber *big.Int) (*big.Int, error)
	CodeAt(ctx context.Context, account ecommon.Address, blockNumber *big.Int) ([]byte, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account ecommon.Address) (uint64, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*etypes.Header, error)
	SendTransaction(ctx context.Context, tx *etypes.Transaction) error
}
