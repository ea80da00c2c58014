package account

import (
	"context"
	"math/big"
)

// Account is the uniform capability surface every factory produces. The three
// implementations (EOA, ERC-4337 smart account, EIP-7702 delegated account)
// plus the Substrate path are the whole closed set.
//
// Send and Transfer broadcast exactly once. Neither is retried here: a failed
// call may already be on-chain, and blind retries double-spend.
type Account interface {
	// Address is the account's on-chain address in the chain's native format.
	Address() string
	// Balance returns the native-asset balance in base units.
	Balance(ctx context.Context) (*big.Int, error)
	// Send moves native value and returns the transaction or operation hash.
	Send(ctx context.Context, to string, amount *big.Int) (string, error)
	// Transfer moves token value and returns the transaction or operation hash.
	Transfer(ctx context.Context, token, to string, amount *big.Int) (string, error)
}
