package reconcile

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/sirupsen/logrus"

	"github.com/lockbox/custodian/internal/cache"
	"github.com/lockbox/custodian/internal/chains"
)

// ErrInsufficientFunds means both the indexer and the chain agree the balance
// cannot cover the send.
var ErrInsufficientFunds = errors.New("insufficient funds")

// IndexerReader serves indexed balances. An empty token means the native
// asset.
type IndexerReader interface {
	GetBalance(ctx context.Context, chain chains.Chain, address, token string) (*big.Int, error)
}

// ChainReader reads balances from the chain itself.
type ChainReader interface {
	Balance(ctx context.Context, chain chains.Chain, address, token string) (*big.Int, error)
}

// Reconciler gates sends on balance. The indexer is cheap but can lag; the
// chain is authoritative but slow. An indexed balance that covers the amount
// is good enough, an indexed shortfall gets one authoritative re-check before
// the send is rejected.
type Reconciler struct {
	indexer  IndexerReader
	chain    ChainReader
	balances *cache.Balances
	logger   *logrus.Logger
}

func NewReconciler(indexer IndexerReader, chain ChainReader, balances *cache.Balances, logger *logrus.Logger) *Reconciler {
	return &Reconciler{
		indexer:  indexer,
		chain:    chain,
		balances: balances,
		logger:   logger.WithField("pkg", "reconcile.Reconciler").Logger,
	}
}

// Check returns nil when the balance covers amount. ownerID keys the balance
// cache; address is the on-chain account being spent from.
func (r *Reconciler) Check(ctx context.Context, ownerID string, chain chains.Chain, address, token string, amount *big.Int) error {
	indexed, indexerErr := r.indexedBalance(ctx, ownerID, chain, address, token)
	if indexerErr == nil && indexed.Cmp(amount) >= 0 {
		return nil
	}

	onchain, chainErr := r.chain.Balance(ctx, chain, address, token)
	if chainErr != nil {
		if indexerErr != nil {
			return fmt.Errorf("failed to check balance: indexer: %v; chain: %w", indexerErr, chainErr)
		}
		// The chain read failing is no reason to trust the send more than
		// the indexer did.
		return fmt.Errorf("%w: have %s, need %s (authoritative re-check failed: %v)",
			ErrInsufficientFunds, indexed, amount, chainErr)
	}

	if onchain.Cmp(amount) >= 0 {
		if indexerErr == nil {
			r.logger.WithFields(logrus.Fields{
				"chain":   chain.String(),
				"address": address,
				"indexed": indexed.String(),
				"onchain": onchain.String(),
			}).Warn("indexer balance lagging chain state")
		}
		return nil
	}

	if indexerErr != nil {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientFunds, onchain, amount)
	}
	return fmt.Errorf("%w: indexer reports %s, chain reports %s, need %s",
		ErrInsufficientFunds, indexed, onchain, amount)
}

func (r *Reconciler) indexedBalance(ctx context.Context, ownerID string, chain chains.Chain, address, token string) (*big.Int, error) {
	if cached, ok := r.balances.Get(ownerID, chain, token); ok {
		return cached, nil
	}
	indexed, err := r.indexer.GetBalance(ctx, chain, address, token)
	if err != nil {
		return nil, err
	}
	r.balances.Put(ownerID, chain, token, indexed)
	return indexed, nil
}
