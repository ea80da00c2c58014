package decimals

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/lockbox/custodian/internal/chains"
	"github.com/lockbox/custodian/internal/util"
)

// Indexer serves cached token metadata.
type Indexer interface {
	GetTokenDecimals(ctx context.Context, chain chains.Chain, token string) (int, error)
}

// ChainReader reads decimals() from the token contract itself.
type ChainReader interface {
	TokenDecimals(ctx context.Context, chain chains.Chain, token string) (uint8, error)
}

// Resolver finds a token's decimal precision, cheapest source first: the
// caller's hint, then the indexer, then the contract. A token with no
// resolvable decimals is an error; guessing a precision mis-scales real
// amounts.
type Resolver struct {
	indexer Indexer
	chain   ChainReader
	logger  *logrus.Logger
}

func NewResolver(indexer Indexer, chain ChainReader, logger *logrus.Logger) *Resolver {
	return &Resolver{
		indexer: indexer,
		chain:   chain,
		logger:  logger.WithField("pkg", "decimals.Resolver").Logger,
	}
}

// Resolve returns the decimal precision for a token. hint is the caller's
// claimed precision; nil means no claim.
func (r *Resolver) Resolve(ctx context.Context, chain chains.Chain, token string, hint *int) (int, error) {
	if hint != nil {
		if util.ValidDecimals(*hint) {
			return *hint, nil
		}
		r.logger.WithFields(logrus.Fields{
			"chain": chain.String(),
			"token": token,
			"hint":  *hint,
		}).Warn("ignoring out-of-range decimals hint")
	}

	indexed, indexerErr := r.indexer.GetTokenDecimals(ctx, chain, token)
	if indexerErr == nil && util.ValidDecimals(indexed) {
		return indexed, nil
	}
	if indexerErr == nil {
		indexerErr = fmt.Errorf("indexer returned out-of-range decimals %d", indexed)
	}

	onchain, chainErr := r.chain.TokenDecimals(ctx, chain, token)
	if chainErr == nil && util.ValidDecimals(int(onchain)) {
		return int(onchain), nil
	}
	if chainErr == nil {
		chainErr = fmt.Errorf("contract returned out-of-range decimals %d", onchain)
	}

	return 0, fmt.Errorf(
		"failed to resolve decimals for token %s on %s: no usable hint; indexer: %v; on-chain: %v",
		token, chain, indexerErr, chainErr,
	)
}
