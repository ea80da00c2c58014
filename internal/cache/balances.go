package cache

import (
	"math/big"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/lockbox/custodian/internal/chains"
)

// Balances is a TTL cache over indexer balance reads, keyed by
// (owner, chain, token). Entries are invalidated after every successful send
// so the next read reflects the new on-chain state.
type Balances struct {
	lru *expirable.LRU[string, *big.Int]
}

func NewBalances(size int, ttl time.Duration) *Balances {
	return &Balances{
		lru: expirable.NewLRU[string, *big.Int](size, nil, ttl),
	}
}

func key(ownerID string, chain chains.Chain, token string) string {
	return ownerID + "|" + chain.String() + "|" + strings.ToLower(token)
}

func (b *Balances) Get(ownerID string, chain chains.Chain, token string) (*big.Int, bool) {
	return b.lru.Get(key(ownerID, chain, token))
}

func (b *Balances) Put(ownerID string, chain chains.Chain, token string, amount *big.Int) {
	b.lru.Add(key(ownerID, chain, token), new(big.Int).Set(amount))
}

// Invalidate drops every cached balance for the owner on the chain,
// regardless of token.
func (b *Balances) Invalidate(ownerID string, chain chains.Chain) {
	prefix := ownerID + "|" + chain.String() + "|"
	for _, k := range b.lru.Keys() {
		if strings.HasPrefix(k, prefix) {
			b.lru.Remove(k)
		}
	}
}
