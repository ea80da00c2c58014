package cache

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lockbox/custodian/internal/chains"
)

func TestBalancesPutGet(t *testing.T) {
	c := NewBalances(128, time.Minute)

	_, ok := c.Get("user-1", chains.Ethereum, "")
	require.False(t, ok)

	c.Put("user-1", chains.Ethereum, "", big.NewInt(100))
	got, ok := c.Get("user-1", chains.Ethereum, "")
	require.True(t, ok)
	require.Equal(t, "100", got.String())
}

func TestBalancesInvalidateByOwnerChain(t *testing.T) {
	c := NewBalances(128, time.Minute)

	c.Put("user-1", chains.Ethereum, "", big.NewInt(1))
	c.Put("user-1", chains.Ethereum, "0xToken", big.NewInt(2))
	c.Put("user-1", chains.Base, "", big.NewInt(3))
	c.Put("user-2", chains.Ethereum, "", big.NewInt(4))

	c.Invalidate("user-1", chains.Ethereum)

	_, ok := c.Get("user-1", chains.Ethereum, "")
	require.False(t, ok)
	_, ok = c.Get("user-1", chains.Ethereum, "0xToken")
	require.False(t, ok)

	// Other chains and owners are untouched.
	_, ok = c.Get("user-1", chains.Base, "")
	require.True(t, ok)
	_, ok = c.Get("user-2", chains.Ethereum, "")
	require.True(t, ok)
}

func TestBalancesCopiesValues(t *testing.T) {
	c := NewBalances(128, time.Minute)

	amount := big.NewInt(50)
	c.Put("user-1", chains.Ethereum, "", amount)
	amount.SetInt64(0)

	got, ok := c.Get("user-1", chains.Ethereum, "")
	require.True(t, ok)
	require.Equal(t, "50", got.String())
}
