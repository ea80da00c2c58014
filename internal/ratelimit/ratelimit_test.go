package ratelimit

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lockbox/custodian/internal/chains"
)

func TestLimiterWindowing(t *testing.T) {
	now := time.Unix(1000, 0)
	l := NewLimiter(3, time.Minute)
	l.now = func() time.Time { return now }

	// N calls within the window where N == max all succeed.
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Check("user-1", chains.Ethereum, FlowGaslessSend))
	}

	// The (N+1)th fails with a reset time bounded by the window.
	err := l.Check("user-1", chains.Ethereum, FlowGaslessSend)
	require.Error(t, err)

	var rlErr *Error
	require.True(t, errors.As(err, &rlErr))
	require.Greater(t, rlErr.RetryAfter, time.Duration(0))
	require.LessOrEqual(t, rlErr.RetryAfter, time.Minute)

	// After the window elapses the counter resets to 1.
	now = now.Add(time.Minute + time.Second)
	require.NoError(t, l.Check("user-1", chains.Ethereum, FlowGaslessSend))
	require.NoError(t, l.Check("user-1", chains.Ethereum, FlowGaslessSend))
}

func TestLimiterKeysArePartitioned(t *testing.T) {
	l := NewLimiter(1, time.Minute)

	require.NoError(t, l.Check("user-1", chains.Ethereum, FlowGaslessSend))
	require.Error(t, l.Check("user-1", chains.Ethereum, FlowGaslessSend))

	// Different owner, chain, or flow is a separate bucket.
	require.NoError(t, l.Check("user-2", chains.Ethereum, FlowGaslessSend))
	require.NoError(t, l.Check("user-1", chains.Base, FlowGaslessSend))
	require.NoError(t, l.Check("user-1", chains.Ethereum, Flow("other")))
}

func TestLimiterConcurrentAccess(t *testing.T) {
	l := NewLimiter(1000, time.Minute)
	done := make(chan struct{})

	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				_ = l.Check("user-1", chains.Ethereum, FlowGaslessSend)
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}

	// 800 calls under a limit of 1000: the next one still passes.
	require.NoError(t, l.Check("user-1", chains.Ethereum, FlowGaslessSend))
}
