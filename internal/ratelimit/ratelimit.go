package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"github.com/lockbox/custodian/internal/chains"
)

// Flow names a sponsored-transaction path, e.g. "gasless-send".
type Flow string

const FlowGaslessSend Flow = "gasless-send"

// Error carries the time until the window resets so callers can surface a
// retry-after.
type Error struct {
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry in %s", e.RetryAfter.Round(time.Second))
}

type bucket struct {
	count   int
	resetAt time.Time
}

// Limiter is a fixed-window counter per (owner, chain, flow). Buckets are
// process-local and TTL-bounded; losing them on restart allows at most one
// extra burst.
type Limiter struct {
	max    int
	window time.Duration

	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

func NewLimiter(max int, window time.Duration) *Limiter {
	return &Limiter{
		max:     max,
		window:  window,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Check records one call against the bucket and rejects once the window's
// maximum is exceeded. It must run before any sponsored submission.
func (l *Limiter) Check(ownerID string, chain chains.Chain, flow Flow) error {
	key := ownerID + "|" + chain.String() + "|" + string(flow)
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok || now.After(b.resetAt) {
		l.buckets[key] = &bucket{count: 1, resetAt: now.Add(l.window)}
		return nil
	}

	b.count++
	if b.count > l.max {
		return &Error{RetryAfter: b.resetAt.Sub(now)}
	}
	return nil
}
