package send

import (
	"errors"
	"fmt"
	"time"

	"github.com/lockbox/custodian/internal/chains"
	"github.com/lockbox/custodian/internal/evm"
	"github.com/lockbox/custodian/internal/ratelimit"
	"github.com/lockbox/custodian/internal/reconcile"
	"github.com/lockbox/custodian/internal/substrate"
	"github.com/lockbox/custodian/internal/vault"
)

// Kind buckets a send failure into an actionable category.
type Kind string

const (
	KindConfig            Kind = "config"
	KindValidation        Kind = "validation"
	KindInsufficientFunds Kind = "insufficient-funds"
	KindUnavailable       Kind = "unavailable"
	KindTampered          Kind = "tampered"
	KindProtocol          Kind = "protocol"
	KindRateLimited       Kind = "rate-limited"
	KindUnknown           Kind = "unknown"
)

// Error is the orchestrator's classified failure. The message is safe to
// show to a caller; the cause carries the full detail for logs.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Retryable reports whether the caller may retry the same request as-is.
func (e *Error) Retryable() bool {
	return e.Kind == KindUnavailable || e.Kind == KindRateLimited
}

func newError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// classify maps a lower-layer error onto the taxonomy. Classification happens
// exactly once, here; inner layers raise their own typed errors and never
// produce user-facing text.
func classify(err error, stage string) *Error {
	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}

	var rateErr *ratelimit.Error
	switch {
	case errors.Is(err, chains.ErrUnsupportedChain):
		return newError(KindConfig, "chain is not supported", err)
	case errors.Is(err, evm.ErrInvalidAddress):
		return newError(KindValidation, "address is not valid", err)
	case errors.Is(err, substrate.ErrTokenTransfersUnsupported):
		return newError(KindValidation, "token transfers are not available on this chain", err)
	case errors.Is(err, reconcile.ErrInsufficientFunds):
		return newError(KindInsufficientFunds, "balance does not cover this send", err)
	case errors.Is(err, vault.ErrSeedTampered):
		return newError(KindTampered, "stored seed record failed authentication", err)
	case errors.Is(err, evm.ErrDelegationTargetMissing),
		errors.Is(err, evm.ErrAuthorizationSignerMismatch):
		return newError(KindProtocol, "account delegation is misconfigured", err)
	case errors.As(err, &rateErr):
		return newError(KindRateLimited,
			fmt.Sprintf("sponsored send limit reached, retry in %s", rateErr.RetryAfter.Round(time.Second)), err)
	default:
		return newError(KindUnknown, fmt.Sprintf("send failed during %s", stage), err)
	}
}
