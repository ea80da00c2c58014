package evm

import "errors"

var (
	// ErrInvalidAddress marks a recipient or token address that does not
	// parse, caught before any external call.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrDelegationTargetMissing means the configured EIP-7702 delegation
	// contract has no code on this network. Signing an authorization for a
	// non-existent target is unrecoverable, so the factory refuses.
	ErrDelegationTargetMissing = errors.New("delegation target has no code on this network")

	// ErrAuthorizationSignerMismatch means a signed authorization recovers to
	// a different address than the account. This is a derivation or
	// key-material bug, never a transient condition.
	ErrAuthorizationSignerMismatch = errors.New("authorization signer does not match account address")
)
