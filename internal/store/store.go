package store

import (
	"context"

	"github.com/lockbox/custodian/internal/chains"
	"github.com/lockbox/custodian/internal/vault"
)

// SeedStore persists sealed seed records, one per owner. Replacement is
// always whole-record; the ciphertext triple never travels apart.
type SeedStore = vault.Store

// DelegationStore records whether an EIP-7702 delegation has been observed
// for (owner, chain). The record is advisory: factories re-check on-chain
// bytecode when in doubt rather than trusting it.
type DelegationStore interface {
	DelegationRecorded(ctx context.Context, ownerID string, chain chains.Chain) (bool, error)
	RecordDelegation(ctx context.Context, ownerID string, chain chains.Chain) error
}

// DeploymentStore records whether an ERC-4337 smart account has been deployed
// for (owner, chain). Advisory in the same way as DelegationStore.
type DeploymentStore interface {
	DeploymentRecorded(ctx context.Context, ownerID string, chain chains.Chain) (bool, error)
	RecordDeployment(ctx context.Context, ownerID string, chain chains.Chain) error
}
