package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lockbox/custodian/internal/chains"
	"github.com/lockbox/custodian/internal/vault"
)

// Postgres implements the persistence collaborators on a pgx pool. Schema
// management lives outside this engine; these are plain parameterized
// queries against owner-keyed tables.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) HasSeed(ctx context.Context, ownerID string) (bool, error) {
	var exists bool
	err := p.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM seeds WHERE owner_id = $1)`, ownerID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check seed existence: %w", err)
	}
	return exists, nil
}

func (p *Postgres) GetSeed(ctx context.Context, ownerID string) (vault.SealedSeed, error) {
	var sealed vault.SealedSeed
	err := p.pool.QueryRow(ctx,
		`SELECT ciphertext, iv, auth_tag FROM seeds WHERE owner_id = $1`, ownerID,
	).Scan(&sealed.Ciphertext, &sealed.IV, &sealed.AuthTag)
	if errors.Is(err, pgx.ErrNoRows) {
		return vault.SealedSeed{}, fmt.Errorf("seed not found for owner %s", ownerID)
	}
	if err != nil {
		return vault.SealedSeed{}, fmt.Errorf("failed to load seed: %w", err)
	}
	return sealed, nil
}

func (p *Postgres) PutSeed(ctx context.Context, ownerID string, seed vault.SealedSeed) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO seeds (owner_id, ciphertext, iv, auth_tag)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (owner_id)
		 DO UPDATE SET ciphertext = $2, iv = $3, auth_tag = $4`,
		ownerID, seed.Ciphertext, seed.IV, seed.AuthTag,
	)
	if err != nil {
		return fmt.Errorf("failed to store seed: %w", err)
	}
	return nil
}

func (p *Postgres) DelegationRecorded(ctx context.Context, ownerID string, chain chains.Chain) (bool, error) {
	var exists bool
	err := p.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM delegations WHERE owner_id = $1 AND chain = $2)`,
		ownerID, chain.String(),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check delegation record: %w", err)
	}
	return exists, nil
}

func (p *Postgres) RecordDelegation(ctx context.Context, ownerID string, chain chains.Chain) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO delegations (owner_id, chain) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		ownerID, chain.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to record delegation: %w", err)
	}
	return nil
}

func (p *Postgres) DeploymentRecorded(ctx context.Context, ownerID string, chain chains.Chain) (bool, error) {
	var exists bool
	err := p.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM deployments WHERE owner_id = $1 AND chain = $2)`,
		ownerID, chain.String(),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check deployment record: %w", err)
	}
	return exists, nil
}

func (p *Postgres) RecordDeployment(ctx context.Context, ownerID string, chain chains.Chain) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO deployments (owner_id, chain) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		ownerID, chain.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to record deployment: %w", err)
	}
	return nil
}
