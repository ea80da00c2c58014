package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/lockbox/custodian/internal/chains"
	"github.com/lockbox/custodian/internal/vault"
)

// Memory is an in-process store for tests and for running the worker without
// a database. Everything is lost on restart.
type Memory struct {
	mu          sync.RWMutex
	seeds       map[string]vault.SealedSeed
	delegations map[string]bool
	deployments map[string]bool
}

func NewMemory() *Memory {
	return &Memory{
		seeds:       make(map[string]vault.SealedSeed),
		delegations: make(map[string]bool),
		deployments: make(map[string]bool),
	}
}

func (m *Memory) HasSeed(_ context.Context, ownerID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.seeds[ownerID]
	return ok, nil
}

func (m *Memory) GetSeed(_ context.Context, ownerID string) (vault.SealedSeed, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sealed, ok := m.seeds[ownerID]
	if !ok {
		return vault.SealedSeed{}, fmt.Errorf("seed not found for owner %s", ownerID)
	}
	return sealed, nil
}

func (m *Memory) PutSeed(_ context.Context, ownerID string, seed vault.SealedSeed) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seeds[ownerID] = seed
	return nil
}

func ownerChainKey(ownerID string, chain chains.Chain) string {
	return ownerID + "|" + chain.String()
}

func (m *Memory) DelegationRecorded(_ context.Context, ownerID string, chain chains.Chain) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.delegations[ownerChainKey(ownerID, chain)], nil
}

func (m *Memory) RecordDelegation(_ context.Context, ownerID string, chain chains.Chain) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delegations[ownerChainKey(ownerID, chain)] = true
	return nil
}

func (m *Memory) DeploymentRecorded(_ context.Context, ownerID string, chain chains.Chain) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.deployments[ownerChainKey(ownerID, chain)], nil
}

func (m *Memory) RecordDeployment(_ context.Context, ownerID string, chain chains.Chain) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deployments[ownerChainKey(ownerID, chain)] = true
	return nil
}
