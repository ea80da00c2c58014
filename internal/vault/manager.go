package vault

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/tyler-smith/go-bip39"
)

// Store is the persistence collaborator for sealed seed records. Only sealed
// material ever crosses this boundary.
type Store interface {
	HasSeed(ctx context.Context, ownerID string) (bool, error)
	GetSeed(ctx context.Context, ownerID string) (SealedSeed, error)
	PutSeed(ctx context.Context, ownerID string, seed SealedSeed) error
}

// Manager owns seed custody: lazy provisioning, import, and decryption for
// one request at a time. Decrypted phrases must not outlive the request that
// asked for them.
type Manager struct {
	cipher *Cipher
	store  Store
	logger *logrus.Logger
}

func NewManager(cipher *Cipher, store Store, logger *logrus.Logger) *Manager {
	return &Manager{
		cipher: cipher,
		store:  store,
		logger: logger.WithField("pkg", "vault.Manager").Logger,
	}
}

// EnsureSeed returns the owner's seed phrase, generating and storing a fresh
// 24-word mnemonic on first use.
func (m *Manager) EnsureSeed(ctx context.Context, ownerID string) (string, error) {
	has, err := m.store.HasSeed(ctx, ownerID)
	if err != nil {
		return "", fmt.Errorf("failed to check seed existence: %w", err)
	}
	if has {
		return m.SeedPhrase(ctx, ownerID)
	}

	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return "", fmt.Errorf("failed to generate entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("failed to generate mnemonic: %w", err)
	}

	if err := m.putPhrase(ctx, ownerID, mnemonic); err != nil {
		return "", err
	}

	m.logger.WithField("ownerId", ownerID).Info("provisioned new seed")
	return mnemonic, nil
}

// SeedPhrase decrypts the owner's stored seed. Tampered records surface
// ErrSeedTampered, never "not found".
func (m *Manager) SeedPhrase(ctx context.Context, ownerID string) (string, error) {
	sealed, err := m.store.GetSeed(ctx, ownerID)
	if err != nil {
		return "", fmt.Errorf("failed to load seed record: %w", err)
	}
	plaintext, err := m.cipher.Decrypt(sealed)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt seed for owner %s: %w", ownerID, err)
	}
	return string(plaintext), nil
}

// ImportSeed replaces the owner's seed with a caller-supplied mnemonic. The
// record is replaced whole; archival of the previous seed is an external
// collaborator's job.
func (m *Manager) ImportSeed(ctx context.Context, ownerID, phrase string) error {
	if !bip39.IsMnemonicValid(phrase) {
		return fmt.Errorf("invalid mnemonic phrase")
	}
	if err := m.putPhrase(ctx, ownerID, phrase); err != nil {
		return err
	}
	m.logger.WithField("ownerId", ownerID).Info("imported seed")
	return nil
}

func (m *Manager) putPhrase(ctx context.Context, ownerID, phrase string) error {
	sealed, err := m.cipher.Encrypt([]byte(phrase))
	if err != nil {
		return fmt.Errorf("failed to encrypt seed: %w", err)
	}
	if err := m.store.PutSeed(ctx, ownerID, sealed); err != nil {
		return fmt.Errorf("failed to store seed: %w", err)
	}
	return nil
}
