package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

const (
	keySize = 32
	ivSize  = 12
	tagSize = 16
)

// ErrSeedTampered is returned when a seed record fails GCM authentication.
// Callers use it to mark the record unrecoverable, so it must stay distinct
// from generic decode failures.
var ErrSeedTampered = errors.New("seed record failed authentication")

// SealedSeed is one authenticated-encryption unit. The three fields are
// produced and consumed together; persisting them separately breaks the
// tamper guarantee.
type SealedSeed struct {
	Ciphertext []byte
	IV         []byte
	AuthTag    []byte
}

// Cipher encrypts seed material at rest with AES-256-GCM.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher builds a Cipher from the configured key string, accepted as hex
// or base64. The key must decode to exactly 32 raw bytes; anything else
// refuses to start rather than custodying seeds with a weak key.
func NewCipher(key string) (*Cipher, error) {
	if key == "" {
		return nil, fmt.Errorf("encryption key is not configured")
	}

	raw, err := hex.DecodeString(key)
	if err != nil {
		raw, err = base64.StdEncoding.DecodeString(key)
		if err != nil {
			return nil, fmt.Errorf("encryption key is neither hex nor base64")
		}
	}
	if len(raw) != keySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", keySize, len(raw))
	}

	block, err := aes.NewCipher(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to init GCM: %w", err)
	}

	return &Cipher{aead: aead}, nil
}

// Encrypt seals plaintext with a fresh random IV. Reusing an IV under the
// same key breaks GCM, so every call draws new randomness.
func (c *Cipher) Encrypt(plaintext []byte) (SealedSeed, error) {
	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return SealedSeed{}, fmt.Errorf("failed to draw IV: %w", err)
	}

	sealed := c.aead.Seal(nil, iv, plaintext, nil)
	n := len(sealed) - tagSize

	return SealedSeed{
		Ciphertext: sealed[:n],
		IV:         iv,
		AuthTag:    sealed[n:],
	}, nil
}

// Decrypt opens a sealed seed. Any altered byte in ciphertext, IV, or tag
// yields ErrSeedTampered.
func (c *Cipher) Decrypt(s SealedSeed) ([]byte, error) {
	if len(s.IV) != ivSize || len(s.AuthTag) != tagSize {
		return nil, fmt.Errorf("%w: malformed record", ErrSeedTampered)
	}

	sealed := make([]byte, 0, len(s.Ciphertext)+tagSize)
	sealed = append(sealed, s.Ciphertext...)
	sealed = append(sealed, s.AuthTag...)

	plaintext, err := c.aead.Open(nil, s.IV, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSeedTampered, err)
	}
	return plaintext, nil
}
