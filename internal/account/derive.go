package account

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/tyler-smith/go-bip39"
)

// Derivation path m/44'/60'/0'/0/index, the standard Ethereum account tree.
const (
	purpose  = 44
	coinEth  = 60
	acctZero = 0
	change   = 0
)

// DeriveKey derives the secp256k1 signing key for an account index from a
// mnemonic. Deterministic: the same phrase and index always yield the same
// key. The result is scoped to one request and must not be cached.
func DeriveKey(phrase string, index uint32) (*ecdsa.PrivateKey, error) {
	if !bip39.IsMnemonicValid(phrase) {
		return nil, fmt.Errorf("invalid mnemonic phrase")
	}

	seed := bip39.NewSeed(phrase, "")
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("failed to build master key: %w", err)
	}

	steps := []uint32{
		hdkeychain.HardenedKeyStart + purpose,
		hdkeychain.HardenedKeyStart + coinEth,
		hdkeychain.HardenedKeyStart + acctZero,
		change,
		index,
	}

	key := master
	for _, step := range steps {
		key, err = key.Derive(step)
		if err != nil {
			return nil, fmt.Errorf("failed to derive child %d: %w", step, err)
		}
	}

	priv, err := key.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("failed to extract private key: %w", err)
	}
	return priv.ToECDSA(), nil
}
