package substrate

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil/base58"
	"golang.org/x/crypto/blake2b"
)

// SS58 network prefixes for the chains this engine reaches.
const (
	PolkadotPrefix uint16 = 0
	WestendPrefix  uint16 = 42
)

var ss58Preamble = []byte("SS58PRE")

// EncodeSS58 renders a 32-byte account ID as an SS58 address for the given
// network prefix.
func EncodeSS58(accountID []byte, prefix uint16) (string, error) {
	if len(accountID) != 32 {
		return "", fmt.Errorf("account ID must be 32 bytes, got %d", len(accountID))
	}
	if prefix >= 64 {
		return "", fmt.Errorf("network prefix %d out of single-byte range", prefix)
	}

	payload := append([]byte{byte(prefix)}, accountID...)
	sum := blake2b.Sum512(append(append([]byte(nil), ss58Preamble...), payload...))
	return base58.Encode(append(payload, sum[:2]...)), nil
}

// AccountID turns a compressed secp256k1 public key into a Substrate ECDSA
// account ID, which is the blake2b-256 hash of the key bytes.
func AccountID(compressedPubKey []byte) ([]byte, error) {
	if len(compressedPubKey) != 33 {
		return nil, fmt.Errorf("compressed public key must be 33 bytes, got %d", len(compressedPubKey))
	}
	sum := blake2b.Sum256(compressedPubKey)
	return sum[:], nil
}
