package substrate

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"

	"github.com/lockbox/custodian/internal/chains"
)

// ErrTokenTransfersUnsupported is returned for asset transfers on Substrate
// chains, where only the native token path is wired.
var ErrTokenTransfersUnsupported = errors.New("token transfers not supported on substrate chains")

// Client is the narrow surface to a Substrate network the engine needs.
// Extrinsic construction and signing live behind it.
type Client interface {
	FreeBalance(ctx context.Context, chain chains.Chain, address string) (*big.Int, error)
	SubmitTransfer(ctx context.Context, chain chains.Chain, from, to string, amount *big.Int) (string, error)
}

func networkPrefix(chain chains.Chain) (uint16, error) {
	switch chain {
	case chains.Polkadot:
		return PolkadotPrefix, nil
	case chains.Westend:
		return WestendPrefix, nil
	default:
		return 0, fmt.Errorf("%w: %s", chains.ErrUnsupportedChain, chain)
	}
}

// Account is a native-token Substrate account addressed by the SS58 encoding
// of the owner key's ECDSA account ID.
type Account struct {
	client  Client
	desc    chains.Descriptor
	address string
	logger  *logrus.Logger
}

func NewAccount(key *ecdsa.PrivateKey, desc chains.Descriptor, client Client, logger *logrus.Logger) (*Account, error) {
	prefix, err := networkPrefix(desc.Chain)
	if err != nil {
		return nil, err
	}
	accountID, err := AccountID(crypto.CompressPubkey(&key.PublicKey))
	if err != nil {
		return nil, fmt.Errorf("failed to derive account ID: %w", err)
	}
	address, err := EncodeSS58(accountID, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to encode address: %w", err)
	}

	return &Account{
		client:  client,
		desc:    desc,
		address: address,
		logger:  logger.WithField("pkg", "substrate.Account").Logger,
	}, nil
}

func (a *Account) Address() string {
	return a.address
}

func (a *Account) Balance(ctx context.Context) (*big.Int, error) {
	return a.client.FreeBalance(ctx, a.desc.Chain, a.address)
}

func (a *Account) Send(ctx context.Context, to string, amount *big.Int) (string, error) {
	hash, err := a.client.SubmitTransfer(ctx, a.desc.Chain, a.address, to, amount)
	if err != nil {
		return "", fmt.Errorf("failed to submit transfer: %w", err)
	}

	a.logger.WithFields(logrus.Fields{
		"chain":  a.desc.Chain.String(),
		"from":   a.address,
		"txHash": hash,
	}).Info("extrinsic submitted")

	return hash, nil
}

func (a *Account) Transfer(_ context.Context, token, _ string, _ *big.Int) (string, error) {
	return "", fmt.Errorf("%w: token %s on %s", ErrTokenTransfersUnsupported, token, a.desc.Chain)
}
