package evm

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	ecommon "github.com/ethereum/go-ethereum/common"
	etypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"

	"github.com/lockbox/custodian/internal/chains"
)

const nativeTransferGas = 21000

// EOAAccount sends plain externally-owned-account transactions straight to
// the chain.
type EOAAccount struct {
	key     *ecdsa.PrivateKey
	address ecommon.Address
	desc    chains.Descriptor
	rpc     Client
	logger  *logrus.Logger
}

func NewEOAAccount(key *ecdsa.PrivateKey, desc chains.Descriptor, rpc Client, logger *logrus.Logger) *EOAAccount {
	return &EOAAccount{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		desc:    desc,
		rpc:     rpc,
		logger:  logger.WithField("pkg", "evm.EOAAccount").Logger,
	}
}

func (a *EOAAccount) Address() string {
	return a.address.Hex()
}

func (a *EOAAccount) Balance(ctx context.Context) (*big.Int, error) {
	return newBalanceService(a.rpc).GetNativeBalance(ctx, a.address)
}

func (a *EOAAccount) Send(ctx context.Context, to string, amount *big.Int) (string, error) {
	recipient, err := parseAddress(to)
	if err != nil {
		return "", err
	}
	return a.broadcast(ctx, recipient, amount, nil, nativeTransferGas)
}

func (a *EOAAccount) Transfer(ctx context.Context, token, to string, amount *big.Int) (string, error) {
	tokenAddr, err := parseAddress(token)
	if err != nil {
		return "", err
	}
	recipient, err := parseAddress(to)
	if err != nil {
		return "", err
	}

	data, err := packTransfer(recipient, amount)
	if err != nil {
		return "", err
	}
	gas, err := a.rpc.EstimateGas(ctx, ethereum.CallMsg{
		From: a.address,
		To:   &tokenAddr,
		Data: data,
	})
	if err != nil {
		return "", fmt.Errorf("failed to estimate transfer gas: %w", err)
	}

	return a.broadcast(ctx, tokenAddr, big.NewInt(0), data, gas)
}

func (a *EOAAccount) broadcast(
	ctx context.Context,
	to ecommon.Address,
	value *big.Int,
	data []byte,
	gas uint64,
) (string, error) {
	nonce, err := a.rpc.PendingNonceAt(ctx, a.address)
	if err != nil {
		return "", fmt.Errorf("failed to get nonce: %w", err)
	}

	feeCap, tipCap, err := suggestFees(ctx, a.rpc)
	if err != nil {
		return "", err
	}

	tx, err := etypes.SignNewTx(a.key, etypes.LatestSignerForChainID(a.desc.EvmChainID), &etypes.DynamicFeeTx{
		ChainID:   a.desc.EvmChainID,
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Value:     value,
		Data:      data,
	})
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := a.rpc.SendTransaction(ctx, tx); err != nil {
		return "", fmt.Errorf("failed to broadcast transaction: %w", err)
	}

	a.logger.WithFields(logrus.Fields{
		"chain":  a.desc.Chain.String(),
		"from":   a.address.Hex(),
		"txHash": tx.Hash().Hex(),
	}).Info("transaction broadcast")

	return tx.Hash().Hex(), nil
}

func parseAddress(s string) (ecommon.Address, error) {
	if !ecommon.IsHexAddress(s) {
		return ecommon.Address{}, fmt.Errorf("%w: %s", ErrInvalidAddress, s)
	}
	return ecommon.HexToAddress(s), nil
}
