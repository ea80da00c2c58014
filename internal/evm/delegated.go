package evm

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	ecommon "github.com/ethereum/go-ethereum/common"
	etypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"

	"github.com/lockbox/custodian/internal/chains"
	"github.com/lockbox/custodian/internal/store"
)

// delegationPrefix is the EIP-7702 delegation designator prefix. An EOA with
// an active delegation carries exactly 0xef0100 ++ target as its code.
var delegationPrefix = []byte{0xef, 0x01, 0x00}

const delegationCodeLen = 23

// DelegatedAccount is an EOA upgraded in place via EIP-7702: the address
// stays the owner's EOA address, but once delegated it executes through the
// delegation contract like a smart account. A recorded delegation lets sends
// skip the bytecode probe; an absent or unreadable record always falls back
// to the account's on-chain code.
type DelegatedAccount struct {
	key        *ecdsa.PrivateKey
	address    ecommon.Address
	ownerID    string
	desc       chains.Descriptor
	rpc        Client
	bundler    *BundlerClient
	paymaster  *PaymasterClient
	delegation store.DelegationStore
	logger     *logrus.Logger
}

func NewDelegatedAccount(
	ctx context.Context,
	key *ecdsa.PrivateKey,
	ownerID string,
	desc chains.Descriptor,
	rpc Client,
	bundler *BundlerClient,
	paymaster *PaymasterClient,
	delegation store.DelegationStore,
	logger *logrus.Logger,
) (*DelegatedAccount, error) {
	targetCode, err := rpc.CodeAt(ctx, desc.DelegationContract, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to check delegation target code: %w", err)
	}
	if len(targetCode) == 0 {
		return nil, fmt.Errorf("%w: %s on %s", ErrDelegationTargetMissing, desc.DelegationContract.Hex(), desc.Chain)
	}

	return &DelegatedAccount{
		key:        key,
		address:    crypto.PubkeyToAddress(key.PublicKey),
		ownerID:    ownerID,
		desc:       desc,
		rpc:        rpc,
		bundler:    bundler,
		paymaster:  paymaster,
		delegation: delegation,
		logger:     logger.WithField("pkg", "evm.DelegatedAccount").Logger,
	}, nil
}

func (a *DelegatedAccount) Address() string {
	return a.address.Hex()
}

func (a *DelegatedAccount) Balance(ctx context.Context) (*big.Int, error) {
	return newBalanceService(a.rpc).GetNativeBalance(ctx, a.address)
}

// DelegationActive reads the account's on-chain code and reports whether it
// is a delegation designator pointing at the configured contract.
func (a *DelegatedAccount) DelegationActive(ctx context.Context) (bool, error) {
	code, err := a.rpc.CodeAt(ctx, a.address, nil)
	if err != nil {
		return false, fmt.Errorf("failed to read account code: %w", err)
	}
	if len(code) != delegationCodeLen || !bytes.HasPrefix(code, delegationPrefix) {
		return false, nil
	}
	target := ecommon.BytesToAddress(code[len(delegationPrefix):])
	return target == a.desc.DelegationContract, nil
}

// delegationReady reports whether the delegation can be assumed active. A
// positive persisted record skips the bytecode read on the happy path; no
// record, or a failed read, falls back to the on-chain designator, and a
// delegation observed that way repairs the record.
func (a *DelegatedAccount) delegationReady(ctx context.Context) (bool, error) {
	if a.delegation != nil {
		recorded, err := a.delegation.DelegationRecorded(ctx, a.ownerID, a.desc.Chain)
		if err != nil {
			a.logger.WithError(err).Warn("failed to read delegation record")
		} else if recorded {
			return true, nil
		}
	}

	active, err := a.DelegationActive(ctx)
	if err != nil {
		return false, err
	}
	if active {
		a.recordDelegation(ctx)
	}
	return active, nil
}

func (a *DelegatedAccount) Send(ctx context.Context, to string, amount *big.Int) (string, error) {
	recipient, err := parseAddress(to)
	if err != nil {
		return "", err
	}
	callData, err := packExecute(recipient, amount, nil)
	if err != nil {
		return "", err
	}
	return a.submit(ctx, callData)
}

func (a *DelegatedAccount) Transfer(ctx context.Context, token, to string, amount *big.Int) (string, error) {
	tokenAddr, err := parseAddress(token)
	if err != nil {
		return "", err
	}
	recipient, err := parseAddress(to)
	if err != nil {
		return "", err
	}
	transferData, err := packTransfer(recipient, amount)
	if err != nil {
		return "", err
	}
	callData, err := packExecute(tokenAddr, big.NewInt(0), transferData)
	if err != nil {
		return "", err
	}
	return a.submit(ctx, callData)
}

// submit sends the call as a sponsored user operation. When the delegation
// is not yet active on chain, a fresh authorization rides along and the
// bundler applies it in the same transaction.
func (a *DelegatedAccount) submit(ctx context.Context, callData []byte) (string, error) {
	active, err := a.delegationReady(ctx)
	if err != nil {
		return "", err
	}

	nonce, err := entryPointNonce(ctx, a.rpc, a.desc.EntryPoint, a.address)
	if err != nil {
		return "", err
	}

	feeCap, tipCap, err := suggestFees(ctx, a.rpc)
	if err != nil {
		return "", err
	}

	op := &UserOperation{
		Sender:               a.address,
		Nonce:                nonce,
		CallData:             callData,
		MaxFeePerGas:         feeCap,
		MaxPriorityFeePerGas: tipCap,
		Signature:            dummySignature,
	}

	if !active {
		// The authorization is applied by the bundler's transaction, so it
		// signs over the account's next protocol nonce.
		txNonce, err := a.rpc.PendingNonceAt(ctx, a.address)
		if err != nil {
			return "", fmt.Errorf("failed to get nonce: %w", err)
		}
		auth, err := a.signAuthorization(txNonce)
		if err != nil {
			return "", err
		}
		op.Authorization = auth
		op.VerificationGasLimit = deployVerificationGasLimit
	}
	applyGasEstimate(ctx, a.bundler, op, a.desc.EntryPoint, a.logger)
	if op.Authorization != nil && op.VerificationGasLimit.Cmp(deployVerificationGasLimit) < 0 {
		op.VerificationGasLimit = deployVerificationGasLimit
	}

	if a.paymaster != nil {
		pmData, err := a.paymaster.SponsorUserOperation(ctx, *op, a.desc.EntryPoint)
		if err != nil {
			return "", err
		}
		op.PaymasterAndData = pmData
	}

	if err := signUserOp(op, a.key, a.desc.EntryPoint, a.desc.EvmChainID); err != nil {
		return "", err
	}

	opHash, err := a.bundler.SendUserOperation(ctx, *op, a.desc.EntryPoint)
	if err != nil {
		return "", err
	}

	a.logger.WithFields(logrus.Fields{
		"chain":      a.desc.Chain.String(),
		"sender":     a.address.Hex(),
		"opHash":     opHash,
		"authorized": op.Authorization != nil,
	}).Info("user operation sent")

	if op.Authorization != nil {
		a.recordDelegation(ctx)
	}
	return opHash, nil
}

// Delegate activates the delegation with a self-submitted type-4 transaction,
// for networks where no bundler accepts authorizations. The authorization
// nonce is the transaction nonce plus one because the account's own
// transaction bumps it before the authorization is checked.
func (a *DelegatedAccount) Delegate(ctx context.Context) (string, error) {
	active, err := a.DelegationActive(ctx)
	if err != nil {
		return "", err
	}
	if active {
		return "", nil
	}

	txNonce, err := a.rpc.PendingNonceAt(ctx, a.address)
	if err != nil {
		return "", fmt.Errorf("failed to get nonce: %w", err)
	}
	auth, err := a.signAuthorization(txNonce + 1)
	if err != nil {
		return "", err
	}

	feeCap, tipCap, err := suggestFees(ctx, a.rpc)
	if err != nil {
		return "", err
	}

	chainID, overflow := uint256.FromBig(a.desc.EvmChainID)
	if overflow {
		return "", fmt.Errorf("chain id %s overflows uint256", a.desc.EvmChainID)
	}
	tx, err := etypes.SignNewTx(a.key, etypes.LatestSignerForChainID(a.desc.EvmChainID), &etypes.SetCodeTx{
		ChainID:   chainID,
		Nonce:     txNonce,
		GasTipCap: uint256.MustFromBig(tipCap),
		GasFeeCap: uint256.MustFromBig(feeCap),
		Gas:       100_000,
		To:        a.address,
		AuthList:  []etypes.SetCodeAuthorization{*auth},
	})
	if err != nil {
		return "", fmt.Errorf("failed to sign delegation transaction: %w", err)
	}

	if err := a.rpc.SendTransaction(ctx, tx); err != nil {
		return "", fmt.Errorf("failed to broadcast delegation transaction: %w", err)
	}

	a.logger.WithFields(logrus.Fields{
		"chain":  a.desc.Chain.String(),
		"from":   a.address.Hex(),
		"txHash": tx.Hash().Hex(),
	}).Info("delegation transaction broadcast")

	a.recordDelegation(ctx)
	return tx.Hash().Hex(), nil
}

// signAuthorization signs an EIP-7702 authorization for the delegation
// contract and verifies that it recovers to this account's address before
// letting it out the door.
func (a *DelegatedAccount) signAuthorization(nonce uint64) (*etypes.SetCodeAuthorization, error) {
	chainID, overflow := uint256.FromBig(a.desc.EvmChainID)
	if overflow {
		return nil, fmt.Errorf("chain id %s overflows uint256", a.desc.EvmChainID)
	}
	auth, err := etypes.SignSetCode(a.key, etypes.SetCodeAuthorization{
		ChainID: *chainID,
		Address: a.desc.DelegationContract,
		Nonce:   nonce,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign authorization: %w", err)
	}

	signer, err := auth.Authority()
	if err != nil {
		return nil, fmt.Errorf("failed to recover authorization signer: %w", err)
	}
	if signer != a.address {
		return nil, fmt.Errorf("%w: got %s, want %s", ErrAuthorizationSignerMismatch, signer.Hex(), a.address.Hex())
	}
	return &auth, nil
}

func (a *DelegatedAccount) recordDelegation(ctx context.Context) {
	if a.delegation == nil {
		return
	}
	if err := a.delegation.RecordDelegation(ctx, a.ownerID, a.desc.Chain); err != nil {
		a.logger.WithError(err).Warn("failed to record delegation")
	}
}
