package evm

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	ecommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"

	"github.com/lockbox/custodian/internal/chains"
	"github.com/lockbox/custodian/internal/store"
)

// dummySignature is a placeholder with the length of a real ECDSA signature,
// used so gas estimation and sponsorship see a realistically sized operation.
var dummySignature = func() []byte {
	sig := make([]byte, 65)
	for i := range sig {
		sig[i] = 0xff
	}
	sig[64] = 0x1c
	return sig
}()

// SmartAccount is an ERC-4337 smart contract account controlled by a single
// owner key. The contract is deployed lazily: the first operation carries
// initCode and the bundler deploys it in the same bundle.
type SmartAccount struct {
	key         *ecdsa.PrivateKey
	owner       ecommon.Address
	sender      ecommon.Address
	ownerID     string
	desc        chains.Descriptor
	rpc         Client
	bundler     *BundlerClient
	paymaster   *PaymasterClient
	deployments store.DeploymentStore
	logger      *logrus.Logger
}

func NewSmartAccount(
	ctx context.Context,
	key *ecdsa.PrivateKey,
	ownerID string,
	desc chains.Descriptor,
	rpc Client,
	bundler *BundlerClient,
	paymaster *PaymasterClient,
	deployments store.DeploymentStore,
	logger *logrus.Logger,
) (*SmartAccount, error) {
	owner := crypto.PubkeyToAddress(key.PublicKey)
	sender, err := senderAddress(ctx, rpc, desc.AccountFactory, owner, big.NewInt(0))
	if err != nil {
		return nil, err
	}
	return &SmartAccount{
		key:         key,
		owner:       owner,
		sender:      sender,
		ownerID:     ownerID,
		desc:        desc,
		rpc:         rpc,
		bundler:     bundler,
		paymaster:   paymaster,
		deployments: deployments,
		logger:      logger.WithField("pkg", "evm.SmartAccount").Logger,
	}, nil
}

func (a *SmartAccount) Address() string {
	return a.sender.Hex()
}

func (a *SmartAccount) Balance(ctx context.Context) (*big.Int, error) {
	return newBalanceService(a.rpc).GetNativeBalance(ctx, a.sender)
}

// Deployed reports whether the account contract exists on chain yet.
func (a *SmartAccount) Deployed(ctx context.Context) (bool, error) {
	code, err := a.rpc.CodeAt(ctx, a.sender, nil)
	if err != nil {
		return false, fmt.Errorf("failed to check account deployment: %w", err)
	}
	return len(code) > 0, nil
}

func (a *SmartAccount) Send(ctx context.Context, to string, amount *big.Int) (string, error) {
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

func (a *SmartAccount) Transfer(ctx context.Context, token, to string, amount *big.Int) (string, error) {
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

// submit builds, sponsors, signs and sends a user operation wrapping
// callData, returning the operation hash.
func (a *SmartAccount) submit(ctx context.Context, callData []byte) (string, error) {
	op, err := a.buildOp(ctx, callData)
	if err != nil {
		return "", err
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
		"chain":  a.desc.Chain.String(),
		"sender": a.sender.Hex(),
		"opHash": opHash,
	}).Info("user operation sent")

	if len(op.InitCode) > 0 {
		a.recordDeployment(ctx)
	}
	return opHash, nil
}

func (a *SmartAccount) buildOp(ctx context.Context, callData []byte) (*UserOperation, error) {
	deployed, err := a.deployedForOp(ctx)
	if err != nil {
		return nil, err
	}

	var initCode []byte
	if !deployed {
		initCode, err = packInitCode(a.desc.AccountFactory, a.owner, big.NewInt(0))
		if err != nil {
			return nil, err
		}
	}

	nonce, err := entryPointNonce(ctx, a.rpc, a.desc.EntryPoint, a.sender)
	if err != nil {
		return nil, err
	}

	feeCap, tipCap, err := suggestFees(ctx, a.rpc)
	if err != nil {
		return nil, err
	}

	op := &UserOperation{
		Sender:               a.sender,
		Nonce:                nonce,
		InitCode:             initCode,
		CallData:             callData,
		MaxFeePerGas:         feeCap,
		MaxPriorityFeePerGas: tipCap,
		Signature:            dummySignature,
	}
	applyGasEstimate(ctx, a.bundler, op, a.desc.EntryPoint, a.logger)
	return op, nil
}

// deployedForOp consults the persisted deployment record before touching the
// node: a positive record skips the bytecode probe. Anything else falls back
// to on-chain code, and a deployment observed that way repairs the record.
func (a *SmartAccount) deployedForOp(ctx context.Context) (bool, error) {
	if a.deployments != nil {
		recorded, err := a.deployments.DeploymentRecorded(ctx, a.ownerID, a.desc.Chain)
		if err != nil {
			a.logger.WithError(err).Warn("failed to read deployment record")
		} else if recorded {
			return true, nil
		}
	}

	deployed, err := a.Deployed(ctx)
	if err != nil {
		return false, err
	}
	if deployed {
		a.recordDeployment(ctx)
	}
	return deployed, nil
}

func (a *SmartAccount) recordDeployment(ctx context.Context) {
	if a.deployments == nil {
		return
	}
	if err := a.deployments.RecordDeployment(ctx, a.ownerID, a.desc.Chain); err != nil {
		a.logger.WithError(err).Warn("failed to record deployment")
	}
}

// applyGasEstimate fills the operation's gas limits from the bundler, falling
// back to conservative static limits when estimation fails.
func applyGasEstimate(
	ctx context.Context,
	bundler *BundlerClient,
	op *UserOperation,
	entryPoint ecommon.Address,
	logger *logrus.Logger,
) {
	op.CallGasLimit = defaultCallGasLimit
	op.VerificationGasLimit = defaultVerificationGasLimit
	if len(op.InitCode) > 0 {
		op.VerificationGasLimit = deployVerificationGasLimit
	}
	op.PreVerificationGas = defaultPreVerificationGas

	est, err := bundler.EstimateUserOperationGas(ctx, *op, entryPoint)
	if err != nil {
		logger.WithError(err).Warn("bundler gas estimation failed, using static limits")
		return
	}
	if est.CallGasLimit != nil {
		op.CallGasLimit = est.CallGasLimit
	}
	if est.VerificationGasLimit != nil {
		op.VerificationGasLimit = est.VerificationGasLimit
	}
	if est.PreVerificationGas != nil {
		op.PreVerificationGas = est.PreVerificationGas
	}
}
