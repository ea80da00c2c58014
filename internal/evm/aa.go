package evm

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts"
	ecommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Account-abstraction plumbing shared by the ERC-4337 and EIP-7702 paths.
// The fragments cover only the entry point, factory and account methods the
// engine calls.
var (
	entryPointABI = mustABI(`[
		{"type":"function","name":"getNonce","stateMutability":"view","inputs":[{"name":"sender","type":"address"},{"name":"key","type":"uint192"}],"outputs":[{"type":"uint256"}]}
	]`)
	factoryABI = mustABI(`[
		{"type":"function","name":"getAddress","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"salt","type":"uint256"}],"outputs":[{"type":"address"}]},
		{"type":"function","name":"createAccount","stateMutability":"nonpayable","inputs":[{"name":"owner","type":"address"},{"name":"salt","type":"uint256"}],"outputs":[{"type":"address"}]}
	]`)
	accountABI = mustABI(`[
		{"type":"function","name":"execute","stateMutability":"nonpayable","inputs":[{"name":"dest","type":"address"},{"name":"value","type":"uint256"},{"name":"func","type":"bytes"}],"outputs":[]}
	]`)
)

var (
	selGetNonce      = entryPointABI.Methods["getNonce"].ID
	selGetAddress    = factoryABI.Methods["getAddress"].ID
	selCreateAccount = factoryABI.Methods["createAccount"].ID
	selExecute       = accountABI.Methods["execute"].ID
)

// Conservative fallback gas limits used when the bundler cannot estimate.
var (
	defaultCallGasLimit         = big.NewInt(200_000)
	defaultVerificationGasLimit = big.NewInt(1_000_000)
	deployVerificationGasLimit  = big.NewInt(3_000_000)
	defaultPreVerificationGas   = big.NewInt(50_000)
)

// packExecute encodes account.execute(dest, value, data).
func packExecute(dest ecommon.Address, value *big.Int, data []byte) ([]byte, error) {
	out, err := accountABI.Pack("execute", dest, value, data)
	if err != nil {
		return nil, fmt.Errorf("failed to pack execute: %w", err)
	}
	return out, nil
}

// packInitCode encodes factory ++ createAccount(owner, salt).
func packInitCode(factory, owner ecommon.Address, salt *big.Int) ([]byte, error) {
	call, err := factoryABI.Pack("createAccount", owner, salt)
	if err != nil {
		return nil, fmt.Errorf("failed to pack createAccount: %w", err)
	}
	return append(append([]byte(nil), factory.Bytes()...), call...), nil
}

// senderAddress asks the account factory for the deterministic
// counterfactual address of (owner, salt).
func senderAddress(ctx context.Context, rpc Client, factory, owner ecommon.Address, salt *big.Int) (ecommon.Address, error) {
	data, err := factoryABI.Pack("getAddress", owner, salt)
	if err != nil {
		return ecommon.Address{}, fmt.Errorf("failed to pack getAddress: %w", err)
	}

	ret, err := rpc.CallContract(ctx, ethereum.CallMsg{To: &factory, Data: data}, nil)
	if err != nil {
		return ecommon.Address{}, fmt.Errorf("failed to compute sender address: %w", err)
	}
	vals, err := factoryABI.Unpack("getAddress", ret)
	if err != nil {
		return ecommon.Address{}, fmt.Errorf("failed to decode getAddress return: %w", err)
	}
	sender, ok := vals[0].(ecommon.Address)
	if !ok {
		return ecommon.Address{}, fmt.Errorf("unexpected getAddress return type %T", vals[0])
	}
	return sender, nil
}

// entryPointNonce reads the sender's operation nonce from the entry point,
// using the zero nonce key.
func entryPointNonce(ctx context.Context, rpc Client, entryPoint, sender ecommon.Address) (*big.Int, error) {
	data, err := entryPointABI.Pack("getNonce", sender, big.NewInt(0))
	if err != nil {
		return nil, fmt.Errorf("failed to pack getNonce: %w", err)
	}

	ret, err := rpc.CallContract(ctx, ethereum.CallMsg{To: &entryPoint, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read entry point nonce: %w", err)
	}
	vals, err := entryPointABI.Unpack("getNonce", ret)
	if err != nil {
		return nil, fmt.Errorf("failed to decode getNonce return: %w", err)
	}
	nonce, ok := vals[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected getNonce return type %T", vals[0])
	}
	return nonce, nil
}

// signUserOp signs the v0.6 userOpHash the way account contracts verify it:
// an eth_sign-style signature over the hash, V in {27, 28}.
func signUserOp(op *UserOperation, key *ecdsa.PrivateKey, entryPoint ecommon.Address, chainID *big.Int) error {
	opHash := op.Hash(entryPoint, chainID)
	sig, err := crypto.Sign(accounts.TextHash(opHash.Bytes()), key)
	if err != nil {
		return fmt.Errorf("failed to sign user operation: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	op.Signature = sig
	return nil
}
