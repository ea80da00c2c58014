package evm

import (
	"math/big"

	ecommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	etypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// UserOperation is an ERC-4337 v0.6 user operation. For EIP-7702 senders the
// optional authorization travels alongside the operation to the bundler.
type UserOperation struct {
	Sender               ecommon.Address
	Nonce                *big.Int
	InitCode             []byte
	CallData             []byte
	CallGasLimit         *big.Int
	VerificationGasLimit *big.Int
	PreVerificationGas   *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	PaymasterAndData     []byte
	Signature            []byte

	Authorization *etypes.SetCodeAuthorization
}

// Hash computes the canonical v0.6 userOpHash the account contract verifies:
// keccak(abi.encode(keccak(packed fields), entryPoint, chainID)).
func (op *UserOperation) Hash(entryPoint ecommon.Address, chainID *big.Int) ecommon.Hash {
	packed := make([]byte, 0, 10*32)
	packed = append(packed, ecommon.LeftPadBytes(op.Sender.Bytes(), 32)...)
	packed = append(packed, ecommon.LeftPadBytes(op.Nonce.Bytes(), 32)...)
	packed = append(packed, crypto.Keccak256(op.InitCode)...)
	packed = append(packed, crypto.Keccak256(op.CallData)...)
	packed = append(packed, ecommon.LeftPadBytes(op.CallGasLimit.Bytes(), 32)...)
	packed = append(packed, ecommon.LeftPadBytes(op.VerificationGasLimit.Bytes(), 32)...)
	packed = append(packed, ecommon.LeftPadBytes(op.PreVerificationGas.Bytes(), 32)...)
	packed = append(packed, ecommon.LeftPadBytes(op.MaxFeePerGas.Bytes(), 32)...)
	packed = append(packed, ecommon.LeftPadBytes(op.MaxPriorityFeePerGas.Bytes(), 32)...)
	packed = append(packed, crypto.Keccak256(op.PaymasterAndData)...)

	outer := make([]byte, 0, 3*32)
	outer = append(outer, crypto.Keccak256(packed)...)
	outer = append(outer, ecommon.LeftPadBytes(entryPoint.Bytes(), 32)...)
	outer = append(outer, ecommon.LeftPadBytes(chainID.Bytes(), 32)...)

	return crypto.Keccak256Hash(outer)
}

// userOpRPC is the JSON wire shape bundlers expect.
type userOpRPC struct {
	Sender               ecommon.Address `json:"sender"`
	Nonce                *hexutil.Big    `json:"nonce"`
	InitCode             hexutil.Bytes   `json:"initCode"`
	CallData             hexutil.Bytes   `json:"callData"`
	CallGasLimit         *hexutil.Big    `json:"callGasLimit"`
	VerificationGasLimit *hexutil.Big    `json:"verificationGasLimit"`
	PreVerificationGas   *hexutil.Big    `json:"preVerificationGas"`
	MaxFeePerGas         *hexutil.Big    `json:"maxFeePerGas"`
	MaxPriorityFeePerGas *hexutil.Big    `json:"maxPriorityFeePerGas"`
	PaymasterAndData     hexutil.Bytes   `json:"paymasterAndData"`
	Signature            hexutil.Bytes   `json:"signature"`

	EIP7702Auth *authRPC `json:"eip7702Auth,omitempty"`
}

type authRPC struct {
	ChainID *hexutil.Big    `json:"chainId"`
	Address ecommon.Address `json:"address"`
	Nonce   hexutil.Uint64  `json:"nonce"`
	YParity hexutil.Uint64  `json:"yParity"`
	R       *hexutil.Big    `json:"r"`
	S       *hexutil.Big    `json:"s"`
}

func (op *UserOperation) toRPC() *userOpRPC {
	out := &userOpRPC{
		Sender:               op.Sender,
		Nonce:                (*hexutil.Big)(op.Nonce),
		InitCode:             op.InitCode,
		CallData:             op.CallData,
		CallGasLimit:         (*hexutil.Big)(op.CallGasLimit),
		VerificationGasLimit: (*hexutil.Big)(op.VerificationGasLimit),
		PreVerificationGas:   (*hexutil.Big)(op.PreVerificationGas),
		MaxFeePerGas:         (*hexutil.Big)(op.MaxFeePerGas),
		MaxPriorityFeePerGas: (*hexutil.Big)(op.MaxPriorityFeePerGas),
		PaymasterAndData:     op.PaymasterAndData,
		Signature:            op.Signature,
	}
	if op.Authorization != nil {
		auth := op.Authorization
		out.EIP7702Auth = &authRPC{
			ChainID: (*hexutil.Big)(auth.ChainID.ToBig()),
			Address: auth.Address,
			Nonce:   hexutil.Uint64(auth.Nonce),
			YParity: hexutil.Uint64(auth.V),
			R:       (*hexutil.Big)(auth.R.ToBig()),
			S:       (*hexutil.Big)(auth.S.ToBig()),
		}
	}
	return out
}
