package evm

import (
	"encoding/json"
	"math/big"
	"testing"

	ecommon "github.com/ethereum/go-ethereum/common"
	etypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func sampleOp() *UserOperation {
	return &UserOperation{
		Sender:               ecommon.HexToAddress("0x9858EfFD232B4033E47d90003D41EC34EcaEda94"),
		Nonce:                big.NewInt(7),
		CallData:             []byte{0x01, 0x02},
		CallGasLimit:         big.NewInt(200_000),
		VerificationGasLimit: big.NewInt(1_000_000),
		PreVerificationGas:   big.NewInt(50_000),
		MaxFeePerGas:         big.NewInt(30_000_000_000),
		MaxPriorityFeePerGas: big.NewInt(2_000_000_000),
	}
}

func TestUserOperationHashDeterministic(t *testing.T) {
	desc := testDescriptor()
	op := sampleOp()

	h1 := op.Hash(desc.EntryPoint, desc.EvmChainID)
	h2 := op.Hash(desc.EntryPoint, desc.EvmChainID)
	require.Equal(t, h1, h2)

	// Every signed field must feed the hash.
	changed := sampleOp()
	changed.Nonce = big.NewInt(8)
	require.NotEqual(t, h1, changed.Hash(desc.EntryPoint, desc.EvmChainID))

	changed = sampleOp()
	changed.CallData = []byte{0x03}
	require.NotEqual(t, h1, changed.Hash(desc.EntryPoint, desc.EvmChainID))

	changed = sampleOp()
	changed.PaymasterAndData = []byte{0xaa}
	require.NotEqual(t, h1, changed.Hash(desc.EntryPoint, desc.EvmChainID))

	// Chain ID separates networks.
	require.NotEqual(t, h1, op.Hash(desc.EntryPoint, big.NewInt(1)))
}

func TestUserOperationRPCShape(t *testing.T) {
	op := sampleOp()
	raw, err := json.Marshal(op.toRPC())
	require.NoError(t, err)

	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &fields))
	require.Contains(t, fields, "sender")
	require.Contains(t, fields, "initCode")
	require.Contains(t, fields, "paymasterAndData")
	require.NotContains(t, fields, "eip7702Auth")
}

func TestUserOperationRPCCarriesAuthorization(t *testing.T) {
	op := sampleOp()
	op.Authorization = &etypes.SetCodeAuthorization{
		ChainID: *uint256.NewInt(11155111),
		Address: testDescriptor().DelegationContract,
		Nonce:   3,
		V:       1,
		R:       *uint256.NewInt(10),
		S:       *uint256.NewInt(20),
	}

	raw, err := json.Marshal(op.toRPC())
	require.NoError(t, err)

	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &fields))
	require.Contains(t, fields, "eip7702Auth")

	var auth map[string]any
	require.NoError(t, json.Unmarshal(fields["eip7702Auth"], &auth))
	require.Equal(t, "0xaa36a7", auth["chainId"])
	require.Equal(t, "0x3", auth["nonce"])
	require.Equal(t, "0x1", auth["yParity"])
}
