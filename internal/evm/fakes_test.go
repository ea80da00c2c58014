package evm

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	ecommon "github.com/ethereum/go-ethereum/common"
	etypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/lockbox/custodian/internal/chains"
)

// fakeClient is an in-memory Client with just enough behavior for the
// account paths under test.
type fakeClient struct {
	balances     map[ecommon.Address]*big.Int
	code         map[ecommon.Address][]byte
	callContract func(call ethereum.CallMsg) ([]byte, error)
	pendingNonce uint64
	tipCap       *big.Int
	baseFee      *big.Int
	estimateGas  uint64
	sendErr      error

	sent []*etypes.Transaction
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		balances:    map[ecommon.Address]*big.Int{},
		code:        map[ecommon.Address][]byte{},
		tipCap:      big.NewInt(2_000_000_000),
		baseFee:     big.NewInt(10_000_000_000),
		estimateGas: 60_000,
	}
}

func (f *fakeClient) BalanceAt(_ context.Context, account ecommon.Address, _ *big.Int) (*big.Int, error) {
	if b, ok := f.balances[account]; ok {
		return new(big.Int).Set(b), nil
	}
	return big.NewInt(0), nil
}

func (f *fakeClient) CodeAt(_ context.Context, account ecommon.Address, _ *big.Int) ([]byte, error) {
	return f.code[account], nil
}

func (f *fakeClient) CallContract(_ context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if f.callContract == nil {
		return nil, errors.New("unexpected eth_call")
	}
	return f.callContract(call)
}

func (f *fakeClient) PendingNonceAt(_ context.Context, _ ecommon.Address) (uint64, error) {
	return f.pendingNonce, nil
}

func (f *fakeClient) EstimateGas(_ context.Context, _ ethereum.CallMsg) (uint64, error) {
	return f.estimateGas, nil
}

func (f *fakeClient) SuggestGasTipCap(_ context.Context) (*big.Int, error) {
	return f.tipCap, nil
}

func (f *fakeClient) HeaderByNumber(_ context.Context, _ *big.Int) (*etypes.Header, error) {
	return &etypes.Header{Number: big.NewInt(100), BaseFee: f.baseFee}, nil
}

func (f *fakeClient) SendTransaction(_ context.Context, tx *etypes.Transaction) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	return nil
}

// fakeCaller fakes the bundler/paymaster JSON-RPC surface. Handlers return a
// value that is marshalled and unmarshalled into the caller's result, the
// same round trip a real rpc.Client performs.
type fakeCaller struct {
	handlers map[string]func(args []any) (any, error)
	calls    []rpcCall
}

type rpcCall struct {
	method string
	args   []any
}

func newFakeCaller() *fakeCaller {
	return &fakeCaller{handlers: map[string]func(args []any) (any, error){}}
}

func (f *fakeCaller) CallContext(_ context.Context, result any, method string, args ...any) error {
	f.calls = append(f.calls, rpcCall{method: method, args: args})
	h, ok := f.handlers[method]
	if !ok {
		return errors.New("unexpected rpc method: " + method)
	}
	val, err := h(args)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(val)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, result)
}

func (f *fakeCaller) lastOp(method string) (*userOpRPC, bool) {
	for i := len(f.calls) - 1; i >= 0; i-- {
		if f.calls[i].method == method && len(f.calls[i].args) > 0 {
			op, ok := f.calls[i].args[0].(*userOpRPC)
			return op, ok
		}
	}
	return nil, false
}

func testDescriptor() chains.Descriptor {
	return chains.Descriptor{
		Chain:              chains.Sepolia,
		Model:              chains.ModelEOA,
		EVM:                true,
		EvmChainID:         big.NewInt(11155111),
		NativeDecimals:     18,
		NativeSymbol:       "ETH",
		EntryPoint:         ecommon.HexToAddress("0x5FF137D4b0FDCD49DcA30c7CF57E578a026d2789"),
		AccountFactory:     ecommon.HexToAddress("0x0000000000400CdFef5E2714E63d8040b700BC24"),
		DelegationContract: ecommon.HexToAddress("0x4Cd241E8d1510e30b2076397afc7508Ae59C66c9"),
	}
}
