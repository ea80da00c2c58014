package send

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/lockbox/custodian/internal/account"
	"github.com/lockbox/custodian/internal/cache"
	"github.com/lockbox/custodian/internal/chains"
	"github.com/lockbox/custodian/internal/decimals"
	"github.com/lockbox/custodian/internal/evm"
	"github.com/lockbox/custodian/internal/ratelimit"
	"github.com/lockbox/custodian/internal/reconcile"
	"github.com/lockbox/custodian/internal/status"
	"github.com/lockbox/custodian/internal/store"
	"github.com/lockbox/custodian/internal/vault"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

// fakeAccount records dispatches.
type fakeAccount struct {
	address   string
	sends     []dispatch
	transfers []dispatch
	err       error
}

type dispatch struct {
	token  string
	to     string
	amount *big.Int
}

func (f *fakeAccount) Address() string { return f.address }

func (f *fakeAccount) Balance(_ context.Context) (*big.Int, error) { return big.NewInt(0), nil }

func (f *fakeAccount) Send(_ context.Context, to string, amount *big.Int) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sends = append(f.sends, dispatch{to: to, amount: amount})
	return "0xhash", nil
}

func (f *fakeAccount) Transfer(_ context.Context, token, to string, amount *big.Int) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.transfers = append(f.transfers, dispatch{token: token, to: to, amount: amount})
	return "0xhash", nil
}

// fakeEvmManager hands out one fakeAccount and remembers how it was asked
// to build it.
type fakeEvmManager struct {
	account   *fakeAccount
	buildErr  error
	lastChain chains.Chain
	lastModel chains.Model
	lastOwner string
	network   *evm.Network
}

func (f *fakeEvmManager) NewAccount(_ context.Context, chain chains.Chain, model chains.Model, _ *ecdsa.PrivateKey, ownerID string) (account.Account, error) {
	f.lastChain = chain
	f.lastModel = model
	f.lastOwner = ownerID
	if f.buildErr != nil {
		return nil, f.buildErr
	}
	return f.account, nil
}

func (f *fakeEvmManager) Network(chain chains.Chain) (*evm.Network, error) {
	if f.network == nil {
		return nil, chains.ErrUnsupportedChain
	}
	return f.network, nil
}

type fakeBalanceIndexer struct {
	balance *big.Int
	err     error
	calls   int
}

func (f *fakeBalanceIndexer) GetBalance(_ context.Context, _ chains.Chain, _, _ string) (*big.Int, error) {
	f.calls++
	return f.balance, f.err
}

type fakeChainBalances struct {
	balance *big.Int
	calls   int
}

func (f *fakeChainBalances) Balance(_ context.Context, _ chains.Chain, _, _ string) (*big.Int, error) {
	f.calls++
	return f.balance, nil
}

type fakeDecimalsIndexer struct {
	decimals int
	err      error
	calls    int
}

func (f *fakeDecimalsIndexer) GetTokenDecimals(_ context.Context, _ chains.Chain, _ string) (int, error) {
	f.calls++
	return f.decimals, f.err
}

type fakeDecimalsChain struct {
	decimals uint8
	calls    int
}

func (f *fakeDecimalsChain) TokenDecimals(_ context.Context, _ chains.Chain, _ string) (uint8, error) {
	f.calls++
	return f.decimals, nil
}

// harness wires a full engine over fakes and a real in-memory vault.
type harness struct {
	engine          *Engine
	evm             *fakeEvmManager
	account         *fakeAccount
	seeds           *store.Memory
	balances        *cache.Balances
	balanceIndexer  *fakeBalanceIndexer
	chainBalances   *fakeChainBalances
	decimalsIndexer *fakeDecimalsIndexer
	decimalsChain   *fakeDecimalsChain
}

func testRegistry(t *testing.T) *chains.Registry {
	t.Helper()
	delegation := chains.DefaultDelegationContract
	registry, err := chains.NewRegistry([]chains.Descriptor{
		{
			Chain: chains.Sepolia, Model: chains.ModelEOA, EVM: true,
			EvmChainID: big.NewInt(11155111), NativeDecimals: 18, NativeSymbol: "ETH",
		},
		{
			Chain: chains.Base, Model: chains.ModelEip7702, EVM: true,
			EvmChainID: big.NewInt(8453), NativeDecimals: 18, NativeSymbol: "ETH",
			BundlerURL: "http://bundler", EntryPoint: chains.DefaultEntryPoint,
			DelegationContract: delegation,
		},
		{
			Chain: chains.Arbitrum, Model: chains.ModelErc4337, EVM: true,
			EvmChainID: big.NewInt(42161), NativeDecimals: 18, NativeSymbol: "ETH",
			BundlerURL: "http://bundler", EntryPoint: chains.DefaultEntryPoint,
			AccountFactory: chains.DefaultAccountFactory,
		},
		// Delegation-capable but EOA by default: native sends should be
		// upgraded by the auto-route, token sends should not.
		{
			Chain: chains.Optimism, Model: chains.ModelEOA, EVM: true,
			EvmChainID: big.NewInt(10), NativeDecimals: 18, NativeSymbol: "ETH",
			BundlerURL: "http://bundler", EntryPoint: chains.DefaultEntryPoint,
			DelegationContract: delegation,
		},
		{
			Chain: chains.Westend, Model: chains.ModelSubstrate,
			NativeDecimals: 12, NativeSymbol: "WND",
		},
	})
	require.NoError(t, err)
	return registry
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := logrus.New()

	cipher, err := vault.NewCipher(testKey)
	require.NoError(t, err)
	seeds := store.NewMemory()

	h := &harness{
		account:         &fakeAccount{address: "0x00000000000000000000000000000000000000AA"},
		seeds:           seeds,
		balances:        cache.NewBalances(64, time.Minute),
		balanceIndexer:  &fakeBalanceIndexer{balance: big.NewInt(1e18)},
		chainBalances:   &fakeChainBalances{balance: big.NewInt(1e18)},
		decimalsIndexer: &fakeDecimalsIndexer{decimals: 6},
		decimalsChain:   &fakeDecimalsChain{decimals: 6},
	}
	h.evm = &fakeEvmManager{account: h.account}

	h.engine = NewEngine(
		vault.NewManager(cipher, seeds, logger),
		testRegistry(t),
		h.evm,
		nil,
		decimals.NewResolver(h.decimalsIndexer, h.decimalsChain, logger),
		reconcile.NewReconciler(h.balanceIndexer, h.chainBalances, h.balances, logger),
		ratelimit.NewLimiter(2, time.Minute),
		h.balances,
		nil,
		logger,
	)
	return h
}

func nativeRequest(chain string) Request {
	return Request{
		OwnerID: "owner-1",
		Chain:   chain,
		To:      "0x9858EfFD232B4033E47d90003D41EC34EcaEda94",
		Amount:  "0.01",
	}
}

func TestSendHappyPathProvisionsSeedAndAutoRoutes(t *testing.T) {
	h := newHarness(t)

	has, err := h.seeds.HasSeed(context.Background(), "owner-1")
	require.NoError(t, err)
	require.False(t, has)

	res, err := h.engine.Send(context.Background(), nativeRequest("base"))
	require.NoError(t, err)
	require.Equal(t, "0xhash", res.Hash)
	require.Equal(t, chains.Base, res.Chain)
	// Delegation-capable chain: native send rides the sponsored path.
	require.Equal(t, chains.ModelEip7702, res.Model)
	require.True(t, res.Sponsored)

	// First use provisioned a seed.
	has, err = h.seeds.HasSeed(context.Background(), "owner-1")
	require.NoError(t, err)
	require.True(t, has)

	require.Len(t, h.account.sends, 1)
	// 0.01 ETH in wei.
	require.Equal(t, big.NewInt(10_000_000_000_000_000), h.account.sends[0].amount)
}

func TestSendAutoRoutesNativeOnDelegationCapableChain(t *testing.T) {
	h := newHarness(t)

	// Default model is EOA, but the chain carries a delegation contract.
	res, err := h.engine.Send(context.Background(), nativeRequest("optimism"))
	require.NoError(t, err)
	require.Equal(t, chains.ModelEip7702, res.Model)
	require.True(t, res.Sponsored)
	require.Equal(t, chains.ModelEip7702, h.evm.lastModel)
}

func TestSendSkipAutoRouteKeepsEOA(t *testing.T) {
	h := newHarness(t)

	req := nativeRequest("optimism")
	req.Overrides.SkipAutoRoute = true

	res, err := h.engine.Send(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, chains.ModelEOA, res.Model)
	require.False(t, res.Sponsored)
	require.Equal(t, res.Hash, res.TxHash)
}

func TestSendTokenTransferNotAutoRouted(t *testing.T) {
	h := newHarness(t)

	req := nativeRequest("optimism")
	req.Token = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
	req.Amount = "100.5"

	res, err := h.engine.Send(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, chains.ModelEOA, res.Model)
	require.False(t, res.Sponsored)
}

func TestSendEOAPath(t *testing.T) {
	h := newHarness(t)

	res, err := h.engine.Send(context.Background(), nativeRequest("sepolia"))
	require.NoError(t, err)
	require.Equal(t, chains.ModelEOA, res.Model)
	require.False(t, res.Sponsored)
	require.Equal(t, res.Hash, res.TxHash)
	require.Equal(t, chains.ModelEOA, h.evm.lastModel)
}

func TestSendErc4337AliasRouting(t *testing.T) {
	h := newHarness(t)

	res, err := h.engine.Send(context.Background(), nativeRequest("sepolia-erc4337"))
	require.NoError(t, err)
	require.Equal(t, chains.Sepolia, res.Chain)
	require.Equal(t, chains.ModelErc4337, res.Model)
}

func TestSendAliasRejectsEip7702Override(t *testing.T) {
	h := newHarness(t)

	req := nativeRequest("sepolia-erc4337")
	req.Overrides.ForceEip7702 = true

	_, err := h.engine.Send(context.Background(), req)
	var classified *Error
	require.ErrorAs(t, err, &classified)
	require.Equal(t, KindValidation, classified.Kind)
	require.Contains(t, classified.Message, "ERC-4337 endpoint")
}

func TestSendTokenWithFrontendDecimals(t *testing.T) {
	h := newHarness(t)

	dec := 6
	req := nativeRequest("sepolia")
	req.Token = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
	req.TokenDecimals = &dec
	req.Amount = "100.5"

	_, err := h.engine.Send(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, h.account.transfers, 1)
	require.Equal(t, big.NewInt(100_500_000), h.account.transfers[0].amount)
	// A valid hint means no metadata lookups at all.
	require.Zero(t, h.decimalsIndexer.calls)
	require.Zero(t, h.decimalsChain.calls)
}

func TestSendStaleIndexerBalance(t *testing.T) {
	h := newHarness(t)
	h.balanceIndexer.balance = big.NewInt(0)
	h.chainBalances.balance = big.NewInt(1e18)

	_, err := h.engine.Send(context.Background(), nativeRequest("sepolia"))
	require.NoError(t, err)
	require.Equal(t, 1, h.chainBalances.calls)
}

func TestSendInsufficientFunds(t *testing.T) {
	h := newHarness(t)
	h.balanceIndexer.balance = big.NewInt(1)
	h.chainBalances.balance = big.NewInt(2)

	_, err := h.engine.Send(context.Background(), nativeRequest("sepolia"))
	var classified *Error
	require.ErrorAs(t, err, &classified)
	require.Equal(t, KindInsufficientFunds, classified.Kind)
	require.ErrorIs(t, err, reconcile.ErrInsufficientFunds)
	require.Empty(t, h.account.sends)
}

func TestSendValidationErrors(t *testing.T) {
	h := newHarness(t)

	for _, amount := range []string{"", "0", "-1", "1e18", "abc"} {
		req := nativeRequest("sepolia")
		req.Amount = amount

		_, err := h.engine.Send(context.Background(), req)
		var classified *Error
		require.ErrorAs(t, err, &classified, "amount %q", amount)
		require.Equal(t, KindValidation, classified.Kind, "amount %q", amount)
	}
}

func TestSendUnsupportedChain(t *testing.T) {
	h := newHarness(t)

	_, err := h.engine.Send(context.Background(), nativeRequest("dogecoin"))
	var classified *Error
	require.ErrorAs(t, err, &classified)
	require.Equal(t, KindConfig, classified.Kind)
}

func TestSendRateLimitsSponsoredFlow(t *testing.T) {
	h := newHarness(t)

	for i := 0; i < 2; i++ {
		_, err := h.engine.Send(context.Background(), nativeRequest("base"))
		require.NoError(t, err)
	}

	_, err := h.engine.Send(context.Background(), nativeRequest("base"))
	var classified *Error
	require.ErrorAs(t, err, &classified)
	require.Equal(t, KindRateLimited, classified.Kind)
	require.True(t, classified.Retryable())
	require.Len(t, h.account.sends, 2)
}

func TestSendEOAPathNotRateLimited(t *testing.T) {
	h := newHarness(t)

	for i := 0; i < 5; i++ {
		_, err := h.engine.Send(context.Background(), nativeRequest("sepolia"))
		require.NoError(t, err)
	}
	require.Len(t, h.account.sends, 5)
}

func TestSendInvalidatesBalanceCache(t *testing.T) {
	h := newHarness(t)

	// Two sequential sends must both hit the indexer: the first send
	// invalidates what it cached.
	_, err := h.engine.Send(context.Background(), nativeRequest("sepolia"))
	require.NoError(t, err)
	_, err = h.engine.Send(context.Background(), nativeRequest("sepolia"))
	require.NoError(t, err)
	require.Equal(t, 2, h.balanceIndexer.calls)
}

func TestSendCorruptedSeedIsTampered(t *testing.T) {
	h := newHarness(t)

	// Provision, then flip a byte of the stored auth tag.
	_, err := h.engine.Send(context.Background(), nativeRequest("sepolia"))
	require.NoError(t, err)

	sealed, err := h.seeds.GetSeed(context.Background(), "owner-1")
	require.NoError(t, err)
	sealed.AuthTag[0] ^= 0xff
	require.NoError(t, h.seeds.PutSeed(context.Background(), "owner-1", sealed))

	_, err = h.engine.Send(context.Background(), nativeRequest("sepolia"))
	var classified *Error
	require.ErrorAs(t, err, &classified)
	require.Equal(t, KindTampered, classified.Kind)
	require.ErrorIs(t, err, vault.ErrSeedTampered)
}

func TestSendProtocolErrorsAreFatal(t *testing.T) {
	h := newHarness(t)
	h.evm.buildErr = evm.ErrDelegationTargetMissing

	_, err := h.engine.Send(context.Background(), nativeRequest("base"))
	var classified *Error
	require.ErrorAs(t, err, &classified)
	require.Equal(t, KindProtocol, classified.Kind)
	require.False(t, classified.Retryable())
}

func TestSendUnknownErrorKeepsCause(t *testing.T) {
	h := newHarness(t)
	cause := errors.New("bundler exploded")
	h.account.err = cause

	_, err := h.engine.Send(context.Background(), nativeRequest("sepolia"))
	var classified *Error
	require.ErrorAs(t, err, &classified)
	require.Equal(t, KindUnknown, classified.Kind)
	require.ErrorIs(t, err, cause)
}

func TestSendDecimalsFallbackFailureNamesSources(t *testing.T) {
	h := newHarness(t)
	h.decimalsIndexer.err = errors.New("indexer down")
	h.decimalsChain.decimals = 0

	req := nativeRequest("sepolia")
	req.Token = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"

	// On-chain fallback succeeds (decimals 0 is legal), so this send still
	// goes through without a hint.
	_, err := h.engine.Send(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 1, h.decimalsIndexer.calls)
	require.Equal(t, 1, h.decimalsChain.calls)
}

func TestResolveModelPriority(t *testing.T) {
	h := newHarness(t)

	cases := []struct {
		name  string
		chain string
		ov    Overrides
		want  chains.Model
	}{
		{"force erc4337 beats delegation flag", "base", Overrides{ForceErc4337: true}, chains.ModelErc4337},
		{"force eip7702 on plain chain", "sepolia", Overrides{ForceEip7702: true}, chains.ModelEip7702},
		{"alias wins without override", "sepolia-erc4337", Overrides{}, chains.ModelErc4337},
		{"delegation flag wins over erc4337 flag", "base", Overrides{}, chains.ModelEip7702},
		{"erc4337 flag", "arbitrum", Overrides{}, chains.ModelErc4337},
		{"plain evm", "sepolia", Overrides{}, chains.ModelEOA},
		{"delegation-capable chain with eoa default", "optimism", Overrides{}, chains.ModelEOA},
		{"non-evm", "westend", Overrides{}, chains.ModelSubstrate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			alias := chains.Normalize(tc.chain)
			desc, err := h.engine.registry.Describe(alias.Base)
			require.NoError(t, err)

			model, err := h.engine.resolveModel(alias, desc, tc.ov)
			require.NoError(t, err)
			require.Equal(t, tc.want, model)
		})
	}
}

func TestResolveModelAliasIdempotent(t *testing.T) {
	h := newHarness(t)

	alias := chains.Normalize("arbitrum-erc4337")
	desc, err := h.engine.registry.Describe(alias.Base)
	require.NoError(t, err)
	viaAlias, err := h.engine.resolveModel(alias, desc, Overrides{})
	require.NoError(t, err)

	base := chains.Normalize("arbitrum")
	viaBase, err := h.engine.resolveModel(base, desc, Overrides{})
	require.NoError(t, err)

	require.Equal(t, viaBase, viaAlias)
}

type receiptCaller struct {
	receipts int
}

func (r *receiptCaller) CallContext(_ context.Context, result any, method string, _ ...any) error {
	if method != "eth_getUserOperationReceipt" {
		return errors.New("unexpected rpc method: " + method)
	}
	r.receipts++
	raw := []byte(`{"userOpHash":"0xhash","success":true,"receipt":{"transactionHash":"0xincluded"}}`)
	return json.Unmarshal(raw, result)
}

func TestSendSponsoredAwaitsReceipt(t *testing.T) {
	h := newHarness(t)
	caller := &receiptCaller{}
	h.evm.network = &evm.Network{Bundler: evm.NewBundlerClient(caller)}
	h.engine.poller = status.NewPoller(3, time.Millisecond, logrus.New())

	res, err := h.engine.Send(context.Background(), nativeRequest("base"))
	require.NoError(t, err)
	require.Equal(t, "0xhash", res.Hash)
	require.Equal(t, "0xincluded", res.TxHash)
	require.Equal(t, 1, caller.receipts)
}
