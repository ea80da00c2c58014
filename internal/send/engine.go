package send

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lockbox/custodian/internal/account"
	"github.com/lockbox/custodian/internal/cache"
	"github.com/lockbox/custodian/internal/chains"
	"github.com/lockbox/custodian/internal/decimals"
	"github.com/lockbox/custodian/internal/evm"
	"github.com/lockbox/custodian/internal/metrics"
	"github.com/lockbox/custodian/internal/ratelimit"
	"github.com/lockbox/custodian/internal/reconcile"
	"github.com/lockbox/custodian/internal/status"
	"github.com/lockbox/custodian/internal/substrate"
	"github.com/lockbox/custodian/internal/util"
	"github.com/lockbox/custodian/internal/vault"
)

// Overrides are per-request routing controls.
type Overrides struct {
	ForceErc4337 bool `json:"forceErc4337"`
	ForceEip7702 bool `json:"forceEip7702"`

	// SkipAutoRoute disables the transparent redirect of native sends on
	// delegation-capable chains to the sponsored path.
	SkipAutoRoute bool `json:"skipAutoRoute"`
}

// Request is one value-transfer order.
type Request struct {
	OwnerID string `json:"ownerId"`
	Chain   string `json:"chain"`
	To      string `json:"to"`
	Amount  string `json:"amount"`

	// Token is the asset contract address; empty means the native asset.
	Token         string `json:"token,omitempty"`
	TokenDecimals *int   `json:"tokenDecimals,omitempty"`

	Index     uint32    `json:"index"`
	Overrides Overrides `json:"overrides"`
}

// Result reports a dispatched send. Hash is always set; TxHash only when the
// operation's inclusion was confirmed before polling gave up.
type Result struct {
	Chain     chains.Chain `json:"chain"`
	Model     chains.Model `json:"model"`
	Address   string       `json:"address"`
	Hash      string       `json:"hash"`
	TxHash    string       `json:"txHash,omitempty"`
	Sponsored bool         `json:"sponsored"`
}

// EvmManager builds accounts and exposes per-chain networks.
type EvmManager interface {
	NewAccount(ctx context.Context, chain chains.Chain, model chains.Model, key *ecdsa.PrivateKey, ownerID string) (account.Account, error)
	Network(chain chains.Chain) (*evm.Network, error)
}

// Engine orchestrates one send end to end: seed, routing, derivation,
// decimals, balance reconciliation, rate limiting, dispatch.
type Engine struct {
	vault      *vault.Manager
	registry   *chains.Registry
	evm        EvmManager
	substrate  substrate.Client
	decimals   *decimals.Resolver
	reconciler *reconcile.Reconciler
	limiter    *ratelimit.Limiter
	balances   *cache.Balances
	poller     *status.Poller
	logger     *logrus.Logger
}

func NewEngine(
	vaultMgr *vault.Manager,
	registry *chains.Registry,
	evmMgr EvmManager,
	substrateClient substrate.Client,
	decimalsResolver *decimals.Resolver,
	reconciler *reconcile.Reconciler,
	limiter *ratelimit.Limiter,
	balances *cache.Balances,
	poller *status.Poller,
	logger *logrus.Logger,
) *Engine {
	return &Engine{
		vault:      vaultMgr,
		registry:   registry,
		evm:        evmMgr,
		substrate:  substrateClient,
		decimals:   decimalsResolver,
		reconciler: reconciler,
		limiter:    limiter,
		balances:   balances,
		poller:     poller,
		logger:     logger.WithField("pkg", "send.Engine").Logger,
	}
}

// Send runs the full orchestration. Failures come back as *Error with the
// original cause preserved.
func (e *Engine) Send(ctx context.Context, req Request) (*Result, error) {
	started := time.Now()
	res, err := e.send(ctx, req)
	if err != nil {
		classified := classify(err, "dispatch")
		e.logger.WithError(err).WithFields(logrus.Fields{
			"owner": req.OwnerID,
			"chain": req.Chain,
			"kind":  string(classified.Kind),
		}).Error("send failed")
		metrics.RecordSend(req.Chain, "", string(classified.Kind), time.Since(started))
		return nil, classified
	}

	metrics.RecordSend(res.Chain.String(), res.Model.String(), "success", time.Since(started))
	if res.Sponsored {
		metrics.RecordSponsoredOp(res.Chain.String())
	}
	return res, nil
}

func (e *Engine) send(ctx context.Context, req Request) (*Result, error) {
	phrase, err := e.vault.EnsureSeed(ctx, req.OwnerID)
	if err != nil {
		return nil, err
	}

	if err := util.ValidateAmount(req.Amount); err != nil {
		return nil, newError(KindValidation, "amount is not a valid decimal string", err)
	}

	alias := chains.Normalize(req.Chain)
	desc, err := e.registry.Describe(alias.Base)
	if err != nil {
		return nil, err
	}

	model, err := e.resolveModel(alias, desc, req.Overrides)
	if err != nil {
		return nil, err
	}

	// A native send resolved to a direct transaction on a chain that runs
	// the sponsored flow would go out with no gas sponsorship and fail once
	// broadcast. Redirect instead of letting the caller hit that.
	if model == chains.ModelEOA && req.Token == "" && !req.Overrides.SkipAutoRoute &&
		e.registry.IsEip7702Enabled(alias.Base) {
		model = chains.ModelEip7702
	}
	sponsored := model == chains.ModelErc4337 || model == chains.ModelEip7702

	key, err := account.DeriveKey(phrase, req.Index)
	if err != nil {
		return nil, err
	}

	acct, err := e.buildAccount(ctx, alias.Base, model, key, req.OwnerID)
	if err != nil {
		return nil, err
	}

	dec := desc.NativeDecimals
	if req.Token != "" {
		dec, err = e.decimals.Resolve(ctx, alias.Base, req.Token, req.TokenDecimals)
		if err != nil {
			return nil, newError(KindUnavailable, "cannot determine token decimals", err)
		}
	}

	baseUnits, err := util.ToBaseUnits(req.Amount, dec)
	if err != nil {
		return nil, newError(KindValidation, "amount does not fit the token's precision", err)
	}

	if err := e.reconciler.Check(ctx, req.OwnerID, alias.Base, acct.Address(), req.Token, baseUnits); err != nil {
		return nil, err
	}

	if sponsored {
		if err := e.limiter.Check(req.OwnerID, alias.Base, ratelimit.FlowGaslessSend); err != nil {
			metrics.RecordRateLimitRejection(alias.Base.String())
			return nil, err
		}
	}

	var hash string
	if req.Token == "" {
		hash, err = acct.Send(ctx, req.To, baseUnits)
	} else {
		hash, err = acct.Transfer(ctx, req.Token, req.To, baseUnits)
	}
	if err != nil {
		return nil, err
	}

	e.balances.Invalidate(req.OwnerID, alias.Base)

	res := &Result{
		Chain:     alias.Base,
		Model:     model,
		Address:   acct.Address(),
		Hash:      hash,
		Sponsored: sponsored,
	}
	if !sponsored {
		res.TxHash = hash
	} else if e.poller != nil {
		e.awaitReceipt(ctx, alias.Base, hash, res)
	}

	e.logger.WithFields(logrus.Fields{
		"owner": req.OwnerID,
		"chain": alias.Base.String(),
		"model": model.String(),
		"hash":  hash,
	}).Info("send dispatched")

	return res, nil
}

// resolveModel picks the account model for a normalized chain key, first
// match wins. Explicit overrides outrank the chain's configured default
// model, which outranks the plain-EOA fallback. A capable chain whose
// configured model is EOA still resolves to EOA here; only the native-send
// auto-route in send() may upgrade it afterwards.
func (e *Engine) resolveModel(alias chains.Alias, desc chains.Descriptor, ov Overrides) (chains.Model, error) {
	switch {
	case ov.ForceErc4337:
		return chains.ModelErc4337, nil
	case ov.ForceEip7702:
		if alias.Erc4337 {
			return "", newError(KindValidation,
				fmt.Sprintf("chain %s%s only serves ERC-4337 sends, use the ERC-4337 endpoint", alias.Base, chains.Erc4337Suffix), nil)
		}
		return chains.ModelEip7702, nil
	case alias.Erc4337:
		return chains.ModelErc4337, nil
	case desc.Model == chains.ModelEip7702 && e.registry.IsEip7702Enabled(alias.Base):
		return chains.ModelEip7702, nil
	case desc.Model == chains.ModelErc4337 && e.registry.IsErc4337Enabled(alias.Base):
		return chains.ModelErc4337, nil
	case desc.EVM:
		return chains.ModelEOA, nil
	default:
		return chains.ModelSubstrate, nil
	}
}

func (e *Engine) buildAccount(
	ctx context.Context,
	chain chains.Chain,
	model chains.Model,
	key *ecdsa.PrivateKey,
	ownerID string,
) (account.Account, error) {
	if model == chains.ModelSubstrate {
		if e.substrate == nil {
			return nil, newError(KindConfig, fmt.Sprintf("no substrate gateway configured for %s", chain), nil)
		}
		desc, err := e.registry.Describe(chain)
		if err != nil {
			return nil, err
		}
		return substrate.NewAccount(key, desc, e.substrate, e.logger)
	}
	return e.evm.NewAccount(ctx, chain, model, key, ownerID)
}

// awaitReceipt polls the chain's bundler briefly for the operation's
// inclusion. Exhausting the attempts leaves TxHash empty; the operation may
// still land, so this is never an error.
func (e *Engine) awaitReceipt(ctx context.Context, chain chains.Chain, opHash string, res *Result) {
	n, err := e.evm.Network(chain)
	if err != nil || n.Bundler == nil {
		return
	}
	outcome := e.poller.Await(ctx, n.Bundler, opHash)
	if !outcome.Known {
		metrics.RecordStatusUnknown()
		return
	}
	res.TxHash = outcome.TxHash
}
