package chains

import (
	"fmt"
	"math/big"
	"strings"

	ecommon "github.com/ethereum/go-ethereum/common"
)

// Chain is a canonical chain key, e.g. "ethereum" or "westend".
type Chain string

const (
	Ethereum Chain = "ethereum"
	Sepolia  Chain = "sepolia"
	Base     Chain = "base"
	Arbitrum Chain = "arbitrum"
	Optimism Chain = "optimism"
	Polygon  Chain = "polygon"
	BscChain Chain = "bsc"
	Westend  Chain = "westend"
	Polkadot Chain = "polkadot"
)

func (c Chain) String() string {
	return string(c)
}

// Model is the account abstraction used to reach a chain. The set is fixed by
// protocol, not open to extension.
type Model string

const (
	ModelEOA       Model = "eoa"
	ModelErc4337   Model = "erc4337"
	ModelEip7702   Model = "eip7702"
	ModelSubstrate Model = "substrate"
)

func (m Model) String() string {
	return string(m)
}

// Erc4337Suffix marks chain-key aliases that pin a request to the ERC-4337
// path, e.g. "base-erc4337".
const Erc4337Suffix = "-erc4337"

// Alias is the result of normalizing a raw chain key: the base chain plus
// whether the key carried the ERC-4337 alias marker. Normalization happens in
// exactly one place so suffix handling never leaks into callers.
type Alias struct {
	Base    Chain
	Erc4337 bool
}

// Normalize strips the ERC-4337 alias suffix from a raw chain key.
func Normalize(raw string) Alias {
	key := strings.ToLower(strings.TrimSpace(raw))
	if strings.HasSuffix(key, Erc4337Suffix) {
		return Alias{
			Base:    Chain(strings.TrimSuffix(key, Erc4337Suffix)),
			Erc4337: true,
		}
	}
	return Alias{Base: Chain(key)}
}

// Descriptor is immutable per-chain configuration, loaded at process start.
type Descriptor struct {
	Chain Chain

	// Model is the chain's default account model. Per-request overrides and
	// the native-send auto-route can pick a different one: a chain may carry
	// a delegation contract while keeping EOA as its default.
	Model Model

	EVM            bool
	EvmChainID     *big.Int
	NativeDecimals int
	NativeSymbol   string

	RpcURL string

	// ERC-4337 parameters.
	BundlerURL     string
	PaymasterURL   string
	EntryPoint     ecommon.Address
	AccountFactory ecommon.Address

	// EIP-7702 delegation target.
	DelegationContract ecommon.Address
}

// Erc4337Capable reports whether the chain has a configured bundler path.
func (d Descriptor) Erc4337Capable() bool {
	return d.BundlerURL != "" && d.EntryPoint != (ecommon.Address{})
}

// Eip7702Capable reports whether the chain has a configured delegation target.
func (d Descriptor) Eip7702Capable() bool {
	return d.DelegationContract != (ecommon.Address{})
}

// Registry is the process-wide, read-only chain capability table.
type Registry struct {
	byChain map[Chain]Descriptor
}

func NewRegistry(descriptors []Descriptor) (*Registry, error) {
	byChain := make(map[Chain]Descriptor, len(descriptors))
	for _, d := range descriptors {
		if d.Chain == "" {
			return nil, fmt.Errorf("descriptor with empty chain key")
		}
		if _, ok := byChain[d.Chain]; ok {
			return nil, fmt.Errorf("duplicate descriptor for chain: %s", d.Chain)
		}
		if d.EVM && d.EvmChainID == nil {
			return nil, fmt.Errorf("missing EVM chain ID for chain: %s", d.Chain)
		}
		byChain[d.Chain] = d
	}
	return &Registry{byChain: byChain}, nil
}

// Describe returns the descriptor for a base chain key. Unknown chains are an
// error, never a zero descriptor: silently defaulting would misroute funds.
func (r *Registry) Describe(chain Chain) (Descriptor, error) {
	d, ok := r.byChain[chain]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrUnsupportedChain, chain)
	}
	return d, nil
}

func (r *Registry) IsErc4337Enabled(chain Chain) bool {
	d, ok := r.byChain[chain]
	return ok && d.Erc4337Capable()
}

func (r *Registry) IsEip7702Enabled(chain Chain) bool {
	d, ok := r.byChain[chain]
	return ok && d.Eip7702Capable()
}

// Chains returns every registered chain key.
func (r *Registry) Chains() []Chain {
	out := make([]Chain, 0, len(r.byChain))
	for c := range r.byChain {
		out = append(out, c)
	}
	return out
}

// Descriptors returns every registered descriptor.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(r.byChain))
	for _, d := range r.byChain {
		out = append(out, d)
	}
	return out
}
