package evm

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	ecommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"

	"github.com/lockbox/custodian/internal/account"
	"github.com/lockbox/custodian/internal/chains"
	"github.com/lockbox/custodian/internal/store"
)

// Network bundles everything needed to operate one EVM chain: the node
// connection plus the optional account-abstraction endpoints.
type Network struct {
	Desc      chains.Descriptor
	RPC       Client
	Bundler   *BundlerClient
	Paymaster *PaymasterClient
}

// NewNetwork dials the chain's RPC node and, when the descriptor carries
// them, the bundler and paymaster endpoints.
func NewNetwork(desc chains.Descriptor) (*Network, error) {
	rpc, err := ethclient.Dial(desc.RpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s rpc: %w", desc.Chain, err)
	}

	n := &Network{Desc: desc, RPC: rpc}

	if desc.BundlerURL != "" {
		n.Bundler, err = DialBundler(desc.BundlerURL)
		if err != nil {
			return nil, err
		}
	}
	if desc.PaymasterURL != "" {
		n.Paymaster, err = DialPaymaster(desc.PaymasterURL)
		if err != nil {
			return nil, err
		}
	}
	return n, nil
}

func (n *Network) NativeBalance(ctx context.Context, address string) (*big.Int, error) {
	addr, err := parseAddress(address)
	if err != nil {
		return nil, err
	}
	return newBalanceService(n.RPC).GetNativeBalance(ctx, addr)
}

func (n *Network) TokenBalance(ctx context.Context, token, address string) (*big.Int, error) {
	tokenAddr, err := parseAddress(token)
	if err != nil {
		return nil, err
	}
	addr, err := parseAddress(address)
	if err != nil {
		return nil, err
	}
	if tokenAddr == (ecommon.Address{}) {
		return newBalanceService(n.RPC).GetNativeBalance(ctx, addr)
	}
	return newBalanceService(n.RPC).GetERC20Balance(ctx, tokenAddr, addr)
}

func (n *Network) TokenDecimals(ctx context.Context, token string) (uint8, error) {
	tokenAddr, err := parseAddress(token)
	if err != nil {
		return 0, err
	}
	return newDecimalsService(n.RPC).GetDecimals(ctx, tokenAddr)
}

// Manager owns one Network per configured EVM chain and builds accounts
// on them.
type Manager struct {
	networks    map[chains.Chain]*Network
	delegation  store.DelegationStore
	deployments store.DeploymentStore
	logger      *logrus.Logger
}

func NewManager(
	registry *chains.Registry,
	delegation store.DelegationStore,
	deployments store.DeploymentStore,
	logger *logrus.Logger,
) (*Manager, error) {
	networks := make(map[chains.Chain]*Network)
	for _, desc := range registry.Descriptors() {
		if !desc.EVM {
			continue
		}
		n, err := NewNetwork(desc)
		if err != nil {
			return nil, err
		}
		networks[desc.Chain] = n
	}
	return &Manager{
		networks:    networks,
		delegation:  delegation,
		deployments: deployments,
		logger:      logger,
	}, nil
}

func (m *Manager) Network(chain chains.Chain) (*Network, error) {
	n, ok := m.networks[chain]
	if !ok {
		return nil, fmt.Errorf("%w: %s", chains.ErrUnsupportedChain, chain)
	}
	return n, nil
}

// NewAccount builds an account of the requested model on the chain's
// network. The EOA model needs nothing beyond the node; the abstraction
// models need the bundler configured on the network.
func (m *Manager) NewAccount(
	ctx context.Context,
	chain chains.Chain,
	model chains.Model,
	key *ecdsa.PrivateKey,
	ownerID string,
) (account.Account, error) {
	n, err := m.Network(chain)
	if err != nil {
		return nil, err
	}

	switch model {
	case chains.ModelEOA:
		return NewEOAAccount(key, n.Desc, n.RPC, m.logger), nil
	case chains.ModelErc4337:
		if n.Bundler == nil {
			return nil, fmt.Errorf("no bundler configured for %s", chain)
		}
		return NewSmartAccount(ctx, key, ownerID, n.Desc, n.RPC, n.Bundler, n.Paymaster, m.deployments, m.logger)
	case chains.ModelEip7702:
		if n.Bundler == nil {
			return nil, fmt.Errorf("no bundler configured for %s", chain)
		}
		return NewDelegatedAccount(ctx, key, ownerID, n.Desc, n.RPC, n.Bundler, n.Paymaster, m.delegation, m.logger)
	default:
		return nil, fmt.Errorf("unsupported account model %q on %s", model, chain)
	}
}

// TokenDecimals reads decimals() for a token on the chain's network.
func (m *Manager) TokenDecimals(ctx context.Context, chain chains.Chain, token string) (uint8, error) {
	n, err := m.Network(chain)
	if err != nil {
		return 0, err
	}
	return n.TokenDecimals(ctx, token)
}

// Balance reads an address's balance on the chain's network. An empty token
// means the native asset.
func (m *Manager) Balance(ctx context.Context, chain chains.Chain, address, token string) (*big.Int, error) {
	n, err := m.Network(chain)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return n.NativeBalance(ctx, address)
	}
	return n.TokenBalance(ctx, token, address)
}
