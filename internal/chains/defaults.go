package chains

import (
	"math/big"

	ecommon "github.com/ethereum/go-ethereum/common"
)

// Well-known ERC-4337 infrastructure shared across networks.
var (
	// EntryPoint v0.6.
	DefaultEntryPoint = ecommon.HexToAddress("0x5FF137D4b0FDCD49DcA30c7CF57E578a026d2789")
	// Light account factory, same address on every supported network.
	DefaultAccountFactory = ecommon.HexToAddress("0x0000000000400CdFef5E2714E63d8040b700BC24")
	// Simple7702Account delegation target.
	DefaultDelegationContract = ecommon.HexToAddress("0x4Cd241E8d1510e30b2076397afc7508Ae59C66c9")
)

// DefaultDescriptors returns the built-in chain capability table. Bundler and
// RPC endpoints are placeholders meant to be overridden from configuration.
func DefaultDescriptors() []Descriptor {
	return []Descriptor{
		{
			Chain:              Ethereum,
			Model:              ModelEip7702,
			EVM:                true,
			EvmChainID:         big.NewInt(1),
			NativeDecimals:     18,
			NativeSymbol:       "ETH",
			RpcURL:             "https://ethereum-rpc.publicnode.com",
			BundlerURL:         "https://bundler.ethereum.example",
			PaymasterURL:       "https://paymaster.ethereum.example",
			EntryPoint:         DefaultEntryPoint,
			AccountFactory:     DefaultAccountFactory,
			DelegationContract: DefaultDelegationContract,
		},
		// Sepolia keeps EOA as its default model; the delegation contract
		// makes native sends eligible for the sponsored auto-route.
		{
			Chain:              Sepolia,
			Model:              ModelEOA,
			EVM:                true,
			EvmChainID:         big.NewInt(11155111),
			NativeDecimals:     18,
			NativeSymbol:       "ETH",
			RpcURL:             "https://ethereum-sepolia-rpc.publicnode.com",
			BundlerURL:         "https://bundler.sepolia.example",
			PaymasterURL:       "https://paymaster.sepolia.example",
			EntryPoint:         DefaultEntryPoint,
			AccountFactory:     DefaultAccountFactory,
			DelegationContract: DefaultDelegationContract,
		},
		{
			Chain:          Base,
			Model:          ModelErc4337,
			EVM:            true,
			EvmChainID:     big.NewInt(8453),
			NativeDecimals: 18,
			NativeSymbol:   "ETH",
			RpcURL:         "https://base-rpc.publicnode.com",
			BundlerURL:     "https://bundler.base.example",
			PaymasterURL:   "https://paymaster.base.example",
			EntryPoint:     DefaultEntryPoint,
			AccountFactory: DefaultAccountFactory,
		},
		{
			Chain:          Arbitrum,
			Model:          ModelErc4337,
			EVM:            true,
			EvmChainID:     big.NewInt(42161),
			NativeDecimals: 18,
			NativeSymbol:   "ETH",
			RpcURL:         "https://arbitrum-one-rpc.publicnode.com",
			BundlerURL:     "https://bundler.arbitrum.example",
			PaymasterURL:   "https://paymaster.arbitrum.example",
			EntryPoint:     DefaultEntryPoint,
			AccountFactory: DefaultAccountFactory,
		},
		{
			Chain:          Optimism,
			Model:          ModelEOA,
			EVM:            true,
			EvmChainID:     big.NewInt(10),
			NativeDecimals: 18,
			NativeSymbol:   "ETH",
			RpcURL:         "https://optimism-rpc.publicnode.com",
		},
		{
			Chain:          Polygon,
			Model:          ModelEOA,
			EVM:            true,
			EvmChainID:     big.NewInt(137),
			NativeDecimals: 18,
			NativeSymbol:   "POL",
			RpcURL:         "https://polygon-bor-rpc.publicnode.com",
		},
		{
			Chain:          BscChain,
			Model:          ModelEOA,
			EVM:            true,
			EvmChainID:     big.NewInt(56),
			NativeDecimals: 18,
			NativeSymbol:   "BNB",
			RpcURL:         "https://bsc-rpc.publicnode.com",
		},
		{
			Chain:          Polkadot,
			Model:          ModelSubstrate,
			NativeDecimals: 10,
			NativeSymbol:   "DOT",
			RpcURL:         "wss://polkadot-rpc.publicnode.com",
		},
		{
			Chain:          Westend,
			Model:          ModelSubstrate,
			NativeDecimals: 12,
			NativeSymbol:   "WND",
			RpcURL:         "wss://westend-rpc.polkadot.io",
		},
	}
}
