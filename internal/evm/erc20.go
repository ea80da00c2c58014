package evm

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	ecommon "github.com/ethereum/go-ethereum/common"
)

// erc20ABI covers the three token methods the engine calls. The fragment is
// inlined rather than generated: the signatures are fixed by the standard.
var erc20ABI = mustABI(`[
	{"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"type":"uint8"}]},
	{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"type":"uint256"}]},
	{"type":"function","name":"transfer","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"type":"bool"}]}
]`)

var (
	selDecimals  = erc20ABI.Methods["decimals"].ID
	selBalanceOf = erc20ABI.Methods["balanceOf"].ID
	selTransfer  = erc20ABI.Methods["transfer"].ID
)

func mustABI(fragment string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(fragment))
	if err != nil {
		panic(err)
	}
	return parsed
}

// packDecimals is selector-only; decimals() takes no arguments.
func packDecimals() []byte {
	return append([]byte(nil), selDecimals...)
}

func packBalanceOf(owner ecommon.Address) ([]byte, error) {
	data, err := erc20ABI.Pack("balanceOf", owner)
	if err != nil {
		return nil, fmt.Errorf("failed to pack balanceOf: %w", err)
	}
	return data, nil
}

func packTransfer(to ecommon.Address, amount *big.Int) ([]byte, error) {
	data, err := erc20ABI.Pack("transfer", to, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to pack transfer: %w", err)
	}
	return data, nil
}

func unpackBalanceOf(ret []byte) (*big.Int, error) {
	vals, err := erc20ABI.Unpack("balanceOf", ret)
	if err != nil {
		return nil, fmt.Errorf("failed to decode balanceOf return: %w", err)
	}
	balance, ok := vals[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected balanceOf return type %T", vals[0])
	}
	return balance, nil
}

func unpackDecimals(ret []byte) (uint8, error) {
	vals, err := erc20ABI.Unpack("decimals", ret)
	if err != nil {
		return 0, fmt.Errorf("failed to decode decimals return: %w", err)
	}
	decimals, ok := vals[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("unexpected decimals return type %T", vals[0])
	}
	return decimals, nil
}
