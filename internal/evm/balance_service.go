package evm

import (
	"context"
	"fmt"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	ecommon "github.com/ethereum/go-ethereum/common"
)

type balanceService struct {
	rpc Client
}

func newBalanceService(rpc Client) *balanceService {
	return &balanceService{rpc: rpc}
}

func (s *balanceService) GetNativeBalance(ctx context.Context, address ecommon.Address) (*big.Int, error) {
	balance, err := s.rpc.BalanceAt(ctx, address, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get native balance: %w", err)
	}
	return balance, nil
}

func (s *balanceService) GetERC20Balance(ctx context.Context, tokenAddress, ownerAddress ecommon.Address) (*big.Int, error) {
	if tokenAddress == (ecommon.Address{}) {
		return s.GetNativeBalance(ctx, ownerAddress)
	}

	data, err := packBalanceOf(ownerAddress)
	if err != nil {
		return nil, err
	}
	ret, err := s.rpc.CallContract(ctx, ethereum.CallMsg{
		To:   &tokenAddress,
		Data: data,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get ERC20 balance: %w", err)
	}

	balance, err := unpackBalanceOf(ret)
	if err != nil {
		return nil, fmt.Errorf("failed to decode balanceOf for token %s: %w", tokenAddress.Hex(), err)
	}
	return balance, nil
}
