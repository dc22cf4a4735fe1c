package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Allowance reads allowance(owner, spender) on an ERC-20 token
func Allowance(ctx context.Context, r Reader, token, owner, spender common.Address) (*big.Int, error) {
	out, err := r.ReadContract(ctx, token, ERC20ABI, "allowance", owner, spender)
	if err != nil {
		return nil, fmt.Errorf("failed to call allowance: %w", err)
	}
	return firstBigInt(out, "allowance")
}

// BalanceOf reads balanceOf(account) on an ERC-20 token
func BalanceOf(ctx context.Context, r Reader, token, account common.Address) (*big.Int, error) {
	out, err := r.ReadContract(ctx, token, ERC20ABI, "balanceOf", account)
	if err != nil {
		return nil, fmt.Errorf("failed to call balanceOf: %w", err)
	}
	return firstBigInt(out, "balanceOf")
}

// Decimals reads decimals() on an ERC-20 token
func Decimals(ctx context.Context, r Reader, token common.Address) (uint8, error) {
	out, err := r.ReadContract(ctx, token, ERC20ABI, "decimals")
	if err != nil {
		return 0, fmt.Errorf("failed to call decimals: %w", err)
	}
	if len(out) == 0 {
		return 0, fmt.Errorf("decimals returned no value")
	}
	decimals, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("decimals returned %T, expected uint8", out[0])
	}
	return decimals, nil
}

// Symbol reads symbol() on an ERC-20 token
func Symbol(ctx context.Context, r Reader, token common.Address) (string, error) {
	out, err := r.ReadContract(ctx, token, ERC20ABI, "symbol")
	if err != nil {
		return "", fmt.Errorf("failed to call symbol: %w", err)
	}
	if len(out) == 0 {
		return "", fmt.Errorf("symbol returned no value")
	}
	symbol, ok := out[0].(string)
	if !ok {
		return "", fmt.Errorf("symbol returned %T, expected string", out[0])
	}
	return symbol, nil
}

// VaultAsset reads asset() on an ERC-4626 vault
func VaultAsset(ctx context.Context, r Reader, vault common.Address) (common.Address, error) {
	out, err := r.ReadContract(ctx, vault, VaultABI, "asset")
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to call asset: %w", err)
	}
	if len(out) == 0 {
		return common.Address{}, fmt.Errorf("asset returned no value")
	}
	asset, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("asset returned %T, expected address", out[0])
	}
	return asset, nil
}

func firstBigInt(out []interface{}, method string) (*big.Int, error) {
	if len(out) == 0 {
		return nil, fmt.Errorf("%s returned no value", method)
	}
	value, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s returned %T, expected *big.Int", method, out[0])
	}
	return value, nil
}
