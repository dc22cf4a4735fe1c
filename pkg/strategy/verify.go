package strategy

import (
	"context"
	"errors"
	"fmt"

	"vault-deposit/pkg/chain"
)

var ErrMisconfigured = errors.New("strategy does not match on-chain contracts")

// Verify checks c against its contracts: the vault must accept the configured
// token and the token must report the configured decimals. A missing
// TokenSymbol is filled from symbol().
func Verify(ctx context.Context, r chain.Reader, c Config) (Config, error) {
	asset, err := chain.VaultAsset(ctx, r, c.VaultAddress)
	if err != nil {
		return c, err
	}
	if asset != c.TokenAddress {
		return c, fmt.Errorf("%w: vault %s takes %s, not %s",
			ErrMisconfigured, c.VaultAddress.Hex(), asset.Hex(), c.TokenAddress.Hex())
	}

	decimals, err := chain.Decimals(ctx, r, c.TokenAddress)
	if err != nil {
		return c, err
	}
	if decimals != c.TokenDecimals {
		return c, fmt.Errorf("%w: token reports %d decimals, configured %d",
			ErrMisconfigured, decimals, c.TokenDecimals)
	}

	if c.TokenSymbol == "" {
		symbol, err := chain.Symbol(ctx, r, c.TokenAddress)
		if err != nil {
			return c, err
		}
		c.TokenSymbol = symbol
	}
	return c, nil
}
