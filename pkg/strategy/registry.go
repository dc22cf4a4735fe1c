package strategy

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"vault-deposit/config"
	"vault-deposit/pkg/deposit"
)

var ErrNotFound = errors.New("strategy not configured")

// Config is the static configuration of one strategy
type Config struct {
	Key           Key            `json:"key"`
	Network       string         `json:"network"`
	ChainID       uint64         `json:"chain_id"`
	RPCEndpoint   string         `json:"-"`
	TokenAddress  common.Address `json:"token_address"`
	VaultAddress  common.Address `json:"vault_address"`
	TokenDecimals uint8          `json:"token_decimals"`
	TokenSymbol   string         `json:"token_symbol"`
	ExplorerURL   string         `json:"explorer_url,omitempty"`
}

// Intent builds a deposit intent for this strategy
func (c Config) Intent(amount string, owner common.Address) deposit.Intent {
	return deposit.Intent{
		Amount:        amount,
		Token:         c.TokenAddress,
		Vault:         c.VaultAddress,
		Owner:         owner,
		ChainID:       c.ChainID,
		TokenDecimals: c.TokenDecimals,
	}
}

// TxURL returns a block explorer link for hash, or "" when no explorer is configured
func (c Config) TxURL(hash common.Hash) string {
	if c.ExplorerURL == "" {
		return ""
	}
	return strings.TrimRight(c.ExplorerURL, "/") + "/tx/" + hash.Hex()
}

// Provider looks up strategy configuration
type Provider interface {
	Lookup(key Key) (Config, error)
}

// Registry is an in-memory Provider
type Registry struct {
	entries map[Key]Config
}

var _ Provider = (*Registry)(nil)

// NewRegistry indexes entries by key; duplicate keys are rejected
func NewRegistry(entries []Config) (*Registry, error) {
	r := &Registry{entries: make(map[Key]Config, len(entries))}
	for _, e := range entries {
		if _, exists := r.entries[e.Key]; exists {
			return nil, fmt.Errorf("strategy %s configured twice", e.Key)
		}
		if err := validate(e); err != nil {
			return nil, fmt.Errorf("strategy %s: %w", e.Key, err)
		}
		r.entries[e.Key] = e
	}
	return r, nil
}

// LoadRegistry builds a Registry from the application configuration
func LoadRegistry(cfg *config.Config) (*Registry, error) {
	entries := make([]Config, 0, len(cfg.Strategies))

	for i, s := range cfg.Strategies {
		key, err := ParseKey(s.Asset, s.Kind, s.Duration)
		if err != nil {
			return nil, fmt.Errorf("strategies[%d]: %w", i, err)
		}

		network, ok := cfg.Networks[s.Network]
		if !ok {
			return nil, fmt.Errorf("strategies[%d]: network %s not configured", i, s.Network)
		}

		if !common.IsHexAddress(s.TokenAddress) {
			return nil, fmt.Errorf("strategies[%d]: invalid token address: %s", i, s.TokenAddress)
		}
		if !common.IsHexAddress(s.VaultAddress) {
			return nil, fmt.Errorf("strategies[%d]: invalid vault address: %s", i, s.VaultAddress)
		}

		entries = append(entries, Config{
			Key:           key,
			Network:       s.Network,
			ChainID:       network.ChainID,
			RPCEndpoint:   network.RPCUrl,
			TokenAddress:  common.HexToAddress(s.TokenAddress),
			VaultAddress:  common.HexToAddress(s.VaultAddress),
			TokenDecimals: s.TokenDecimals,
			TokenSymbol:   s.TokenSymbol,
			ExplorerURL:   network.ExplorerURL,
		})
	}

	return NewRegistry(entries)
}

func (r *Registry) Lookup(key Key) (Config, error) {
	c, ok := r.entries[key]
	if !ok {
		return Config{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return c, nil
}

// List returns all strategies ordered by asset, kind, then duration
func (r *Registry) List() []Config {
	list := make([]Config, 0, len(r.entries))
	for _, c := range r.entries {
		list = append(list, c)
	}

	sort.Slice(list, func(i, j int) bool {
		a, b := list[i].Key, list[j].Key
		if a.Asset != b.Asset {
			return a.Asset < b.Asset
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Duration < b.Duration
	})

	return list
}

// ForChain returns the first strategy on chainID, used to find an explorer
func (r *Registry) ForChain(chainID uint64) (Config, bool) {
	for _, c := range r.List() {
		if c.ChainID == chainID {
			return c, true
		}
	}
	return Config{}, false
}

func validate(c Config) error {
	if c.ChainID == 0 {
		return fmt.Errorf("chain id is required")
	}
	if c.TokenAddress == (common.Address{}) {
		return fmt.Errorf("token address is required")
	}
	if c.VaultAddress == (common.Address{}) {
		return fmt.Errorf("vault address is required")
	}
	return nil
}
