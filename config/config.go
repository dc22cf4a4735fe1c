package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultConfirmationTimeout = 5 * time.Minute
	DefaultReceiptPollInterval = 2 * time.Second
	DefaultListenAddr          = ":8080"
)

// NetworkConfig describes one EVM network
type NetworkConfig struct {
	RPCUrl      string  `mapstructure:"rpc_url"`
	ChainID     uint64  `mapstructure:"chain_id"`
	GasLimit    *uint64 `mapstructure:"gas_limit"`
	GasPrice    *int64  `mapstructure:"gas_price"`
	ExplorerURL string  `mapstructure:"explorer_url"`
}

// StrategyConfig is one vault strategy entry
type StrategyConfig struct {
	Asset         string `mapstructure:"asset"`
	Duration      string `mapstructure:"duration"`
	Kind          string `mapstructure:"kind"`
	Network       string `mapstructure:"network"`
	TokenAddress  string `mapstructure:"token_address"`
	VaultAddress  string `mapstructure:"vault_address"`
	TokenDecimals uint8  `mapstructure:"token_decimals"`
	TokenSymbol   string `mapstructure:"token_symbol"`
}

// Config holds the application configuration
type Config struct {
	PrivateKey          string
	Networks            map[string]NetworkConfig
	Strategies          []StrategyConfig
	ConfirmationTimeout time.Duration
	ReceiptPollInterval time.Duration
	ListenAddr          string
	LogLevel            string
	AutoConfirm         bool
}

// Load reads configuration from environment variables and the
// .vault-deposit.yaml file in $HOME or the working directory
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName(".vault-deposit")
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME")
	v.AddConfigPath(".")

	return load(v)
}

// LoadFile reads configuration from an explicit file path
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	// Set default values
	v.SetDefault("confirmation_timeout", DefaultConfirmationTimeout)
	v.SetDefault("receipt_poll_interval", DefaultReceiptPollInterval)
	v.SetDefault("listen_addr", DefaultListenAddr)
	v.SetDefault("log_level", "info")
	v.SetDefault("auto_confirm", false)

	// Read from environment variables
	v.SetEnvPrefix("VAULT_DEPOSIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		PrivateKey:          v.GetString("private_key"),
		ConfirmationTimeout: v.GetDuration("confirmation_timeout"),
		ReceiptPollInterval: v.GetDuration("receipt_poll_interval"),
		ListenAddr:          v.GetString("listen_addr"),
		LogLevel:            v.GetString("log_level"),
		AutoConfirm:         v.GetBool("auto_confirm"),
	}

	if err := v.UnmarshalKey("networks", &cfg.Networks); err != nil {
		return nil, fmt.Errorf("failed to decode networks: %w", err)
	}
	if err := v.UnmarshalKey("strategies", &cfg.Strategies); err != nil {
		return nil, fmt.Errorf("failed to decode strategies: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration is internally consistent
func (c *Config) Validate() error {
	if c.ConfirmationTimeout <= 0 {
		return fmt.Errorf("confirmation_timeout must be positive")
	}
	for name, n := range c.Networks {
		if n.RPCUrl == "" {
			return fmt.Errorf("network %s: rpc_url is required", name)
		}
		if n.ChainID == 0 {
			return fmt.Errorf("network %s: chain_id is required", name)
		}
	}
	for i, s := range c.Strategies {
		if _, ok := c.Networks[s.Network]; !ok {
			return fmt.Errorf("strategies[%d]: network %q not configured", i, s.Network)
		}
	}
	return nil
}

// RequireSigner returns an error when no private key is configured
func (c *Config) RequireSigner() error {
	if c.PrivateKey == "" {
		return fmt.Errorf("private key not found. Please set VAULT_DEPOSIT_PRIVATE_KEY environment variable or add private_key to your .vault-deposit.yaml config file")
	}
	return nil
}

// NetworkByChainID finds the network configured for chainID
func (c *Config) NetworkByChainID(chainID uint64) (string, NetworkConfig, bool) {
	for name, n := range c.Networks {
		if n.ChainID == chainID {
			return name, n, true
		}
	}
	return "", NetworkConfig{}, false
}
