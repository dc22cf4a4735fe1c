package cmd

import (
	"log/slog"
	"os"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"vault-deposit/config"
	"vault-deposit/pkg/chain"
	"vault-deposit/pkg/deposit"
	"vault-deposit/pkg/logging"
	"vault-deposit/pkg/strategy"
	"vault-deposit/pkg/wallet"
)

// app holds the dependencies shared by the commands
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	wallet     *wallet.KeyWallet
	pool       *chain.Pool
	strategies *strategy.Registry
}

// newApp loads configuration and wires the wallet, chain pool and strategy
// registry. A signer is only required when needSigner is set.
func newApp(cmd *cobra.Command, needSigner bool) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger}

	if cfg.PrivateKey != "" {
		a.wallet, err = wallet.NewKeyWallet(cfg.PrivateKey)
		if err != nil {
			return nil, err
		}
	} else if needSigner {
		return nil, cfg.RequireSigner()
	}

	a.strategies, err = strategy.LoadRegistry(cfg)
	if err != nil {
		return nil, err
	}

	var signer wallet.Signer
	if a.wallet != nil {
		signer = a.wallet
	}
	a.pool = chain.NewPool(networkOptions(cfg, logger), signer, logger.With("component", "chain"))

	return a, nil
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

// newLogger logs to stderr so JSON output on stdout stays parseable
func newLogger(cmd *cobra.Command, cfg *config.Config) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	if verbose {
		level = slog.LevelDebug
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	logger := logging.New(os.Stderr, level, jsonOutput)
	slog.SetDefault(logger)

	return logger, nil
}

func networkOptions(cfg *config.Config, logger *slog.Logger) []chain.EVMOptions {
	names := make([]string, 0, len(cfg.Networks))
	for name := range cfg.Networks {
		names = append(names, name)
	}
	sort.Strings(names)

	opts := make([]chain.EVMOptions, 0, len(names))
	for _, name := range names {
		n := cfg.Networks[name]
		opts = append(opts, chain.EVMOptions{
			Endpoint:            n.RPCUrl,
			ChainID:             n.ChainID,
			GasLimit:            n.GasLimit,
			GasPrice:            n.GasPrice,
			ReceiptPollInterval: cfg.ReceiptPollInterval,
			Logger:              logger.With("component", "chain", "network", name),
		})
	}
	return opts
}

// orchestrator builds a deposit orchestrator over the app's chains and wallet
func (a *app) orchestrator(onTransition func(deposit.State)) (*deposit.Orchestrator, error) {
	if a.wallet == nil {
		return nil, a.cfg.RequireSigner()
	}
	return deposit.NewOrchestrator(deposit.Options{
		Chains:              a.pool,
		Wallet:              a.wallet,
		Logger:              a.logger.With("component", "deposit"),
		ConfirmationTimeout: a.cfg.ConfirmationTimeout,
		OnTransition:        onTransition,
	})
}

// explorerTxURL finds an explorer link for hash on chainID, or ""
func (a *app) explorerTxURL(chainID uint64, hash common.Hash) string {
	if s, ok := a.strategies.ForChain(chainID); ok && s.ExplorerURL != "" {
		return s.TxURL(hash)
	}
	if _, n, ok := a.cfg.NetworkByChainID(chainID); ok {
		return strategy.Config{ExplorerURL: n.ExplorerURL}.TxURL(hash)
	}
	return ""
}

func (a *app) Close() {
	a.pool.Close()
}
