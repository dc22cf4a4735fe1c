package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"vault-deposit/pkg/chain"
)

var (
	watchStatus   bool
	watchInterval int
	statusChainID uint64
)

var statusCmd = &cobra.Command{
	Use:   "status <tx-hash>",
	Short: "Check the status of an approval or deposit transaction",
	Long: `Check whether an approval or deposit transaction has been mined.

Use --watch to keep polling until the transaction is mined, for example after
a deposit ended with a confirmation timeout.

Examples:
  vault-deposit status 0x1234...abcd
  vault-deposit status 0x1234...abcd --chain-id 8453 --watch
  vault-deposit status 0x1234...abcd --watch --interval 10`,
	Args: cobra.ExactArgs(1),
	Run:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVarP(&watchStatus, "watch", "w", false, "Watch until the transaction is mined")
	statusCmd.Flags().IntVar(&watchInterval, "interval", 5, "Polling interval in seconds (when watching)")
	statusCmd.Flags().Uint64Var(&statusChainID, "chain-id", 0, "Chain id (optional when a single network is configured)")
}

func parseHash(s string) (common.Hash, error) {
	b, err := hexutil.Decode(s)
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("invalid transaction hash: %s", s)
	}
	return common.BytesToHash(b), nil
}

func validateInterval(seconds int) error {
	if seconds <= 0 {
		return fmt.Errorf("--interval must be at least 1 second, got %d", seconds)
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	hash, err := parseHash(args[0])
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	if err := validateInterval(watchInterval); err != nil {
		printError(err)
		os.Exit(1)
	}

	a, err := newApp(cmd, false)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer a.Close()

	chainID := statusChainID
	if chainID == 0 {
		if len(a.cfg.Networks) != 1 {
			printError(fmt.Errorf("--chain-id is required when %d networks are configured", len(a.cfg.Networks)))
			os.Exit(1)
		}
		for _, n := range a.cfg.Networks {
			chainID = n.ChainID
		}
	}

	client, err := a.pool.EVM(context.Background(), chainID)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if watchStatus {
		watchTxStatus(a, client, hash, jsonOutput)
	} else {
		checkTxStatus(a, client, hash, jsonOutput)
	}
}

func checkTxStatus(a *app, client *chain.EVMClient, hash common.Hash, jsonOutput bool) {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Checking transaction status..."
		s.Start()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	info, err := client.GetTransactionInfo(ctx, hash)
	if !jsonOutput {
		s.Stop()
	}

	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(info, "", "  ")
		fmt.Println(string(jsonData))
	} else {
		displayTxStatus(info, a.explorerTxURL(client.ChainID(), hash))
	}
}

func watchTxStatus(a *app, client *chain.EVMClient, hash common.Hash, jsonOutput bool) {
	if jsonOutput {
		fmt.Println(`{"error": "watch mode not supported with JSON output"}`)
		os.Exit(1)
	}

	fmt.Printf("\nWatching transaction %s\n", color.CyanString(hash.Hex()))
	fmt.Printf("Checking every %d seconds. Press Ctrl+C to stop.\n\n", watchInterval)

	ticker := time.NewTicker(time.Duration(watchInterval) * time.Second)
	defer ticker.Stop()

	// Check immediately first, then periodically until mined
	for {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		info, err := client.GetTransactionInfo(ctx, hash)
		cancel()

		if err != nil {
			color.Red("Error: %v", err)
		} else {
			displayTxStatus(info, a.explorerTxURL(client.ChainID(), hash))
			if info.Receipt != nil {
				return
			}
		}

		<-ticker.C
	}
}

func displayTxStatus(info *chain.TransactionInfo, explorerURL string) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                      TRANSACTION STATUS")
	fmt.Println(strings.Repeat("=", 70))

	fmt.Printf("\n  Tx Hash:         %s\n", color.CyanString(info.Hash))
	fmt.Printf("  Status:          %s\n", getColoredStatus(info))
	fmt.Printf("  To:              %s\n", info.To)
	fmt.Printf("  Nonce:           %d\n", info.Nonce)

	if info.Receipt != nil {
		fmt.Printf("  Block:           %d\n", info.Receipt.BlockNumber)
		fmt.Printf("  Gas Used:        %d / %d\n", info.Receipt.GasUsed, info.GasLimit)
	}
	if explorerURL != "" {
		fmt.Printf("  Explorer:        %s\n", color.HiBlackString(explorerURL))
	}

	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}

func getColoredStatus(info *chain.TransactionInfo) string {
	switch {
	case info.Receipt == nil:
		return color.YellowString("PENDING")
	case info.Receipt.Status == chain.ReceiptSuccess:
		return color.GreenString("SUCCESS")
	default:
		return color.RedString("REVERTED")
	}
}
