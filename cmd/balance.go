package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/briandowns/spinner"
	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"vault-deposit/pkg/amount"
	"vault-deposit/pkg/chain"
	"vault-deposit/pkg/strategy"
	"vault-deposit/pkg/types"
)

var balanceAddress string

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show token balances and vault allowances",
	Long: `Show the token balance and the current vault allowance for every
configured strategy.

The address defaults to the configured private key; pass --address to inspect
any account without a key.

Examples:
  vault-deposit balance
  vault-deposit balance --asset usdc
  vault-deposit balance --address 0x1234...abcd --json`,
	Run: runBalance,
}

func init() {
	rootCmd.AddCommand(balanceCmd)

	balanceCmd.Flags().StringVar(&balanceAddress, "address", "", "Account to inspect (default: configured wallet)")
	balanceCmd.Flags().StringVar(&filterAsset, "asset", "", "Filter by asset class or token symbol")
}

func runBalance(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	a, err := newApp(cmd, balanceAddress == "")
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer a.Close()

	var account common.Address
	if balanceAddress != "" {
		if !common.IsHexAddress(balanceAddress) {
			printError(fmt.Errorf("invalid address: %s", balanceAddress))
			os.Exit(1)
		}
		account = common.HexToAddress(balanceAddress)
	} else {
		account = a.wallet.Address()
	}

	list, err := filterStrategies(a.strategies.List(), filterAsset, "")
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Reading balances..."
		s.Start()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	balances := make([]types.BalanceInfo, 0, len(list))
	for _, strat := range list {
		info, err := readBalanceInfo(ctx, a, strat, account)
		if err != nil {
			if !jsonOutput {
				s.Stop()
			}
			printError(fmt.Errorf("%s: %w", strat.Key, err))
			os.Exit(1)
		}
		balances = append(balances, info)
	}

	if !jsonOutput {
		s.Stop()
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(balances, "", "  ")
		fmt.Println(string(jsonData))
		return
	}
	displayBalances(account, balances)
}

func readBalanceInfo(ctx context.Context, a *app, strat strategy.Config, account common.Address) (types.BalanceInfo, error) {
	client, err := a.pool.Client(ctx, strat.ChainID)
	if err != nil {
		return types.BalanceInfo{}, err
	}

	strat, err = strategy.Verify(ctx, client, strat)
	if err != nil {
		return types.BalanceInfo{}, err
	}

	balance, err := chain.BalanceOf(ctx, client, strat.TokenAddress, account)
	if err != nil {
		return types.BalanceInfo{}, err
	}
	allowance, err := chain.Allowance(ctx, client, strat.TokenAddress, account, strat.VaultAddress)
	if err != nil {
		return types.BalanceInfo{}, err
	}

	return types.BalanceInfo{
		Strategy:  strat.Key.String(),
		Network:   strat.Network,
		Token:     tokenLabel(strat),
		Address:   strat.TokenAddress.Hex(),
		Balance:   amount.Format(balance, strat.TokenDecimals),
		Allowance: amount.Format(allowance, strat.TokenDecimals),
	}, nil
}

func displayBalances(account common.Address, balances []types.BalanceInfo) {
	if len(balances) == 0 {
		fmt.Println("\nNo strategies configured.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 80))
	color.Green("                                BALANCES")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("\n  Account: %s\n\n", color.CyanString(account.Hex()))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  STRATEGY\tNETWORK\tTOKEN\tBALANCE\tALLOWANCE")
	for _, b := range balances {
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%s\n", b.Strategy, b.Network, b.Token, b.Balance, b.Allowance)
	}
	w.Flush()

	fmt.Println("\n" + strings.Repeat("=", 80) + "\n")
}
