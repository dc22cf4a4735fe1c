package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"vault-deposit/pkg/amount"
	"vault-deposit/pkg/chain"
	"vault-deposit/pkg/deposit"
	"vault-deposit/pkg/parser"
	"vault-deposit/pkg/strategy"
	"vault-deposit/pkg/types"
)

var (
	noConfirm      bool
	depositTimeout time.Duration
)

var depositCmd = &cobra.Command{
	Use:   "deposit <amount> <token> into <kind> <duration>",
	Short: "Deposit tokens into a vault strategy",
	Long: `Deposit tokens into the vault behind a strategy.

If the vault is not yet allowed to spend the amount, an approval transaction is
sent first. The deposit is only sent once the approval is confirmed.

Kinds:      stable, incentive (alias: boosted)
Durations:  flexible, 30d, 90d, 180d (aliases: 1m, 3m, 6m)

Examples:
  vault-deposit deposit 100 USDC into stable 30d
  vault-deposit deposit 0.5 ETH into boosted flexible --yes
  vault-deposit deposit 250 USDC into incentive 90d --timeout 10m`,
	Args: cobra.MinimumNArgs(1),
	Run:  runDeposit,
}

func init() {
	rootCmd.AddCommand(depositCmd)

	depositCmd.Flags().BoolVarP(&noConfirm, "yes", "y", false, "Skip confirmation prompt")
	depositCmd.Flags().DurationVar(&depositTimeout, "timeout", 0, "Confirmation timeout per transaction (default from config)")
}

func runDeposit(cmd *cobra.Command, args []string) {
	// Parse the command
	req, err := parser.ParseDepositCommand(strings.Join(args, " "))
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	key, err := parser.StrategyKey(req)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	a, err := newApp(cmd, true)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer a.Close()

	if depositTimeout > 0 {
		a.cfg.ConfirmationTimeout = depositTimeout
	}

	strat, err := a.strategies.Lookup(key)
	if err != nil {
		printError(fmt.Errorf("%w (see: vault-deposit strategies)", err))
		os.Exit(1)
	}

	// Check the strategy against its contracts before showing anything
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Checking strategy..."
		s.Start()
	}
	strat, balance, err := verifyStrategy(cmd.Context(), a, strat)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	baseUnits, err := amount.ToBaseUnits(req.Amount, strat.TokenDecimals)
	if err != nil {
		printError(fmt.Errorf("%w: %v", deposit.ErrInvalidAmount, err))
		os.Exit(1)
	}

	summary := types.DepositSummary{
		Strategy:     strat.Key.String(),
		Network:      strat.Network,
		Amount:       amount.Format(baseUnits, strat.TokenDecimals),
		Token:        tokenLabel(strat),
		BaseUnits:    baseUnits.String(),
		TokenAddress: strat.TokenAddress.Hex(),
		VaultAddress: strat.VaultAddress.Hex(),
		Owner:        a.wallet.Address().Hex(),
	}

	if balance != nil {
		summary.Balance = amount.Format(balance, strat.TokenDecimals)
	} else if verbose {
		fmt.Println("\nDebug: could not read balance")
	}

	if !jsonOutput {
		displayDepositSummary(summary)
		if balance != nil && balance.Cmp(baseUnits) < 0 {
			color.Yellow("  Warning: your balance is lower than the deposit amount.\n")
		}
	}

	// Ask for confirmation
	if !noConfirm && !a.cfg.AutoConfirm && !jsonOutput {
		if !confirmDeposit() {
			fmt.Println("\nDeposit cancelled.")
			os.Exit(0)
		}
	}

	progress := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	orch, err := a.orchestrator(func(st deposit.State) {
		if jsonOutput {
			return
		}
		progress.Lock()
		progress.Suffix = " " + phaseLabel(st.Phase)
		progress.Unlock()
	})
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if !jsonOutput {
		progress.Suffix = " " + phaseLabel(deposit.PhaseIdle)
		progress.Start()
	}

	h, err := orch.Submit(context.Background(), strat.Intent(req.Amount, a.wallet.Address()))
	if err == nil {
		// Ctrl+C stops tracking; a broadcast transaction may still be mined
		sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		go func() {
			select {
			case <-sigCtx.Done():
				h.Cancel()
			case <-h.Done():
			}
		}()
		_, err = h.Wait(context.Background())
		stop()
	}
	if !jsonOutput {
		progress.Stop()
	}

	result := depositResult(a, h.State())
	if jsonOutput {
		jsonData, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(jsonData))
	} else {
		displayDepositResult(result, strat)
	}

	if err != nil {
		os.Exit(1)
	}
}

// verifyStrategy checks strat on-chain and reads the wallet balance. A failed
// balance read is not fatal and leaves the balance nil.
func verifyStrategy(ctx context.Context, a *app, strat strategy.Config) (strategy.Config, *big.Int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	client, err := a.pool.Client(ctx, strat.ChainID)
	if err != nil {
		return strat, nil, err
	}
	strat, err = strategy.Verify(ctx, client, strat)
	if err != nil {
		return strat, nil, fmt.Errorf("strategy %s: %w", strat.Key, err)
	}

	balance, err := chain.BalanceOf(ctx, client, strat.TokenAddress, a.wallet.Address())
	if err != nil {
		a.logger.Debug("could not read balance", "error", err)
		return strat, nil, nil
	}
	return strat, balance, nil
}

func depositResult(a *app, st deposit.State) types.DepositResult {
	result := types.DepositResult{
		FlowID:    st.FlowID,
		Phase:     string(st.Phase),
		Reason:    string(st.ErrorReason),
		Uncertain: st.OutcomeUncertain,
	}
	if st.ErrorReason != "" {
		result.Message = st.ErrorReason.Message()
	}
	if st.Approval != nil {
		result.ApprovalTx = st.Approval.Hash.Hex()
	}
	if st.Deposit != nil {
		result.DepositTx = st.Deposit.Hash.Hex()
	}
	if hash, ok := st.LastHash(); ok && st.Intent != nil {
		result.ExplorerURL = a.explorerTxURL(st.Intent.ChainID, hash)
	}
	return result
}

func displayDepositSummary(summary types.DepositSummary) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                   DEPOSIT SUMMARY")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  Strategy:          %s\n", color.CyanString(summary.Strategy))
	fmt.Printf("  Network:           %s\n", summary.Network)
	fmt.Printf("  Amount:            %s %s\n", summary.Amount, color.YellowString(summary.Token))
	fmt.Printf("  Base Units:        %s\n", color.HiBlackString(summary.BaseUnits))
	fmt.Printf("  Vault:             %s\n", summary.VaultAddress)
	fmt.Printf("  From:              %s\n", summary.Owner)
	if summary.Balance != "" {
		fmt.Printf("  Balance:           %s %s\n", summary.Balance, summary.Token)
	}

	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}

func displayDepositResult(result types.DepositResult, strat strategy.Config) {
	fmt.Println()
	if result.Phase == string(deposit.PhaseSucceeded) {
		color.Green("✓ Deposit confirmed!")
	} else {
		color.Red("✗ Deposit failed: %s", result.Reason)
		if result.Message != "" {
			fmt.Printf("  %s\n", result.Message)
		}
	}

	if result.ApprovalTx != "" {
		fmt.Printf("  Approval Tx:  %s\n", color.CyanString(result.ApprovalTx))
	}
	if result.DepositTx != "" {
		fmt.Printf("  Deposit Tx:   %s\n", color.CyanString(result.DepositTx))
	}
	if result.ExplorerURL != "" {
		fmt.Printf("  Explorer:     %s\n", result.ExplorerURL)
	}

	if result.Uncertain {
		last := result.DepositTx
		if last == "" {
			last = result.ApprovalTx
		}
		fmt.Println("\nThe transaction may still be mined. Follow it with:")
		color.Cyan("  vault-deposit status %s --chain-id %d --watch\n", last, strat.ChainID)
	}
	fmt.Println()
}

func tokenLabel(strat strategy.Config) string {
	if strat.TokenSymbol != "" {
		return strat.TokenSymbol
	}
	return strings.ToUpper(strat.Key.Asset.String())
}

func phaseLabel(p deposit.Phase) string {
	switch p {
	case deposit.PhaseIdle, deposit.PhaseValidatingInput:
		return "Validating deposit..."
	case deposit.PhaseCheckingAllowance:
		return "Checking allowance..."
	case deposit.PhaseApproving:
		return "Waiting for approval signature..."
	case deposit.PhaseAwaitingApprovalConfirmation:
		return "Waiting for approval to confirm..."
	case deposit.PhaseDepositing:
		return "Sending deposit..."
	case deposit.PhaseAwaitingDepositConfirmation:
		return "Waiting for deposit to confirm..."
	case deposit.PhaseSucceeded:
		return "Done"
	case deposit.PhaseFailed:
		return "Failed"
	}
	return string(p)
}

func confirmDeposit() bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Print("\nProceed with deposit? (y/N): ")

	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
