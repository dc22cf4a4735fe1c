package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "vault-deposit",
	Short: "A CLI for depositing tokens into yield vault strategies",
	Long: `vault-deposit deposits ERC-20 tokens into ERC-4626 vault strategies.
Pick a strategy by asset, kind and lock-up duration and the tool takes care of
the token approval, the deposit and waiting for both to confirm.

Examples:
  vault-deposit deposit 100 USDC into stable 30d
  vault-deposit strategies
  vault-deposit balance
  vault-deposit status <tx-hash> --watch
  vault-deposit serve`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
	rootCmd.PersistentFlags().String("config", "", "Config file (default is $HOME/.vault-deposit.yaml)")
}

func printError(err error) {
	fmt.Printf("\nError: %v\n\n", err)
}

func printSuccess(message string) {
	fmt.Printf("\n%s\n\n", message)
}
