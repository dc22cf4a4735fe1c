package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"vault-deposit/pkg/strategy"
)

var (
	filterAsset string
	filterKind  string
)

var strategiesCmd = &cobra.Command{
	Use:     "strategies",
	Aliases: []string{"list-strategies", "ls"},
	Short:   "List configured vault strategies",
	Long: `List the vault strategies from your configuration.

You can filter strategies by asset class or kind.

Examples:
  vault-deposit strategies
  vault-deposit strategies --asset usdc
  vault-deposit strategies --kind boosted`,
	Run: runListStrategies,
}

func init() {
	rootCmd.AddCommand(strategiesCmd)

	strategiesCmd.Flags().StringVar(&filterAsset, "asset", "", "Filter by asset class or token symbol")
	strategiesCmd.Flags().StringVar(&filterKind, "kind", "", "Filter by strategy kind")
}

func runListStrategies(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	a, err := newApp(cmd, false)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer a.Close()

	filtered, err := filterStrategies(a.strategies.List(), filterAsset, filterKind)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	// Output
	if jsonOutput {
		jsonData, _ := json.MarshalIndent(filtered, "", "  ")
		fmt.Println(string(jsonData))
	} else {
		displayStrategies(filtered)
	}
}

func filterStrategies(list []strategy.Config, asset, kind string) ([]strategy.Config, error) {
	filtered := list

	if asset != "" {
		a, err := strategy.ParseAssetClass(asset)
		if err != nil {
			return nil, err
		}
		var temp []strategy.Config
		for _, s := range filtered {
			if s.Key.Asset == a {
				temp = append(temp, s)
			}
		}
		filtered = temp
	}

	if kind != "" {
		k, err := strategy.ParseKind(kind)
		if err != nil {
			return nil, err
		}
		var temp []strategy.Config
		for _, s := range filtered {
			if s.Key.Kind == k {
				temp = append(temp, s)
			}
		}
		filtered = temp
	}

	return filtered, nil
}

func displayStrategies(list []strategy.Config) {
	if len(list) == 0 {
		fmt.Println("\nNo strategies found matching the criteria.")
		fmt.Println("Add strategies to the strategies section of your .vault-deposit.yaml file.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	color.Green("                              VAULT STRATEGIES")
	fmt.Println(strings.Repeat("=", 90))

	// List is ordered by asset so each group is contiguous
	var current strategy.AssetClass
	for _, s := range list {
		if s.Key.Asset != current {
			current = s.Key.Asset
			color.Cyan("\n%s", strings.ToUpper(current.String()))
			fmt.Println(strings.Repeat("-", 90))
		}

		fmt.Printf("  %-10s  %-9s  %-8s  %-10s  %s\n",
			color.YellowString(tokenLabel(s)),
			s.Key.Kind,
			s.Key.Duration,
			s.Network,
			color.HiBlackString(s.VaultAddress.Hex()))
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	fmt.Printf("\nTotal: %d strategies\n\n", len(list))
}
