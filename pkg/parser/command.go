package parser

import (
	"fmt"
	"regexp"
	"strings"

	"vault-deposit/pkg/strategy"
	"vault-deposit/pkg/types"
)

var depositPattern = regexp.MustCompile(`^(\d+\.?\d*)\s+([A-Z0-9]+)\s+(?:INTO|TO|IN)\s+([A-Z]+)\s+([A-Z0-9]+)$`)

// ParseDepositCommand parses a natural language deposit command
// Examples:
//   - "deposit 100 USDC into stable 30d"
//   - "0.5 ETH into boosted flexible"
//   - "1.25 WBTC to incentive 90d"
func ParseDepositCommand(command string) (*types.DepositRequest, error) {
	// Normalize the command
	command = strings.Join(strings.Fields(strings.ToUpper(command)), " ")

	// Remove the word "DEPOSIT" if present at the beginning
	command = strings.TrimPrefix(command, "DEPOSIT ")

	matches := depositPattern.FindStringSubmatch(command)
	if matches == nil {
		return nil, fmt.Errorf("invalid deposit command format. Expected: 'deposit <amount> <token> into <kind> <duration>' (e.g., 'deposit 100 USDC into stable 30d')")
	}

	return &types.DepositRequest{
		Amount:   matches[1],
		Token:    NormalizeTokenSymbol(matches[2]),
		Kind:     strings.ToLower(matches[3]),
		Duration: strings.ToLower(matches[4]),
	}, nil
}

// ValidateDepositRequest validates that a deposit request has all required fields
func ValidateDepositRequest(req *types.DepositRequest) error {
	if req.Amount == "" {
		return fmt.Errorf("amount is required")
	}
	if req.Token == "" {
		return fmt.Errorf("token is required")
	}
	if req.Kind == "" {
		return fmt.Errorf("strategy kind is required")
	}
	if req.Duration == "" {
		return fmt.Errorf("duration is required")
	}
	return nil
}

// StrategyKey maps a request onto the strategy it targets
func StrategyKey(req *types.DepositRequest) (strategy.Key, error) {
	if err := ValidateDepositRequest(req); err != nil {
		return strategy.Key{}, err
	}
	return strategy.ParseKey(req.Token, req.Kind, req.Duration)
}

// NormalizeTokenSymbol normalizes token symbols to standard format
func NormalizeTokenSymbol(symbol string) string {
	symbol = strings.TrimSpace(strings.ToUpper(symbol))

	// Bridged variants deposit into the same vaults
	aliases := map[string]string{
		"USDBC":  "USDC",
		"WETH":   "ETH",
		"CBBTC":  "WBTC",
	}

	if normalized, exists := aliases[symbol]; exists {
		return normalized
	}

	return symbol
}
