package amount

import (
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
)

// DisplayPrecision is the number of fractional digits a user-entered amount is
// rounded to before it is scaled to token base units.
const DisplayPrecision = 6

var (
	ErrInvalidFormat   = errors.New("amount is not a decimal number")
	ErrNotPositive     = errors.New("amount must be greater than 0")
	ErrExcessPrecision = errors.New("amount has more fractional digits than the token supports")
)

// Matches: "1", "100.5", "0.000001"
var decimalPattern = regexp.MustCompile(`^(\d+)(?:\.(\d+))?$`)

// Round parses a human-entered amount and rounds it half-up to
// DisplayPrecision fractional digits. The result is the amount scaled by
// 10^DisplayPrecision.
func Round(amount string) (*big.Int, error) {
	amount = strings.TrimSpace(amount)

	matches := decimalPattern.FindStringSubmatch(amount)
	if matches == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFormat, amount)
	}

	whole, frac := matches[1], matches[2]

	roundUp := false
	if len(frac) > DisplayPrecision {
		roundUp = frac[DisplayPrecision] >= '5'
		frac = frac[:DisplayPrecision]
	}
	frac += strings.Repeat("0", DisplayPrecision-len(frac))

	scaled, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFormat, amount)
	}
	if roundUp {
		scaled.Add(scaled, big.NewInt(1))
	}

	return scaled, nil
}

// ToBaseUnits converts a human-entered amount into token base units: the
// amount is rounded to six fractional digits first, then scaled by
// 10^decimals. A rounded amount with digits below the token's smallest unit
// is rejected with ErrExcessPrecision rather than truncated.
func ToBaseUnits(amount string, decimals uint8) (*big.Int, error) {
	scaled, err := Round(amount)
	if err != nil {
		return nil, err
	}
	if scaled.Sign() <= 0 {
		return nil, ErrNotPositive
	}

	result, rem := new(big.Int).QuoRem(
		new(big.Int).Mul(scaled, pow10(int(decimals))),
		pow10(DisplayPrecision),
		new(big.Int),
	)
	if rem.Sign() != 0 {
		return nil, fmt.Errorf("%w (%d decimals): %q", ErrExcessPrecision, decimals, strings.TrimSpace(amount))
	}

	return result, nil
}

// Format renders base units as a decimal string with trailing zeros removed.
func Format(baseUnits *big.Int, decimals uint8) string {
	if baseUnits == nil {
		return "0"
	}

	sign := ""
	value := new(big.Int).Set(baseUnits)
	if value.Sign() < 0 {
		sign = "-"
		value.Neg(value)
	}

	whole, frac := new(big.Int).QuoRem(value, pow10(int(decimals)), new(big.Int))
	if decimals == 0 || frac.Sign() == 0 {
		return sign + whole.String()
	}

	fracStr := frac.String()
	fracStr = strings.Repeat("0", int(decimals)-len(fracStr)) + fracStr
	fracStr = strings.TrimRight(fracStr, "0")

	return sign + whole.String() + "." + fracStr
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
