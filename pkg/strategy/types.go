package strategy

import (
	"fmt"
	"strings"
)

// AssetClass identifies the deposit token family
type AssetClass int

const (
	AssetUSD AssetClass = iota + 1 // USD-pegged stablecoins
	AssetETH
	AssetBTC
)

// AssetClasses lists every AssetClass in display order
var AssetClasses = []AssetClass{AssetUSD, AssetETH, AssetBTC}

func (a AssetClass) String() string {
	switch a {
	case AssetUSD:
		return "usd"
	case AssetETH:
		return "eth"
	case AssetBTC:
		return "btc"
	}
	return fmt.Sprintf("asset(%d)", int(a))
}

// ParseAssetClass accepts the class name or a common token symbol in it
func ParseAssetClass(s string) (AssetClass, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "usd", "usdc", "usdt", "dai":
		return AssetUSD, nil
	case "eth", "weth", "steth":
		return AssetETH, nil
	case "btc", "wbtc", "cbbtc":
		return AssetBTC, nil
	}
	return 0, fmt.Errorf("unknown asset class %q", s)
}

// Duration is the lock-up period of a strategy
type Duration int

const (
	DurationFlexible Duration = iota + 1
	Duration30Days
	Duration90Days
	Duration180Days
)

var Durations = []Duration{DurationFlexible, Duration30Days, Duration90Days, Duration180Days}

func (d Duration) String() string {
	switch d {
	case DurationFlexible:
		return "flexible"
	case Duration30Days:
		return "30d"
	case Duration90Days:
		return "90d"
	case Duration180Days:
		return "180d"
	}
	return fmt.Sprintf("duration(%d)", int(d))
}

// Days returns the lock-up in days, zero for flexible
func (d Duration) Days() int {
	switch d {
	case DurationFlexible:
		return 0
	case Duration30Days:
		return 30
	case Duration90Days:
		return 90
	case Duration180Days:
		return 180
	}
	return 0
}

func ParseDuration(s string) (Duration, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "flexible", "flex", "0d":
		return DurationFlexible, nil
	case "30d", "1m", "30":
		return Duration30Days, nil
	case "90d", "3m", "90":
		return Duration90Days, nil
	case "180d", "6m", "180":
		return Duration180Days, nil
	}
	return 0, fmt.Errorf("unknown duration %q", s)
}

// Kind is the yield source of a strategy
type Kind int

const (
	KindStable    Kind = iota + 1 // base lending yield
	KindIncentive                 // boosted by token incentives
)

var Kinds = []Kind{KindStable, KindIncentive}

func (k Kind) String() string {
	switch k {
	case KindStable:
		return "stable"
	case KindIncentive:
		return "incentive"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "stable":
		return KindStable, nil
	case "incentive", "incentivized", "boosted":
		return KindIncentive, nil
	}
	return 0, fmt.Errorf("unknown strategy kind %q", s)
}

// Key identifies a strategy
type Key struct {
	Asset    AssetClass `json:"asset"`
	Duration Duration   `json:"duration"`
	Kind     Kind       `json:"kind"`
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Asset, k.Kind, k.Duration)
}

// ParseKey parses the three components of a Key
func ParseKey(asset, kind, duration string) (Key, error) {
	a, err := ParseAssetClass(asset)
	if err != nil {
		return Key{}, err
	}
	k, err := ParseKind(kind)
	if err != nil {
		return Key{}, err
	}
	d, err := ParseDuration(duration)
	if err != nil {
		return Key{}, err
	}
	return Key{Asset: a, Duration: d, Kind: k}, nil
}

func (a AssetClass) MarshalText() ([]byte, error) { return []byte(a.String()), nil }
func (d Duration) MarshalText() ([]byte, error)   { return []byte(d.String()), nil }
func (k Kind) MarshalText() ([]byte, error)       { return []byte(k.String()), nil }
