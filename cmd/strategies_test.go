package cmd

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vault-deposit/pkg/deposit"
	"vault-deposit/pkg/strategy"
)

func testStrategies() []strategy.Config {
	return []strategy.Config{
		{Key: strategy.Key{Asset: strategy.AssetUSD, Duration: strategy.Duration30Days, Kind: strategy.KindStable}, TokenSymbol: "USDC"},
		{Key: strategy.Key{Asset: strategy.AssetUSD, Duration: strategy.Duration90Days, Kind: strategy.KindIncentive}, TokenSymbol: "USDC"},
		{Key: strategy.Key{Asset: strategy.AssetETH, Duration: strategy.DurationFlexible, Kind: strategy.KindStable}},
	}
}

func TestFilterStrategies(t *testing.T) {
	got, err := filterStrategies(testStrategies(), "usdc", "")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = filterStrategies(testStrategies(), "", "boosted")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, strategy.Duration90Days, got[0].Key.Duration)

	got, err = filterStrategies(testStrategies(), "eth", "incentive")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = filterStrategies(testStrategies(), "doge", "")
	assert.Error(t, err)
}

func TestTokenLabel(t *testing.T) {
	list := testStrategies()
	assert.Equal(t, "USDC", tokenLabel(list[0]))
	assert.Equal(t, "ETH", tokenLabel(list[2]))
}

func TestPhaseLabel(t *testing.T) {
	phases := []deposit.Phase{
		deposit.PhaseIdle,
		deposit.PhaseValidatingInput,
		deposit.PhaseCheckingAllowance,
		deposit.PhaseApproving,
		deposit.PhaseAwaitingApprovalConfirmation,
		deposit.PhaseDepositing,
		deposit.PhaseAwaitingDepositConfirmation,
		deposit.PhaseSucceeded,
		deposit.PhaseFailed,
	}
	for _, p := range phases {
		assert.NotEqual(t, string(p), phaseLabel(p), p)
	}
}

func TestParseHash(t *testing.T) {
	valid := "0x" + common.Bytes2Hex(common.LeftPadBytes([]byte{0xab}, 32))
	h, err := parseHash(valid)
	require.NoError(t, err)
	assert.Equal(t, common.HexToHash(valid), h)

	_, err = parseHash("0x1234")
	assert.Error(t, err)
	_, err = parseHash("not-a-hash")
	assert.Error(t, err)
}

func TestValidateInterval(t *testing.T) {
	assert.NoError(t, validateInterval(1))
	assert.NoError(t, validateInterval(30))
	assert.Error(t, validateInterval(0))
	assert.Error(t, validateInterval(-5))
}
