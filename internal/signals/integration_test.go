package signals

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmittakarin8/solflow/internal/domain"
	"github.com/dmittakarin8/solflow/internal/rolling"
)

// Breakout end to end: five buys early in the window and a larger one at
// t=200 drive the expected metrics, and the evaluator fires on them.
func TestBreakout_FromRollingState(t *testing.T) {
	state := rolling.NewTokenRollingState("mint_test")
	cls := rolling.NewClassifier(rolling.DefaultClassifierConfig())

	inserts := []struct {
		ts     int64
		wallet string
		sol    float64
	}{
		{100, "wA", 40},
		{101, "wB", 30},
		{102, "wC", 20},
		{103, "wD", 20},
		{104, "wE", 20},
		{200, "wF", 60},
	}

	var res rolling.InsertResult
	for _, in := range inserts {
		res = state.Insert(domain.TradeEvent{
			Timestamp:     in.ts,
			Mint:          "mint_test",
			Wallet:        in.wallet,
			Direction:     domain.DirectionBuy,
			SolAmount:     in.sol,
			SourceProgram: domain.PumpSwap,
		}, cls)
	}

	m := res.Metrics
	assert.Equal(t, 60.0, m.NetFlow60s)
	assert.Equal(t, 190.0, m.NetFlow300s)
	assert.Equal(t, 190.0, m.NetFlow900s)
	assert.Equal(t, 6, m.UniqueWallets300s)
	assert.Equal(t, 0.0, m.BotRatio300s())

	list := Evaluate("mint_test", m, res.Trades300, res.Now)
	sig, ok := findSignal(list, domain.SignalBreakout)
	require.True(t, ok, "breakout must fire")
	assert.GreaterOrEqual(t, sig.Strength, 0.4)
}
