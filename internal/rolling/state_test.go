package rolling

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmittakarin8/solflow/internal/domain"
)

func newTestClassifier() *Classifier {
	return NewClassifier(DefaultClassifierConfig())
}

func makeTrade(ts int64, wallet string, direction domain.TradeDirection, sol float64) domain.TradeEvent {
	return domain.TradeEvent{
		Timestamp:     ts,
		Mint:          "mint_test",
		Wallet:        wallet,
		Direction:     direction,
		SolAmount:     sol,
		TokenAmount:   1000,
		TokenDecimals: 6,
		SourceProgram: domain.PumpSwap,
	}
}

func TestInsert_SingleBuy(t *testing.T) {
	state := NewTokenRollingState("mint_test")
	cls := newTestClassifier()

	res := state.Insert(makeTrade(1000, "buyer1", domain.DirectionBuy, 2.0), cls)

	require.True(t, res.Accepted)
	assert.Equal(t, 2.0, res.Metrics.NetFlow60s)
	assert.Equal(t, 2.0, res.Metrics.NetFlow14400s)
	assert.Equal(t, 1, res.Metrics.BuyCount60s)
	assert.Equal(t, 0, res.Metrics.SellCount60s)
	assert.Equal(t, 1, res.Metrics.UniqueWallets300s)
	assert.Equal(t, int64(1000), res.Now)
}

func TestInsert_BuyAndSell(t *testing.T) {
	state := NewTokenRollingState("mint_test")
	cls := newTestClassifier()

	state.Insert(makeTrade(1000, "buyer1", domain.DirectionBuy, 5.0), cls)
	res := state.Insert(makeTrade(1010, "seller1", domain.DirectionSell, 2.0), cls)

	assert.Equal(t, 3.0, res.Metrics.NetFlow60s)
	assert.Equal(t, 1, res.Metrics.BuyCount60s)
	assert.Equal(t, 1, res.Metrics.SellCount60s)
	assert.Equal(t, 2, res.Metrics.UniqueWallets300s)
}

// Window pruning: a trade at t=0 followed by one at t=65
// leaves only the second in the 60s window but both in the 300s window.
func TestInsert_WindowPruning(t *testing.T) {
	state := NewTokenRollingState("mint_test")
	cls := newTestClassifier()

	state.Insert(makeTrade(0, "w1", domain.DirectionBuy, 10), cls)
	res := state.Insert(makeTrade(65, "w2", domain.DirectionBuy, 10), cls)

	assert.Equal(t, 10.0, res.Metrics.NetFlow60s)
	assert.Equal(t, 20.0, res.Metrics.NetFlow300s)
}

// A trade exactly at now-w stays in window w (closed boundary).
func TestInsert_BoundaryInclusive(t *testing.T) {
	state := NewTokenRollingState("mint_test")
	cls := newTestClassifier()

	state.Insert(makeTrade(100, "w1", domain.DirectionBuy, 1), cls)
	res := state.Insert(makeTrade(160, "w2", domain.DirectionBuy, 1), cls)

	// now=160, cutoff 60s window = 100: the first trade is exactly at the
	// boundary and must be included.
	assert.Equal(t, 2.0, res.Metrics.NetFlow60s)
}

func TestInsert_OutOfOrderWithinWindow(t *testing.T) {
	state := NewTokenRollingState("mint_test")
	cls := newTestClassifier()

	state.Insert(makeTrade(1000, "w1", domain.DirectionBuy, 1), cls)
	// Older than the latest but still inside every window: accepted.
	res := state.Insert(makeTrade(990, "w2", domain.DirectionBuy, 2), cls)

	require.True(t, res.Accepted)
	assert.Equal(t, int64(1000), res.Now)
	assert.Equal(t, 3.0, res.Metrics.NetFlow60s)
	assert.Equal(t, 2, res.Metrics.UniqueWallets300s)
}

func TestInsert_OlderThanLargestWindowDiscarded(t *testing.T) {
	state := NewTokenRollingState("mint_test")
	cls := newTestClassifier()

	state.Insert(makeTrade(20000, "w1", domain.DirectionBuy, 1), cls)
	res := state.Insert(makeTrade(100, "w2", domain.DirectionBuy, 5), cls)

	assert.False(t, res.Accepted)
	assert.Equal(t, 1.0, res.Metrics.NetFlow14400s)
	assert.Equal(t, 1, res.Metrics.UniqueWallets300s)
}

// An event placed between two window spans lands only in the windows that
// still cover it.
func TestInsert_PartialWindowCoverage(t *testing.T) {
	state := NewTokenRollingState("mint_test")
	cls := newTestClassifier()

	state.Insert(makeTrade(1000, "w1", domain.DirectionBuy, 1), cls)
	// 200 seconds old relative to now=1000: outside 60s, inside 300s+.
	res := state.Insert(makeTrade(800, "w2", domain.DirectionBuy, 4), cls)

	require.True(t, res.Accepted)
	assert.Equal(t, 1.0, res.Metrics.NetFlow60s)
	assert.Equal(t, 5.0, res.Metrics.NetFlow300s)
}

func TestInsert_ZeroSolIgnored(t *testing.T) {
	state := NewTokenRollingState("mint_test")
	cls := newTestClassifier()

	state.Insert(makeTrade(1000, "w1", domain.DirectionBuy, 1), cls)
	res := state.Insert(makeTrade(1001, "w2", domain.DirectionBuy, 0), cls)

	assert.False(t, res.Accepted)
	assert.Equal(t, 1.0, res.Metrics.NetFlow60s)
	assert.Equal(t, 1, res.Metrics.UniqueWallets300s)
}

// Bot flag on rapid trading: the same wallet trading three times inside ten
// seconds is flagged on the third trade, and the whole burst counts.
func TestInsert_BotFlagOnRapidTrading(t *testing.T) {
	state := NewTokenRollingState("mint_test")
	cls := newTestClassifier()

	state.Insert(makeTrade(100, "wA", domain.DirectionBuy, 5), cls)
	state.Insert(makeTrade(102, "wA", domain.DirectionBuy, 5), cls)
	res := state.Insert(makeTrade(104, "wA", domain.DirectionBuy, 5), cls)

	assert.True(t, res.Event.IsBot)
	assert.Equal(t, 3, res.Metrics.BotTrades300s)
	assert.Equal(t, 1, res.Metrics.BotWallets300s)
	assert.Equal(t, 15.0, res.Metrics.BotFlow300s)
}

func TestInsert_DCAMetrics(t *testing.T) {
	state := NewTokenRollingState("mint_test")
	cls := newTestClassifier()

	dca := makeTrade(1000, "dca1", domain.DirectionBuy, 4)
	dca.SourceProgram = domain.JupiterDCA
	state.Insert(dca, cls)

	dca2 := makeTrade(1005, "dca2", domain.DirectionBuy, 6)
	dca2.SourceProgram = domain.JupiterDCA
	state.Insert(dca2, cls)

	res := state.Insert(makeTrade(1010, "w3", domain.DirectionBuy, 10), cls)

	assert.Equal(t, 10.0, res.Metrics.DCAFlow300s)
	assert.Equal(t, 2, res.Metrics.DCAUniqueWallets300s)
	assert.InDelta(t, 0.5, res.Metrics.DCARatio300s, 1e-9)
}

func TestInsert_DCARatioZeroWithoutInflow(t *testing.T) {
	state := NewTokenRollingState("mint_test")
	cls := newTestClassifier()

	res := state.Insert(makeTrade(1000, "w1", domain.DirectionSell, 5), cls)

	assert.Equal(t, 0.0, res.Metrics.DCARatio300s)
}

func TestInsert_VolumeAndAvgTradeSize(t *testing.T) {
	state := NewTokenRollingState("mint_test")
	cls := newTestClassifier()

	state.Insert(makeTrade(1000, "w1", domain.DirectionBuy, 10), cls)
	res := state.Insert(makeTrade(1001, "w2", domain.DirectionSell, 40), cls)

	assert.Equal(t, 30.0, res.Metrics.Volume300s)
	assert.Equal(t, 15.0, res.Metrics.AvgTradeSize300s)
}

// Wallet cardinality invariants hold for arbitrary insert sequences.
func TestInsert_WalletCountInvariants(t *testing.T) {
	state := NewTokenRollingState("mint_test")
	cls := newTestClassifier()

	var res InsertResult
	for i := 0; i < 40; i++ {
		ev := makeTrade(int64(1000+i), fmt.Sprintf("w%d", i%7), domain.DirectionBuy, 1)
		if i%5 == 0 {
			ev.SourceProgram = domain.JupiterDCA
		}
		res = state.Insert(ev, cls)
	}

	assert.GreaterOrEqual(t, res.Metrics.UniqueWallets300s, res.Metrics.BotWallets300s)
	assert.GreaterOrEqual(t, res.Metrics.UniqueWallets300s, res.Metrics.DCAUniqueWallets300s)
	assert.GreaterOrEqual(t, res.Metrics.DCARatio300s, 0.0)
	assert.LessOrEqual(t, res.Metrics.DCARatio300s, 1.0)
}

// Metrics recomputation from unchanged state is deterministic.
func TestComputeMetrics_Deterministic(t *testing.T) {
	state := NewTokenRollingState("mint_test")
	cls := newTestClassifier()

	for i := 0; i < 10; i++ {
		state.Insert(makeTrade(int64(1000+i), fmt.Sprintf("w%d", i), domain.DirectionBuy, float64(i)+0.5), cls)
	}

	first := state.computeMetrics()
	second := state.computeMetrics()
	assert.Equal(t, first, second)
}

// The wallet map never outlives the 300s buffer population.
func TestSweepWallets_DropsStaleRecords(t *testing.T) {
	state := NewTokenRollingState("mint_test")
	cls := newTestClassifier()

	state.Insert(makeTrade(1000, "old", domain.DirectionBuy, 1), cls)
	state.Insert(makeTrade(1400, "fresh", domain.DirectionBuy, 1), cls)

	assert.Len(t, state.wallets, 1)
	_, ok := state.wallets["fresh"]
	assert.True(t, ok)
}

// Snapshot buffers are value copies: mutating them cannot reach the cell.
func TestTrades300_IsACopy(t *testing.T) {
	state := NewTokenRollingState("mint_test")
	cls := newTestClassifier()

	res := state.Insert(makeTrade(1000, "w1", domain.DirectionBuy, 1), cls)
	require.Len(t, res.Trades300, 1)

	res.Trades300[0].SolAmount = 999
	again := state.computeMetrics()
	assert.Equal(t, 1.0, again.NetFlow300s)
}
