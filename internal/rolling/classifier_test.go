package rolling

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmittakarin8/solflow/internal/domain"
)

func TestClassifier_DCATag(t *testing.T) {
	state := NewTokenRollingState("mint_test")
	cls := newTestClassifier()

	ev := makeTrade(1000, "w1", domain.DirectionSell, 1)
	ev.SourceProgram = domain.JupiterDCA
	res := state.Insert(ev, cls)

	// Direction is irrelevant for the DCA tag.
	assert.True(t, res.Event.IsDCA)
	assert.False(t, res.Event.IsBot)
}

func TestClassifier_RapidBurstFlagsThirdTrade(t *testing.T) {
	state := NewTokenRollingState("mint_test")
	cls := newTestClassifier()

	r1 := state.Insert(makeTrade(100, "wA", domain.DirectionBuy, 1), cls)
	r2 := state.Insert(makeTrade(102, "wA", domain.DirectionBuy, 1), cls)
	r3 := state.Insert(makeTrade(104, "wA", domain.DirectionBuy, 1), cls)

	assert.False(t, r1.Event.IsBot)
	assert.False(t, r2.Event.IsBot)
	assert.True(t, r3.Event.IsBot)
}

func TestClassifier_NotStickyAfterLapse(t *testing.T) {
	state := NewTokenRollingState("mint_test")
	cls := newTestClassifier()

	state.Insert(makeTrade(100, "wA", domain.DirectionBuy, 1), cls)
	state.Insert(makeTrade(102, "wA", domain.DirectionBuy, 1), cls)
	burst := state.Insert(makeTrade(104, "wA", domain.DirectionBuy, 1), cls)
	assert.True(t, burst.Event.IsBot)

	// Much later, the pattern has lapsed: the wallet trades clean again.
	later := state.Insert(makeTrade(500, "wA", domain.DirectionBuy, 1), cls)
	assert.False(t, later.Event.IsBot)
}

func TestClassifier_SlowTradingNotFlagged(t *testing.T) {
	state := NewTokenRollingState("mint_test")
	cls := newTestClassifier()

	// Three trades, but spread over 40 seconds: no 10s sub-interval holds 3.
	state.Insert(makeTrade(100, "wA", domain.DirectionBuy, 1), cls)
	state.Insert(makeTrade(120, "wA", domain.DirectionBuy, 1), cls)
	res := state.Insert(makeTrade(140, "wA", domain.DirectionBuy, 1), cls)

	assert.False(t, res.Event.IsBot)
}

func TestClassifier_OpposingPairWithinTwoSeconds(t *testing.T) {
	state := NewTokenRollingState("mint_test")
	cls := newTestClassifier()

	r1 := state.Insert(makeTrade(100, "wM", domain.DirectionBuy, 1), cls)
	r2 := state.Insert(makeTrade(101, "wM", domain.DirectionSell, 1), cls)

	assert.False(t, r1.Event.IsBot)
	assert.True(t, r2.Event.IsBot)
	assert.Equal(t, 2, r2.Metrics.BotTrades300s)
}

func TestClassifier_OpposingOutsideWindowNotFlagged(t *testing.T) {
	state := NewTokenRollingState("mint_test")
	cls := newTestClassifier()

	state.Insert(makeTrade(100, "wM", domain.DirectionBuy, 1), cls)
	res := state.Insert(makeTrade(105, "wM", domain.DirectionSell, 1), cls)

	assert.False(t, res.Event.IsBot)
}

func TestClassifier_DifferentWalletsIndependent(t *testing.T) {
	state := NewTokenRollingState("mint_test")
	cls := newTestClassifier()

	state.Insert(makeTrade(100, "w1", domain.DirectionBuy, 1), cls)
	state.Insert(makeTrade(101, "w2", domain.DirectionBuy, 1), cls)
	res := state.Insert(makeTrade(102, "w3", domain.DirectionBuy, 1), cls)

	assert.False(t, res.Event.IsBot)
	assert.Equal(t, 0, res.Metrics.BotTrades300s)
}

func TestClassifier_ThresholdsOverridable(t *testing.T) {
	state := NewTokenRollingState("mint_test")
	cls := NewClassifier(ClassifierConfig{
		RapidTrades:           2,
		RapidWindowSeconds:    10,
		OpposingTrades:        2,
		OpposingWindowSeconds: 2,
	})

	state.Insert(makeTrade(100, "wA", domain.DirectionBuy, 1), cls)
	res := state.Insert(makeTrade(104, "wA", domain.DirectionBuy, 1), cls)

	// With the lowered threshold, the second trade already trips.
	assert.True(t, res.Event.IsBot)
}
