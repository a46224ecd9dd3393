package rolling

import (
	"sort"

	"github.com/dmittakarin8/solflow/internal/domain"
)

// ClassifierConfig holds the bot-detection thresholds. The defaults mirror
// the live deployment but are not empirically tuned; callers may override.
type ClassifierConfig struct {
	// RapidTrades flags a wallet that produced at least this many trades on
	// one mint within RapidWindowSeconds.
	RapidTrades        int
	RapidWindowSeconds int64

	// OpposingTrades flags an MEV-style pattern: at least this many
	// opposing-direction trades within OpposingWindowSeconds.
	OpposingTrades        int
	OpposingWindowSeconds int64
}

// DefaultClassifierConfig returns the live thresholds.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		RapidTrades:           3,
		RapidWindowSeconds:    10,
		OpposingTrades:        2,
		OpposingWindowSeconds: 2,
	}
}

// Classifier tags trades as bot or DCA during rolling-state insertion. The
// bot flag is per-trade, not sticky: a wallet whose pattern lapses produces
// unflagged trades again.
type Classifier struct {
	cfg ClassifierConfig
}

// NewClassifier creates a classifier with the given thresholds.
func NewClassifier(cfg ClassifierConfig) *Classifier {
	if cfg.RapidTrades <= 0 {
		cfg = DefaultClassifierConfig()
	}
	return &Classifier{cfg: cfg}
}

// Classify sets ev.IsBot and ev.IsDCA. It runs after window pruning and
// before buffers are updated: act holds the wallet's prior trades and ev is
// the trade being inserted.
//
// When a pattern is detected, the wallet's buffered trades participating in
// the pattern are flagged retroactively so the 300s bot metrics count the
// whole burst, not just the triggering trade.
func (c *Classifier) Classify(state *TokenRollingState, act *WalletActivity, ev *domain.TradeEvent) {
	ev.IsDCA = ev.SourceProgram == domain.JupiterDCA

	var prior []walletTrade
	if act != nil {
		prior = act.trades
	}

	if since, ok := c.rapidBurst(prior, ev); ok {
		ev.IsBot = true
		state.flagWalletTrades(ev.Wallet, since)
		return
	}
	if since, ok := c.opposingPair(prior, ev); ok {
		ev.IsBot = true
		state.flagWalletTrades(ev.Wallet, since)
	}
}

// rapidBurst reports whether the wallet has RapidTrades trades inside any
// rolling RapidWindowSeconds sub-interval, counting the current trade.
// Returns the start of the matched interval.
func (c *Classifier) rapidBurst(prior []walletTrade, ev *domain.TradeEvent) (int64, bool) {
	ts := make([]int64, 0, len(prior)+1)
	for _, t := range prior {
		ts = append(ts, t.timestamp)
	}
	ts = append(ts, ev.Timestamp)
	sort.Slice(ts, func(i, j int) bool { return ts[i] < ts[j] })

	j := 0
	for i := range ts {
		for ts[i]-ts[j] > c.cfg.RapidWindowSeconds {
			j++
		}
		if i-j+1 >= c.cfg.RapidTrades {
			return ts[j], true
		}
	}
	return 0, false
}

// opposingPair reports whether the wallet shows OpposingTrades trades of
// opposing direction within OpposingWindowSeconds, counting the current
// trade. Returns the earliest timestamp of the matched pair.
func (c *Classifier) opposingPair(prior []walletTrade, ev *domain.TradeEvent) (int64, bool) {
	all := make([]walletTrade, 0, len(prior)+1)
	all = append(all, prior...)
	all = append(all, walletTrade{timestamp: ev.Timestamp, direction: ev.Direction})

	for i := range all {
		opposing := 1
		earliest := all[i].timestamp
		for j := range all {
			if i == j {
				continue
			}
			dt := all[i].timestamp - all[j].timestamp
			if dt < 0 {
				dt = -dt
			}
			if dt <= c.cfg.OpposingWindowSeconds && opposite(all[i].direction, all[j].direction) {
				opposing++
				if all[j].timestamp < earliest {
					earliest = all[j].timestamp
				}
			}
		}
		if opposing >= c.cfg.OpposingTrades {
			return earliest, true
		}
	}
	return 0, false
}

func opposite(a, b domain.TradeDirection) bool {
	return (a == domain.DirectionBuy && b == domain.DirectionSell) ||
		(a == domain.DirectionSell && b == domain.DirectionBuy)
}

