// Package signals evaluates actionable market-microstructure signals over a
// metrics snapshot and the 300s trade buffer. Evaluation is pure and total:
// it never fails and returns no signals on degenerate input.
package signals

import (
	"encoding/json"
	"sort"

	"github.com/dmittakarin8/solflow/internal/domain"
)

// Evaluate runs all five signal evaluators for one token update. Each signal
// is independent; any subset may fire. Signals are not deduplicated here —
// consumers filter by timestamp proximity.
func Evaluate(mint string, m domain.RollingMetrics, trades []domain.TradeEvent, now int64) []domain.Signal {
	var out []domain.Signal

	if s, ok := evaluateBreakout(mint, m, now); ok {
		out = append(out, s)
	}
	if s, ok := evaluateReaccumulation(mint, m, now); ok {
		out = append(out, s)
	}
	if s, ok := evaluateFocusedBuyers(mint, m, trades, now); ok {
		out = append(out, s)
	}
	if s, ok := evaluatePersistence(mint, m, now); ok {
		out = append(out, s)
	}
	if s, ok := evaluateFlowReversal(mint, m, trades, now); ok {
		out = append(out, s)
	}

	return out
}

// evaluateBreakout fires when flow is accelerating into the short windows
// with broad wallet participation and a low bot share.
//
// Flow comparisons across unequal windows are duration-normalized (SOL per
// second); raw sums would make a longer window dominate a shorter one even
// while momentum builds.
func evaluateBreakout(mint string, m domain.RollingMetrics, now int64) (domain.Signal, bool) {
	rate60 := m.NetFlow60s / 60
	rate300 := m.NetFlow300s / 300
	rate900 := m.NetFlow900s / 900
	botRatio := m.BotRatio300s()

	accelerating := rate300 > rate900 && m.NetFlow300s > 0
	momentumShift := rate60 > rate300
	hasWallets := m.UniqueWallets300s >= 5
	botOK := botRatio <= 0.3

	if !accelerating || !momentumShift || !hasWallets || !botOK {
		return domain.Signal{}, false
	}

	accel := clamp01((rate300 - rate900) / max1(abs(rate900)))
	momentum := clamp01(rate60 / max1(rate300))
	wallet := clamp01(float64(m.UniqueWallets300s) / 20)
	strength := 0.3*accel + 0.3*momentum + 0.2*wallet + 0.2*(1-botRatio)

	return newSignal(mint, domain.SignalBreakout, strength, "300s", now, map[string]any{
		"net_flow_60s":   m.NetFlow60s,
		"net_flow_300s":  m.NetFlow300s,
		"net_flow_900s":  m.NetFlow900s,
		"unique_wallets": m.UniqueWallets300s,
		"bot_ratio":      botRatio,
	}), true
}

// evaluateReaccumulation fires when DCA flow is positive across at least two
// wallets while overall momentum shifts positive.
func evaluateReaccumulation(mint string, m domain.RollingMetrics, now int64) (domain.Signal, bool) {
	dcaActive := m.DCAFlow300s > 0 && m.DCAUniqueWallets300s >= 2
	positiveFlow := m.NetFlow300s > 0
	momentumShift := m.NetFlow300s > m.NetFlow900s

	if !dcaActive || !positiveFlow || !momentumShift {
		return domain.Signal{}, false
	}

	dcaFactor := clamp01(m.DCAFlow300s / 10)
	walletFactor := clamp01(float64(m.DCAUniqueWallets300s) / 5)
	flowFactor := clamp01(m.NetFlow300s / 50)
	momentum := clamp01((m.NetFlow300s - m.NetFlow900s) / max1(abs(m.NetFlow900s)))
	strength := 0.3*dcaFactor + 0.2*walletFactor + 0.3*flowFactor + 0.2*momentum

	return newSignal(mint, domain.SignalReaccumulation, strength, "300s", now, map[string]any{
		"dca_flow":      m.DCAFlow300s,
		"dca_wallets":   m.DCAUniqueWallets300s,
		"net_flow_300s": m.NetFlow300s,
		"net_flow_900s": m.NetFlow900s,
		"dca_ratio":     m.DCARatio300s,
	}), true
}

// evaluateFocusedBuyers fires when a small fraction of buyers supplies most
// of the positive inflow. The f-score is the minimum fraction of buyers whose
// cumulative inflow reaches 70% of the total, 1 when there is no inflow.
func evaluateFocusedBuyers(mint string, m domain.RollingMetrics, trades []domain.TradeEvent, now int64) (domain.Signal, bool) {
	if m.NetFlow300s <= 0 {
		return domain.Signal{}, false
	}

	inflows := make(map[string]float64)
	var totalInflow float64
	for _, t := range trades {
		if t.Direction == domain.DirectionBuy && t.SolAmount > 0 {
			inflows[t.Wallet] += t.SolAmount
			totalInflow += t.SolAmount
		}
	}

	fScore := 1.0
	walletsNeeded := 0
	if totalInflow > 0 {
		flows := make([]float64, 0, len(inflows))
		for _, f := range inflows {
			flows = append(flows, f)
		}
		sort.Sort(sort.Reverse(sort.Float64Slice(flows)))

		target := totalInflow * 0.7
		var cumulative float64
		for _, f := range flows {
			cumulative += f
			walletsNeeded++
			if cumulative >= target {
				break
			}
		}
		fScore = float64(walletsNeeded) / float64(len(flows))
	}

	if fScore > 0.35 {
		return domain.Signal{}, false
	}

	concentration := clamp01(1 - fScore/0.35)
	flowFactor := clamp01(m.NetFlow300s / 50)
	strength := 0.6*concentration + 0.4*flowFactor

	return newSignal(mint, domain.SignalFocusedBuyers, strength, "300s", now, map[string]any{
		"f_score":        fScore,
		"wallets_needed": walletsNeeded,
		"total_wallets":  len(inflows),
		"net_flow_300s":  m.NetFlow300s,
		"total_inflow":   totalInflow,
	}), true
}

// evaluatePersistence fires when net flow stays positive across all three
// short windows without a wallet collapse or a bot surge.
func evaluatePersistence(mint string, m domain.RollingMetrics, now int64) (domain.Signal, bool) {
	botRatio := m.BotRatio300s()

	allPositive := m.NetFlow60s > 0 && m.NetFlow300s > 0 && m.NetFlow900s > 0
	hasWallets := m.UniqueWallets300s >= 5
	botOK := botRatio <= 0.4

	if !allPositive || !hasWallets || !botOK {
		return domain.Signal{}, false
	}

	consistency := 1 - clamp01(abs(m.NetFlow60s-m.NetFlow300s)/max1(m.NetFlow300s))
	magnitude := clamp01(m.NetFlow900s / 100)
	wallet := clamp01(float64(m.UniqueWallets300s) / 20)
	strength := 0.3*consistency + 0.3*magnitude + 0.2*wallet + 0.2*(1-botRatio)

	return newSignal(mint, domain.SignalPersistence, strength, "900s", now, map[string]any{
		"net_flow_60s":   m.NetFlow60s,
		"net_flow_300s":  m.NetFlow300s,
		"net_flow_900s":  m.NetFlow900s,
		"unique_wallets": m.UniqueWallets300s,
		"bot_ratio":      botRatio,
	}), true
}

// evaluateFlowReversal fires when the 60s window turns negative against a
// still-positive 300s window while participation thins out: fewer unique
// wallets than half the trades in the last minute.
func evaluateFlowReversal(mint string, m domain.RollingMetrics, trades []domain.TradeEvent, now int64) (domain.Signal, bool) {
	if m.NetFlow60s >= 0 || m.NetFlow300s <= 0 {
		return domain.Signal{}, false
	}

	trades60 := m.BuyCount60s + m.SellCount60s
	wallets60 := make(map[string]struct{})
	for _, t := range trades {
		if t.Timestamp >= now-60 {
			wallets60[t.Wallet] = struct{}{}
		}
	}

	walletsPerTrade := float64(len(wallets60)) / float64(maxInt(1, trades60))
	if walletsPerTrade >= 0.5 {
		return domain.Signal{}, false
	}

	divergence := clamp01((m.NetFlow300s - m.NetFlow60s) / max1(abs(m.NetFlow300s)))
	flowFactor := clamp01(m.NetFlow300s / 50)
	strength := 0.6*divergence + 0.4*flowFactor

	return newSignal(mint, domain.SignalFlowReversal, strength, "60s", now, map[string]any{
		"net_flow_60s":      m.NetFlow60s,
		"net_flow_300s":     m.NetFlow300s,
		"unique_wallets":    m.UniqueWallets300s,
		"total_trades_60s":  trades60,
		"wallets_per_trade": walletsPerTrade,
	}), true
}

// newSignal clamps strength and serializes the metadata object.
func newSignal(mint string, kind domain.SignalKind, strength float64, window string, now int64, metadata map[string]any) domain.Signal {
	data, err := json.Marshal(metadata)
	if err != nil {
		data = []byte("{}")
	}
	return domain.Signal{
		Mint:      mint,
		Kind:      kind,
		Strength:  clamp01(strength),
		Window:    window,
		Timestamp: now,
		Metadata:  string(data),
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func max1(v float64) float64 {
	if v < 1 {
		return 1
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
