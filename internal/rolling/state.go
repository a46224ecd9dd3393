// Package rolling maintains per-token sliding windows of trade flow and
// wallet activity, and computes metric snapshots on every insertion.
package rolling

import (
	"github.com/dmittakarin8/solflow/internal/domain"
)

// WindowSpans are the six rolling window durations in seconds, ascending.
var WindowSpans = [6]int64{60, 300, 900, 3600, 7200, 14400}

// MaxWindow is the largest window span; events older than now-MaxWindow are
// discarded from all windows.
const MaxWindow int64 = 14400

// walletWindow is the wallet-activity scope in seconds.
const walletWindow int64 = 300

// walletTrade is one entry of a wallet's recent-trade tracker.
type walletTrade struct {
	timestamp int64
	solAmount float64
	direction domain.TradeDirection
}

// WalletActivity tracks one wallet's recent trades on one mint, pruned to the
// last 300 seconds, plus lifetime first/last seen timestamps.
type WalletActivity struct {
	firstSeen int64
	lastSeen  int64
	trades    []walletTrade
}

// prune drops entries older than now-walletWindow. Entries are kept in
// insertion order, which may differ from timestamp order for mildly
// out-of-order events, so the whole slice is scanned.
func (w *WalletActivity) prune(now int64) {
	cutoff := now - walletWindow
	kept := w.trades[:0]
	for _, t := range w.trades {
		if t.timestamp >= cutoff {
			kept = append(kept, t)
		}
	}
	w.trades = kept
}

// stale reports whether the record is empty and past the wallet window.
func (w *WalletActivity) stale(now int64) bool {
	return len(w.trades) == 0 && now-w.lastSeen > walletWindow
}

// TokenRollingState is one mint's rolling state. It is owned by exactly one
// cell of the concurrent Store; all methods require the cell lock.
type TokenRollingState struct {
	mint     string
	latestTS int64

	// One buffer per window span. Buffers share event pointers so a
	// classifier flag update is visible in every window.
	windows [6][]*domain.TradeEvent

	wallets map[string]*WalletActivity
}

// NewTokenRollingState creates the state for a mint's first trade.
func NewTokenRollingState(mint string) *TokenRollingState {
	return &TokenRollingState{
		mint:    mint,
		wallets: make(map[string]*WalletActivity),
	}
}

// Mint returns the token mint this state belongs to.
func (s *TokenRollingState) Mint() string { return s.mint }

// LatestTimestamp returns the high-water timestamp for this mint.
func (s *TokenRollingState) LatestTimestamp() int64 { return s.latestTS }

// InsertResult carries the outputs of one insertion as value copies; nothing
// in it aliases the cell's state.
type InsertResult struct {
	// Event is the inserted trade with classifier flags applied. Accepted
	// is false for events that never update flow (SolAmount <= 0 or older
	// than every window).
	Event    domain.TradeEvent
	Accepted bool

	// Metrics is the snapshot computed after the insertion.
	Metrics domain.RollingMetrics

	// Trades300 is a copy of the 300s buffer for the signals engine.
	Trades300 []domain.TradeEvent

	// Now is the cell clock the snapshot was computed at:
	// max(previous latest, event timestamp).
	Now int64
}

// Insert applies one trade: advance the clock, prune every window, classify,
// append to covering windows, update wallet activity, and return a metrics
// snapshot together with a copy of the 300s buffer.
//
// Events with SolAmount <= 0 never update flow: the snapshot reflects the
// pruned state and the event is not appended.
func (s *TokenRollingState) Insert(ev domain.TradeEvent, cls *Classifier) InsertResult {
	now := s.latestTS
	if ev.Timestamp > now {
		now = ev.Timestamp
	}
	s.latestTS = now

	s.evict(now)

	if ev.SolAmount <= 0 {
		s.sweepWallets(now)
		return InsertResult{
			Event:     ev,
			Metrics:   s.computeMetrics(),
			Trades300: s.trades300(),
			Now:       now,
		}
	}

	act := s.wallets[ev.Wallet]
	if act != nil {
		// Classify against the last 300s only, so a lapsed pattern no
		// longer flags new trades.
		act.prune(now)
	}
	cls.Classify(s, act, &ev)

	accepted := false
	stored := ev
	for i, span := range WindowSpans {
		if ev.Timestamp >= now-span {
			s.windows[i] = append(s.windows[i], &stored)
			accepted = true
		}
	}

	if act == nil {
		act = &WalletActivity{firstSeen: ev.Timestamp}
		s.wallets[ev.Wallet] = act
	}
	act.lastSeen = ev.Timestamp
	act.trades = append(act.trades, walletTrade{
		timestamp: ev.Timestamp,
		solAmount: ev.SolAmount,
		direction: ev.Direction,
	})
	act.prune(now)
	s.sweepWallets(now)

	return InsertResult{
		Event:     ev,
		Accepted:  accepted,
		Metrics:   s.computeMetrics(),
		Trades300: s.trades300(),
		Now:       now,
	}
}

// evict drops entries outside each window. An entry exactly at now-span is
// kept (closed boundary). Buffers hold insertion order, not timestamp order,
// so each is filtered in full.
func (s *TokenRollingState) evict(now int64) {
	for i, span := range WindowSpans {
		cutoff := now - span
		kept := s.windows[i][:0]
		for _, ev := range s.windows[i] {
			if ev.Timestamp >= cutoff {
				kept = append(kept, ev)
			}
		}
		s.windows[i] = kept
	}
}

// sweepWallets prunes every activity record and drops the empty stale ones,
// keeping the wallet map bounded by the 300s buffer population.
func (s *TokenRollingState) sweepWallets(now int64) {
	for wallet, act := range s.wallets {
		act.prune(now)
		if act.stale(now) {
			delete(s.wallets, wallet)
		}
	}
}

// trades300 returns a value copy of the 300s buffer for the signals engine.
func (s *TokenRollingState) trades300() []domain.TradeEvent {
	buf := s.windows[1]
	out := make([]domain.TradeEvent, len(buf))
	for i, ev := range buf {
		out[i] = *ev
	}
	return out
}

// computeMetrics builds an immutable snapshot from the current buffers.
func (s *TokenRollingState) computeMetrics() domain.RollingMetrics {
	var m domain.RollingMetrics

	flows := [6]*float64{
		&m.NetFlow60s, &m.NetFlow300s, &m.NetFlow900s,
		&m.NetFlow3600s, &m.NetFlow7200s, &m.NetFlow14400s,
	}
	for i := range WindowSpans {
		var flow float64
		buys, sells := 0, 0
		for _, ev := range s.windows[i] {
			switch ev.Direction {
			case domain.DirectionBuy:
				flow += ev.SolAmount
				buys++
			case domain.DirectionSell:
				flow -= ev.SolAmount
				sells++
			}
		}
		*flows[i] = flow

		switch i {
		case 0:
			m.BuyCount60s, m.SellCount60s = buys, sells
		case 1:
			m.BuyCount300s, m.SellCount300s = buys, sells
		case 2:
			m.BuyCount900s, m.SellCount900s = buys, sells
		}
	}

	uniqueWallets := make(map[string]struct{})
	botWallets := make(map[string]struct{})
	dcaWallets := make(map[string]struct{})
	var totalInflow, dcaInflow float64

	for _, ev := range s.windows[1] {
		uniqueWallets[ev.Wallet] = struct{}{}

		sign := 0.0
		switch ev.Direction {
		case domain.DirectionBuy:
			sign = 1
			totalInflow += ev.SolAmount
		case domain.DirectionSell:
			sign = -1
		}

		if ev.IsBot {
			botWallets[ev.Wallet] = struct{}{}
			m.BotTrades300s++
			m.BotFlow300s += sign * ev.SolAmount
		}
		if ev.IsDCA {
			dcaWallets[ev.Wallet] = struct{}{}
			m.DCAFlow300s += sign * ev.SolAmount
			if ev.Direction == domain.DirectionBuy {
				dcaInflow += ev.SolAmount
			}
		}
	}

	m.UniqueWallets300s = len(uniqueWallets)
	m.BotWallets300s = len(botWallets)
	m.DCAUniqueWallets300s = len(dcaWallets)
	if totalInflow > 0 {
		m.DCARatio300s = dcaInflow / totalInflow
	}

	m.Volume300s = m.NetFlow300s
	if m.Volume300s < 0 {
		m.Volume300s = -m.Volume300s
	}
	if trades := m.BuyCount300s + m.SellCount300s; trades > 0 {
		m.AvgTradeSize300s = m.Volume300s / float64(trades)
	}

	return m
}

// flagWalletTrades sets the bot flag on this wallet's buffered trades at or
// after since. Buffers share pointers, so one pass over the largest window
// reaches every copy.
func (s *TokenRollingState) flagWalletTrades(wallet string, since int64) {
	for _, ev := range s.windows[5] {
		if ev.Wallet == wallet && ev.Timestamp >= since {
			ev.IsBot = true
		}
	}
}
