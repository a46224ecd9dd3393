package domain

// RollingMetrics is an immutable snapshot computed from one token's rolling
// windows after each trade insertion. Snapshots are values: they are copied
// into write requests, never shared across task boundaries by reference.
type RollingMetrics struct {
	// Net flow per window, SOL. Buy = +, Sell = -.
	NetFlow60s    float64
	NetFlow300s   float64
	NetFlow900s   float64
	NetFlow3600s  float64
	NetFlow7200s  float64
	NetFlow14400s float64

	// Trade counts for the short windows.
	BuyCount60s   int
	SellCount60s  int
	BuyCount300s  int
	SellCount300s int
	BuyCount900s  int
	SellCount900s int

	// 300s derived metrics.
	UniqueWallets300s    int
	BotWallets300s       int
	BotTrades300s        int
	BotFlow300s          float64
	DCAFlow300s          float64
	DCAUniqueWallets300s int
	DCARatio300s         float64 // dca positive inflow / total positive inflow, 0 if no inflow

	// Volume metrics, 300s window.
	Volume300s       float64
	AvgTradeSize300s float64
}

// TotalTrades300s returns the bot-ratio denominator.
func (m RollingMetrics) TotalTrades300s() int {
	return m.BuyCount300s + m.SellCount300s
}

// BotRatio300s returns bot trades over total trades in the 300s window,
// zero when the window is empty.
func (m RollingMetrics) BotRatio300s() float64 {
	total := m.TotalTrades300s()
	if total == 0 {
		return 0
	}
	return float64(m.BotTrades300s) / float64(total)
}
