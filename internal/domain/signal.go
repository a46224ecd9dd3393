package domain

// SignalKind identifies one of the five evaluated signal types.
type SignalKind string

const (
	SignalBreakout       SignalKind = "BREAKOUT"
	SignalReaccumulation SignalKind = "REACCUMULATION"
	SignalFocusedBuyers  SignalKind = "FOCUSED_BUYERS"
	SignalPersistence    SignalKind = "PERSISTENCE"
	SignalFlowReversal   SignalKind = "FLOW_REVERSAL"
)

// Signal is one strength-scored signal emission. Signals are append-only and
// may repeat while their conditions persist; consumers post-filter by
// timestamp proximity.
type Signal struct {
	Mint      string
	Kind      SignalKind
	Strength  float64 // clamped to [0,1]
	Window    string  // primary window tag: "60s", "300s" or "900s"
	Timestamp int64   // Unix seconds
	Metadata  string  // open-schema JSON object with per-kind fields
}
