package domain

// TradeDirection is the side of a swap from the user's perspective.
type TradeDirection int

const (
	DirectionUnknown TradeDirection = iota
	DirectionBuy
	DirectionSell
)

// String returns the lowercase side tag used in the token_trades table.
func (d TradeDirection) String() string {
	switch d {
	case DirectionBuy:
		return "buy"
	case DirectionSell:
		return "sell"
	default:
		return "unknown"
	}
}

// ParseDirection converts a stored side tag back to a TradeDirection.
func ParseDirection(s string) TradeDirection {
	switch s {
	case "buy":
		return DirectionBuy
	case "sell":
		return DirectionSell
	default:
		return DirectionUnknown
	}
}

// Venue source program tags. These match the upstream decoder program IDs.
const (
	// PumpSwap is the pump.fun AMM program.
	PumpSwap = "pAMMBay6oceH9fJKBRHGP5D4bD4sWpmSwMn52FMfXEA"
	// Moonshot is the Moonshot bonding-curve program.
	Moonshot = "MoonCVVNZFSYkqNXP6bxHLPL6QQJiMagDL3qcqUQTrG"
	// BonkSwap is the BonkSwap AMM program.
	BonkSwap = "BSwp6bEBihVLdqJRKGgzjcGLHkcTuzmSo1TQkHepzH8p"
	// JupiterDCA is the Jupiter dollar-cost-averaging program. Trades
	// originating here are tagged is_dca regardless of size or direction.
	JupiterDCA = "DCA265Vj8a9CEuX1eb1LWRnDT7uK6q1xMipnNyatn23M"
)

// SourceName maps a venue program ID to its short display name.
func SourceName(programID string) string {
	switch programID {
	case PumpSwap:
		return "PumpSwap"
	case Moonshot:
		return "Moonshot"
	case BonkSwap:
		return "BonkSwap"
	case JupiterDCA:
		return "JupiterDCA"
	default:
		return "Unknown"
	}
}

// TradeEvent is the canonical unit produced by the extractor and consumed
// exactly once by the rolling state. A copy is appended to the persistent
// trade log.
type TradeEvent struct {
	Timestamp     int64          // Unix seconds
	Mint          string         // token mint address
	Wallet        string         // user account address
	Direction     TradeDirection //
	SolAmount     float64        // >= 0; zero-amount events never update flow
	TokenAmount   float64        //
	TokenDecimals uint8          // 0-18
	SourceProgram string         // venue program ID
	IsBot         bool           // assigned by the classifier during insertion
	IsDCA         bool           // assigned by the classifier during insertion
	Degraded      bool           // SOL amount came from an instruction bound, not balances
}
