// Package stream defines the boundary to the upstream decoder layer: the
// decoded venue instructions, their transaction metadata, and the Source
// interface that delivers them.
package stream

import "context"

// InstructionKind identifies the recognized venue instruction variants.
type InstructionKind string

const (
	// KindBuyEvent and KindSellEvent carry an explicit SOL amount in the
	// instruction payload.
	KindBuyEvent  InstructionKind = "buy_event"
	KindSellEvent InstructionKind = "sell_event"

	// KindBuy, KindSell and KindBuyExactQuoteIn omit the SOL amount; the
	// extractor reconstructs it from pre/post lamport balances.
	KindBuy             InstructionKind = "buy"
	KindSell            InstructionKind = "sell"
	KindBuyExactQuoteIn InstructionKind = "buy_exact_quote_in"
)

// DecodedInstruction is one recognized swap instruction after upstream
// decoding. Account roles (user, mint) are resolved symbolically by the
// venue's arrange-accounts contract; positions within the transaction
// account-key list are never assumed.
type DecodedInstruction struct {
	ProgramID string          `json:"program_id"`
	Kind      InstructionKind `json:"kind"`
	Mint      string          `json:"mint"`
	User      string          `json:"user"`

	// SolLamports is the explicit SOL amount for event variants, zero for
	// the implicit variants.
	SolLamports uint64 `json:"sol_lamports,omitempty"`

	// TokenAmount is the raw token amount in base units.
	TokenAmount uint64 `json:"token_amount,omitempty"`

	// TokenDecimals is zero when the instruction carries no decimals field.
	TokenDecimals uint8 `json:"token_decimals,omitempty"`

	// MaxQuoteLamportsIn / MinQuoteLamportsOut are the instruction-provided
	// bounds used as degraded fallbacks when the user account cannot be
	// located.
	MaxQuoteLamportsIn  uint64 `json:"max_quote_lamports_in,omitempty"`
	MinQuoteLamportsOut uint64 `json:"min_quote_lamports_out,omitempty"`
}

// InstructionMeta is the transaction-level context attached to a decoded
// instruction.
type InstructionMeta struct {
	Signature string `json:"signature"`
	Slot      int64  `json:"slot"`
	BlockTime int64  `json:"block_time"`

	// FeeLamports is the transaction fee, paid by AccountKeys[0].
	FeeLamports uint64 `json:"fee_lamports"`

	// AccountKeys is the ordered static account-key list.
	AccountKeys []string `json:"account_keys"`

	// PreBalances and PostBalances are per-account lamport balances,
	// parallel to AccountKeys.
	PreBalances  []uint64 `json:"pre_balances"`
	PostBalances []uint64 `json:"post_balances"`
}

// Envelope pairs one decoded instruction with its transaction metadata.
type Envelope struct {
	Instruction DecodedInstruction `json:"instruction"`
	Meta        InstructionMeta    `json:"meta"`
}

// Source delivers decoded instruction envelopes from the upstream stream.
type Source interface {
	// Subscribe starts delivery. The returned channel is closed when
	// delivery ends or ctx is cancelled. WSSource does not close it on a
	// disconnect: it reconnects and keeps delivering until it is closed.
	Subscribe(ctx context.Context) (<-chan Envelope, error)

	// Close terminates the stream.
	Close() error
}
