// Package extractor converts decoded venue instructions into canonical trade
// events, reconstructing SOL amounts from balance metadata when the
// instruction does not carry them.
package extractor

import (
	"errors"
	"log"

	"github.com/dmittakarin8/solflow/internal/domain"
	"github.com/dmittakarin8/solflow/internal/stream"
)

// Extraction errors. All are non-fatal: the instruction is skipped.
var (
	// ErrNoUserAccount means the user pubkey could not be located in the
	// transaction account-key list and no instruction bound was available.
	ErrNoUserAccount = errors.New("user account not found in account keys")

	// ErrMalformedPayload means the instruction lacks required fields.
	ErrMalformedPayload = errors.New("malformed instruction payload")

	// ErrDecodeMismatch means the instruction kind is not a recognized swap
	// variant.
	ErrDecodeMismatch = errors.New("instruction kind does not match a known swap variant")
)

const lamportsPerSol = 1_000_000_000

// defaultAMMDecimals applies when an instruction of any variant carries no
// decimals field (TokenDecimals is zero).
const defaultAMMDecimals uint8 = 6

// Options configures an Extractor.
type Options struct {
	// DropDegraded discards trades whose SOL amount had to fall back to an
	// instruction-provided bound instead of balance reconstruction. The
	// default keeps them, matching the live policy.
	DropDegraded bool

	Logger *log.Logger
}

// Extractor produces TradeEvents from decoded instructions.
type Extractor struct {
	dropDegraded bool
	logger       *log.Logger
}

// New creates an Extractor.
func New(opts Options) *Extractor {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Extractor{
		dropDegraded: opts.DropDegraded,
		logger:       logger,
	}
}

// Extract converts one decoded instruction into a TradeEvent. A nil event
// with nil error means the instruction is recognized but is not a trade
// (for example a zero-SOL result after reconstruction).
func (e *Extractor) Extract(inst stream.DecodedInstruction, meta stream.InstructionMeta) (*domain.TradeEvent, error) {
	if inst.Mint == "" || inst.User == "" {
		return nil, ErrMalformedPayload
	}

	direction, err := directionFor(inst.Kind)
	if err != nil {
		return nil, err
	}

	var solLamports uint64
	degraded := false

	switch inst.Kind {
	case stream.KindBuyEvent, stream.KindSellEvent:
		solLamports = inst.SolLamports

	case stream.KindBuy, stream.KindSell, stream.KindBuyExactQuoteIn:
		solLamports, degraded, err = e.reconstructLamports(inst, meta, direction)
		if err != nil {
			return nil, err
		}
	}

	if solLamports == 0 {
		// Not a trade: nothing moved.
		return nil, nil
	}
	if degraded && e.dropDegraded {
		e.logger.Printf("dropping degraded trade: sig=%s mint=%s", meta.Signature, inst.Mint)
		return nil, nil
	}

	decimals := inst.TokenDecimals
	if decimals == 0 {
		decimals = defaultAMMDecimals
	}

	return &domain.TradeEvent{
		Timestamp:     meta.BlockTime,
		Mint:          inst.Mint,
		Wallet:        inst.User,
		Direction:     direction,
		SolAmount:     float64(solLamports) / lamportsPerSol,
		TokenAmount:   tokenUnits(inst.TokenAmount, decimals),
		TokenDecimals: decimals,
		SourceProgram: inst.ProgramID,
		Degraded:      degraded,
	}, nil
}

// reconstructLamports computes the user's SOL delta from pre/post balances:
// |post - pre| plus the fee when the user is the fee payer. When the user
// account cannot be located, fall back to the instruction bound and mark the
// trade degraded.
func (e *Extractor) reconstructLamports(inst stream.DecodedInstruction, meta stream.InstructionMeta, direction domain.TradeDirection) (uint64, bool, error) {
	// A venue occasionally arranges a PDA where the user wallet belongs;
	// PDAs are off-curve, so an off-curve "user" goes straight to the
	// degraded path.
	idx, ok := 0, false
	if isOnCurve(inst.User) {
		idx, ok = findAccountIndex(meta.AccountKeys, inst.User)
	}
	if ok && idx < len(meta.PreBalances) && idx < len(meta.PostBalances) {
		pre := meta.PreBalances[idx]
		post := meta.PostBalances[idx]

		var delta uint64
		if post >= pre {
			delta = post - pre
		} else {
			delta = pre - post
		}
		if idx == 0 {
			delta += meta.FeeLamports
		}
		return delta, false, nil
	}

	// Degraded path: no user account in the key list. Use the bound the
	// instruction carries for this direction.
	var bound uint64
	switch direction {
	case domain.DirectionBuy:
		bound = inst.MaxQuoteLamportsIn
	case domain.DirectionSell:
		bound = inst.MinQuoteLamportsOut
	}
	if bound == 0 {
		return 0, false, ErrNoUserAccount
	}

	e.logger.Printf("degraded extraction: user %s not in account keys, using instruction bound (sig=%s)",
		inst.User, meta.Signature)
	return bound, true, nil
}

func directionFor(kind stream.InstructionKind) (domain.TradeDirection, error) {
	switch kind {
	case stream.KindBuyEvent, stream.KindBuy, stream.KindBuyExactQuoteIn:
		return domain.DirectionBuy, nil
	case stream.KindSellEvent, stream.KindSell:
		return domain.DirectionSell, nil
	default:
		return domain.DirectionUnknown, ErrDecodeMismatch
	}
}

func tokenUnits(raw uint64, decimals uint8) float64 {
	v := float64(raw)
	for i := uint8(0); i < decimals; i++ {
		v /= 10
	}
	return v
}
