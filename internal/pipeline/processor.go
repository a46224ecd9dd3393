// Package pipeline wires the leaves together: dedup, extraction, rolling
// state, signal evaluation and the write queue.
package pipeline

import (
	"errors"
	"log"

	"github.com/dmittakarin8/solflow/internal/dedup"
	"github.com/dmittakarin8/solflow/internal/extractor"
	"github.com/dmittakarin8/solflow/internal/observability"
	"github.com/dmittakarin8/solflow/internal/rolling"
	"github.com/dmittakarin8/solflow/internal/signals"
	"github.com/dmittakarin8/solflow/internal/stream"
	"github.com/dmittakarin8/solflow/internal/writer"
)

// Processor applies one decoded instruction end to end. One Processor serves
// every venue; per-mint serialization happens inside the rolling store, so
// Process is safe to call concurrently.
type Processor struct {
	signatures *dedup.SignatureSet
	extractor  *extractor.Extractor
	rolling    *rolling.Store
	writer     *writer.Writer
	logger     *log.Logger

	// firstSeen receives mints on their first trade for metadata
	// enrichment. Optional; sends never block.
	firstSeen chan<- string
}

// ProcessorOptions contains configuration for creating a Processor.
type ProcessorOptions struct {
	Signatures *dedup.SignatureSet
	Extractor  *extractor.Extractor
	Rolling    *rolling.Store
	Writer     *writer.Writer
	Logger     *log.Logger
	FirstSeen  chan<- string
}

// NewProcessor creates a Processor.
func NewProcessor(opts ProcessorOptions) *Processor {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Processor{
		signatures: opts.Signatures,
		extractor:  opts.Extractor,
		rolling:    opts.Rolling,
		writer:     opts.Writer,
		logger:     logger,
		firstSeen:  opts.FirstSeen,
	}
}

// Process runs one envelope through dedup, extraction, the rolling state and
// signal evaluation, then enqueues the results for persistence. The mint's
// cell lock is released before anything touches the write queue.
func (p *Processor) Process(env stream.Envelope) {
	observability.RecordInstruction(env.Instruction.ProgramID)

	if p.signatures.Seen(env.Meta.Signature) {
		observability.RecordDuplicate()
		return
	}

	trade, err := p.extractor.Extract(env.Instruction, env.Meta)
	if err != nil {
		observability.RecordExtractionError(extractErrorType(err))
		p.logger.Printf("extract failed (sig=%s): %v", env.Meta.Signature, err)
		return
	}
	if trade == nil {
		return
	}
	if trade.Degraded {
		observability.RecordDegraded()
	}
	observability.RecordTradeExtracted(env.Instruction.ProgramID)

	res, created := p.rolling.Update(*trade)
	if created && p.firstSeen != nil {
		select {
		case p.firstSeen <- trade.Mint:
		default:
		}
	}
	if !res.Accepted {
		return
	}

	fired := signals.Evaluate(trade.Mint, res.Metrics, res.Trades300, res.Now)

	// Metrics before trade: if the queue fills mid-event, the aggregate row
	// survives and trade log entries are the items lost first.
	p.writer.TryEnqueue(writer.Request{
		Kind:      writer.KindMetricsUpsert,
		Mint:      trade.Mint,
		Metrics:   res.Metrics,
		UpdatedAt: res.Now,
	})
	p.writer.TryEnqueue(writer.Request{
		Kind:  writer.KindTradeAppend,
		Trade: res.Event,
	})
	for _, sig := range fired {
		observability.RecordSignal(string(sig.Kind))
		p.writer.TryEnqueue(writer.Request{
			Kind:   writer.KindSignalAppend,
			Signal: sig,
		})
	}
}

func extractErrorType(err error) string {
	switch {
	case errors.Is(err, extractor.ErrNoUserAccount):
		return "no_user_account"
	case errors.Is(err, extractor.ErrMalformedPayload):
		return "malformed_payload"
	case errors.Is(err, extractor.ErrDecodeMismatch):
		return "decode_mismatch"
	default:
		return "other"
	}
}
