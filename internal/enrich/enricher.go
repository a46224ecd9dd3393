package enrich

import (
	"context"
	"log"

	"github.com/dmittakarin8/solflow/internal/observability"
	"github.com/dmittakarin8/solflow/internal/writer"
)

// Enricher consumes first-seen mints, fetches their metadata once per
// session, and enqueues upserts. Fetch failures are logged and skipped;
// enrichment is best effort and never blocks ingestion.
type Enricher struct {
	fetcher *Fetcher
	writer  *writer.Writer
	mints   chan string
	seen    map[string]struct{}
	logger  *log.Logger
}

// NewEnricher creates an Enricher. Mints returns the channel processors send
// first-seen mints to.
func NewEnricher(fetcher *Fetcher, w *writer.Writer, logger *log.Logger) *Enricher {
	if logger == nil {
		logger = log.Default()
	}
	return &Enricher{
		fetcher: fetcher,
		writer:  w,
		mints:   make(chan string, 256),
		seen:    make(map[string]struct{}),
		logger:  logger,
	}
}

// Mints is the intake channel for first-seen mints.
func (e *Enricher) Mints() chan<- string {
	return e.mints
}

// Run fetches metadata for incoming mints until ctx is cancelled.
func (e *Enricher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case mint := <-e.mints:
			if _, ok := e.seen[mint]; ok {
				continue
			}
			e.seen[mint] = struct{}{}

			meta, err := e.fetcher.Fetch(ctx, mint)
			if err != nil {
				observability.RecordMetadataFetch("error")
				e.logger.Printf("metadata fetch failed for %s: %v", mint, err)
				continue
			}
			if meta == nil {
				observability.RecordMetadataFetch("absent")
				continue
			}

			observability.RecordMetadataFetch("ok")
			e.writer.TryEnqueue(writer.Request{
				Kind:     writer.KindMetadataUpsert,
				Mint:     mint,
				Metadata: *meta,
			})
		}
	}
}
