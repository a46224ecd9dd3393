// Package writer decouples ingestion from disk: a bounded queue of write
// requests drained by a single task that batches them into transactions.
package writer

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/dmittakarin8/solflow/internal/domain"
	"github.com/dmittakarin8/solflow/internal/observability"
	"github.com/dmittakarin8/solflow/internal/storage"
)

// RequestKind discriminates write requests.
type RequestKind int

const (
	KindMetricsUpsert RequestKind = iota
	KindTradeAppend
	KindSignalAppend
	KindMetadataUpsert
)

// Request is one queued write. Payloads are values copied out of the rolling
// state; nothing is shared with the cells.
type Request struct {
	Kind RequestKind

	Mint      string
	Metrics   domain.RollingMetrics
	UpdatedAt int64

	Trade    domain.TradeEvent
	Signal   domain.Signal
	Metadata domain.TokenMetadata
}

// Options configures a Writer.
type Options struct {
	Store storage.BatchStore

	// QueueCapacity bounds the request queue. Default 1000.
	QueueCapacity int

	// BatchSize closes a batch when this many requests have accumulated.
	// Default 100.
	BatchSize int

	// BatchInterval closes a batch when this much time has elapsed since it
	// opened. Default 100ms.
	BatchInterval time.Duration

	Logger *log.Logger
}

// Writer owns the database connection for the life of the process. Producers
// enqueue with TryEnqueue and never touch the store.
type Writer struct {
	store         storage.BatchStore
	queue         chan Request
	batchSize     int
	batchInterval time.Duration
	logger        *log.Logger

	// dropLogged rate-limits queue-full warnings per mint.
	dropMu     sync.Mutex
	dropLogged map[string]time.Time
}

// New creates a Writer. Run must be started before producers enqueue more
// than QueueCapacity requests.
func New(opts Options) *Writer {
	capacity := opts.QueueCapacity
	if capacity <= 0 {
		capacity = 1000
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	interval := opts.BatchInterval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Writer{
		store:         opts.Store,
		queue:         make(chan Request, capacity),
		batchSize:     batchSize,
		batchInterval: interval,
		logger:        logger,
		dropLogged:    make(map[string]time.Time),
	}
}

// TryEnqueue offers a request without blocking. A full queue drops the
// request and returns false; ingestion never waits on disk.
func (w *Writer) TryEnqueue(req Request) bool {
	select {
	case w.queue <- req:
		observability.SetQueueDepth(len(w.queue))
		return true
	default:
		observability.RecordQueueDrop()
		w.warnDrop(req)
		return false
	}
}

// warnDrop logs a queue-full warning at most once per mint per second.
func (w *Writer) warnDrop(req Request) {
	mint := req.Mint
	if mint == "" {
		mint = req.Trade.Mint
	}
	if mint == "" {
		mint = req.Signal.Mint
	}

	now := time.Now()
	w.dropMu.Lock()
	last, ok := w.dropLogged[mint]
	if ok && now.Sub(last) < time.Second {
		w.dropMu.Unlock()
		return
	}
	w.dropLogged[mint] = now
	w.dropMu.Unlock()
	w.logger.Printf("write queue full, dropping request (mint=%s kind=%d)", mint, req.Kind)
}

// Close stops accepting requests. Run drains what remains and returns.
func (w *Writer) Close() {
	close(w.queue)
}

// Run drains the queue until Close or a store connection failure. A batch is
// committed when BatchSize requests have accumulated or BatchInterval has
// elapsed since the batch opened, whichever comes first. Each batch is one
// transaction; statement errors are logged and skipped, transaction-level
// errors are returned and terminate the writer.
func (w *Writer) Run(ctx context.Context) error {
	batch := make([]Request, 0, w.batchSize)
	timer := time.NewTimer(w.batchInterval)
	defer timer.Stop()

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := w.commit(ctx, batch); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	for {
		select {
		case req, ok := <-w.queue:
			if !ok {
				// Drain complete: commit the tail and stop.
				return flush()
			}
			batch = append(batch, req)
			if len(batch) >= w.batchSize {
				if err := flush(); err != nil {
					return err
				}
				resetTimer(timer, w.batchInterval)
			}

		case <-timer.C:
			if err := flush(); err != nil {
				return err
			}
			timer.Reset(w.batchInterval)

		case <-ctx.Done():
			// Graceful shutdown still drains whatever is queued.
			for {
				select {
				case req, ok := <-w.queue:
					if !ok {
						return flush()
					}
					batch = append(batch, req)
					if len(batch) >= w.batchSize {
						if err := flush(); err != nil {
							return err
						}
					}
				default:
					return flush()
				}
			}
		}
	}
}

// commit writes one batch in a single transaction.
func (w *Writer) commit(ctx context.Context, batch []Request) error {
	start := time.Now()

	err := w.store.RunBatch(ctx, func(b storage.Batch) error {
		for _, req := range batch {
			var err error
			switch req.Kind {
			case KindMetricsUpsert:
				err = b.UpsertMetrics(req.Mint, req.Metrics, req.UpdatedAt)
			case KindTradeAppend:
				err = b.AppendTrade(req.Trade)
			case KindSignalAppend:
				err = b.AppendSignal(req.Signal)
			case KindMetadataUpsert:
				err = b.UpsertMetadata(req.Metadata)
			}
			if err != nil {
				// Statement errors do not abort the batch.
				w.logger.Printf("batch statement failed: %v", err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("commit batch of %d: %w", len(batch), err)
	}

	observability.RecordBatchCommit(len(batch), time.Since(start).Seconds())
	observability.SetQueueDepth(len(w.queue))
	return nil
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
