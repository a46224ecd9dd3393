package storage

import (
	"context"

	"github.com/dmittakarin8/solflow/internal/domain"
)

// MetricsRow is one row of the token_rolling_metrics table.
type MetricsRow struct {
	Mint      string
	UpdatedAt int64
	Metrics   domain.RollingMetrics
}

// TradeRow is one row of the token_trades append-only log.
type TradeRow struct {
	ID        int64
	Mint      string
	Timestamp int64
	Wallet    string
	Side      string
	SolAmount float64
	IsBot     bool
	IsDCA     bool
}

// SignalRow is one row of the token_signals append-only log.
type SignalRow struct {
	ID     int64
	Signal domain.Signal
}

// Batch is the statement surface available inside one writer transaction.
// Statement errors are reported per call; they do not abort the batch.
type Batch interface {
	// UpsertMetrics inserts or replaces the aggregate row for mint.
	UpsertMetrics(mint string, m domain.RollingMetrics, updatedAt int64) error

	// AppendTrade appends one trade to the token_trades log.
	AppendTrade(t domain.TradeEvent) error

	// AppendSignal appends one signal to the token_signals log.
	AppendSignal(s domain.Signal) error

	// UpsertMetadata inserts or replaces the token_metadata row for a mint.
	UpsertMetadata(m domain.TokenMetadata) error
}

// BatchStore commits groups of write requests atomically. The single writer
// task is the only caller; implementations are not required to be safe for
// concurrent RunBatch calls.
type BatchStore interface {
	// RunBatch runs fn against a Batch bound to one open transaction and
	// commits it. An error from fn or from commit aborts the transaction.
	RunBatch(ctx context.Context, fn func(Batch) error) error
}

// ReadStore is the read surface the downstream query layer consumes. The
// core only writes; these reads exist to confirm the writes are sufficient.
type ReadStore interface {
	// GetByMint retrieves the aggregate row for a mint. Returns ErrNotFound
	// if the mint has never been upserted.
	GetByMint(ctx context.Context, mint string) (*MetricsRow, error)

	// TopByNetFlow300s retrieves rows updated at or after since, ordered by
	// net_flow_300s descending, excluding blocklisted mints.
	TopByNetFlow300s(ctx context.Context, since int64, limit int) ([]*MetricsRow, error)

	// GetTradesByMint retrieves trades for a mint with timestamp >= since,
	// ordered by timestamp descending.
	GetTradesByMint(ctx context.Context, mint string, since int64) ([]*TradeRow, error)

	// GetSignalsByMint retrieves signals for a mint with timestamp >= since,
	// ordered by timestamp descending.
	GetSignalsByMint(ctx context.Context, mint string, since int64) ([]*SignalRow, error)

	// GetMetadataByMint retrieves metadata by mint. Returns ErrNotFound if
	// absent.
	GetMetadataByMint(ctx context.Context, mint string) (*domain.TokenMetadata, error)
}
