// Package memory provides an in-memory implementation of the storage
// interfaces for tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/dmittakarin8/solflow/internal/domain"
	"github.com/dmittakarin8/solflow/internal/storage"
)

// Store is an in-memory implementation of storage.BatchStore plus the
// read-side interfaces.
type Store struct {
	mu       sync.RWMutex
	metrics  map[string]*storage.MetricsRow
	trades   []*storage.TradeRow
	signals  []*storage.SignalRow
	metadata map[string]*domain.TokenMetadata
	nextID   int64

	// Batches counts committed RunBatch calls.
	Batches int
}

var (
	_ storage.BatchStore = (*Store)(nil)
	_ storage.ReadStore  = (*Store)(nil)
)

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		metrics:  make(map[string]*storage.MetricsRow),
		metadata: make(map[string]*domain.TokenMetadata),
		nextID:   1,
	}
}

// batch buffers writes so a failed fn leaves the store untouched.
type batch struct {
	metrics  []storage.MetricsRow
	trades   []domain.TradeEvent
	signals  []domain.Signal
	metadata []domain.TokenMetadata
}

func (b *batch) UpsertMetrics(mint string, m domain.RollingMetrics, updatedAt int64) error {
	b.metrics = append(b.metrics, storage.MetricsRow{Mint: mint, UpdatedAt: updatedAt, Metrics: m})
	return nil
}

func (b *batch) AppendTrade(t domain.TradeEvent) error {
	b.trades = append(b.trades, t)
	return nil
}

func (b *batch) AppendSignal(s domain.Signal) error {
	b.signals = append(b.signals, s)
	return nil
}

func (b *batch) UpsertMetadata(m domain.TokenMetadata) error {
	b.metadata = append(b.metadata, m)
	return nil
}

// RunBatch applies fn's writes atomically.
func (s *Store) RunBatch(_ context.Context, fn func(storage.Batch) error) error {
	b := &batch{}
	if err := fn(b); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range b.metrics {
		row := b.metrics[i]
		s.metrics[row.Mint] = &row
	}
	for _, t := range b.trades {
		s.trades = append(s.trades, &storage.TradeRow{
			ID:        s.nextID,
			Mint:      t.Mint,
			Timestamp: t.Timestamp,
			Wallet:    t.Wallet,
			Side:      t.Direction.String(),
			SolAmount: t.SolAmount,
			IsBot:     t.IsBot,
			IsDCA:     t.IsDCA,
		})
		s.nextID++
	}
	for _, sig := range b.signals {
		s.signals = append(s.signals, &storage.SignalRow{ID: s.nextID, Signal: sig})
		s.nextID++
	}
	for i := range b.metadata {
		m := b.metadata[i]
		s.metadata[m.Mint] = &m
	}

	s.Batches++
	return nil
}

// GetByMint retrieves the aggregate row for a mint.
func (s *Store) GetByMint(_ context.Context, mint string) (*storage.MetricsRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.metrics[mint]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copy := *row
	return &copy, nil
}

// TopByNetFlow300s retrieves rows updated at or after since, ordered by
// net_flow_300s descending.
func (s *Store) TopByNetFlow300s(_ context.Context, since int64, limit int) ([]*storage.MetricsRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*storage.MetricsRow
	for _, row := range s.metrics {
		if row.UpdatedAt >= since {
			copy := *row
			out = append(out, &copy)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Metrics.NetFlow300s > out[j].Metrics.NetFlow300s
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetTradesByMint retrieves trades for a mint with timestamp >= since,
// ordered by timestamp descending.
func (s *Store) GetTradesByMint(_ context.Context, mint string, since int64) ([]*storage.TradeRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*storage.TradeRow
	for _, t := range s.trades {
		if t.Mint == mint && t.Timestamp >= since {
			copy := *t
			out = append(out, &copy)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp > out[j].Timestamp })
	return out, nil
}

// GetSignalsByMint retrieves signals for a mint with timestamp >= since,
// ordered by timestamp descending.
func (s *Store) GetSignalsByMint(_ context.Context, mint string, since int64) ([]*storage.SignalRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*storage.SignalRow
	for _, sig := range s.signals {
		if sig.Signal.Mint == mint && sig.Signal.Timestamp >= since {
			copy := *sig
			out = append(out, &copy)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Signal.Timestamp > out[j].Signal.Timestamp })
	return out, nil
}

// GetMetadataByMint retrieves metadata by mint.
func (s *Store) GetMetadataByMint(_ context.Context, mint string) (*domain.TokenMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.metadata[mint]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copy := *m
	return &copy, nil
}
