package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/dmittakarin8/solflow/internal/domain"
	"github.com/dmittakarin8/solflow/internal/storage"
)

// Store implements storage.BatchStore plus the read-side interfaces on one
// SQLite database handle.
type Store struct {
	db *sqlx.DB
}

var (
	_ storage.BatchStore = (*Store)(nil)
	_ storage.ReadStore  = (*Store)(nil)
)

// NewStore creates a Store around an opened database.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for maintenance operations.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

const upsertMetricsSQL = `
INSERT INTO token_rolling_metrics (
    mint, updated_at,
    net_flow_60s, net_flow_300s, net_flow_900s,
    net_flow_3600s, net_flow_7200s, net_flow_14400s,
    buy_count_60s, sell_count_60s,
    buy_count_300s, sell_count_300s,
    buy_count_900s, sell_count_900s,
    unique_wallets_300s, bot_wallets_300s, bot_trades_300s, bot_flow_300s,
    dca_flow_300s, dca_unique_wallets_300s, dca_ratio_300s,
    volume_300s, avg_trade_size_300s
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(mint) DO UPDATE SET
    updated_at = excluded.updated_at,
    net_flow_60s = excluded.net_flow_60s,
    net_flow_300s = excluded.net_flow_300s,
    net_flow_900s = excluded.net_flow_900s,
    net_flow_3600s = excluded.net_flow_3600s,
    net_flow_7200s = excluded.net_flow_7200s,
    net_flow_14400s = excluded.net_flow_14400s,
    buy_count_60s = excluded.buy_count_60s,
    sell_count_60s = excluded.sell_count_60s,
    buy_count_300s = excluded.buy_count_300s,
    sell_count_300s = excluded.sell_count_300s,
    buy_count_900s = excluded.buy_count_900s,
    sell_count_900s = excluded.sell_count_900s,
    unique_wallets_300s = excluded.unique_wallets_300s,
    bot_wallets_300s = excluded.bot_wallets_300s,
    bot_trades_300s = excluded.bot_trades_300s,
    bot_flow_300s = excluded.bot_flow_300s,
    dca_flow_300s = excluded.dca_flow_300s,
    dca_unique_wallets_300s = excluded.dca_unique_wallets_300s,
    dca_ratio_300s = excluded.dca_ratio_300s,
    volume_300s = excluded.volume_300s,
    avg_trade_size_300s = excluded.avg_trade_size_300s`

const appendTradeSQL = `
INSERT INTO token_trades (mint, timestamp, wallet, side, sol_amount, is_bot, is_dca)
VALUES (?, ?, ?, ?, ?, ?, ?)`

const appendSignalSQL = `
INSERT INTO token_signals (mint, signal_type, strength, window, timestamp, metadata)
VALUES (?, ?, ?, ?, ?, ?)`

const upsertMetadataSQL = `
INSERT INTO token_metadata (mint, symbol, name, decimals, price_usd, market_cap_usd, token_age_seconds, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(mint) DO UPDATE SET
    symbol = excluded.symbol,
    name = excluded.name,
    decimals = excluded.decimals,
    price_usd = excluded.price_usd,
    market_cap_usd = excluded.market_cap_usd,
    token_age_seconds = excluded.token_age_seconds,
    updated_at = excluded.updated_at`

// batch binds the statement surface to one open transaction.
type batch struct {
	tx *sqlx.Tx
}

func (b *batch) UpsertMetrics(mint string, m domain.RollingMetrics, updatedAt int64) error {
	_, err := b.tx.Exec(upsertMetricsSQL,
		mint, updatedAt,
		m.NetFlow60s, m.NetFlow300s, m.NetFlow900s,
		m.NetFlow3600s, m.NetFlow7200s, m.NetFlow14400s,
		m.BuyCount60s, m.SellCount60s,
		m.BuyCount300s, m.SellCount300s,
		m.BuyCount900s, m.SellCount900s,
		m.UniqueWallets300s, m.BotWallets300s, m.BotTrades300s, m.BotFlow300s,
		m.DCAFlow300s, m.DCAUniqueWallets300s, m.DCARatio300s,
		m.Volume300s, m.AvgTradeSize300s,
	)
	if err != nil {
		return fmt.Errorf("upsert metrics for %s: %w", mint, err)
	}
	return nil
}

func (b *batch) AppendTrade(t domain.TradeEvent) error {
	_, err := b.tx.Exec(appendTradeSQL,
		t.Mint, t.Timestamp, t.Wallet, t.Direction.String(), t.SolAmount,
		boolToInt(t.IsBot), boolToInt(t.IsDCA),
	)
	if err != nil {
		return fmt.Errorf("append trade for %s: %w", t.Mint, err)
	}
	return nil
}

func (b *batch) AppendSignal(s domain.Signal) error {
	metadata := s.Metadata
	if metadata == "" {
		metadata = "{}"
	}
	_, err := b.tx.Exec(appendSignalSQL,
		s.Mint, string(s.Kind), s.Strength, s.Window, s.Timestamp, metadata,
	)
	if err != nil {
		return fmt.Errorf("append signal for %s: %w", s.Mint, err)
	}
	return nil
}

func (b *batch) UpsertMetadata(m domain.TokenMetadata) error {
	_, err := b.tx.Exec(upsertMetadataSQL,
		m.Mint, m.Symbol, m.Name, m.Decimals,
		m.PriceUSD, m.MarketCapUSD, m.TokenAgeSeconds, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert metadata for %s: %w", m.Mint, err)
	}
	return nil
}

// RunBatch opens one transaction, runs fn against it, and commits.
func (s *Store) RunBatch(ctx context.Context, fn func(storage.Batch) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}

	if err := fn(&batch{tx: tx}); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// metricsRow mirrors the token_rolling_metrics columns for sqlx scanning.
type metricsRow struct {
	Mint                 string  `db:"mint"`
	UpdatedAt            int64   `db:"updated_at"`
	NetFlow60s           float64 `db:"net_flow_60s"`
	NetFlow300s          float64 `db:"net_flow_300s"`
	NetFlow900s          float64 `db:"net_flow_900s"`
	NetFlow3600s         float64 `db:"net_flow_3600s"`
	NetFlow7200s         float64 `db:"net_flow_7200s"`
	NetFlow14400s        float64 `db:"net_flow_14400s"`
	BuyCount60s          int     `db:"buy_count_60s"`
	SellCount60s         int     `db:"sell_count_60s"`
	BuyCount300s         int     `db:"buy_count_300s"`
	SellCount300s        int     `db:"sell_count_300s"`
	BuyCount900s         int     `db:"buy_count_900s"`
	SellCount900s        int     `db:"sell_count_900s"`
	UniqueWallets300s    int     `db:"unique_wallets_300s"`
	BotWallets300s       int     `db:"bot_wallets_300s"`
	BotTrades300s        int     `db:"bot_trades_300s"`
	BotFlow300s          float64 `db:"bot_flow_300s"`
	DCAFlow300s          float64 `db:"dca_flow_300s"`
	DCAUniqueWallets300s int     `db:"dca_unique_wallets_300s"`
	DCARatio300s         float64 `db:"dca_ratio_300s"`
	Volume300s           float64 `db:"volume_300s"`
	AvgTradeSize300s     float64 `db:"avg_trade_size_300s"`
}

func (r *metricsRow) toStorage() *storage.MetricsRow {
	return &storage.MetricsRow{
		Mint:      r.Mint,
		UpdatedAt: r.UpdatedAt,
		Metrics: domain.RollingMetrics{
			NetFlow60s:           r.NetFlow60s,
			NetFlow300s:          r.NetFlow300s,
			NetFlow900s:          r.NetFlow900s,
			NetFlow3600s:         r.NetFlow3600s,
			NetFlow7200s:         r.NetFlow7200s,
			NetFlow14400s:        r.NetFlow14400s,
			BuyCount60s:          r.BuyCount60s,
			SellCount60s:         r.SellCount60s,
			BuyCount300s:         r.BuyCount300s,
			SellCount300s:        r.SellCount300s,
			BuyCount900s:         r.BuyCount900s,
			SellCount900s:        r.SellCount900s,
			UniqueWallets300s:    r.UniqueWallets300s,
			BotWallets300s:       r.BotWallets300s,
			BotTrades300s:        r.BotTrades300s,
			BotFlow300s:          r.BotFlow300s,
			DCAFlow300s:          r.DCAFlow300s,
			DCAUniqueWallets300s: r.DCAUniqueWallets300s,
			DCARatio300s:         r.DCARatio300s,
			Volume300s:           r.Volume300s,
			AvgTradeSize300s:     r.AvgTradeSize300s,
		},
	}
}

// GetByMint retrieves the aggregate row for a mint.
func (s *Store) GetByMint(ctx context.Context, mint string) (*storage.MetricsRow, error) {
	var row metricsRow
	err := s.db.GetContext(ctx, &row,
		"SELECT * FROM token_rolling_metrics WHERE mint = ?", mint)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get metrics for %s: %w", mint, err)
	}
	return row.toStorage(), nil
}

// TopByNetFlow300s serves the dashboard top-N read shape.
func (s *Store) TopByNetFlow300s(ctx context.Context, since int64, limit int) ([]*storage.MetricsRow, error) {
	var rows []metricsRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT m.* FROM token_rolling_metrics m
		WHERE m.updated_at >= ?
		  AND NOT EXISTS (SELECT 1 FROM blocklist b WHERE b.mint = m.mint)
		ORDER BY m.net_flow_300s DESC
		LIMIT ?`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("top by net flow: %w", err)
	}

	out := make([]*storage.MetricsRow, len(rows))
	for i := range rows {
		out[i] = rows[i].toStorage()
	}
	return out, nil
}

// tradeRow mirrors token_trades columns for sqlx scanning.
type tradeRow struct {
	ID        int64   `db:"id"`
	Mint      string  `db:"mint"`
	Timestamp int64   `db:"timestamp"`
	Wallet    string  `db:"wallet"`
	Side      string  `db:"side"`
	SolAmount float64 `db:"sol_amount"`
	IsBot     int     `db:"is_bot"`
	IsDCA     int     `db:"is_dca"`
}

// GetTradesByMint retrieves trades for a mint with timestamp >= since.
func (s *Store) GetTradesByMint(ctx context.Context, mint string, since int64) ([]*storage.TradeRow, error) {
	var rows []tradeRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, mint, timestamp, wallet, side, sol_amount, is_bot, is_dca
		FROM token_trades
		WHERE mint = ? AND timestamp >= ?
		ORDER BY timestamp DESC`, mint, since)
	if err != nil {
		return nil, fmt.Errorf("get trades for %s: %w", mint, err)
	}

	out := make([]*storage.TradeRow, len(rows))
	for i, r := range rows {
		out[i] = &storage.TradeRow{
			ID:        r.ID,
			Mint:      r.Mint,
			Timestamp: r.Timestamp,
			Wallet:    r.Wallet,
			Side:      r.Side,
			SolAmount: r.SolAmount,
			IsBot:     r.IsBot == 1,
			IsDCA:     r.IsDCA == 1,
		}
	}
	return out, nil
}

// signalRow mirrors token_signals columns for sqlx scanning.
type signalRow struct {
	ID         int64   `db:"id"`
	Mint       string  `db:"mint"`
	SignalType string  `db:"signal_type"`
	Strength   float64 `db:"strength"`
	Window     string  `db:"window"`
	Timestamp  int64   `db:"timestamp"`
	Metadata   string  `db:"metadata"`
}

// GetSignalsByMint retrieves signals for a mint with timestamp >= since.
func (s *Store) GetSignalsByMint(ctx context.Context, mint string, since int64) ([]*storage.SignalRow, error) {
	var rows []signalRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, mint, signal_type, strength, window, timestamp, metadata
		FROM token_signals
		WHERE mint = ? AND timestamp >= ?
		ORDER BY timestamp DESC`, mint, since)
	if err != nil {
		return nil, fmt.Errorf("get signals for %s: %w", mint, err)
	}

	out := make([]*storage.SignalRow, len(rows))
	for i, r := range rows {
		out[i] = &storage.SignalRow{
			ID: r.ID,
			Signal: domain.Signal{
				Mint:      r.Mint,
				Kind:      domain.SignalKind(r.SignalType),
				Strength:  r.Strength,
				Window:    r.Window,
				Timestamp: r.Timestamp,
				Metadata:  r.Metadata,
			},
		}
	}
	return out, nil
}

// metadataRow mirrors token_metadata columns for sqlx scanning.
type metadataRow struct {
	Mint            string   `db:"mint"`
	Symbol          *string  `db:"symbol"`
	Name            *string  `db:"name"`
	Decimals        uint8    `db:"decimals"`
	PriceUSD        *float64 `db:"price_usd"`
	MarketCapUSD    *float64 `db:"market_cap_usd"`
	TokenAgeSeconds *int64   `db:"token_age_seconds"`
	UpdatedAt       int64    `db:"updated_at"`
}

// GetMetadataByMint retrieves metadata by mint.
func (s *Store) GetMetadataByMint(ctx context.Context, mint string) (*domain.TokenMetadata, error) {
	var row metadataRow
	err := s.db.GetContext(ctx, &row,
		"SELECT * FROM token_metadata WHERE mint = ?", mint)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get metadata for %s: %w", mint, err)
	}
	return &domain.TokenMetadata{
		Mint:            row.Mint,
		Symbol:          row.Symbol,
		Name:            row.Name,
		Decimals:        row.Decimals,
		PriceUSD:        row.PriceUSD,
		MarketCapUSD:    row.MarketCapUSD,
		TokenAgeSeconds: row.TokenAgeSeconds,
		UpdatedAt:       row.UpdatedAt,
	}, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
