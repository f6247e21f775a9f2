package port

import (
	"context"

	"xopt/internal/domain"
)

type Repository interface {
	// Market data
	UpsertTicker(ctx context.Context, t domain.Ticker) error
	InsertTrade(ctx context.Context, t domain.Trade) error
	UpsertCandle(ctx context.Context, symbol string, interval domain.KlineInterval, c domain.Candle) error
	UpsertInstruments(ctx context.Context, insts []domain.Instrument) error

	// Snapshot operations
	InsertSnapshot(ctx context.Context, ts int64, payload string) error

	// Connection management
	Close() error
}
