package postgres

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"xopt/internal/application/port"
	"xopt/internal/domain"
)

type Repo struct {
	db *sql.DB
}

func New(dsn string) (*Repo, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	r := &Repo{db: db}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := r.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS option_tickers (
  symbol TEXT PRIMARY KEY,
  last_price DOUBLE PRECISION NOT NULL,
  bid_price DOUBLE PRECISION NOT NULL,
  ask_price DOUBLE PRECISION NOT NULL,
  volume DOUBLE PRECISION NOT NULL,
  mark_price DOUBLE PRECISION NOT NULL,
  iv DOUBLE PRECISION NOT NULL,
  delta DOUBLE PRECISION NOT NULL,
  ts_ms BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS option_trades (
  symbol TEXT NOT NULL,
  trade_id TEXT NOT NULL,
  price DOUBLE PRECISION NOT NULL,
  qty DOUBLE PRECISION NOT NULL,
  side SMALLINT NOT NULL,
  ts_ms BIGINT NOT NULL,
  PRIMARY KEY(symbol, trade_id)
);
CREATE INDEX IF NOT EXISTS idx_option_trades_ts ON option_trades(symbol, ts_ms);

CREATE TABLE IF NOT EXISTS option_candles (
  symbol TEXT NOT NULL,
  kline_interval TEXT NOT NULL,
  open_time BIGINT NOT NULL,
  close_time BIGINT NOT NULL,
  open DOUBLE PRECISION NOT NULL,
  high DOUBLE PRECISION NOT NULL,
  low DOUBLE PRECISION NOT NULL,
  close DOUBLE PRECISION NOT NULL,
  volume DOUBLE PRECISION NOT NULL,
  closed BOOLEAN NOT NULL,
  PRIMARY KEY(symbol, kline_interval, open_time)
);

CREATE TABLE IF NOT EXISTS option_instruments (
  symbol TEXT PRIMARY KEY,
  underlying TEXT NOT NULL,
  side TEXT NOT NULL,
  strike DOUBLE PRECISION NOT NULL,
  expiry_ms BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshots (
  id BIGSERIAL PRIMARY KEY,
  ts_ms BIGINT NOT NULL,
  payload TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_ts ON snapshots(ts_ms);
`)
	return err
}

func (r *Repo) UpsertTicker(ctx context.Context, t domain.Ticker) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO option_tickers(symbol, last_price, bid_price, ask_price, volume, mark_price, iv, delta, ts_ms)
		VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT(symbol) DO UPDATE SET
		last_price=EXCLUDED.last_price, bid_price=EXCLUDED.bid_price, ask_price=EXCLUDED.ask_price,
		volume=EXCLUDED.volume, mark_price=EXCLUDED.mark_price, iv=EXCLUDED.iv, delta=EXCLUDED.delta, ts_ms=EXCLUDED.ts_ms
	`, t.Symbol, t.LastPrice, t.BidPrice, t.AskPrice, t.Volume, t.Mark, t.IV, t.Delta, t.Time)
	return err
}

func (r *Repo) InsertTrade(ctx context.Context, t domain.Trade) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO option_trades(symbol, trade_id, price, qty, side, ts_ms)
		VALUES($1, $2, $3, $4, $5, $6)
		ON CONFLICT(symbol, trade_id) DO NOTHING
	`, t.Symbol, t.ID, t.Price, t.Qty, t.Side, t.Time)
	return err
}

func (r *Repo) UpsertCandle(ctx context.Context, symbol string, interval domain.KlineInterval, c domain.Candle) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO option_candles(symbol, kline_interval, open_time, close_time, open, high, low, close, volume, closed)
		VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT(symbol, kline_interval, open_time) DO UPDATE SET
		close_time=EXCLUDED.close_time, high=EXCLUDED.high, low=EXCLUDED.low,
		close=EXCLUDED.close, volume=EXCLUDED.volume, closed=EXCLUDED.closed
	`, symbol, string(interval), c.OpenTime, c.CloseTime, c.Open, c.High, c.Low, c.Close, c.Volume, c.Closed)
	return err
}

func (r *Repo) UpsertInstruments(ctx context.Context, insts []domain.Instrument) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, in := range insts {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO option_instruments(symbol, underlying, side, strike, expiry_ms)
			VALUES($1, $2, $3, $4, $5)
			ON CONFLICT(symbol) DO UPDATE SET
			underlying=EXCLUDED.underlying, side=EXCLUDED.side, strike=EXCLUDED.strike, expiry_ms=EXCLUDED.expiry_ms
		`, in.Symbol, in.Underlying, string(in.Side), in.Strike, in.ExpiryTimestamp); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *Repo) InsertSnapshot(ctx context.Context, ts int64, payload string) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO snapshots(ts_ms, payload) VALUES($1, $2)`, ts, payload)
	return err
}

var _ port.Repository = (*Repo)(nil)
