package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"xopt/internal/application/port"
	"xopt/internal/domain"
)

type Repo struct {
	db *sql.DB
}

func New(path string) (*Repo, error) {
	// ensure directory exists
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	r := &Repo{db: db}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) GetDB() *sql.DB {
	return r.db
}

func (r *Repo) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS tickers (
  symbol TEXT PRIMARY KEY,
  last_price REAL NOT NULL,
  bid_price REAL NOT NULL,
  ask_price REAL NOT NULL,
  volume REAL NOT NULL,
  mark_price REAL NOT NULL,
  iv REAL NOT NULL,
  delta REAL NOT NULL,
  ts_ms INTEGER NOT NULL,
  updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tickers_ts ON tickers(ts_ms);

CREATE TABLE IF NOT EXISTS trades (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  symbol TEXT NOT NULL,
  trade_id TEXT NOT NULL,
  price REAL NOT NULL,
  qty REAL NOT NULL,
  side INTEGER NOT NULL,
  ts_ms INTEGER NOT NULL,
  UNIQUE(symbol, trade_id)
);
CREATE INDEX IF NOT EXISTS idx_trades_symbol_ts ON trades(symbol, ts_ms);

CREATE TABLE IF NOT EXISTS candles (
  symbol TEXT NOT NULL,
  kline_interval TEXT NOT NULL,
  open_time INTEGER NOT NULL,
  close_time INTEGER NOT NULL,
  open REAL NOT NULL,
  high REAL NOT NULL,
  low REAL NOT NULL,
  close REAL NOT NULL,
  volume REAL NOT NULL,
  closed INTEGER NOT NULL,
  PRIMARY KEY(symbol, kline_interval, open_time)
);

CREATE TABLE IF NOT EXISTS instruments (
  symbol TEXT PRIMARY KEY,
  underlying TEXT NOT NULL,
  side TEXT NOT NULL,
  strike REAL NOT NULL,
  expiry_ms INTEGER NOT NULL,
  tick_size REAL NOT NULL,
  step_size REAL NOT NULL,
  updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_instruments_underlying ON instruments(underlying, expiry_ms);

CREATE TABLE IF NOT EXISTS snapshots (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  ts_ms INTEGER NOT NULL,
  payload TEXT NOT NULL,
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_ts ON snapshots(ts_ms);
`)
	return err
}

func (r *Repo) UpsertTicker(ctx context.Context, t domain.Ticker) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tickers(symbol, last_price, bid_price, ask_price, volume, mark_price, iv, delta, ts_ms, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
		last_price=excluded.last_price, bid_price=excluded.bid_price, ask_price=excluded.ask_price,
		volume=excluded.volume, mark_price=excluded.mark_price, iv=excluded.iv, delta=excluded.delta,
		ts_ms=excluded.ts_ms, updated_at=excluded.updated_at
	`, t.Symbol, t.LastPrice, t.BidPrice, t.AskPrice, t.Volume, t.Mark, t.IV, t.Delta, t.Time, time.Now().UnixMilli())
	return err
}

// InsertTrade 同一成交重复写入时忽略
func (r *Repo) InsertTrade(ctx context.Context, t domain.Trade) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO trades(symbol, trade_id, price, qty, side, ts_ms)
		VALUES(?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, trade_id) DO NOTHING
	`, t.Symbol, t.ID, t.Price, t.Qty, t.Side, t.Time)
	return err
}

func (r *Repo) UpsertCandle(ctx context.Context, symbol string, interval domain.KlineInterval, c domain.Candle) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO candles(symbol, kline_interval, open_time, close_time, open, high, low, close, volume, closed)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, kline_interval, open_time) DO UPDATE SET
		close_time=excluded.close_time, high=excluded.high, low=excluded.low,
		close=excluded.close, volume=excluded.volume, closed=excluded.closed
	`, symbol, string(interval), c.OpenTime, c.CloseTime, c.Open, c.High, c.Low, c.Close, c.Volume, c.Closed)
	return err
}

func (r *Repo) UpsertInstruments(ctx context.Context, insts []domain.Instrument) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO instruments(symbol, underlying, side, strike, expiry_ms, tick_size, step_size, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
		underlying=excluded.underlying, side=excluded.side, strike=excluded.strike, expiry_ms=excluded.expiry_ms,
		tick_size=excluded.tick_size, step_size=excluded.step_size, updated_at=excluded.updated_at
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UnixMilli()
	for _, in := range insts {
		if _, err := stmt.ExecContext(ctx, in.Symbol, in.Underlying, string(in.Side), in.Strike,
			in.ExpiryTimestamp, in.TickSize, in.StepSize, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *Repo) InsertSnapshot(ctx context.Context, ts int64, payload string) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO snapshots(ts_ms, payload, created_at) VALUES(?, ?, ?)`, ts, payload, ts)
	return err
}

// RecentTrades 按时间倒序返回最近 limit 条成交
func (r *Repo) RecentTrades(ctx context.Context, symbol string, limit int) ([]domain.Trade, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT trade_id, symbol, price, qty, side, ts_ms FROM trades
		WHERE symbol=? ORDER BY ts_ms DESC, id DESC LIMIT ?`, symbol, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Trade
	for rows.Next() {
		var t domain.Trade
		if err := rows.Scan(&t.ID, &t.Symbol, &t.Price, &t.Qty, &t.Side, &t.Time); err != nil {
			return nil, err
		}
		t.QuoteQty = t.Price * t.Qty
		out = append(out, t)
	}
	return out, rows.Err()
}

// Candles 按开盘时间升序返回 K 线
func (r *Repo) Candles(ctx context.Context, symbol string, interval domain.KlineInterval) ([]domain.Candle, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT open_time, close_time, open, high, low, close, volume, closed FROM candles
		WHERE symbol=? AND kline_interval=? ORDER BY open_time`, symbol, string(interval))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Candle
	for rows.Next() {
		var c domain.Candle
		if err := rows.Scan(&c.OpenTime, &c.CloseTime, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume, &c.Closed); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// LatestSnapshot 返回最近一次快照，没有时返回 sql.ErrNoRows
func (r *Repo) LatestSnapshot(ctx context.Context) (ts int64, payload string, err error) {
	err = r.db.QueryRowContext(ctx, `SELECT ts_ms, payload FROM snapshots ORDER BY ts_ms DESC, id DESC LIMIT 1`).
		Scan(&ts, &payload)
	return
}

var _ port.Repository = (*Repo)(nil)
