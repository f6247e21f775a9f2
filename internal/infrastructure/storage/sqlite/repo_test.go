package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"xopt/internal/domain"
)

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	repo, err := New(filepath.Join(t.TempDir(), "nested", "test.db"))
	if err != nil {
		t.Fatalf("failed to create repo: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteRepoUpsertTicker(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for _, last := range []float64{100, 120} {
		err := repo.UpsertTicker(ctx, domain.Ticker{Symbol: "BTC-250328-60000-C", LastPrice: last, Time: 1})
		if err != nil {
			t.Fatalf("UpsertTicker failed: %v", err)
		}
	}

	var count int
	var last float64
	if err := repo.GetDB().QueryRow(`SELECT COUNT(*), MAX(last_price) FROM tickers`).Scan(&count, &last); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if count != 1 || last != 120 {
		t.Errorf("expected one row with last=120, got count=%d last=%v", count, last)
	}
}

func TestSQLiteRepoTradesDeduplicated(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	trades := []domain.Trade{
		{ID: "1", Symbol: "S", Price: 10, Qty: 1, Side: domain.TradeSideBuy, Time: 100},
		{ID: "2", Symbol: "S", Price: 11, Qty: 2, Side: domain.TradeSideSell, Time: 200},
		{ID: "2", Symbol: "S", Price: 11, Qty: 2, Side: domain.TradeSideSell, Time: 200},
		{ID: "1", Symbol: "OTHER", Price: 1, Qty: 1, Time: 300},
	}
	for _, tr := range trades {
		if err := repo.InsertTrade(ctx, tr); err != nil {
			t.Fatalf("InsertTrade failed: %v", err)
		}
	}

	got, err := repo.RecentTrades(ctx, "S", 10)
	if err != nil {
		t.Fatalf("RecentTrades failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(got))
	}
	if got[0].ID != "2" || got[0].QuoteQty != 22 || got[0].Side != domain.TradeSideSell {
		t.Errorf("unexpected newest trade %+v", got[0])
	}
}

func TestSQLiteRepoCandleUpsert(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	bars := []domain.Candle{
		{OpenTime: 1000, Open: 1, High: 1, Low: 1, Close: 1},
		{OpenTime: 1000, Open: 1, High: 3, Low: 1, Close: 2, Closed: true},
		{OpenTime: 2000, Open: 2, High: 2, Low: 2, Close: 2},
	}
	for _, c := range bars {
		if err := repo.UpsertCandle(ctx, "S", domain.Interval1m, c); err != nil {
			t.Fatalf("UpsertCandle failed: %v", err)
		}
	}
	if err := repo.UpsertCandle(ctx, "S", domain.Interval5m, bars[0]); err != nil {
		t.Fatalf("UpsertCandle failed: %v", err)
	}

	got, err := repo.Candles(ctx, "S", domain.Interval1m)
	if err != nil {
		t.Fatalf("Candles failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(got))
	}
	if got[0].High != 3 || got[0].Close != 2 || !got[0].Closed {
		t.Errorf("first bar not merged: %+v", got[0])
	}
}

func TestSQLiteRepoInstrumentsAndSnapshots(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, _, err := repo.LatestSnapshot(ctx); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}

	insts := []domain.Instrument{
		{Symbol: "BTC-250328-60000-C", Underlying: "BTCUSDT", Side: domain.SideCall, Strike: 60000, ExpiryTimestamp: 1},
		{Symbol: "BTC-250328-60000-P", Underlying: "BTCUSDT", Side: domain.SidePut, Strike: 60000, ExpiryTimestamp: 1},
	}
	if err := repo.UpsertInstruments(ctx, insts); err != nil {
		t.Fatalf("UpsertInstruments failed: %v", err)
	}
	if err := repo.UpsertInstruments(ctx, insts[:1]); err != nil {
		t.Fatalf("UpsertInstruments failed: %v", err)
	}
	var count int
	if err := repo.GetDB().QueryRow(`SELECT COUNT(*) FROM instruments`).Scan(&count); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 instruments, got %d", count)
	}

	if err := repo.InsertSnapshot(ctx, 10, `{"a":1}`); err != nil {
		t.Fatalf("InsertSnapshot failed: %v", err)
	}
	if err := repo.InsertSnapshot(ctx, 20, `{"a":2}`); err != nil {
		t.Fatalf("InsertSnapshot failed: %v", err)
	}
	ts, payload, err := repo.LatestSnapshot(ctx)
	if err != nil {
		t.Fatalf("LatestSnapshot failed: %v", err)
	}
	if ts != 20 || payload != `{"a":2}` {
		t.Errorf("unexpected snapshot %d %s", ts, payload)
	}
}
