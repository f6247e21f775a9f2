package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"xopt/internal/domain"
	"xopt/internal/infrastructure/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderFlushesOnShutdown(t *testing.T) {
	repo := newMockRepository()
	rec := NewRecorder(repo, nil, 8, 0)

	rec.RecordTicker(domain.Ticker{Symbol: callSym, LastPrice: 1})
	rec.RecordTrade(domain.Trade{ID: "1", Symbol: callSym})
	rec.RecordTrade(domain.Trade{ID: "2", Symbol: callSym})
	rec.RecordCandle(callSym, domain.Interval1m, domain.Candle{OpenTime: 60000})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := rec.Run(ctx); err != nil {
		t.Fatalf("Run returned %v", err)
	}

	if repo.tradeCount() != 2 {
		t.Errorf("trades = %d", repo.tradeCount())
	}
	if _, ok := repo.tickers[callSym]; !ok {
		t.Error("ticker not written")
	}
	if len(repo.candles) != 1 {
		t.Errorf("candles = %d", len(repo.candles))
	}
}

func TestRecorderDropsWhenFull(t *testing.T) {
	rec := NewRecorder(newMockRepository(), nil, 1, 0)
	before := testutil.ToFloat64(metrics.RecorderDropped)

	rec.RecordTrade(domain.Trade{ID: "1"})
	rec.RecordTrade(domain.Trade{ID: "2"})

	if len(rec.ch) != 1 {
		t.Errorf("buffer len = %d", len(rec.ch))
	}
	if got := testutil.ToFloat64(metrics.RecorderDropped) - before; got != 1 {
		t.Errorf("dropped = %v, want 1", got)
	}
}

func TestRecorderCountsWriteErrors(t *testing.T) {
	repo := newMockRepository()
	repo.err = errBoom
	rec := NewRecorder(repo, nil, 4, 0)
	counter := metrics.RecorderErrors.WithLabelValues("trade")
	before := testutil.ToFloat64(counter)

	rec.write(record{kind: recordTrade, trade: domain.Trade{ID: "1"}})

	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Errorf("errors = %v, want 1", got)
	}
}

func TestRecorderSnapshot(t *testing.T) {
	repo := newMockRepository()
	snap := domain.NewSnapshot("BTCUSDT", domain.Interval15m)
	rec := NewRecorder(repo, snap, 4, time.Minute)

	rec.writeSnapshot(time.UnixMilli(1700000000000))

	if len(repo.snapshots) != 1 {
		t.Fatalf("snapshots = %d", len(repo.snapshots))
	}
	if !strings.Contains(repo.snapshots[0], `"underlying":"BTCUSDT"`) {
		t.Errorf("payload = %s", repo.snapshots[0])
	}
}

func TestNilRecorder(t *testing.T) {
	var rec *Recorder
	rec.RecordTicker(domain.Ticker{})
	rec.RecordTrade(domain.Trade{})
	rec.RecordCandle("", "", domain.Candle{})
	if err := rec.RecordInstruments(context.Background(), testInstruments()); err != nil {
		t.Errorf("RecordInstruments on nil recorder: %v", err)
	}
}
