package service

import (
	"context"
	"encoding/json"
	"time"

	"xopt/internal/application/port"
	"xopt/internal/domain"
	"xopt/internal/infrastructure/metrics"

	"github.com/rs/zerolog/log"
)

type recordKind int

const (
	recordTicker recordKind = iota
	recordTrade
	recordCandle
)

func (k recordKind) String() string {
	switch k {
	case recordTicker:
		return "ticker"
	case recordTrade:
		return "trade"
	case recordCandle:
		return "candle"
	}
	return "unknown"
}

type record struct {
	kind     recordKind
	ticker   domain.Ticker
	trade    domain.Trade
	symbol   string
	interval domain.KlineInterval
	candle   domain.Candle
}

// Recorder persists market updates off the hot path. Record* never block: when the
// buffer is full the record is dropped and counted. A nil *Recorder records nothing.
type Recorder struct {
	repo         port.Repository
	snap         *domain.Snapshot
	ch           chan record
	snapEvery    time.Duration
	writeTimeout time.Duration
}

func NewRecorder(repo port.Repository, snap *domain.Snapshot, bufferSize int, snapEvery time.Duration) *Recorder {
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	return &Recorder{
		repo:         repo,
		snap:         snap,
		ch:           make(chan record, bufferSize),
		snapEvery:    snapEvery,
		writeTimeout: 5 * time.Second,
	}
}

func (r *Recorder) enqueue(rec record) {
	if r == nil {
		return
	}
	select {
	case r.ch <- rec:
	default:
		metrics.RecorderDropped.Inc()
	}
}

func (r *Recorder) RecordTicker(t domain.Ticker) {
	r.enqueue(record{kind: recordTicker, ticker: t})
}

func (r *Recorder) RecordTrade(t domain.Trade) {
	r.enqueue(record{kind: recordTrade, trade: t})
}

func (r *Recorder) RecordCandle(symbol string, interval domain.KlineInterval, c domain.Candle) {
	r.enqueue(record{kind: recordCandle, symbol: symbol, interval: interval, candle: c})
}

// RecordInstruments writes the catalog synchronously; it happens once per catalog load.
func (r *Recorder) RecordInstruments(ctx context.Context, insts []domain.Instrument) error {
	if r == nil {
		return nil
	}
	if err := r.repo.UpsertInstruments(ctx, insts); err != nil {
		metrics.RecorderErrors.WithLabelValues("instruments").Inc()
		return err
	}
	return nil
}

// Run drains the buffer until ctx is done, then flushes what is already queued.
func (r *Recorder) Run(ctx context.Context) error {
	var snapC <-chan time.Time
	if r.snapEvery > 0 && r.snap != nil {
		t := time.NewTicker(r.snapEvery)
		defer t.Stop()
		snapC = t.C
	}

	for {
		select {
		case <-ctx.Done():
			r.flush()
			return nil
		case rec := <-r.ch:
			r.write(rec)
		case now := <-snapC:
			r.writeSnapshot(now)
		}
	}
}

func (r *Recorder) flush() {
	for {
		select {
		case rec := <-r.ch:
			r.write(rec)
		default:
			return
		}
	}
}

func (r *Recorder) write(rec record) {
	ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
	defer cancel()

	var err error
	switch rec.kind {
	case recordTicker:
		err = r.repo.UpsertTicker(ctx, rec.ticker)
	case recordTrade:
		err = r.repo.InsertTrade(ctx, rec.trade)
	case recordCandle:
		err = r.repo.UpsertCandle(ctx, rec.symbol, rec.interval, rec.candle)
	}
	if err != nil {
		metrics.RecorderErrors.WithLabelValues(rec.kind.String()).Inc()
		log.Warn().Err(err).Str("kind", rec.kind.String()).Msg("record write failed")
	}
}

func (r *Recorder) writeSnapshot(now time.Time) {
	b, err := json.Marshal(r.snap.View())
	if err != nil {
		log.Warn().Err(err).Msg("marshal snapshot failed")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
	defer cancel()
	if err := r.repo.InsertSnapshot(ctx, now.UnixMilli(), string(b)); err != nil {
		metrics.RecorderErrors.WithLabelValues("snapshot").Inc()
		log.Warn().Err(err).Msg("snapshot write failed")
	}
}
