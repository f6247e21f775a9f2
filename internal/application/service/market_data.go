package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"xopt/internal/application/port"
	"xopt/internal/domain"

	"github.com/rs/zerolog/log"
)

type MarketDataConfig struct {
	Underlying   string
	Interval     domain.KlineInterval
	DepthLimit   int
	KlineLimit   int
	TradeLimit   int
	PollInterval time.Duration
}

func (c *MarketDataConfig) applyDefaults() {
	if c.Interval == "" {
		c.Interval = domain.Interval15m
	}
	if c.DepthLimit <= 0 {
		c.DepthLimit = 20
	}
	if c.KlineLimit <= 0 {
		c.KlineLimit = 200
	}
	if c.TradeLimit <= 0 {
		c.TradeLimit = 50
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 30 * time.Second
	}
}

// MarketData keeps the snapshot in sync with the exchange: REST for the initial picture
// and periodic refresh, the stream for live updates of the current selection.
type MarketData struct {
	cfg      MarketDataConfig
	api      port.MarketDataAPI
	stream   port.MarketStream
	snap     *domain.Snapshot
	recorder *Recorder

	// selMu serializes selection changes so subscriptions and REST fills of two
	// concurrent switches cannot interleave.
	selMu     sync.Mutex
	tickerSub port.Subscription
	indexSub  port.Subscription
	depthSub  port.Subscription
	tradeSub  port.Subscription
	klineSub  port.Subscription
}

func NewMarketData(cfg MarketDataConfig, api port.MarketDataAPI, stream port.MarketStream, snap *domain.Snapshot, rec *Recorder) *MarketData {
	cfg.applyDefaults()
	return &MarketData{
		cfg:      cfg,
		api:      api,
		stream:   stream,
		snap:     snap,
		recorder: rec,
	}
}

func (s *MarketData) Snapshot() *domain.Snapshot { return s.snap }

// Init loads the instrument catalog and selects the configured underlying.
func (s *MarketData) Init(ctx context.Context) error {
	s.stream.SetConnectionObserver(func(connected bool) {
		s.snap.SetConnected(connected)
		log.Info().Bool("connected", connected).Msg("market stream state")
	})

	insts, err := s.api.ExchangeInfo(ctx)
	if err != nil {
		s.snap.SetError(err.Error())
		return fmt.Errorf("load instruments: %w", err)
	}
	cat, skipped := domain.NewCatalog(insts)
	if len(skipped) > 0 {
		log.Warn().Int("skipped", len(skipped)).Strs("symbols", head(skipped, 5)).Msg("unparseable option symbols skipped")
	}
	s.snap.SetCatalog(cat)
	s.snap.SetError("")

	if err := s.recorder.RecordInstruments(ctx, cat.Instruments()); err != nil {
		log.Warn().Err(err).Msg("persist instruments failed")
	}

	log.Info().
		Int("instruments", cat.Len()).
		Strs("underlyings", cat.Underlyings()).
		Msg("option catalog loaded")

	underlying := s.cfg.Underlying
	if underlying == "" {
		if us := cat.Underlyings(); len(us) > 0 {
			underlying = us[0]
		}
	}
	return s.SelectUnderlying(ctx, underlying)
}

// SelectUnderlying switches the underlying: expiry and symbol selection are cleared,
// tickers of every listed contract of the new underlying and its index are streamed.
func (s *MarketData) SelectUnderlying(ctx context.Context, underlying string) error {
	underlying = strings.ToUpper(strings.TrimSpace(underlying))
	if underlying == "" {
		return fmt.Errorf("%w: empty underlying", ErrUnknownSymbol)
	}

	s.selMu.Lock()
	defer s.selMu.Unlock()

	s.unsubscribeSymbolLocked()
	unsubscribe(&s.tickerSub)
	unsubscribe(&s.indexSub)
	s.snap.SelectUnderlying(underlying)

	symbols := make([]string, 0)
	for _, in := range s.snap.Catalog().ForUnderlying(underlying) {
		symbols = append(symbols, in.Symbol)
	}
	if len(symbols) > 0 {
		s.tickerSub = s.stream.SubscribeMultipleTickers(symbols, s.onEvent)
	}
	s.indexSub = s.stream.Subscribe(domain.StreamIndex, underlying, s.onEvent)

	log.Info().Str("underlying", underlying).Int("contracts", len(symbols)).Msg("underlying selected")

	return s.refresh(ctx, underlying)
}

// SelectExpiry narrows the chain to one calendar day; nil shows every expiry.
func (s *MarketData) SelectExpiry(expiry *time.Time) {
	s.snap.SelectExpiry(expiry)
}

// SelectSymbol switches the detailed contract view: book, tape and candles are reset,
// refilled from REST and then kept live by depth, trade and kline streams.
func (s *MarketData) SelectSymbol(ctx context.Context, symbol string) error {
	inst, ok := s.snap.Catalog().Lookup(symbol)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	symbol = inst.Symbol

	s.selMu.Lock()
	defer s.selMu.Unlock()

	s.unsubscribeSymbolLocked()
	s.snap.SelectSymbol(symbol)
	interval := s.snap.Selection().Interval

	var errs []error
	if book, err := s.api.OrderBook(ctx, symbol, s.cfg.DepthLimit); err != nil {
		errs = append(errs, err)
	} else {
		s.snap.SetOrderBook(book)
	}
	if trades, err := s.api.RecentTrades(ctx, symbol, s.cfg.TradeLimit); err != nil {
		errs = append(errs, err)
	} else {
		s.snap.SetTrades(newestFirst(trades))
	}
	if candles, err := s.api.Klines(ctx, symbol, interval, s.cfg.KlineLimit); err != nil {
		errs = append(errs, err)
	} else {
		s.snap.SetCandles(candles)
	}

	s.depthSub = s.stream.Subscribe(domain.StreamDepth, symbol, s.onEvent)
	s.tradeSub = s.stream.Subscribe(domain.StreamTrade, symbol, s.onEvent)
	s.klineSub = s.stream.Subscribe(domain.StreamKline, symbol, s.onEvent, interval)

	log.Info().Str("symbol", symbol).Str("interval", string(interval)).Msg("symbol selected")

	if err := errors.Join(errs...); err != nil {
		s.snap.SetError(err.Error())
		return err
	}
	return nil
}

// SetChartInterval swaps the candle series of the selected contract.
func (s *MarketData) SetChartInterval(ctx context.Context, interval domain.KlineInterval) error {
	if !interval.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidInterval, interval)
	}

	s.selMu.Lock()
	defer s.selMu.Unlock()

	s.snap.SetInterval(interval)
	symbol := s.snap.Selection().Symbol
	unsubscribe(&s.klineSub)
	if symbol == "" {
		return nil
	}

	candles, err := s.api.Klines(ctx, symbol, interval, s.cfg.KlineLimit)
	s.klineSub = s.stream.Subscribe(domain.StreamKline, symbol, s.onEvent, interval)
	if err != nil {
		s.snap.SetError(err.Error())
		return err
	}
	s.snap.SetCandles(candles)
	return nil
}

func (s *MarketData) Chain() []domain.ExpiryGroup {
	return s.snap.Chain()
}

// OpenInterest 查询当前标的某个到期日的未平仓量
func (s *MarketData) OpenInterest(ctx context.Context, expiry time.Time) ([]domain.OpenInterest, error) {
	underlying := s.snap.Selection().Underlying
	return s.api.OpenInterest(ctx, s.underlyingAsset(underlying), expiry.UTC().Format("060102"))
}

// underlyingAsset maps "BTCUSDT" to the "BTC" prefix used in contract names.
func (s *MarketData) underlyingAsset(underlying string) string {
	for _, in := range s.snap.Catalog().ForUnderlying(underlying) {
		if p, err := domain.ParseSymbol(in.Symbol); err == nil {
			return p.Underlying
		}
		if in.QuoteAsset != "" {
			return strings.TrimSuffix(underlying, in.QuoteAsset)
		}
	}
	return strings.TrimSuffix(underlying, "USDT")
}

// Refresh polls tickers, marks and the index of the current underlying.
func (s *MarketData) Refresh(ctx context.Context) error {
	return s.refresh(ctx, s.snap.Selection().Underlying)
}

func (s *MarketData) refresh(ctx context.Context, underlying string) error {
	var errs []error
	if tickers, err := s.api.Tickers(ctx); err != nil {
		errs = append(errs, err)
	} else {
		s.snap.UpdateTickers(tickers)
	}
	if marks, err := s.api.MarkPrices(ctx); err != nil {
		errs = append(errs, err)
	} else {
		s.snap.UpdateMarks(marks)
	}
	if underlying != "" {
		if idx, err := s.api.IndexPrice(ctx, underlying); err != nil {
			errs = append(errs, err)
		} else {
			s.snap.UpdateIndex(underlying, idx)
		}
	}
	if err := errors.Join(errs...); err != nil {
		s.snap.SetError(err.Error())
		return err
	}
	return nil
}

// Run connects the stream and polls REST until ctx is done.
func (s *MarketData) Run(ctx context.Context) error {
	if err := s.stream.Connect(ctx); err != nil {
		// 重连由 stream 自己调度
		log.Warn().Err(err).Msg("initial stream connect failed")
	}

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
				log.Warn().Err(err).Msg("market refresh failed")
			}
		}
	}
}

// onEvent applies one stream event to the snapshot. Events for a contract that is no
// longer selected are dropped by the snapshot itself.
func (s *MarketData) onEvent(ev domain.Event) {
	switch e := ev.(type) {
	case *domain.TickerEvent:
		s.snap.UpdateTicker(e.Ticker)
		s.recorder.RecordTicker(e.Ticker)
	case *domain.DepthEvent:
		s.snap.ApplyDepth(e)
	case *domain.TradeEvent:
		if s.snap.AddTrade(e.Trade) {
			s.recorder.RecordTrade(e.Trade)
		}
	case *domain.KlineEvent:
		if s.snap.UpdateCandle(e) {
			s.recorder.RecordCandle(e.Symbol, e.Interval, e.Candle)
		}
	case *domain.IndexEvent:
		s.snap.UpdateIndex(e.Index.Underlying, e.Index)
	}
}

func (s *MarketData) unsubscribeSymbolLocked() {
	unsubscribe(&s.depthSub)
	unsubscribe(&s.tradeSub)
	unsubscribe(&s.klineSub)
}

// Close releases every stream subscription held by the service.
func (s *MarketData) Close() {
	s.selMu.Lock()
	defer s.selMu.Unlock()
	s.unsubscribeSymbolLocked()
	unsubscribe(&s.tickerSub)
	unsubscribe(&s.indexSub)
}

func unsubscribe(sub *port.Subscription) {
	if *sub != nil {
		(*sub).Unsubscribe()
		*sub = nil
	}
}

// newestFirst orders a REST trade list like the live tape (most recent at index 0).
func newestFirst(trades []domain.Trade) []domain.Trade {
	out := append([]domain.Trade(nil), trades...)
	if len(out) > 1 && out[0].Time < out[len(out)-1].Time {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}

func head(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
