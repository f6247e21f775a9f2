package service

import (
	"context"
	"errors"
	"sync"

	"xopt/internal/application/port"
	"xopt/internal/domain"
)

// ===== market data REST =====

type mockMarketAPI struct {
	mu          sync.Mutex
	instruments []domain.Instrument
	tickers     []domain.Ticker
	marks       []domain.MarkPrice
	index       float64
	book        domain.OrderBook
	trades      []domain.Trade
	candles     map[domain.KlineInterval][]domain.Candle
	oi          []domain.OpenInterest
	err         error

	klineCalls []domain.KlineInterval
	oiArgs     [2]string
}

func (m *mockMarketAPI) ExchangeInfo(ctx context.Context) ([]domain.Instrument, error) {
	return m.instruments, m.err
}

func (m *mockMarketAPI) Tickers(ctx context.Context) ([]domain.Ticker, error) {
	return m.tickers, m.err
}

func (m *mockMarketAPI) MarkPrices(ctx context.Context) ([]domain.MarkPrice, error) {
	return m.marks, m.err
}

func (m *mockMarketAPI) IndexPrice(ctx context.Context, underlying string) (domain.IndexPrice, error) {
	return domain.IndexPrice{Underlying: underlying, Price: m.index}, m.err
}

func (m *mockMarketAPI) OrderBook(ctx context.Context, symbol string, limit int) (domain.OrderBook, error) {
	b := m.book
	b.Symbol = symbol
	return b, m.err
}

func (m *mockMarketAPI) Klines(ctx context.Context, symbol string, interval domain.KlineInterval, limit int) ([]domain.Candle, error) {
	m.mu.Lock()
	m.klineCalls = append(m.klineCalls, interval)
	m.mu.Unlock()
	return m.candles[interval], m.err
}

func (m *mockMarketAPI) RecentTrades(ctx context.Context, symbol string, limit int) ([]domain.Trade, error) {
	return m.trades, m.err
}

func (m *mockMarketAPI) OpenInterest(ctx context.Context, underlyingAsset, expiration string) ([]domain.OpenInterest, error) {
	m.oiArgs = [2]string{underlyingAsset, expiration}
	return m.oi, m.err
}

// ===== stream =====

type mockSub struct {
	stream *mockStream
	key    string
	closed bool
}

func (s *mockSub) Unsubscribe() {
	s.stream.mu.Lock()
	defer s.stream.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	delete(s.stream.handlers, s.key)
}

type mockStream struct {
	mu        sync.Mutex
	handlers  map[string]port.EventHandler
	observer  func(bool)
	connected bool
	connects  int
}

func newMockStream() *mockStream {
	return &mockStream{handlers: make(map[string]port.EventHandler)}
}

func (m *mockStream) Connect(ctx context.Context) error {
	m.mu.Lock()
	m.connects++
	m.connected = true
	obs := m.observer
	m.mu.Unlock()
	if obs != nil {
		obs(true)
	}
	return nil
}

func (m *mockStream) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *mockStream) SetConnectionObserver(fn func(bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observer = fn
}

func (m *mockStream) Subscribe(t domain.StreamType, symbol string, h port.EventHandler, interval ...domain.KlineInterval) port.Subscription {
	var iv domain.KlineInterval
	if len(interval) > 0 {
		iv = interval[0]
	}
	key := domain.StreamName(t, symbol, iv)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[key] = h
	return &mockSub{stream: m, key: key}
}

type multiSub []port.Subscription

func (s multiSub) Unsubscribe() {
	for _, sub := range s {
		sub.Unsubscribe()
	}
}

func (m *mockStream) SubscribeMultipleTickers(symbols []string, h port.EventHandler) port.Subscription {
	subs := make(multiSub, 0, len(symbols))
	for _, s := range symbols {
		subs = append(subs, m.Subscribe(domain.StreamTicker, s, h))
	}
	return subs
}

func (m *mockStream) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.handlers[key]
	return ok
}

func (m *mockStream) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.handlers)
}

// push delivers ev to the handler of its stream key, like the demultiplexer does.
func (m *mockStream) push(ev domain.Event) bool {
	m.mu.Lock()
	h, ok := m.handlers[ev.Stream()]
	m.mu.Unlock()
	if ok {
		h(ev)
	}
	return ok
}

// ===== trading =====

type mockTradingAPI struct {
	mu        sync.Mutex
	account   *domain.AccountInfo
	positions []domain.Position
	orders    []domain.Order
	err       error

	placed    []domain.OrderRequest
	cancelled []domain.CancelRequest
	cancelAll []string
	refreshes int
}

func (m *mockTradingAPI) Account(ctx context.Context) (*domain.AccountInfo, error) {
	m.mu.Lock()
	m.refreshes++
	m.mu.Unlock()
	return m.account, m.err
}

func (m *mockTradingAPI) Positions(ctx context.Context, symbol string) ([]domain.Position, error) {
	return m.positions, m.err
}

func (m *mockTradingAPI) OpenOrders(ctx context.Context, symbol string) ([]domain.Order, error) {
	return m.orders, m.err
}

func (m *mockTradingAPI) PlaceOrder(ctx context.Context, req domain.OrderRequest) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.placed = append(m.placed, req)
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Order{OrderID: int64(len(m.placed)), Symbol: req.Symbol, ClientOrderID: req.ClientOrderID, Status: "ACCEPTED"}, nil
}

func (m *mockTradingAPI) CancelOrder(ctx context.Context, req domain.CancelRequest) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled = append(m.cancelled, req)
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Order{OrderID: req.OrderID, Symbol: req.Symbol, Status: "CANCELLED"}, nil
}

func (m *mockTradingAPI) CancelAllOrders(ctx context.Context, symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelAll = append(m.cancelAll, symbol)
	return m.err
}

// ===== repository =====

type mockRepository struct {
	mu          sync.Mutex
	tickers     map[string]domain.Ticker
	trades      []domain.Trade
	candles     []domain.Candle
	instruments int
	snapshots   []string
	err         error
}

func newMockRepository() *mockRepository {
	return &mockRepository{tickers: make(map[string]domain.Ticker)}
}

func (m *mockRepository) UpsertTicker(ctx context.Context, t domain.Ticker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickers[t.Symbol] = t
	return m.err
}

func (m *mockRepository) InsertTrade(ctx context.Context, t domain.Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades = append(m.trades, t)
	return m.err
}

func (m *mockRepository) UpsertCandle(ctx context.Context, symbol string, interval domain.KlineInterval, c domain.Candle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.candles = append(m.candles, c)
	return m.err
}

func (m *mockRepository) UpsertInstruments(ctx context.Context, insts []domain.Instrument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.instruments += len(insts)
	return m.err
}

func (m *mockRepository) InsertSnapshot(ctx context.Context, ts int64, payload string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = append(m.snapshots, payload)
	return m.err
}

func (m *mockRepository) Close() error { return nil }

func (m *mockRepository) tradeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.trades)
}

var errBoom = errors.New("boom")

// ===== fixtures =====

func testInstruments() []domain.Instrument {
	return []domain.Instrument{
		{Symbol: "BTC-250328-60000-C", Underlying: "BTCUSDT", QuoteAsset: "USDT", MinQty: 0.01, MaxQty: 100, StepSize: 0.01, TickSize: 5},
		{Symbol: "BTC-250328-60000-P", Underlying: "BTCUSDT", QuoteAsset: "USDT", MinQty: 0.01, StepSize: 0.01, TickSize: 5},
		{Symbol: "BTC-250425-70000-C", Underlying: "BTCUSDT", QuoteAsset: "USDT"},
		{Symbol: "ETH-250328-3000-C", Underlying: "ETHUSDT", QuoteAsset: "USDT"},
	}
}

func testCatalog() *domain.Catalog {
	cat, _ := domain.NewCatalog(testInstruments())
	return cat
}
