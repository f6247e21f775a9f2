package domain

import (
	"strings"
	"sync"
	"time"
)

// MaxTrades caps the trade tape.
const MaxTrades = 100

// Selection 当前选择的标的、到期日、合约与 K 线周期
type Selection struct {
	Underlying string        `json:"underlying"`
	Expiry     *time.Time    `json:"expiry,omitempty"`
	Symbol     string        `json:"symbol,omitempty"`
	Interval   KlineInterval `json:"interval"`
}

// View is a point-in-time copy of the snapshot for readers.
type View struct {
	Selection Selection             `json:"selection"`
	Connected bool                  `json:"connected"`
	Error     string                `json:"error,omitempty"`
	Tickers   map[string]Ticker     `json:"tickers"`
	Marks     map[string]MarkPrice  `json:"marks"`
	Index     map[string]IndexPrice `json:"index"`
	OrderBook *OrderBook            `json:"orderBook,omitempty"`
	Trades    []Trade               `json:"trades"`
	Candles   []Candle              `json:"candles"`
	Account   *AccountInfo          `json:"account,omitempty"`
	Positions []Position            `json:"positions"`
	Orders    []Order               `json:"openOrders"`
	UpdatedAt time.Time             `json:"updatedAt"`
}

// Snapshot is the single owner of live market state. Every mutation goes through its
// methods and is serialized by one mutex, so a depth replace can never interleave with
// a symbol switch reset.
type Snapshot struct {
	mu sync.RWMutex

	catalog *Catalog
	sel     Selection

	tickers map[string]Ticker
	marks   map[string]MarkPrice
	index   map[string]IndexPrice

	book    *OrderBook
	trades  []Trade
	candles []Candle

	account   *AccountInfo
	positions []Position
	orders    []Order

	connected bool
	lastErr   string
	updatedAt time.Time
}

func NewSnapshot(underlying string, interval KlineInterval) *Snapshot {
	if interval == "" {
		interval = DefaultKlineInterval
	}
	return &Snapshot{
		sel:     Selection{Underlying: strings.ToUpper(underlying), Interval: interval},
		tickers: make(map[string]Ticker),
		marks:   make(map[string]MarkPrice),
		index:   make(map[string]IndexPrice),
	}
}

func (s *Snapshot) touch() { s.updatedAt = time.Now() }

func (s *Snapshot) resetSymbolData() {
	s.book = nil
	s.trades = nil
	s.candles = nil
}

func (s *Snapshot) SetCatalog(c *Catalog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog = c
	s.touch()
}

func (s *Snapshot) Catalog() *Catalog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.catalog
}

func (s *Snapshot) Selection() Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sel
}

// SelectUnderlying switches the underlying, clearing the expiry filter, the selected
// symbol and that symbol's book, tape and candles.
func (s *Snapshot) SelectUnderlying(underlying string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sel.Underlying = strings.ToUpper(strings.TrimSpace(underlying))
	s.sel.Expiry = nil
	s.sel.Symbol = ""
	s.resetSymbolData()
	s.touch()
}

func (s *Snapshot) SelectExpiry(expiry *time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if expiry != nil {
		e := *expiry
		expiry = &e
	}
	s.sel.Expiry = expiry
	s.touch()
}

// SelectSymbol switches the selected contract; book, tape and candles are emptied
// before any data for the new symbol can be applied.
func (s *Snapshot) SelectSymbol(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sel.Symbol = strings.ToUpper(strings.TrimSpace(symbol))
	s.resetSymbolData()
	s.touch()
}

// SetInterval changes the candle interval and drops the candles of the old one.
func (s *Snapshot) SetInterval(interval KlineInterval) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sel.Interval = interval
	s.candles = nil
	s.touch()
}

func (s *Snapshot) isSelected(symbol string) bool {
	return s.sel.Symbol != "" && strings.EqualFold(s.sel.Symbol, symbol)
}

// ===== tickers / marks / index: full replace per key =====

func (s *Snapshot) UpdateTicker(t Ticker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickers[t.Symbol] = t
	s.touch()
}

func (s *Snapshot) UpdateTickers(ts []Ticker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range ts {
		s.tickers[t.Symbol] = t
	}
	s.touch()
}

func (s *Snapshot) UpdateMark(m MarkPrice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marks[m.Symbol] = m
	s.touch()
}

func (s *Snapshot) UpdateMarks(ms []MarkPrice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range ms {
		s.marks[m.Symbol] = m
	}
	s.touch()
}

func (s *Snapshot) UpdateIndex(underlying string, p IndexPrice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index[strings.ToUpper(underlying)] = p
	s.touch()
}

// ===== order book =====

// SetOrderBook replaces the book. Books for a symbol other than the selected one are
// ignored and false is returned.
func (s *Snapshot) SetOrderBook(b OrderBook) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isSelected(b.Symbol) {
		return false
	}
	nb := b.clone()
	s.book = &nb
	s.touch()
	return true
}

// ApplyDepth replaces both sides of the book wholesale with the pushed levels.
// There is no sequence reconciliation: the last push to arrive wins.
func (s *Snapshot) ApplyDepth(ev *DepthEvent) bool {
	return s.SetOrderBook(ev.Book())
}

// ===== trade tape =====

func (s *Snapshot) SetTrades(trades []Trade) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(trades) > MaxTrades {
		trades = trades[:MaxTrades]
	}
	s.trades = append([]Trade(nil), trades...)
	s.touch()
}

// AddTrade prepends a trade of the selected symbol and keeps at most MaxTrades.
func (s *Snapshot) AddTrade(t Trade) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isSelected(t.Symbol) {
		return false
	}
	n := len(s.trades) + 1
	if n > MaxTrades {
		n = MaxTrades
	}
	tape := make([]Trade, n)
	tape[0] = t
	copy(tape[1:], s.trades)
	s.trades = tape
	s.touch()
	return true
}

// ===== candles =====

func (s *Snapshot) SetCandles(cs []Candle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candles = append([]Candle(nil), cs...)
	s.touch()
}

// UpdateCandle merges a pushed bar if it belongs to the selected symbol and interval.
func (s *Snapshot) UpdateCandle(ev *KlineEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isSelected(ev.Symbol) || ev.Interval != s.sel.Interval {
		return false
	}
	s.mergeCandle(ev.Candle)
	return true
}

// mergeCandle replaces the last bar when open times match, otherwise appends.
func (s *Snapshot) mergeCandle(c Candle) {
	if last := len(s.candles) - 1; last >= 0 && s.candles[last].OpenTime == c.OpenTime {
		s.candles[last] = c
	} else {
		s.candles = append(s.candles, c)
	}
	s.touch()
}

// ===== user data =====

func (s *Snapshot) SetAccount(a *AccountInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.account = a
	s.touch()
}

func (s *Snapshot) SetPositions(ps []Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions = append([]Position(nil), ps...)
	s.touch()
}

func (s *Snapshot) SetOpenOrders(orders []Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = append([]Order(nil), orders...)
	s.touch()
}

func (s *Snapshot) SetConnected(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = ok
	s.touch()
}

func (s *Snapshot) SetError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = msg
	s.touch()
}

// ===== readers =====

func (s *Snapshot) Ticker(symbol string) (Ticker, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tickers[symbol]
	return t, ok
}

func (s *Snapshot) Mark(symbol string) (MarkPrice, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.marks[symbol]
	return m, ok
}

func (s *Snapshot) Index(underlying string) (IndexPrice, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.index[strings.ToUpper(underlying)]
	return p, ok
}

func (s *Snapshot) OrderBook() (OrderBook, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.book == nil {
		return OrderBook{}, false
	}
	return s.book.clone(), true
}

func (s *Snapshot) Trades() []Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Trade(nil), s.trades...)
}

func (s *Snapshot) Candles() []Candle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Candle(nil), s.candles...)
}

func (s *Snapshot) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// Chain projects the catalog with the current underlying and expiry filter.
func (s *Snapshot) Chain() []ExpiryGroup {
	s.mu.RLock()
	cat, sel := s.catalog, s.sel
	s.mu.RUnlock()
	return ProjectChain(cat.ForUnderlying(sel.Underlying), sel.Underlying, sel.Expiry)
}

func (s *Snapshot) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v := View{
		Selection: s.sel,
		Connected: s.connected,
		Error:     s.lastErr,
		Tickers:   make(map[string]Ticker, len(s.tickers)),
		Marks:     make(map[string]MarkPrice, len(s.marks)),
		Index:     make(map[string]IndexPrice, len(s.index)),
		Trades:    append([]Trade(nil), s.trades...),
		Candles:   append([]Candle(nil), s.candles...),
		Positions: append([]Position(nil), s.positions...),
		Orders:    append([]Order(nil), s.orders...),
		UpdatedAt: s.updatedAt,
	}
	for k, t := range s.tickers {
		v.Tickers[k] = t
	}
	for k, m := range s.marks {
		v.Marks[k] = m
	}
	for k, p := range s.index {
		v.Index[k] = p
	}
	if s.book != nil {
		b := s.book.clone()
		v.OrderBook = &b
	}
	if s.account != nil {
		a := *s.account
		v.Account = &a
	}
	return v
}
