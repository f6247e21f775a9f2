package domain

// Event is a decoded push from the market stream. The set of variants is closed:
// only the types in this file implement it.
type Event interface {
	// Stream returns the logical stream key the event belongs to.
	Stream() string
	isEvent()
}

type TickerEvent struct {
	EventTime int64
	Ticker    Ticker
}

type DepthEvent struct {
	EventTime    int64
	TransactTime int64
	Symbol       string
	UpdateID     int64
	Bids         []PriceLevel
	Asks         []PriceLevel
}

type TradeEvent struct {
	EventTime int64
	Trade     Trade
	BuyerID   int64
	SellerID  int64
}

type KlineEvent struct {
	EventTime int64
	Symbol    string
	Interval  KlineInterval
	Candle    Candle
}

type IndexEvent struct {
	EventTime int64
	Index     IndexPrice
}

func (e *TickerEvent) Stream() string { return StreamName(StreamTicker, e.Ticker.Symbol, "") }
func (e *DepthEvent) Stream() string  { return StreamName(StreamDepth, e.Symbol, "") }
func (e *TradeEvent) Stream() string  { return StreamName(StreamTrade, e.Trade.Symbol, "") }
func (e *KlineEvent) Stream() string  { return StreamName(StreamKline, e.Symbol, e.Interval) }
func (e *IndexEvent) Stream() string  { return StreamName(StreamIndex, e.Index.Underlying, "") }

func (*TickerEvent) isEvent() {}
func (*DepthEvent) isEvent()  {}
func (*TradeEvent) isEvent()  {}
func (*KlineEvent) isEvent()  {}
func (*IndexEvent) isEvent()  {}

// Book converts a depth push into a full order book replacement.
func (e *DepthEvent) Book() OrderBook {
	return OrderBook{
		Symbol:   e.Symbol,
		Bids:     e.Bids,
		Asks:     e.Asks,
		UpdateID: e.UpdateID,
		Time:     e.TransactTime,
	}
}
