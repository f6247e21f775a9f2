package domain

// Ticker 期权 24 小时行情
type Ticker struct {
	Symbol             string  `json:"symbol"`
	LastPrice          float64 `json:"lastPrice"`
	LastQty            float64 `json:"lastQty"`
	Open               float64 `json:"open"`
	High               float64 `json:"high"`
	Low                float64 `json:"low"`
	Volume             float64 `json:"volume"`
	Amount             float64 `json:"amount"`
	PriceChange        float64 `json:"priceChange"`
	PriceChangePercent float64 `json:"priceChangePercent"`
	BidPrice           float64 `json:"bidPrice"`
	AskPrice           float64 `json:"askPrice"`
	BidQty             float64 `json:"bidQty"`
	AskQty             float64 `json:"askQty"`
	ExercisePrice      float64 `json:"exercisePrice"`
	TradeCount         int64   `json:"tradeCount"`
	FirstTradeID       int64   `json:"firstTradeId"`
	OpenTime           int64   `json:"openTime"`
	CloseTime          int64   `json:"closeTime"`
	// streamed ticker carries greeks as well; zero when it came from REST
	Delta float64 `json:"delta,omitempty"`
	Theta float64 `json:"theta,omitempty"`
	Gamma float64 `json:"gamma,omitempty"`
	Vega  float64 `json:"vega,omitempty"`
	IV    float64 `json:"iv,omitempty"`
	BidIV float64 `json:"bidIV,omitempty"`
	AskIV float64 `json:"askIV,omitempty"`
	Mark  float64 `json:"markPrice,omitempty"`
	Time  int64   `json:"time"`
}

// MarkPrice 标记价格与希腊字母
type MarkPrice struct {
	Symbol         string  `json:"symbol"`
	MarkPrice      float64 `json:"markPrice"`
	BidIV          float64 `json:"bidIV"`
	AskIV          float64 `json:"askIV"`
	MarkIV         float64 `json:"markIV"`
	Delta          float64 `json:"delta"`
	Theta          float64 `json:"theta"`
	Gamma          float64 `json:"gamma"`
	Vega           float64 `json:"vega"`
	HighPriceLimit float64 `json:"highPriceLimit"`
	LowPriceLimit  float64 `json:"lowPriceLimit"`
}

// IndexPrice 标的指数价格
type IndexPrice struct {
	Underlying string  `json:"underlying"`
	Price      float64 `json:"indexPrice"`
	Time       int64   `json:"time"`
}

type PriceLevel struct {
	Price float64 `json:"price"`
	Qty   float64 `json:"qty"`
}

// OrderBook holds the bid/ask ladder of one instrument.
type OrderBook struct {
	Symbol   string       `json:"symbol"`
	Bids     []PriceLevel `json:"bids"`
	Asks     []PriceLevel `json:"asks"`
	UpdateID int64        `json:"updateId"`
	Time     int64        `json:"time"`
}

func (b OrderBook) BestBid() (PriceLevel, bool) {
	if len(b.Bids) == 0 {
		return PriceLevel{}, false
	}
	return b.Bids[0], true
}

func (b OrderBook) BestAsk() (PriceLevel, bool) {
	if len(b.Asks) == 0 {
		return PriceLevel{}, false
	}
	return b.Asks[0], true
}

func (b OrderBook) clone() OrderBook {
	out := b
	out.Bids = append([]PriceLevel(nil), b.Bids...)
	out.Asks = append([]PriceLevel(nil), b.Asks...)
	return out
}

// Trade side: 1 taker buy, -1 taker sell
const (
	TradeSideBuy  = 1
	TradeSideSell = -1
)

type Trade struct {
	ID       string  `json:"id"`
	Symbol   string  `json:"symbol"`
	Price    float64 `json:"price"`
	Qty      float64 `json:"qty"`
	QuoteQty float64 `json:"quoteQty"`
	Side     int     `json:"side"`
	Time     int64   `json:"time"`
}

// Candle is one K 线 bar, identified within a series by OpenTime.
type Candle struct {
	OpenTime    int64   `json:"openTime"`
	CloseTime   int64   `json:"closeTime"`
	Open        float64 `json:"open"`
	High        float64 `json:"high"`
	Low         float64 `json:"low"`
	Close       float64 `json:"close"`
	Volume      float64 `json:"volume"`
	Amount      float64 `json:"amount"`
	TradeCount  int64   `json:"tradeCount"`
	TakerVolume float64 `json:"takerVolume"`
	TakerAmount float64 `json:"takerAmount"`
	Closed      bool    `json:"closed"`
}

// OpenInterest 未平仓合约
type OpenInterest struct {
	Symbol             string  `json:"symbol"`
	SumOpenInterest    float64 `json:"sumOpenInterest"`
	SumOpenInterestUsd float64 `json:"sumOpenInterestUsd"`
	Time               int64   `json:"timestamp"`
}
