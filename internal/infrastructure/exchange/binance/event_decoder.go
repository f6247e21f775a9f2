package binance

import (
	"encoding/json"
	"fmt"
	"strings"

	"xopt/internal/domain"
)

// EventDecoder turns raw EAPI stream payloads into domain events.
//
// Binance uses keys that differ only by case ("e"/"E", "t"/"T", "v"/"V"). encoding/json
// falls back to case-insensitive matching, so every struct below declares both spellings
// wherever the exchange sends both.
type EventDecoder struct{}

func NewEventDecoder() *EventDecoder { return &EventDecoder{} }

type eventHeader struct {
	Type      string          `json:"e"`
	EventTime int64           `json:"E"`
	ID        json.RawMessage `json:"id"`
}

// Decode returns (nil, nil) for frames that are not market events, e.g. subscription acks.
func (d *EventDecoder) Decode(payload []byte) (domain.Event, error) {
	var h eventHeader
	if err := json.Unmarshal(payload, &h); err != nil {
		return nil, fmt.Errorf("decode header: %w", err)
	}

	switch h.Type {
	case "24hrTicker":
		return decodeTicker(payload)
	case "depth", "depthUpdate":
		return decodeDepth(payload)
	case "trade":
		return decodeTrade(payload)
	case "kline":
		return decodeKline(payload)
	case "index":
		return decodeIndex(payload)
	default:
		// {"result":null,"id":1} 以及未知事件
		return nil, nil
	}
}

type wsTicker struct {
	Type          string    `json:"e"`
	EventTime     int64     `json:"E"`
	TransactTime  int64     `json:"T"`
	Symbol        string    `json:"s"`
	OpenTime      int64     `json:"O"`
	CloseTime     int64     `json:"C"`
	Open          jsonFloat `json:"o"`
	High          jsonFloat `json:"h"`
	Low           jsonFloat `json:"l"`
	Close         jsonFloat `json:"c"`
	Volume        jsonFloat `json:"V"`
	Amount        jsonFloat `json:"A"`
	ChangePercent jsonFloat `json:"P"`
	Change        jsonFloat `json:"p"`
	LastQty       jsonFloat `json:"Q"`
	FirstTradeID  jsonInt   `json:"F"`
	LastTradeID   jsonInt   `json:"L"`
	TradeCount    jsonInt   `json:"n"`
	BidPrice      jsonFloat `json:"bo"`
	AskPrice      jsonFloat `json:"ao"`
	BidQty        jsonFloat `json:"bq"`
	AskQty        jsonFloat `json:"aq"`
	BidIV         jsonFloat `json:"b"`
	AskIV         jsonFloat `json:"a"`
	Delta         jsonFloat `json:"d"`
	Theta         jsonFloat `json:"t"`
	Gamma         jsonFloat `json:"g"`
	Vega          jsonFloat `json:"v"`
	IV            jsonFloat `json:"vo"`
	Mark          jsonFloat `json:"mp"`
	HighLimit     jsonFloat `json:"hl"`
	LowLimit      jsonFloat `json:"ll"`
	Exercise      jsonFloat `json:"eep"`
}

func decodeTicker(payload []byte) (domain.Event, error) {
	var m wsTicker
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, fmt.Errorf("decode ticker: %w", err)
	}
	return &domain.TickerEvent{
		EventTime: m.EventTime,
		Ticker: domain.Ticker{
			Symbol:             m.Symbol,
			LastPrice:          m.Close.f64(),
			LastQty:            m.LastQty.f64(),
			Open:               m.Open.f64(),
			High:               m.High.f64(),
			Low:                m.Low.f64(),
			Volume:             m.Volume.f64(),
			Amount:             m.Amount.f64(),
			PriceChange:        m.Change.f64(),
			PriceChangePercent: m.ChangePercent.f64(),
			BidPrice:           m.BidPrice.f64(),
			AskPrice:           m.AskPrice.f64(),
			BidQty:             m.BidQty.f64(),
			AskQty:             m.AskQty.f64(),
			ExercisePrice:      m.Exercise.f64(),
			TradeCount:         int64(m.TradeCount),
			FirstTradeID:       int64(m.FirstTradeID),
			OpenTime:           m.OpenTime,
			CloseTime:          m.EventTime,
			Delta:              m.Delta.f64(),
			Theta:              m.Theta.f64(),
			Gamma:              m.Gamma.f64(),
			Vega:               m.Vega.f64(),
			IV:                 m.IV.f64(),
			BidIV:              m.BidIV.f64(),
			AskIV:              m.AskIV.f64(),
			Mark:               m.Mark.f64(),
			Time:               m.EventTime,
		},
	}, nil
}

type wsDepth struct {
	Type         string        `json:"e"`
	EventTime    int64         `json:"E"`
	TransactTime int64         `json:"T"`
	Symbol       string        `json:"s"`
	FirstUpdate  int64         `json:"U"`
	UpdateID     int64         `json:"u"`
	PrevUpdateID int64         `json:"pu"`
	Bids         [][]jsonFloat `json:"b"`
	Asks         [][]jsonFloat `json:"a"`
}

func decodeDepth(payload []byte) (domain.Event, error) {
	var m wsDepth
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, fmt.Errorf("decode depth: %w", err)
	}
	return &domain.DepthEvent{
		EventTime:    m.EventTime,
		TransactTime: m.TransactTime,
		Symbol:       m.Symbol,
		UpdateID:     m.UpdateID,
		Bids:         levels(m.Bids),
		Asks:         levels(m.Asks),
	}, nil
}

type wsTrade struct {
	Type      string          `json:"e"`
	EventTime int64           `json:"E"`
	Symbol    string          `json:"s"`
	TradeID   json.RawMessage `json:"t"`
	Price     jsonFloat       `json:"p"`
	Qty       jsonFloat       `json:"q"`
	BuyerID   jsonInt         `json:"b"`
	SellerID  jsonInt         `json:"a"`
	TradeTime int64           `json:"T"`
	Side      json.RawMessage `json:"S"`
}

func decodeTrade(payload []byte) (domain.Event, error) {
	var m wsTrade
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, fmt.Errorf("decode trade: %w", err)
	}
	price, qty := m.Price.f64(), m.Qty.f64()
	return &domain.TradeEvent{
		EventTime: m.EventTime,
		Trade: domain.Trade{
			ID:       rawID(m.TradeID),
			Symbol:   m.Symbol,
			Price:    price,
			Qty:      qty,
			QuoteQty: price * qty,
			Side:     tradeSide(m.Side),
			Time:     m.TradeTime,
		},
		BuyerID:  int64(m.BuyerID),
		SellerID: int64(m.SellerID),
	}, nil
}

// tradeSide maps "BUY"/"1" to buy and anything else to sell.
func tradeSide(raw json.RawMessage) int {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if strings.EqualFold(s, "BUY") || s == "1" {
		return domain.TradeSideBuy
	}
	return domain.TradeSideSell
}

func rawID(raw json.RawMessage) string {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "null" {
		return ""
	}
	return s
}

type wsKline struct {
	Type      string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	K         struct {
		OpenTime    int64     `json:"t"`
		CloseTime   int64     `json:"T"`
		Symbol      string    `json:"s"`
		Interval    string    `json:"i"`
		FirstID     jsonInt   `json:"F"`
		LastID      jsonInt   `json:"L"`
		Open        jsonFloat `json:"o"`
		Close       jsonFloat `json:"c"`
		High        jsonFloat `json:"h"`
		Low         jsonFloat `json:"l"`
		Volume      jsonFloat `json:"v"`
		TradeCount  jsonInt   `json:"n"`
		Closed      bool      `json:"x"`
		Amount      jsonFloat `json:"q"`
		TakerVolume jsonFloat `json:"V"`
		TakerAmount jsonFloat `json:"Q"`
	} `json:"k"`
}

func decodeKline(payload []byte) (domain.Event, error) {
	var m wsKline
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, fmt.Errorf("decode kline: %w", err)
	}
	iv := domain.KlineInterval(m.K.Interval)
	if !iv.Valid() {
		return nil, fmt.Errorf("decode kline: unknown interval %q", m.K.Interval)
	}
	symbol := m.Symbol
	if symbol == "" {
		symbol = m.K.Symbol
	}
	return &domain.KlineEvent{
		EventTime: m.EventTime,
		Symbol:    symbol,
		Interval:  iv,
		Candle: domain.Candle{
			OpenTime:    m.K.OpenTime,
			CloseTime:   m.K.CloseTime,
			Open:        m.K.Open.f64(),
			High:        m.K.High.f64(),
			Low:         m.K.Low.f64(),
			Close:       m.K.Close.f64(),
			Volume:      m.K.Volume.f64(),
			Amount:      m.K.Amount.f64(),
			TradeCount:  int64(m.K.TradeCount),
			TakerVolume: m.K.TakerVolume.f64(),
			TakerAmount: m.K.TakerAmount.f64(),
			Closed:      m.K.Closed,
		},
	}, nil
}

type wsIndex struct {
	Type      string    `json:"e"`
	EventTime int64     `json:"E"`
	Symbol    string    `json:"s"`
	Price     jsonFloat `json:"p"`
}

func decodeIndex(payload []byte) (domain.Event, error) {
	var m wsIndex
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, fmt.Errorf("decode index: %w", err)
	}
	return &domain.IndexEvent{
		EventTime: m.EventTime,
		Index: domain.IndexPrice{
			Underlying: strings.ToUpper(m.Symbol),
			Price:      m.Price.f64(),
			Time:       m.EventTime,
		},
	}, nil
}
