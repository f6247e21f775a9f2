package binance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"xopt/internal/application/port"
	"xopt/internal/domain"

	"github.com/rs/zerolog/log"
)

// MarketClient 公共行情 REST 客户端
type MarketClient struct {
	api *APIClient
}

func NewMarketClient(api *APIClient) *MarketClient {
	return &MarketClient{api: api}
}

type optionSymbolResp struct {
	Symbol        string    `json:"symbol"`
	Underlying    string    `json:"underlying"`
	QuoteAsset    string    `json:"quoteAsset"`
	ExpiryDate    int64     `json:"expiryDate"`
	StrikePrice   jsonFloat `json:"strikePrice"`
	Side          string    `json:"side"`
	Unit          jsonFloat `json:"unit"`
	MinQty        jsonFloat `json:"minQty"`
	MaxQty        jsonFloat `json:"maxQty"`
	PriceScale    int       `json:"priceScale"`
	QuantityScale int       `json:"quantityScale"`
	Filters       []struct {
		FilterType string    `json:"filterType"`
		TickSize   jsonFloat `json:"tickSize"`
		StepSize   jsonFloat `json:"stepSize"`
	} `json:"filters"`
}

type exchangeInfoResp struct {
	Timezone      string             `json:"timezone"`
	ServerTime    int64              `json:"serverTime"`
	OptionSymbols []optionSymbolResp `json:"optionSymbols"`
}

// ExchangeInfo 拉取期权合约列表。无法解析的合约名会被跳过并记录日志。
func (c *MarketClient) ExchangeInfo(ctx context.Context) ([]domain.Instrument, error) {
	var resp exchangeInfoResp
	if err := c.api.publicRequest(ctx, "/eapi/v1/exchangeInfo", nil, &resp); err != nil {
		return nil, fmt.Errorf("exchangeInfo: %w", err)
	}

	out := make([]domain.Instrument, 0, len(resp.OptionSymbols))
	for _, s := range resp.OptionSymbols {
		inst := domain.Instrument{
			Symbol:          s.Symbol,
			Underlying:      s.Underlying,
			QuoteAsset:      s.QuoteAsset,
			ExpiryTimestamp: s.ExpiryDate,
			Strike:          s.StrikePrice.f64(),
			Side:            domain.OptionSide(strings.ToUpper(s.Side)),
			Unit:            s.Unit.f64(),
			MinQty:          s.MinQty.f64(),
			MaxQty:          s.MaxQty.f64(),
			PriceScale:      s.PriceScale,
			QuantityScale:   s.QuantityScale,
		}
		for _, f := range s.Filters {
			switch f.FilterType {
			case "PRICE_FILTER":
				inst.TickSize = f.TickSize.f64()
			case "LOT_SIZE":
				inst.StepSize = f.StepSize.f64()
			}
		}
		out = append(out, inst)
	}
	log.Debug().Int("symbols", len(out)).Msg("exchangeInfo loaded")
	return out, nil
}

type tickerResp struct {
	Symbol             string    `json:"symbol"`
	PriceChange        jsonFloat `json:"priceChange"`
	PriceChangePercent jsonFloat `json:"priceChangePercent"`
	LastPrice          jsonFloat `json:"lastPrice"`
	LastQty            jsonFloat `json:"lastQty"`
	Open               jsonFloat `json:"open"`
	High               jsonFloat `json:"high"`
	Low                jsonFloat `json:"low"`
	Volume             jsonFloat `json:"volume"`
	Amount             jsonFloat `json:"amount"`
	BidPrice           jsonFloat `json:"bidPrice"`
	AskPrice           jsonFloat `json:"askPrice"`
	OpenTime           int64     `json:"openTime"`
	CloseTime          int64     `json:"closeTime"`
	FirstTradeID       int64     `json:"firstTradeId"`
	TradeCount         int64     `json:"tradeCount"`
	ExercisePrice      jsonFloat `json:"exercisePrice"`
}

func (c *MarketClient) Tickers(ctx context.Context) ([]domain.Ticker, error) {
	var resp []tickerResp
	if err := c.api.publicRequest(ctx, "/eapi/v1/ticker", nil, &resp); err != nil {
		return nil, fmt.Errorf("ticker: %w", err)
	}
	out := make([]domain.Ticker, 0, len(resp))
	for _, t := range resp {
		out = append(out, domain.Ticker{
			Symbol:             t.Symbol,
			LastPrice:          t.LastPrice.f64(),
			LastQty:            t.LastQty.f64(),
			Open:               t.Open.f64(),
			High:               t.High.f64(),
			Low:                t.Low.f64(),
			Volume:             t.Volume.f64(),
			Amount:             t.Amount.f64(),
			PriceChange:        t.PriceChange.f64(),
			PriceChangePercent: t.PriceChangePercent.f64(),
			BidPrice:           t.BidPrice.f64(),
			AskPrice:           t.AskPrice.f64(),
			ExercisePrice:      t.ExercisePrice.f64(),
			TradeCount:         t.TradeCount,
			FirstTradeID:       t.FirstTradeID,
			OpenTime:           t.OpenTime,
			CloseTime:          t.CloseTime,
			Time:               t.CloseTime,
		})
	}
	return out, nil
}

type markResp struct {
	Symbol         string    `json:"symbol"`
	MarkPrice      jsonFloat `json:"markPrice"`
	BidIV          jsonFloat `json:"bidIV"`
	AskIV          jsonFloat `json:"askIV"`
	MarkIV         jsonFloat `json:"markIV"`
	Delta          jsonFloat `json:"delta"`
	Theta          jsonFloat `json:"theta"`
	Gamma          jsonFloat `json:"gamma"`
	Vega           jsonFloat `json:"vega"`
	HighPriceLimit jsonFloat `json:"highPriceLimit"`
	LowPriceLimit  jsonFloat `json:"lowPriceLimit"`
}

func (c *MarketClient) MarkPrices(ctx context.Context) ([]domain.MarkPrice, error) {
	var resp []markResp
	if err := c.api.publicRequest(ctx, "/eapi/v1/mark", nil, &resp); err != nil {
		return nil, fmt.Errorf("mark: %w", err)
	}
	out := make([]domain.MarkPrice, 0, len(resp))
	for _, m := range resp {
		out = append(out, domain.MarkPrice{
			Symbol:         m.Symbol,
			MarkPrice:      m.MarkPrice.f64(),
			BidIV:          m.BidIV.f64(),
			AskIV:          m.AskIV.f64(),
			MarkIV:         m.MarkIV.f64(),
			Delta:          m.Delta.f64(),
			Theta:          m.Theta.f64(),
			Gamma:          m.Gamma.f64(),
			Vega:           m.Vega.f64(),
			HighPriceLimit: m.HighPriceLimit.f64(),
			LowPriceLimit:  m.LowPriceLimit.f64(),
		})
	}
	return out, nil
}

func (c *MarketClient) IndexPrice(ctx context.Context, underlying string) (domain.IndexPrice, error) {
	var resp struct {
		IndexPrice jsonFloat `json:"indexPrice"`
		Time       int64     `json:"time"`
	}
	underlying = strings.ToUpper(strings.TrimSpace(underlying))
	params := url.Values{"underlying": {underlying}}
	if err := c.api.publicRequest(ctx, "/eapi/v1/index", params, &resp); err != nil {
		return domain.IndexPrice{}, fmt.Errorf("index %s: %w", underlying, err)
	}
	return domain.IndexPrice{Underlying: underlying, Price: resp.IndexPrice.f64(), Time: resp.Time}, nil
}

func (c *MarketClient) OrderBook(ctx context.Context, symbol string, limit int) (domain.OrderBook, error) {
	var resp struct {
		TransactionTime int64         `json:"T"`
		UpdateID        int64         `json:"u"`
		Bids            [][]jsonFloat `json:"bids"`
		Asks            [][]jsonFloat `json:"asks"`
	}
	params := url.Values{"symbol": {symbol}}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	if err := c.api.publicRequest(ctx, "/eapi/v1/depth", params, &resp); err != nil {
		return domain.OrderBook{}, fmt.Errorf("depth %s: %w", symbol, err)
	}
	return domain.OrderBook{
		Symbol:   symbol,
		Bids:     levels(resp.Bids),
		Asks:     levels(resp.Asks),
		UpdateID: resp.UpdateID,
		Time:     resp.TransactionTime,
	}, nil
}

type klineObj struct {
	OpenTime    int64     `json:"openTime"`
	CloseTime   int64     `json:"closeTime"`
	Open        jsonFloat `json:"open"`
	High        jsonFloat `json:"high"`
	Low         jsonFloat `json:"low"`
	Close       jsonFloat `json:"close"`
	Volume      jsonFloat `json:"volume"`
	Amount      jsonFloat `json:"amount"`
	TradeCount  int64     `json:"tradeCount"`
	TakerVolume jsonFloat `json:"takerVolume"`
	TakerAmount jsonFloat `json:"takerAmount"`
}

// Klines 拉取历史 K 线。交易所可能返回对象数组或数组行，两种都接受。
func (c *MarketClient) Klines(ctx context.Context, symbol string, interval domain.KlineInterval, limit int) ([]domain.Candle, error) {
	if interval == "" {
		interval = domain.DefaultKlineInterval
	}
	params := url.Values{"symbol": {symbol}, "interval": {string(interval)}}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	var rows []json.RawMessage
	if err := c.api.publicRequest(ctx, "/eapi/v1/klines", params, &rows); err != nil {
		return nil, fmt.Errorf("klines %s %s: %w", symbol, interval, err)
	}

	out := make([]domain.Candle, 0, len(rows))
	for _, row := range rows {
		k, err := parseKlineRow(row)
		if err != nil {
			return nil, fmt.Errorf("klines %s: %w", symbol, err)
		}
		out = append(out, domain.Candle{
			OpenTime:    k.OpenTime,
			CloseTime:   k.CloseTime,
			Open:        k.Open.f64(),
			High:        k.High.f64(),
			Low:         k.Low.f64(),
			Close:       k.Close.f64(),
			Volume:      k.Volume.f64(),
			Amount:      k.Amount.f64(),
			TradeCount:  k.TradeCount,
			TakerVolume: k.TakerVolume.f64(),
			TakerAmount: k.TakerAmount.f64(),
			Closed:      true,
		})
	}
	return out, nil
}

// parseKlineRow 行格式: [openTime, open, high, low, close, volume, closeTime, amount, tradeCount, takerVolume, takerAmount]
func parseKlineRow(raw json.RawMessage) (klineObj, error) {
	var k klineObj
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		err := json.Unmarshal(raw, &k)
		return k, err
	}
	var cols []json.RawMessage
	if err := json.Unmarshal(raw, &cols); err != nil {
		return k, err
	}
	if len(cols) < 7 {
		return k, fmt.Errorf("kline row has %d columns", len(cols))
	}
	var openTime, closeTime, tradeCount jsonInt
	targets := []json.Unmarshaler{
		&openTime, &k.Open, &k.High, &k.Low, &k.Close, &k.Volume,
		&closeTime, &k.Amount, &tradeCount, &k.TakerVolume, &k.TakerAmount,
	}
	for i, col := range cols {
		if i >= len(targets) {
			break
		}
		if err := targets[i].UnmarshalJSON(col); err != nil {
			return k, fmt.Errorf("kline column %d: %w", i, err)
		}
	}
	k.OpenTime = int64(openTime)
	k.CloseTime = int64(closeTime)
	k.TradeCount = int64(tradeCount)
	return k, nil
}

func (c *MarketClient) RecentTrades(ctx context.Context, symbol string, limit int) ([]domain.Trade, error) {
	var resp []struct {
		ID       jsonInt   `json:"id"`
		TradeID  jsonInt   `json:"tradeId"`
		Symbol   string    `json:"symbol"`
		Price    jsonFloat `json:"price"`
		Qty      jsonFloat `json:"qty"`
		QuoteQty jsonFloat `json:"quoteQty"`
		Side     int       `json:"side"`
		Time     int64     `json:"time"`
	}
	params := url.Values{"symbol": {symbol}}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	if err := c.api.publicRequest(ctx, "/eapi/v1/trades", params, &resp); err != nil {
		return nil, fmt.Errorf("trades %s: %w", symbol, err)
	}
	out := make([]domain.Trade, 0, len(resp))
	for _, t := range resp {
		id := t.TradeID
		if id == 0 {
			id = t.ID
		}
		sym := t.Symbol
		if sym == "" {
			sym = symbol
		}
		out = append(out, domain.Trade{
			ID:       strconv.FormatInt(int64(id), 10),
			Symbol:   sym,
			Price:    t.Price.f64(),
			Qty:      t.Qty.f64(),
			QuoteQty: t.QuoteQty.f64(),
			Side:     t.Side,
			Time:     t.Time,
		})
	}
	return out, nil
}

// OpenInterest expiration 格式为 YYMMDD，例如 250328
func (c *MarketClient) OpenInterest(ctx context.Context, underlyingAsset, expiration string) ([]domain.OpenInterest, error) {
	var resp []struct {
		Symbol             string    `json:"symbol"`
		SumOpenInterest    jsonFloat `json:"sumOpenInterest"`
		SumOpenInterestUsd jsonFloat `json:"sumOpenInterestUsd"`
		Timestamp          jsonInt   `json:"timestamp"`
	}
	params := url.Values{
		"underlyingAsset": {strings.ToUpper(underlyingAsset)},
		"expiration":      {expiration},
	}
	if err := c.api.publicRequest(ctx, "/eapi/v1/openInterest", params, &resp); err != nil {
		return nil, fmt.Errorf("openInterest %s %s: %w", underlyingAsset, expiration, err)
	}
	out := make([]domain.OpenInterest, 0, len(resp))
	for _, oi := range resp {
		out = append(out, domain.OpenInterest{
			Symbol:             oi.Symbol,
			SumOpenInterest:    oi.SumOpenInterest.f64(),
			SumOpenInterestUsd: oi.SumOpenInterestUsd.f64(),
			Time:               int64(oi.Timestamp),
		})
	}
	return out, nil
}

func levels(raw [][]jsonFloat) []domain.PriceLevel {
	out := make([]domain.PriceLevel, 0, len(raw))
	for _, lv := range raw {
		if len(lv) < 2 {
			continue
		}
		out = append(out, domain.PriceLevel{Price: lv[0].f64(), Qty: lv[1].f64()})
	}
	return out
}

var _ port.MarketDataAPI = (*MarketClient)(nil)
