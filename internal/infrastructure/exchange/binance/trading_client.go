package binance

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"xopt/internal/application/port"
	"xopt/internal/domain"

	"github.com/rs/zerolog/log"
)

// TradingClient 期权账户、持仓与订单 (signed) 客户端
type TradingClient struct {
	*APIClient
}

func NewTradingClient(client *APIClient) *TradingClient {
	return &TradingClient{APIClient: client}
}

// Configured reports whether signed endpoints can be called.
func (c *TradingClient) Configured() bool {
	return c.credentials.Configured()
}

type accountResp struct {
	Asset []struct {
		Asset         string    `json:"asset"`
		MarginBalance jsonFloat `json:"marginBalance"`
		Equity        jsonFloat `json:"equity"`
		Available     jsonFloat `json:"available"`
		Locked        jsonFloat `json:"locked"`
		UnrealizedPNL jsonFloat `json:"unrealizedPNL"`
	} `json:"asset"`
	Greek []struct {
		Underlying string    `json:"underlying"`
		Delta      jsonFloat `json:"delta"`
		Gamma      jsonFloat `json:"gamma"`
		Theta      jsonFloat `json:"theta"`
		Vega       jsonFloat `json:"vega"`
	} `json:"greek"`
	Time int64 `json:"time"`
}

// Account 查询期权账户资产与希腊字母汇总
func (c *TradingClient) Account(ctx context.Context) (*domain.AccountInfo, error) {
	var resp accountResp
	if err := c.signedRequest(ctx, http.MethodGet, "/eapi/v1/account", nil, &resp); err != nil {
		return nil, fmt.Errorf("account: %w", err)
	}
	info := &domain.AccountInfo{
		Assets: make([]domain.AssetBalance, 0, len(resp.Asset)),
		Greeks: make([]domain.Greek, 0, len(resp.Greek)),
		Time:   resp.Time,
	}
	for _, a := range resp.Asset {
		info.Assets = append(info.Assets, domain.AssetBalance{
			Asset:         a.Asset,
			MarginBalance: a.MarginBalance.f64(),
			Equity:        a.Equity.f64(),
			Available:     a.Available.f64(),
			Locked:        a.Locked.f64(),
			UnrealizedPNL: a.UnrealizedPNL.f64(),
		})
	}
	for _, g := range resp.Greek {
		info.Greeks = append(info.Greeks, domain.Greek{
			Underlying: g.Underlying,
			Delta:      g.Delta.f64(),
			Gamma:      g.Gamma.f64(),
			Theta:      g.Theta.f64(),
			Vega:       g.Vega.f64(),
		})
	}
	return info, nil
}

type positionResp struct {
	Symbol        string    `json:"symbol"`
	Side          string    `json:"side"`
	Quantity      jsonFloat `json:"quantity"`
	ReducibleQty  jsonFloat `json:"reducibleQty"`
	MarkValue     jsonFloat `json:"markValue"`
	Ror           jsonFloat `json:"ror"`
	UnrealizedPNL jsonFloat `json:"unrealizedPNL"`
	MarkPrice     jsonFloat `json:"markPrice"`
	StrikePrice   jsonFloat `json:"strikePrice"`
	PositionCost  jsonFloat `json:"positionCost"`
	ExpiryDate    int64     `json:"expiryDate"`
	OptionSide    string    `json:"optionSide"`
	QuoteAsset    string    `json:"quoteAsset"`
}

// Positions 查询持仓，symbol 为空时返回全部
func (c *TradingClient) Positions(ctx context.Context, symbol string) ([]domain.Position, error) {
	params := url.Values{}
	if symbol != "" {
		params.Set("symbol", symbol)
	}
	var resp []positionResp
	if err := c.signedRequest(ctx, http.MethodGet, "/eapi/v1/position", params, &resp); err != nil {
		return nil, fmt.Errorf("position: %w", err)
	}
	out := make([]domain.Position, 0, len(resp))
	for _, p := range resp {
		out = append(out, domain.Position{
			Symbol:        p.Symbol,
			Side:          p.Side,
			Quantity:      p.Quantity.f64(),
			ReducibleQty:  p.ReducibleQty.f64(),
			MarkValue:     p.MarkValue.f64(),
			Ror:           p.Ror.f64(),
			UnrealizedPNL: p.UnrealizedPNL.f64(),
			MarkPrice:     p.MarkPrice.f64(),
			StrikePrice:   p.StrikePrice.f64(),
			PositionCost:  p.PositionCost.f64(),
			ExpiryDate:    p.ExpiryDate,
			OptionSide:    p.OptionSide,
			QuoteAsset:    p.QuoteAsset,
		})
	}
	return out, nil
}

// OrderResponse 订单返回，数值字段为字符串
type OrderResponse struct {
	OrderID       int64     `json:"orderId"`
	ClientOrderID string    `json:"clientOrderId"`
	Symbol        string    `json:"symbol"`
	Price         jsonFloat `json:"price"`
	Quantity      jsonFloat `json:"quantity"`
	ExecutedQty   jsonFloat `json:"executedQty"`
	AvgPrice      jsonFloat `json:"avgPrice"`
	Fee           jsonFloat `json:"fee"`
	Side          string    `json:"side"`
	Type          string    `json:"type"`
	TimeInForce   string    `json:"timeInForce"`
	ReduceOnly    bool      `json:"reduceOnly"`
	PostOnly      bool      `json:"postOnly"`
	Status        string    `json:"status"`
	CreateTime    int64     `json:"createTime"`
	UpdateTime    int64     `json:"updateTime"`
}

func (r OrderResponse) toDomain() domain.Order {
	return domain.Order{
		OrderID:       r.OrderID,
		ClientOrderID: r.ClientOrderID,
		Symbol:        r.Symbol,
		Price:         r.Price.f64(),
		Quantity:      r.Quantity.f64(),
		ExecutedQty:   r.ExecutedQty.f64(),
		AvgPrice:      r.AvgPrice.f64(),
		Fee:           r.Fee.f64(),
		Side:          r.Side,
		Type:          r.Type,
		TimeInForce:   r.TimeInForce,
		ReduceOnly:    r.ReduceOnly,
		PostOnly:      r.PostOnly,
		Status:        r.Status,
		CreateTime:    r.CreateTime,
		UpdateTime:    r.UpdateTime,
	}
}

// OpenOrders 查询当前挂单
func (c *TradingClient) OpenOrders(ctx context.Context, symbol string) ([]domain.Order, error) {
	params := url.Values{}
	if symbol != "" {
		params.Set("symbol", symbol)
	}
	var resp []OrderResponse
	if err := c.signedRequest(ctx, http.MethodGet, "/eapi/v1/openOrders", params, &resp); err != nil {
		return nil, fmt.Errorf("openOrders: %w", err)
	}
	out := make([]domain.Order, 0, len(resp))
	for _, o := range resp {
		out = append(out, o.toDomain())
	}
	return out, nil
}

// PlaceOrder 下单。价格与数量以 decimal 字符串原样提交。
func (c *TradingClient) PlaceOrder(ctx context.Context, req domain.OrderRequest) (*domain.Order, error) {
	params := url.Values{}
	params.Set("symbol", req.Symbol)
	params.Set("side", strings.ToUpper(req.Side))
	params.Set("type", strings.ToUpper(req.Type))
	params.Set("quantity", req.Quantity.String())
	if strings.EqualFold(req.Type, domain.OrderTypeLimit) {
		params.Set("price", req.Price.String())
		tif := req.TimeInForce
		if tif == "" {
			tif = domain.TimeInForceGTC
		}
		params.Set("timeInForce", tif)
	}
	if req.ReduceOnly {
		params.Set("reduceOnly", "true")
	}
	if req.PostOnly {
		params.Set("postOnly", "true")
	}
	if req.ClientOrderID != "" {
		params.Set("clientOrderId", req.ClientOrderID)
	}

	var resp OrderResponse
	if err := c.signedRequest(ctx, http.MethodPost, "/eapi/v1/order", params, &resp); err != nil {
		return nil, fmt.Errorf("place order failed: %w", err)
	}

	log.Info().
		Str("exchange", "BINANCE").
		Str("symbol", req.Symbol).
		Str("side", req.Side).
		Str("quantity", req.Quantity.String()).
		Str("price", req.Price.String()).
		Int64("orderID", resp.OrderID).
		Str("status", resp.Status).
		Msg("order placed")

	o := resp.toDomain()
	return &o, nil
}

// CancelOrder 撤销订单，orderId 优先于 clientOrderId
func (c *TradingClient) CancelOrder(ctx context.Context, req domain.CancelRequest) (*domain.Order, error) {
	params := url.Values{}
	params.Set("symbol", req.Symbol)
	switch {
	case req.OrderID != 0:
		params.Set("orderId", strconv.FormatInt(req.OrderID, 10))
	case req.ClientOrderID != "":
		params.Set("clientOrderId", req.ClientOrderID)
	default:
		return nil, fmt.Errorf("cancel order: orderId or clientOrderId is required")
	}

	var resp OrderResponse
	if err := c.signedRequest(ctx, http.MethodDelete, "/eapi/v1/order", params, &resp); err != nil {
		return nil, fmt.Errorf("cancel order failed: %w", err)
	}

	log.Info().
		Str("exchange", "BINANCE").
		Str("symbol", req.Symbol).
		Int64("orderId", resp.OrderID).
		Str("status", resp.Status).
		Msg("order cancelled")

	o := resp.toDomain()
	return &o, nil
}

// CancelAllOrders 撤销某合约的全部挂单
func (c *TradingClient) CancelAllOrders(ctx context.Context, symbol string) error {
	params := url.Values{"symbol": {symbol}}
	if err := c.signedRequest(ctx, http.MethodDelete, "/eapi/v1/allOpenOrders", params, nil); err != nil {
		return fmt.Errorf("cancel all orders failed: %w", err)
	}
	log.Info().Str("exchange", "BINANCE").Str("symbol", symbol).Msg("all open orders cancelled")
	return nil
}

var _ port.TradingAPI = (*TradingClient)(nil)
