package domain

import "github.com/shopspring/decimal"

// AssetBalance 期权账户资产
type AssetBalance struct {
	Asset         string  `json:"asset"`
	MarginBalance float64 `json:"marginBalance"`
	Equity        float64 `json:"equity"`
	Available     float64 `json:"available"`
	Locked        float64 `json:"locked"`
	UnrealizedPNL float64 `json:"unrealizedPNL"`
}

// Greek 按标的汇总的希腊字母
type Greek struct {
	Underlying string  `json:"underlying"`
	Delta      float64 `json:"delta"`
	Gamma      float64 `json:"gamma"`
	Theta      float64 `json:"theta"`
	Vega       float64 `json:"vega"`
}

type AccountInfo struct {
	Assets []AssetBalance `json:"asset"`
	Greeks []Greek        `json:"greek"`
	Time   int64          `json:"time"`
}

type Position struct {
	Symbol        string  `json:"symbol"`
	Side          string  `json:"side"`
	Quantity      float64 `json:"quantity"`
	ReducibleQty  float64 `json:"reducibleQty"`
	MarkValue     float64 `json:"markValue"`
	Ror           float64 `json:"ror"`
	UnrealizedPNL float64 `json:"unrealizedPNL"`
	MarkPrice     float64 `json:"markPrice"`
	StrikePrice   float64 `json:"strikePrice"`
	PositionCost  float64 `json:"positionCost"`
	ExpiryDate    int64   `json:"expiryDate"`
	OptionSide    string  `json:"optionSide"`
	QuoteAsset    string  `json:"quoteAsset"`
}

type Order struct {
	OrderID       int64   `json:"orderId"`
	ClientOrderID string  `json:"clientOrderId"`
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	Quantity      float64 `json:"quantity"`
	ExecutedQty   float64 `json:"executedQty"`
	AvgPrice      float64 `json:"avgPrice"`
	Fee           float64 `json:"fee"`
	Side          string  `json:"side"`
	Type          string  `json:"type"`
	TimeInForce   string  `json:"timeInForce"`
	ReduceOnly    bool    `json:"reduceOnly"`
	PostOnly      bool    `json:"postOnly"`
	Status        string  `json:"status"`
	CreateTime    int64   `json:"createTime"`
	UpdateTime    int64   `json:"updateTime"`
}

const (
	OrderSideBuy  = "BUY"
	OrderSideSell = "SELL"

	OrderTypeLimit  = "LIMIT"
	OrderTypeMarket = "MARKET"

	TimeInForceGTC = "GTC"
	TimeInForceIOC = "IOC"
	TimeInForceFOK = "FOK"
)

// OrderRequest 下单请求，价格与数量使用 decimal 保留交易所原始精度
type OrderRequest struct {
	Symbol        string          `json:"symbol"`
	Side          string          `json:"side"`
	Type          string          `json:"type"`
	Quantity      decimal.Decimal `json:"quantity"`
	Price         decimal.Decimal `json:"price"`
	TimeInForce   string          `json:"timeInForce,omitempty"`
	ReduceOnly    bool            `json:"reduceOnly,omitempty"`
	PostOnly      bool            `json:"postOnly,omitempty"`
	ClientOrderID string          `json:"clientOrderId,omitempty"`
}

// CancelRequest identifies an order by exchange id or client id.
type CancelRequest struct {
	Symbol        string `json:"symbol"`
	OrderID       int64  `json:"orderId,omitempty"`
	ClientOrderID string `json:"clientOrderId,omitempty"`
}
