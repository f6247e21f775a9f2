package port

import (
	"context"

	"xopt/internal/domain"
)

// MarketDataAPI 公共行情 REST 接口
type MarketDataAPI interface {
	ExchangeInfo(ctx context.Context) ([]domain.Instrument, error)
	Tickers(ctx context.Context) ([]domain.Ticker, error)
	MarkPrices(ctx context.Context) ([]domain.MarkPrice, error)
	IndexPrice(ctx context.Context, underlying string) (domain.IndexPrice, error)
	OrderBook(ctx context.Context, symbol string, limit int) (domain.OrderBook, error)
	Klines(ctx context.Context, symbol string, interval domain.KlineInterval, limit int) ([]domain.Candle, error)
	RecentTrades(ctx context.Context, symbol string, limit int) ([]domain.Trade, error)
	OpenInterest(ctx context.Context, underlyingAsset, expiration string) ([]domain.OpenInterest, error)
}

// TradingAPI is the signed account and order surface.
type TradingAPI interface {
	Account(ctx context.Context) (*domain.AccountInfo, error)
	Positions(ctx context.Context, symbol string) ([]domain.Position, error)
	OpenOrders(ctx context.Context, symbol string) ([]domain.Order, error)
	PlaceOrder(ctx context.Context, req domain.OrderRequest) (*domain.Order, error)
	CancelOrder(ctx context.Context, req domain.CancelRequest) (*domain.Order, error)
	CancelAllOrders(ctx context.Context, symbol string) error
}
