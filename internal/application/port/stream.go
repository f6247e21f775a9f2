package port

import (
	"context"

	"xopt/internal/domain"
)

// EventHandler receives decoded pushes of one logical stream, in wire order.
type EventHandler func(domain.Event)

// Subscription 订阅句柄，Unsubscribe 可重复调用
type Subscription interface {
	Unsubscribe()
}

// MarketStream multiplexes logical stream subscriptions over one physical connection.
type MarketStream interface {
	Connect(ctx context.Context) error
	IsConnected() bool
	SetConnectionObserver(fn func(connected bool))

	Subscribe(t domain.StreamType, symbol string, h EventHandler, interval ...domain.KlineInterval) Subscription
	SubscribeMultipleTickers(symbols []string, h EventHandler) Subscription
}
