package service

import (
	"context"
	"fmt"
	"strings"

	"xopt/internal/application/port"
	"xopt/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// PlaceOrderInput is an order as submitted by a client; numbers stay strings until
// validated so no precision is lost.
type PlaceOrderInput struct {
	Symbol        string `json:"symbol"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	Quantity      string `json:"quantity"`
	Price         string `json:"price,omitempty"`
	TimeInForce   string `json:"timeInForce,omitempty"`
	ReduceOnly    bool   `json:"reduceOnly,omitempty"`
	PostOnly      bool   `json:"postOnly,omitempty"`
	ClientOrderID string `json:"clientOrderId,omitempty"`
}

// Orders validates and routes order requests to the exchange.
type Orders struct {
	api        port.TradingAPI
	snap       *domain.Snapshot
	user       *UserData
	configured bool
	newID      func() string
}

func NewOrders(api port.TradingAPI, snap *domain.Snapshot, user *UserData, configured bool) *Orders {
	return &Orders{
		api:        api,
		snap:       snap,
		user:       user,
		configured: configured,
		newID:      func() string { return strings.ReplaceAll(uuid.NewString(), "-", "") },
	}
}

// Validate turns input into an exchange request. Quantity and price are checked against
// the contract's lot and tick size when the contract is in the catalog.
func (o *Orders) Validate(in PlaceOrderInput) (domain.OrderRequest, error) {
	req := domain.OrderRequest{
		Symbol:        strings.ToUpper(strings.TrimSpace(in.Symbol)),
		Side:          strings.ToUpper(strings.TrimSpace(in.Side)),
		Type:          strings.ToUpper(strings.TrimSpace(in.Type)),
		TimeInForce:   strings.ToUpper(strings.TrimSpace(in.TimeInForce)),
		ReduceOnly:    in.ReduceOnly,
		PostOnly:      in.PostOnly,
		ClientOrderID: strings.TrimSpace(in.ClientOrderID),
	}

	if req.Symbol == "" {
		return req, fmt.Errorf("%w: symbol is required", ErrInvalidOrder)
	}
	if req.Side != domain.OrderSideBuy && req.Side != domain.OrderSideSell {
		return req, fmt.Errorf("%w: side must be BUY or SELL", ErrInvalidOrder)
	}
	if req.Type != domain.OrderTypeLimit && req.Type != domain.OrderTypeMarket {
		return req, fmt.Errorf("%w: type must be LIMIT or MARKET", ErrInvalidOrder)
	}

	qty, err := decimal.NewFromString(strings.TrimSpace(in.Quantity))
	if err != nil || !qty.IsPositive() {
		return req, fmt.Errorf("%w: quantity must be a positive number", ErrInvalidOrder)
	}
	req.Quantity = qty

	if req.Type == domain.OrderTypeLimit {
		price, err := decimal.NewFromString(strings.TrimSpace(in.Price))
		if err != nil || !price.IsPositive() {
			return req, fmt.Errorf("%w: price must be a positive number for LIMIT orders", ErrInvalidOrder)
		}
		req.Price = price
		switch req.TimeInForce {
		case "":
			req.TimeInForce = domain.TimeInForceGTC
		case domain.TimeInForceGTC, domain.TimeInForceIOC, domain.TimeInForceFOK:
		default:
			return req, fmt.Errorf("%w: unsupported timeInForce %s", ErrInvalidOrder, req.TimeInForce)
		}
	} else {
		req.TimeInForce = ""
		if req.PostOnly {
			return req, fmt.Errorf("%w: postOnly requires a LIMIT order", ErrInvalidOrder)
		}
	}

	if cat := o.snap.Catalog(); cat.Len() > 0 {
		inst, ok := cat.Lookup(req.Symbol)
		if !ok {
			return req, fmt.Errorf("%w: %s", ErrUnknownSymbol, req.Symbol)
		}
		req.Symbol = inst.Symbol
		if err := checkFilters(req, inst); err != nil {
			return req, err
		}
	}

	if req.ClientOrderID == "" {
		req.ClientOrderID = o.newID()
	}
	return req, nil
}

func checkFilters(req domain.OrderRequest, inst domain.Instrument) error {
	if inst.MinQty > 0 && req.Quantity.LessThan(decimal.NewFromFloat(inst.MinQty)) {
		return fmt.Errorf("%w: quantity below minimum %v", ErrInvalidOrder, inst.MinQty)
	}
	if inst.MaxQty > 0 && req.Quantity.GreaterThan(decimal.NewFromFloat(inst.MaxQty)) {
		return fmt.Errorf("%w: quantity above maximum %v", ErrInvalidOrder, inst.MaxQty)
	}
	if inst.StepSize > 0 && !req.Quantity.Mod(decimal.NewFromFloat(inst.StepSize)).IsZero() {
		return fmt.Errorf("%w: quantity must be a multiple of %v", ErrInvalidOrder, inst.StepSize)
	}
	if req.Type == domain.OrderTypeLimit && inst.TickSize > 0 &&
		!req.Price.Mod(decimal.NewFromFloat(inst.TickSize)).IsZero() {
		return fmt.Errorf("%w: price must be a multiple of %v", ErrInvalidOrder, inst.TickSize)
	}
	return nil
}

func (o *Orders) Place(ctx context.Context, in PlaceOrderInput) (*domain.Order, error) {
	if !o.configured {
		return nil, ErrTradingDisabled
	}
	req, err := o.Validate(in)
	if err != nil {
		return nil, err
	}
	order, err := o.api.PlaceOrder(ctx, req)
	if err != nil {
		return nil, err
	}
	o.refresh(ctx)
	return order, nil
}

func (o *Orders) Cancel(ctx context.Context, req domain.CancelRequest) (*domain.Order, error) {
	if !o.configured {
		return nil, ErrTradingDisabled
	}
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	if req.Symbol == "" {
		return nil, fmt.Errorf("%w: symbol is required", ErrInvalidOrder)
	}
	if req.OrderID == 0 && strings.TrimSpace(req.ClientOrderID) == "" {
		return nil, fmt.Errorf("%w: orderId or clientOrderId is required", ErrInvalidOrder)
	}
	order, err := o.api.CancelOrder(ctx, req)
	if err != nil {
		return nil, err
	}
	o.refresh(ctx)
	return order, nil
}

func (o *Orders) CancelAll(ctx context.Context, symbol string) error {
	if !o.configured {
		return ErrTradingDisabled
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return fmt.Errorf("%w: symbol is required", ErrInvalidOrder)
	}
	if err := o.api.CancelAllOrders(ctx, symbol); err != nil {
		return err
	}
	o.refresh(ctx)
	return nil
}

// refresh pulls open orders and positions right after a change instead of waiting
// for the next poll.
func (o *Orders) refresh(ctx context.Context) {
	if o.user == nil {
		return
	}
	if err := o.user.Refresh(ctx); err != nil {
		log.Warn().Err(err).Msg("post-order refresh failed")
	}
}
