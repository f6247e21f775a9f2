package service

import (
	"context"
	"errors"
	"testing"

	"xopt/internal/domain"
)

func newTestOrders(configured bool) (*Orders, *mockTradingAPI, *domain.Snapshot) {
	api := &mockTradingAPI{account: &domain.AccountInfo{}}
	snap := domain.NewSnapshot("BTCUSDT", domain.Interval15m)
	snap.SetCatalog(testCatalog())
	user := NewUserData(api, snap, 0, configured)
	o := NewOrders(api, snap, user, configured)
	o.newID = func() string { return "fixed-id" }
	return o, api, snap
}

func TestOrdersValidate(t *testing.T) {
	o, _, _ := newTestOrders(true)

	tests := []struct {
		name    string
		in      PlaceOrderInput
		wantErr error
		check   func(t *testing.T, req domain.OrderRequest)
	}{
		{
			name: "limit defaults",
			in:   PlaceOrderInput{Symbol: "btc-250328-60000-c", Side: "buy", Type: "limit", Quantity: "0.5", Price: "1205"},
			check: func(t *testing.T, req domain.OrderRequest) {
				if req.Symbol != callSym || req.Side != domain.OrderSideBuy || req.Type != domain.OrderTypeLimit {
					t.Errorf("not normalized: %+v", req)
				}
				if req.TimeInForce != domain.TimeInForceGTC {
					t.Errorf("timeInForce = %q", req.TimeInForce)
				}
				if req.ClientOrderID != "fixed-id" {
					t.Errorf("clientOrderId = %q", req.ClientOrderID)
				}
				if req.Price.String() != "1205" || req.Quantity.String() != "0.5" {
					t.Errorf("price/qty = %s/%s", req.Price, req.Quantity)
				}
			},
		},
		{
			name: "market clears timeInForce",
			in:   PlaceOrderInput{Symbol: callSym, Side: "SELL", Type: "MARKET", Quantity: "1", TimeInForce: "IOC", ClientOrderID: "mine"},
			check: func(t *testing.T, req domain.OrderRequest) {
				if req.TimeInForce != "" {
					t.Errorf("timeInForce = %q", req.TimeInForce)
				}
				if req.ClientOrderID != "mine" {
					t.Errorf("clientOrderId overwritten: %q", req.ClientOrderID)
				}
			},
		},
		{name: "missing symbol", in: PlaceOrderInput{Side: "BUY", Type: "LIMIT", Quantity: "1", Price: "5"}, wantErr: ErrInvalidOrder},
		{name: "bad side", in: PlaceOrderInput{Symbol: callSym, Side: "HOLD", Type: "LIMIT", Quantity: "1", Price: "5"}, wantErr: ErrInvalidOrder},
		{name: "bad type", in: PlaceOrderInput{Symbol: callSym, Side: "BUY", Type: "STOP", Quantity: "1", Price: "5"}, wantErr: ErrInvalidOrder},
		{name: "zero quantity", in: PlaceOrderInput{Symbol: callSym, Side: "BUY", Type: "MARKET", Quantity: "0"}, wantErr: ErrInvalidOrder},
		{name: "garbage quantity", in: PlaceOrderInput{Symbol: callSym, Side: "BUY", Type: "MARKET", Quantity: "abc"}, wantErr: ErrInvalidOrder},
		{name: "limit without price", in: PlaceOrderInput{Symbol: callSym, Side: "BUY", Type: "LIMIT", Quantity: "1"}, wantErr: ErrInvalidOrder},
		{name: "bad timeInForce", in: PlaceOrderInput{Symbol: callSym, Side: "BUY", Type: "LIMIT", Quantity: "1", Price: "5", TimeInForce: "DAY"}, wantErr: ErrInvalidOrder},
		{name: "market postOnly", in: PlaceOrderInput{Symbol: callSym, Side: "BUY", Type: "MARKET", Quantity: "1", PostOnly: true}, wantErr: ErrInvalidOrder},
		{name: "unknown symbol", in: PlaceOrderInput{Symbol: "BTC-991231-1-C", Side: "BUY", Type: "MARKET", Quantity: "1"}, wantErr: ErrUnknownSymbol},
		{name: "below min qty", in: PlaceOrderInput{Symbol: callSym, Side: "BUY", Type: "MARKET", Quantity: "0.001"}, wantErr: ErrInvalidOrder},
		{name: "above max qty", in: PlaceOrderInput{Symbol: callSym, Side: "BUY", Type: "MARKET", Quantity: "101"}, wantErr: ErrInvalidOrder},
		{name: "off step", in: PlaceOrderInput{Symbol: callSym, Side: "BUY", Type: "MARKET", Quantity: "0.015"}, wantErr: ErrInvalidOrder},
		{name: "off tick", in: PlaceOrderInput{Symbol: callSym, Side: "BUY", Type: "LIMIT", Quantity: "1", Price: "1201"}, wantErr: ErrInvalidOrder},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := o.Validate(tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.check != nil {
				tt.check(t, req)
			}
		})
	}
}

func TestOrdersValidateWithoutCatalog(t *testing.T) {
	snap := domain.NewSnapshot("BTCUSDT", "")
	o := NewOrders(&mockTradingAPI{}, snap, nil, true)

	req, err := o.Validate(PlaceOrderInput{Symbol: "ANY-1", Side: "BUY", Type: "MARKET", Quantity: "0.0001"})
	if err != nil {
		t.Fatalf("filters should be skipped without a catalog: %v", err)
	}
	if len(req.ClientOrderID) != 32 {
		t.Errorf("generated clientOrderId = %q", req.ClientOrderID)
	}
}

func TestOrdersPlace(t *testing.T) {
	o, api, snap := newTestOrders(true)
	api.orders = []domain.Order{{OrderID: 1, Symbol: callSym}}

	order, err := o.Place(context.Background(), PlaceOrderInput{
		Symbol: callSym, Side: "BUY", Type: "LIMIT", Quantity: "1", Price: "1200",
	})
	if err != nil {
		t.Fatalf("Place failed: %v", err)
	}
	if order.ClientOrderID != "fixed-id" {
		t.Errorf("order = %+v", order)
	}
	if len(api.placed) != 1 || api.placed[0].TimeInForce != domain.TimeInForceGTC {
		t.Errorf("placed = %+v", api.placed)
	}
	if api.refreshes != 1 {
		t.Errorf("user data refreshed %d times, want 1", api.refreshes)
	}
	if len(snap.View().Orders) != 1 {
		t.Error("open orders not refreshed into snapshot")
	}
}

func TestOrdersPlaceRejected(t *testing.T) {
	o, api, _ := newTestOrders(true)

	if _, err := o.Place(context.Background(), PlaceOrderInput{Symbol: callSym, Side: "BUY", Type: "LIMIT", Quantity: "1"}); !errors.Is(err, ErrInvalidOrder) {
		t.Fatalf("expected ErrInvalidOrder, got %v", err)
	}
	if len(api.placed) != 0 {
		t.Error("invalid order reached the exchange")
	}

	api.err = errBoom
	if _, err := o.Place(context.Background(), PlaceOrderInput{Symbol: callSym, Side: "BUY", Type: "MARKET", Quantity: "1"}); !errors.Is(err, errBoom) {
		t.Fatalf("expected errBoom, got %v", err)
	}
	if api.refreshes != 0 {
		t.Error("failed order must not trigger a refresh")
	}
}

func TestOrdersTradingDisabled(t *testing.T) {
	o, api, _ := newTestOrders(false)
	ctx := context.Background()

	if _, err := o.Place(ctx, PlaceOrderInput{Symbol: callSym, Side: "BUY", Type: "MARKET", Quantity: "1"}); !errors.Is(err, ErrTradingDisabled) {
		t.Errorf("Place: %v", err)
	}
	if _, err := o.Cancel(ctx, domain.CancelRequest{Symbol: callSym, OrderID: 1}); !errors.Is(err, ErrTradingDisabled) {
		t.Errorf("Cancel: %v", err)
	}
	if err := o.CancelAll(ctx, callSym); !errors.Is(err, ErrTradingDisabled) {
		t.Errorf("CancelAll: %v", err)
	}
	if len(api.placed)+len(api.cancelled)+len(api.cancelAll) != 0 {
		t.Error("exchange called while trading disabled")
	}
}

func TestOrdersCancel(t *testing.T) {
	o, api, _ := newTestOrders(true)
	ctx := context.Background()

	if _, err := o.Cancel(ctx, domain.CancelRequest{OrderID: 1}); !errors.Is(err, ErrInvalidOrder) {
		t.Errorf("missing symbol: %v", err)
	}
	if _, err := o.Cancel(ctx, domain.CancelRequest{Symbol: callSym}); !errors.Is(err, ErrInvalidOrder) {
		t.Errorf("missing id: %v", err)
	}

	order, err := o.Cancel(ctx, domain.CancelRequest{Symbol: "btc-250328-60000-c", OrderID: 42})
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if order.OrderID != 42 || api.cancelled[0].Symbol != callSym {
		t.Errorf("cancelled = %+v", api.cancelled)
	}

	if err := o.CancelAll(ctx, ""); !errors.Is(err, ErrInvalidOrder) {
		t.Errorf("CancelAll empty symbol: %v", err)
	}
	if err := o.CancelAll(ctx, "btc-250328-60000-c"); err != nil {
		t.Fatalf("CancelAll failed: %v", err)
	}
	if len(api.cancelAll) != 1 || api.cancelAll[0] != callSym {
		t.Errorf("cancelAll = %v", api.cancelAll)
	}
	if api.refreshes != 2 {
		t.Errorf("refreshes = %d, want 2", api.refreshes)
	}
}
