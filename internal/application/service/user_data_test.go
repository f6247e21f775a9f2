package service

import (
	"context"
	"errors"
	"testing"

	"xopt/internal/domain"
)

func TestUserDataDisabled(t *testing.T) {
	api := &mockTradingAPI{}
	u := NewUserData(api, domain.NewSnapshot("BTCUSDT", ""), 0, false)

	if u.Configured() {
		t.Error("Configured() = true")
	}
	if err := u.Refresh(context.Background()); !errors.Is(err, ErrTradingDisabled) {
		t.Errorf("Refresh: %v", err)
	}
	if err := u.Run(context.Background()); err != nil {
		t.Errorf("Run should return immediately, got %v", err)
	}
	if api.refreshes != 0 {
		t.Error("account queried without credentials")
	}
}

func TestUserDataRefresh(t *testing.T) {
	api := &mockTradingAPI{
		account:   &domain.AccountInfo{},
		positions: []domain.Position{{Symbol: callSym}},
		orders:    []domain.Order{{OrderID: 7}, {OrderID: 8}},
	}
	snap := domain.NewSnapshot("BTCUSDT", "")
	u := NewUserData(api, snap, 0, true)

	if err := u.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	v := snap.View()
	if v.Account == nil || len(v.Positions) != 1 || len(v.Orders) != 2 {
		t.Errorf("view = %+v", v)
	}

	api.err = errBoom
	if err := u.Refresh(context.Background()); !errors.Is(err, errBoom) {
		t.Errorf("expected errBoom, got %v", err)
	}
	// 失败时保留上一次结果
	if len(snap.View().Orders) != 2 {
		t.Error("orders cleared on failed refresh")
	}
}

func TestUserDataRunStopsOnCancel(t *testing.T) {
	api := &mockTradingAPI{account: &domain.AccountInfo{}}
	u := NewUserData(api, domain.NewSnapshot("BTCUSDT", ""), 0, true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := u.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
