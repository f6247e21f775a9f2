package dashboard

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type fakeLoop struct {
	initErr error
	runErr  error
	inits   atomic.Int32
	runs    atomic.Int32
}

func (f *fakeLoop) Init(ctx context.Context) error {
	f.inits.Add(1)
	return f.initErr
}

func (f *fakeLoop) Run(ctx context.Context) error {
	f.runs.Add(1)
	if f.runErr != nil {
		return f.runErr
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestServiceRunsAllLoops(t *testing.T) {
	market, user, status := &fakeLoop{}, &fakeLoop{}, &fakeLoop{}
	svc := NewService(ServiceDeps{Market: market, UserData: user, Status: status})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := svc.Run(ctx); err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if market.inits.Load() != 1 {
		t.Errorf("market init = %d", market.inits.Load())
	}
	for name, l := range map[string]*fakeLoop{"market": market, "user": user, "status": status} {
		if l.runs.Load() != 1 {
			t.Errorf("%s runs = %d", name, l.runs.Load())
		}
	}
}

func TestServiceInitFailureKeepsRunning(t *testing.T) {
	market := &fakeLoop{initErr: errors.New("exchangeInfo 503")}
	svc := NewService(ServiceDeps{Market: market})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := svc.Run(ctx); err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if market.runs.Load() != 1 {
		t.Error("market loop should start even when init fails")
	}
}

func TestServiceLoopFailureStopsGroup(t *testing.T) {
	boom := errors.New("listen tcp: address already in use")
	market, httpLoop := &fakeLoop{}, &fakeLoop{runErr: boom}
	svc := NewService(ServiceDeps{Market: market, HTTP: httpLoop})

	done := make(chan error, 1)
	go func() { done <- svc.Run(context.Background()) }()

	select {
	case err := <-done:
		if !errors.Is(err, boom) {
			t.Fatalf("expected %v, got %v", boom, err)
		}
	case <-time.After(time.Second):
		t.Fatal("group did not stop after a loop failed")
	}
}

func TestServiceRequiresMarket(t *testing.T) {
	if err := NewService(ServiceDeps{}).Run(context.Background()); err == nil {
		t.Fatal("expected error without market service")
	}
}
