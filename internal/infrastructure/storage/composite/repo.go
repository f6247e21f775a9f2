package composite

import (
	"context"

	"xopt/internal/application/port"
	"xopt/internal/domain"
)

// Repo fans every write out to all backends and returns the first error.
type Repo struct {
	repos []port.Repository
}

func New(repos ...port.Repository) *Repo {
	// nil repos are allowed; filter in constructor for safety
	out := make([]port.Repository, 0, len(repos))
	for _, r := range repos {
		if r != nil {
			out = append(out, r)
		}
	}
	return &Repo{repos: out}
}

func (r *Repo) Len() int { return len(r.repos) }

func (r *Repo) each(fn func(port.Repository) error) error {
	var firstErr error
	for _, repo := range r.repos {
		if err := fn(repo); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Repo) UpsertTicker(ctx context.Context, t domain.Ticker) error {
	return r.each(func(repo port.Repository) error { return repo.UpsertTicker(ctx, t) })
}

func (r *Repo) InsertTrade(ctx context.Context, t domain.Trade) error {
	return r.each(func(repo port.Repository) error { return repo.InsertTrade(ctx, t) })
}

func (r *Repo) UpsertCandle(ctx context.Context, symbol string, interval domain.KlineInterval, c domain.Candle) error {
	return r.each(func(repo port.Repository) error { return repo.UpsertCandle(ctx, symbol, interval, c) })
}

func (r *Repo) UpsertInstruments(ctx context.Context, insts []domain.Instrument) error {
	return r.each(func(repo port.Repository) error { return repo.UpsertInstruments(ctx, insts) })
}

func (r *Repo) InsertSnapshot(ctx context.Context, ts int64, payload string) error {
	return r.each(func(repo port.Repository) error { return repo.InsertSnapshot(ctx, ts, payload) })
}

// Close 关闭全部后端
func (r *Repo) Close() error {
	return r.each(func(repo port.Repository) error { return repo.Close() })
}

var _ port.Repository = (*Repo)(nil)
