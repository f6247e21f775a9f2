package service

import (
	"context"
	"errors"
	"time"

	"xopt/internal/application/port"
	"xopt/internal/domain"

	"github.com/rs/zerolog/log"
)

// UserData polls account, positions and open orders into the snapshot. Without API
// credentials it does nothing.
type UserData struct {
	api        port.TradingAPI
	snap       *domain.Snapshot
	interval   time.Duration
	configured bool
}

func NewUserData(api port.TradingAPI, snap *domain.Snapshot, interval time.Duration, configured bool) *UserData {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &UserData{api: api, snap: snap, interval: interval, configured: configured}
}

func (s *UserData) Configured() bool { return s.configured }

func (s *UserData) Refresh(ctx context.Context) error {
	if !s.configured {
		return ErrTradingDisabled
	}

	var errs []error
	if acc, err := s.api.Account(ctx); err != nil {
		errs = append(errs, err)
	} else {
		s.snap.SetAccount(acc)
	}
	if ps, err := s.api.Positions(ctx, ""); err != nil {
		errs = append(errs, err)
	} else {
		s.snap.SetPositions(ps)
	}
	if orders, err := s.api.OpenOrders(ctx, ""); err != nil {
		errs = append(errs, err)
	} else {
		s.snap.SetOpenOrders(orders)
	}
	return errors.Join(errs...)
}

func (s *UserData) Run(ctx context.Context) error {
	if !s.configured {
		log.Info().Msg("api credentials not configured, user data polling disabled")
		return nil
	}

	if err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
		log.Warn().Err(err).Msg("user data refresh failed")
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
				log.Warn().Err(err).Msg("user data refresh failed")
			}
		}
	}
}
