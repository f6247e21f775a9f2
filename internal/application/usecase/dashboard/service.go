package dashboard

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Runner is a long-lived loop that stops when its context is done.
type Runner interface {
	Run(ctx context.Context) error
}

// Initializer loads state the loops depend on.
type Initializer interface {
	Init(ctx context.Context) error
}

type MarketRunner interface {
	Initializer
	Runner
}

type ServiceDeps struct {
	Market   MarketRunner
	UserData Runner
	Recorder Runner // nil when storage is disabled
	Status   Runner // nil disables the console line
	HTTP     Runner // nil when the http api is disabled
}

// Service runs the market sync, pollers, recorder, status line and http api as one group:
// the first loop to fail cancels the others.
type Service struct {
	deps ServiceDeps
}

func NewService(deps ServiceDeps) *Service {
	return &Service{deps: deps}
}

func (s *Service) Run(ctx context.Context) error {
	if s.deps.Market == nil {
		return errors.New("market service missing")
	}

	// 目录加载失败不退出，错误已写入 snapshot，轮询会继续补齐行情
	if err := s.deps.Market.Init(ctx); err != nil {
		log.Error().Err(err).Msg("market init failed")
	}

	g, gctx := errgroup.WithContext(ctx)
	start := func(name string, r Runner) {
		if r == nil {
			return
		}
		g.Go(func() error {
			log.Info().Str("loop", name).Msg("started")
			// 组被取消后的返回值视为正常退出
			if err := r.Run(gctx); err != nil && gctx.Err() == nil {
				log.Error().Err(err).Str("loop", name).Msg("stopped with error")
				return err
			}
			log.Info().Str("loop", name).Msg("stopped")
			return nil
		})
	}

	start("market", s.deps.Market)
	start("userdata", s.deps.UserData)
	start("recorder", s.deps.Recorder)
	start("status", s.deps.Status)
	start("http", s.deps.HTTP)

	return g.Wait()
}
