package svc

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"xopt/internal/application/port"
	"xopt/internal/application/service"
	"xopt/internal/application/usecase/dashboard"
	"xopt/internal/domain"
	"xopt/internal/infrastructure/config"
	"xopt/internal/infrastructure/container"
	"xopt/internal/infrastructure/exchange/binance"
	"xopt/internal/infrastructure/websocket"
	"xopt/internal/interfaces/console"
	"xopt/internal/interfaces/httpapi"
)

type ServiceContext struct {
	Ctx    context.Context
	Config *config.Config

	// 基础设施层（第一层初始化）
	container *container.Container
	clients   *binance.Clients
	stream    *websocket.Manager

	// 输出端口
	Sink port.Sink

	// 应用业务组件（依赖基础设施）
	snapshot   *domain.Snapshot
	recorder   *service.Recorder
	marketData *service.MarketData
	userData   *service.UserData
	orders     *service.Orders
	status     *service.StatusReporter
	httpServer *httpapi.Server

	// 资源管理
	closerChain []func() error
}

// New 创建并初始化 ServiceContext
// 这是应用启动的唯一入口点，所有依赖初始化都在这里完成
func New(ctx context.Context, cfg *config.Config) (*ServiceContext, error) {
	sc := &ServiceContext{
		Ctx:         ctx,
		Config:      cfg,
		Sink:        console.NewSink(),
		closerChain: make([]func() error, 0),
	}

	if err := sc.initializeComponents(); err != nil {
		// 清理已初始化的资源
		_ = sc.Close()
		return nil, err
	}
	return sc, nil
}

// initializeComponents 按依赖顺序初始化
func (sc *ServiceContext) initializeComponents() error {
	cfg := sc.Config

	// 0. 存储层
	c, err := container.New(cfg)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageInitFailed, err)
	}
	sc.container = c
	sc.closerChain = append(sc.closerChain, c.Close)

	// 1. 交易所 REST 与行情流
	sc.clients = binance.NewClients(cfg.Exchange.RestURL, cfg.Exchange.APIKey, cfg.Exchange.APISecret, cfg.RequestTimeout())
	sc.stream = websocket.New(
		websocket.Config{
			URL:               cfg.Exchange.WsURL,
			HeartbeatInterval: time.Duration(cfg.Stream.HeartbeatSeconds) * time.Second,
			Retry: websocket.RetryConfig{
				MaxRetries: cfg.Stream.MaxRetries,
				InitialDel: time.Duration(cfg.Stream.InitialDelayMs) * time.Millisecond,
				MaxDelay:   time.Duration(cfg.Stream.MaxDelaySeconds) * time.Second,
			},
			AutoConnect: cfg.Stream.AutoConnect,
		},
		binance.NewEventDecoder(),
		websocket.WithDialer(websocket.NewDialer(
			cfg.RequestTimeout(),
			cfg.RequestTimeout(),
			time.Duration(cfg.Stream.ReadTimeoutSeconds)*time.Second,
		)),
	)
	sc.closerChain = append(sc.closerChain, func() error {
		log.Info().Msg("closing market stream")
		return sc.stream.Close()
	})

	// 2. 状态与持久化
	sc.snapshot = domain.NewSnapshot(cfg.Market.Underlying, cfg.Interval())
	if repo := c.Repository(); repo != nil {
		sc.recorder = service.NewRecorder(
			repo,
			sc.snapshot,
			cfg.Storage.BufferSize,
			time.Duration(cfg.App.SnapshotEverySec)*time.Second,
		)
	}

	// 3. 业务服务
	sc.marketData = service.NewMarketData(
		service.MarketDataConfig{
			Underlying:   cfg.Market.Underlying,
			Interval:     cfg.Interval(),
			DepthLimit:   cfg.Market.DepthLimit,
			KlineLimit:   cfg.Market.KlineLimit,
			TradeLimit:   cfg.Market.TradeLimit,
			PollInterval: time.Duration(cfg.Market.PollSeconds) * time.Second,
		},
		sc.clients.Market,
		sc.stream,
		sc.snapshot,
		sc.recorder,
	)
	sc.closerChain = append(sc.closerChain, func() error {
		sc.marketData.Close()
		return nil
	})

	configured := cfg.Credentialed()
	sc.userData = service.NewUserData(
		sc.clients.Trading,
		sc.snapshot,
		time.Duration(cfg.Market.UserPollSeconds)*time.Second,
		configured,
	)
	sc.orders = service.NewOrders(sc.clients.Trading, sc.snapshot, sc.userData, configured)

	if cfg.App.StatusEverySec > 0 {
		sc.status = service.NewStatusReporter(
			sc.snapshot,
			sc.Sink,
			time.Second,
			time.Duration(cfg.App.StatusEverySec)*time.Second,
		)
	}

	if cfg.HTTP.Enabled {
		sc.httpServer = httpapi.NewServer(
			httpapi.Config{
				Addr:         cfg.HTTP.Addr,
				AllowOrigins: cfg.HTTP.AllowOrigins,
				Debug:        cfg.HTTP.Debug,
				Configured:   configured,
			},
			sc.marketData,
			sc.orders,
			sc.clients.Trading,
			sc.stream,
		)
	}

	log.Info().
		Str("underlying", cfg.Market.Underlying).
		Str("interval", cfg.Market.Interval).
		Bool("api_configured", configured).
		Bool("storage", sc.recorder != nil).
		Bool("http", sc.httpServer != nil).
		Msg("✓ All components initialized")

	return nil
}

// BuildDashboardDeps 构建 dashboard 用例所需依赖；未启用的组件保持 nil 接口
func (sc *ServiceContext) BuildDashboardDeps() dashboard.ServiceDeps {
	deps := dashboard.ServiceDeps{
		Market:   sc.marketData,
		UserData: sc.userData,
	}
	if sc.recorder != nil {
		deps.Recorder = sc.recorder
	}
	if sc.status != nil {
		deps.Status = sc.status
	}
	if sc.httpServer != nil {
		deps.HTTP = sc.httpServer
	}
	return deps
}

func (sc *ServiceContext) Snapshot() *domain.Snapshot {
	return sc.snapshot
}

func (sc *ServiceContext) MarketData() *service.MarketData {
	return sc.marketData
}

func (sc *ServiceContext) Orders() *service.Orders {
	return sc.orders
}

// Close 按照相反的顺序关闭所有资源
func (sc *ServiceContext) Close() error {
	var first error
	for i := len(sc.closerChain) - 1; i >= 0; i-- {
		if err := sc.closerChain[i](); err != nil {
			log.Error().Err(err).Msg("error closing resource")
			if first == nil {
				first = err
			}
		}
	}
	sc.closerChain = nil
	return first
}
