// Package httpapi exposes the market snapshot, selection commands and the
// credential-holding account/order proxy over HTTP.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"xopt/internal/application/port"
	"xopt/internal/application/service"
	"xopt/internal/domain"
	"xopt/internal/infrastructure/websocket"
)

// MarketService is the market-data surface the API drives.
type MarketService interface {
	Snapshot() *domain.Snapshot
	Chain() []domain.ExpiryGroup
	SelectUnderlying(ctx context.Context, underlying string) error
	SelectExpiry(expiry *time.Time)
	SelectSymbol(ctx context.Context, symbol string) error
	SetChartInterval(ctx context.Context, interval domain.KlineInterval) error
	OpenInterest(ctx context.Context, expiry time.Time) ([]domain.OpenInterest, error)
}

// OrderService validates and routes orders.
type OrderService interface {
	Place(ctx context.Context, in service.PlaceOrderInput) (*domain.Order, error)
	Cancel(ctx context.Context, req domain.CancelRequest) (*domain.Order, error)
	CancelAll(ctx context.Context, symbol string) error
}

// StreamStats reports the market stream connection counters.
type StreamStats interface {
	Stats() websocket.Stats
}

type Config struct {
	Addr         string
	AllowOrigins []string
	Debug        bool
	Configured   bool // API key and secret present
}

type Server struct {
	cfg     Config
	market  MarketService
	orders  OrderService
	trading port.TradingAPI
	stream  StreamStats
	engine  *gin.Engine
}

// stream 可为 nil，此时 /api/status 不带连接计数
func NewServer(cfg Config, market MarketService, orders OrderService, trading port.TradingAPI, stream StreamStats) *Server {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}

	s := &Server{
		cfg:     cfg,
		market:  market,
		orders:  orders,
		trading: trading,
		stream:  stream,
		engine:  gin.New(),
	}

	s.engine.Use(gin.Recovery(), requestLogger())
	s.engine.Use(cors.New(corsConfig(cfg.AllowOrigins)))

	s.setupRoutes()
	return s
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			c.AllowAllOrigins = true
			return c
		}
	}
	if len(origins) == 0 {
		c.AllowAllOrigins = true
		return c
	}
	c.AllowOrigins = origins
	return c
}

func (s *Server) setupRoutes() {
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.engine.Group("/api")
	api.GET("/status", s.getStatus)

	market := api.Group("/market")
	market.GET("/snapshot", s.getSnapshot)
	market.GET("/chain", s.getChain)
	market.GET("/underlyings", s.getUnderlyings)
	market.GET("/open-interest", s.getOpenInterest)
	market.POST("/underlying", s.selectUnderlying)
	market.POST("/expiry", s.selectExpiry)
	market.POST("/symbol", s.selectSymbol)
	market.POST("/interval", s.setInterval)

	// 账户与下单代理，凭证只在服务端
	api.GET("/account", s.getAccount)
	api.GET("/positions", s.getPositions)
	api.GET("/orders", s.getOpenOrders)
	api.POST("/order", s.placeOrder)
	api.DELETE("/order", s.cancelOrder)
	api.DELETE("/orders", s.cancelAllOrders)
}

func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.cfg.Addr).Msg("http api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info().Msg("http api stopped")
	return nil
}

// requestLogger 用 zerolog 记录请求
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		ev := log.Debug()
		if c.Writer.Status() >= http.StatusInternalServerError {
			ev = log.Warn()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("http request")
	}
}
