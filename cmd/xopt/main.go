package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"xopt/internal/application/usecase/dashboard"
	"xopt/internal/infrastructure/config"
	"xopt/internal/infrastructure/logger"
	"xopt/internal/infrastructure/svc"

	"github.com/rs/zerolog/log"
)

func main() {
	logger.Setup("info")

	configPath := flag.String("config", "configs/config.toml", "path to config.toml")
	flag.Parse()

	// API key 可以放在 .env.local / .env 里，不进配置文件
	if loaded, err := config.LoadDotEnv(".env.local", ".env"); err != nil {
		log.Warn().Err(err).Msg("load env file failed")
	} else if len(loaded) > 0 {
		log.Debug().Strs("files", loaded).Msg("env files loaded")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("config", *configPath).Msg("load config failed")
	}
	logger.Setup(cfg.App.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sc, err := svc.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("init service context failed")
	}
	defer func() {
		if err := sc.Close(); err != nil {
			log.Error().Err(err).Msg("close service context")
		}
	}()

	log.Info().
		Str("config", *configPath).
		Str("underlying", cfg.Market.Underlying).
		Str("ws", cfg.Exchange.WsURL).
		Bool("http", cfg.HTTP.Enabled).
		Msg("xopt started")

	if err := dashboard.NewService(sc.BuildDashboardDeps()).Run(ctx); err != nil {
		log.Error().Err(err).Msg("dashboard service exited")
	}
}
