package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"xopt/internal/domain"
)

const (
	EnvAPIKey    = "BINANCE_API_KEY"
	EnvAPISecret = "BINANCE_API_SECRET"
)

type Config struct {
	App struct {
		LogLevel         string `toml:"log_level"`
		StatusEverySec   int    `toml:"status_every_sec"`
		SnapshotEverySec int    `toml:"snapshot_every_sec"`
	} `toml:"app"`

	Exchange struct {
		RestURL        string `toml:"rest_url"`   // e.g. https://eapi.binance.com
		WsURL          string `toml:"ws_url"`     // e.g. wss://nbstream.binance.com/eoptions/ws
		APIKey         string `toml:"api_key"`    // BINANCE_API_KEY 优先
		APISecret      string `toml:"api_secret"` // BINANCE_API_SECRET 优先
		TimeoutSeconds int    `toml:"timeout_seconds"`
	} `toml:"exchange"`

	Stream struct {
		HeartbeatSeconds   int  `toml:"heartbeat_seconds"`
		MaxRetries         int  `toml:"max_retries"`
		InitialDelayMs     int  `toml:"initial_delay_ms"`
		MaxDelaySeconds    int  `toml:"max_delay_seconds"`
		ReadTimeoutSeconds int  `toml:"read_timeout_seconds"`
		AutoConnect        bool `toml:"auto_connect"`
	} `toml:"stream"`

	Market struct {
		Underlying      string `toml:"underlying"`
		Interval        string `toml:"interval"`
		DepthLimit      int    `toml:"depth_limit"`
		KlineLimit      int    `toml:"kline_limit"`
		TradeLimit      int    `toml:"trade_limit"`
		PollSeconds     int    `toml:"poll_seconds"`
		UserPollSeconds int    `toml:"user_poll_seconds"`
	} `toml:"market"`

	HTTP struct {
		Enabled      bool     `toml:"enabled"`
		Addr         string   `toml:"addr"`
		AllowOrigins []string `toml:"allow_origins"` // 空或包含 "*" 时允许所有来源
		Debug        bool     `toml:"debug"`
	} `toml:"http"`

	Storage struct {
		Enabled    bool `toml:"enabled"`
		BufferSize int  `toml:"buffer_size"`

		Redis struct {
			Enabled      bool   `toml:"enabled"`
			Addr         string `toml:"addr"`
			Password     string `toml:"password"`
			DB           int    `toml:"db"`
			Prefix       string `toml:"prefix"`
			TTLSeconds   int    `toml:"ttl_seconds"`
			TradeStream  string `toml:"trade_stream"`
			TradeChannel string `toml:"trade_channel"`
		} `toml:"redis"`

		SQLite struct {
			Enabled bool   `toml:"enabled"`
			Path    string `toml:"path"`
		} `toml:"sqlite"`

		Postgres struct {
			Enabled bool   `toml:"enabled"`
			DSN     string `toml:"dsn"`
		} `toml:"postgres"`
	} `toml:"storage"`
}

func Load(path string) (*Config, error) {
	var cfg Config
	// 这几项的零值有含义，先填默认值，文件里显式写出才覆盖：
	// auto_connect = false 关闭自动连接，status_every_sec = 0 关闭状态行，max_retries = 0 不重连
	cfg.Stream.AutoConnect = true
	cfg.App.StatusEverySec = 30
	cfg.Stream.MaxRetries = 10
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvAPIKey)); v != "" {
		cfg.Exchange.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvAPISecret)); v != "" {
		cfg.Exchange.APISecret = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = "info"
	}
	if cfg.App.SnapshotEverySec <= 0 {
		cfg.App.SnapshotEverySec = 60
	}

	if cfg.Exchange.RestURL == "" {
		cfg.Exchange.RestURL = "https://eapi.binance.com"
	}
	if cfg.Exchange.WsURL == "" {
		cfg.Exchange.WsURL = "wss://nbstream.binance.com/eoptions/ws"
	}
	if cfg.Exchange.TimeoutSeconds <= 0 {
		cfg.Exchange.TimeoutSeconds = 10
	}

	if cfg.Stream.HeartbeatSeconds <= 0 {
		cfg.Stream.HeartbeatSeconds = 120
	}
	if cfg.Stream.InitialDelayMs <= 0 {
		cfg.Stream.InitialDelayMs = 1000
	}

	if cfg.Market.Underlying == "" {
		cfg.Market.Underlying = "BTCUSDT"
	}
	if cfg.Market.Interval == "" {
		cfg.Market.Interval = string(domain.Interval15m)
	}
	if cfg.Market.DepthLimit <= 0 {
		cfg.Market.DepthLimit = 20
	}
	if cfg.Market.KlineLimit <= 0 {
		cfg.Market.KlineLimit = 200
	}
	if cfg.Market.TradeLimit <= 0 {
		cfg.Market.TradeLimit = 50
	}
	if cfg.Market.PollSeconds <= 0 {
		cfg.Market.PollSeconds = 30
	}
	if cfg.Market.UserPollSeconds <= 0 {
		cfg.Market.UserPollSeconds = 10
	}

	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}

	if cfg.Storage.BufferSize <= 0 {
		cfg.Storage.BufferSize = 1024
	}
	if cfg.Storage.Redis.Prefix == "" {
		cfg.Storage.Redis.Prefix = "xopt"
	}
	if cfg.Storage.SQLite.Path == "" {
		cfg.Storage.SQLite.Path = "data/xopt.db"
	}
}

func validate(cfg *Config) error {
	cfg.Market.Underlying = strings.ToUpper(strings.TrimSpace(cfg.Market.Underlying))

	if !domain.KlineInterval(cfg.Market.Interval).Valid() {
		return fmt.Errorf("market.interval %q is not a supported kline interval", cfg.Market.Interval)
	}
	if !strings.HasPrefix(cfg.Exchange.WsURL, "ws://") && !strings.HasPrefix(cfg.Exchange.WsURL, "wss://") {
		return errors.New("exchange.ws_url must start with ws:// or wss://")
	}
	if cfg.App.StatusEverySec < 0 {
		return errors.New("app.status_every_sec must be >= 0")
	}
	if cfg.Stream.MaxRetries < 0 {
		return errors.New("stream.max_retries must be >= 0")
	}
	if (cfg.Exchange.APIKey == "") != (cfg.Exchange.APISecret == "") {
		return errors.New("exchange.api_key and exchange.api_secret must be set together")
	}

	if cfg.Storage.Redis.Enabled && strings.TrimSpace(cfg.Storage.Redis.Addr) == "" {
		return errors.New("storage.redis.addr empty but enabled")
	}
	if cfg.Storage.Postgres.Enabled && strings.TrimSpace(cfg.Storage.Postgres.DSN) == "" {
		return errors.New("storage.postgres.dsn empty but enabled")
	}
	return nil
}

// Credentialed reports whether signed endpoints are usable.
func (c *Config) Credentialed() bool {
	return c.Exchange.APIKey != "" && c.Exchange.APISecret != ""
}

func (c *Config) Interval() domain.KlineInterval {
	return domain.KlineInterval(c.Market.Interval)
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Exchange.TimeoutSeconds) * time.Second
}
