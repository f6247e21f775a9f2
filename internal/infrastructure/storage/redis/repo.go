package redis

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"xopt/internal/application/port"
	"xopt/internal/domain"

	"github.com/redis/go-redis/v9"
)

// Repo 在 Redis 中保存最新行情，并把成交写入 stream + pubsub 供下游消费
type Repo struct {
	rdb            *redis.Client
	prefix         string
	ttl            time.Duration
	keyTickers     string // prefix + ":tickers"
	keyInstruments string // prefix + ":instruments"
	keySnapshot    string // prefix + ":snapshot"
	tradeStream    string
	tradeChan      string
}

func New(rdb *redis.Client, prefix string, ttl time.Duration, tradeStream, tradeChan string) *Repo {
	if strings.TrimSpace(tradeStream) == "" {
		tradeStream = prefix + ":trades"
	}
	if strings.TrimSpace(tradeChan) == "" {
		tradeChan = prefix + ":trades:pub"
	}
	return &Repo{
		rdb:            rdb,
		prefix:         prefix,
		ttl:            ttl,
		keyTickers:     prefix + ":tickers",
		keyInstruments: prefix + ":instruments",
		keySnapshot:    prefix + ":snapshot",
		tradeStream:    tradeStream,
		tradeChan:      tradeChan,
	}
}

func (r *Repo) UpsertTicker(ctx context.Context, t domain.Ticker) error {
	b, err := json.Marshal(t)
	if err != nil {
		return err
	}
	// Hash: field = symbol -> json
	pipe := r.rdb.Pipeline()
	pipe.HSet(ctx, r.keyTickers, t.Symbol, string(b))
	if r.ttl > 0 {
		pipe.Expire(ctx, r.keyTickers, r.ttl)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (r *Repo) InsertTrade(ctx context.Context, t domain.Trade) error {
	// 1) Stream: XADD <stream> * ...
	_, err := r.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: r.tradeStream,
		MaxLen: 10000,
		Approx: true,
		Values: map[string]any{
			"id":     t.ID,
			"symbol": t.Symbol,
			"price":  t.Price,
			"qty":    t.Qty,
			"side":   t.Side,
			"ts_ms":  t.Time,
		},
	}).Result()
	if err != nil {
		return err
	}

	// 2) PubSub: PUBLISH <channel> json
	b, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return r.rdb.Publish(ctx, r.tradeChan, b).Err()
}

// UpsertCandle 只保留每个 symbol/interval 的最新一根
func (r *Repo) UpsertCandle(ctx context.Context, symbol string, interval domain.KlineInterval, c domain.Candle) error {
	b, err := json.Marshal(c)
	if err != nil {
		return err
	}
	key := r.prefix + ":candle:" + symbol + ":" + string(interval)
	return r.rdb.Set(ctx, key, b, r.ttl).Err()
}

func (r *Repo) UpsertInstruments(ctx context.Context, insts []domain.Instrument) error {
	if len(insts) == 0 {
		return nil
	}
	values := make([]any, 0, len(insts)*2)
	for _, in := range insts {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		values = append(values, in.Symbol, string(b))
	}
	pipe := r.rdb.Pipeline()
	pipe.HSet(ctx, r.keyInstruments, values...)
	if r.ttl > 0 {
		pipe.Expire(ctx, r.keyInstruments, r.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// InsertSnapshot 覆盖最新快照
func (r *Repo) InsertSnapshot(ctx context.Context, ts int64, payload string) error {
	return r.rdb.HSet(ctx, r.keySnapshot, "ts_ms", ts, "payload", payload).Err()
}

// Close 连接由容器统一关闭
func (r *Repo) Close() error { return nil }

var _ port.Repository = (*Repo)(nil)
