package domain

import (
	"fmt"
	"strings"
)

// StreamType 逻辑行情流类型
type StreamType string

const (
	StreamTicker StreamType = "ticker"
	StreamDepth  StreamType = "depth"
	StreamTrade  StreamType = "trade"
	StreamKline  StreamType = "kline"
	StreamIndex  StreamType = "index"
)

// KlineInterval K 线周期
type KlineInterval string

const (
	Interval1m  KlineInterval = "1m"
	Interval3m  KlineInterval = "3m"
	Interval5m  KlineInterval = "5m"
	Interval15m KlineInterval = "15m"
	Interval30m KlineInterval = "30m"
	Interval1h  KlineInterval = "1h"
	Interval2h  KlineInterval = "2h"
	Interval4h  KlineInterval = "4h"
	Interval6h  KlineInterval = "6h"
	Interval12h KlineInterval = "12h"
	Interval1d  KlineInterval = "1d"
	Interval3d  KlineInterval = "3d"
	Interval1w  KlineInterval = "1w"
	Interval1M  KlineInterval = "1M"
)

// DefaultKlineInterval is used when a kline stream is requested without an interval.
const DefaultKlineInterval = Interval1m

var validIntervals = map[KlineInterval]struct{}{
	Interval1m: {}, Interval3m: {}, Interval5m: {}, Interval15m: {}, Interval30m: {},
	Interval1h: {}, Interval2h: {}, Interval4h: {}, Interval6h: {}, Interval12h: {},
	Interval1d: {}, Interval3d: {}, Interval1w: {}, Interval1M: {},
}

func (i KlineInterval) Valid() bool {
	_, ok := validIntervals[i]
	return ok
}

// ParseStreamType 将字符串解析为 StreamType
func ParseStreamType(s string) (StreamType, error) {
	switch t := StreamType(strings.ToLower(strings.TrimSpace(s))); t {
	case StreamTicker, StreamDepth, StreamTrade, StreamKline, StreamIndex:
		return t, nil
	}
	return "", fmt.Errorf("unknown stream type %q", s)
}

// StreamName resolves a logical stream to the exchange wire name.
// The symbol is lower-cased so "BTC-240628-60000-C" and "btc-240628-60000-c" map to the same key.
// An unknown stream type or kline interval is a programming error and panics.
func StreamName(t StreamType, symbol string, interval KlineInterval) string {
	s := strings.ToLower(strings.TrimSpace(symbol))
	switch t {
	case StreamTicker:
		return s + "@ticker"
	case StreamDepth:
		return s + "@depth@100ms"
	case StreamTrade:
		return s + "@trade"
	case StreamIndex:
		return s + "@index"
	case StreamKline:
		if interval == "" {
			interval = DefaultKlineInterval
		}
		if !interval.Valid() {
			panic(fmt.Sprintf("domain: invalid kline interval %q", interval))
		}
		return s + "@kline_" + string(interval)
	}
	panic(fmt.Sprintf("domain: unknown stream type %q", t))
}
