package domain

import "testing"

func TestStreamName(t *testing.T) {
	cases := []struct {
		typ      StreamType
		symbol   string
		interval KlineInterval
		want     string
	}{
		{StreamTicker, "BTC-240628-60000-C", "", "btc-240628-60000-c@ticker"},
		{StreamDepth, "BTC-240628-60000-C", "", "btc-240628-60000-c@depth@100ms"},
		{StreamTrade, "ETH-240628-3000-P", "", "eth-240628-3000-p@trade"},
		{StreamKline, "BTC-240628-60000-C", "", "btc-240628-60000-c@kline_1m"},
		{StreamKline, "BTC-240628-60000-C", Interval15m, "btc-240628-60000-c@kline_15m"},
		{StreamIndex, "BTCUSDT", "", "btcusdt@index"},
	}
	for _, c := range cases {
		if got := StreamName(c.typ, c.symbol, c.interval); got != c.want {
			t.Errorf("StreamName(%s, %s, %s) = %s, want %s", c.typ, c.symbol, c.interval, got, c.want)
		}
	}
}

func TestStreamNameCaseInsensitive(t *testing.T) {
	for _, typ := range []StreamType{StreamTicker, StreamDepth, StreamTrade, StreamKline, StreamIndex} {
		a := StreamName(typ, "BTC-240628-60000-C", "")
		b := StreamName(typ, "btc-240628-60000-c", "")
		if a != b {
			t.Errorf("%s: %s != %s", typ, a, b)
		}
	}
}

func TestStreamNameUnknownTypePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for unknown stream type")
		}
	}()
	StreamName(StreamType("bookTicker"), "BTC-240628-60000-C", "")
}

func TestStreamNameInvalidIntervalPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for invalid interval")
		}
	}()
	StreamName(StreamKline, "BTC-240628-60000-C", KlineInterval("7m"))
}

func TestParseStreamType(t *testing.T) {
	if typ, err := ParseStreamType(" Kline "); err != nil || typ != StreamKline {
		t.Errorf("got %v %v", typ, err)
	}
	if _, err := ParseStreamType("bookTicker"); err == nil {
		t.Error("expected error")
	}
}
