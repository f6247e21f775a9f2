package binance

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"xopt/internal/domain"

	"github.com/shopspring/decimal"
)

func newTestServer(t *testing.T, routes map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, ok := routes[r.Method+" "+r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"code":-1,"msg":"no route"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestExchangeInfo(t *testing.T) {
	srv := newTestServer(t, map[string]http.HandlerFunc{
		"GET /eapi/v1/exchangeInfo": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"timezone":"UTC","serverTime":1,"optionSymbols":[
				{"symbol":"BTC-250328-60000-C","underlying":"BTCUSDT","quoteAsset":"USDT","expiryDate":1743148800000,
				 "strikePrice":"60000","side":"CALL","unit":"1","minQty":"0.01","maxQty":"100",
				 "priceScale":0,"quantityScale":2,
				 "filters":[{"filterType":"PRICE_FILTER","tickSize":"5"},{"filterType":"LOT_SIZE","stepSize":"0.01"}]}
			]}`))
		},
	})
	c := NewClients(srv.URL, "", "", time.Second)

	insts, err := c.Market.ExchangeInfo(context.Background())
	if err != nil {
		t.Fatalf("ExchangeInfo: %v", err)
	}
	if len(insts) != 1 {
		t.Fatalf("len = %d, want 1", len(insts))
	}
	got := insts[0]
	if got.Symbol != "BTC-250328-60000-C" || got.Underlying != "BTCUSDT" || got.Side != domain.SideCall {
		t.Errorf("unexpected instrument %+v", got)
	}
	if got.Strike != 60000 || got.TickSize != 5 || got.StepSize != 0.01 || got.QuantityScale != 2 {
		t.Errorf("numeric fields not parsed: %+v", got)
	}
}

func TestTickersParseStringNumbers(t *testing.T) {
	srv := newTestServer(t, map[string]http.HandlerFunc{
		"GET /eapi/v1/ticker": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[{"symbol":"BTC-250328-60000-C","lastPrice":"1200.5","bidPrice":"1190","askPrice":"1210",
				"priceChangePercent":"-0.05","tradeCount":12,"closeTime":1700000000000}]`))
		},
	})
	c := NewClients(srv.URL, "", "", time.Second)

	tickers, err := c.Market.Tickers(context.Background())
	if err != nil {
		t.Fatalf("Tickers: %v", err)
	}
	if len(tickers) != 1 {
		t.Fatalf("len = %d", len(tickers))
	}
	tk := tickers[0]
	if tk.LastPrice != 1200.5 || tk.BidPrice != 1190 || tk.AskPrice != 1210 || tk.PriceChangePercent != -0.05 {
		t.Errorf("unexpected ticker %+v", tk)
	}
	if tk.TradeCount != 12 || tk.Time != 1700000000000 {
		t.Errorf("unexpected counters %+v", tk)
	}
}

func TestOrderBookAndIndex(t *testing.T) {
	srv := newTestServer(t, map[string]http.HandlerFunc{
		"GET /eapi/v1/depth": func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("limit") != "20" {
				t.Errorf("limit = %q", r.URL.Query().Get("limit"))
			}
			w.Write([]byte(`{"T":5,"u":9,"bids":[["100","1.5"],["99","2"]],"asks":[["101","3"]]}`))
		},
		"GET /eapi/v1/index": func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("underlying") != "BTCUSDT" {
				t.Errorf("underlying = %q", r.URL.Query().Get("underlying"))
			}
			w.Write([]byte(`{"indexPrice":"64000.12","time":42}`))
		},
	})
	c := NewClients(srv.URL, "", "", time.Second)

	book, err := c.Market.OrderBook(context.Background(), "BTC-250328-60000-C", 20)
	if err != nil {
		t.Fatalf("OrderBook: %v", err)
	}
	if len(book.Bids) != 2 || len(book.Asks) != 1 || book.Bids[0].Qty != 1.5 || book.UpdateID != 9 {
		t.Errorf("unexpected book %+v", book)
	}

	idx, err := c.Market.IndexPrice(context.Background(), "btcusdt")
	if err != nil {
		t.Fatalf("IndexPrice: %v", err)
	}
	if idx.Underlying != "BTCUSDT" || idx.Price != 64000.12 || idx.Time != 42 {
		t.Errorf("unexpected index %+v", idx)
	}
}

func TestKlinesAcceptRowsAndObjects(t *testing.T) {
	for name, body := range map[string]string{
		"rows":    `[[1000,"1","2","0.5","1.5","10",1999,"15",3,"4","6"]]`,
		"objects": `[{"openTime":1000,"open":"1","high":"2","low":"0.5","close":"1.5","volume":"10","closeTime":1999,"amount":"15","tradeCount":3,"takerVolume":"4","takerAmount":"6"}]`,
	} {
		t.Run(name, func(t *testing.T) {
			srv := newTestServer(t, map[string]http.HandlerFunc{
				"GET /eapi/v1/klines": func(w http.ResponseWriter, r *http.Request) {
					if r.URL.Query().Get("interval") != "15m" {
						t.Errorf("interval = %q", r.URL.Query().Get("interval"))
					}
					w.Write([]byte(body))
				},
			})
			c := NewClients(srv.URL, "", "", time.Second)

			candles, err := c.Market.Klines(context.Background(), "BTC-250328-60000-C", domain.Interval15m, 200)
			if err != nil {
				t.Fatalf("Klines: %v", err)
			}
			if len(candles) != 1 {
				t.Fatalf("len = %d", len(candles))
			}
			k := candles[0]
			if k.OpenTime != 1000 || k.CloseTime != 1999 || k.High != 2 || k.Close != 1.5 || k.TradeCount != 3 || k.TakerAmount != 6 {
				t.Errorf("unexpected candle %+v", k)
			}
		})
	}
}

func TestAPIErrorCarriesMessage(t *testing.T) {
	srv := newTestServer(t, map[string]http.HandlerFunc{
		"GET /eapi/v1/mark": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
		},
		"GET /eapi/v1/ticker": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		},
	})
	c := NewClients(srv.URL, "", "", time.Second)

	_, err := c.Market.MarkPrices(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != -1121 || apiErr.Msg != "Invalid symbol." || apiErr.Status != http.StatusBadRequest {
		t.Errorf("unexpected error %+v", apiErr)
	}

	_, err = c.Market.Tickers(context.Background())
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadGateway {
		t.Fatalf("expected 502 APIError, got %v", err)
	}
	if !strings.Contains(err.Error(), "Bad Gateway") {
		t.Errorf("error text = %q", err.Error())
	}
}

func TestAPIErrorWithoutMessage(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"json without msg", `{}`, "request failed: 500"},
		{"json with code only", `{"code":-1000}`, "request failed: 500"},
		{"plain text", `upstream down`, "Internal Server Error"},
		{"empty", ``, "Internal Server Error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := newAPIError(http.StatusInternalServerError, []byte(tt.body)).Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSignedRequestRequiresCredentials(t *testing.T) {
	c := NewClients("http://127.0.0.1:1", "", "", time.Second)
	if c.Trading.Configured() {
		t.Fatal("Configured() = true without credentials")
	}
	_, err := c.Trading.Account(context.Background())
	if !errors.Is(err, ErrCredentialsMissing) {
		t.Fatalf("err = %v, want ErrCredentialsMissing", err)
	}
}

func TestSignedRequestIsSigned(t *testing.T) {
	creds := NewCredentials("key", "secret")
	srv := newTestServer(t, map[string]http.HandlerFunc{
		"GET /eapi/v1/account": func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("X-MBX-APIKEY") != "key" {
				t.Errorf("api key header = %q", r.Header.Get("X-MBX-APIKEY"))
			}
			raw := r.URL.RawQuery
			i := strings.LastIndex(raw, "&signature=")
			if i < 0 {
				t.Fatalf("missing signature in %q", raw)
			}
			if got, want := raw[i+len("&signature="):], creds.Sign(raw[:i]); got != want {
				t.Errorf("signature = %s, want %s", got, want)
			}
			q := r.URL.Query()
			if q.Get("timestamp") == "" || q.Get("recvWindow") != "5000" {
				t.Errorf("query = %v", q)
			}
			w.Write([]byte(`{"asset":[{"asset":"USDT","marginBalance":"100.5","equity":"101","available":"90","locked":"10","unrealizedPNL":"0.5"}],
				"greek":[{"underlying":"BTCUSDT","delta":"0.1","gamma":"0.01","theta":"-2","vega":"3"}],"time":7}`))
		},
	})
	c := NewClients(srv.URL, "key", "secret", time.Second)

	acc, err := c.Trading.Account(context.Background())
	if err != nil {
		t.Fatalf("Account: %v", err)
	}
	if len(acc.Assets) != 1 || acc.Assets[0].Equity != 101 || acc.Assets[0].Locked != 10 {
		t.Errorf("unexpected assets %+v", acc.Assets)
	}
	if len(acc.Greeks) != 1 || acc.Greeks[0].Theta != -2 || acc.Time != 7 {
		t.Errorf("unexpected greeks %+v", acc.Greeks)
	}
}

func TestPlaceAndCancelOrder(t *testing.T) {
	srv := newTestServer(t, map[string]http.HandlerFunc{
		"POST /eapi/v1/order": func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if q.Get("price") != "1205.5" || q.Get("quantity") != "0.01" || q.Get("timeInForce") != "GTC" {
				t.Errorf("query = %v", q)
			}
			if q.Get("clientOrderId") != "abc" || q.Get("postOnly") != "true" {
				t.Errorf("flags = %v", q)
			}
			w.Write([]byte(`{"orderId":11,"clientOrderId":"abc","symbol":"BTC-250328-60000-C","price":"1205.5","quantity":"0.01",
				"executedQty":"0","side":"BUY","type":"LIMIT","status":"ACCEPTED","createTime":1}`))
		},
		"DELETE /eapi/v1/order": func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("orderId") != "11" {
				t.Errorf("orderId = %q", r.URL.Query().Get("orderId"))
			}
			w.Write([]byte(`{"orderId":11,"symbol":"BTC-250328-60000-C","status":"CANCELLED"}`))
		},
		"DELETE /eapi/v1/allOpenOrders": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"code":0,"msg":"success"}`))
		},
	})
	c := NewClients(srv.URL, "key", "secret", time.Second)
	ctx := context.Background()

	o, err := c.Trading.PlaceOrder(ctx, domain.OrderRequest{
		Symbol:        "BTC-250328-60000-C",
		Side:          domain.OrderSideBuy,
		Type:          domain.OrderTypeLimit,
		Quantity:      decimal.RequireFromString("0.01"),
		Price:         decimal.RequireFromString("1205.50"),
		PostOnly:      true,
		ClientOrderID: "abc",
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if o.OrderID != 11 || o.Price != 1205.5 || o.Status != "ACCEPTED" {
		t.Errorf("unexpected order %+v", o)
	}

	cancelled, err := c.Trading.CancelOrder(ctx, domain.CancelRequest{Symbol: o.Symbol, OrderID: 11})
	if err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if cancelled.Status != "CANCELLED" {
		t.Errorf("status = %s", cancelled.Status)
	}

	if _, err := c.Trading.CancelOrder(ctx, domain.CancelRequest{Symbol: o.Symbol}); err == nil {
		t.Error("cancel without ids should fail")
	}
	if err := c.Trading.CancelAllOrders(ctx, o.Symbol); err != nil {
		t.Errorf("CancelAllOrders: %v", err)
	}
}
