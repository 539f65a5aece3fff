package exchange

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/kirillm/momentum-bot/internal/domain"
)

const testSecret = "test-secret"

func newTestClient(t *testing.T, handler http.HandlerFunc) *CoinsClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewCoinsClient("test-key", testSecret, server.URL)
}

// verifySignedQuery проверяет, что подпись запроса пересчитывается
// по канонизированным параметрам без самой подписи
func verifySignedQuery(t *testing.T, params url.Values) {
	t.Helper()
	if params.Get("timestamp") == "" {
		t.Error("signed request must include timestamp")
	}
	if params.Get("recvWindow") != "5000" {
		t.Errorf("recvWindow = %q, want 5000", params.Get("recvWindow"))
	}
	got := params.Get("signature")
	if got == "" {
		t.Fatal("signed request must include signature")
	}
	if want := SignQuery(testSecret, params); got != want {
		t.Errorf("signature = %s, want %s", got, want)
	}
}

func TestGetPrice(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/openapi/quote/v1/ticker/price" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("X-COINS-APIKEY") != "test-key" {
			t.Error("missing API key header")
		}
		if r.URL.Query().Get("signature") != "" {
			t.Error("public call must not be signed")
		}
		fmt.Fprint(w, `{"symbol":"SOLPHP","price":"8123.45"}`)
	})

	price, err := client.GetPrice(context.Background(), "SOLPHP")
	if err != nil {
		t.Fatalf("GetPrice() error = %v", err)
	}
	if price != 8123.45 {
		t.Errorf("GetPrice() = %v, want 8123.45", price)
	}
}

func TestGetPrice_MissingPrice(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"symbol":"SOLPHP"}`)
	})

	_, err := client.GetPrice(context.Background(), "SOLPHP")
	if !errors.Is(err, domain.ErrMalformedResponse) {
		t.Errorf("GetPrice() error = %v, want ErrMalformedResponse", err)
	}
}

func TestKlines(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("interval") != "1h" || q.Get("limit") != "2" {
			t.Errorf("unexpected kline query: %s", r.URL.RawQuery)
		}
		fmt.Fprint(w, `[
			[1700000000000,"100.0","101.0","99.0","100.5","42.5",1700003599999],
			[1700003600000,"100.5","102.0","100.0","101.5","50.0",1700007199999]
		]`)
	})

	candles, err := client.Klines(context.Background(), "SOLPHP", "1h", 2)
	if err != nil {
		t.Fatalf("Klines() error = %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("Klines() returned %d candles, want 2", len(candles))
	}
	if !candles[0].OpenTime.Before(candles[1].OpenTime) {
		t.Error("candles must be ordered oldest first")
	}
	if candles[0].Close != 100.5 || candles[0].Volume != 42.5 {
		t.Errorf("candle[0] = %+v, want close 100.5 volume 42.5", candles[0])
	}
	if candles[1].Close != 101.5 {
		t.Errorf("candle[1].Close = %v, want 101.5", candles[1].Close)
	}
}

func TestGetBalance(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/openapi/v1/account" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		verifySignedQuery(t, r.URL.Query())
		fmt.Fprint(w, `{"canTrade":true,"balances":[
			{"asset":"SOL","free":"1.5","locked":"0.5"},
			{"asset":"PHP","free":"1000.0","locked":"0"}
		]}`)
	})

	bal, err := client.GetBalance(context.Background(), "SOL")
	if err != nil {
		t.Fatalf("GetBalance() error = %v", err)
	}
	if bal.Free != 1.5 || bal.Locked != 0.5 {
		t.Errorf("GetBalance() = %+v, want free 1.5 locked 0.5", bal)
	}
	if bal.Total() != 2.0 {
		t.Errorf("Total() = %v, want 2.0", bal.Total())
	}

	_, err = client.GetBalance(context.Background(), "BTC")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetBalance(BTC) error = %v, want ErrNotFound", err)
	}
}

func TestBalances_NonzeroOnly(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"canTrade":true,"balances":[
			{"asset":"SOL","free":"1.0","locked":"0"},
			{"asset":"BTC","free":"0","locked":"0"},
			{"asset":"PHP","free":"0","locked":"250.0"}
		]}`)
	})

	balances, err := client.Balances(context.Background())
	if err != nil {
		t.Fatalf("Balances() error = %v", err)
	}
	if len(balances) != 2 {
		t.Fatalf("Balances() returned %d assets, want 2 (zero totals excluded)", len(balances))
	}
	for _, b := range balances {
		if b.Asset == "BTC" {
			t.Error("zero balance must be excluded")
		}
	}
}

func TestPlaceOrder(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.Header.Get("Content-Type") != "application/x-www-form-urlencoded" {
			t.Errorf("unexpected content type %s", r.Header.Get("Content-Type"))
		}
		body, _ := io.ReadAll(r.Body)
		params, err := url.ParseQuery(string(body))
		if err != nil {
			t.Fatalf("failed to parse body: %v", err)
		}
		verifySignedQuery(t, params)
		if params.Get("symbol") != "SOLPHP" || params.Get("side") != "BUY" || params.Get("type") != "MARKET" {
			t.Errorf("unexpected order params: %s", body)
		}
		if params.Get("quoteOrderQty") != "150" {
			t.Errorf("quoteOrderQty = %q, want 150", params.Get("quoteOrderQty"))
		}
		fmt.Fprint(w, `{"orderId":12345,"clientOrderId":"abc","symbol":"SOLPHP","side":"BUY","type":"MARKET","status":"FILLED","executedQty":"0.018","transactTime":1700000000000}`)
	})

	ack, err := client.PlaceOrder(context.Background(), "SOLPHP", "BUY", "MARKET", OrderParams{QuoteOrderQty: "150"})
	if err != nil {
		t.Fatalf("PlaceOrder() error = %v", err)
	}
	if ack.OrderID != 12345 {
		t.Errorf("OrderID = %d, want 12345", ack.OrderID)
	}
	if ack.Status != "FILLED" {
		t.Errorf("Status = %s, want FILLED", ack.Status)
	}
	if ack.ExecutedQty != 0.018 {
		t.Errorf("ExecutedQty = %v, want 0.018", ack.ExecutedQty)
	}
}

func TestPlaceOrder_APIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"code":-1013,"msg":"Filter failure: NOTIONAL"}`)
	})

	_, err := client.PlaceOrder(context.Background(), "SOLPHP", "BUY", "MARKET", OrderParams{QuoteOrderQty: "1"})
	if !errors.Is(err, domain.ErrExchangeAPI) {
		t.Errorf("PlaceOrder() error = %v, want ErrExchangeAPI", err)
	}
}

func TestPlaceOrder_Unauthorized(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"code":-2014,"msg":"API-key format invalid."}`)
	})

	_, err := client.PlaceOrder(context.Background(), "SOLPHP", "BUY", "MARKET", OrderParams{Quantity: "1"})
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("PlaceOrder() error = %v, want ErrUnauthorized", err)
	}
}

func TestTradeFee_HeaderSigned(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		ts := r.Header.Get("X-COINS-TIMESTAMP")
		if ts == "" {
			t.Error("missing X-COINS-TIMESTAMP header")
		}
		path := r.URL.Path + "?" + r.URL.RawQuery
		want := SignHeader(testSecret, ts, http.MethodGet, path)
		if got := r.Header.Get("X-COINS-SIGN"); got != want {
			t.Errorf("X-COINS-SIGN = %s, want %s", got, want)
		}
		fmt.Fprint(w, `[{"symbol":"SOLPHP","makerCommission":"0.0025","takerCommission":"0.003"}]`)
	})

	fees, err := client.TradeFee(context.Background(), "SOLPHP")
	if err != nil {
		t.Fatalf("TradeFee() error = %v", err)
	}
	if len(fees) != 1 || fees[0].TakerCommission != "0.003" {
		t.Errorf("TradeFee() = %+v", fees)
	}
}

func TestServerTime(t *testing.T) {
	now := time.Now().UnixMilli()
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"serverTime":%d}`, now)
	})

	got, err := client.ServerTime(context.Background())
	if err != nil {
		t.Fatalf("ServerTime() error = %v", err)
	}
	if got != now {
		t.Errorf("ServerTime() = %d, want %d", got, now)
	}
}
