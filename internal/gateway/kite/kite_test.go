package kite

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	"trend-trading-bot/internal/types"
)

// fakeKite serves the Kite Connect endpoints the gateway uses.
type fakeKite struct {
	t  *testing.T
	mu sync.Mutex

	token      int
	failTypes  map[string]bool // order_type values to reject
	historyErr bool
	orders     []url.Values
}

func (k *fakeKite) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	k.mu.Lock()
	defer k.mu.Unlock()

	switch {
	case r.URL.Path == "/quote/ltp":
		if k.token == -1 {
			w.WriteHeader(http.StatusForbidden)
			io.WriteString(w, `{"status":"error","error_type":"TokenException","message":"Incorrect api_key or access_token."}`)
			return
		}
		fmt.Fprintf(w, `{"status":"success","data":{"NSE:RELIANCE":{"instrument_token":%d,"last_price":2500.5}}}`, k.token)
	case strings.HasPrefix(r.URL.Path, "/instruments/historical/738561/"):
		if k.historyErr {
			w.WriteHeader(http.StatusServiceUnavailable)
			io.WriteString(w, `{"status":"error","error_type":"GeneralException","message":"upstream down"}`)
			return
		}
		if got := strings.TrimPrefix(r.URL.Path, "/instruments/historical/738561/"); got != "60minute" {
			k.t.Errorf("Expected 60minute interval, got %s", got)
		}
		io.WriteString(w, `{"status":"success","data":{"candles":[
			["2024-01-02T09:15:00+0530",100,102,99,101,1000],
			["2024-01-02T10:15:00+0530",101,103,100,102,1100],
			["2024-01-02T11:15:00+0530",102,104,101,103,1200]]}}`)
	case r.URL.Path == "/portfolio/positions":
		io.WriteString(w, `{"status":"success","data":{"net":[
			{"tradingsymbol":"RELIANCE","exchange":"NSE","product":"MIS","quantity":-5},
			{"tradingsymbol":"RELIANCE","exchange":"NSE","product":"CNC","quantity":2},
			{"tradingsymbol":"RELIANCE","exchange":"BSE","product":"MIS","quantity":40},
			{"tradingsymbol":"TCS","exchange":"NSE","product":"MIS","quantity":7}],"day":[]}}`)
	case r.URL.Path == "/user/margins":
		io.WriteString(w, `{"status":"success","data":{"equity":{"enabled":true,"net":98765.4},"commodity":{"enabled":false,"net":0}}}`)
	case r.URL.Path == "/orders/regular" && r.Method == http.MethodPost:
		if err := r.ParseForm(); err != nil {
			k.t.Errorf("Bad order form: %v", err)
		}
		form := r.PostForm
		k.orders = append(k.orders, form)
		if k.failTypes[form.Get("order_type")] {
			w.WriteHeader(http.StatusBadRequest)
			io.WriteString(w, `{"status":"error","error_type":"OrderException","message":"Trigger price out of range"}`)
			return
		}
		fmt.Fprintf(w, `{"status":"success","data":{"order_id":"ord-%d"}}`, len(k.orders))
	default:
		http.NotFound(w, r)
	}
}

func newTestGateway(t *testing.T, k *fakeKite) *Gateway {
	t.Helper()
	k.t = t
	if k.token == 0 {
		k.token = 738561
	}
	srv := httptest.NewServer(k)
	t.Cleanup(srv.Close)
	return New(Params{
		APIKey:          "key",
		AccessToken:     "token",
		Exchange:        "NSE",
		Symbol:          "RELIANCE",
		InstrumentToken: 738561,
		BaseURL:         srv.URL,
	})
}

func formFloat(t *testing.T, v url.Values, key string) float64 {
	t.Helper()
	f, err := strconv.ParseFloat(v.Get(key), 64)
	if err != nil {
		t.Fatalf("Expected numeric %s, got %q", key, v.Get(key))
	}
	return f
}

func TestRoundToTick(t *testing.T) {
	tests := []struct{ in, want float64 }{
		{100.02, 100.0},
		{100.03, 100.05},
		{99.99, 100.0},
	}
	for _, tt := range tests {
		if got := roundToTick(tt.in); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("roundToTick(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestTag(t *testing.T) {
	got := tag("3f1c2a9e-7b6d-4c1e-9a2b-000000000000")
	if len(got) != 20 {
		t.Errorf("Expected 20 character tag, got %q", got)
	}
	if got != "3f1c2a9e7b6d4c1e9a2b" {
		t.Errorf("Unexpected tag %q", got)
	}
}

func TestLookbackCoversLimit(t *testing.T) {
	// 300 hourly bars at ~6 bars a session is 50 sessions
	if d := lookback("60minute", 300); d < 50*24*time.Hour {
		t.Errorf("Lookback %v too short for 300 hourly bars", d)
	}
	if d := lookback("day", 200); d < 200*24*time.Hour {
		t.Errorf("Lookback %v too short for 200 daily bars", d)
	}
}

func TestUnsupportedTimeframe(t *testing.T) {
	g := New(Params{APIKey: "k", AccessToken: "t", Exchange: "NSE", Symbol: "RELIANCE", InstrumentToken: 738561})
	if _, err := g.FetchHistory(context.Background(), 10, "4h"); !errors.Is(err, types.ErrInvalidConfiguration) {
		t.Errorf("Expected ErrInvalidConfiguration for 4h, got %v", err)
	}
}

func TestStartMissingCredentials(t *testing.T) {
	g := New(Params{Exchange: "NSE", Symbol: "RELIANCE"})
	if err := g.Start(context.Background()); !errors.Is(err, types.ErrInvalidConfiguration) {
		t.Errorf("Expected ErrInvalidConfiguration, got %v", err)
	}
}

func TestSubmitOrderSizeBelowOneShare(t *testing.T) {
	g := New(Params{APIKey: "k", AccessToken: "t", Exchange: "NSE", Symbol: "RELIANCE"})
	_, err := g.SubmitOrder(context.Background(), types.OrderReq{Symbol: "RELIANCE", Side: types.SideLong, Size: 0.4})
	if !errors.Is(err, types.ErrOrderRejected) {
		t.Errorf("Expected ErrOrderRejected, got %v", err)
	}
}

func TestSubmitOrderPlacesAllLegs(t *testing.T) {
	k := &fakeKite{}
	g := newTestGateway(t, k)

	conf, err := g.SubmitOrder(context.Background(), types.OrderReq{
		Symbol:      "RELIANCE",
		Side:        types.SideLong,
		Size:        10.7,
		StopPrice:   97.03,
		TargetPrice: 106.01,
		ClientID:    "3f1c2a9e-7b6d-4c1e-9a2b-000000000000",
	})
	if err != nil {
		t.Fatalf("SubmitOrder failed: %v", err)
	}
	if conf.OrderID != "ord-1" || conf.Status != "submitted" {
		t.Errorf("Expected ord-1 submitted, got %+v", conf)
	}
	wantLegs := []string{"entry", "stop_loss:ord-2", "take_profit:ord-3"}
	if strings.Join(conf.Legs, ",") != strings.Join(wantLegs, ",") {
		t.Errorf("Expected legs %v, got %v", wantLegs, conf.Legs)
	}

	if len(k.orders) != 3 {
		t.Fatalf("Expected 3 orders, got %d", len(k.orders))
	}
	entry, sl, tp := k.orders[0], k.orders[1], k.orders[2]
	if entry.Get("order_type") != "MARKET" || entry.Get("transaction_type") != "BUY" || entry.Get("quantity") != "10" {
		t.Errorf("Unexpected entry %v", entry)
	}
	if entry.Get("tag") != "3f1c2a9e7b6d4c1e9a2b" || entry.Get("product") != "MIS" {
		t.Errorf("Expected tag and MIS product on entry, got %v", entry)
	}
	if sl.Get("order_type") != "SL-M" || sl.Get("transaction_type") != "SELL" {
		t.Errorf("Unexpected stop leg %v", sl)
	}
	if got := formFloat(t, sl, "trigger_price"); math.Abs(got-97.05) > 1e-6 {
		t.Errorf("Expected stop trigger rounded to 97.05, got %v", got)
	}
	if tp.Get("order_type") != "LIMIT" || tp.Get("transaction_type") != "SELL" {
		t.Errorf("Unexpected target leg %v", tp)
	}
	if got := formFloat(t, tp, "price"); math.Abs(got-106.0) > 1e-6 {
		t.Errorf("Expected target price rounded to 106.00, got %v", got)
	}
}

func TestSubmitOrderFailedLegIsPartial(t *testing.T) {
	k := &fakeKite{failTypes: map[string]bool{"SL-M": true}}
	g := newTestGateway(t, k)

	conf, err := g.SubmitOrder(context.Background(), types.OrderReq{
		Symbol:      "RELIANCE",
		Side:        types.SideShort,
		Size:        4,
		StopPrice:   103,
		TargetPrice: 94,
	})
	if err != nil {
		t.Fatalf("Expected entry to stand when a leg fails, got %v", err)
	}
	if conf.Status != "partial" {
		t.Errorf("Expected partial status, got %s", conf.Status)
	}
	if strings.Join(conf.Legs, ",") != "entry,take_profit:ord-3" {
		t.Errorf("Expected entry and target legs only, got %v", conf.Legs)
	}
	if k.orders[0].Get("transaction_type") != "SELL" || k.orders[2].Get("transaction_type") != "BUY" {
		t.Errorf("Expected SELL entry with BUY exits, got %s/%s", k.orders[0].Get("transaction_type"), k.orders[2].Get("transaction_type"))
	}
}

func TestSubmitOrderSuppressedLeg(t *testing.T) {
	k := &fakeKite{}
	g := newTestGateway(t, k)

	conf, err := g.SubmitOrder(context.Background(), types.OrderReq{
		Symbol:    "RELIANCE",
		Side:      types.SideLong,
		Size:      3,
		StopPrice: 97,
	})
	if err != nil {
		t.Fatalf("SubmitOrder failed: %v", err)
	}
	if len(k.orders) != 2 {
		t.Fatalf("Expected entry and stop only, got %d orders", len(k.orders))
	}
	for _, o := range k.orders {
		if o.Get("order_type") == "LIMIT" {
			t.Error("Expected no target order for a zero target level")
		}
	}
	if conf.Status != "submitted" || len(conf.Legs) != 2 {
		t.Errorf("Unexpected confirmation %+v", conf)
	}
}

func TestSubmitOrderEntryRejected(t *testing.T) {
	k := &fakeKite{failTypes: map[string]bool{"MARKET": true}}
	g := newTestGateway(t, k)

	_, err := g.SubmitOrder(context.Background(), types.OrderReq{
		Symbol: "RELIANCE", Side: types.SideLong, Size: 3, StopPrice: 97, TargetPrice: 106,
	})
	if !errors.Is(err, types.ErrOrderRejected) {
		t.Fatalf("Expected ErrOrderRejected, got %v", err)
	}
	if len(k.orders) != 1 {
		t.Errorf("Expected no protective legs after a rejected entry, got %d orders", len(k.orders))
	}
}

func TestPositionNetsProductsOnExchange(t *testing.T) {
	g := newTestGateway(t, &fakeKite{})

	pos, err := g.Position(context.Background())
	if err != nil {
		t.Fatalf("Position failed: %v", err)
	}
	if pos.Qty != -3 {
		t.Errorf("Expected net -3 across NSE products, got %v", pos.Qty)
	}
	if !pos.Open() {
		t.Error("Expected an open position")
	}
}

func TestBalanceUsesEquityNet(t *testing.T) {
	g := newTestGateway(t, &fakeKite{})

	bal, err := g.Balance(context.Background())
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	if bal != 98765.4 {
		t.Errorf("Expected 98765.4, got %v", bal)
	}
}

func TestStartVerifiesInstrument(t *testing.T) {
	if err := newTestGateway(t, &fakeKite{}).Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	err := newTestGateway(t, &fakeKite{token: 999}).Start(context.Background())
	if !errors.Is(err, types.ErrInvalidConfiguration) {
		t.Errorf("Expected ErrInvalidConfiguration on token mismatch, got %v", err)
	}

	err = newTestGateway(t, &fakeKite{token: -1}).Start(context.Background())
	if !errors.Is(err, types.ErrInvalidConfiguration) {
		t.Errorf("Expected ErrInvalidConfiguration on a bad access token, got %v", err)
	}
}

func TestFetchHistory(t *testing.T) {
	g := newTestGateway(t, &fakeKite{})

	bars, err := g.FetchHistory(context.Background(), 2, "1h")
	if err != nil {
		t.Fatalf("FetchHistory failed: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("Expected the last 2 bars, got %d", len(bars))
	}
	if bars[0].Close != 102 || bars[1].Close != 103 {
		t.Errorf("Expected closes 102, 103, got %v, %v", bars[0].Close, bars[1].Close)
	}
	if want := time.Date(2024, 1, 2, 5, 45, 0, 0, time.UTC); !bars[1].Ts.Equal(want) {
		t.Errorf("Expected last bar at %s, got %s", want, bars[1].Ts)
	}
	if bars[1].Ts.Location() != time.UTC {
		t.Errorf("Expected UTC timestamps, got %s", bars[1].Ts.Location())
	}

	g = newTestGateway(t, &fakeKite{historyErr: true})
	if _, err := g.FetchHistory(context.Background(), 2, "1h"); !errors.Is(err, types.ErrDataUnavailable) {
		t.Errorf("Expected ErrDataUnavailable on a 503, got %v", err)
	}
}

func TestWrapClassifiesClientErrors(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		class string
	}{
		{"network", kiteconnect.NewError(kiteconnect.NetworkError, "Request failed.", nil), "data_unavailable"},
		{"unreadable", kiteconnect.NewError(kiteconnect.DataError, "Error reading response.", nil), "data_unavailable"},
		{"deadline", context.DeadlineExceeded, "data_unavailable"},
		{"order refused", kiteconnect.NewError(kiteconnect.OrderError, "Insufficient funds", nil), "order_rejected"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := types.ErrorClass(wrap(tt.err, types.ErrOrderRejected, "place entry")); got != tt.class {
				t.Errorf("Expected %s, got %s", tt.class, got)
			}
		})
	}
}
