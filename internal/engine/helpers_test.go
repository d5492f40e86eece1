package engine

import (
	"context"
	"time"

	"trend-trading-bot/internal/store"
	"trend-trading-bot/internal/types"
)

type fakeGateway struct {
	bars    []types.Bar
	pos     types.Position
	balance float64

	histErr, posErr, balErr, submitErr error

	calls     []string
	submitted []types.OrderReq
}

func (f *fakeGateway) Start(ctx context.Context) error { return nil }

func (f *fakeGateway) FetchHistory(ctx context.Context, limit int, timeframe string) ([]types.Bar, error) {
	f.calls = append(f.calls, "FetchHistory")
	if f.histErr != nil {
		return nil, f.histErr
	}
	return f.bars, nil
}

func (f *fakeGateway) Position(ctx context.Context) (types.Position, error) {
	f.calls = append(f.calls, "Position")
	return f.pos, f.posErr
}

func (f *fakeGateway) Balance(ctx context.Context) (float64, error) {
	f.calls = append(f.calls, "Balance")
	return f.balance, f.balErr
}

func (f *fakeGateway) SubmitOrder(ctx context.Context, req types.OrderReq) (types.OrderConfirmation, error) {
	f.calls = append(f.calls, "SubmitOrder")
	f.submitted = append(f.submitted, req)
	if f.submitErr != nil {
		return types.OrderConfirmation{}, f.submitErr
	}
	return types.OrderConfirmation{OrderID: "ord-1", Status: "submitted", Legs: []string{"entry"}}, nil
}

func (f *fakeGateway) called(name string) int {
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

func testConfig() *store.Config {
	return &store.Config{
		Symbol:    "BTCUSDT",
		Limit:     100,
		Timeframe: "1h",
		Indicators: store.IndicatorConfig{
			MACDFast: 3, MACDSlow: 6, MACDSignal: 3,
			EMAFast: 3, EMASlow: 6,
			ATRPeriod: 3,
		},
		Risk: store.RiskConfig{
			RiskPct:       1,
			MinSize:       0.001,
			StopLossATR:   1.5,
			TakeProfitATR: 3,
			ATRPeriod:     3,
		},
	}
}

// makeBars builds n hourly bars whose close is given by f. High and low sit
// 1% either side of the close.
func makeBars(n int, f func(i int) float64) []types.Bar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]types.Bar, n)
	for i := range bars {
		c := f(i)
		bars[i] = types.Bar{
			Ts:     start.Add(time.Duration(i) * time.Hour),
			Open:   c,
			High:   c * 1.01,
			Low:    c * 0.99,
			Close:  c,
			Volume: 1,
		}
	}
	return bars
}

// accelerating rise: MACD histogram positive and fast EMA above slow
func risingBars(n int) []types.Bar {
	return makeBars(n, func(i int) float64 { return 100 + 0.05*float64(i*i) })
}

// accelerating decline: histogram negative and fast EMA below slow
func fallingBars(n int) []types.Bar {
	return makeBars(n, func(i int) float64 { return 1000 - 0.05*float64(i*i) })
}
