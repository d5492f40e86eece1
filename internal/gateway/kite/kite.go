package kite

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"strings"
	"time"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	"trend-trading-bot/internal/interfaces"
	"trend-trading-bot/internal/logger"
	"trend-trading-bot/internal/types"
)

type Params struct {
	APIKey          string
	AccessToken     string
	Exchange        string
	Symbol          string // trading symbol, e.g. RELIANCE
	InstrumentToken int
	Product         string
	BaseURL         string // overrides the Kite Connect API root
}

// Gateway trades one equity instrument through the Kite Connect REST API.
type Gateway struct {
	p  Params
	kc *kiteconnect.Client
}

var _ interfaces.Gateway = (*Gateway)(nil)

var intervals = map[string]string{
	"1m":  "minute",
	"3m":  "3minute",
	"5m":  "5minute",
	"15m": "15minute",
	"30m": "30minute",
	"1h":  "60minute",
	"1d":  "day",
}

var barLength = map[string]time.Duration{
	"minute":   time.Minute,
	"3minute":  3 * time.Minute,
	"5minute":  5 * time.Minute,
	"15minute": 15 * time.Minute,
	"30minute": 30 * time.Minute,
	"60minute": time.Hour,
	"day":      24 * time.Hour,
}

func New(p Params) *Gateway {
	if p.Product == "" {
		p.Product = kiteconnect.ProductMIS
	}
	kc := kiteconnect.New(p.APIKey)
	kc.SetAccessToken(p.AccessToken)
	if p.BaseURL != "" {
		kc.SetBaseURI(strings.TrimRight(p.BaseURL, "/"))
	}
	return &Gateway{p: p, kc: kc}
}

func (g *Gateway) instrument() string {
	return g.p.Exchange + ":" + g.p.Symbol
}

// wrap classifies a Kite client error. Transport failures, unreadable
// responses and 5xx answers are transient data errors; any other answer from
// the API is a refusal of type sentinel.
func wrap(err error, sentinel error, op string) error {
	if transient(err) {
		return fmt.Errorf("%w: kite %s: %v", types.ErrDataUnavailable, op, err)
	}
	return fmt.Errorf("%w: kite %s: %v", sentinel, op, err)
}

func transient(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var kerr kiteconnect.Error
	if errors.As(err, &kerr) {
		switch kerr.ErrorType {
		case kiteconnect.NetworkError, kiteconnect.DataError:
			return true
		}
		return kerr.Code >= 500
	}
	return false
}

// Start verifies credentials and that the configured symbol resolves to a
// quote on the exchange.
func (g *Gateway) Start(ctx context.Context) error {
	if g.p.APIKey == "" || g.p.AccessToken == "" {
		return fmt.Errorf("%w: missing kite API key/access token", types.ErrInvalidConfiguration)
	}
	ltp, err := g.kc.GetLTP(g.instrument())
	if err != nil {
		return wrap(err, types.ErrInvalidConfiguration, "ltp")
	}
	q, ok := ltp[g.instrument()]
	if !ok {
		return fmt.Errorf("%w: instrument %s not found on kite", types.ErrInvalidConfiguration, g.instrument())
	}
	if g.p.InstrumentToken != 0 && q.InstrumentToken != g.p.InstrumentToken {
		return fmt.Errorf("%w: instrument token %d does not match %s (%d)", types.ErrInvalidConfiguration, g.p.InstrumentToken, g.instrument(), q.InstrumentToken)
	}
	logger.Info(ctx, "Kite instrument verified", "instrument", g.instrument(), "ltp", q.LastPrice)
	return nil
}

func (g *Gateway) FetchHistory(ctx context.Context, limit int, timeframe string) ([]types.Bar, error) {
	interval, ok := intervals[timeframe]
	if !ok {
		return nil, fmt.Errorf("%w: timeframe %q not offered by kite", types.ErrInvalidConfiguration, timeframe)
	}

	to := time.Now()
	from := to.Add(-lookback(interval, limit))
	data, err := g.kc.GetHistoricalData(g.p.InstrumentToken, interval, from, to, false, false)
	if err != nil {
		return nil, wrap(err, types.ErrDataUnavailable, "historical")
	}

	bars := make([]types.Bar, 0, len(data))
	for _, d := range data {
		bars = append(bars, types.Bar{
			Ts:     d.Date.Time.UTC(),
			Open:   d.Open,
			High:   d.High,
			Low:    d.Low,
			Close:  d.Close,
			Volume: float64(d.Volume),
		})
	}
	if len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	return bars, nil
}

// lookback widens the requested window so that limit bars survive nights,
// weekends and holidays. An NSE session is about 6h15m of 24h.
func lookback(interval string, limit int) time.Duration {
	bar := barLength[interval]
	if interval == "day" {
		return time.Duration(float64(limit)*1.6)*bar + 7*24*time.Hour
	}
	sessions := math.Ceil(float64(limit) * float64(bar) / float64(375*time.Minute))
	return time.Duration(sessions*1.6+4) * 24 * time.Hour
}

func (g *Gateway) Position(ctx context.Context) (types.Position, error) {
	ps, err := g.kc.GetPositions()
	if err != nil {
		return types.Position{}, wrap(err, types.ErrDataUnavailable, "positions")
	}
	pos := types.Position{Symbol: g.p.Symbol}
	for _, p := range ps.Net {
		if p.Tradingsymbol == g.p.Symbol && strings.EqualFold(p.Exchange, g.p.Exchange) {
			pos.Qty += float64(p.Quantity)
		}
	}
	return pos, nil
}

// Balance is the net equity margin available for new orders.
func (g *Gateway) Balance(ctx context.Context) (float64, error) {
	m, err := g.kc.GetUserMargins()
	if err != nil {
		return 0, wrap(err, types.ErrDataUnavailable, "margins")
	}
	return m.Equity.Net, nil
}

// SubmitOrder places a market entry, then an opposite SL-M order at the stop
// and an opposite LIMIT order at the target. Protective legs are placed only
// after the entry is accepted; a failed leg is reported in the confirmation
// status instead of unwinding the entry.
func (g *Gateway) SubmitOrder(ctx context.Context, req types.OrderReq) (types.OrderConfirmation, error) {
	var entrySide, exitSide string
	switch req.Side {
	case types.SideLong:
		entrySide, exitSide = kiteconnect.TransactionTypeBuy, kiteconnect.TransactionTypeSell
	case types.SideShort:
		entrySide, exitSide = kiteconnect.TransactionTypeSell, kiteconnect.TransactionTypeBuy
	default:
		return types.OrderConfirmation{}, fmt.Errorf("%w: unsupported side %q", types.ErrOrderRejected, req.Side)
	}

	qty := int(math.Floor(req.Size))
	if qty < 1 {
		return types.OrderConfirmation{}, fmt.Errorf("%w: size %g is below one share", types.ErrOrderRejected, req.Size)
	}

	base := kiteconnect.OrderParams{
		Exchange:      g.p.Exchange,
		Tradingsymbol: g.p.Symbol,
		Validity:      kiteconnect.ValidityDay,
		Product:       g.p.Product,
		Quantity:      qty,
		Tag:           tag(req.ClientID),
	}

	entry := base
	entry.OrderType = kiteconnect.OrderTypeMarket
	entry.TransactionType = entrySide
	resp, err := g.kc.PlaceOrder(kiteconnect.VarietyRegular, entry)
	if err != nil {
		return types.OrderConfirmation{}, wrap(err, types.ErrOrderRejected, "place entry")
	}

	conf := types.OrderConfirmation{OrderID: resp.OrderID, Status: "submitted", Legs: []string{"entry"}}

	if req.StopPrice > 0 {
		sl := base
		sl.OrderType = kiteconnect.OrderTypeSLM
		sl.TransactionType = exitSide
		sl.TriggerPrice = roundToTick(req.StopPrice)
		if r, err := g.kc.PlaceOrder(kiteconnect.VarietyRegular, sl); err != nil {
			logger.ErrorWithErr(ctx, "Stop-loss leg failed", err, "entry_order_id", resp.OrderID, "trigger", sl.TriggerPrice)
			conf.Status = "partial"
		} else {
			conf.Legs = append(conf.Legs, "stop_loss:"+r.OrderID)
		}
	}
	if req.TargetPrice > 0 {
		tp := base
		tp.OrderType = kiteconnect.OrderTypeLimit
		tp.TransactionType = exitSide
		tp.Price = roundToTick(req.TargetPrice)
		if r, err := g.kc.PlaceOrder(kiteconnect.VarietyRegular, tp); err != nil {
			logger.ErrorWithErr(ctx, "Take-profit leg failed", err, "entry_order_id", resp.OrderID, "price", tp.Price)
			conf.Status = "partial"
		} else {
			conf.Legs = append(conf.Legs, "take_profit:"+r.OrderID)
		}
	}
	return conf, nil
}

// NSE equities tick in 0.05.
func roundToTick(p float64) float64 {
	return math.Round(p/0.05) * 0.05
}

// tag keeps the client id within Kite's 20 character tag limit.
func tag(clientID string) string {
	id := strings.ReplaceAll(clientID, "-", "")
	if len(id) > 20 {
		id = id[:20]
	}
	return id
}
