package bybit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"trend-trading-bot/internal/interfaces"
	"trend-trading-bot/internal/logger"
	"trend-trading-bot/internal/types"
)

const (
	MainnetURL = "https://api.bybit.com"
	TestnetURL = "https://api-testnet.bybit.com"

	maxKlineLimit = 1000
)

type Params struct {
	APIKey       string
	APISecret    string
	Symbol       string
	Category     string // linear for USDT perpetuals
	Testnet      bool
	BaseURL      string // overrides the testnet/mainnet choice
	RecvWindowMs int
	Leverage     int
	// DataOnly limits the gateway to public market data: no credentials are
	// needed and no account endpoint is touched.
	DataOnly bool
}

// Gateway talks to the Bybit v5 REST API for a single symbol.
type Gateway struct {
	p       Params
	baseURL string
	hc      *http.Client

	mu   sync.RWMutex
	inst *instrument
}

// instrument holds the venue's rounding rules for the symbol.
type instrument struct {
	qtyStep  decimal.Decimal
	minQty   decimal.Decimal
	tickSize decimal.Decimal
}

var _ interfaces.Gateway = (*Gateway)(nil)

var intervals = map[string]string{
	"1m":  "1",
	"3m":  "3",
	"5m":  "5",
	"15m": "15",
	"30m": "30",
	"1h":  "60",
	"2h":  "120",
	"4h":  "240",
	"1d":  "D",
}

func New(p Params) *Gateway {
	base := MainnetURL
	if p.Testnet {
		base = TestnetURL
	}
	if p.BaseURL != "" {
		base = p.BaseURL
	}
	if p.Category == "" {
		p.Category = "linear"
	}
	if p.RecvWindowMs <= 0 {
		p.RecvWindowMs = 5000
	}
	return &Gateway{
		p:       p,
		baseURL: strings.TrimRight(base, "/"),
		hc:      &http.Client{Timeout: 10 * time.Second},
	}
}

// classify maps a venue refusal onto sentinel; transport errors already
// carry ErrDataUnavailable.
func classify(err error, sentinel error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: %w", sentinel, apiErr)
	}
	return err
}

// Start checks that the symbol is listed, caches its lot and tick sizes, and
// applies the configured leverage. A data-only gateway stops after the
// instrument check.
func (g *Gateway) Start(ctx context.Context) error {
	if !g.p.DataOnly && (g.p.APIKey == "" || g.p.APISecret == "") {
		return fmt.Errorf("%w: missing bybit API key/secret", types.ErrInvalidConfiguration)
	}
	if err := g.loadInstrument(ctx); err != nil {
		return err
	}
	if g.p.DataOnly {
		logger.Info(ctx, "Bybit gateway in market-data mode", "symbol", g.p.Symbol)
		return nil
	}
	if g.p.Leverage > 0 {
		g.setLeverage(ctx)
	}
	return nil
}

func (g *Gateway) loadInstrument(ctx context.Context) error {
	q := url.Values{}
	q.Set("category", g.p.Category)
	q.Set("symbol", g.p.Symbol)
	raw, err := g.get(ctx, "/v5/market/instruments-info", q, false)
	if err != nil {
		return classify(err, types.ErrInvalidConfiguration)
	}

	var res struct {
		List []struct {
			Symbol        string `json:"symbol"`
			Status        string `json:"status"`
			LotSizeFilter struct {
				QtyStep     string `json:"qtyStep"`
				MinOrderQty string `json:"minOrderQty"`
			} `json:"lotSizeFilter"`
			PriceFilter struct {
				TickSize string `json:"tickSize"`
			} `json:"priceFilter"`
		} `json:"list"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return fmt.Errorf("%w: decode instruments: %v", types.ErrDataUnavailable, err)
	}
	for _, it := range res.List {
		if it.Symbol != g.p.Symbol {
			continue
		}
		if it.Status != "" && it.Status != "Trading" {
			return fmt.Errorf("%w: symbol %s is %s on bybit", types.ErrInvalidConfiguration, g.p.Symbol, it.Status)
		}
		inst := &instrument{}
		if inst.qtyStep, err = decimal.NewFromString(it.LotSizeFilter.QtyStep); err != nil {
			return fmt.Errorf("%w: bad qtyStep %q", types.ErrDataUnavailable, it.LotSizeFilter.QtyStep)
		}
		if inst.minQty, err = decimal.NewFromString(it.LotSizeFilter.MinOrderQty); err != nil {
			return fmt.Errorf("%w: bad minOrderQty %q", types.ErrDataUnavailable, it.LotSizeFilter.MinOrderQty)
		}
		if inst.tickSize, err = decimal.NewFromString(it.PriceFilter.TickSize); err != nil {
			return fmt.Errorf("%w: bad tickSize %q", types.ErrDataUnavailable, it.PriceFilter.TickSize)
		}
		g.mu.Lock()
		g.inst = inst
		g.mu.Unlock()
		logger.Info(ctx, "Bybit instrument loaded",
			"symbol", g.p.Symbol,
			"qty_step", inst.qtyStep.String(),
			"min_qty", inst.minQty.String(),
			"tick_size", inst.tickSize.String(),
		)
		return nil
	}
	return fmt.Errorf("%w: symbol %s not supported by bybit %s", types.ErrInvalidConfiguration, g.p.Symbol, g.p.Category)
}

// setLeverage is best effort: bybit answers with an error when the leverage
// is already at the requested value.
func (g *Gateway) setLeverage(ctx context.Context) {
	lev := strconv.Itoa(g.p.Leverage)
	_, err := g.post(ctx, "/v5/position/set-leverage", map[string]string{
		"category":     g.p.Category,
		"symbol":       g.p.Symbol,
		"buyLeverage":  lev,
		"sellLeverage": lev,
	})
	if err != nil {
		logger.Warn(ctx, "Set leverage failed, continuing", "symbol", g.p.Symbol, "leverage", g.p.Leverage, "error", err)
		return
	}
	logger.Info(ctx, "Leverage set", "symbol", g.p.Symbol, "leverage", g.p.Leverage)
}

func (g *Gateway) FetchHistory(ctx context.Context, limit int, timeframe string) ([]types.Bar, error) {
	interval, ok := intervals[timeframe]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported timeframe %q", types.ErrInvalidConfiguration, timeframe)
	}
	if limit > maxKlineLimit {
		limit = maxKlineLimit
	}

	q := url.Values{}
	q.Set("category", g.p.Category)
	q.Set("symbol", g.p.Symbol)
	q.Set("interval", interval)
	q.Set("limit", strconv.Itoa(limit))
	raw, err := g.get(ctx, "/v5/market/kline", q, false)
	if err != nil {
		return nil, classify(err, types.ErrDataUnavailable)
	}

	var res struct {
		List [][]string `json:"list"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("%w: decode kline: %v", types.ErrDataUnavailable, err)
	}
	return parseKlines(res.List)
}

// parseKlines converts [start, open, high, low, close, volume, turnover]
// rows, which bybit returns newest first, into ascending bars.
func parseKlines(rows [][]string) ([]types.Bar, error) {
	bars := make([]types.Bar, 0, len(rows))
	for _, r := range rows {
		if len(r) < 6 {
			return nil, fmt.Errorf("%w: short kline row %v", types.ErrDataUnavailable, r)
		}
		var f [6]float64
		for i := 0; i < 6; i++ {
			v, err := strconv.ParseFloat(r[i], 64)
			if err != nil {
				return nil, fmt.Errorf("%w: kline field %q: %v", types.ErrDataUnavailable, r[i], err)
			}
			f[i] = v
		}
		bars = append(bars, types.Bar{
			Ts:     time.UnixMilli(int64(f[0])).UTC(),
			Open:   f[1],
			High:   f[2],
			Low:    f[3],
			Close:  f[4],
			Volume: f[5],
		})
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Ts.Before(bars[j].Ts) })
	return bars, nil
}

var errDataOnly = fmt.Errorf("%w: bybit gateway is market-data only", types.ErrInvalidConfiguration)

func (g *Gateway) Position(ctx context.Context) (types.Position, error) {
	if g.p.DataOnly {
		return types.Position{}, errDataOnly
	}
	q := url.Values{}
	q.Set("category", g.p.Category)
	q.Set("symbol", g.p.Symbol)
	raw, err := g.get(ctx, "/v5/position/list", q, true)
	if err != nil {
		return types.Position{}, classify(err, types.ErrDataUnavailable)
	}

	var res struct {
		List []struct {
			Symbol string `json:"symbol"`
			Side   string `json:"side"`
			Size   string `json:"size"`
		} `json:"list"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return types.Position{}, fmt.Errorf("%w: decode positions: %v", types.ErrDataUnavailable, err)
	}

	pos := types.Position{Symbol: g.p.Symbol}
	for _, p := range res.List {
		if p.Symbol != g.p.Symbol || p.Size == "" {
			continue
		}
		size, err := strconv.ParseFloat(p.Size, 64)
		if err != nil {
			return types.Position{}, fmt.Errorf("%w: position size %q: %v", types.ErrDataUnavailable, p.Size, err)
		}
		if p.Side == "Sell" {
			size = -size
		}
		pos.Qty += size
	}
	return pos, nil
}

// Balance returns free USDT in the unified trading account.
func (g *Gateway) Balance(ctx context.Context) (float64, error) {
	if g.p.DataOnly {
		return 0, errDataOnly
	}
	q := url.Values{}
	q.Set("accountType", "UNIFIED")
	q.Set("coin", "USDT")
	raw, err := g.get(ctx, "/v5/account/wallet-balance", q, true)
	if err != nil {
		return 0, classify(err, types.ErrDataUnavailable)
	}

	var res struct {
		List []struct {
			Coin []struct {
				Coin                string `json:"coin"`
				WalletBalance       string `json:"walletBalance"`
				AvailableToWithdraw string `json:"availableToWithdraw"`
			} `json:"coin"`
		} `json:"list"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return 0, fmt.Errorf("%w: decode wallet: %v", types.ErrDataUnavailable, err)
	}
	for _, acct := range res.List {
		for _, c := range acct.Coin {
			if c.Coin != "USDT" {
				continue
			}
			s := c.AvailableToWithdraw
			if s == "" {
				s = c.WalletBalance
			}
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return 0, fmt.Errorf("%w: balance %q: %v", types.ErrDataUnavailable, s, err)
			}
			return v, nil
		}
	}
	return 0, nil
}

// SubmitOrder places a market entry with the stop and target attached as
// full-size trigger prices, so the whole bundle is one venue request.
func (g *Gateway) SubmitOrder(ctx context.Context, req types.OrderReq) (types.OrderConfirmation, error) {
	if g.p.DataOnly {
		return types.OrderConfirmation{}, errDataOnly
	}
	var side string
	switch req.Side {
	case types.SideLong:
		side = "Buy"
	case types.SideShort:
		side = "Sell"
	default:
		return types.OrderConfirmation{}, fmt.Errorf("%w: unsupported side %q", types.ErrOrderRejected, req.Side)
	}

	inst, err := g.instrument(ctx)
	if err != nil {
		return types.OrderConfirmation{}, err
	}

	qty := floorToStep(decimal.NewFromFloat(req.Size), inst.qtyStep)
	if qty.LessThan(inst.minQty) || !qty.IsPositive() {
		return types.OrderConfirmation{}, fmt.Errorf("%w: size %g rounds below minimum order qty %s", types.ErrOrderRejected, req.Size, inst.minQty)
	}

	linkID := req.ClientID
	if linkID == "" {
		linkID = uuid.NewString()
	}
	body := map[string]string{
		"category":    g.p.Category,
		"symbol":      g.p.Symbol,
		"side":        side,
		"orderType":   "Market",
		"qty":         qty.String(),
		"orderLinkId": linkID,
	}
	legs := []string{"entry"}
	if req.StopPrice > 0 || req.TargetPrice > 0 {
		body["tpslMode"] = "Full"
	}
	if req.StopPrice > 0 {
		body["stopLoss"] = roundToTick(decimal.NewFromFloat(req.StopPrice), inst.tickSize).String()
		body["slTriggerBy"] = "LastPrice"
		legs = append(legs, "stop_loss")
	}
	if req.TargetPrice > 0 {
		body["takeProfit"] = roundToTick(decimal.NewFromFloat(req.TargetPrice), inst.tickSize).String()
		body["tpTriggerBy"] = "LastPrice"
		legs = append(legs, "take_profit")
	}

	raw, err := g.post(ctx, "/v5/order/create", body)
	if err != nil {
		return types.OrderConfirmation{}, classify(err, types.ErrOrderRejected)
	}
	var res struct {
		OrderID     string `json:"orderId"`
		OrderLinkID string `json:"orderLinkId"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return types.OrderConfirmation{}, fmt.Errorf("%w: decode order: %v", types.ErrDataUnavailable, err)
	}
	return types.OrderConfirmation{OrderID: res.OrderID, Status: "submitted", Legs: legs}, nil
}

func (g *Gateway) instrument(ctx context.Context) (*instrument, error) {
	g.mu.RLock()
	inst := g.inst
	g.mu.RUnlock()
	if inst != nil {
		return inst, nil
	}
	if err := g.loadInstrument(ctx); err != nil {
		return nil, err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.inst, nil
}

func floorToStep(v, step decimal.Decimal) decimal.Decimal {
	if !step.IsPositive() {
		return v
	}
	return v.Div(step).Floor().Mul(step)
}

func roundToTick(v, tick decimal.Decimal) decimal.Decimal {
	if !tick.IsPositive() {
		return v
	}
	return v.Div(tick).Round(0).Mul(tick)
}
