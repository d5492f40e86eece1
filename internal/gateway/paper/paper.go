package paper

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"trend-trading-bot/internal/interfaces"
	"trend-trading-bot/internal/logger"
	"trend-trading-bot/internal/types"
)

type Params struct {
	Symbol          string
	StartingBalance float64
	StartPrice      float64
	Seed            int64
	BarInterval     time.Duration
	// Source supplies real bars in DRY_RUN; nil means a synthetic walk.
	Source interfaces.HistorySource
}

// Gateway simulates a single-position venue. Orders fill at the last close
// and the attached stop and target are checked against every later bar.
type Gateway struct {
	p   Params
	now func() time.Time

	mu      sync.Mutex
	rng     *rand.Rand
	walk    []types.Bar
	mark    float64
	lastTs  time.Time
	balance float64
	pos     *position
}

type position struct {
	side     types.Side
	size     float64
	entry    float64
	stop     float64
	target   float64
	openedAt time.Time
}

var _ interfaces.Gateway = (*Gateway)(nil)

func New(p Params) *Gateway {
	if p.BarInterval <= 0 {
		p.BarInterval = time.Hour
	}
	seed := p.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Gateway{
		p:       p,
		now:     time.Now,
		rng:     rand.New(rand.NewSource(seed)),
		balance: p.StartingBalance,
	}
}

func (g *Gateway) Start(ctx context.Context) error {
	if g.p.Symbol == "" {
		return fmt.Errorf("%w: paper gateway needs a symbol", types.ErrInvalidConfiguration)
	}
	if !(g.p.StartingBalance > 0) {
		return fmt.Errorf("%w: paper starting balance must be positive", types.ErrInvalidConfiguration)
	}
	if g.p.Source == nil && !(g.p.StartPrice > 0) {
		return fmt.Errorf("%w: paper start price must be positive", types.ErrInvalidConfiguration)
	}
	logger.Info(ctx, "Paper gateway ready",
		"symbol", g.p.Symbol,
		"balance", g.p.StartingBalance,
		"real_bars", g.p.Source != nil,
	)
	return nil
}

func (g *Gateway) FetchHistory(ctx context.Context, limit int, timeframe string) ([]types.Bar, error) {
	var bars []types.Bar
	if g.p.Source != nil {
		var err error
		if bars, err = g.p.Source.FetchHistory(ctx, limit, timeframe); err != nil {
			return nil, err
		}
	} else {
		g.mu.Lock()
		bars = g.syntheticBars(limit)
		g.mu.Unlock()
	}
	if len(bars) == 0 {
		return bars, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.mark = bars[len(bars)-1].Close
	g.lastTs = bars[len(bars)-1].Ts
	g.settle(ctx, bars)
	return bars, nil
}

// syntheticBars extends the random walk up to the current bar boundary and
// returns the last limit bars. Caller holds mu.
func (g *Gateway) syntheticBars(limit int) []types.Bar {
	if limit <= 0 {
		return nil
	}
	step := g.p.BarInterval
	end := g.now().UTC().Truncate(step)

	if len(g.walk) == 0 {
		price := g.p.StartPrice
		for i := limit - 1; i >= 0; i-- {
			b := g.nextBar(end.Add(-time.Duration(i)*step), price)
			g.walk = append(g.walk, b)
			price = b.Close
		}
	}
	for last := g.walk[len(g.walk)-1]; last.Ts.Before(end); last = g.walk[len(g.walk)-1] {
		g.walk = append(g.walk, g.nextBar(last.Ts.Add(step), last.Close))
	}

	if len(g.walk) > limit {
		g.walk = g.walk[len(g.walk)-limit:]
	}
	out := make([]types.Bar, len(g.walk))
	copy(out, g.walk)
	return out
}

func (g *Gateway) nextBar(ts time.Time, open float64) types.Bar {
	c := open * (1 + g.rng.NormFloat64()*0.004)
	hi := math.Max(open, c) * (1 + math.Abs(g.rng.NormFloat64())*0.002)
	lo := math.Min(open, c) * (1 - math.Abs(g.rng.NormFloat64())*0.002)
	return types.Bar{
		Ts:     ts,
		Open:   open,
		High:   hi,
		Low:    lo,
		Close:  c,
		Volume: g.rng.Float64() * 1000,
	}
}

// settle closes the open position on the first bar after entry that trades
// through the stop or the target. The stop wins when one bar touches both.
// Caller holds mu.
func (g *Gateway) settle(ctx context.Context, bars []types.Bar) {
	if g.pos == nil {
		return
	}
	p := g.pos
	for _, b := range bars {
		if !b.Ts.After(p.openedAt) {
			continue
		}
		exit, reason := 0.0, ""
		switch p.side {
		case types.SideLong:
			if p.stop > 0 && b.Low <= p.stop {
				exit, reason = p.stop, "stop_loss"
			} else if p.target > 0 && b.High >= p.target {
				exit, reason = p.target, "take_profit"
			}
		case types.SideShort:
			if p.stop > 0 && b.High >= p.stop {
				exit, reason = p.stop, "stop_loss"
			} else if p.target > 0 && b.Low <= p.target {
				exit, reason = p.target, "take_profit"
			}
		}
		if reason == "" {
			continue
		}

		pnl := (exit - p.entry) * p.size
		if p.side == types.SideShort {
			pnl = -pnl
		}
		g.balance += pnl
		g.pos = nil
		logger.Info(ctx, "Paper position closed",
			"symbol", g.p.Symbol,
			"side", p.side,
			"reason", reason,
			"entry", p.entry,
			"exit", exit,
			"pnl", pnl,
			"balance", g.balance,
		)
		return
	}
}

func (g *Gateway) Position(ctx context.Context) (types.Position, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	pos := types.Position{Symbol: g.p.Symbol}
	if g.pos != nil {
		pos.Qty = g.pos.size
		if g.pos.side == types.SideShort {
			pos.Qty = -g.pos.size
		}
	}
	return pos, nil
}

func (g *Gateway) Balance(ctx context.Context) (float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.balance, nil
}

func (g *Gateway) SubmitOrder(ctx context.Context, req types.OrderReq) (types.OrderConfirmation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if req.Side != types.SideLong && req.Side != types.SideShort {
		return types.OrderConfirmation{}, fmt.Errorf("%w: unsupported side %q", types.ErrOrderRejected, req.Side)
	}
	if !(req.Size > 0) {
		return types.OrderConfirmation{}, fmt.Errorf("%w: size must be positive", types.ErrOrderRejected)
	}
	if g.pos != nil {
		return types.OrderConfirmation{}, fmt.Errorf("%w: position already open", types.ErrOrderRejected)
	}
	if g.mark <= 0 {
		return types.OrderConfirmation{}, fmt.Errorf("%w: no mark price yet", types.ErrDataUnavailable)
	}

	// entry fills on the last seen bar; only later bars can trigger exits
	g.pos = &position{
		side:     req.Side,
		size:     req.Size,
		entry:    g.mark,
		stop:     req.StopPrice,
		target:   req.TargetPrice,
		openedAt: g.lastTs,
	}

	legs := []string{"entry"}
	if req.StopPrice > 0 {
		legs = append(legs, "stop_loss")
	}
	if req.TargetPrice > 0 {
		legs = append(legs, "take_profit")
	}
	return types.OrderConfirmation{
		OrderID: uuid.New().String(),
		Status:  "filled",
		Legs:    legs,
	}, nil
}
