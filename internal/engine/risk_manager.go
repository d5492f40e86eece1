package engine

import (
	"context"
	"fmt"
	"math"

	"trend-trading-bot/internal/logger"
	"trend-trading-bot/internal/store"
	"trend-trading-bot/internal/types"
)

// riskManager sizes entries as a fixed percentage of free balance.
type riskManager struct {
	riskPct float64
	minSize float64
}

func newRiskManager(cfg store.RiskConfig) *riskManager {
	return &riskManager{
		riskPct: cfg.RiskPct,
		minSize: cfg.MinSize,
	}
}

// positionSize returns (balance * riskPct / 100) / price in base units.
//
// A size below minSize is returned as exactly 0, never rounded up; callers
// treat 0 as "do not trade". Balance and price must be strictly positive.
func (rm *riskManager) positionSize(balance, price float64) (float64, error) {
	if !(balance > 0) || math.IsInf(balance, 0) {
		return 0, fmt.Errorf("%w: balance must be positive, got %g", types.ErrInvalidConfiguration, balance)
	}
	if !(price > 0) || math.IsInf(price, 0) {
		return 0, fmt.Errorf("%w: price must be positive, got %g", types.ErrInvalidConfiguration, price)
	}

	size := (balance * rm.riskPct / 100) / price
	if size < rm.minSize {
		return 0, nil
	}
	return size, nil
}

// logSuppressed records a directional signal that sized to zero.
func (rm *riskManager) logSuppressed(ctx context.Context, symbol string, balance, price float64) {
	logger.Risk(ctx, symbol, "SIZE_BELOW_MINIMUM",
		"balance", balance,
		"price", price,
		"risk_pct", rm.riskPct,
		"raw_size", (balance*rm.riskPct/100)/price,
		"min_size", rm.minSize,
	)
}
