package engine

import (
	"fmt"
	"math"

	"trend-trading-bot/internal/types"
)

// stopManager derives protective levels as ATR multiples away from entry.
type stopManager struct{}

func newStopManager() *stopManager {
	return &stopManager{}
}

// levels computes the stop-loss and take-profit prices for an entry.
//
//   - LONG:  stop = price - slMult*atr, target = price + tpMult*atr
//   - SHORT: stop = price + slMult*atr, target = price - tpMult*atr
//
// A zero multiplier suppresses that leg and its level is reported as 0.
// Non-positive ATR would invert the levels, so it is rejected along with
// any present level that lands on the wrong side of price.
func (sm *stopManager) levels(price float64, sig types.Signal, atr float64) (types.Levels, error) {
	if !(price > 0) {
		return types.Levels{}, fmt.Errorf("%w: price must be positive, got %g", types.ErrInvalidConfiguration, price)
	}
	if !(atr > 0) || math.IsInf(atr, 0) {
		return types.Levels{}, fmt.Errorf("%w: volatility must be positive, got %g", types.ErrInvalidConfiguration, atr)
	}

	stopDist := sig.StopLossMult * atr
	targetDist := sig.TakeProfitMult * atr

	var lv types.Levels
	switch sig.Side {
	case types.SideLong:
		lv = types.Levels{Stop: price - stopDist, Target: price + targetDist}
	case types.SideShort:
		lv = types.Levels{Stop: price + stopDist, Target: price - targetDist}
	default:
		return types.Levels{}, fmt.Errorf("%w: no protective levels for side %s", types.ErrInvalidConfiguration, sig.Side)
	}
	if sig.StopLossMult == 0 {
		lv.Stop = 0
	}
	if sig.TakeProfitMult == 0 {
		lv.Target = 0
	}

	if err := checkLevels(price, sig.Side, lv); err != nil {
		return types.Levels{}, err
	}
	return lv, nil
}

func checkLevels(price float64, side types.Side, lv types.Levels) error {
	if lv.Stop != 0 {
		if lv.Stop < 0 || (side == types.SideLong && lv.Stop >= price) || (side == types.SideShort && lv.Stop <= price) {
			return fmt.Errorf("%w: stop %g on wrong side of %s entry %g", types.ErrInvalidConfiguration, lv.Stop, side, price)
		}
	}
	if lv.Target != 0 {
		if lv.Target < 0 || (side == types.SideLong && lv.Target <= price) || (side == types.SideShort && lv.Target >= price) {
			return fmt.Errorf("%w: target %g on wrong side of %s entry %g", types.ErrInvalidConfiguration, lv.Target, side, price)
		}
	}
	return nil
}
