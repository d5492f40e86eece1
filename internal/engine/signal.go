package engine

import (
	"math"

	"trend-trading-bot/internal/store"
	"trend-trading-bot/internal/types"
)

// generateSignal reads only the last row. Momentum and trend must agree;
// a zero histogram or any undefined value yields NONE.
func generateSignal(s types.Series, risk store.RiskConfig) types.Signal {
	sig := types.Signal{
		Side:           types.SideNone,
		StopLossMult:   risk.StopLossATR,
		TakeProfitMult: risk.TakeProfitATR,
	}

	hist := types.Last(s.Indicators.MACDHist)
	fast := types.Last(s.Indicators.EMAFast)
	slow := types.Last(s.Indicators.EMASlow)
	if math.IsNaN(hist) || math.IsNaN(fast) || math.IsNaN(slow) {
		return sig
	}

	switch {
	case hist > 0 && fast > slow:
		sig.Side = types.SideLong
	case hist < 0 && fast < slow:
		sig.Side = types.SideShort
	}
	return sig
}
