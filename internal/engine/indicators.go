package engine

import (
	"trend-trading-bot/internal/store"
	"trend-trading-bot/internal/ta"
	"trend-trading-bot/internal/types"
)

// calculateIndicators rebuilds the full indicator set from base OHLC columns.
// Each transform reads only the bars, so the order they run in is irrelevant.
func calculateIndicators(bars []types.Bar, cfg store.IndicatorConfig) types.Series {
	closes := make([]float64, len(bars))
	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))

	for i, b := range bars {
		closes[i] = b.Close
		highs[i] = b.High
		lows[i] = b.Low
	}

	var inds types.Indicators
	inds.MACD, inds.MACDSignal, inds.MACDHist = ta.MACD(closes, cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal)
	inds.EMAFast = ta.EMA(closes, cfg.EMAFast)
	inds.EMASlow = ta.EMA(closes, cfg.EMASlow)
	inds.ATR = ta.ATR(highs, lows, closes, cfg.ATRPeriod)

	return types.Series{Bars: bars, Indicators: inds}
}
