package engine

import (
	"context"
	"fmt"
	"time"

	"trend-trading-bot/internal/interfaces"
	"trend-trading-bot/internal/logger"
	"trend-trading-bot/internal/store"
	"trend-trading-bot/internal/types"
)

// Engine runs one stateless decision cycle per Step. It holds only the
// immutable config and the injected gateway; position and balance are read
// from the gateway every cycle.
type Engine struct {
	cfg   *store.Config
	gw    interfaces.Gateway
	risk  *riskManager
	stops *stopManager
	exec  *orderExecutor
}

func newEngine(cfg *store.Config, gw interfaces.Gateway) *Engine {
	return &Engine{
		cfg:   cfg,
		gw:    gw,
		risk:  newRiskManager(cfg.Risk),
		stops: newStopManager(),
		exec:  newOrderExecutor(gw),
	}
}

func (e *Engine) Step(ctx context.Context) (*types.CycleResult, error) {
	symbol := e.cfg.Symbol
	logger.Debug(ctx, "Starting decision cycle", "symbol", symbol, "timeframe", e.cfg.Timeframe)

	bars, err := e.gw.FetchHistory(ctx, e.cfg.Limit, e.cfg.Timeframe)
	if err != nil {
		if !types.Classified(err) {
			err = fmt.Errorf("%w: %w", types.ErrDataUnavailable, err)
		}
		logger.ErrorWithErr(ctx, "Failed to fetch history", err, "symbol", symbol)
		return nil, err
	}
	logger.Debug(ctx, "History fetched", "symbol", symbol, "count", len(bars))

	res := &types.CycleResult{Symbol: symbol, Time: time.Now().UTC(), Stage: types.StageEvaluating}

	if need := e.cfg.Indicators.WarmUp(); len(bars) < need {
		logger.Warn(ctx, "Insufficient history, signal degrades to NONE",
			"symbol", symbol,
			"error", types.ErrInsufficientHistory,
			"received", len(bars),
			"required", need,
		)
	}

	series := calculateIndicators(bars, e.cfg.Indicators)
	sig := generateSignal(series, e.cfg.Risk)
	res.Signal = sig
	res.Price = series.LastClose()
	if n := series.Len(); n > 0 {
		res.Time = series.Bars[n-1].Ts
	}

	inds := series.Indicators
	logger.Signal(ctx, symbol, string(sig.Side), res.Price,
		"macd_hist", types.Last(inds.MACDHist),
		"ema_fast", types.Last(inds.EMAFast),
		"ema_slow", types.Last(inds.EMASlow),
		"atr", types.Last(inds.ATR),
	)

	if sig.Side == types.SideNone {
		res.Stage = types.StageIdle
		res.Reason = types.ReasonNoSignal
		return res, nil
	}

	pos, err := e.gw.Position(ctx)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to read position", err, "symbol", symbol)
		return nil, err
	}
	if pos.Open() {
		logger.Info(ctx, "Position already open, skipping entry",
			"symbol", symbol,
			"qty", pos.Qty,
			"side", sig.Side,
		)
		res.Stage = types.StageIdle
		res.Reason = types.ReasonPositionOpen
		return res, nil
	}

	balance, err := e.gw.Balance(ctx)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to read balance", err, "symbol", symbol)
		return nil, err
	}

	res.Stage = types.StageSizing
	size, err := e.risk.positionSize(balance, res.Price)
	if err != nil {
		logger.Risk(ctx, symbol, "INVALID_SIZING_INPUT", "balance", balance, "price", res.Price, "error", err)
		logger.ErrorWithErr(ctx, "Position sizing failed", err, "symbol", symbol)
		return nil, err
	}
	if size == 0 {
		e.risk.logSuppressed(ctx, symbol, balance, res.Price)
		res.Stage = types.StageIdle
		res.Reason = types.ReasonSizeBelowMinimum
		return res, nil
	}
	res.Size = size

	lv, err := e.stops.levels(res.Price, sig, types.Last(inds.ATR))
	if err != nil {
		logger.Risk(ctx, symbol, "INVALID_PROTECTIVE_LEVELS", "price", res.Price, "atr", types.Last(inds.ATR), "error", err)
		logger.ErrorWithErr(ctx, "Protective level calculation failed", err, "symbol", symbol)
		return nil, err
	}
	res.Levels = lv

	res.Stage = types.StageSubmitting
	conf, err := e.exec.submit(ctx, symbol, sig.Side, size, res.Price, lv)
	if err != nil {
		return nil, err
	}
	res.Order = &conf
	res.Reason = types.ReasonSubmitted

	logger.Debug(ctx, "Decision cycle completed", "symbol", symbol, "reason", res.Reason)
	return res, nil
}
