package engineobs

import (
	"context"
	"time"

	"trend-trading-bot/internal/interfaces"
	"trend-trading-bot/internal/logger"
	"trend-trading-bot/internal/metrics"
	"trend-trading-bot/internal/trace"
	"trend-trading-bot/internal/types"
)

type observableEngine struct {
	engine interfaces.Engine
	symbol string
}

var _ interfaces.Engine = (*observableEngine)(nil)

// Wrap adds a span, start/finish logs and cycle metrics around eng.
func Wrap(eng interfaces.Engine, symbol string) interfaces.Engine {
	return &observableEngine{
		engine: eng,
		symbol: symbol,
	}
}

func (oe *observableEngine) Step(ctx context.Context) (*types.CycleResult, error) {
	ctx, span := trace.StartSpan(ctx, "engine.Step")
	defer span.End()

	start := time.Now()
	defer func() { metrics.CycleDuration.Observe(time.Since(start).Seconds()) }()

	logger.InfoSkip(ctx, 1, "Starting decision cycle", "symbol", oe.symbol)

	result, err := oe.engine.Step(ctx)
	if err != nil {
		metrics.CyclesTotal.WithLabelValues(oe.symbol, types.ErrorClass(err)).Inc()
		logger.ErrorWithErrSkip(ctx, 1, "Decision cycle failed", err,
			"symbol", oe.symbol,
			"error_class", types.ErrorClass(err),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	metrics.CyclesTotal.WithLabelValues(oe.symbol, result.Reason).Inc()
	metrics.SignalsTotal.WithLabelValues(oe.symbol, string(result.Signal.Side)).Inc()

	logger.InfoSkip(ctx, 1, "Decision cycle completed",
		"symbol", oe.symbol,
		"side", result.Signal.Side,
		"stage", result.Stage,
		"reason", result.Reason,
		"size", result.Size,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return result, nil
}
