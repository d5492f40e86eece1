package gatewayobs

import (
	"context"
	"fmt"

	"trend-trading-bot/internal/interfaces"
	"trend-trading-bot/internal/logger"
	"trend-trading-bot/internal/metrics"
	"trend-trading-bot/internal/trace"
	"trend-trading-bot/internal/types"
)

// observableGateway wraps a Gateway with logging and tracing
type observableGateway struct {
	gateway interfaces.Gateway
	name    string
}

var _ interfaces.Gateway = (*observableGateway)(nil)

// Wrap wraps a gateway with observability middleware
func Wrap(gw interfaces.Gateway, name string) interfaces.Gateway {
	return &observableGateway{
		gateway: gw,
		name:    name,
	}
}

func (og *observableGateway) Start(ctx context.Context) error {
	ctx, span := trace.StartSpan(ctx, "gateway.Start")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Starting gateway", "gateway", og.name)

	if err := og.gateway.Start(ctx); err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to start gateway", err, "gateway", og.name)
		return fmt.Errorf("gateway start failed: %w", err)
	}

	logger.InfoSkip(ctx, 1, "Gateway started successfully", "gateway", og.name)
	return nil
}

func (og *observableGateway) FetchHistory(ctx context.Context, limit int, timeframe string) ([]types.Bar, error) {
	ctx, span := trace.StartSpan(ctx, "gateway.FetchHistory")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Fetching history", "gateway", og.name, "limit", limit, "timeframe", timeframe)

	bars, err := og.gateway.FetchHistory(ctx, limit, timeframe)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch history", err, "gateway", og.name, "limit", limit)
		return nil, err
	}

	logger.DebugSkip(ctx, 1, "History fetched successfully", "gateway", og.name, "count", len(bars))
	return bars, nil
}

func (og *observableGateway) Position(ctx context.Context) (types.Position, error) {
	ctx, span := trace.StartSpan(ctx, "gateway.Position")
	defer span.End()

	pos, err := og.gateway.Position(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to read position", err, "gateway", og.name)
		return types.Position{}, err
	}

	logger.DebugSkip(ctx, 1, "Position read", "gateway", og.name, "symbol", pos.Symbol, "qty", pos.Qty)
	return pos, nil
}

func (og *observableGateway) Balance(ctx context.Context) (float64, error) {
	ctx, span := trace.StartSpan(ctx, "gateway.Balance")
	defer span.End()

	bal, err := og.gateway.Balance(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to read balance", err, "gateway", og.name)
		return 0, err
	}

	metrics.Balance.Set(bal)
	logger.DebugSkip(ctx, 1, "Balance read", "gateway", og.name, "balance", bal)
	return bal, nil
}

func (og *observableGateway) SubmitOrder(ctx context.Context, req types.OrderReq) (types.OrderConfirmation, error) {
	ctx, span := trace.StartSpan(ctx, "gateway.SubmitOrder")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Submitting order",
		"gateway", og.name,
		"symbol", req.Symbol,
		"side", req.Side,
		"size", req.Size,
		"stop", req.StopPrice,
		"target", req.TargetPrice,
		"client_id", req.ClientID,
	)

	conf, err := og.gateway.SubmitOrder(ctx, req)
	if err != nil {
		metrics.OrdersTotal.WithLabelValues(req.Symbol, string(req.Side), types.ErrorClass(err)).Inc()
		logger.ErrorWithErrSkip(ctx, 1, "Failed to submit order", err,
			"gateway", og.name,
			"symbol", req.Symbol,
			"side", req.Side,
			"size", req.Size,
		)
		return types.OrderConfirmation{}, err
	}

	metrics.OrdersTotal.WithLabelValues(req.Symbol, string(req.Side), conf.Status).Inc()
	logger.InfoSkip(ctx, 1, "Order submitted successfully",
		"gateway", og.name,
		"symbol", req.Symbol,
		"order_id", conf.OrderID,
		"status", conf.Status,
	)
	return conf, nil
}
