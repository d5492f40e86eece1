package engine

import (
	"context"

	"github.com/google/uuid"

	"trend-trading-bot/internal/interfaces"
	"trend-trading-bot/internal/logger"
	"trend-trading-bot/internal/tradelog"
	"trend-trading-bot/internal/types"
)

// orderExecutor submits the entry bundle and journals accepted orders.
type orderExecutor struct {
	gateway interfaces.Gateway
}

func newOrderExecutor(gw interfaces.Gateway) *orderExecutor {
	return &orderExecutor{gateway: gw}
}

// submit places exactly one request. A failure is returned as-is and never
// retried; the next cycle re-reads position state before trying again.
func (oe *orderExecutor) submit(ctx context.Context, symbol string, side types.Side, size, price float64, lv types.Levels) (types.OrderConfirmation, error) {
	req := types.OrderReq{
		Symbol:      symbol,
		Side:        side,
		Size:        size,
		StopPrice:   lv.Stop,
		TargetPrice: lv.Target,
		ClientID:    uuid.NewString(),
	}

	op := logger.StartOperation(ctx, "engine.submit",
		"symbol", symbol,
		"side", string(side),
		"size", size,
		"client_id", req.ClientID,
	)
	conf, err := oe.gateway.SubmitOrder(op.GetContext(), req)
	if err != nil {
		op.EndWithError(err, "price", price, "error_class", types.ErrorClass(err))
		return types.OrderConfirmation{}, err
	}
	op.End("order_id", conf.OrderID, "status", conf.Status)

	logger.Order(ctx, symbol, string(side), size, price, conf.OrderID,
		"stop", lv.Stop,
		"target", lv.Target,
		"status", conf.Status,
		"legs", conf.Legs,
	)

	if err := tradelog.Append(tradelog.Entry{
		Symbol:   symbol,
		Side:     string(side),
		Size:     size,
		Price:    price,
		Stop:     lv.Stop,
		Target:   lv.Target,
		OrderID:  conf.OrderID,
		ClientID: req.ClientID,
		Status:   conf.Status,
	}); err != nil {
		logger.ErrorWithErr(ctx, "Failed to journal order", err, "order_id", conf.OrderID)
	}

	return conf, nil
}
