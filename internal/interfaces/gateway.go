package interfaces

import (
	"context"

	"trend-trading-bot/internal/types"
)

// Gateway is the venue: market data, account state and order placement.
type Gateway interface {
	// Start validates credentials and the configured instrument.
	Start(ctx context.Context) error

	// FetchHistory returns up to limit bars of the given timeframe, oldest first.
	FetchHistory(ctx context.Context, limit int, timeframe string) ([]types.Bar, error)

	// Position returns current exposure for the traded instrument.
	Position(ctx context.Context) (types.Position, error)

	// Balance returns the free balance in quote currency.
	Balance(ctx context.Context) (float64, error)

	// SubmitOrder places the entry together with its protective legs.
	SubmitOrder(ctx context.Context, req types.OrderReq) (types.OrderConfirmation, error)
}

// HistorySource is the market-data half of a Gateway.
type HistorySource interface {
	FetchHistory(ctx context.Context, limit int, timeframe string) ([]types.Bar, error)
}
