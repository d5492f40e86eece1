package interfaces

import (
	"context"

	"trend-trading-bot/internal/types"
)

type Engine interface {
	Step(ctx context.Context) (*types.CycleResult, error)
}
