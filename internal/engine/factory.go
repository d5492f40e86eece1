package engine

import (
	"trend-trading-bot/internal/interfaces"
	"trend-trading-bot/internal/store"
)

func New(cfg *store.Config, gw interfaces.Gateway) interfaces.Engine {
	return newEngine(cfg, gw)
}
