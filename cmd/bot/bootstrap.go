package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"trend-trading-bot/internal/engine"
	"trend-trading-bot/internal/engine/engineobs"
	"trend-trading-bot/internal/eod"
	"trend-trading-bot/internal/eod/eodobs"
	"trend-trading-bot/internal/gateway/bybit"
	"trend-trading-bot/internal/gateway/gatewayobs"
	"trend-trading-bot/internal/gateway/kite"
	"trend-trading-bot/internal/gateway/paper"
	"trend-trading-bot/internal/interfaces"
	"trend-trading-bot/internal/logger"
	"trend-trading-bot/internal/metrics"
	"trend-trading-bot/internal/store"
	"trend-trading-bot/internal/trace"
	"trend-trading-bot/internal/tradelog"

	"github.com/joho/godotenv"
)

// initializeSystem loads .env and starts the logger and tracer
func initializeSystem() error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	// Tracing is optional; the bot runs without it.
	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}

	return nil
}

// loadConfig loads and validates the YAML configuration at path
func loadConfig(ctx context.Context, path string) (*store.Config, error) {
	cfg, err := store.LoadConfig(path)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", path)
		return nil, err
	}
	logger.Info(ctx, "Config loaded",
		"path", path,
		"mode", cfg.Mode,
		"gateway", cfg.Gateway,
		"symbol", cfg.Symbol,
		"timeframe", cfg.Timeframe,
		"poll_seconds", cfg.PollSeconds,
		"limit", cfg.Limit,
	)
	return cfg, nil
}

// compressOldLogs compresses old order journals if retention is configured
func compressOldLogs(ctx context.Context) {
	v := os.Getenv("TRADER_LOG_RETENTION_DAYS")
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logger.Warn(ctx, "Ignoring invalid TRADER_LOG_RETENTION_DAYS", "value", v)
		return
	}
	if err := tradelog.CompressOlder(n); err != nil {
		logger.Warn(ctx, "Failed to compress old logs", "error", err)
	}
}

// venueGateway builds the configured real venue, or nil for PAPER. In
// DRY_RUN the Bybit venue is read-only and needs no keys.
func venueGateway(cfg *store.Config) interfaces.Gateway {
	switch cfg.Gateway {
	case "BYBIT":
		return bybit.New(bybit.Params{
			APIKey:       os.Getenv("BYBIT_API_KEY"),
			APISecret:    os.Getenv("BYBIT_API_SECRET"),
			Symbol:       cfg.Symbol,
			Category:     cfg.Bybit.Category,
			Testnet:      cfg.Bybit.Testnet,
			BaseURL:      cfg.Bybit.BaseURL,
			RecvWindowMs: cfg.Bybit.RecvWindowMs,
			Leverage:     cfg.Leverage,
			DataOnly:     cfg.Mode == "DRY_RUN",
		})
	case "KITE":
		return kite.New(kite.Params{
			APIKey:          os.Getenv("KITE_API_KEY"),
			AccessToken:     os.Getenv("KITE_ACCESS_TOKEN"),
			Exchange:        cfg.Kite.Exchange,
			Symbol:          cfg.Symbol,
			InstrumentToken: cfg.Kite.InstrumentToken,
			Product:         cfg.Kite.Product,
			BaseURL:         cfg.Kite.BaseURL,
		})
	}
	return nil
}

// initializeGateway builds, wraps and starts the gateway the engine trades
// through. In DRY_RUN a real venue only supplies bars and the paper gateway
// fills the orders.
func initializeGateway(ctx context.Context, cfg *store.Config) (interfaces.Gateway, error) {
	venue := venueGateway(cfg)

	if cfg.Mode == "LIVE" {
		if venue == nil {
			return nil, fmt.Errorf("LIVE mode needs a real gateway, got %s", cfg.Gateway)
		}
		gw := gatewayobs.Wrap(venue, cfg.Gateway)
		if err := gw.Start(ctx); err != nil {
			return nil, err
		}
		logger.Warn(ctx, "Running in LIVE mode - orders go to the venue", "gateway", cfg.Gateway)
		return gw, nil
	}

	params := paper.Params{
		Symbol:          cfg.Symbol,
		StartingBalance: cfg.Paper.StartingBalance,
		StartPrice:      cfg.Paper.StartPrice,
		Seed:            cfg.Paper.Seed,
	}
	params.BarInterval, _ = store.TimeframeDuration(cfg.Timeframe)

	if venue != nil {
		source := gatewayobs.Wrap(venue, cfg.Gateway)
		if err := source.Start(ctx); err != nil {
			return nil, err
		}
		params.Source = source
		logger.Info(ctx, "Using real bars for paper fills", "source", cfg.Gateway)
	} else {
		logger.Info(ctx, "Using synthetic bars for paper fills")
	}

	gw := gatewayobs.Wrap(paper.New(params), "PAPER")
	if err := gw.Start(ctx); err != nil {
		return nil, err
	}
	logger.Warn(ctx, "Running in DRY_RUN mode - orders will be simulated")
	return gw, nil
}

// initializeEngine builds the decision engine with observability
func initializeEngine(cfg *store.Config, gw interfaces.Gateway) interfaces.Engine {
	return engineobs.Wrap(engine.New(cfg, gw), cfg.Symbol)
}

// initializeEOD builds the daily summarizer with observability
func initializeEOD() interfaces.EodSummarizer {
	return eodobs.Wrap(eod.NewSummarizer())
}

// initializeMetrics starts the Prometheus endpoint, or returns nil when
// metrics_addr is empty
func initializeMetrics(ctx context.Context, cfg *store.Config) *http.Server {
	if cfg.MetricsAddr == "" {
		return nil
	}
	logger.Info(ctx, "Serving metrics", "addr", cfg.MetricsAddr)
	return metrics.Serve(cfg.MetricsAddr)
}
