package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trend-trading-bot/internal/interfaces"
	"trend-trading-bot/internal/logger"
	"trend-trading-bot/internal/trace"
	"trend-trading-bot/internal/types"
)

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config")
	flag.Parse()

	must(initializeSystem())
	defer logger.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := loadConfig(ctx, *configPath)
	must(err)

	compressOldLogs(ctx)

	gw, err := initializeGateway(ctx, cfg)
	if err != nil {
		logger.ErrorWithErr(ctx, "Gateway failed to start", err, "gateway", cfg.Gateway)
		os.Exit(1)
	}

	eng := initializeEngine(cfg, gw)
	summarizer := initializeEOD()
	srv := initializeMetrics(ctx, cfg)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	tick := time.NewTicker(cfg.PollInterval())
	defer tick.Stop()
	eodTick := time.NewTicker(60 * time.Second)
	defer eodTick.Stop()

	logger.Info(ctx, "Bot started", "symbol", cfg.Symbol, "mode", cfg.Mode, "gateway", cfg.Gateway)

	runCycle(ctx, eng)
	for {
		select {
		case <-tick.C:
			runCycle(ctx, eng)
		case <-eodTick.C:
			runEOD(ctx, summarizer)
		case s := <-sigc:
			logger.Info(ctx, "Shutting down", "signal", s.String())
			cancel()
			shutdown(srv)
			return
		case <-ctx.Done():
			return
		}
	}
}

// runCycle executes one decision cycle. Failures are logged and the loop
// carries on with the next tick.
func runCycle(ctx context.Context, eng interfaces.Engine) {
	res, err := eng.Step(ctx)
	if err != nil {
		logger.ErrorWithErr(ctx, "Step error", err, "error_class", types.ErrorClass(err))
		return
	}
	b, err := json.Marshal(res)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to encode cycle result", err)
		return
	}
	logger.Info(ctx, "Cycle result", "result", json.RawMessage(b))
}

func runEOD(ctx context.Context, summarizer interfaces.EodSummarizer) {
	ok, day := summarizer.ShouldRunNow()
	if !ok {
		return
	}
	p, err := summarizer.SummarizeDay(day)
	if err != nil {
		logger.ErrorWithErr(ctx, "EOD summary failed", err, "day", day.Format("2006-01-02"))
		return
	}
	if p != "" {
		logger.Info(ctx, "EOD CSV written", "path", p)
	}
}

func shutdown(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn(ctx, "Metrics server shutdown failed", "error", err)
		}
	}
	if err := trace.Shutdown(ctx); err != nil {
		logger.Warn(ctx, "Tracer shutdown failed", "error", err)
	}
}
