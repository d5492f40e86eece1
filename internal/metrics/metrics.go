package metrics

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"trend-trading-bot/internal/logger"
)

var (
	// CyclesTotal counts finished cycles by outcome: a gate reason such as
	// no_signal or submitted, or an error class such as data_unavailable.
	CyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bot_cycles_total", Help: "Decision cycles by outcome"},
		[]string{"symbol", "outcome"},
	)
	SignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bot_signals_total", Help: "Signals generated"},
		[]string{"symbol", "side"},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bot_orders_total", Help: "Orders submitted"},
		[]string{"symbol", "side", "status"},
	)
	Balance = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "bot_balance_quote", Help: "Last observed free balance in quote currency"},
	)
	CycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bot_cycle_duration_seconds",
			Help:    "Wall time of one decision cycle",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)
)

func init() {
	prometheus.MustRegister(CyclesTotal, SignalsTotal, OrdersTotal, Balance, CycleDuration)
}

// Serve exposes /metrics on addr in the background.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorWithErr(context.Background(), "Metrics server stopped", err, "addr", addr)
		}
	}()
	return srv
}
