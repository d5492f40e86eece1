package trace

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	serviceName    = "trend-trading-bot"
	serviceVersion = "1.0.0"
)

var (
	tracer         trace.Tracer
	tracerProvider *sdktrace.TracerProvider
	enabled        bool
	sink           *os.File
)

// Config selects where finished spans are written and how many root
// cycles are kept.
type Config struct {
	Enabled     bool
	Output      string  // "stderr", "stdout" or a file path
	PrettyPrint bool    // indented JSON, one span per block
	SampleRatio float64 // share of root spans kept, 0..1
}

// LoadConfigFromEnv reads LOG_TRACING_ENABLED, TRACE_OUTPUT, TRACE_PRETTY and
// TRACE_SAMPLE_RATIO.
func LoadConfigFromEnv() Config {
	return Config{
		Enabled:     getEnv("LOG_TRACING_ENABLED", "false") == "true",
		Output:      getEnv("TRACE_OUTPUT", "stderr"),
		PrettyPrint: getEnv("TRACE_PRETTY", "false") == "true",
		SampleRatio: parseRatio(os.Getenv("TRACE_SAMPLE_RATIO")),
	}
}

// parseRatio falls back to keeping every span when v is empty or outside 0..1.
func parseRatio(v string) float64 {
	r, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || r < 0 || r > 1 {
		return 1
	}
	return r
}

func Init() error {
	return InitWithConfig(LoadConfigFromEnv())
}

// InitWithConfig installs the global tracer provider. Spans default to
// stderr so they stay out of the JSON log stream on stdout.
func InitWithConfig(cfg Config) error {
	enabled = cfg.Enabled
	if !enabled {
		return nil
	}

	w, err := openOutput(cfg.Output)
	if err != nil {
		enabled = false
		return err
	}

	opts := []stdouttrace.Option{stdouttrace.WithWriter(w)}
	if cfg.PrettyPrint {
		opts = append(opts, stdouttrace.WithPrettyPrint())
	}
	exporter, err := stdouttrace.New(opts...)
	if err != nil {
		enabled = false
		return err
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		enabled = false
		return err
	}

	tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	)
	otel.SetTracerProvider(tracerProvider)
	tracer = tracerProvider.Tracer(serviceName)
	return nil
}

func openOutput(out string) (io.Writer, error) {
	switch strings.ToLower(out) {
	case "", "stderr":
		return os.Stderr, nil
	case "stdout":
		return os.Stdout, nil
	}
	f, err := os.OpenFile(out, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open trace output: %w", err)
	}
	sink = f
	return f, nil
}

// Shutdown flushes pending spans and closes a file output.
func Shutdown(ctx context.Context) error {
	var err error
	if tracerProvider != nil {
		err = tracerProvider.Shutdown(ctx)
		tracerProvider = nil
	}
	if sink != nil {
		if cerr := sink.Close(); err == nil {
			err = cerr
		}
		sink = nil
	}
	enabled = false
	tracer = nil
	return err
}

// StartSpan is a no-op returning the parent span when tracing is off.
func StartSpan(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if !enabled || tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, spanName, opts...)
}

func Enabled() bool {
	return enabled
}

func GetTraceFields(ctx context.Context) (traceID, spanID string, ok bool) {
	if !enabled {
		return "", "", false
	}
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return "", "", false
	}
	return span.SpanContext().TraceID().String(),
		span.SpanContext().SpanID().String(),
		true
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
