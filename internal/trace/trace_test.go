package trace

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("LOG_TRACING_ENABLED", "true")
	t.Setenv("TRACE_OUTPUT", "/tmp/spans.json")
	t.Setenv("TRACE_PRETTY", "")
	t.Setenv("TRACE_SAMPLE_RATIO", "0.25")

	c := LoadConfigFromEnv()
	if !c.Enabled || c.Output != "/tmp/spans.json" || c.PrettyPrint || c.SampleRatio != 0.25 {
		t.Errorf("Unexpected config %+v", c)
	}
}

func TestParseRatio(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"", 1},
		{"0", 0},
		{"0.5", 0.5},
		{"1.5", 1},
		{"-0.1", 1},
		{"half", 1},
	}
	for _, tt := range tests {
		if got := parseRatio(tt.in); got != tt.want {
			t.Errorf("parseRatio(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDisabledIsNoop(t *testing.T) {
	if err := InitWithConfig(Config{Enabled: false}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	ctx, span := StartSpan(context.Background(), "engine.Step")
	defer span.End()
	if span.SpanContext().IsValid() {
		t.Error("Expected no real span when tracing is off")
	}
	if _, _, ok := GetTraceFields(ctx); ok {
		t.Error("Expected no trace fields when tracing is off")
	}
}

func TestSpansWrittenToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spans.json")
	if err := InitWithConfig(Config{Enabled: true, Output: path, SampleRatio: 1}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	ctx, span := StartSpan(context.Background(), "engine.Step")
	traceID, spanID, ok := GetTraceFields(ctx)
	if !ok || traceID == "" || spanID == "" {
		t.Fatalf("Expected trace fields on a sampled span, got %q %q %v", traceID, spanID, ok)
	}
	span.End()

	if err := Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Read spans: %v", err)
	}
	if !strings.Contains(string(b), `"engine.Step"`) || !strings.Contains(string(b), traceID) {
		t.Errorf("Expected the span in the output file, got %s", b)
	}
}

func TestZeroRatioDropsRootSpans(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spans.json")
	if err := InitWithConfig(Config{Enabled: true, Output: path, SampleRatio: 0}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	_, span := StartSpan(context.Background(), "engine.Step")
	if span.IsRecording() {
		t.Error("Expected an unsampled span at ratio 0")
	}
	span.End()

	if err := Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if b, _ := os.ReadFile(path); strings.Contains(string(b), "engine.Step") {
		t.Errorf("Expected no exported spans, got %s", b)
	}
}

func TestBadOutputPath(t *testing.T) {
	err := InitWithConfig(Config{Enabled: true, Output: filepath.Join(t.TempDir(), "missing", "spans.json")})
	if err == nil {
		t.Fatal("Expected an error for an unwritable output")
	}
	if Enabled() {
		t.Error("Expected tracing to stay off after a failed init")
	}
}
