package telemetry

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap/zapcore"
)

func TestInitDisabled(t *testing.T) {
	shutdown, err := Init(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestInitWritesTraces(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	shutdown, err := Init(ctx, dir)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	_, span := otel.Tracer("test").Start(ctx, "unit-span")
	span.End()

	counter, err := otel.Meter("test").Int64Counter("unit.counter")
	if err != nil {
		t.Fatal(err)
	}
	counter.Add(ctx, 1)

	if err := shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "traces.log"))
	if err != nil {
		t.Fatalf("read traces: %v", err)
	}
	if len(data) == 0 {
		t.Error("traces.log is empty")
	}
}

func TestNewLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	logger := NewLogger(zapcore.InfoLevel, path)
	logger.Debug("hidden")
	logger.Info("visible")
	logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := string(data); !strings.Contains(got, "visible") || strings.Contains(got, "hidden") {
		t.Errorf("log file = %q", got)
	}
}
