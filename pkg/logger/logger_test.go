package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"
)

func TestLoggerInit(t *testing.T) {
	// Test development mode
	err := Init()
	if err != nil {
		t.Fatalf("failed to initialize development logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	logger := Get()
	if logger == nil {
		t.Fatal("logger is nil after initialization")
	}

	// Test production mode
	err = Init()
	if err != nil {
		t.Fatalf("failed to initialize production logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	logger = Get()
	if logger == nil {
		t.Fatal("logger is nil after initialization")
	}
}

// Basic logging test (slog-backed; no Sugar)
func TestLoggerBasic(t *testing.T) {
	err := Init()
	if err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	logger := Get()
	if logger == nil {
		t.Fatal("logger is nil")
	}

	ctx := context.Background()
	logger.Info(ctx, "test message", String("k", "v"))
}

func TestLoggerNamed(t *testing.T) {
	err := Init()
	if err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	namedLogger := Named("test")
	if namedLogger == nil {
		t.Fatal("named logger is nil")
	}

	ctx := context.Background()
	namedLogger.Info(ctx, "test message")
}

func TestLoggerJSONFormat(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	if err := SetFormat("json"); err != nil {
		t.Fatalf("failed to set json format: %v", err)
	}
	defer func() { _ = SetFormat("text") }()

	when := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	Get().Info(context.Background(), "picked", Bool("dry_run", true), Time("date", when), Int("candidates", 6))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected a JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "picked" {
		t.Errorf("expected msg picked, got %v", entry["msg"])
	}
	if entry["dry_run"] != true {
		t.Errorf("expected dry_run true, got %v", entry["dry_run"])
	}
	if entry["date"] != "2024-03-01T00:00:00Z" {
		t.Errorf("unexpected date %v", entry["date"])
	}
}

func TestLoggerSetFormatRejectsUnknown(t *testing.T) {
	if err := SetFormat("xml"); err == nil {
		t.Error("expected an error for an unknown format")
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	if err := SetLevelString("warn"); err != nil {
		t.Fatalf("failed to set level: %v", err)
	}
	defer func() { _ = SetLevelString("info") }()

	ctx := context.Background()
	Get().Info(ctx, "hidden")
	Get().Warn(ctx, "shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line should be filtered, got %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("warn line should be written, got %q", out)
	}

	if err := SetLevelString("loud"); err == nil {
		t.Error("expected an error for an unknown level")
	}
}

func TestNamedLoggerFollowsOutput(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	named := Named("service").Named("picker")

	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)
	if err := SetFormat("json"); err != nil {
		t.Fatalf("failed to set json format: %v", err)
	}
	defer func() { _ = SetFormat("text") }()

	named.Warn(context.Background(), "late switch")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected a JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["logger"] != "service.picker" {
		t.Errorf("expected logger service.picker, got %v", entry["logger"])
	}
	if src, _ := entry["source"].(string); !strings.Contains(src, "logger_test.go") {
		t.Errorf("expected source in logger_test.go, got %v", entry["source"])
	}
}
