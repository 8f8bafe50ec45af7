package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reeler/internal/services"
)

func newTestLogger(format string) (*slog.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelDebug)
	var handler slog.Handler
	if format == "json" {
		handler = newJSONHandler(buf, levelVar, false)
	} else {
		handler = newConsoleHandler(buf, levelVar, false)
	}
	return slog.New(handler), buf
}

func TestConsoleHandlerHoistsComponent(t *testing.T) {
	logger, buf := newTestLogger("console")
	logger = NewComponentLogger(logger, "workflow")

	logger.Info("job started", Int64(FieldJobID, 7), String("title", "Sample Video"))

	line := strings.TrimSpace(buf.String())
	if !strings.Contains(line, " INFO workflow: job started") {
		t.Fatalf("unexpected line: %q", line)
	}
	if strings.Contains(line, "component=") {
		t.Fatalf("component should be hoisted out of the attr list: %q", line)
	}
	if !strings.Contains(line, "job_id=7") {
		t.Fatalf("missing job_id attr: %q", line)
	}
	if !strings.Contains(line, `title="Sample Video"`) {
		t.Fatalf("values with spaces should be quoted: %q", line)
	}
}

func TestConsoleHandlerFormatsErrors(t *testing.T) {
	logger, buf := newTestLogger("console")

	logger.Error("stage failed", Error(errors.New("exit code 1")))

	line := strings.TrimSpace(buf.String())
	if !strings.Contains(line, "ERROR") {
		t.Fatalf("missing level label: %q", line)
	}
	if !strings.Contains(line, `error="exit code 1"`) {
		t.Fatalf("error attr not rendered: %q", line)
	}
}

func TestJSONHandlerKeyNames(t *testing.T) {
	logger, buf := newTestLogger("json")

	logger.Warn("slow fetch", String(FieldStage, "fetch"))

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if record["level"] != "warn" {
		t.Fatalf("level = %v, want warn", record["level"])
	}
	if record["msg"] != "slow fetch" {
		t.Fatalf("msg = %v", record["msg"])
	}
	if _, ok := record["ts"]; !ok {
		t.Fatal("missing ts key")
	}
	if record["stage"] != "fetch" {
		t.Fatalf("stage = %v", record["stage"])
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
		" Debug ": slog.LevelDebug,
	}
	for input, want := range cases {
		if got := parseLevel(input); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestWithContextAddsJobFields(t *testing.T) {
	logger, buf := newTestLogger("console")

	ctx := services.WithJobID(context.Background(), 12)
	ctx = services.WithStage(ctx, "transcode")
	WithContext(ctx, logger).Info("progress")

	line := strings.TrimSpace(buf.String())
	if !strings.Contains(line, "job_id=12") || !strings.Contains(line, "stage=transcode") {
		t.Fatalf("context fields missing: %q", line)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestNewWritesToFileOutputs(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "nested", "reeler.log")

	logger, err := New(Options{
		Level:       "info",
		Format:      "console",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("hello from test")

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "hello from test") {
		t.Fatalf("log file missing record: %q", string(data))
	}
}
