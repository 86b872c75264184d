package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewConsoleLoggerWritesHeaderAndFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "info", Format: "console", Console: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("download complete",
		String(FieldComponent, "watcher"),
		String(FieldGID, "2089b05ecca3d829"),
		String("name", "ubuntu.iso"),
	)

	out := buf.String()
	if !strings.Contains(out, "INFO") {
		t.Fatalf("expected level label in output: %q", out)
	}
	if !strings.Contains(out, "[watcher]") {
		t.Fatalf("expected component in output: %q", out)
	}
	if !strings.Contains(out, "Task 2089b05ecca3d829") {
		t.Fatalf("expected task subject in output: %q", out)
	}
	if !strings.Contains(out, "download complete") {
		t.Fatalf("expected message in output: %q", out)
	}
	if !strings.Contains(out, "- Name: ubuntu.iso") {
		t.Fatalf("expected name bullet in output: %q", out)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "yaml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestConsoleSuppressesDebugBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "info", Format: "console", Console: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("poll tick")
	if buf.Len() != 0 {
		t.Fatalf("expected no debug output, got %q", buf.String())
	}
}

func TestFileSinkCapturesDebugAndRunID(t *testing.T) {
	var buf bytes.Buffer
	logPath := filepath.Join(t.TempDir(), "hauld.log")
	logger, err := New(Options{
		Level:    "info",
		Format:   "console",
		Console:  &buf,
		FilePath: logPath,
		RunID:    "run-1234",
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Debug("rpc call", String("rpc_method", "aria2.tellActive"))

	if strings.Contains(buf.String(), "rpc call") {
		t.Fatalf("expected console to suppress debug, got %q", buf.String())
	}
	contents, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	out := string(contents)
	if !strings.Contains(out, `"level":"debug"`) {
		t.Fatalf("expected debug record in file: %q", out)
	}
	if !strings.Contains(out, `"run_id":"run-1234"`) {
		t.Fatalf("expected run_id in file records: %q", out)
	}
	if !strings.Contains(out, "aria2.tellActive") {
		t.Fatalf("expected rpc method attr in file records: %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"unknown": slog.LevelInfo,
	}
	for input, want := range cases {
		if got := parseLevel(input); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestWithContextAttachesFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "debug", Format: "console", Console: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := WithGID(t.Context(), "abcdef0123456789")
	ctx = WithBackend(ctx, "s3")
	WithContext(ctx, logger).Debug("upload attempt")

	out := buf.String()
	if !strings.Contains(out, "Task abcdef0123456789 (s3)") {
		t.Fatalf("expected subject with gid and backend, got %q", out)
	}
}

func TestComponentLoggerTagsRecords(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "info", Format: "console", Console: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	NewComponentLogger(logger, "uploader").Info("job claimed")
	if !strings.Contains(buf.String(), "[uploader]") {
		t.Fatalf("expected component tag, got %q", buf.String())
	}
}
