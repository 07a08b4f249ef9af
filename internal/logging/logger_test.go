package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bookforge/internal/config"
	"bookforge/internal/logging"
	"bookforge/internal/services"
)

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("hello from config")

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "bookforge.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "hello from config") {
		t.Fatalf("expected message in log file, got %q", content)
	}
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-info.log")
	logger, err := logging.New(logging.Options{
		Format:      "console",
		Level:       "info",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message without caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(content), ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "debug", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message with caller")

	if !strings.Contains(buf.String(), ".go:") {
		t.Fatalf("expected caller information in debug logs, got %q", buf.String())
	}
}

func TestConsoleLoggerRendersBookSubject(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger = logging.NewComponentLogger(logger, "workflow")
	logger.Info("chapter generated",
		logging.BookID("0123456789abcdef"),
		logging.Chapter(3),
		logging.Int("words", 1200),
	)

	line := buf.String()
	for _, fragment := range []string{"INFO workflow: ", "Book 01234567 · Chapter 3", "chapter generated", "words=1200"} {
		if !strings.Contains(line, fragment) {
			t.Fatalf("expected %q in %q", fragment, line)
		}
	}
	if strings.Contains(line, "book_id=") {
		t.Fatalf("expected book id folded into subject, got %q", line)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewInvalidLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "invalid", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("hidden")
	logger.Info("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("expected info level filtering, got %q", buf.String())
	}
}

func TestWithContextAddsFields(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithBookID(ctx, "book-1")
	ctx = services.WithChapter(ctx, 4)
	ctx = services.WithRequestID(ctx, "req-xyz")

	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WithContext(ctx, logger).Info("contextual log")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode json log: %v (%q)", err, buf.String())
	}
	if record[logging.FieldBookID] != "book-1" {
		t.Fatalf("book_id = %v", record[logging.FieldBookID])
	}
	if record[logging.FieldChapter] != float64(4) {
		t.Fatalf("chapter = %v", record[logging.FieldChapter])
	}
	if record[logging.FieldCorrelationID] != "req-xyz" {
		t.Fatalf("correlation_id = %v", record[logging.FieldCorrelationID])
	}
	if record["msg"] != "contextual log" || record["level"] != "info" {
		t.Fatalf("unexpected envelope: %v", record)
	}
}

func TestErrorWithContextAddsKind(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	cause := services.Wrap(services.ErrProvider, "text", "generate", "upstream 503", errors.New("boom"))
	logging.ErrorWithContext(logger, "chapter failed", "chapter_failed", logging.Error(cause))

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if record[logging.FieldErrorKind] != "provider" {
		t.Fatalf("error_kind = %v", record[logging.FieldErrorKind])
	}
	if record[logging.FieldEventType] != "chapter_failed" {
		t.Fatalf("event_type = %v", record[logging.FieldEventType])
	}
}

func TestFormatSubject(t *testing.T) {
	tests := []struct {
		book, chapter, want string
	}{
		{"", "", ""},
		{"abc", "", "Book abc"},
		{"abcdefghijkl", "2", "Book abcdefgh · Chapter 2"},
		{"abc", "0", "Book abc"},
	}
	for _, tt := range tests {
		if got := logging.FormatSubject(tt.book, tt.chapter); got != tt.want {
			t.Fatalf("FormatSubject(%q,%q) = %q, want %q", tt.book, tt.chapter, got, tt.want)
		}
	}
}

func TestForBookTagsEveryRecord(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	scoped := logging.ForBook(logger, "book-7")
	scoped.Info("export rendered", logging.Format("epub"), logging.Provider("anthropic"))
	scoped.Info("chapter stored", logging.Chapter(2))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 records, got %q", buf.String())
	}
	for _, line := range lines {
		var record map[string]any
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			t.Fatalf("decode json log: %v (%q)", err, line)
		}
		if record[logging.FieldBookID] != "book-7" {
			t.Fatalf("book_id = %v in %q", record[logging.FieldBookID], line)
		}
	}
	if !strings.Contains(lines[0], `"format":"epub"`) || !strings.Contains(lines[0], `"provider":"anthropic"`) {
		t.Fatalf("unexpected first record: %q", lines[0])
	}
	if !strings.Contains(lines[1], `"chapter":2`) {
		t.Fatalf("unexpected second record: %q", lines[1])
	}

	if logging.ForBook(nil, "x") == nil {
		t.Fatal("ForBook(nil) should fall back to a no-op logger")
	}
}
