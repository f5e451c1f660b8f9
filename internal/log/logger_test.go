package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newBufferLogger(buf *bytes.Buffer, level slog.Level) *Logger {
	return New(Config{Level: level, Component: ComponentApp, JSON: true, Output: buf})
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, slog.LevelInfo).WithComponent(ComponentWorker)

	logger.Info("refreshed", FieldUserID, "u1")
	out := buf.String()
	if !strings.Contains(out, `"component":"worker"`) || !strings.Contains(out, `"user_id":"u1"`) {
		t.Fatalf("unexpected log line %s", out)
	}
	if logger.Component() != ComponentWorker {
		t.Fatalf("component = %s", logger.Component())
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, slog.LevelInfo)

	h := Middleware(logger)(RequestIDMiddleware(func(*http.Request) string { return "req_abc" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			FromContext(r.Context()).InfoContext(r.Context(), "handled")
		})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if !strings.Contains(buf.String(), `"request_id":"req_abc"`) {
		t.Fatalf("request id missing from %s", buf.String())
	}
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	if l := FromContext(context.Background()); l == nil || l.Component() != "unknown" {
		t.Fatalf("unexpected fallback logger %+v", l)
	}
}

func TestStructuredLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(newBufferLogger(&buf, slog.LevelInfo))
	r := httptest.NewRequest(http.MethodPost, "/api/tasks", nil)

	sl.LogHTTPEnd(context.Background(), r, http.StatusInternalServerError, 12, "10.0.0.1")
	sl.LogRecordChanged(context.Background(), "create", "u1", "task", "t1")
	sl.LogError(context.Background(), "export failed", errors.New("boom"), ComponentSheets, "export", nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], `"level":"ERROR"`) || !strings.Contains(lines[0], `"status_code":500`) {
		t.Errorf("http end line = %s", lines[0])
	}
	if !strings.Contains(lines[1], `"component":"records"`) || !strings.Contains(lines[1], `"operation":"create"`) {
		t.Errorf("record line = %s", lines[1])
	}
	if !strings.Contains(lines[2], `"error":"boom"`) || !strings.Contains(lines[2], `"component":"sheets"`) {
		t.Errorf("error line = %s", lines[2])
	}
}
