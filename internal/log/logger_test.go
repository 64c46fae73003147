package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"info", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNew_JSONFormatTagsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Format: "json", Component: ComponentWorker, Output: &buf})

	logger.Info("hello", FieldUserID, 7)
	logger.Debug("dropped")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("not a single JSON line: %v (%q)", err, buf.String())
	}
	if rec[FieldComponent] != ComponentWorker || rec["msg"] != "hello" || rec[FieldUserID] != float64(7) {
		t.Errorf("record = %v", rec)
	}
}

func TestLogger_WithComponentDoesNotDuplicate(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Format: "text", Output: &buf}).WithComponent(ComponentHTTP)
	logger.Warn("x")

	if n := strings.Count(buf.String(), "component="); n != 1 {
		t.Errorf("component appears %d times: %s", n, buf.String())
	}
	if !strings.Contains(buf.String(), "component=http") {
		t.Errorf("output = %s", buf.String())
	}
}

func TestMiddleware_RequestIDInContextLogger(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Format: "text", Output: &buf})

	h := Middleware(base, func(*http.Request) string { return "req-1" })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).Info("inside")
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if !strings.Contains(buf.String(), "request_id=req-1") {
		t.Errorf("output = %s", buf.String())
	}
}

func TestFromContext_Default(t *testing.T) {
	if l := FromContext(context.Background()); l == nil || l.Component() != "unknown" {
		t.Errorf("FromContext = %+v", l)
	}
}

func TestStructuredLogger(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Format: "json", Output: &buf}))

	sl.LogProfileLoaded(context.Background(), 3, "alice", 2, 1500, true)
	sl.LogError(context.Background(), "export failed", errors.New("boom"), ComponentSheets, OpExport, nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines", len(lines))
	}
	if !strings.Contains(lines[0], `"stale":true`) || !strings.Contains(lines[0], `"component":"profile"`) {
		t.Errorf("profile line = %s", lines[0])
	}
	if !strings.Contains(lines[1], `"error":"boom"`) || !strings.Contains(lines[1], `"operation":"export"`) {
		t.Errorf("error line = %s", lines[1])
	}
}
