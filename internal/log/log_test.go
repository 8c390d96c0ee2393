package log

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func bufferLogger(level slog.Level) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return New(Config{Level: level, Component: ComponentHTTP, Output: &buf}), &buf
}

func TestLoggerTagsComponent(t *testing.T) {
	logger, buf := bufferLogger(slog.LevelInfo)
	logger.WithComponent(ComponentCache).Info("swept", FieldCount, 3)

	out := buf.String()
	if !strings.Contains(out, "component=cache") || !strings.Contains(out, "count=3") {
		t.Fatalf("unexpected record %q", out)
	}
	if strings.Count(out, "component=") != 1 {
		t.Fatalf("component should appear once: %q", out)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	logger, buf := bufferLogger(slog.LevelInfo)
	h := Middleware(logger)(RequestIDMiddleware(func(*http.Request) string { return "req-1" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			FromContext(r.Context()).InfoContext(r.Context(), "handled")
		})))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !strings.Contains(buf.String(), "request_id=req-1") {
		t.Fatalf("request id missing: %q", buf.String())
	}
}

func TestFromContextFallback(t *testing.T) {
	if l := FromContext(context.Background()); l == nil || l.Component() != ComponentApp {
		t.Fatalf("unexpected fallback logger %+v", l)
	}
}

func TestLogErrorType(t *testing.T) {
	logger, buf := bufferLogger(slog.LevelInfo)
	sl := NewStructuredLogger(logger)

	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("fetch: %w", context.DeadlineExceeded), ErrorTypeTimeout},
		{errors.New("boom"), ErrorTypeInternal},
	}
	for _, tt := range tests {
		buf.Reset()
		sl.LogError(context.Background(), "failed", tt.err, ComponentRemote, OpList, nil)
		if !strings.Contains(buf.String(), "error_type="+tt.want) {
			t.Errorf("%v: got %q", tt.err, buf.String())
		}
	}

	buf.Reset()
	sl.LogError(context.Background(), "failed", errors.New("x"), ComponentRemote, OpList, LogFields{FieldErrorType: ErrorTypeUpstream})
	if !strings.Contains(buf.String(), "error_type="+ErrorTypeUpstream) {
		t.Errorf("explicit type should win: %q", buf.String())
	}
}

func TestLogHTTPEndLevel(t *testing.T) {
	logger, buf := bufferLogger(slog.LevelInfo)
	sl := NewStructuredLogger(logger)
	r := httptest.NewRequest(http.MethodGet, "/api/banks", nil)

	sl.LogHTTPStart(context.Background(), r, "10.0.0.1")
	if buf.Len() != 0 {
		t.Fatalf("start record should be debug only: %q", buf.String())
	}
	sl.LogHTTPEnd(context.Background(), r, http.StatusBadGateway, 12, "10.0.0.1")
	if !strings.Contains(buf.String(), "level=ERROR") || !strings.Contains(buf.String(), "status_code=502") {
		t.Fatalf("unexpected record %q", buf.String())
	}
}
