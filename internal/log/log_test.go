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

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestStructuredLogger(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(NewText(&buf, slog.LevelDebug, ComponentHisaab))
	ctx := context.Background()

	sl.LogHisaabChanged(ctx, OpCreate, "h1", "u1", "Food", true, 3)
	out := buf.String()
	for _, want := range []string{"Hisaab created", "hisaab_id=h1", "owner_id=u1", "encrypted=true", "item_count=3", "component=hisaab"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %q missing %q", out, want)
		}
	}

	buf.Reset()
	sl.LogError(ctx, "Failed to save", errors.New("disk full"), OpUpdate, nil)
	if !strings.Contains(buf.String(), "error=\"disk full\"") {
		t.Errorf("error not logged: %q", buf.String())
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var buf bytes.Buffer
	base := NewText(&buf, slog.LevelInfo, ComponentHTTP)

	h := Middleware(base)(RequestIDMiddleware(func(context.Context) string { return "req_1" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			FromContext(r.Context()).InfoContext(r.Context(), "inside")
		})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if !strings.Contains(buf.String(), "request_id=req_1") {
		t.Errorf("request id missing from %q", buf.String())
	}
}

func TestFromContextDefault(t *testing.T) {
	if l := FromContext(context.Background()); l.Component() != "unknown" {
		t.Errorf("Component() = %q, want unknown", l.Component())
	}
}

func TestComponentLoggedOnce(t *testing.T) {
	var buf bytes.Buffer
	logger := NewText(&buf, slog.LevelDebug, ComponentApp)

	logger.WithComponent(ComponentHisaab).Info("one")
	if got := strings.Count(buf.String(), "component="); got != 1 {
		t.Errorf("component logged %d times in %q", got, buf.String())
	}
	if !strings.Contains(buf.String(), "component=hisaab") {
		t.Errorf("component not replaced in %q", buf.String())
	}

	buf.Reset()
	logger.With(FieldRequestID, "req_1").WithComponent(ComponentRoom).WarnContext(context.Background(), "two")
	out := buf.String()
	if strings.Count(out, "component=") != 1 || !strings.Contains(out, "component=room") || !strings.Contains(out, "request_id=req_1") {
		t.Errorf("unexpected record %q", out)
	}
}

func TestStructuredLoggerUsesRequestLoggerOnce(t *testing.T) {
	var buf bytes.Buffer
	base := NewText(&buf, slog.LevelInfo, ComponentHTTP)
	sl := NewStructuredLogger(NewText(&bytes.Buffer{}, slog.LevelInfo, ComponentHisaab))

	ctx := WithLogger(context.Background(), base.With(FieldRequestID, "req_2").WithComponent(ComponentHTTP))
	sl.LogAccessDenied(ctx, OpUnlock, "h1", "u1")

	out := buf.String()
	if got := strings.Count(out, "component="); got != 1 {
		t.Errorf("component logged %d times in %q", got, out)
	}
	for _, want := range []string{"component=hisaab", "request_id=req_2", "hisaab_id=h1"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %q missing %q", out, want)
		}
	}
}
