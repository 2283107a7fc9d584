package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("line %q is not JSON: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestJSONBackendsWriteFields(t *testing.T) {
	for _, backend := range []Backend{BackendSlog, BackendZap} {
		t.Run(string(backend), func(t *testing.T) {
			var buf bytes.Buffer
			log := New(Config{Level: "debug", Format: "json", Backend: backend, Output: &buf})

			log.Info(context.Background(), "population initialised",
				String("run_id", "abc"),
				Int("infected", 5),
				Bool("quarantine", true),
			)

			lines := decodeLines(t, &buf)
			if len(lines) != 1 {
				t.Fatalf("expected 1 line, got %d", len(lines))
			}
			got := lines[0]
			if got["run_id"] != "abc" {
				t.Fatalf("run_id = %v", got["run_id"])
			}
			if got["infected"] != float64(5) {
				t.Fatalf("infected = %v", got["infected"])
			}
			if got["quarantine"] != true {
				t.Fatalf("quarantine = %v", got["quarantine"])
			}
		})
	}
}

func TestLevelFiltersDebug(t *testing.T) {
	for _, backend := range []Backend{BackendSlog, BackendZap} {
		t.Run(string(backend), func(t *testing.T) {
			var buf bytes.Buffer
			log := New(Config{Level: "info", Format: "json", Backend: backend, Output: &buf})
			log.Debug(context.Background(), "dropped")
			log.Warn(context.Background(), "kept")

			lines := decodeLines(t, &buf)
			if len(lines) != 1 {
				t.Fatalf("expected only the warning, got %d lines", len(lines))
			}
		})
	}
}

func TestRequestIDFromContextIsLogged(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Format: "json", Output: &buf})

	ctx, id := EnsureRequestID(context.Background())
	if id == "" {
		t.Fatal("expected a generated request id")
	}
	if again, sameID := EnsureRequestID(ctx); again != ctx || sameID != id {
		t.Fatal("EnsureRequestID should keep an existing id")
	}

	log.Info(ctx, "command applied")
	lines := decodeLines(t, &buf)
	if lines[0]["request_id"] != id {
		t.Fatalf("request_id = %v, want %s", lines[0]["request_id"], id)
	}
}

func TestWithRequestLoggerDoesNotDuplicateID(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Format: "text", Output: &buf})

	ctx, reqLog := WithRequestLogger(context.Background(), base)
	reqLog.Info(ctx, "hello")

	if n := strings.Count(buf.String(), "request_id="); n != 1 {
		t.Fatalf("request_id appears %d times in %q", n, buf.String())
	}
}

func TestFromContext(t *testing.T) {
	fallback := Noop()
	if got := FromContext(context.Background(), fallback); got != fallback {
		t.Fatal("expected fallback logger")
	}
	stored := New(Config{Output: &bytes.Buffer{}})
	ctx := ContextWithLogger(context.Background(), stored)
	if got := FromContext(ctx, fallback); got != stored {
		t.Fatal("expected stored logger")
	}
	if FromContext(context.Background(), nil) == nil {
		t.Fatal("nil fallback should become Noop")
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_BACKEND", "zap")

	cfg := ConfigFromEnv()
	if cfg.Level != "debug" || cfg.Format != "json" || cfg.Backend != BackendZap {
		t.Fatalf("ConfigFromEnv = %+v", cfg)
	}
}

func TestNewZapWrapsLogger(t *testing.T) {
	obsCore, logs := observer.New(zapcore.DebugLevel)
	log := NewZap(zap.New(obsCore))

	ctx := ContextWithRequestID(context.Background(), "req-7")
	log.With(String("component", "ledger")).Debug(ctx, "agent event", Int("agent_id", 3))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["component"] != "ledger" || fields["request_id"] != "req-7" {
		t.Fatalf("fields = %v", fields)
	}
	if fields["agent_id"] != int64(3) {
		t.Fatalf("agent_id = %#v", fields["agent_id"])
	}

	if NewZap(nil) == nil {
		t.Fatal("NewZap(nil) returned nil")
	}
}
