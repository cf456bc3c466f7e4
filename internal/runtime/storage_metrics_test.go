package runtime

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	cfgpkg "github.com/rzbill/datalog/internal/config"
	logpkg "github.com/rzbill/datalog/pkg/log"
)

func eventNames(s sdktrace.ReadOnlySpan) []string {
	var out []string
	for _, e := range s.Events() {
		out = append(out, e.Name)
	}
	return out
}

func TestStorageMetricsLogsSlowCommits(t *testing.T) {
	var buf bytes.Buffer
	logger := logpkg.NewLogger(
		logpkg.WithFormatter(&logpkg.TextFormatter{DisableTimestamp: true}),
		logpkg.WithOutput(logpkg.NewWriterOutput(&buf)),
	)
	m := newStorageMetrics(logger, 10*time.Millisecond)

	m.ObserveBatchCommit(context.Background(), time.Millisecond, 2, 40)
	if buf.Len() != 0 {
		t.Fatalf("fast commit logged: %s", buf.String())
	}
	m.ObserveBatchCommit(context.Background(), 20*time.Millisecond, 3, 64)
	out := buf.String()
	for _, want := range []string{"slow commit", "component=pebble", "ops=3"} {
		if !strings.Contains(out, want) {
			t.Fatalf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestStorageMetricsDefaultThreshold(t *testing.T) {
	m := newStorageMetrics(logpkg.NewLogger(logpkg.WithOutput(logpkg.NullOutput{})), 0)
	if m.slow != defaultSlowCommit {
		t.Fatalf("slow = %v", m.slow)
	}
}

func TestPebbleCommitsAnnotateSpan(t *testing.T) {
	cfg := cfgpkg.Default()
	cfg.Storage.DataDir = t.TempDir()
	cfg.Storage.Fsync = "never"
	logger := logpkg.NewLogger(logpkg.WithOutput(logpkg.NullOutput{}))
	rt, err := Open(context.Background(), Options{Config: cfg, Logger: logger})
	if err != nil {
		t.Fatalf("open runtime: %v", err)
	}
	defer rt.Close()

	sr := tracetest.NewSpanRecorder()
	tracer := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr)).Tracer("test")

	ctx, span := tracer.Start(context.Background(), "append")
	if err := rt.Store().Append(ctx, "alice", []byte("hi"), 1); err != nil {
		t.Fatalf("append: %v", err)
	}
	span.End()
	ctx, span = tracer.Start(context.Background(), "query")
	if _, err := rt.Store().Query(ctx, "alice"); err != nil {
		t.Fatalf("query: %v", err)
	}
	span.End()

	ended := sr.Ended()
	if len(ended) != 2 {
		t.Fatalf("want 2 spans, got %d", len(ended))
	}
	if got := eventNames(ended[0]); !contains(got, "kv.commit") {
		t.Fatalf("append span events = %v", got)
	}
	if got := eventNames(ended[1]); !contains(got, "kv.read") {
		t.Fatalf("query span events = %v", got)
	}
}

func contains(ss []string, want string) bool {
	for _, s := range ss {
		if s == want {
			return true
		}
	}
	return false
}
