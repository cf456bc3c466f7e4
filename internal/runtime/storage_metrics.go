package runtime

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	logpkg "github.com/rzbill/datalog/pkg/log"
)

const defaultSlowCommit = 100 * time.Millisecond

// storageMetrics annotates the caller's span with Pebble commits and warns
// about commits slower than slow.
type storageMetrics struct {
	logger logpkg.Logger
	slow   time.Duration
}

func newStorageMetrics(l logpkg.Logger, slow time.Duration) storageMetrics {
	if slow <= 0 {
		slow = defaultSlowCommit
	}
	return storageMetrics{logger: l.With(logpkg.Component("pebble")), slow: slow}
}

func (m storageMetrics) ObserveRead(ctx context.Context, elapsed time.Duration, bytes int) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.AddEvent("kv.read", trace.WithAttributes(
		attribute.Int("kv.bytes", bytes),
		attribute.Int64("kv.elapsed_us", elapsed.Microseconds()),
	))
}

func (m storageMetrics) ObserveBatchCommit(ctx context.Context, elapsed time.Duration, numOps int, bytes int) {
	trace.SpanFromContext(ctx).AddEvent("kv.commit", trace.WithAttributes(
		attribute.Int("kv.ops", numOps),
		attribute.Int("kv.bytes", bytes),
		attribute.Int64("kv.elapsed_us", elapsed.Microseconds()),
	))
	if elapsed >= m.slow {
		m.logger.Warn("slow commit",
			logpkg.Duration("elapsed", elapsed),
			logpkg.Int("ops", numOps),
			logpkg.Int("bytes", bytes),
		)
	}
}
