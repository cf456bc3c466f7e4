package runtime

import (
	"context"

	"github.com/rzbill/datalog/internal/datalog"
	logpkg "github.com/rzbill/datalog/pkg/log"
)

// logObserver reports store outcomes at debug level.
type logObserver struct{ logger logpkg.Logger }

func newLogObserver(l logpkg.Logger) logObserver {
	return logObserver{logger: l.With(logpkg.Component("events"))}
}

func (o logObserver) RecordAppended(_ context.Context, key string, rec datalog.Record) {
	o.logger.Debug("record appended", logpkg.Str("key", key), logpkg.Int64("ts_ms", rec.Timestamp), logpkg.Int("bytes", len(rec.Payload)))
}

func (o logObserver) LogErased(_ context.Context, key string, removed int) {
	o.logger.Debug("log erased", logpkg.Str("key", key), logpkg.Int("removed", removed))
}
