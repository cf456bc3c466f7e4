package pebblestore

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/rzbill/datalog/internal/storage/kv"
)

// FsyncMode defines durability behavior for write operations.
type FsyncMode int

const (
	FsyncModeUnspecified FsyncMode = iota
	// FsyncModeAlways requests a WAL fsync on each committed batch.
	FsyncModeAlways
	// FsyncModeInterval lets Pebble coalesce WAL syncs within FsyncInterval.
	FsyncModeInterval
	// FsyncModeNever never forces a WAL sync from the application.
	FsyncModeNever
)

// ParseFsyncMode maps always|interval|never to a FsyncMode.
func ParseFsyncMode(s string) (FsyncMode, error) {
	switch s {
	case "", "always":
		return FsyncModeAlways, nil
	case "interval":
		return FsyncModeInterval, nil
	case "never":
		return FsyncModeNever, nil
	default:
		return FsyncModeUnspecified, errors.New("pebble: fsync mode must be always|interval|never")
	}
}

// Options configures the Pebble store wrapper.
type Options struct {
	// DataDir is the path to the Pebble database directory.
	DataDir string
	// Fsync determines when to sync the WAL.
	Fsync FsyncMode
	// FsyncInterval controls group-commit when Fsync=FsyncModeInterval.
	FsyncInterval time.Duration
	// PebbleOptions allows advanced tuning of Pebble. If nil, defaults are used.
	PebbleOptions *pebble.Options
	// Metrics observes read/write/commit latencies and sizes. Optional.
	Metrics MetricsHook
}

// MetricsHook observes point reads and batch commits. The context is the
// caller's, so hooks can attach to the active span.
type MetricsHook interface {
	ObserveRead(ctx context.Context, elapsed time.Duration, bytes int)
	ObserveBatchCommit(ctx context.Context, elapsed time.Duration, numOps int, bytes int)
}

// NoopMetrics is used when no metrics hook is provided.
type NoopMetrics struct{}

func (NoopMetrics) ObserveRead(context.Context, time.Duration, int)             {}
func (NoopMetrics) ObserveBatchCommit(context.Context, time.Duration, int, int) {}

// DB wraps a Pebble database with an fsync policy and implements kv.Store.
type DB struct {
	inner     *pebble.DB
	writeSync bool
	metrics   MetricsHook
}

var _ kv.Store = (*DB)(nil)

// Open creates or opens a Pebble database with the provided options.
func Open(opts Options) (*DB, error) {
	if opts.DataDir == "" {
		return nil, errors.New("pebble: Options.DataDir is required")
	}

	po := opts.PebbleOptions
	if po == nil {
		po = &pebble.Options{}
	}

	switch opts.Fsync {
	case FsyncModeAlways:
		// Sync is passed on every commit instead.
	case FsyncModeInterval:
		if opts.FsyncInterval <= 0 {
			opts.FsyncInterval = 5 * time.Millisecond
		}
		po.WALMinSyncInterval = func() time.Duration { return opts.FsyncInterval }
	case FsyncModeNever:
	default:
		po.WALMinSyncInterval = func() time.Duration { return 5 * time.Millisecond }
	}

	inner, err := pebble.Open(opts.DataDir, po)
	if err != nil {
		return nil, err
	}

	metrics := opts.Metrics
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	return &DB{
		inner:     inner,
		writeSync: opts.Fsync == FsyncModeAlways,
		metrics:   metrics,
	}, nil
}

// Close closes the Pebble database.
func (db *DB) Close() error {
	if db == nil || db.inner == nil {
		return nil
	}
	return db.inner.Close()
}

// Ping opens and closes an iterator to prove the DB is usable.
func (db *DB) Ping(context.Context) error {
	if db == nil || db.inner == nil {
		return errors.New("pebble: db not open")
	}
	it, err := db.inner.NewIter(nil)
	if err != nil {
		return err
	}
	return it.Close()
}

// commit commits b with the configured fsync policy.
func (db *DB) commit(ctx context.Context, b *pebble.Batch) error {
	start := time.Now()
	size := b.Len()
	ops := int(b.Count())

	syncMode := pebble.NoSync
	if db.writeSync {
		syncMode = pebble.Sync
	}
	err := b.Commit(syncMode)
	db.metrics.ObserveBatchCommit(ctx, time.Since(start), ops, size)
	return err
}

// Get copies the value for key. Missing keys yield kv.ErrNotFound.
func (db *DB) Get(ctx context.Context, key []byte) ([]byte, error) {
	return db.observeGet(ctx, db.inner.Get, key)
}

func (db *DB) observeGet(ctx context.Context, get func([]byte) ([]byte, io.Closer, error), key []byte) ([]byte, error) {
	start := time.Now()
	buf, err := copyGet(get(key))
	if err != nil {
		return nil, err
	}
	db.metrics.ObserveRead(ctx, time.Since(start), len(buf))
	return buf, nil
}

// View runs fn against a Pebble snapshot.
func (db *DB) View(_ context.Context, fn func(kv.Reader) error) error {
	snap := db.inner.NewSnapshot()
	defer snap.Close()
	return fn(snapshotReader{db: db, s: snap})
}

// Update runs fn against an indexed batch, so reads see pending writes, and
// commits it when fn succeeds.
func (db *DB) Update(ctx context.Context, fn func(kv.Txn) error) error {
	b := db.inner.NewIndexedBatch()
	defer b.Close()
	if err := fn(batchTxn{db: db, b: b}); err != nil {
		return err
	}
	if b.Empty() {
		return nil
	}
	return db.commit(ctx, b)
}

func copyGet(val []byte, closer io.Closer, err error) ([]byte, error) {
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, kv.ErrNotFound
		}
		return nil, err
	}
	defer closer.Close()
	return append([]byte(nil), val...), nil
}

type snapshotReader struct {
	db *DB
	s  *pebble.Snapshot
}

func (r snapshotReader) Get(ctx context.Context, key []byte) ([]byte, error) {
	return r.db.observeGet(ctx, r.s.Get, key)
}

type batchTxn struct {
	db *DB
	b  *pebble.Batch
}

func (t batchTxn) Get(ctx context.Context, key []byte) ([]byte, error) {
	return t.db.observeGet(ctx, t.b.Get, key)
}

func (t batchTxn) Set(key, value []byte) error { return t.b.Set(key, value, nil) }
func (t batchTxn) Delete(key []byte) error     { return t.b.Delete(key, nil) }
