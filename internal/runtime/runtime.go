package runtime

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rzbill/datalog/internal/archive"
	cfgpkg "github.com/rzbill/datalog/internal/config"
	"github.com/rzbill/datalog/internal/datalog"
	"github.com/rzbill/datalog/internal/storage/kv"
	pebblestore "github.com/rzbill/datalog/internal/storage/pebble"
	redisstore "github.com/rzbill/datalog/internal/storage/redis"
	logpkg "github.com/rzbill/datalog/pkg/log"
)

// Options for building the Runtime.
type Options struct {
	Config cfgpkg.Config
	Logger logpkg.Logger
	// Observers are notified of store mutations in addition to the
	// built-in logging observer and the archiver.
	Observers []datalog.Observer
}

// Runtime owns the substrate, the datalog store and its observers.
type Runtime struct {
	db       kv.Store
	store    *datalog.Store
	archiver *archive.S3Archiver
	config   cfgpkg.Config
	logger   logpkg.Logger
}

// Open validates the configuration, opens the configured substrate and
// builds the store on top of it.
func Open(ctx context.Context, opts Options) (*Runtime, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("runtime: invalid config: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger()
	}
	policy, err := datalog.ParseLegacyPolicy(cfg.Datalog.LegacyPolicy)
	if err != nil {
		return nil, err
	}

	db, err := openSubstrate(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, err
	}
	rt := &Runtime{db: db, config: cfg, logger: logger.With(logpkg.Component("runtime"))}

	observers := []datalog.Observer{newLogObserver(logger)}
	if cfg.Archive.S3Bucket != "" {
		a, err := archive.NewS3Archiver(ctx, archive.Config{
			Bucket:       cfg.Archive.S3Bucket,
			Prefix:       cfg.Archive.S3Prefix,
			Region:       cfg.Archive.S3Region,
			Endpoint:     cfg.Archive.S3Endpoint,
			UsePathStyle: cfg.Archive.UsePathStyle,
			QueueSize:    cfg.Archive.QueueSize,
		}, logger)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		rt.archiver = a
		observers = append(observers, a)
	}
	observers = append(observers, opts.Observers...)

	rt.store, err = datalog.New(db, datalog.Options{
		WindowSize:    cfg.Datalog.WindowSize,
		MaxRecordSize: cfg.Datalog.MaxRecordSize,
		Legacy:        policy,
		Observer:      datalog.Observers(observers...),
		Logger:        logger,
	})
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.logger.Info("runtime opened",
		logpkg.Str("backend", cfg.Storage.Backend),
		logpkg.Uint64("window", cfg.Datalog.WindowSize),
		logpkg.Int("max_record_size", cfg.Datalog.MaxRecordSize),
		logpkg.Str("legacy", policy.String()),
		logpkg.Bool("archive", rt.archiver != nil),
	)
	return rt, nil
}

func openSubstrate(ctx context.Context, sc cfgpkg.StorageConfig, logger logpkg.Logger) (kv.Store, error) {
	switch strings.ToLower(sc.Backend) {
	case "memory":
		return kv.NewMemory(), nil
	case "redis":
		o := redisstore.DefaultOptions(sc.Redis.Addr)
		o.Username = sc.Redis.Username
		o.Password = sc.Redis.Password
		o.DB = sc.Redis.DB
		if sc.Redis.Prefix != "" {
			o.Prefix = sc.Redis.Prefix
		}
		return redisstore.Open(ctx, o)
	default:
		mode, err := pebblestore.ParseFsyncMode(sc.Fsync)
		if err != nil {
			return nil, err
		}
		dir := sc.DataDir
		if dir == "" {
			dir = cfgpkg.DefaultDataDir()
		}
		return pebblestore.Open(pebblestore.Options{
			DataDir:       filepath.Join(dir, "store"),
			Fsync:         mode,
			FsyncInterval: time.Duration(sc.FsyncIntervalMs) * time.Millisecond,
			Metrics:       newStorageMetrics(logger, time.Duration(sc.SlowCommitMs)*time.Millisecond),
		})
	}
}

// Close flushes the archiver and closes the substrate.
func (r *Runtime) Close() error {
	var errs []error
	if r.archiver != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := r.archiver.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("archive: %w", err))
		}
		cancel()
	}
	if r.db != nil {
		if err := r.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CheckHealth pings the substrate.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.db == nil {
		return errors.New("db not open")
	}
	return r.db.Ping(ctx)
}

// Store returns the datalog store.
func (r *Runtime) Store() *datalog.Store { return r.store }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }
