package serverrun

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rzbill/datalog/internal/auth"
	cfgpkg "github.com/rzbill/datalog/internal/config"
	"github.com/rzbill/datalog/internal/runtime"
	grpcserver "github.com/rzbill/datalog/internal/server/grpc"
	httpserver "github.com/rzbill/datalog/internal/server/http"
	datalogsvc "github.com/rzbill/datalog/internal/services/datalog"
	"github.com/rzbill/datalog/internal/telemetry"
	logpkg "github.com/rzbill/datalog/pkg/log"
)

func getenvDefault(key, def string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return def
}

// small wrapper to allow testing
var getenv = func(key string) string { return os.Getenv(key) }

type Options struct {
	// DataDir overrides Config.Storage.DataDir when set.
	DataDir  string
	GRPCAddr string
	HTTPAddr string
	Config   cfgpkg.Config
}

// Run starts gRPC and HTTP servers and blocks until ctx is cancelled or
// one of them fails.
func Run(ctx context.Context, opts Options) error {
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := opts.Config
	if opts.DataDir != "" {
		cfg.Storage.DataDir = opts.DataDir
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = cfgpkg.DefaultDataDir()
	}

	logCfg := &logpkg.Config{
		Level:  getenvDefault("DATALOG_LOG_LEVEL", cfg.Log.Level),
		Format: getenvDefault("DATALOG_LOG_FORMAT", cfg.Log.Format),
	}
	procLogger, err := logpkg.ApplyConfig(logCfg)
	if err != nil {
		lvl := logpkg.InfoLevel
		if l, e := logpkg.ParseLevel(logCfg.Level); e == nil {
			lvl = l
		}
		procLogger = logpkg.NewLogger(logpkg.WithLevel(lvl), logpkg.WithFormatter(&logpkg.TextFormatter{}))
	}
	// Pebble logs through the standard library logger.
	logpkg.RedirectStdLog(procLogger)

	shutdownTracing, err := telemetry.Setup(sctx, telemetry.Options{
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Insecure:    cfg.Telemetry.Insecure,
		ServiceName: cfg.Telemetry.ServiceName,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return err
	}
	defer func() {
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(cctx); err != nil {
			procLogger.Warn("tracing shutdown failed", logpkg.Err(err))
		}
	}()

	rt, err := runtime.Open(sctx, runtime.Options{Config: cfg, Logger: procLogger})
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			procLogger.Warn("runtime close failed", logpkg.Err(err))
		}
	}()

	procLogger.Info("Starting datalog server",
		logpkg.Str("grpc", opts.GRPCAddr),
		logpkg.Str("http", opts.HTTPAddr),
		logpkg.Str("data_dir", cfg.Storage.DataDir),
		logpkg.Str("backend", cfg.Storage.Backend),
		logpkg.Str("level", logCfg.Level),
		logpkg.Str("format", logCfg.Format),
	)

	// Both transports share one service and one authenticator.
	svc := datalogsvc.NewWithLogger(rt, procLogger.With(logpkg.Component("datalog")))
	authn := auth.New(cfg.Auth.Tokens, cfg.Auth.Insecure)
	if cfg.Auth.Insecure {
		procLogger.Warn("insecure auth enabled; callers choose their own account")
	}
	gsrv := grpcserver.NewWithService(rt, svc, authn, procLogger)
	hsrv := httpserver.NewWithService(rt, svc, authn, procLogger)

	g, gctx := errgroup.WithContext(sctx)
	g.Go(func() error { return gsrv.ListenAndServe(gctx, opts.GRPCAddr) })
	g.Go(func() error { return hsrv.ListenAndServe(gctx, opts.HTTPAddr) })
	err = g.Wait()
	gsrv.Close()
	hsrv.Close()
	if err != nil && sctx.Err() == nil {
		return err
	}
	return nil
}
