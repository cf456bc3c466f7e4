package grpcserver

import (
	"context"
	"net"

	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	datalogv1 "github.com/rzbill/datalog/api/datalog/v1"
	"github.com/rzbill/datalog/internal/auth"
	"github.com/rzbill/datalog/internal/runtime"
	datalogsvc "github.com/rzbill/datalog/internal/services/datalog"
	logpkg "github.com/rzbill/datalog/pkg/log"
)

// Server owns the gRPC server instance and runtime.
type Server struct {
	rt     *runtime.Runtime
	svc    *datalogsvc.Service
	logger logpkg.Logger
	grpc   *grpc.Server
	lis    net.Listener
}

// New constructs a gRPC server with its own service instance and the
// authenticator described by the runtime config.
func New(rt *runtime.Runtime, opts ...grpc.ServerOption) *Server {
	ac := rt.Config().Auth
	return NewWithService(rt, datalogsvc.New(rt), auth.New(ac.Tokens, ac.Insecure), nil, opts...)
}

// NewWithService registers the Datalog and Health services backed by svc.
func NewWithService(rt *runtime.Runtime, svc *datalogsvc.Service, authn auth.Authenticator, logger logpkg.Logger, opts ...grpc.ServerOption) *Server {
	if logger == nil {
		logger = logpkg.NewLogger()
	}
	logger = logger.With(logpkg.Component("grpc"))
	opts = append([]grpc.ServerOption{
		grpc.ChainUnaryInterceptor(requestIDInterceptor(logger), authInterceptor(authn)),
	}, opts...)
	s := &Server{rt: rt, svc: svc, logger: logger, grpc: grpc.NewServer(opts...)}
	healthpb.RegisterHealthServer(s.grpc, &healthSvc{rt: rt})
	datalogv1.RegisterDatalogServer(s.grpc, &datalogServer{svc: svc})
	return s
}

// ListenAndServe binds to addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, l)
}

// Serve serves on l until ctx is done.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	s.lis = l
	s.logger.Info("grpc listening", logpkg.Str("addr", l.Addr().String()))
	errCh := make(chan error, 1)
	go func() { errCh <- s.grpc.Serve(l) }()
	select {
	case <-ctx.Done():
		s.grpc.GracefulStop()
		return nil
	case err := <-errCh:
		return err
	}
}

// Close stops the server and closes the listener.
func (s *Server) Close() {
	if s.grpc != nil {
		s.grpc.GracefulStop()
	}
	if s.lis != nil {
		_ = s.lis.Close()
	}
}
