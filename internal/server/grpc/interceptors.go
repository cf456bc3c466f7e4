package grpcserver

import (
	"context"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/rzbill/datalog/internal/auth"
	logpkg "github.com/rzbill/datalog/pkg/log"
)

const requestIDHeader = "x-request-id"

// requestIDInterceptor propagates or assigns a request id, echoes it in the
// response header and logs the call outcome.
func requestIDInterceptor(logger logpkg.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		rid := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if v := md.Get(requestIDHeader); len(v) > 0 {
				rid = v[0]
			}
		}
		if rid == "" {
			rid = uuid.NewString()
		}
		_ = grpc.SetHeader(ctx, metadata.Pairs(requestIDHeader, rid))
		ctx = logpkg.ContextWithValue(ctx, logpkg.RequestIDKey, rid)

		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Debug("rpc",
			logpkg.RequestID(rid),
			logpkg.Str("method", info.FullMethod),
			logpkg.Str("code", status.Code(err).String()),
			logpkg.Duration("elapsed", time.Since(start)),
		)
		return resp, err
	}
}

// authInterceptor resolves "authorization: Bearer" metadata to an account.
// Calls without credentials proceed anonymously; invalid credentials fail.
func authInterceptor(authn auth.Authenticator) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if v := md.Get("authorization"); len(v) > 0 {
				token := auth.BearerToken(v[0])
				account, err := authn.Authenticate(ctx, token)
				if err != nil {
					return nil, status.Error(codes.Unauthenticated, err.Error())
				}
				ctx = auth.WithAccount(ctx, account)
			}
		}
		return handler(ctx, req)
	}
}
