// Package grpcserver hosts the datalog gRPC server. It registers the
// datalog.v1.Datalog service (JSON codec) and the standard grpc.health.v1
// service, authenticates callers from "authorization: Bearer" metadata and
// delegates to the shared service layer.
//
// Example:
//
//	rt, _ := runtime.Open(ctx, runtime.Options{Config: config.Default()})
//	s := grpcserver.New(rt)
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = s.ListenAndServe(ctx, ":50051")
package grpcserver
