package grpcserver

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	datalogv1 "github.com/rzbill/datalog/api/datalog/v1"
	"github.com/rzbill/datalog/internal/auth"
	"github.com/rzbill/datalog/internal/datalog"
	datalogsvc "github.com/rzbill/datalog/internal/services/datalog"
)

type datalogServer struct {
	svc *datalogsvc.Service
}

var _ datalogv1.DatalogServer = (*datalogServer)(nil)

func (s *datalogServer) Record(ctx context.Context, req *datalogv1.RecordRequest) (*datalogv1.RecordResponse, error) {
	account, ok := auth.AccountFrom(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "record requires credentials")
	}
	var ts int64
	var err error
	if req.TimestampMs != nil {
		ts, err = s.svc.Record(ctx, account, req.Payload, *req.TimestampMs)
	} else {
		ts, err = s.svc.RecordNow(ctx, account, req.Payload)
	}
	if err != nil {
		return nil, toStatus(err)
	}
	return &datalogv1.RecordResponse{TimestampMs: ts}, nil
}

func (s *datalogServer) Erase(ctx context.Context, _ *datalogv1.EraseRequest) (*datalogv1.EraseResponse, error) {
	account, ok := auth.AccountFrom(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "erase requires credentials")
	}
	if err := s.svc.Erase(ctx, account); err != nil {
		return nil, toStatus(err)
	}
	return &datalogv1.EraseResponse{}, nil
}

func (s *datalogServer) Query(ctx context.Context, req *datalogv1.QueryRequest) (*datalogv1.QueryResponse, error) {
	account := req.Account
	if account == "" {
		account, _ = auth.AccountFrom(ctx)
	}
	recs, err := s.svc.Query(ctx, account, datalogsvc.QueryOptions{Filter: req.Filter, Limit: int(req.Limit)})
	if err != nil {
		return nil, toStatus(err)
	}
	out := &datalogv1.QueryResponse{Account: account, Records: make([]datalogv1.Record, 0, len(recs))}
	for _, r := range recs {
		out.Records = append(out.Records, datalogv1.Record{TimestampMs: r.Timestamp, Payload: r.Payload})
	}
	return out, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, datalog.ErrRecordTooLarge),
		errors.Is(err, datalogsvc.ErrInvalidAccount),
		errors.Is(err, datalogsvc.ErrInvalidFilter):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, auth.ErrUnauthenticated):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
