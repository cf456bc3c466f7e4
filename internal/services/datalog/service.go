package datalogsvc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rzbill/datalog/internal/datalog"
	"github.com/rzbill/datalog/internal/runtime"
	"github.com/rzbill/datalog/internal/telemetry"
	logpkg "github.com/rzbill/datalog/pkg/log"
)

// MaxAccountLen bounds account identifiers in bytes.
const MaxAccountLen = 256

var (
	ErrInvalidAccount = errors.New("datalog: invalid account")
	ErrInvalidFilter  = errors.New("datalog: invalid filter")
)

// QueryOptions narrow a Query.
type QueryOptions struct {
	// Filter is a CEL expression over ts_ms, size, text, json and now_ms.
	Filter string
	// Limit keeps only the newest Limit matches when > 0.
	Limit int
}

// Service exposes Record, Erase and Query over the runtime's store.
type Service struct {
	rt     *runtime.Runtime
	store  *datalog.Store
	logger logpkg.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// New returns a Service using a default logger.
func New(rt *runtime.Runtime) *Service {
	return NewWithLogger(rt, nil)
}

// NewWithLogger returns a Service using the provided logger.
func NewWithLogger(rt *runtime.Runtime, logger logpkg.Logger) *Service {
	if logger == nil {
		logger = logpkg.NewLogger().With(logpkg.Component("datalog-svc"))
	}
	return &Service{
		rt:     rt,
		store:  rt.Store(),
		logger: logger,
		tracer: otel.Tracer(telemetry.TracerName),
		now:    time.Now,
	}
}

// RecordNow appends payload to account's log stamped with the host clock.
// It returns the timestamp stored.
func (s *Service) RecordNow(ctx context.Context, account string, payload []byte) (int64, error) {
	return s.Record(ctx, account, payload, s.now().UnixMilli())
}

// Record appends payload to account's log at tsMs, which is stored as given.
func (s *Service) Record(ctx context.Context, account string, payload []byte, tsMs int64) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "datalog.Record", trace.WithAttributes(
		attribute.Int("datalog.payload_bytes", len(payload)),
	))
	defer span.End()

	if err := validateAccount(account); err != nil {
		return 0, fail(span, err)
	}
	if err := s.store.Append(ctx, account, payload, tsMs); err != nil {
		if !errors.Is(err, datalog.ErrRecordTooLarge) {
			s.logger.Error("record failed", logpkg.Str("account", account), logpkg.Err(err))
		}
		return 0, fail(span, err)
	}
	return tsMs, nil
}

// Erase removes account's log. Erasing an empty log succeeds.
func (s *Service) Erase(ctx context.Context, account string) error {
	ctx, span := s.tracer.Start(ctx, "datalog.Erase")
	defer span.End()

	if err := validateAccount(account); err != nil {
		return fail(span, err)
	}
	if err := s.store.Erase(ctx, account); err != nil {
		s.logger.Error("erase failed", logpkg.Str("account", account), logpkg.Err(err))
		return fail(span, err)
	}
	return nil
}

// Query returns account's records oldest first, filtered and limited by
// opts.
func (s *Service) Query(ctx context.Context, account string, opts QueryOptions) ([]datalog.Record, error) {
	ctx, span := s.tracer.Start(ctx, "datalog.Query", trace.WithAttributes(
		attribute.Bool("datalog.filtered", opts.Filter != ""),
		attribute.Int("datalog.limit", opts.Limit),
	))
	defer span.End()

	if err := validateAccount(account); err != nil {
		return nil, fail(span, err)
	}
	filter, err := datalog.CompileFilter(opts.Filter)
	if err != nil {
		return nil, fail(span, fmt.Errorf("%w: %v", ErrInvalidFilter, err))
	}
	recs, err := s.store.Query(ctx, account)
	if err != nil {
		s.logger.Error("query failed", logpkg.Str("account", account), logpkg.Err(err))
		return nil, fail(span, err)
	}
	recs = filter.Apply(recs)
	if opts.Limit > 0 && len(recs) > opts.Limit {
		recs = recs[len(recs)-opts.Limit:]
	}
	span.SetAttributes(attribute.Int("datalog.records", len(recs)))
	return recs, nil
}

// Health reports substrate health.
func (s *Service) Health(ctx context.Context) error {
	return s.rt.CheckHealth(ctx)
}

func validateAccount(account string) error {
	switch {
	case account == "":
		return fmt.Errorf("%w: empty", ErrInvalidAccount)
	case len(account) > MaxAccountLen:
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidAccount, MaxAccountLen)
	}
	return nil
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
