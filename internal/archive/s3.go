package archive

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/rzbill/datalog/internal/datalog"
	"github.com/rzbill/datalog/pkg/id"
	logpkg "github.com/rzbill/datalog/pkg/log"
)

// Config configures the S3 archiver.
type Config struct {
	Bucket string
	// Prefix is prepended to every object key.
	Prefix   string
	Region   string
	Endpoint string
	// UsePathStyle forces path-style addressing (MinIO, LocalStack).
	UsePathStyle bool

	// Static credentials; the default chain is used when empty.
	AccessKeyID     string
	SecretAccessKey string

	QueueSize int
	Timeout   time.Duration
}

func (c *Config) setDefaults() {
	if c.QueueSize <= 0 {
		c.QueueSize = 1024
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
}

// objectPutter is the subset of *s3.Client the archiver uses.
type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Object is the JSON body of an archived record.
type Object struct {
	ID          id.ID  `json:"id"`
	Key         string `json:"key"`
	TimestampMs int64  `json:"timestamp_ms"`
	Payload     []byte `json:"payload"`
	EvictedAtMs int64  `json:"evicted_at_ms"`
}

type job struct {
	key string
	rec datalog.Record
}

// S3Archiver uploads evicted records from a background worker.
type S3Archiver struct {
	cfg    Config
	client objectPutter
	ids    *id.Generator
	logger logpkg.Logger

	// mu orders queue sends before Close; closed is set under the write lock.
	mu     sync.RWMutex
	closed bool
	queue  chan job
	stop   chan struct{}
	done   chan struct{}

	uploaded atomic.Uint64
	dropped  atomic.Uint64
	failed   atomic.Uint64
}

// NewS3Archiver builds an S3 client from cfg and starts the upload worker.
func NewS3Archiver(ctx context.Context, cfg Config, logger logpkg.Logger) (*S3Archiver, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("archive: bucket is required")
	}
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("archive: load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return newArchiver(client, cfg, logger), nil
}

func newArchiver(client objectPutter, cfg Config, logger logpkg.Logger) *S3Archiver {
	cfg.setDefaults()
	if logger == nil {
		logger = logpkg.NewLogger()
	}
	a := &S3Archiver{
		cfg:    cfg,
		client: client,
		ids:    id.NewGenerator(),
		logger: logger.With(logpkg.Component("archive")),
		queue:  make(chan job, cfg.QueueSize),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go a.run()
	return a
}

// RecordEvicted queues rec for upload. It never blocks.
func (a *S3Archiver) RecordEvicted(_ context.Context, key string, rec datalog.Record) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		a.dropped.Add(1)
		return
	}
	select {
	case a.queue <- job{key: key, rec: rec}:
	default:
		a.dropped.Add(1)
		a.logger.Warn("archive queue full, dropping evicted record", logpkg.Str("key", key), logpkg.Int64("ts_ms", rec.Timestamp))
	}
}

func (a *S3Archiver) RecordAppended(context.Context, string, datalog.Record) {}
func (a *S3Archiver) LogErased(context.Context, string, int)                 {}

// Close stops accepting work, uploads what is already queued and waits for
// the worker to exit or ctx to end.
func (a *S3Archiver) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.stop)
	}
	a.mu.Unlock()
	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats reports uploaded, dropped and failed counts.
func (a *S3Archiver) Stats() (uploaded, dropped, failed uint64) {
	return a.uploaded.Load(), a.dropped.Load(), a.failed.Load()
}

func (a *S3Archiver) run() {
	defer close(a.done)
	for {
		select {
		case j := <-a.queue:
			a.upload(j)
		case <-a.stop:
			for {
				select {
				case j := <-a.queue:
					a.upload(j)
				default:
					return
				}
			}
		}
	}
}

func (a *S3Archiver) upload(j job) {
	evID := a.ids.Next()
	body, err := json.Marshal(Object{
		ID:          evID,
		Key:         j.key,
		TimestampMs: j.rec.Timestamp,
		Payload:     j.rec.Payload,
		EvictedAtMs: time.Now().UnixMilli(),
	})
	if err != nil {
		a.failed.Add(1)
		a.logger.Error("encode archive object", logpkg.Err(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Timeout)
	defer cancel()
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.cfg.Bucket),
		Key:         aws.String(objectKey(a.cfg.Prefix, j.key, evID)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		a.failed.Add(1)
		a.logger.Error("upload evicted record", logpkg.Str("key", j.key), logpkg.Err(err))
		return
	}
	a.uploaded.Add(1)
}

func objectKey(prefix, key string, evID id.ID) string {
	name := hex.EncodeToString([]byte(key)) + "/" + evID.String() + ".json"
	if p := strings.Trim(prefix, "/"); p != "" {
		return p + "/" + name
	}
	return name
}

var (
	_ datalog.Observer         = (*S3Archiver)(nil)
	_ datalog.EvictionObserver = (*S3Archiver)(nil)
)
