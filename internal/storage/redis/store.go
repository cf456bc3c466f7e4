// Package redisstore implements the kv.Store substrate on Redis.
//
// Transactions use WATCH/MULTI/EXEC: every key read inside Update or View is
// watched, writes are buffered locally and flushed in one MULTI block, and the
// whole transaction is retried if a watched key changed underneath it.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rzbill/datalog/internal/storage/kv"
)

// Options configures the Redis backend.
type Options struct {
	// Addr is the Redis server address (e.g., "localhost:6379").
	Addr     string
	Username string
	Password string
	DB       int
	// Prefix is prepended to every key (e.g., "datalog:").
	Prefix string
	// Timeout bounds dial, read and write operations.
	Timeout      time.Duration
	PoolSize     int
	MinIdleConns int
	// MaxRetries bounds optimistic transaction retries.
	MaxRetries int
}

// DefaultOptions returns defaults for addr.
func DefaultOptions(addr string) Options {
	return Options{
		Addr:         addr,
		Prefix:       "datalog:",
		Timeout:      5 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   8,
	}
}

// ErrConflict is returned when a transaction keeps losing WATCH races.
var ErrConflict = errors.New("redis: transaction conflict")

// Store is a kv.Store backed by a Redis client.
type Store struct {
	opts   Options
	client *redis.Client
}

var _ kv.Store = (*Store)(nil)

// Open connects to Redis and verifies the connection.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.Addr == "" {
		return nil, errors.New("redis: Options.Addr is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 8
	}
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Username:     opts.Username,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     opts.PoolSize,
		MinIdleConns: opts.MinIdleConns,
		DialTimeout:  opts.Timeout,
		ReadTimeout:  opts.Timeout,
		WriteTimeout: opts.Timeout,
	})
	s := &Store{opts: opts, client: client}
	if err := s.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return s, nil
}

func (s *Store) key(k []byte) string { return s.opts.Prefix + string(k) }

func (s *Store) Get(ctx context.Context, key []byte) ([]byte, error) {
	return getBytes(s.client.Get(ctx, s.key(key)))
}

// View runs fn as an optimistic read transaction: every key fn reads is
// watched and an empty MULTI/EXEC at the end confirms none changed. fn is
// rerun from scratch when one did, so it must not keep state across calls.
func (s *Store) View(ctx context.Context, fn func(kv.Reader) error) error {
	for attempt := 0; attempt < s.opts.MaxRetries; attempt++ {
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			if err := fn(&redisTxn{s: s, tx: tx}); err != nil {
				return err
			}
			_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Ping(ctx)
				return nil
			})
			return err
		})
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return ErrConflict
}

func (s *Store) Update(ctx context.Context, fn func(kv.Txn) error) error {
	for attempt := 0; attempt < s.opts.MaxRetries; attempt++ {
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			t := &redisTxn{s: s, tx: tx, pending: make(map[string][]byte)}
			if err := fn(t); err != nil {
				return err
			}
			if len(t.pending) == 0 {
				return nil
			}
			_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				for _, k := range t.order {
					v := t.pending[k]
					if v == nil {
						pipe.Del(ctx, k)
						continue
					}
					pipe.Set(ctx, k, v, 0)
				}
				return nil
			})
			return err
		})
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return ErrConflict
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error { return s.client.Close() }

// redisTxn buffers writes until EXEC; a nil value marks a delete.
type redisTxn struct {
	s       *Store
	tx      *redis.Tx
	pending map[string][]byte
	order   []string
}

func (t *redisTxn) Get(ctx context.Context, key []byte) ([]byte, error) {
	k := t.s.key(key)
	if v, ok := t.pending[k]; ok {
		if v == nil {
			return nil, kv.ErrNotFound
		}
		return append([]byte(nil), v...), nil
	}
	if err := t.tx.Watch(ctx, k).Err(); err != nil {
		return nil, err
	}
	return getBytes(t.tx.Get(ctx, k))
}

func (t *redisTxn) Set(key, value []byte) error {
	t.put(t.s.key(key), append(make([]byte, 0, len(value)), value...))
	return nil
}

func (t *redisTxn) Delete(key []byte) error {
	t.put(t.s.key(key), nil)
	return nil
}

func (t *redisTxn) put(k string, v []byte) {
	if _, ok := t.pending[k]; !ok {
		t.order = append(t.order, k)
	}
	t.pending[k] = v
}

func getBytes(cmd *redis.StringCmd) ([]byte, error) {
	b, err := cmd.Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, kv.ErrNotFound
		}
		return nil, err
	}
	return b, nil
}
