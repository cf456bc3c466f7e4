// Package kv defines the key-value substrate the datalog engine runs on and
// ships an in-memory implementation.
//
// A Store offers point reads, consistent read views and atomic read-modify-
// write transactions with read-your-writes semantics. Implementations live in
// internal/storage/pebble (on-disk) and internal/storage/redis (networked).
package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("kv: not found")

// Reader reads single keys. Returned slices are owned by the caller.
type Reader interface {
	Get(ctx context.Context, key []byte) ([]byte, error)
}

// Txn is a read-write transaction. Reads observe the transaction's own
// pending writes.
type Txn interface {
	Reader
	Set(key, value []byte) error
	Delete(key []byte) error
}

// Store is a transactional key-value substrate.
type Store interface {
	Reader
	// View runs fn against a consistent read-only view.
	View(ctx context.Context, fn func(Reader) error) error
	// Update runs fn in a transaction and commits its writes atomically if fn
	// returns nil. Nothing is written when fn fails.
	Update(ctx context.Context, fn func(Txn) error) error
	Ping(ctx context.Context) error
	Close() error
}
