package kv

import (
	"context"
	"errors"
	"sync"
)

// Memory is an in-process Store backed by a map. Updates are serialised and
// applied only on success.
type Memory struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

var errClosed = errors.New("kv: store closed")

func (m *Memory) Get(_ context.Context, key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, errClosed
	}
	return m.getLocked(key)
}

func (m *Memory) getLocked(key []byte) ([]byte, error) {
	v, ok := m.data[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *Memory) View(_ context.Context, fn func(Reader) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return errClosed
	}
	return fn(memReader{m})
}

func (m *Memory) Update(_ context.Context, fn func(Txn) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errClosed
	}
	tx := &memTxn{m: m, pending: make(map[string][]byte)}
	if err := fn(tx); err != nil {
		return err
	}
	for k, v := range tx.pending {
		if v == nil {
			delete(m.data, k)
			continue
		}
		m.data[k] = v
	}
	return nil
}

func (m *Memory) Ping(context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return errClosed
	}
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Len reports the number of stored keys.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

type memReader struct{ m *Memory }

func (r memReader) Get(_ context.Context, key []byte) ([]byte, error) {
	return r.m.getLocked(key)
}

// memTxn buffers writes; a nil value marks a delete.
type memTxn struct {
	m       *Memory
	pending map[string][]byte
}

func (t *memTxn) Get(_ context.Context, key []byte) ([]byte, error) {
	if v, ok := t.pending[string(key)]; ok {
		if v == nil {
			return nil, ErrNotFound
		}
		return append([]byte(nil), v...), nil
	}
	return t.m.getLocked(key)
}

func (t *memTxn) Set(key, value []byte) error {
	v := make([]byte, len(value))
	copy(v, value)
	t.pending[string(key)] = v
	return nil
}

func (t *memTxn) Delete(key []byte) error {
	t.pending[string(key)] = nil
	return nil
}
