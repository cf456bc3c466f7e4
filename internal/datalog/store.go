package datalog

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rzbill/datalog/internal/storage/kv"
	logpkg "github.com/rzbill/datalog/pkg/log"
)

const (
	DefaultWindowSize    uint64 = 128
	DefaultMaxRecordSize        = 512
)

// ErrRecordTooLarge is returned by Append when the payload exceeds
// MaxRecordSize. Nothing is written in that case.
var ErrRecordTooLarge = errors.New("datalog: record too large")

// Options configure a Store. They are fixed for the store's lifetime.
type Options struct {
	// WindowSize is the ring capacity W. A log holds at most W-1 records.
	WindowSize uint64
	// MaxRecordSize is the largest accepted payload in bytes.
	MaxRecordSize int
	Legacy        LegacyPolicy
	Observer      Observer
	Logger        logpkg.Logger
}

// DefaultOptions returns W=128 and a 512 byte record limit.
func DefaultOptions() Options {
	return Options{WindowSize: DefaultWindowSize, MaxRecordSize: DefaultMaxRecordSize}
}

// Validate checks the sizing options.
func (o Options) Validate() error {
	if o.WindowSize < 2 {
		return fmt.Errorf("%w: %d", ErrInvalidWindow, o.WindowSize)
	}
	if o.MaxRecordSize < 0 {
		return fmt.Errorf("datalog: negative max record size %d", o.MaxRecordSize)
	}
	switch o.Legacy {
	case LegacyDiscard, LegacyMigrate:
	default:
		return fmt.Errorf("datalog: invalid legacy policy %v", o.Legacy)
	}
	return nil
}

// Store keeps one bounded log per key on top of a kv.Store.
//
// Mutations are serialised and each commits as a single substrate
// transaction. Query runs concurrently with other queries against a
// consistent view.
type Store struct {
	kv      kv.Store
	window  uint64
	maxSize int
	legacy  LegacyPolicy
	obs     Observer
	evict   EvictionObserver
	logger  logpkg.Logger

	mu sync.RWMutex
}

// New wraps db. The caller keeps ownership of db and closes it.
func New(db kv.Store, opts Options) (*Store, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	s := &Store{
		kv:      db,
		window:  opts.WindowSize,
		maxSize: opts.MaxRecordSize,
		legacy:  opts.Legacy,
		obs:     opts.Observer,
		logger:  opts.Logger,
	}
	if s.obs == nil {
		s.obs = NopObserver{}
	}
	if e, ok := s.obs.(EvictionObserver); ok {
		s.evict = e
	}
	if s.logger == nil {
		s.logger = logpkg.NewLogger()
	}
	s.logger = s.logger.With(logpkg.Component("datalog"))
	return s, nil
}

func (s *Store) WindowSize() uint64 { return s.window }
func (s *Store) MaxRecordSize() int { return s.maxSize }

// Append adds (ts, payload) as the newest record of key, evicting the oldest
// record when the log already holds W-1 entries. Any legacy list stored for
// key is removed in the same transaction.
func (s *Store) Append(ctx context.Context, key string, payload []byte, ts int64) error {
	if len(payload) > s.maxSize {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrRecordTooLarge, len(payload), s.maxSize)
	}
	rec := Record{Timestamp: ts, Payload: append([]byte{}, payload...)}

	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		evicted  Record
		hasEvict bool
		migrated int
	)
	err := s.kv.Update(ctx, func(tx kv.Txn) error {
		hasEvict, migrated = false, 0
		idx, _, err := loadIndex(ctx, tx, key, s.window)
		if err != nil {
			return err
		}
		if migrated, err = s.purgeLegacy(ctx, tx, key, &idx); err != nil {
			return err
		}
		oldest := idx.Start
		slot := idx.Allocate(s.window)
		if s.evict != nil && idx.Start != oldest {
			evicted, hasEvict, err = s.readEvicted(ctx, tx, key, oldest)
			if err != nil {
				return err
			}
		}
		if err := tx.Set(KeyItem(key, slot), encodeItem(rec)); err != nil {
			return err
		}
		return tx.Set(KeyIndex(key), encodeIndex(idx))
	})
	if err != nil {
		return fmt.Errorf("datalog: append %q: %w", key, err)
	}
	if migrated > 0 {
		s.logger.Info("migrated legacy log", logpkg.Str("key", key), logpkg.Int("records", migrated))
	}
	if hasEvict {
		s.evict.RecordEvicted(ctx, key, evicted)
	}
	s.obs.RecordAppended(ctx, key, rec)
	return nil
}

// Erase removes every record of key together with its index and any legacy
// list. Erasing an absent log succeeds.
func (s *Store) Erase(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	err := s.kv.Update(ctx, func(tx kv.Txn) error {
		removed = 0
		if err := tx.Delete(KeyLegacy(key)); err != nil {
			return err
		}
		idx, found, err := loadIndex(ctx, tx, key, s.window)
		if err != nil || !found {
			return err
		}
		if err := tx.Delete(KeyIndex(key)); err != nil {
			return err
		}
		for slot := range idx.Drain(s.window) {
			if err := tx.Delete(KeyItem(key, slot)); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("datalog: erase %q: %w", key, err)
	}
	s.obs.LogErased(ctx, key, removed)
	return nil
}

// Query returns the live records of key, oldest first. An unknown key yields
// an empty slice. Items that are missing or fail their checksum are skipped
// and logged.
func (s *Store) Query(ctx context.Context, key string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	err := s.kv.View(ctx, func(r kv.Reader) error {
		idx, _, err := loadIndex(ctx, r, key, s.window)
		if err != nil {
			return err
		}
		out = make([]Record, 0, idx.Len(s.window))
		for slot := range idx.Peek(s.window) {
			rec, err := readItem(ctx, r, key, slot)
			switch {
			case err == nil:
				out = append(out, rec)
			case errors.Is(err, kv.ErrNotFound), errors.Is(err, ErrCorrupt):
				s.logger.Warn("skipping unreadable item", logpkg.Str("key", key), logpkg.Uint64("slot", slot), logpkg.Err(err))
			default:
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("datalog: query %q: %w", key, err)
	}
	return out, nil
}

// Index returns the current slot index of key; absent logs report an empty
// index.
func (s *Store) Index(ctx context.Context, key string) (SlotIndex, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, _, err := loadIndex(ctx, s.kv, key, s.window)
	return idx, err
}

func loadIndex(ctx context.Context, r kv.Reader, key string, w uint64) (SlotIndex, bool, error) {
	raw, err := r.Get(ctx, KeyIndex(key))
	if errors.Is(err, kv.ErrNotFound) {
		return SlotIndex{}, false, nil
	}
	if err != nil {
		return SlotIndex{}, false, err
	}
	idx, err := decodeIndex(raw, w)
	if err != nil {
		return SlotIndex{}, false, fmt.Errorf("index: %w", err)
	}
	return idx, true, nil
}

func readItem(ctx context.Context, r kv.Reader, key string, slot uint64) (Record, error) {
	raw, err := r.Get(ctx, KeyItem(key, slot))
	if err != nil {
		return Record{}, err
	}
	return decodeItem(raw)
}

func (s *Store) readEvicted(ctx context.Context, tx kv.Txn, key string, slot uint64) (Record, bool, error) {
	rec, err := readItem(ctx, tx, key, slot)
	switch {
	case err == nil:
		return rec, true, nil
	case errors.Is(err, kv.ErrNotFound), errors.Is(err, ErrCorrupt):
		s.logger.Warn("evicted item unreadable", logpkg.Str("key", key), logpkg.Uint64("slot", slot), logpkg.Err(err))
		return Record{}, false, nil
	default:
		return Record{}, false, err
	}
}

// purgeLegacy deletes the legacy list of key, first copying it into idx when
// the policy is LegacyMigrate. It returns the number of migrated records.
func (s *Store) purgeLegacy(ctx context.Context, tx kv.Txn, key string, idx *SlotIndex) (int, error) {
	lk := KeyLegacy(key)
	n := 0
	if s.legacy == LegacyMigrate {
		raw, err := tx.Get(ctx, lk)
		switch {
		case errors.Is(err, kv.ErrNotFound):
		case err != nil:
			return 0, err
		default:
			recs, derr := decodeLegacy(raw)
			if derr != nil {
				s.logger.Warn("discarding undecodable legacy log", logpkg.Str("key", key), logpkg.Err(derr))
				break
			}
			for _, r := range migrateLegacy(recs, s.window, s.maxSize) {
				slot := idx.Allocate(s.window)
				if err := tx.Set(KeyItem(key, slot), encodeItem(r)); err != nil {
					return 0, err
				}
				n++
			}
		}
	}
	return n, tx.Delete(lk)
}
