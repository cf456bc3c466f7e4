package datalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rzbill/datalog/internal/storage/kv"
	pebblestore "github.com/rzbill/datalog/internal/storage/pebble"
	logpkg "github.com/rzbill/datalog/pkg/log"
)

func quietLogger() logpkg.Logger {
	return logpkg.NewLogger(logpkg.WithOutput(logpkg.NullOutput{}))
}

func newTestStore(t *testing.T, opts Options) (*Store, *kv.Memory) {
	t.Helper()
	mem := kv.NewMemory()
	t.Cleanup(func() { _ = mem.Close() })
	if opts.Logger == nil {
		opts.Logger = quietLogger()
	}
	s, err := New(mem, opts)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s, mem
}

type recorder struct {
	mu       sync.Mutex
	appended []Record
	evicted  []Record
	erased   []int
}

func (r *recorder) RecordAppended(_ context.Context, _ string, rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appended = append(r.appended, rec)
}

func (r *recorder) LogErased(_ context.Context, _ string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.erased = append(r.erased, n)
}

func (r *recorder) RecordEvicted(_ context.Context, _ string, rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evicted = append(r.evicted, rec)
}

func mustAppend(t *testing.T, s *Store, key string, payload string, ts int64) {
	t.Helper()
	if err := s.Append(context.Background(), key, []byte(payload), ts); err != nil {
		t.Fatalf("append %q ts=%d: %v", key, ts, err)
	}
}

func mustQuery(t *testing.T, s *Store, key string) []Record {
	t.Helper()
	recs, err := s.Query(context.Background(), key)
	if err != nil {
		t.Fatalf("query %q: %v", key, err)
	}
	return recs
}

func timestamps(recs []Record) []int64 {
	out := make([]int64, len(recs))
	for i, r := range recs {
		out[i] = r.Timestamp
	}
	return out
}

func TestNewRejectsSmallWindow(t *testing.T) {
	for _, w := range []uint64{0, 1} {
		_, err := New(kv.NewMemory(), Options{WindowSize: w, MaxRecordSize: 10})
		if !errors.Is(err, ErrInvalidWindow) {
			t.Fatalf("w=%d: want ErrInvalidWindow, got %v", w, err)
		}
	}
	if _, err := New(kv.NewMemory(), Options{WindowSize: 2, MaxRecordSize: -1}); err == nil {
		t.Fatalf("expected negative max record size to be rejected")
	}
}

func TestWindowKeepsNewestRecords(t *testing.T) {
	s, _ := newTestStore(t, Options{WindowSize: 20, MaxRecordSize: 512})
	for i := int64(0); i < 30; i++ {
		mustAppend(t, s, "alice", fmt.Sprintf("r%d", i), i)
	}
	recs := mustQuery(t, s, "alice")
	if len(recs) != 19 {
		t.Fatalf("want 19 records, got %d", len(recs))
	}
	for i, r := range recs {
		want := int64(11 + i)
		if r.Timestamp != want || string(r.Payload) != fmt.Sprintf("r%d", want) {
			t.Fatalf("record %d: got (%d,%q), want ts %d", i, r.Timestamp, r.Payload, want)
		}
	}
	idx, err := s.Index(context.Background(), "alice")
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	if idx != (SlotIndex{Start: 11, End: 10}) {
		t.Fatalf("index: got %+v", idx)
	}
}

func TestAppendEraseAppend(t *testing.T) {
	s, _ := newTestStore(t, Options{WindowSize: 20, MaxRecordSize: 512})
	mustAppend(t, s, "alice", "x", 1)
	if err := s.Erase(context.Background(), "alice"); err != nil {
		t.Fatalf("erase: %v", err)
	}
	mustAppend(t, s, "alice", "y", 5)
	recs := mustQuery(t, s, "alice")
	if len(recs) != 1 || recs[0].Timestamp != 5 || string(recs[0].Payload) != "y" {
		t.Fatalf("got %+v", recs)
	}
}

func TestRecordTooLargeHasNoEffect(t *testing.T) {
	obs := &recorder{}
	s, mem := newTestStore(t, Options{WindowSize: 20, MaxRecordSize: 512, Observer: obs})
	mustAppend(t, s, "alice", "keep", 1)
	before := mem.Len()

	err := s.Append(context.Background(), "alice", bytes.Repeat([]byte{'a'}, 600), 2)
	if !errors.Is(err, ErrRecordTooLarge) {
		t.Fatalf("want ErrRecordTooLarge, got %v", err)
	}
	if mem.Len() != before {
		t.Fatalf("substrate changed: %d -> %d keys", before, mem.Len())
	}
	if got := timestamps(mustQuery(t, s, "alice")); len(got) != 1 || got[0] != 1 {
		t.Fatalf("log changed: %v", got)
	}
	if len(obs.appended) != 1 {
		t.Fatalf("observer saw %d appends, want 1", len(obs.appended))
	}

	// exactly at the limit is accepted
	if err := s.Append(context.Background(), "alice", bytes.Repeat([]byte{'b'}, 512), 3); err != nil {
		t.Fatalf("append at limit: %v", err)
	}
}

func TestRecordTooLargeKeepsLegacy(t *testing.T) {
	for _, policy := range []LegacyPolicy{LegacyDiscard, LegacyMigrate} {
		t.Run(policy.String(), func(t *testing.T) {
			obs := &recorder{}
			s, mem := newTestStore(t, Options{WindowSize: 20, MaxRecordSize: 512, Legacy: policy, Observer: obs})
			seedLegacy(t, mem, "alice", []Record{{Timestamp: 1, Payload: []byte("old")}})
			before := mem.Len()

			err := s.Append(context.Background(), "alice", bytes.Repeat([]byte{'a'}, 600), 2)
			if !errors.Is(err, ErrRecordTooLarge) {
				t.Fatalf("want ErrRecordTooLarge, got %v", err)
			}
			if !legacyExists(t, mem, "alice") {
				t.Fatalf("rejected append purged the legacy log")
			}
			if mem.Len() != before {
				t.Fatalf("substrate changed: %d -> %d keys", before, mem.Len())
			}
			if recs := mustQuery(t, s, "alice"); len(recs) != 0 {
				t.Fatalf("rejected append left records: %+v", recs)
			}
			if len(obs.appended) != 0 || len(obs.evicted) != 0 {
				t.Fatalf("observer notified: %+v", obs)
			}
		})
	}
}

func TestZeroMaxRecordSizeAcceptsEmptyPayload(t *testing.T) {
	s, _ := newTestStore(t, Options{WindowSize: 3, MaxRecordSize: 0})
	mustAppend(t, s, "k", "", 7)
	if err := s.Append(context.Background(), "k", []byte("x"), 8); !errors.Is(err, ErrRecordTooLarge) {
		t.Fatalf("want ErrRecordTooLarge, got %v", err)
	}
	recs := mustQuery(t, s, "k")
	if len(recs) != 1 || recs[0].Timestamp != 7 || len(recs[0].Payload) != 0 {
		t.Fatalf("got %+v", recs)
	}
}

func TestCapacityAndFIFO(t *testing.T) {
	const w = 5
	s, _ := newTestStore(t, Options{WindowSize: w, MaxRecordSize: 16})
	for n := int64(1); n <= 3*w; n++ {
		mustAppend(t, s, "k", "p", n)
		got := timestamps(mustQuery(t, s, "k"))
		wantLen := n
		if wantLen > w-1 {
			wantLen = w - 1
		}
		if int64(len(got)) != wantLen {
			t.Fatalf("after %d appends: len %d, want %d", n, len(got), wantLen)
		}
		for i, ts := range got {
			if want := n - wantLen + 1 + int64(i); ts != want {
				t.Fatalf("after %d appends: got %v", n, got)
			}
		}
	}
}

func TestEraseRemovesEverything(t *testing.T) {
	s, mem := newTestStore(t, Options{WindowSize: 4, MaxRecordSize: 16})
	for i := int64(0); i < 3; i++ {
		mustAppend(t, s, "a", "a", i)
		mustAppend(t, s, "b", "b", i)
	}
	if err := s.Erase(context.Background(), "a"); err != nil {
		t.Fatalf("erase: %v", err)
	}
	if got := mustQuery(t, s, "a"); len(got) != 0 {
		t.Fatalf("erased log still has %d records", len(got))
	}
	// b keeps its index and three items
	if mem.Len() != 4 {
		t.Fatalf("want 4 substrate keys, got %d", mem.Len())
	}
	if got := timestamps(mustQuery(t, s, "b")); len(got) != 3 {
		t.Fatalf("other key affected: %v", got)
	}
}

func TestEraseAfterWraparound(t *testing.T) {
	s, _ := newTestStore(t, Options{WindowSize: 4, MaxRecordSize: 16})
	for i := int64(0); i < 10; i++ {
		mustAppend(t, s, "a", "old", i)
	}
	if err := s.Erase(context.Background(), "a"); err != nil {
		t.Fatalf("erase: %v", err)
	}
	mustAppend(t, s, "a", "new", 100)
	recs := mustQuery(t, s, "a")
	if len(recs) != 1 || recs[0].Timestamp != 100 {
		t.Fatalf("stale slot leaked into query: %+v", recs)
	}
}

func TestEraseIsIdempotent(t *testing.T) {
	obs := &recorder{}
	s, mem := newTestStore(t, Options{WindowSize: 4, MaxRecordSize: 16, Observer: obs})
	ctx := context.Background()
	if err := s.Erase(ctx, "ghost"); err != nil {
		t.Fatalf("erase absent: %v", err)
	}
	mustAppend(t, s, "k", "x", 1)
	mustAppend(t, s, "k", "y", 2)
	if err := s.Erase(ctx, "k"); err != nil {
		t.Fatalf("erase: %v", err)
	}
	if err := s.Erase(ctx, "k"); err != nil {
		t.Fatalf("second erase: %v", err)
	}
	if mem.Len() != 0 {
		t.Fatalf("substrate not empty: %d keys", mem.Len())
	}
	want := []int{0, 2, 0}
	if fmt.Sprint(obs.erased) != fmt.Sprint(want) {
		t.Fatalf("erase events: got %v, want %v", obs.erased, want)
	}
}

func TestQueryUnknownKey(t *testing.T) {
	s, _ := newTestStore(t, Options{WindowSize: 4, MaxRecordSize: 16})
	recs := mustQuery(t, s, "nobody")
	if recs == nil || len(recs) != 0 {
		t.Fatalf("want empty non-nil slice, got %#v", recs)
	}
}

func TestQuerySkipsCorruptItem(t *testing.T) {
	s, mem := newTestStore(t, Options{WindowSize: 8, MaxRecordSize: 16})
	for i := int64(1); i <= 3; i++ {
		mustAppend(t, s, "k", "p", i)
	}
	err := mem.Update(context.Background(), func(tx kv.Txn) error {
		return tx.Set(KeyItem("k", 1), []byte("garbage"))
	})
	if err != nil {
		t.Fatalf("corrupt: %v", err)
	}
	if got := timestamps(mustQuery(t, s, "k")); fmt.Sprint(got) != "[1 3]" {
		t.Fatalf("got %v", got)
	}
}

func TestCorruptIndexSurfaces(t *testing.T) {
	s, mem := newTestStore(t, Options{WindowSize: 8, MaxRecordSize: 16})
	err := mem.Update(context.Background(), func(tx kv.Txn) error {
		return tx.Set(KeyIndex("k"), encodeIndex(SlotIndex{Start: 9, End: 1}))
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := s.Query(context.Background(), "k"); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("want ErrCorrupt, got %v", err)
	}
}

func TestQueryReturnsCopies(t *testing.T) {
	s, _ := newTestStore(t, Options{WindowSize: 4, MaxRecordSize: 16})
	payload := []byte("abc")
	if err := s.Append(context.Background(), "k", payload, 1); err != nil {
		t.Fatalf("append: %v", err)
	}
	payload[0] = 'z'
	recs := mustQuery(t, s, "k")
	recs[0].Payload[1] = 'z'
	if got := string(mustQuery(t, s, "k")[0].Payload); got != "abc" {
		t.Fatalf("stored payload aliased caller memory: %q", got)
	}
}

func TestObserverSeesEvictions(t *testing.T) {
	obs := &recorder{}
	s, _ := newTestStore(t, Options{WindowSize: 3, MaxRecordSize: 16, Observer: Observers(NopObserver{}, obs)})
	for i := int64(1); i <= 4; i++ {
		mustAppend(t, s, "k", fmt.Sprintf("p%d", i), i)
	}
	if len(obs.appended) != 4 {
		t.Fatalf("appended events: %d", len(obs.appended))
	}
	if got := timestamps(obs.evicted); fmt.Sprint(got) != "[1 2]" {
		t.Fatalf("evicted: %v", got)
	}
	if string(obs.evicted[0].Payload) != "p1" {
		t.Fatalf("evicted payload: %q", obs.evicted[0].Payload)
	}
}

type appendCounter struct{ n int }

func (c *appendCounter) RecordAppended(context.Context, string, Record) { c.n++ }
func (c *appendCounter) LogErased(context.Context, string, int)         {}

func TestObserversFanOut(t *testing.T) {
	plain := &appendCounter{}
	if _, ok := Observers(plain, nil).(EvictionObserver); ok {
		t.Fatalf("plain fan-out should not report evictions")
	}
	rec := &recorder{}
	fan := Observers(plain, rec)
	if _, ok := fan.(EvictionObserver); !ok {
		t.Fatalf("fan-out with an eviction observer should implement EvictionObserver")
	}
	fan.RecordAppended(context.Background(), "k", Record{Timestamp: 1})
	if plain.n != 1 || len(rec.appended) != 1 {
		t.Fatalf("fan-out missed an observer: %d %d", plain.n, len(rec.appended))
	}
}

func seedLegacy(t *testing.T, mem *kv.Memory, key string, recs []Record) {
	t.Helper()
	err := mem.Update(context.Background(), func(tx kv.Txn) error {
		return tx.Set(KeyLegacy(key), EncodeLegacy(recs))
	})
	if err != nil {
		t.Fatalf("seed legacy: %v", err)
	}
}

func legacyExists(t *testing.T, mem *kv.Memory, key string) bool {
	t.Helper()
	_, err := mem.Get(context.Background(), KeyLegacy(key))
	if err != nil && !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("get legacy: %v", err)
	}
	return err == nil
}

func TestAppendDiscardsLegacy(t *testing.T) {
	s, mem := newTestStore(t, Options{WindowSize: 4, MaxRecordSize: 16})
	seedLegacy(t, mem, "k", []Record{{Timestamp: 1, Payload: []byte("old")}})
	mustAppend(t, s, "k", "new", 2)
	if legacyExists(t, mem, "k") {
		t.Fatalf("legacy log survived append")
	}
	if got := timestamps(mustQuery(t, s, "k")); fmt.Sprint(got) != "[2]" {
		t.Fatalf("got %v", got)
	}
}

func TestAppendMigratesLegacy(t *testing.T) {
	obs := &recorder{}
	s, mem := newTestStore(t, Options{WindowSize: 4, MaxRecordSize: 8, Legacy: LegacyMigrate, Observer: obs})
	seedLegacy(t, mem, "k", []Record{
		{Timestamp: 1, Payload: []byte("l1")},
		{Timestamp: 2, Payload: []byte("l2")},
		{Timestamp: 3, Payload: []byte("too large!")},
		{Timestamp: 4, Payload: []byte("l4")},
		{Timestamp: 5, Payload: []byte("l5")},
	})
	mustAppend(t, s, "k", "new", 10)
	if legacyExists(t, mem, "k") {
		t.Fatalf("legacy log survived migration")
	}
	if got := timestamps(mustQuery(t, s, "k")); fmt.Sprint(got) != "[4 5 10]" {
		t.Fatalf("got %v", got)
	}
	if got := timestamps(obs.evicted); fmt.Sprint(got) != "[2]" {
		t.Fatalf("evicted: %v", got)
	}
}

func TestMigrateSkipsUndecodableLegacy(t *testing.T) {
	s, mem := newTestStore(t, Options{WindowSize: 4, MaxRecordSize: 8, Legacy: LegacyMigrate})
	err := mem.Update(context.Background(), func(tx kv.Txn) error {
		return tx.Set(KeyLegacy("k"), []byte{0x05, 0x01})
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	mustAppend(t, s, "k", "new", 10)
	if legacyExists(t, mem, "k") {
		t.Fatalf("legacy log survived")
	}
	if got := timestamps(mustQuery(t, s, "k")); fmt.Sprint(got) != "[10]" {
		t.Fatalf("got %v", got)
	}
}

func TestEraseDiscardsLegacy(t *testing.T) {
	s, mem := newTestStore(t, Options{WindowSize: 4, MaxRecordSize: 8, Legacy: LegacyMigrate})
	seedLegacy(t, mem, "k", []Record{{Timestamp: 1, Payload: []byte("l1")}})
	if err := s.Erase(context.Background(), "k"); err != nil {
		t.Fatalf("erase: %v", err)
	}
	if legacyExists(t, mem, "k") || mem.Len() != 0 {
		t.Fatalf("erase left data behind: %d keys", mem.Len())
	}
}

func TestConcurrentAppendsKeepWindow(t *testing.T) {
	const w = 8
	s, _ := newTestStore(t, Options{WindowSize: w, MaxRecordSize: 16})
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				if err := s.Append(context.Background(), "k", []byte("p"), int64(g*1000+i)); err != nil {
					t.Errorf("append: %v", err)
					return
				}
			}
		}(g)
	}
	wg.Wait()
	if got := mustQuery(t, s, "k"); len(got) != w-1 {
		t.Fatalf("want %d records, got %d", w-1, len(got))
	}
}

func TestPebbleBackedStoreIsDurable(t *testing.T) {
	dir := t.TempDir()
	open := func() (*pebblestore.DB, *Store) {
		db, err := pebblestore.Open(pebblestore.Options{DataDir: dir, Fsync: pebblestore.FsyncModeAlways})
		if err != nil {
			t.Fatalf("open pebble: %v", err)
		}
		s, err := New(db, Options{WindowSize: 3, MaxRecordSize: 16, Logger: quietLogger()})
		if err != nil {
			t.Fatalf("new store: %v", err)
		}
		return db, s
	}
	db, s := open()
	for i := int64(1); i <= 5; i++ {
		mustAppend(t, s, "k", fmt.Sprintf("p%d", i), i)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	db, s = open()
	t.Cleanup(func() { _ = db.Close() })
	if got := timestamps(mustQuery(t, s, "k")); fmt.Sprint(got) != "[4 5]" {
		t.Fatalf("after reopen: %v", got)
	}
	if err := s.Erase(context.Background(), "k"); err != nil {
		t.Fatalf("erase: %v", err)
	}
	if got := mustQuery(t, s, "k"); len(got) != 0 {
		t.Fatalf("after erase: %v", got)
	}
}
