package redisstore

import (
	"context"
	"errors"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/rzbill/datalog/internal/datalog"
	"github.com/rzbill/datalog/internal/storage/kv"
	logpkg "github.com/rzbill/datalog/pkg/log"
)

// newTestStore connects to DATALOG_TEST_REDIS_ADDR or skips.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	return openWithPrefix(t, "datalog-test:"+strconv.FormatInt(time.Now().UnixNano(), 36)+":")
}

func openWithPrefix(t *testing.T, prefix string) *Store {
	t.Helper()
	addr := os.Getenv("DATALOG_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("DATALOG_TEST_REDIS_ADDR not set")
	}
	opts := DefaultOptions(addr)
	opts.Prefix = prefix
	s, err := Open(context.Background(), opts)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenRequiresAddr(t *testing.T) {
	if _, err := Open(context.Background(), Options{}); err == nil {
		t.Fatalf("expected error for empty addr")
	}
}

func TestUpdateAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	err := s.Update(ctx, func(tx kv.Txn) error {
		if err := tx.Set([]byte("a"), []byte("1")); err != nil {
			return err
		}
		v, err := tx.Get(ctx, []byte("a"))
		if err != nil {
			return err
		}
		if string(v) != "1" {
			t.Fatalf("txn read got %q", v)
		}
		return tx.Delete([]byte("missing"))
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	v, err := s.Get(ctx, []byte("a"))
	if err != nil || string(v) != "1" {
		t.Fatalf("a=%q err=%v", v, err)
	}
	if _, err := s.Get(ctx, []byte("missing")); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestUpdateDiscardsOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")
	if err := s.Update(ctx, func(tx kv.Txn) error {
		_ = tx.Set([]byte("x"), []byte("y"))
		return boom
	}); !errors.Is(err, boom) {
		t.Fatalf("want boom, got %v", err)
	}
	if _, err := s.Get(ctx, []byte("x")); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("failed update wrote data: %v", err)
	}
}

func TestViewRerunsWhenReadKeyChanges(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	set := func(v string) {
		t.Helper()
		if err := s.Update(ctx, func(tx kv.Txn) error { return tx.Set([]byte("a"), []byte(v)) }); err != nil {
			t.Fatalf("set: %v", err)
		}
	}
	set("1")

	calls := 0
	var seen string
	err := s.View(ctx, func(r kv.Reader) error {
		calls++
		v, err := r.Get(ctx, []byte("a"))
		if err != nil {
			return err
		}
		seen = string(v)
		if calls == 1 {
			// another writer lands between the read and the end of the view
			set("2")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if calls != 2 || seen != "2" {
		t.Fatalf("calls=%d seen=%q", calls, seen)
	}
}

// Two stores on one prefix stand in for two server processes.
func TestQueryStaysOrderedUnderForeignWriter(t *testing.T) {
	prefix := "datalog-test:" + strconv.FormatInt(time.Now().UnixNano(), 36) + ":"
	quiet := logpkg.NewLogger(logpkg.WithOutput(logpkg.NullOutput{}))
	opts := datalog.Options{WindowSize: 4, MaxRecordSize: 16, Logger: quiet}
	reader, err := datalog.New(openWithPrefix(t, prefix), opts)
	if err != nil {
		t.Fatalf("reader: %v", err)
	}
	writer, err := datalog.New(openWithPrefix(t, prefix), opts)
	if err != nil {
		t.Fatalf("writer: %v", err)
	}
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := int64(1); i <= 200; i++ {
			if err := writer.Append(ctx, "k", []byte("x"), i); err != nil {
				t.Errorf("append %d: %v", i, err)
				return
			}
		}
	}()
	for i := 0; i < 200; i++ {
		recs, err := reader.Query(ctx, "k")
		if errors.Is(err, ErrConflict) {
			continue
		}
		if err != nil {
			t.Fatalf("query: %v", err)
		}
		if len(recs) > 3 {
			t.Fatalf("query returned %d records", len(recs))
		}
		for j := 1; j < len(recs); j++ {
			if recs[j].Timestamp != recs[j-1].Timestamp+1 {
				t.Fatalf("query out of order: %+v", recs)
			}
		}
	}
	wg.Wait()
}
