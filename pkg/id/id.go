package id

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"sync"
	"time"
)

// ID is a 128-bit sortable identifier: [8B unix ms][8B sequence], big-endian.
type ID [16]byte

// Bytes returns a copy of the raw 16 bytes.
func (i ID) Bytes() []byte { b := make([]byte, 16); copy(b, i[:]); return b }

func (i ID) String() string { return hex.EncodeToString(i[:]) }

// Time returns the millisecond timestamp embedded in the ID.
func (i ID) Time() time.Time {
	return time.UnixMilli(int64(binary.BigEndian.Uint64(i[:8])))
}

// Compare returns -1, 0 or 1 by byte-wise order.
func (i ID) Compare(other ID) int {
	for idx := 0; idx < 16; idx++ {
		if i[idx] < other[idx] {
			return -1
		}
		if i[idx] > other[idx] {
			return 1
		}
	}
	return 0
}

func (i ID) MarshalText() ([]byte, error) { return []byte(i.String()), nil }

func (i *ID) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

// Parse decodes the 32-character hex form produced by String.
func Parse(s string) (ID, error) {
	var out ID
	if len(s) != 32 {
		return out, fmt.Errorf("id: want 32 hex chars, got %d", len(s))
	}
	if _, err := hex.Decode(out[:], []byte(s)); err != nil {
		return out, fmt.Errorf("id: %w", err)
	}
	return out, nil
}

// Generator produces strictly increasing IDs within a process.
type Generator struct {
	mu       sync.Mutex
	now      func() int64
	lastMs   int64
	sequence uint64
}

// NewGenerator returns a Generator on the wall clock.
func NewGenerator() *Generator {
	return NewGeneratorWithClock(func() int64 { return time.Now().UnixMilli() })
}

// NewGeneratorWithClock returns a Generator reading milliseconds from now.
func NewGeneratorWithClock(now func() int64) *Generator {
	return &Generator{now: now}
}

// Next returns a new ID. A regressing clock pins to the last seen millisecond;
// sequence overflow within one millisecond waits for the next one.
func (g *Generator) Next() ID {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := g.now()
	if ms < g.lastMs {
		ms = g.lastMs
	}

	if ms == g.lastMs {
		if g.sequence == math.MaxUint64 {
			for {
				ms = g.now()
				if ms > g.lastMs {
					break
				}
				time.Sleep(time.Millisecond / 8)
			}
			g.sequence = 0
		} else {
			g.sequence++
		}
	} else {
		g.sequence = 0
	}

	g.lastMs = ms
	var id ID
	binary.BigEndian.PutUint64(id[0:8], uint64(ms))
	binary.BigEndian.PutUint64(id[8:16], g.sequence)
	return id
}
