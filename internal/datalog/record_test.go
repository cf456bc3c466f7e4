package datalog

import (
	"bytes"
	"errors"
	"math"
	"testing"
)

func TestItemCodec(t *testing.T) {
	in := Record{Timestamp: -42, Payload: []byte("hello")}
	got, err := decodeItem(encodeItem(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Timestamp != in.Timestamp || !bytes.Equal(got.Payload, in.Payload) {
		t.Fatalf("got %+v", got)
	}
}

func TestItemChecksumDetectsDamage(t *testing.T) {
	b := encodeItem(Record{Timestamp: 7, Payload: []byte("payload")})
	b[2] ^= 0xff
	if _, err := decodeItem(b); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("want ErrCorrupt, got %v", err)
	}
	if _, err := decodeItem([]byte{1, 2}); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("short value: want ErrCorrupt, got %v", err)
	}
}

func TestIndexCodec(t *testing.T) {
	for _, idx := range []SlotIndex{{}, {Start: 3, End: 1}, {Start: 127, End: 126}} {
		got, err := decodeIndex(encodeIndex(idx), 128)
		if err != nil || got != idx {
			t.Fatalf("%+v: got %+v, %v", idx, got, err)
		}
	}
	if _, err := decodeIndex(encodeIndex(SlotIndex{Start: 5}), 5); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("out of range start accepted: %v", err)
	}
	if _, err := decodeIndex(append(encodeIndex(SlotIndex{}), 0), 5); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("trailing bytes accepted: %v", err)
	}
}

func TestLegacyCodec(t *testing.T) {
	in := []Record{{Timestamp: 1, Payload: []byte("a")}, {Timestamp: 2, Payload: nil}, {Timestamp: 3, Payload: []byte("ccc")}}
	got, err := decodeLegacy(EncodeLegacy(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != len(in) {
		t.Fatalf("got %d records", len(got))
	}
	for i := range in {
		if got[i].Timestamp != in[i].Timestamp || !bytes.Equal(got[i].Payload, in[i].Payload) {
			t.Fatalf("record %d: got %+v", i, got[i])
		}
	}
	enc := EncodeLegacy(in)
	if _, err := decodeLegacy(enc[:len(enc)-1]); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("truncated list accepted: %v", err)
	}
}

func TestMigrateLegacySelection(t *testing.T) {
	recs := []Record{
		{Timestamp: 1, Payload: []byte("a")},
		{Timestamp: 2, Payload: []byte("toolong")},
		{Timestamp: 3, Payload: []byte("b")},
		{Timestamp: 4, Payload: []byte("c")},
	}
	got := migrateLegacy(recs, 3, 4)
	if len(got) != 2 || got[0].Timestamp != 3 || got[1].Timestamp != 4 {
		t.Fatalf("got %+v", got)
	}
	if got := migrateLegacy(recs[:1], 8, 4); len(got) != 1 {
		t.Fatalf("short list trimmed: %+v", got)
	}
}

func TestMigrateLegacyHugeWindow(t *testing.T) {
	recs := []Record{{Timestamp: 1, Payload: []byte("a")}, {Timestamp: 2, Payload: []byte("b")}}
	for _, w := range []uint64{math.MaxInt64 + 1, math.MaxUint64} {
		if got := migrateLegacy(recs, w, 4); len(got) != 2 {
			t.Fatalf("w=%d: got %+v", w, got)
		}
	}
}

func TestParseLegacyPolicy(t *testing.T) {
	cases := map[string]LegacyPolicy{"": LegacyDiscard, "discard": LegacyDiscard, "MIGRATE": LegacyMigrate}
	for in, want := range cases {
		got, err := ParseLegacyPolicy(in)
		if err != nil || got != want {
			t.Fatalf("%q: got %v, %v", in, got, err)
		}
	}
	if _, err := ParseLegacyPolicy("keep"); err == nil {
		t.Fatalf("expected error for unknown policy")
	}
}
