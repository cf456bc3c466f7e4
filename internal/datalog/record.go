package datalog

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
)

// Record is one timestamped payload in a log.
type Record struct {
	// Timestamp is the caller-supplied clock reading in Unix milliseconds.
	Timestamp int64
	Payload   []byte
}

// ErrCorrupt reports a stored value that fails to decode or checksum.
var ErrCorrupt = errors.New("datalog: corrupt value")

// Item encoding: varint ts | payload | crc32c(ts|payload)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

func encodeItem(r Record) []byte {
	out := make([]byte, 0, binary.MaxVarintLen64+len(r.Payload)+4)
	out = binary.AppendVarint(out, r.Timestamp)
	out = append(out, r.Payload...)
	return binary.BigEndian.AppendUint32(out, crc32.Checksum(out, castagnoli))
}

func decodeItem(b []byte) (Record, error) {
	if len(b) < 1+4 {
		return Record{}, ErrCorrupt
	}
	body := b[:len(b)-4]
	if crc32.Checksum(body, castagnoli) != binary.BigEndian.Uint32(b[len(b)-4:]) {
		return Record{}, ErrCorrupt
	}
	ts, n := binary.Varint(body)
	if n <= 0 {
		return Record{}, ErrCorrupt
	}
	return Record{Timestamp: ts, Payload: append([]byte{}, body[n:]...)}, nil
}

// Index encoding: uvarint start | uvarint end

func encodeIndex(x SlotIndex) []byte {
	out := make([]byte, 0, 2*binary.MaxVarintLen64)
	out = binary.AppendUvarint(out, x.Start)
	return binary.AppendUvarint(out, x.End)
}

func decodeIndex(b []byte, w uint64) (SlotIndex, error) {
	start, n := binary.Uvarint(b)
	if n <= 0 {
		return SlotIndex{}, ErrCorrupt
	}
	end, m := binary.Uvarint(b[n:])
	if m <= 0 || n+m != len(b) {
		return SlotIndex{}, ErrCorrupt
	}
	if start >= w || end >= w {
		return SlotIndex{}, ErrCorrupt
	}
	return SlotIndex{Start: start, End: end}, nil
}

// Legacy list encoding: uvarint count | count x (varint ts | uvarint len | bytes)

// EncodeLegacy renders records in the deprecated unbounded list format.
func EncodeLegacy(recs []Record) []byte {
	out := binary.AppendUvarint(nil, uint64(len(recs)))
	for _, r := range recs {
		out = binary.AppendVarint(out, r.Timestamp)
		out = binary.AppendUvarint(out, uint64(len(r.Payload)))
		out = append(out, r.Payload...)
	}
	return out
}

func decodeLegacy(b []byte) ([]Record, error) {
	count, n := binary.Uvarint(b)
	if n <= 0 {
		return nil, ErrCorrupt
	}
	b = b[n:]
	// each entry takes at least two bytes
	if count > uint64(len(b))/2 {
		return nil, ErrCorrupt
	}
	recs := make([]Record, 0, count)
	for i := uint64(0); i < count; i++ {
		ts, n := binary.Varint(b)
		if n <= 0 {
			return nil, ErrCorrupt
		}
		b = b[n:]
		size, m := binary.Uvarint(b)
		if m <= 0 || size > uint64(len(b)-m) {
			return nil, ErrCorrupt
		}
		b = b[m:]
		recs = append(recs, Record{Timestamp: ts, Payload: append([]byte{}, b[:size]...)})
		b = b[size:]
	}
	return recs, nil
}
