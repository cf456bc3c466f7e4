package datalog

import (
	"encoding/binary"
)

// Keyspace helpers for the substrate.
//
// Layout (byte-wise, lexicographically sortable per log key):
// - dl/{uvarint len}{key}/i            slot index
// - dl/{uvarint len}{key}/e/{slot_be8} ring items
// - dl/{uvarint len}{key}/l            legacy unbounded list
//
// The length prefix keeps one key from being a prefix of another's layout.

var (
	dlPrefix     = []byte("dl/")
	indexSuffix  = []byte("/i")
	itemSeg      = []byte("/e/")
	legacySuffix = []byte("/l")
)

func appendKeyPrefix(dst []byte, key string) []byte {
	dst = append(dst, dlPrefix...)
	dst = binary.AppendUvarint(dst, uint64(len(key)))
	return append(dst, key...)
}

// KeyIndex builds the slot index key for a log.
func KeyIndex(key string) []byte {
	k := make([]byte, 0, len(key)+16)
	k = appendKeyPrefix(k, key)
	return append(k, indexSuffix...)
}

// KeyItem builds the ring item key with a big-endian slot.
func KeyItem(key string, slot uint64) []byte {
	k := make([]byte, 0, len(key)+24)
	k = appendKeyPrefix(k, key)
	k = append(k, itemSeg...)
	return binary.BigEndian.AppendUint64(k, slot)
}

// KeyLegacy builds the key of the deprecated unbounded list.
func KeyLegacy(key string) []byte {
	k := make([]byte, 0, len(key)+16)
	k = appendKeyPrefix(k, key)
	return append(k, legacySuffix...)
}
