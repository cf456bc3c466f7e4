package datalog

import (
	"fmt"
	"strings"
)

// LegacyPolicy decides what happens to a key's deprecated unbounded list the
// first time the key is mutated. The list is removed either way.
type LegacyPolicy int

const (
	// LegacyDiscard deletes the list without reading it.
	LegacyDiscard LegacyPolicy = iota
	// LegacyMigrate copies the newest entries that fit (at most W-1, entries
	// above MaxRecordSize skipped) into the ring before deleting the list.
	// Only Append migrates; Erase always discards.
	LegacyMigrate
)

func (p LegacyPolicy) String() string {
	switch p {
	case LegacyDiscard:
		return "discard"
	case LegacyMigrate:
		return "migrate"
	default:
		return fmt.Sprintf("LegacyPolicy(%d)", int(p))
	}
}

// ParseLegacyPolicy accepts discard|migrate; empty means discard.
func ParseLegacyPolicy(s string) (LegacyPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "discard":
		return LegacyDiscard, nil
	case "migrate":
		return LegacyMigrate, nil
	default:
		return LegacyDiscard, fmt.Errorf("datalog: unknown legacy policy %q", s)
	}
}

// migrateLegacy picks the legacy records that survive into a ring of size w.
func migrateLegacy(recs []Record, w uint64, maxRecordSize int) []Record {
	kept := make([]Record, 0, len(recs))
	for _, r := range recs {
		if len(r.Payload) <= maxRecordSize {
			kept = append(kept, r)
		}
	}
	if uint64(len(kept)) > w-1 {
		kept = kept[uint64(len(kept))-(w-1):]
	}
	return kept
}
