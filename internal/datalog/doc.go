// Package datalog implements bounded, per-key circular logs.
//
// Each key owns a ring of W slots tracked by a SlotIndex. Append writes the
// next slot and, once W-1 records are live, evicts the oldest one. Erase
// drains the ring and removes everything. Query reads the live window oldest
// first without touching it. State lives in a kv.Store under the keys built
// by KeyIndex, KeyItem and KeyLegacy.
package datalog
