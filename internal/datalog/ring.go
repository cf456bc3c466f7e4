package datalog

import (
	"errors"
	"iter"
)

// ErrInvalidWindow rejects ring sizes below 2: with W=1 every allocation would
// immediately evict itself.
var ErrInvalidWindow = errors.New("datalog: window size must be >= 2")

// SlotIndex is the occupied window [Start, End) of a per-key ring of W slots.
// Start == End means empty, so at most W-1 slots are ever live.
type SlotIndex struct {
	Start uint64
	End   uint64
}

func advance(p *uint64, w uint64) {
	*p++
	if *p == w {
		*p = 0
	}
}

// Empty reports whether no slot is live.
func (x SlotIndex) Empty() bool { return x.Start == x.End }

// Len returns the number of live slots.
func (x SlotIndex) Len(w uint64) uint64 {
	if x.End >= x.Start {
		return x.End - x.Start
	}
	return w - x.Start + x.End
}

// Allocate returns the slot for a new record and moves End past it. When the
// ring is full Start moves too, dropping the oldest record from the window.
func (x *SlotIndex) Allocate(w uint64) uint64 {
	slot := x.End
	advance(&x.End, w)
	if x.End == x.Start {
		advance(&x.Start, w)
	}
	return slot
}

// Drain yields live slots oldest first, consuming the window as it goes.
// After a full range the index is empty.
func (x *SlotIndex) Drain(w uint64) iter.Seq[uint64] {
	return func(yield func(uint64) bool) {
		for x.Start != x.End {
			slot := x.Start
			advance(&x.Start, w)
			if !yield(slot) {
				return
			}
		}
	}
}

// Peek yields live slots oldest first without touching x.
func (x SlotIndex) Peek(w uint64) iter.Seq[uint64] {
	cp := x
	return cp.Drain(w)
}

// Contains reports whether slot lies inside the live window.
func (x SlotIndex) Contains(slot uint64) bool {
	switch {
	case x.Start == x.End:
		return false
	case x.Start < x.End:
		return slot >= x.Start && slot < x.End
	default:
		return slot >= x.Start || slot < x.End
	}
}
