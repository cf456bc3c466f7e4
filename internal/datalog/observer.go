package datalog

import "context"

// Observer is told about committed mutations so the host can emit
// notifications. Calls happen after the substrate commit, in commit order,
// while the store still holds its write lock: implementations must be quick
// and must not call back into the Store.
type Observer interface {
	RecordAppended(ctx context.Context, key string, rec Record)
	LogErased(ctx context.Context, key string, removed int)
}

// EvictionObserver is an optional extension of Observer. When the configured
// observer implements it, Append reads the record it pushes out of the window
// and reports it. Records displaced while migrating a legacy list are not
// reported.
type EvictionObserver interface {
	RecordEvicted(ctx context.Context, key string, rec Record)
}

// NopObserver ignores everything.
type NopObserver struct{}

func (NopObserver) RecordAppended(context.Context, string, Record) {}
func (NopObserver) LogErased(context.Context, string, int)         {}

// Observers fans out to every observer in order. The result implements
// EvictionObserver whenever at least one member does.
func Observers(obs ...Observer) Observer {
	m := multiObserver{}
	for _, o := range obs {
		if o == nil {
			continue
		}
		m.all = append(m.all, o)
		if e, ok := o.(EvictionObserver); ok {
			m.evict = append(m.evict, e)
		}
	}
	if len(m.evict) > 0 {
		return evictingMultiObserver{m}
	}
	return m
}

type multiObserver struct {
	all   []Observer
	evict []EvictionObserver
}

func (m multiObserver) RecordAppended(ctx context.Context, key string, rec Record) {
	for _, o := range m.all {
		o.RecordAppended(ctx, key, rec)
	}
}

func (m multiObserver) LogErased(ctx context.Context, key string, removed int) {
	for _, o := range m.all {
		o.LogErased(ctx, key, removed)
	}
}

type evictingMultiObserver struct{ multiObserver }

func (m evictingMultiObserver) RecordEvicted(ctx context.Context, key string, rec Record) {
	for _, e := range m.evict {
		e.RecordEvicted(ctx, key, rec)
	}
}
