// Package correlation holds records that are waiting for an asynchronous
// result, keyed by sample id. The table has a fixed number of slots; when all
// slots are taken a Store evicts an existing entry instead of growing, so
// under sustained overload some pending records lose their result.
package correlation

import (
	"sort"
	"sync"
)

// EvictionPolicy selects the slot overwritten when the table is full.
type EvictionPolicy int

const (
	// EvictFirstSlot always overwrites slot 0, whatever it holds.
	EvictFirstSlot EvictionPolicy = iota
	// EvictOldest overwrites the entry that was stored longest ago.
	EvictOldest
)

// String returns the config name of the policy.
func (p EvictionPolicy) String() string {
	switch p {
	case EvictOldest:
		return "oldest"
	default:
		return "first_slot"
	}
}

// ParseEvictionPolicy maps a config name to a policy. Unknown names return
// false.
func ParseEvictionPolicy(s string) (EvictionPolicy, bool) {
	switch s {
	case "", "first_slot":
		return EvictFirstSlot, true
	case "oldest":
		return EvictOldest, true
	default:
		return EvictFirstSlot, false
	}
}

// Option configures a Table.
type Option func(*options)

type options struct {
	policy EvictionPolicy
}

// WithEvictionPolicy sets the overflow policy. The default is EvictFirstSlot.
func WithEvictionPolicy(p EvictionPolicy) Option {
	return func(o *options) {
		o.policy = p
	}
}

// Stats is a snapshot of table counters.
type Stats struct {
	Capacity  int    `json:"capacity"`
	InUse     int    `json:"in_use"`
	Stores    uint64 `json:"stores"`
	Takes     uint64 `json:"takes"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
	Policy    string `json:"policy"`
}

type slot[V any] struct {
	inUse bool
	id    uint32
	seq   uint64
	value V
}

// Table maps sample ids to pending values. All methods are safe for
// concurrent use; the lock is held only for the bookkeeping of one call.
type Table[V any] struct {
	mu     sync.Mutex
	slots  []slot[V]
	index  map[uint32]int
	seq    uint64
	policy EvictionPolicy

	stores    uint64
	takes     uint64
	misses    uint64
	evictions uint64
}

// New creates a table with the given number of slots (at least one).
func New[V any](capacity int, opts ...Option) *Table[V] {
	if capacity <= 0 {
		capacity = 1
	}
	o := options{policy: EvictFirstSlot}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return &Table[V]{
		slots:  make([]slot[V], capacity),
		index:  make(map[uint32]int, capacity),
		policy: o.policy,
	}
}

// Store records v under id. An existing entry for the same id is replaced in
// place. Otherwise the lowest free slot is used; when none is free an entry
// is evicted according to the policy and its id returned with evicted=true.
func (t *Table[V]) Store(id uint32, v V) (evictedID uint32, evicted bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.seq++
	t.stores++

	i, ok := t.index[id]
	if !ok {
		i = t.freeSlot()
	}
	if i < 0 {
		i = t.victim()
		evictedID, evicted = t.slots[i].id, true
		delete(t.index, evictedID)
		t.evictions++
	}

	t.slots[i] = slot[V]{inUse: true, id: id, seq: t.seq, value: v}
	t.index[id] = i
	return evictedID, evicted
}

// Take removes and returns the entry for id. A missing id is a normal
// outcome: the entry was never stored, already taken, or evicted.
func (t *Table[V]) Take(id uint32) (V, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	i, ok := t.index[id]
	if !ok {
		t.misses++
		var zero V
		return zero, false
	}

	v := t.slots[i].value
	t.slots[i] = slot[V]{}
	delete(t.index, id)
	t.takes++
	return v, true
}

// freeSlot returns the lowest unused slot or -1. Caller holds mu.
func (t *Table[V]) freeSlot() int {
	for i := range t.slots {
		if !t.slots[i].inUse {
			return i
		}
	}
	return -1
}

// victim picks the slot to overwrite on a full table. Caller holds mu.
func (t *Table[V]) victim() int {
	if t.policy != EvictOldest {
		return 0
	}
	oldest := 0
	for i := range t.slots {
		if t.slots[i].seq < t.slots[oldest].seq {
			oldest = i
		}
	}
	return oldest
}

// Len returns the number of slots in use.
func (t *Table[V]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.index)
}

// Cap returns the number of slots.
func (t *Table[V]) Cap() int {
	return len(t.slots)
}

// IDs returns the pending ids in ascending order.
func (t *Table[V]) IDs() []uint32 {
	t.mu.Lock()
	ids := make([]uint32, 0, len(t.index))
	for id := range t.index {
		ids = append(ids, id)
	}
	t.mu.Unlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Stats returns the current counters.
func (t *Table[V]) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Stats{
		Capacity:  len(t.slots),
		InUse:     len(t.index),
		Stores:    t.stores,
		Takes:     t.takes,
		Misses:    t.misses,
		Evictions: t.evictions,
		Policy:    t.policy.String(),
	}
}
