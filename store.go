package rangestream

import "sort"

// storeEntry pairs a stored external interval with its RangeResponse and
// the insertion-order counter used for "most recently added" queries.
type storeEntry struct {
	key      Interval
	resp     *RangeResponse
	inserted uint64
}

// RangeStore is an ordered map from disjoint external interval to
// RangeResponse, keyed by the interval's start. Keys are mutually disjoint
// at rest; the overlap resolver is the only code permitted to pass through
// a transiently overlapping state, and it must restore disjointness before
// returning control to the facade.
//
// The store is backed by a slice kept sorted by key.Start. Insert and
// rekey find their position by binary search (via the standard library's
// sort package); Get, Remove, FindContaining and Intersecting scan the
// slice linearly. The
// example repos consulted for this spec use no third-party ordered-map or
// balanced-tree library for anything resembling this role, so the
// standard library is the grounded choice here — see DESIGN.md.
type RangeStore struct {
	entries []*storeEntry
	counter uint64
}

// NewRangeStore returns an empty RangeStore.
func NewRangeStore() *RangeStore {
	return &RangeStore{}
}

// search returns the index of the first entry with key.Start >= start.
func (s *RangeStore) search(start int64) int {
	return sort.Search(len(s.entries), func(i int) bool {
		return s.entries[i].key.Start >= start
	})
}

// Insert adds resp under key. The caller must ensure key is disjoint from
// every stored key; Insert does not itself re-validate disjointness, since
// the resolver sometimes needs to pass through intermediate states while
// holding the invariant only at its own boundaries.
func (s *RangeStore) Insert(key Interval, resp *RangeResponse) {
	s.counter++
	e := &storeEntry{key: key, resp: resp, inserted: s.counter}

	i := s.search(key.Start)
	s.entries = append(s.entries, nil)
	copy(s.entries[i+1:], s.entries[i:])
	s.entries[i] = e
}

// Remove deletes the entry stored under key, if any, returning whether one
// was found and removed. It does not close the removed response's body;
// callers (the resolver) are responsible for that.
func (s *RangeStore) Remove(key Interval) bool {
	for i, e := range s.entries {
		if e.key == key {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return true
		}
	}
	return false
}

// FindContaining returns the entry whose external interval contains pos,
// or (nil, false).
func (s *RangeStore) FindContaining(pos int64) (Interval, *RangeResponse, bool) {
	for _, e := range s.entries {
		if e.key.Contains(pos) {
			return e.key, e.resp, true
		}
		if e.key.Start > pos {
			break
		}
	}
	return Interval{}, nil, false
}

// Intersecting returns, in ascending key order, every entry whose external
// interval intersects query.
func (s *RangeStore) Intersecting(query Interval) []Interval {
	var out []Interval
	for _, e := range s.entries {
		if e.key.Start >= query.Stop {
			break
		}
		if e.key.Intersects(query) {
			out = append(out, e.key)
		}
	}
	return out
}

// Get returns the response stored under key, if any.
func (s *RangeStore) Get(key Interval) (*RangeResponse, bool) {
	for _, e := range s.entries {
		if e.key == key {
			return e.resp, true
		}
	}
	return nil, false
}

// Len returns the number of stored entries.
func (s *RangeStore) Len() int { return len(s.entries) }

// Keys returns all stored keys in ascending start order. The returned
// slice is a read-only snapshot.
func (s *RangeStore) Keys() []Interval {
	out := make([]Interval, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.key
	}
	return out
}

// FirstKey and LastKey support spanning_range; ok is false on an empty
// store.
func (s *RangeStore) FirstKey() (Interval, bool) {
	if len(s.entries) == 0 {
		return Interval{}, false
	}
	return s.entries[0].key, true
}

func (s *RangeStore) LastKey() (Interval, bool) {
	if len(s.entries) == 0 {
		return Interval{}, false
	}
	return s.entries[len(s.entries)-1].key, true
}

// MostRecent returns the key of the entry with the highest insertion
// counter among the given keys, i.e. the one added most recently. It
// ignores keys the store no longer holds.
func (s *RangeStore) MostRecent(keys []Interval) (Interval, bool) {
	var (
		best    Interval
		bestSeq uint64
		found   bool
	)
	want := make(map[Interval]bool, len(keys))
	for _, k := range keys {
		want[k] = true
	}
	for _, e := range s.entries {
		if !want[e.key] {
			continue
		}
		if !found || e.inserted > bestSeq {
			best, bestSeq, found = e.key, e.inserted, true
		}
	}
	return best, found
}

// rekey replaces the entry stored under oldKey with newKey, preserving its
// response and insertion order. It is used by the resolver when an
// existing entry's external interval shrinks (head advance or tail mark)
// without changing the identity of its response.
func (s *RangeStore) rekey(oldKey, newKey Interval) bool {
	for i, e := range s.entries {
		if e.key == oldKey {
			resp, inserted := e.resp, e.inserted
			s.entries = append(s.entries[:i], s.entries[i+1:]...)

			ne := &storeEntry{key: newKey, resp: resp, inserted: inserted}
			j := s.search(newKey.Start)
			s.entries = append(s.entries, nil)
			copy(s.entries[j+1:], s.entries[j:])
			s.entries[j] = ne
			return true
		}
	}
	return false
}
