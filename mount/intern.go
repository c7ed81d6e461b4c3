package mount

import "sync"

// Interner returns the canonical shared instance for a given Spec
// value: two structurally equal specs intern to the same *Spec,
// compare by pointer identity afterwards, and share one Hash call
// site's result.
//
// The real implementation this is ported from keeps the intern table
// keyed by weak references so an entry disappears once its last strong
// owner drops it. Go has no portable weak pointer;
// ("cyclic weak references... model as a strongly-owned primary graph
// plus explicit back-index maps... or as arena + index handles") we
// instead keep a reference count per entry, incremented by Intern and
// decremented by Release, and drop the map entry at zero. Callers that
// intern a Spec must pair it with a Release when they are done with
// it. Info does not intern or release the Spec it embeds.
type Interner struct {
	mu      sync.Mutex
	entries map[uint64][]*internEntry
}

type internEntry struct {
	spec *Spec
	refs int
}

// NewInterner returns an empty Interner.
func NewInterner() *Interner {
	return &Interner{entries: make(map[uint64][]*internEntry)}
}

// Intern returns the canonical shared *Spec structurally equal to s,
// registering s itself as canonical if no such instance exists yet.
// The returned Spec is marked immutable. Each call increments the
// canonical entry's refcount; pair it with a Release.
func (in *Interner) Intern(s *Spec) *Spec {
	h := s.Hash()
	in.mu.Lock()
	defer in.mu.Unlock()
	for _, e := range in.entries[h] {
		if e.spec.Equal(s) {
			e.refs++
			return e.spec
		}
	}
	s.interned = true
	in.entries[h] = append(in.entries[h], &internEntry{spec: s, refs: 1})
	return s
}

// Release drops one reference to the canonical instance of s. When the
// last reference drops, the entry is removed from the table.
func (in *Interner) Release(s *Spec) {
	h := s.Hash()
	in.mu.Lock()
	defer in.mu.Unlock()
	list := in.entries[h]
	for i, e := range list {
		if e.spec == s {
			e.refs--
			if e.refs <= 0 {
				in.entries[h] = append(list[:i], list[i+1:]...)
				if len(in.entries[h]) == 0 {
					delete(in.entries, h)
				}
			}
			return
		}
	}
}

// Len reports the number of distinct canonical specs currently held.
// Used by tests to assert that Release actually shrinks the table.
func (in *Interner) Len() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	n := 0
	for _, list := range in.entries {
		n += len(list)
	}
	return n
}
