package trash

import "sync"

// notifyKind is the flavor of a queued TrashRoot notification.
type notifyKind int

const (
	notifyAdd notifyKind = iota
	notifyRemove
)

type notification struct {
	kind notifyKind
	item *Item
}

// Root is the TrashRoot store from a reader-writer lock
// guarding the map of escaped-name to Item plus a pending-notification
// queue, and a running total of item sizes so Thaw can report whether
// the aggregate size actually changed.
//
// Root knows nothing about filesystems or watches; Dir drives it by
// calling Add/Remove as it reconciles a trash directory's contents.
type Root struct {
	mu    sync.RWMutex
	items map[string]*Item
	queue []notification
	size  int64

	// OnSizeChanged, if set, is invoked by Thaw whenever the aggregate
	// size differs from the size at the start of the batch. It must not
	// call back into Root.
	OnSizeChanged func(newSize int64)
	// OnNotify, if set, is invoked by Thaw once per queued notification,
	// in queue order, after the lock has been released.
	OnNotify func(kind notifyKind, item *Item)
}

// NewRoot returns an empty Root.
func NewRoot() *Root {
	return &Root{items: make(map[string]*Item)}
}

// Add inserts item under its escaped name. A collision with an
// existing key is silently dropped, matching trash_root_add_item's
// g_hash_table_lookup guard in trashitem.c.
func (r *Root) Add(item *Item) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.items[item.EscapedName]; exists {
		return
	}
	r.items[item.EscapedName] = item
	r.size += item.Size
	r.queue = append(r.queue, notification{kind: notifyAdd, item: item})
}

// Remove drops the item keyed by escapedName. A miss is silently
// ignored.
func (r *Root) Remove(escapedName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[escapedName]
	if !ok {
		return
	}
	delete(r.items, escapedName)
	r.size -= item.Size
	r.queue = append(r.queue, notification{kind: notifyRemove, item: item})
}

// RemoveItem is a convenience wrapper for callers that already hold
// the Item rather than just its escaped name.
func (r *Root) RemoveItem(item *Item) {
	r.Remove(item.EscapedName)
}

// Lookup returns the item keyed by escapedName, if any.
func (r *Root) Lookup(escapedName string) (*Item, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.items[escapedName]
	return item, ok
}

// List returns a snapshot slice of every tracked item. The slice is a
// fresh copy; mutating it does not affect Root.
func (r *Root) List() []*Item {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Item, 0, len(r.items))
	for _, item := range r.items {
		out = append(out, item)
	}
	return out
}

// Size returns the current aggregate size of every tracked item.
func (r *Root) Size() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}

// Thaw drains the pending-notification queue outside the lock (so
// OnNotify callbacks never run while Root's mutex is held, letting them
// safely call back into anything except Root itself) and then, iff the
// aggregate size differs from oldSize, invokes OnSizeChanged.
//
// Callers capture oldSize := root.Size() before a batch of Add/Remove
// calls and pass it to Thaw once the batch is done.
func (r *Root) Thaw(oldSize int64) {
	r.mu.Lock()
	pending := r.queue
	r.queue = nil
	newSize := r.size
	r.mu.Unlock()

	if r.OnNotify != nil {
		for _, n := range pending {
			r.OnNotify(n.kind, n.item)
		}
	}

	if newSize != oldSize && r.OnSizeChanged != nil {
		r.OnSizeChanged(newSize)
	}
}
