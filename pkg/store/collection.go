package store

import (
	"sort"
	"sync"

	"github.com/aretw0/pipemirror/pkg/domain"
)

// Op identifies the kind of mutation a Change reports.
type Op int

const (
	OpReplace Op = iota
	OpUpsert
	OpRemove
)

func (o Op) String() string {
	switch o {
	case OpReplace:
		return "replace"
	case OpUpsert:
		return "upsert"
	case OpRemove:
		return "remove"
	}
	return "unknown"
}

// Change describes a completed mutation.
// For OpReplace, Diff holds the per-key breakdown and Keys its union.
type Change struct {
	Kind domain.Kind
	Op   Op
	Keys []string
	Diff domain.KeyDiff
}

// Observer is called after a mutation completes, outside the store lock.
type Observer func(Change)

// Collection is an observable keyed mapping. Safe for concurrent use.
type Collection[T any] struct {
	kind  domain.Kind
	clone func(T) T

	mu   sync.RWMutex
	data map[string]T

	obsMu     sync.Mutex
	observers map[int]Observer
	nextID    int
}

// NewCollection creates an empty collection. clone must return a deep copy.
func NewCollection[T any](kind domain.Kind, clone func(T) T) *Collection[T] {
	if clone == nil {
		clone = func(v T) T { return v }
	}
	return &Collection[T]{
		kind:      kind,
		clone:     clone,
		data:      make(map[string]T),
		observers: make(map[int]Observer),
	}
}

// Kind returns the collection kind.
func (c *Collection[T]) Kind() domain.Kind { return c.kind }

// ReplaceAll overwrites the entire collection.
func (c *Collection[T]) ReplaceAll(entries map[string]T) {
	next := make(map[string]T, len(entries))
	for k, v := range entries {
		next[k] = c.clone(v)
	}

	c.mu.Lock()
	diff := domain.DiffKeys(c.data, next)
	c.data = next
	c.mu.Unlock()

	if diff.IsEmpty() {
		return
	}
	c.notify(Change{Kind: c.kind, Op: OpReplace, Keys: diff.Keys(), Diff: diff})
}

// Upsert inserts or overwrites one entry.
func (c *Collection[T]) Upsert(key string, v T) {
	cp := c.clone(v)

	c.mu.Lock()
	_, existed := c.data[key]
	c.data[key] = cp
	c.mu.Unlock()

	change := Change{Kind: c.kind, Op: OpUpsert, Keys: []string{key}}
	if existed {
		change.Diff.Updated = []string{key}
	} else {
		change.Diff.Added = []string{key}
	}
	c.notify(change)
}

// Remove deletes one entry. Removing an absent key is a no-op.
// It reports whether the key was present.
func (c *Collection[T]) Remove(key string) bool {
	c.mu.Lock()
	_, ok := c.data[key]
	if ok {
		delete(c.data, key)
	}
	c.mu.Unlock()

	if !ok {
		return false
	}
	c.notify(Change{Kind: c.kind, Op: OpRemove, Keys: []string{key}, Diff: domain.KeyDiff{Removed: []string{key}}})
	return true
}

// Get returns a copy of the entry at key.
func (c *Collection[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.data[key]
	if !ok {
		var zero T
		return zero, false
	}
	return c.clone(v), true
}

// Has reports whether key is present.
func (c *Collection[T]) Has(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.data[key]
	return ok
}

// Snapshot returns a deep copy of every entry.
func (c *Collection[T]) Snapshot() map[string]T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]T, len(c.data))
	for k, v := range c.data {
		out[k] = c.clone(v)
	}
	return out
}

// Filter returns copies of the entries for which keep returns true.
func (c *Collection[T]) Filter(keep func(key string, v T) bool) map[string]T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]T)
	for k, v := range c.data {
		if keep(k, v) {
			out[k] = c.clone(v)
		}
	}
	return out
}

// Keys returns the sorted keys.
func (c *Collection[T]) Keys() []string {
	c.mu.RLock()
	keys := make([]string, 0, len(c.data))
	for k := range c.data {
		keys = append(keys, k)
	}
	c.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// Len returns the number of entries.
func (c *Collection[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// Subscribe registers fn for future changes. The returned func unsubscribes.
func (c *Collection[T]) Subscribe(fn Observer) func() {
	c.obsMu.Lock()
	id := c.nextID
	c.nextID++
	c.observers[id] = fn
	c.obsMu.Unlock()

	return func() {
		c.obsMu.Lock()
		delete(c.observers, id)
		c.obsMu.Unlock()
	}
}

func (c *Collection[T]) notify(change Change) {
	c.obsMu.Lock()
	ids := make([]int, 0, len(c.observers))
	for id := range c.observers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]Observer, 0, len(ids))
	for _, id := range ids {
		fns = append(fns, c.observers[id])
	}
	c.obsMu.Unlock()

	for _, fn := range fns {
		fn(change)
	}
}
