package store

import "sync"

// Value is a single observable value, used for reference data.
type Value[T any] struct {
	clone func(T) T

	mu  sync.RWMutex
	val T

	obsMu     sync.Mutex
	observers map[int]func(T)
	nextID    int
}

// NewValue creates a Value holding the zero T.
func NewValue[T any](clone func(T) T) *Value[T] {
	if clone == nil {
		clone = func(v T) T { return v }
	}
	return &Value[T]{clone: clone, observers: make(map[int]func(T))}
}

// Get returns a copy of the current value.
func (v *Value[T]) Get() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.clone(v.val)
}

// Set replaces the value and notifies subscribers.
func (v *Value[T]) Set(val T) {
	v.mu.Lock()
	v.val = v.clone(val)
	v.mu.Unlock()

	v.obsMu.Lock()
	fns := make([]func(T), 0, len(v.observers))
	for _, fn := range v.observers {
		fns = append(fns, fn)
	}
	v.obsMu.Unlock()

	for _, fn := range fns {
		fn(v.Get())
	}
}

// Subscribe registers fn for future updates. The returned func unsubscribes.
func (v *Value[T]) Subscribe(fn func(T)) func() {
	v.obsMu.Lock()
	id := v.nextID
	v.nextID++
	v.observers[id] = fn
	v.obsMu.Unlock()

	return func() {
		v.obsMu.Lock()
		delete(v.observers, id)
		v.obsMu.Unlock()
	}
}
