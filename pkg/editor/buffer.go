package editor

import (
	"context"
	"fmt"
	"sync"

	"github.com/aretw0/pipemirror/pkg/domain"
)

// State is the lifecycle position of a Buffer.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateCommitting
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateCommitting:
		return "committing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Buffer holds at most one staged entity.
type Buffer[T any] struct {
	mu     sync.Mutex
	state  State
	key    string
	staged T
	err    error
	clone  func(T) T

	obsMu     sync.Mutex
	observers map[int]func(State)
	nextID    int
}

func newBuffer[T any](clone func(T) T) *Buffer[T] {
	if clone == nil {
		clone = func(v T) T { return v }
	}
	return &Buffer[T]{clone: clone, observers: make(map[int]func(State))}
}

// State returns the current lifecycle state.
func (b *Buffer[T]) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Key returns the identity of the staged entity, or "" when closed.
func (b *Buffer[T]) Key() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.key
}

// Err returns the error of the last failed commit. Opening clears it.
func (b *Buffer[T]) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// Staged returns a copy of the staged entity.
func (b *Buffer[T]) Staged() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateClosed {
		var zero T
		return zero, false
	}
	return b.clone(b.staged), true
}

// Edit mutates the staged entity in place.
func (b *Buffer[T]) Edit(fn func(*T)) error {
	b.mu.Lock()
	switch b.state {
	case StateClosed:
		b.mu.Unlock()
		return domain.ErrNotOpen
	case StateCommitting:
		b.mu.Unlock()
		return domain.ErrBusy
	}
	fn(&b.staged)
	b.mu.Unlock()
	return nil
}

// Close discards the staged entity unconditionally.
func (b *Buffer[T]) Close() {
	b.mu.Lock()
	var zero T
	b.staged = zero
	b.key = ""
	b.err = nil
	b.state = StateClosed
	b.mu.Unlock()
	b.notify(StateClosed)
}

// Subscribe registers fn for state transitions.
func (b *Buffer[T]) Subscribe(fn func(State)) func() {
	b.obsMu.Lock()
	defer b.obsMu.Unlock()
	id := b.nextID
	b.nextID++
	b.observers[id] = fn
	return func() {
		b.obsMu.Lock()
		defer b.obsMu.Unlock()
		delete(b.observers, id)
	}
}

func (b *Buffer[T]) notify(s State) {
	b.obsMu.Lock()
	fns := make([]func(State), 0, len(b.observers))
	for _, fn := range b.observers {
		fns = append(fns, fn)
	}
	b.obsMu.Unlock()
	for _, fn := range fns {
		fn(s)
	}
}

// open replaces whatever was staged. v must already be a private copy.
func (b *Buffer[T]) open(key string, v T) {
	b.mu.Lock()
	b.key = key
	b.staged = v
	b.err = nil
	b.state = StateOpen
	b.mu.Unlock()
	b.notify(StateOpen)
}

// commitFuncs are the per-kind steps of a commit.
type commitFuncs[T any] struct {
	// prepare normalises the staged entity before it is written. key is
	// the identity the buffer was opened with.
	prepare func(key string, v *T)
	// apply mirrors the entity into the store. nil for kinds that are
	// never inserted directly.
	apply func(key string, v T)
	write func(ctx context.Context, v T) error
}

// commit runs Open -> Committing -> Closed, or back to Open with Err set.
func (b *Buffer[T]) commit(ctx context.Context, optimistic bool, f commitFuncs[T]) error {
	b.mu.Lock()
	switch b.state {
	case StateClosed:
		b.mu.Unlock()
		return domain.ErrNotOpen
	case StateCommitting:
		b.mu.Unlock()
		return domain.ErrBusy
	}
	if f.prepare != nil {
		f.prepare(b.key, &b.staged)
	}
	key := b.key
	v := b.clone(b.staged)
	b.state = StateCommitting
	b.mu.Unlock()
	b.notify(StateCommitting)

	if optimistic && f.apply != nil {
		f.apply(key, b.clone(v))
	}

	if err := f.write(ctx, v); err != nil {
		err = fmt.Errorf("%w: %w", domain.ErrCommitRejected, err)
		b.mu.Lock()
		// Close may have raced the write; a discarded buffer stays closed.
		if b.state != StateCommitting {
			b.mu.Unlock()
			return err
		}
		b.err = err
		b.state = StateOpen
		b.mu.Unlock()
		b.notify(StateOpen)
		return err
	}

	if !optimistic && f.apply != nil {
		f.apply(key, v)
	}

	b.mu.Lock()
	if b.state != StateCommitting {
		b.mu.Unlock()
		return nil
	}
	var zero T
	b.staged = zero
	b.key = ""
	b.err = nil
	b.state = StateClosed
	b.mu.Unlock()
	b.notify(StateClosed)
	return nil
}
