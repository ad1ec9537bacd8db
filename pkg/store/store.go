package store

import (
	"fmt"
	"time"

	"github.com/aretw0/pipemirror/pkg/domain"
)

// Store is the single source of truth for the mirrored collections.
type Store struct {
	Workflows *Collection[domain.Workflow]
	Instances *Collection[domain.Instance]
	Globals   *Collection[domain.GlobalVariable]
	Catalog   *Value[domain.Catalog]
}

// New creates an empty store.
func New() *Store {
	return &Store{
		Workflows: NewCollection(domain.KindWorkflow, domain.Workflow.Clone),
		Instances: NewCollection(domain.KindInstance, domain.Instance.Clone),
		Globals:   NewCollection[domain.GlobalVariable](domain.KindGlobal, nil),
		Catalog:   NewValue(domain.Catalog.Clone),
	}
}

// Remove deletes key from the collection of the given kind.
func (s *Store) Remove(kind domain.Kind, key string) (bool, error) {
	switch kind {
	case domain.KindWorkflow:
		return s.Workflows.Remove(key), nil
	case domain.KindInstance:
		return s.Instances.Remove(key), nil
	case domain.KindGlobal:
		return s.Globals.Remove(key), nil
	}
	return false, fmt.Errorf("%w: %v", domain.ErrUnknownKind, kind)
}

// Has reports whether key exists in the collection of the given kind.
func (s *Store) Has(kind domain.Kind, key string) bool {
	switch kind {
	case domain.KindWorkflow:
		return s.Workflows.Has(key)
	case domain.KindInstance:
		return s.Instances.Has(key)
	case domain.KindGlobal:
		return s.Globals.Has(key)
	}
	return false
}

// Subscribe registers fn on all three collections.
func (s *Store) Subscribe(fn Observer) func() {
	u1 := s.Workflows.Subscribe(fn)
	u2 := s.Instances.Subscribe(fn)
	u3 := s.Globals.Subscribe(fn)
	return func() {
		u1()
		u2()
		u3()
	}
}

// Snapshot captures the whole mirror.
func (s *Store) Snapshot() domain.Snapshot {
	return domain.Snapshot{
		Workflows: s.Workflows.Snapshot(),
		Instances: s.Instances.Snapshot(),
		Globals:   s.Globals.Snapshot(),
		Catalog:   s.Catalog.Get(),
		SavedAt:   time.Now().UTC(),
	}
}

// Restore replaces every collection with the snapshot contents.
func (s *Store) Restore(snap domain.Snapshot) {
	s.Workflows.ReplaceAll(snap.Workflows)
	s.Instances.ReplaceAll(snap.Instances)
	s.Globals.ReplaceAll(snap.Globals)
	s.Catalog.Set(snap.Catalog)
}
