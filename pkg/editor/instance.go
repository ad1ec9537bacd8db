package editor

import (
	"context"
	"fmt"

	"github.com/aretw0/pipemirror/pkg/domain"
	"github.com/aretw0/pipemirror/pkg/ports"
	"github.com/aretw0/pipemirror/pkg/store"
)

// InstanceEditor edits one instance at a time.
type InstanceEditor struct {
	*Buffer[domain.Instance]
	gw    ports.Gateway
	store *store.Store
	cfg   config
}

// NewInstanceEditor creates a closed instance editor.
func NewInstanceEditor(gw ports.Gateway, s *store.Store, opts ...Option) *InstanceEditor {
	return &InstanceEditor{
		Buffer: newBuffer(domain.Instance.Clone),
		gw:     gw,
		store:  s,
		cfg:    newConfig(opts),
	}
}

// Open stages a copy of the stored instance.
func (e *InstanceEditor) Open(key string) error {
	inst, ok := e.store.Instances.Get(key)
	if !ok {
		return fmt.Errorf("open instance %s: %w", key, domain.ErrNotFound)
	}
	e.open(key, inst)
	return nil
}

// Commit writes the staged instance under the UUID it was opened with.
func (e *InstanceEditor) Commit(ctx context.Context) error {
	err := e.commit(ctx, e.cfg.optimistic, commitFuncs[domain.Instance]{
		prepare: func(key string, inst *domain.Instance) { inst.UUID = key },
		apply: func(key string, inst domain.Instance) { e.store.Instances.Upsert(key, inst) },
		write: e.gw.PutInstance,
	})
	e.cfg.observe("instance", err)
	return err
}
