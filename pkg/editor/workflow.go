package editor

import (
	"context"
	"fmt"

	"github.com/aretw0/pipemirror/pkg/domain"
	"github.com/aretw0/pipemirror/pkg/ports"
	"github.com/aretw0/pipemirror/pkg/store"
)

// WorkflowEditor edits one workflow at a time.
type WorkflowEditor struct {
	*Buffer[domain.Workflow]
	gw    ports.Gateway
	store *store.Store
	cfg   config
}

// NewWorkflowEditor creates a closed workflow editor.
func NewWorkflowEditor(gw ports.Gateway, s *store.Store, opts ...Option) *WorkflowEditor {
	return &WorkflowEditor{
		Buffer: newBuffer(domain.Workflow.Clone),
		gw:     gw,
		store:  s,
		cfg:    newConfig(opts),
	}
}

// Open stages a copy of the stored workflow, discarding anything staged before.
func (e *WorkflowEditor) Open(key string) error {
	w, ok := e.store.Workflows.Get(key)
	if !ok {
		return fmt.Errorf("open workflow %s: %w", key, domain.ErrNotFound)
	}
	e.open(key, w)
	return nil
}

// OpenNew asks the server for a fresh identity and stages a skeleton
// workflow under it. If no identity can be issued nothing changes.
func (e *WorkflowEditor) OpenNew(ctx context.Context) error {
	id, err := e.gw.GenUUID(ctx)
	if err != nil {
		e.cfg.logger.Warn("Unable to generate UUID", "error", err)
		return fmt.Errorf("new workflow: %w", err)
	}
	e.open(id, domain.NewWorkflow(id))
	return nil
}

// Commit writes the staged workflow under the UUID it was opened with.
// An empty name defaults to the UUID.
func (e *WorkflowEditor) Commit(ctx context.Context) error {
	err := e.commit(ctx, e.cfg.optimistic, commitFuncs[domain.Workflow]{
		prepare: func(key string, w *domain.Workflow) {
			w.UUID = key
			if w.Name == "" {
				w.Name = w.UUID
			}
		},
		apply: func(key string, w domain.Workflow) { e.store.Workflows.Upsert(key, w) },
		write: e.gw.PutWorkflow,
	})
	e.cfg.observe("workflow", err)
	return err
}
