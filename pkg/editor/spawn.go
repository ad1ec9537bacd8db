package editor

import (
	"context"
	"fmt"

	"github.com/aretw0/pipemirror/pkg/domain"
	"github.com/aretw0/pipemirror/pkg/ports"
	"github.com/aretw0/pipemirror/pkg/store"
)

// SpawnRequest is the staged input of a new instance.
type SpawnRequest struct {
	WorkflowUUID string
	Variables    domain.Variables
}

// Clone returns an independent copy.
func (r SpawnRequest) Clone() SpawnRequest {
	return SpawnRequest{WorkflowUUID: r.WorkflowUUID, Variables: r.Variables.Clone()}
}

// SpawnEditor stages the variables of an instance to be created from a
// workflow. The created instance reaches the store through the normal
// refresh path, never directly from the editor.
type SpawnEditor struct {
	*Buffer[SpawnRequest]
	gw    ports.Gateway
	store *store.Store
	cfg   config
}

// NewSpawnEditor creates a closed spawn editor.
func NewSpawnEditor(gw ports.Gateway, s *store.Store, opts ...Option) *SpawnEditor {
	return &SpawnEditor{
		Buffer: newBuffer(SpawnRequest.Clone),
		gw:     gw,
		store:  s,
		cfg:    newConfig(opts),
	}
}

// Open seeds the variables from the workflow's setup variables.
func (e *SpawnEditor) Open(workflowUUID string) error {
	w, ok := e.store.Workflows.Get(workflowUUID)
	if !ok {
		return fmt.Errorf("spawn from workflow %s: %w", workflowUUID, domain.ErrNotFound)
	}
	vars := w.SetupVariables
	if vars == nil {
		vars = domain.Variables{}
	}
	e.open(workflowUUID, SpawnRequest{WorkflowUUID: workflowUUID, Variables: vars})
	return nil
}

// Commit asks the server to create the instance and closes on success.
func (e *SpawnEditor) Commit(ctx context.Context) error {
	err := e.commit(ctx, false, commitFuncs[SpawnRequest]{
		write: func(ctx context.Context, r SpawnRequest) error {
			return e.gw.SpawnInstance(ctx, r.WorkflowUUID, r.Variables)
		},
	})
	e.cfg.observe("spawn", err)
	return err
}
