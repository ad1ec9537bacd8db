package editor

import (
	"github.com/aretw0/pipemirror/pkg/ports"
	"github.com/aretw0/pipemirror/pkg/store"
)

// Manager bundles one editor per editable kind. Each kind holds at most one
// staged entity at a time.
type Manager struct {
	Workflow *WorkflowEditor
	Instance *InstanceEditor
	Spawn    *SpawnEditor
}

// NewManager creates all editors sharing the same options.
func NewManager(gw ports.Gateway, s *store.Store, opts ...Option) *Manager {
	return &Manager{
		Workflow: NewWorkflowEditor(gw, s, opts...),
		Instance: NewInstanceEditor(gw, s, opts...),
		Spawn:    NewSpawnEditor(gw, s, opts...),
	}
}

// CloseAll discards every staged entity.
func (m *Manager) CloseAll() {
	m.Workflow.Close()
	m.Instance.Close()
	m.Spawn.Close()
}
