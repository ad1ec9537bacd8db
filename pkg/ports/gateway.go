package ports

import (
	"context"
	"encoding/json"

	"github.com/aretw0/pipemirror/pkg/domain"
)

// Gateway is the request/response surface of the pipeline server.
// Every method returns a definite result: nil, domain.ErrNotFound,
// domain.ErrDeclined or an error wrapping domain.ErrTransient.
type Gateway interface {
	ListWorkflows(ctx context.Context) (map[string]domain.Workflow, error)
	ListInstances(ctx context.Context) (map[string]domain.Instance, error)
	ListGlobals(ctx context.Context) (map[string]domain.GlobalVariable, error)

	GetWorkflow(ctx context.Context, uuid string) (domain.Workflow, error)
	GetInstance(ctx context.Context, uuid string) (domain.Instance, error)
	GetGlobal(ctx context.Context, name string) (domain.GlobalVariable, error)

	PutWorkflow(ctx context.Context, w domain.Workflow) error
	PutInstance(ctx context.Context, inst domain.Instance) error
	PutGlobal(ctx context.Context, name string, v domain.GlobalVariable) error

	// TogglePause flips Running/Paused server-side. It does not touch any local state.
	TogglePause(ctx context.Context, kind domain.Kind, key string) error

	// Delete asks for confirmation first; a refusal returns domain.ErrDeclined
	// without issuing the request.
	Delete(ctx context.Context, kind domain.Kind, key string) error

	SpawnInstance(ctx context.Context, workflowUUID string, vars domain.Variables) error
	GenUUID(ctx context.Context) (string, error)

	VariableTypes(ctx context.Context) ([]string, error)
	Commands(ctx context.Context) (map[string]json.RawMessage, error)
}
