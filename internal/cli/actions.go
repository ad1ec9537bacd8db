package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/pipemirror"
	"github.com/aretw0/pipemirror/internal/presentation/tui"
	"github.com/aretw0/pipemirror/pkg/domain"
	"github.com/aretw0/pipemirror/pkg/editor"
)

// withClient builds a client, runs fn and releases it.
func withClient(opts Options, fn func(*pipemirror.Client) error) error {
	client, cleanup, err := createClient(opts)
	if err != nil {
		return err
	}
	defer cleanup()
	return fn(client)
}

// fetch loads one entity into the mirror, failing if the server has none.
func fetch(ctx context.Context, client *pipemirror.Client, kind domain.Kind, key string) error {
	if err := client.Sync().RefreshEntity(ctx, kind, key); err != nil {
		return err
	}
	if !client.Store().Has(kind, key) {
		return fmt.Errorf("%s %s: %w", kind, key, domain.ErrNotFound)
	}
	return nil
}

// RunToggle flips the run state of a workflow or instance and prints the result.
func RunToggle(ctx context.Context, opts Options, kind domain.Kind, key string, w io.Writer) error {
	return withClient(opts, func(client *pipemirror.Client) error {
		if err := client.Sync().TogglePause(ctx, kind, key); err != nil {
			return err
		}
		var state domain.RunState
		switch kind {
		case domain.KindWorkflow:
			wf, ok := client.Workflow(key)
			if !ok {
				return fmt.Errorf("%s %s: %w", kind, key, domain.ErrNotFound)
			}
			state = wf.State
		case domain.KindInstance:
			inst, ok := client.Instance(key)
			if !ok {
				return fmt.Errorf("%s %s: %w", kind, key, domain.ErrNotFound)
			}
			state = inst.State
		}
		printSystemMessage(w, "%s %s is now %s", kind, key, tui.NewStyler(w).RunState(state))
		return nil
	})
}

// RunDelete deletes an entity after confirmation.
func RunDelete(ctx context.Context, opts Options, kind domain.Kind, key string, w io.Writer) error {
	return withClient(opts, func(client *pipemirror.Client) error {
		if err := fetch(ctx, client, kind, key); err != nil {
			return err
		}
		if err := client.Sync().Delete(ctx, kind, key); err != nil {
			return err
		}
		if client.Store().Has(kind, key) {
			printSystemMessage(w, "Kept %s %s.", kind, key)
			return nil
		}
		printSystemMessage(w, "Deleted %s %s.", kind, key)
		return nil
	})
}

// RunSetGlobal creates or updates a global variable.
func RunSetGlobal(ctx context.Context, opts Options, name, typename, value string, w io.Writer) error {
	return withClient(opts, func(client *pipemirror.Client) error {
		v := domain.GlobalVariable{Typename: typename, Value: value}
		if err := client.Sync().SetGlobal(ctx, name, v); err != nil {
			return err
		}
		printSystemMessage(w, "Global %s = %s (%s)", name, value, typename)
		return nil
	})
}

// parseAssignments turns name=value pairs into a map.
func parseAssignments(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid assignment %q, want name=value", p)
		}
		out[name] = value
	}
	return out, nil
}

// assign sets values on vars, keeping the declared type of known names.
// Unknown names are rejected so typos do not create stray variables.
func assign(vars domain.Variables, values map[string]string) error {
	for name, value := range values {
		v, ok := vars[name]
		if !ok {
			return fmt.Errorf("unknown variable %q", name)
		}
		v.Value = value
		vars[name] = v
	}
	return nil
}

// RunSpawn creates an instance of a workflow, overriding setup variables.
func RunSpawn(ctx context.Context, opts Options, workflowUUID string, sets []string, w io.Writer) error {
	values, err := parseAssignments(sets)
	if err != nil {
		return err
	}
	return withClient(opts, func(client *pipemirror.Client) error {
		if err := fetch(ctx, client, domain.KindWorkflow, workflowUUID); err != nil {
			return err
		}
		ed := client.Editors().Spawn
		if err := ed.Open(workflowUUID); err != nil {
			return err
		}
		defer ed.Close()

		var assignErr error
		if err := ed.Edit(func(r *editor.SpawnRequest) { assignErr = assign(r.Variables, values) }); err != nil {
			return err
		}
		if assignErr != nil {
			return assignErr
		}
		if err := ed.Commit(ctx); err != nil {
			return err
		}
		printSystemMessage(w, "Spawned an instance of %s.", workflowUUID)
		return nil
	})
}

// RunNewWorkflow creates an empty workflow and prints its UUID.
func RunNewWorkflow(ctx context.Context, opts Options, name, notes string, w io.Writer) error {
	return withClient(opts, func(client *pipemirror.Client) error {
		ed := client.Editors().Workflow
		if err := ed.OpenNew(ctx); err != nil {
			return err
		}
		defer ed.Close()

		key := ed.Key()
		if err := ed.Edit(func(wf *domain.Workflow) {
			wf.Name = name
			wf.UserNotes = notes
		}); err != nil {
			return err
		}
		if err := ed.Commit(ctx); err != nil {
			return err
		}
		fmt.Fprintln(w, key)
		return nil
	})
}

// RunEditWorkflow updates the name and notes of a workflow. Nil fields are
// left as they are.
func RunEditWorkflow(ctx context.Context, opts Options, key string, name, notes *string, w io.Writer) error {
	return withClient(opts, func(client *pipemirror.Client) error {
		if err := fetch(ctx, client, domain.KindWorkflow, key); err != nil {
			return err
		}
		ed := client.Editors().Workflow
		if err := ed.Open(key); err != nil {
			return err
		}
		defer ed.Close()

		if err := ed.Edit(func(wf *domain.Workflow) {
			if name != nil {
				wf.Name = *name
			}
			if notes != nil {
				wf.UserNotes = *notes
			}
		}); err != nil {
			return err
		}
		if err := ed.Commit(ctx); err != nil {
			return err
		}
		printSystemMessage(w, "Updated workflow %s.", key)
		return nil
	})
}

// RunSetInstanceVars changes variables of a running instance.
func RunSetInstanceVars(ctx context.Context, opts Options, key string, sets []string, w io.Writer) error {
	values, err := parseAssignments(sets)
	if err != nil {
		return err
	}
	return withClient(opts, func(client *pipemirror.Client) error {
		if err := fetch(ctx, client, domain.KindInstance, key); err != nil {
			return err
		}
		ed := client.Editors().Instance
		if err := ed.Open(key); err != nil {
			return err
		}
		defer ed.Close()

		var assignErr error
		if err := ed.Edit(func(inst *domain.Instance) {
			if inst.Variables == nil {
				inst.Variables = domain.Variables{}
			}
			assignErr = assign(inst.Variables, values)
		}); err != nil {
			return err
		}
		if assignErr != nil {
			return assignErr
		}
		if err := ed.Commit(ctx); err != nil {
			return err
		}
		printSystemMessage(w, "Updated instance %s.", key)
		return nil
	})
}
