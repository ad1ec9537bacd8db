package syncer

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/pipemirror/pkg/domain"
)

// TogglePause flips the run state server-side and then refreshes the entity
// so the mirror shows the new state.
func (e *Engine) TogglePause(ctx context.Context, kind domain.Kind, key string) error {
	if err := e.gw.TogglePause(ctx, kind, key); err != nil {
		e.logger.Warn("Unable to toggle the running state", "kind", kind.String(), "key", key, "error", err)
		return fmt.Errorf("toggle %s %s: %w", kind, key, err)
	}
	return e.RefreshEntity(ctx, kind, key)
}

// Delete removes an entity on the server after confirmation, then locally.
// A declined confirmation is a silent no-op.
func (e *Engine) Delete(ctx context.Context, kind domain.Kind, key string) error {
	err := e.gw.Delete(ctx, kind, key)
	switch {
	case err == nil, errors.Is(err, domain.ErrNotFound):
		e.RemoveLocal(kind, key)
		return nil
	case errors.Is(err, domain.ErrDeclined):
		return nil
	default:
		e.logger.Warn("Unable to delete entity", "kind", kind.String(), "key", key, "error", err)
		return fmt.Errorf("delete %s %s: %w", kind, key, err)
	}
}

// CreateGlobal adds a global variable with an empty value locally and writes
// it through. If the write fails the placeholder stays until the next
// refresh reconciles it.
func (e *Engine) CreateGlobal(ctx context.Context, name, typename string) error {
	v := domain.GlobalVariable{Typename: typename}
	e.store.Globals.Upsert(name, v)
	if err := e.gw.PutGlobal(ctx, name, v); err != nil {
		e.logger.Warn("Unable to push global variable", "name", name, "error", err)
		return fmt.Errorf("create global %s: %w", name, err)
	}
	return nil
}

// SetGlobal writes a global variable and mirrors it once the server accepts it.
func (e *Engine) SetGlobal(ctx context.Context, name string, v domain.GlobalVariable) error {
	if err := e.gw.PutGlobal(ctx, name, v); err != nil {
		e.logger.Warn("Unable to push global variable", "name", name, "error", err)
		return fmt.Errorf("set global %s: %w", name, err)
	}
	e.store.Globals.Upsert(name, v)
	return nil
}
