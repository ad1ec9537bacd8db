package gateway

import (
	"context"
	"fmt"

	"github.com/aretw0/pipemirror/pkg/domain"
)

// Confirmer asks the user to approve a destructive request.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// ConfirmFunc adapts a function into a Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) (bool, error)

// Confirm executes f.
func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) (bool, error) {
	if f == nil {
		return false, nil
	}
	return f(ctx, prompt)
}

// AlwaysConfirm approves every request. Meant for tests and scripted use.
var AlwaysConfirm = ConfirmFunc(func(context.Context, string) (bool, error) { return true, nil })

// NeverConfirm refuses every request. It is the default.
var NeverConfirm = ConfirmFunc(func(context.Context, string) (bool, error) { return false, nil })

// DeletePrompt is the question shown before deleting an entity.
func DeletePrompt(kind domain.Kind, key string) string {
	return fmt.Sprintf("Are you sure you want to delete the %s:\n%s", kind, key)
}
