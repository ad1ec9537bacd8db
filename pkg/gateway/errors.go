package gateway

import (
	"fmt"

	"github.com/aretw0/pipemirror/pkg/domain"
)

// StatusError reports a non-success HTTP response.
type StatusError struct {
	Method string
	Path   string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.Code)
}

// Unwrap classifies every unexpected status as transient.
func (e *StatusError) Unwrap() error { return domain.ErrTransient }
