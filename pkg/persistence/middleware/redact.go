package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aretw0/pipemirror/pkg/domain"
	"github.com/aretw0/pipemirror/pkg/ports"
)

// Mask replaces redacted values.
const Mask = "***"

type redactMiddleware struct {
	next     ports.SnapshotStore
	patterns []*regexp.Regexp
}

// NewRedactMiddleware masks the value of every variable whose name matches
// one of patterns before the snapshot is stored. Global variables,
// workflow constants and setup variables, and instance variables are
// covered. Loading returns the masked values as stored.
func NewRedactMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redact pattern %q: %w", p, err)
		}
		patterns[i] = re
	}
	return func(next ports.SnapshotStore) ports.SnapshotStore {
		return &redactMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *redactMiddleware) Save(ctx context.Context, snap domain.Snapshot) error {
	// The caller's snapshot may share maps with the live mirror.
	cloned := snap.Clone()

	maskVars(cloned.Globals, m.patterns)
	for _, w := range cloned.Workflows {
		maskVars(w.Constants, m.patterns)
		maskVars(w.SetupVariables, m.patterns)
	}
	for _, inst := range cloned.Instances {
		maskVars(inst.Variables, m.patterns)
	}

	return m.next.Save(ctx, cloned)
}

func (m *redactMiddleware) Load(ctx context.Context) (*domain.Snapshot, error) {
	return m.next.Load(ctx)
}

func (m *redactMiddleware) Delete(ctx context.Context) error {
	return m.next.Delete(ctx)
}

func maskVars[M ~map[string]domain.Variable](vars M, patterns []*regexp.Regexp) {
	for name, v := range vars {
		for _, p := range patterns {
			if p.MatchString(name) {
				v.Value = Mask
				vars[name] = v
				break
			}
		}
	}
}
