package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/pipemirror/internal/logging"
	"github.com/aretw0/pipemirror/pkg/domain"
	"github.com/aretw0/pipemirror/pkg/observability"
	"github.com/aretw0/pipemirror/pkg/ports"
	"github.com/aretw0/pipemirror/pkg/store"
)

// Engine applies server state to the store.
type Engine struct {
	gw      ports.Gateway
	store   *store.Store
	logger  *slog.Logger
	metrics *observability.Metrics
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMetrics records refresh outcomes.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// New creates an Engine writing into s and reading through gw.
func New(gw ports.Gateway, s *store.Store, opts ...Option) *Engine {
	e := &Engine{
		gw:     gw,
		store:  s,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Store returns the store the engine writes to.
func (e *Engine) Store() *store.Store { return e.store }

// RefreshCollection fetches a whole collection and replaces the local copy.
// On failure the store is left untouched; no retry is attempted.
func (e *Engine) RefreshCollection(ctx context.Context, kind domain.Kind) error {
	var err error
	switch kind {
	case domain.KindWorkflow:
		var all map[string]domain.Workflow
		if all, err = e.gw.ListWorkflows(ctx); err == nil {
			e.store.Workflows.ReplaceAll(all)
		}
	case domain.KindInstance:
		var all map[string]domain.Instance
		if all, err = e.gw.ListInstances(ctx); err == nil {
			e.store.Instances.ReplaceAll(all)
		}
	case domain.KindGlobal:
		var all map[string]domain.GlobalVariable
		if all, err = e.gw.ListGlobals(ctx); err == nil {
			e.store.Globals.ReplaceAll(all)
		}
	default:
		return fmt.Errorf("%w: %v", domain.ErrUnknownKind, kind)
	}

	if err != nil {
		e.metrics.ObserveRefresh(kind.String(), observability.ScopeCollection, observability.ResultError)
		e.logger.Warn("Unable to fetch collection", "kind", kind.String(), "error", err)
		return fmt.Errorf("refresh %s collection: %w", kind, err)
	}
	e.metrics.ObserveRefresh(kind.String(), observability.ScopeCollection, observability.ResultOK)
	e.logger.Debug("collection refreshed", "kind", kind.String())
	return nil
}

// RefreshEntity fetches one entity and upserts it. A not-found answer removes
// the key locally and is not an error. Any other failure leaves the store
// untouched.
func (e *Engine) RefreshEntity(ctx context.Context, kind domain.Kind, key string) error {
	var err error
	switch kind {
	case domain.KindWorkflow:
		var w domain.Workflow
		if w, err = e.gw.GetWorkflow(ctx, key); err == nil {
			e.store.Workflows.Upsert(key, w)
		}
	case domain.KindInstance:
		var inst domain.Instance
		if inst, err = e.gw.GetInstance(ctx, key); err == nil {
			e.store.Instances.Upsert(key, inst)
		}
	case domain.KindGlobal:
		var v domain.GlobalVariable
		if v, err = e.gw.GetGlobal(ctx, key); err == nil {
			e.store.Globals.Upsert(key, v)
		}
	default:
		return fmt.Errorf("%w: %v", domain.ErrUnknownKind, kind)
	}

	switch {
	case err == nil:
		e.metrics.ObserveRefresh(kind.String(), observability.ScopeEntity, observability.ResultOK)
		return nil
	case errors.Is(err, domain.ErrNotFound):
		e.metrics.ObserveRefresh(kind.String(), observability.ScopeEntity, observability.ResultNotFound)
		e.logger.Debug("entity gone, removing", "kind", kind.String(), "key", key)
		e.store.Remove(kind, key)
		return nil
	default:
		e.metrics.ObserveRefresh(kind.String(), observability.ScopeEntity, observability.ResultError)
		e.logger.Warn("Unable to fetch entity", "kind", kind.String(), "key", key, "error", err)
		return fmt.Errorf("refresh %s %s: %w", kind, key, err)
	}
}

// RemoveLocal drops an entity from the store without contacting the server.
func (e *Engine) RemoveLocal(kind domain.Kind, key string) {
	if _, err := e.store.Remove(kind, key); err != nil {
		e.logger.Warn("Unable to remove entity", "kind", kind.String(), "key", key, "error", err)
	}
}

// RefreshCatalog fetches the variable types and command descriptors.
// Both must succeed for the catalog to change.
func (e *Engine) RefreshCatalog(ctx context.Context) error {
	types, err := e.gw.VariableTypes(ctx)
	if err != nil {
		e.logger.Warn("Unable to fetch the list of variable types", "error", err)
		return fmt.Errorf("refresh variable types: %w", err)
	}
	cmds, err := e.gw.Commands(ctx)
	if err != nil {
		e.logger.Warn("Unable to fetch the list of commands", "error", err)
		return fmt.Errorf("refresh commands: %w", err)
	}
	e.store.Catalog.Set(domain.Catalog{VariableTypes: types, Commands: cmds})
	return nil
}

// RefreshAll bulk-refreshes every collection and the catalog. Each refresh is
// independent; the returned error joins the failures.
func (e *Engine) RefreshAll(ctx context.Context) error {
	var errs []error
	for _, kind := range domain.Kinds {
		if err := e.RefreshCollection(ctx, kind); err != nil {
			errs = append(errs, err)
		}
	}
	if err := e.RefreshCatalog(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
