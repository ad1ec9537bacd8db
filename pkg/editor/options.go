package editor

import (
	"log/slog"

	"github.com/aretw0/pipemirror/internal/logging"
	"github.com/aretw0/pipemirror/pkg/observability"
)

type config struct {
	logger     *slog.Logger
	metrics    *observability.Metrics
	optimistic bool
}

// Option configures an editor.
type Option func(*config)

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithMetrics records commit outcomes.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *config) {
		c.metrics = m
	}
}

// WithOptimisticApply writes the store before the server confirms the
// commit. A rejected commit leaves the unsaved edit visible in the mirror.
func WithOptimisticApply() Option {
	return func(c *config) {
		c.optimistic = true
	}
}

func newConfig(opts []Option) config {
	c := config{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func (c config) observe(editor string, err error) {
	if err != nil {
		c.metrics.ObserveCommit(editor, observability.ResultError)
		c.logger.Warn("commit rejected", "editor", editor, "error", err)
		return
	}
	c.metrics.ObserveCommit(editor, observability.ResultOK)
	c.logger.Debug("commit accepted", "editor", editor)
}
