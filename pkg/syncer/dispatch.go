package syncer

import (
	"context"

	"github.com/aretw0/pipemirror/pkg/domain"
)

// HandleEvent applies one push event. It reports whether the event was the
// terminal ClosingDown notice.
func (e *Engine) HandleEvent(ctx context.Context, ev domain.Event) (terminal bool) {
	action, kind, ok := ev.Route()
	if !ok {
		e.logger.Debug("ignoring unknown event", "event", string(ev.Type))
		return false
	}

	switch action {
	case domain.ActionRefreshCollection:
		_ = e.RefreshCollection(ctx, kind)
	case domain.ActionRefreshEntity:
		if ev.Key == "" {
			e.logger.Warn("event without key", "event", string(ev.Type))
			return false
		}
		_ = e.RefreshEntity(ctx, kind, ev.Key)
	case domain.ActionRemove:
		if ev.Key == "" {
			e.logger.Warn("event without key", "event", string(ev.Type))
			return false
		}
		e.RemoveLocal(kind, ev.Key)
	case domain.ActionShutdown:
		e.logger.Info("server announced shutdown")
		return true
	}
	return false
}

// Run applies events until the channel closes, ClosingDown arrives or ctx
// ends. Events are handled one at a time in arrival order.
func (e *Engine) Run(ctx context.Context, events <-chan domain.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if e.HandleEvent(ctx, ev) {
				return
			}
		}
	}
}
