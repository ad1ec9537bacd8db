package tui

import (
	"io"

	"github.com/aretw0/pipemirror/pkg/domain"
	"github.com/aretw0/pipemirror/pkg/push"
	"github.com/aretw0/pipemirror/pkg/store"
	"github.com/muesli/termenv"
)

// Styler colours labels for one output. On a non-terminal writer every
// method returns its input unchanged.
type Styler struct {
	out *termenv.Output
}

// NewStyler detects the colour profile of w.
func NewStyler(w io.Writer) *Styler {
	return &Styler{out: termenv.NewOutput(w)}
}

func (s *Styler) paint(text, color string) string {
	return s.out.String(text).Foreground(s.out.Color(color)).String()
}

// RunState colours a workflow or instance state.
func (s *Styler) RunState(state domain.RunState) string {
	switch state {
	case domain.StateRunning:
		return s.paint(string(state), "#22c55e")
	case domain.StatePaused:
		return s.paint(string(state), "#eab308")
	case domain.StateError:
		return s.paint(string(state), "#ef4444")
	default:
		return string(state)
	}
}

// PushStatus colours the push connection state.
func (s *Styler) PushStatus(st push.Status) string {
	switch st {
	case push.StatusConnected:
		return s.paint(st.String(), "#22c55e")
	case push.StatusDisconnected:
		return s.paint(st.String(), "#eab308")
	default:
		return s.paint(st.String(), "#ef4444")
	}
}

// Op colours a store change operation.
func (s *Styler) Op(op store.Op) string {
	switch op {
	case store.OpRemove:
		return s.paint(op.String(), "#ef4444")
	case store.OpUpsert:
		return s.paint(op.String(), "#38bdf8")
	default:
		return s.paint(op.String(), "#a78bfa")
	}
}

// Faint dims secondary text such as identities.
func (s *Styler) Faint(text string) string {
	return s.out.String(text).Faint().String()
}
