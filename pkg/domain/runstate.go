package domain

// RunState is the scheduling state of a Workflow or Instance.
type RunState string

const (
	StateRunning RunState = "Running"
	StatePaused  RunState = "Paused"
	StateError   RunState = "Error" // Set by the server when an instance cannot be scheduled
)

// Toggled returns the state a toggle_pause request produces.
// Error is treated like Paused: toggling resumes it.
func (s RunState) Toggled() RunState {
	if s == StateRunning {
		return StatePaused
	}
	return StateRunning
}
