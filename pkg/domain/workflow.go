package domain

// DefaultProcedure is the procedure every Instance starts in.
const DefaultProcedure = "start"

// Command is one step of a procedure. It is a read-only projection for display.
type Command struct {
	CommandName string    `json:"command_name"`
	Variables   Variables `json:"variables"`
}

// Clone returns an independent copy of the command.
func (c Command) Clone() Command {
	return Command{
		CommandName: c.CommandName,
		Variables:   c.Variables.Clone(),
	}
}

// Workflow is the definition an Instance is spawned from.
// UUID is assigned by the server and never changes. Name is a display label only.
type Workflow struct {
	UUID           string               `json:"uuid"`
	Name           string               `json:"name"`
	State          RunState             `json:"state"`
	UserNotes      string               `json:"user_notes"`
	Constants      Variables            `json:"constants"`
	SetupVariables Variables            `json:"setup_variables"`
	Procedures     map[string][]Command `json:"procedures"`
}

// NewWorkflow returns the skeleton used when creating a workflow from scratch:
// empty name, Running, and one empty "start" procedure.
func NewWorkflow(uuid string) Workflow {
	return Workflow{
		UUID:           uuid,
		State:          StateRunning,
		Constants:      Variables{},
		SetupVariables: Variables{},
		Procedures: map[string][]Command{
			DefaultProcedure: {},
		},
	}
}

// Identity returns the store key of the workflow.
func (w Workflow) Identity() string { return w.UUID }

// DisplayName returns Name, or the UUID when no name was given.
func (w Workflow) DisplayName() string {
	if w.Name == "" {
		return w.UUID
	}
	return w.Name
}

// Clone returns a structurally independent deep copy.
func (w Workflow) Clone() Workflow {
	out := w
	out.Constants = w.Constants.Clone()
	out.SetupVariables = w.SetupVariables.Clone()
	if w.Procedures != nil {
		out.Procedures = make(map[string][]Command, len(w.Procedures))
		for name, steps := range w.Procedures {
			if steps == nil {
				out.Procedures[name] = nil
				continue
			}
			cp := make([]Command, len(steps))
			for i, c := range steps {
				cp[i] = c.Clone()
			}
			out.Procedures[name] = cp
		}
	}
	return out
}
