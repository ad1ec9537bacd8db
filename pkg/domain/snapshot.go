package domain

import "time"

// Snapshot is a point-in-time copy of the whole mirror.
// Sealed is set instead of the collections when the snapshot was encrypted
// for storage.
type Snapshot struct {
	Workflows map[string]Workflow       `json:"workflows,omitempty"`
	Instances map[string]Instance       `json:"instances,omitempty"`
	Globals   map[string]GlobalVariable `json:"globals,omitempty"`
	Catalog   Catalog                   `json:"catalog"`
	SavedAt   time.Time                 `json:"saved_at"`
	Sealed    string                    `json:"sealed,omitempty"`
}

// Clone returns a structurally independent deep copy.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Catalog: s.Catalog.Clone(),
		SavedAt: s.SavedAt,
		Sealed:  s.Sealed,
	}
	if s.Workflows != nil {
		out.Workflows = make(map[string]Workflow, len(s.Workflows))
		for k, w := range s.Workflows {
			out.Workflows[k] = w.Clone()
		}
	}
	if s.Instances != nil {
		out.Instances = make(map[string]Instance, len(s.Instances))
		for k, inst := range s.Instances {
			out.Instances[k] = inst.Clone()
		}
	}
	if s.Globals != nil {
		out.Globals = make(map[string]GlobalVariable, len(s.Globals))
		for k, v := range s.Globals {
			out.Globals[k] = v
		}
	}
	return out
}
