package domain

import "encoding/json"

// Catalog is server reference data the editors need: the known variable
// types and the descriptors of every available command.
type Catalog struct {
	VariableTypes []string                   `json:"variable_types"`
	Commands      map[string]json.RawMessage `json:"commands"`
}

// CommandNames returns the names of the available commands.
func (c Catalog) CommandNames() []string {
	names := make([]string, 0, len(c.Commands))
	for name := range c.Commands {
		names = append(names, name)
	}
	return names
}

// Clone returns an independent copy.
func (c Catalog) Clone() Catalog {
	out := Catalog{}
	if c.VariableTypes != nil {
		out.VariableTypes = append([]string(nil), c.VariableTypes...)
	}
	if c.Commands != nil {
		out.Commands = make(map[string]json.RawMessage, len(c.Commands))
		for k, v := range c.Commands {
			out.Commands[k] = append(json.RawMessage(nil), v...)
		}
	}
	return out
}
