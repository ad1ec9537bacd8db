package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ProcessingStep points at the command an Instance will run next.
// On the wire it is the tuple [procedure, index].
type ProcessingStep struct {
	Procedure string
	Index     int
}

// MarshalJSON encodes the step as a two element array.
func (p ProcessingStep) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{p.Procedure, p.Index})
}

// UnmarshalJSON decodes the two element array form. null leaves p untouched.
func (p *ProcessingStep) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("processing_step: %w", err)
	}
	if len(raw) != 2 {
		return fmt.Errorf("processing_step: expected 2 elements, got %d", len(raw))
	}
	if err := json.Unmarshal(raw[0], &p.Procedure); err != nil {
		return fmt.Errorf("processing_step procedure: %w", err)
	}
	if err := json.Unmarshal(raw[1], &p.Index); err != nil {
		return fmt.Errorf("processing_step index: %w", err)
	}
	return nil
}

// Instance is one execution of a Workflow. WorkflowUUID is a back-reference;
// the referenced Workflow may be absent from the mirror (an orphan).
type Instance struct {
	UUID               string         `json:"uuid"`
	WorkflowUUID       string         `json:"workflow_uuid"`
	State              RunState       `json:"state"`
	ProcessingStep     ProcessingStep `json:"processing_step"`
	NextProcessingTime *Timestamp     `json:"next_processing_time"`
	ConsoleLog         string         `json:"console_log"`
	Variables          Variables      `json:"variables"`
}

// Identity returns the store key of the instance.
func (i Instance) Identity() string { return i.UUID }

// Clone returns a structurally independent deep copy.
func (i Instance) Clone() Instance {
	out := i
	if i.NextProcessingTime != nil {
		t := *i.NextProcessingTime
		out.NextProcessingTime = &t
	}
	out.Variables = i.Variables.Clone()
	return out
}
