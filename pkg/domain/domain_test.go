package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkflowClone_IsIndependent(t *testing.T) {
	orig := Workflow{
		UUID:           "w1",
		Name:           "Daily",
		State:          StateRunning,
		Constants:      Variables{"c": {Typename: "String", Value: "a"}},
		SetupVariables: Variables{"s": {Typename: "Integer", Value: "1"}},
		Procedures: map[string][]Command{
			"start": {{CommandName: "log", Variables: Variables{"line": {Typename: "String", Value: "hi"}}}},
		},
	}

	cp := orig.Clone()
	cp.Name = "Changed"
	cp.Constants["c"] = Variable{Typename: "String", Value: "b"}
	cp.SetupVariables["new"] = Variable{}
	cp.Procedures["start"][0].Variables["line"] = Variable{Value: "bye"}
	cp.Procedures["start"] = append(cp.Procedures["start"], Command{CommandName: "x"})

	assert.Equal(t, "Daily", orig.Name)
	assert.Equal(t, "a", orig.Constants["c"].Value)
	assert.NotContains(t, orig.SetupVariables, "new")
	assert.Equal(t, "hi", orig.Procedures["start"][0].Variables["line"].Value)
	assert.Len(t, orig.Procedures["start"], 1)
}

func TestInstanceClone_IsIndependent(t *testing.T) {
	next := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	orig := Instance{
		UUID:               "i1",
		WorkflowUUID:       "w1",
		NextProcessingTime: &Timestamp{next},
		Variables:          Variables{"v": {Value: "1"}},
	}

	cp := orig.Clone()
	cp.NextProcessingTime.Time = next.Add(time.Hour)
	cp.Variables["v"] = Variable{Value: "2"}

	assert.True(t, orig.NextProcessingTime.Equal(next))
	assert.Equal(t, "1", orig.Variables["v"].Value)
}

func TestInstanceJSON(t *testing.T) {
	data := []byte(`{
		"uuid": "i1",
		"workflow_uuid": "w1",
		"state": "Paused",
		"processing_step": ["cleanup", 3],
		"next_processing_time": null,
		"console_log": "line\n",
		"variables": {"x": {"typename": "String", "value": "y"}}
	}`)

	var inst Instance
	require.NoError(t, json.Unmarshal(data, &inst))
	assert.Equal(t, StatePaused, inst.State)
	assert.Equal(t, ProcessingStep{Procedure: "cleanup", Index: 3}, inst.ProcessingStep)
	assert.Nil(t, inst.NextProcessingTime)

	out, err := json.Marshal(inst.ProcessingStep)
	require.NoError(t, err)
	assert.JSONEq(t, `["cleanup", 3]`, string(out))

	var bad ProcessingStep
	assert.Error(t, json.Unmarshal([]byte(`["only"]`), &bad))
}

func TestInstanceJSON_NullStepAndNaiveTime(t *testing.T) {
	data := []byte(`{
		"uuid": "i2",
		"workflow_uuid": "w1",
		"state": "Running",
		"processing_step": null,
		"next_processing_time": "2024-05-01T12:00:00.123456"
	}`)

	var inst Instance
	require.NoError(t, json.Unmarshal(data, &inst))
	assert.Equal(t, ProcessingStep{}, inst.ProcessingStep)
	require.NotNil(t, inst.NextProcessingTime)
	want := time.Date(2024, 5, 1, 12, 0, 0, 123456000, time.UTC)
	assert.True(t, inst.NextProcessingTime.Equal(want), "got %v", inst.NextProcessingTime.Time)
}

func TestTimestamp_Layouts(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		{"rfc3339", `"2024-05-01T12:00:00Z"`, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
		{"rfc3339 offset", `"2024-05-01T14:00:00+02:00"`, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
		{"naive", `"2024-05-01T12:00:00"`, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
		{"naive micros", `"2024-05-01T12:00:00.5"`, time.Date(2024, 5, 1, 12, 0, 0, 500000000, time.UTC)},
		{"space separated", `"2024-05-01 12:00:00"`, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts Timestamp
			require.NoError(t, json.Unmarshal([]byte(tt.in), &ts))
			assert.True(t, ts.Equal(tt.want), "got %v", ts.Time)
		})
	}

	var ts Timestamp
	require.NoError(t, json.Unmarshal([]byte(`null`), &ts))
	assert.True(t, ts.IsZero())
	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &ts))

	out, err := json.Marshal(Timestamp{time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	assert.JSONEq(t, `"2024-05-01T12:00:00Z"`, string(out))
}

func TestNewWorkflow_Skeleton(t *testing.T) {
	w := NewWorkflow("w9")
	assert.Equal(t, "w9", w.UUID)
	assert.Empty(t, w.Name)
	assert.Equal(t, StateRunning, w.State)
	assert.Equal(t, map[string][]Command{"start": {}}, w.Procedures)
	assert.Equal(t, "w9", w.DisplayName())
}

func TestRunStateToggled(t *testing.T) {
	assert.Equal(t, StatePaused, StateRunning.Toggled())
	assert.Equal(t, StateRunning, StatePaused.Toggled())
	assert.Equal(t, StateRunning, StateError.Toggled())
}

func TestEventRoute(t *testing.T) {
	action, kind, ok := Event{Type: EventRefreshInstance, Key: "i1"}.Route()
	assert.True(t, ok)
	assert.Equal(t, ActionRefreshEntity, action)
	assert.Equal(t, KindInstance, kind)

	action, _, ok = Event{Type: EventClosingDown}.Route()
	assert.True(t, ok)
	assert.Equal(t, ActionShutdown, action)

	_, _, ok = Event{Type: "Bogus"}.Route()
	assert.False(t, ok)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("instances")
	require.NoError(t, err)
	assert.Equal(t, KindInstance, k)

	_, err = ParseKind("nope")
	assert.True(t, errors.Is(err, ErrUnknownKind))
}
