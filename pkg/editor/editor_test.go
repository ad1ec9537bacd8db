package editor_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/aretw0/pipemirror/internal/testutils"
	"github.com/aretw0/pipemirror/pkg/domain"
	"github.com/aretw0/pipemirror/pkg/editor"
	"github.com/aretw0/pipemirror/pkg/gateway"
	"github.com/aretw0/pipemirror/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T) (*testutils.FakeServer, *gateway.Client, *store.Store) {
	t.Helper()
	fs := testutils.NewFakeServer(t)
	w1 := domain.Workflow{
		UUID:  "w1",
		Name:  "Daily",
		State: domain.StateRunning,
		SetupVariables: domain.Variables{
			"target": {Typename: "String", Value: "db"},
		},
		Procedures: map[string][]domain.Command{
			"start": {{CommandName: "log", Variables: domain.Variables{"line": {Typename: "String", Value: "x"}}}},
		},
	}
	fs.Workflows["w1"] = w1
	i1 := domain.Instance{UUID: "i1", WorkflowUUID: "w1", State: domain.StateRunning}
	fs.Instances["i1"] = i1

	s := store.New()
	s.Workflows.Upsert("w1", w1)
	s.Instances.Upsert("i1", i1)
	return fs, gateway.New(fs.URL()), s
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func TestWorkflowEditor_CloseLeavesStoreIdentical(t *testing.T) {
	_, gw, s := seed(t)
	ed := editor.NewWorkflowEditor(gw, s)

	before, _ := s.Workflows.Get("w1")
	require.NoError(t, ed.Open("w1"))
	require.NoError(t, ed.Edit(func(w *domain.Workflow) {
		w.Name = "Changed"
		w.SetupVariables["target"] = domain.Variable{Typename: "String", Value: "other"}
		w.Procedures["start"][0].CommandName = "sleep"
	}))
	ed.Close()

	after, _ := s.Workflows.Get("w1")
	assert.Equal(t, mustJSON(t, before), mustJSON(t, after))
	assert.Equal(t, editor.StateClosed, ed.State())
	_, ok := ed.Staged()
	assert.False(t, ok)
}

func TestWorkflowEditor_Commit(t *testing.T) {
	fs, gw, s := seed(t)
	ed := editor.NewWorkflowEditor(gw, s)

	require.NoError(t, ed.Open("w1"))
	require.NoError(t, ed.Edit(func(w *domain.Workflow) { w.UserNotes = "reviewed" }))
	require.NoError(t, ed.Commit(context.Background()))

	assert.Equal(t, editor.StateClosed, ed.State())
	assert.NoError(t, ed.Err())
	got, _ := s.Workflows.Get("w1")
	assert.Equal(t, "reviewed", got.UserNotes)

	fs.Lock()
	assert.Equal(t, "reviewed", fs.Workflows["w1"].UserNotes)
	fs.Unlock()
}

func TestWorkflowEditor_CommitKeepsOpenedUUID(t *testing.T) {
	for _, optimistic := range []bool{false, true} {
		fs, gw, s := seed(t)
		var opts []editor.Option
		if optimistic {
			opts = append(opts, editor.WithOptimisticApply())
		}
		ed := editor.NewWorkflowEditor(gw, s, opts...)

		require.NoError(t, ed.Open("w1"))
		require.NoError(t, ed.Edit(func(w *domain.Workflow) {
			w.UUID = "w2"
			w.UserNotes = "moved"
		}))
		require.NoError(t, ed.Commit(context.Background()))

		got, ok := s.Workflows.Get("w1")
		require.True(t, ok)
		assert.Equal(t, "w1", got.UUID)
		assert.Equal(t, "moved", got.UserNotes)
		_, ok = s.Workflows.Get("w2")
		assert.False(t, ok)

		fs.Lock()
		assert.Equal(t, "moved", fs.Workflows["w1"].UserNotes)
		assert.Equal(t, "w1", fs.Workflows["w1"].UUID)
		assert.NotContains(t, fs.Workflows, "w2")
		fs.Unlock()
	}
}

func TestWorkflowEditor_CommitFailure(t *testing.T) {
	tests := []struct {
		name         string
		opts         []editor.Option
		wantInMirror bool
	}{
		{name: "gated", wantInMirror: false},
		{name: "optimistic", opts: []editor.Option{editor.WithOptimisticApply()}, wantInMirror: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs, gw, s := seed(t)
			fs.Fail(http.MethodPut, "/workflows/w1", http.StatusInternalServerError)
			ed := editor.NewWorkflowEditor(gw, s, tt.opts...)

			require.NoError(t, ed.Open("w1"))
			require.NoError(t, ed.Edit(func(w *domain.Workflow) { w.Name = "Nightly" }))

			err := ed.Commit(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrCommitRejected)
			assert.ErrorIs(t, err, domain.ErrTransient)

			assert.Equal(t, editor.StateOpen, ed.State())
			require.Error(t, ed.Err())
			assert.NotEmpty(t, ed.Err().Error())
			staged, ok := ed.Staged()
			require.True(t, ok)
			assert.Equal(t, "Nightly", staged.Name)

			got, _ := s.Workflows.Get("w1")
			assert.Equal(t, tt.wantInMirror, got.Name == "Nightly")

			// Retry without re-entering data.
			fs.ClearFailures()
			require.NoError(t, ed.Commit(context.Background()))
			got, _ = s.Workflows.Get("w1")
			assert.Equal(t, "Nightly", got.Name)
			assert.Equal(t, editor.StateClosed, ed.State())
		})
	}
}

func TestWorkflowEditor_OpenNew(t *testing.T) {
	fs, gw, s := seed(t)
	ed := editor.NewWorkflowEditor(gw, s)

	require.NoError(t, ed.OpenNew(context.Background()))
	staged, ok := ed.Staged()
	require.True(t, ok)
	require.NotEmpty(t, staged.UUID)
	assert.Equal(t, staged.UUID, ed.Key())
	assert.Empty(t, staged.Name)
	assert.Equal(t, domain.StateRunning, staged.State)
	assert.Contains(t, staged.Procedures, domain.DefaultProcedure)
	assert.False(t, s.Workflows.Has(staged.UUID))

	require.NoError(t, ed.Commit(context.Background()))
	got, ok := s.Workflows.Get(staged.UUID)
	require.True(t, ok)
	assert.Equal(t, staged.UUID, got.Name, "empty name defaults to the identity")

	fs.Lock()
	assert.Equal(t, staged.UUID, fs.Workflows[staged.UUID].Name)
	fs.Unlock()
}

func TestWorkflowEditor_OpenNewFailureKeepsState(t *testing.T) {
	fs, gw, s := seed(t)
	ed := editor.NewWorkflowEditor(gw, s)
	require.NoError(t, ed.Open("w1"))

	fs.Fail(http.MethodGet, "/gen_uuid", http.StatusServiceUnavailable)
	require.Error(t, ed.OpenNew(context.Background()))

	assert.Equal(t, editor.StateOpen, ed.State())
	assert.Equal(t, "w1", ed.Key())
}

func TestWorkflowEditor_ReopenDiscards(t *testing.T) {
	fs, gw, s := seed(t)
	fs.Fail(http.MethodPut, "/workflows/w1", http.StatusInternalServerError)
	ed := editor.NewWorkflowEditor(gw, s)

	require.NoError(t, ed.Open("w1"))
	require.NoError(t, ed.Edit(func(w *domain.Workflow) { w.Name = "Draft" }))
	require.Error(t, ed.Commit(context.Background()))

	require.NoError(t, ed.Open("w1"))
	assert.NoError(t, ed.Err())
	staged, _ := ed.Staged()
	assert.Equal(t, "Daily", staged.Name)
}

func TestBuffer_StateErrors(t *testing.T) {
	_, gw, s := seed(t)
	ed := editor.NewInstanceEditor(gw, s)

	assert.ErrorIs(t, ed.Edit(func(*domain.Instance) {}), domain.ErrNotOpen)
	assert.ErrorIs(t, ed.Commit(context.Background()), domain.ErrNotOpen)
	assert.ErrorIs(t, ed.Open("missing"), domain.ErrNotFound)
	assert.Equal(t, editor.StateClosed, ed.State())
}

func TestBuffer_Subscribe(t *testing.T) {
	_, gw, s := seed(t)
	ed := editor.NewInstanceEditor(gw, s)

	var seen []editor.State
	unsubscribe := ed.Subscribe(func(st editor.State) { seen = append(seen, st) })

	require.NoError(t, ed.Open("i1"))
	require.NoError(t, ed.Commit(context.Background()))
	unsubscribe()
	require.NoError(t, ed.Open("i1"))

	assert.Equal(t, []editor.State{editor.StateOpen, editor.StateCommitting, editor.StateClosed}, seen)
}

func TestInstanceEditor_Commit(t *testing.T) {
	fs, gw, s := seed(t)
	ed := editor.NewInstanceEditor(gw, s)

	require.NoError(t, ed.Open("i1"))
	require.NoError(t, ed.Edit(func(inst *domain.Instance) {
		inst.Variables = domain.Variables{"count": {Typename: "Integer", Value: "3"}}
	}))
	require.NoError(t, ed.Commit(context.Background()))

	got, _ := s.Instances.Get("i1")
	assert.Equal(t, "3", got.Variables["count"].Value)
	fs.Lock()
	assert.Equal(t, "3", fs.Instances["i1"].Variables["count"].Value)
	fs.Unlock()
}

func TestInstanceEditor_CommitKeepsOpenedUUID(t *testing.T) {
	fs, gw, s := seed(t)
	ed := editor.NewInstanceEditor(gw, s)

	require.NoError(t, ed.Open("i1"))
	require.NoError(t, ed.Edit(func(inst *domain.Instance) {
		inst.UUID = "i9"
		inst.ConsoleLog = "edited"
	}))
	require.NoError(t, ed.Commit(context.Background()))

	got, ok := s.Instances.Get("i1")
	require.True(t, ok)
	assert.Equal(t, "i1", got.UUID)
	_, ok = s.Instances.Get("i9")
	assert.False(t, ok)

	fs.Lock()
	assert.Equal(t, "edited", fs.Instances["i1"].ConsoleLog)
	assert.Equal(t, "i1", fs.Instances["i1"].UUID)
	assert.NotContains(t, fs.Instances, "i9")
	fs.Unlock()
}

func TestSpawnEditor(t *testing.T) {
	fs, gw, s := seed(t)
	ed := editor.NewSpawnEditor(gw, s)

	require.NoError(t, ed.Open("w1"))
	staged, ok := ed.Staged()
	require.True(t, ok)
	assert.Equal(t, "db", staged.Variables["target"].Value)

	require.NoError(t, ed.Edit(func(r *editor.SpawnRequest) {
		r.Variables["target"] = domain.Variable{Typename: "String", Value: "cache"}
	}))

	// The workflow's setup variables are untouched by staging.
	w, _ := s.Workflows.Get("w1")
	assert.Equal(t, "db", w.SetupVariables["target"].Value)

	require.NoError(t, ed.Commit(context.Background()))
	assert.Equal(t, editor.StateClosed, ed.State())

	spawned := fs.Spawned()
	require.Len(t, spawned, 1)
	assert.Equal(t, "w1", spawned[0].WorkflowUUID)
	assert.Equal(t, "cache", spawned[0].Variables["target"].Value)

	// The new instance arrives through refresh, not the editor.
	assert.Equal(t, []string{"i1"}, s.Instances.Keys())
}

func TestSpawnEditor_CommitFailure(t *testing.T) {
	fs, gw, s := seed(t)
	fs.Fail(http.MethodPost, "/workflows/w1/spawn_instance", http.StatusInternalServerError)
	ed := editor.NewSpawnEditor(gw, s)

	require.NoError(t, ed.Open("w1"))
	err := ed.Commit(context.Background())
	assert.ErrorIs(t, err, domain.ErrCommitRejected)
	assert.Equal(t, editor.StateOpen, ed.State())
	assert.Empty(t, fs.Spawned())
}

func TestManager_CloseAll(t *testing.T) {
	_, gw, s := seed(t)
	m := editor.NewManager(gw, s)

	require.NoError(t, m.Workflow.Open("w1"))
	require.NoError(t, m.Instance.Open("i1"))
	require.NoError(t, m.Spawn.Open("w1"))
	m.CloseAll()

	assert.Equal(t, editor.StateClosed, m.Workflow.State())
	assert.Equal(t, editor.StateClosed, m.Instance.State())
	assert.Equal(t, editor.StateClosed, m.Spawn.State())
}
