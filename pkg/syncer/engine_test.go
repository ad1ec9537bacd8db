package syncer_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/aretw0/pipemirror/internal/testutils"
	"github.com/aretw0/pipemirror/pkg/domain"
	"github.com/aretw0/pipemirror/pkg/gateway"
	"github.com/aretw0/pipemirror/pkg/store"
	"github.com/aretw0/pipemirror/pkg/syncer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*testutils.FakeServer, *syncer.Engine) {
	t.Helper()
	fs := testutils.NewFakeServer(t)
	fs.Workflows["w1"] = domain.Workflow{UUID: "w1", Name: "Daily", State: domain.StateRunning}
	fs.Instances["i1"] = domain.Instance{UUID: "i1", WorkflowUUID: "w1", State: domain.StateRunning}
	fs.Globals["greeting"] = domain.GlobalVariable{Typename: "String", Value: "hi"}
	return fs, syncer.New(gateway.New(fs.URL()), store.New())
}

func TestEngine_RefreshAll(t *testing.T) {
	_, e := setup(t)

	require.NoError(t, e.RefreshAll(context.Background()))

	s := e.Store()
	assert.Equal(t, []string{"w1"}, s.Workflows.Keys())
	assert.Equal(t, []string{"i1"}, s.Instances.Keys())
	assert.Equal(t, []string{"greeting"}, s.Globals.Keys())
	assert.Equal(t, []string{"String", "Integer", "Boolean"}, s.Catalog.Get().VariableTypes)
	assert.Contains(t, s.Catalog.Get().Commands, "log")
}

func TestEngine_RefreshAll_JoinsFailures(t *testing.T) {
	fs, e := setup(t)
	fs.Fail(http.MethodGet, "/instances", http.StatusInternalServerError)

	err := e.RefreshAll(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTransient)

	// Independent refreshes still land.
	assert.Equal(t, 1, e.Store().Workflows.Len())
	assert.Equal(t, 0, e.Store().Instances.Len())
	assert.Equal(t, 1, e.Store().Globals.Len())
}

func TestEngine_RefreshCollection_FailureKeepsStore(t *testing.T) {
	fs, e := setup(t)
	ctx := context.Background()
	require.NoError(t, e.RefreshCollection(ctx, domain.KindWorkflow))

	fs.Lock()
	fs.Workflows["w2"] = domain.Workflow{UUID: "w2"}
	fs.Unlock()
	fs.Fail(http.MethodGet, "/workflows", http.StatusBadGateway)

	err := e.RefreshCollection(ctx, domain.KindWorkflow)
	assert.ErrorIs(t, err, domain.ErrTransient)
	assert.Equal(t, []string{"w1"}, e.Store().Workflows.Keys())
}

func TestEngine_RefreshCollection_RemovesVanished(t *testing.T) {
	fs, e := setup(t)
	ctx := context.Background()
	require.NoError(t, e.RefreshCollection(ctx, domain.KindInstance))

	fs.Lock()
	delete(fs.Instances, "i1")
	fs.Instances["i2"] = domain.Instance{UUID: "i2", WorkflowUUID: "w1"}
	fs.Unlock()

	require.NoError(t, e.RefreshCollection(ctx, domain.KindInstance))
	assert.Equal(t, []string{"i2"}, e.Store().Instances.Keys())
}

func TestEngine_RefreshEntity(t *testing.T) {
	fs, e := setup(t)
	ctx := context.Background()
	require.NoError(t, e.RefreshAll(ctx))

	fs.Lock()
	fs.Globals["greeting"] = domain.GlobalVariable{Typename: "String", Value: "hello"}
	fs.Unlock()

	require.NoError(t, e.RefreshEntity(ctx, domain.KindGlobal, "greeting"))
	got, ok := e.Store().Globals.Get("greeting")
	require.True(t, ok)
	assert.Equal(t, "hello", got.Value)
}

func TestEngine_RefreshEntity_NotFoundRemoves(t *testing.T) {
	fs, e := setup(t)
	ctx := context.Background()
	require.NoError(t, e.RefreshAll(ctx))

	fs.Lock()
	delete(fs.Workflows, "w1")
	fs.Unlock()

	var changes []store.Change
	e.Store().Workflows.Subscribe(func(c store.Change) { changes = append(changes, c) })

	require.NoError(t, e.RefreshEntity(ctx, domain.KindWorkflow, "w1"))
	assert.False(t, e.Store().Workflows.Has("w1"))
	require.Len(t, changes, 1)
	assert.Equal(t, store.OpRemove, changes[0].Op)
}

func TestEngine_RefreshEntity_FailureKeepsStore(t *testing.T) {
	fs, e := setup(t)
	ctx := context.Background()
	require.NoError(t, e.RefreshAll(ctx))
	fs.Fail(http.MethodGet, "/instances/i1", http.StatusInternalServerError)

	err := e.RefreshEntity(ctx, domain.KindInstance, "i1")
	assert.ErrorIs(t, err, domain.ErrTransient)
	assert.True(t, e.Store().Instances.Has("i1"))
}

func TestEngine_TogglePause(t *testing.T) {
	fs, e := setup(t)
	ctx := context.Background()
	require.NoError(t, e.RefreshAll(ctx))

	require.NoError(t, e.TogglePause(ctx, domain.KindInstance, "i1"))

	inst, ok := e.Store().Instances.Get("i1")
	require.True(t, ok)
	assert.Equal(t, domain.StatePaused, inst.State)
	assert.Equal(t, 1, fs.CountCalls("POST /instances/i1/toggle_pause"))
	assert.Equal(t, 1, fs.CountCalls("GET /instances/i1"))
}

func TestEngine_TogglePause_FailureSkipsRefresh(t *testing.T) {
	fs, e := setup(t)
	ctx := context.Background()
	require.NoError(t, e.RefreshAll(ctx))
	fs.Fail(http.MethodPost, "/workflows/w1/toggle_pause", http.StatusServiceUnavailable)

	err := e.TogglePause(ctx, domain.KindWorkflow, "w1")
	require.Error(t, err)
	assert.Equal(t, 0, fs.CountCalls("GET /workflows/w1"))
	w, _ := e.Store().Workflows.Get("w1")
	assert.Equal(t, domain.StateRunning, w.State)
}

func TestEngine_Delete(t *testing.T) {
	tests := []struct {
		name      string
		confirmer gateway.Confirmer
		wantGone  bool
	}{
		{name: "confirmed", confirmer: gateway.AlwaysConfirm, wantGone: true},
		{name: "declined", confirmer: gateway.NeverConfirm, wantGone: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := testutils.NewFakeServer(t)
			fs.Instances["i1"] = domain.Instance{UUID: "i1", WorkflowUUID: "w1"}
			e := syncer.New(gateway.New(fs.URL(), gateway.WithConfirmer(tt.confirmer)), store.New())
			ctx := context.Background()
			require.NoError(t, e.RefreshCollection(ctx, domain.KindInstance))

			require.NoError(t, e.Delete(ctx, domain.KindInstance, "i1"))
			assert.Equal(t, !tt.wantGone, e.Store().Instances.Has("i1"))

			fs.Lock()
			_, onServer := fs.Instances["i1"]
			fs.Unlock()
			assert.Equal(t, !tt.wantGone, onServer)
		})
	}
}

func TestEngine_Globals(t *testing.T) {
	fs, e := setup(t)
	ctx := context.Background()

	require.NoError(t, e.CreateGlobal(ctx, "limit", "Integer"))
	got, ok := e.Store().Globals.Get("limit")
	require.True(t, ok)
	assert.Equal(t, domain.GlobalVariable{Typename: "Integer"}, got)

	require.NoError(t, e.SetGlobal(ctx, "limit", domain.GlobalVariable{Typename: "Integer", Value: "10"}))
	got, _ = e.Store().Globals.Get("limit")
	assert.Equal(t, "10", got.Value)

	fs.Lock()
	assert.Equal(t, "10", fs.Globals["limit"].Value)
	fs.Unlock()

	fs.Fail(http.MethodPut, "/global_vars/limit", http.StatusInternalServerError)
	require.Error(t, e.SetGlobal(ctx, "limit", domain.GlobalVariable{Typename: "Integer", Value: "99"}))
	got, _ = e.Store().Globals.Get("limit")
	assert.Equal(t, "10", got.Value)
}

func TestEngine_HandleEvent(t *testing.T) {
	fs, e := setup(t)
	ctx := context.Background()
	require.NoError(t, e.RefreshAll(ctx))

	fs.Lock()
	fs.Instances["i2"] = domain.Instance{UUID: "i2", WorkflowUUID: "w1"}
	fs.Unlock()

	assert.False(t, e.HandleEvent(ctx, domain.Event{Type: domain.EventRefreshInstance, Key: "i2"}))
	assert.True(t, e.Store().Instances.Has("i2"))

	assert.False(t, e.HandleEvent(ctx, domain.Event{Type: domain.EventDeleteWorkflow, Key: "w1"}))
	assert.False(t, e.Store().Workflows.Has("w1"))

	// Delete notifications never hit the network.
	assert.Equal(t, 0, fs.CountCalls("GET /workflows/w1"))

	assert.False(t, e.HandleEvent(ctx, domain.Event{Type: "SomethingNew"}))
	assert.True(t, e.HandleEvent(ctx, domain.Event{Type: domain.EventClosingDown}))
}

func TestEngine_Run(t *testing.T) {
	fs, e := setup(t)
	ctx := context.Background()

	events := make(chan domain.Event, 4)
	events <- domain.Event{Type: domain.EventRefreshWorkflows}
	events <- domain.Event{Type: domain.EventRefreshGlobal, Key: "greeting"}
	events <- domain.Event{Type: domain.EventClosingDown}
	events <- domain.Event{Type: domain.EventRefreshInstances}

	done := make(chan struct{})
	go func() {
		e.Run(ctx, events)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop on ClosingDown")
	}

	assert.True(t, e.Store().Workflows.Has("w1"))
	assert.True(t, e.Store().Globals.Has("greeting"))
	assert.Equal(t, 0, fs.CountCalls("GET /instances"), "events after ClosingDown are not handled")
	assert.Len(t, events, 1)
}
