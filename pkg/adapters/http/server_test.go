package http

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/pipemirror/pkg/domain"
	"github.com/aretw0/pipemirror/pkg/push"
	"github.com/aretw0/pipemirror/pkg/store"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMirror struct {
	st *store.Store
}

func (m *fakeMirror) BaseURL() string { return "http://pipeline/api" }
func (m *fakeMirror) Store() *store.Store { return m.st }
func (m *fakeMirror) PushStatus() push.Status { return push.StatusConnected }

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	st := store.New()
	st.Workflows.Upsert("w1", domain.Workflow{UUID: "w1", Name: "Daily"})
	st.Instances.Upsert("i1", domain.Instance{UUID: "i1", WorkflowUUID: "w1"})
	st.Instances.Upsert("i2", domain.Instance{UUID: "i2", WorkflowUUID: "gone"})
	st.Globals.Upsert("greeting", domain.GlobalVariable{Typename: "String", Value: "hi"})

	srv := NewServer(&fakeMirror{st: st}, nil)
	t.Cleanup(srv.Close)
	return srv, st
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestReadEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler(nil)

	w := get(t, h, "/workflows")
	require.Equal(t, http.StatusOK, w.Code)
	var workflows map[string]domain.Workflow
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &workflows))
	assert.Equal(t, "Daily", workflows["w1"].Name)

	w = get(t, h, "/workflows/w1/instances")
	var instances map[string]domain.Instance
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &instances))
	assert.Len(t, instances, 1)
	assert.Contains(t, instances, "i1")

	w = get(t, h, "/orphans")
	instances = nil
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &instances))
	assert.Len(t, instances, 1)
	assert.Contains(t, instances, "i2")

	w = get(t, h, "/globals/greeting")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"hi"`)

	w = get(t, h, "/instances/i2")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"gone"`)

	w = get(t, h, "/health")
	assert.Contains(t, w.Body.String(), `"connected"`)

	w = get(t, h, "/info")
	assert.Contains(t, w.Body.String(), `"workflows":1`)
}

func TestNotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler(nil)

	for _, path := range []string{"/workflows/nope", "/instances/nope", "/globals/nope"} {
		assert.Equal(t, http.StatusNotFound, get(t, h, path).Code, path)
	}
}

func TestExtraRoutes(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler(func(r chi.Router) {
		r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("ok")) })
	})
	assert.Equal(t, "ok", get(t, h, "/metrics").Body.String())
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/workflows", nil)
	w := httptest.NewRecorder()
	srv.Handler(nil).ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestSubscribeEvents(t *testing.T) {
	srv, st := newTestServer(t)
	ts := httptest.NewServer(srv.Handler(nil))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/events?kinds=global")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := make(chan string, 16)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	next := func() string {
		for {
			select {
			case l, ok := <-lines:
				if !ok {
					return ""
				}
				if strings.HasPrefix(l, "data: ") {
					return strings.TrimPrefix(l, "data: ")
				}
			case <-time.After(5 * time.Second):
				t.Fatal("timed out waiting for an event")
				return ""
			}
		}
	}

	require.Equal(t, "connected", next())

	// Filtered out.
	st.Workflows.Upsert("w2", domain.Workflow{UUID: "w2"})
	st.Globals.Upsert("other", domain.GlobalVariable{Typename: "String"})

	var ev ChangeEvent
	require.NoError(t, json.Unmarshal([]byte(next()), &ev))
	assert.Equal(t, ChangeEvent{Kind: "global", Op: "upsert", Keys: []string{"other"}}, ev)

	st.Globals.ReplaceAll(map[string]domain.GlobalVariable{})
	ev = ChangeEvent{}
	require.NoError(t, json.Unmarshal([]byte(next()), &ev))
	assert.Equal(t, "replace", ev.Op)
	require.NotNil(t, ev.Diff)
	assert.Equal(t, []string{"greeting", "other"}, ev.Diff.Removed)

	// Close ends the stream.
	srv.Close()
	assert.Equal(t, "", next())
}

func TestSubscribeEvents_BadFilter(t *testing.T) {
	srv, _ := newTestServer(t)
	assert.Equal(t, http.StatusBadRequest, get(t, srv.Handler(nil), "/events?kinds=nodes").Code)
}

func TestStreamManager_DropsWhenFull(t *testing.T) {
	sm := NewStreamManager(nil)
	ch, cancel := sm.Subscribe(nil)
	defer cancel()

	for i := 0; i < 20; i++ {
		sm.Broadcast(domain.KindWorkflow, "x")
	}
	assert.Len(t, ch, cap(ch))
	assert.Equal(t, 1, sm.Len())
}
