// Package testutils provides an in-process pipeline server for tests.
package testutils

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/pipemirror/pkg/domain"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// FakeServer implements the pipeline server's REST and event stream contract
// over httptest. Collections are exported for direct seeding; hold Lock while
// touching them after the server has started.
type FakeServer struct {
	sync.Mutex

	Workflows     map[string]domain.Workflow
	Instances     map[string]domain.Instance
	Globals       map[string]domain.GlobalVariable
	VariableTypes []string
	Commands      map[string]json.RawMessage

	// ListAsArray makes collection endpoints answer with arrays instead of
	// identity-keyed objects.
	ListAsArray bool

	Streams *StreamManager

	failures map[string]int
	calls    []string
	spawned  []Spawn
	srv      *httptest.Server
}

// Spawn records one spawn_instance request.
type Spawn struct {
	WorkflowUUID string
	Variables    domain.Variables
	InstanceUUID string
}

// NewFakeServer starts a server and stops it when the test ends.
func NewFakeServer(t testing.TB) *FakeServer {
	t.Helper()

	fs := &FakeServer{
		Workflows:     make(map[string]domain.Workflow),
		Instances:     make(map[string]domain.Instance),
		Globals:       make(map[string]domain.GlobalVariable),
		VariableTypes: []string{"String", "Integer", "Boolean"},
		Commands:      map[string]json.RawMessage{"log": json.RawMessage(`{"line":"String"}`)},
		Streams:       NewStreamManager(),
		failures:      make(map[string]int),
	}

	r := chi.NewRouter()
	r.Use(fs.record)
	r.Route("/api", func(r chi.Router) {
		r.Get("/gen_uuid", fs.genUUID)
		r.Get("/variable_types", fs.variableTypes)
		r.Get("/commands", fs.commands)
		r.Get("/events_stream", fs.events)

		r.Get("/workflows", fs.listWorkflows)
		r.Get("/workflows/{key}", fs.getWorkflow)
		r.Put("/workflows/{key}", fs.putWorkflow)
		r.Delete("/workflows/{key}", fs.deleteWorkflow)
		r.Post("/workflows/{key}/toggle_pause", fs.toggleWorkflow)
		r.Post("/workflows/{key}/spawn_instance", fs.spawnInstance)

		r.Get("/instances", fs.listInstances)
		r.Get("/instances/{key}", fs.getInstance)
		r.Put("/instances/{key}", fs.putInstance)
		r.Delete("/instances/{key}", fs.deleteInstance)
		r.Post("/instances/{key}/toggle_pause", fs.toggleInstance)

		r.Get("/global_variables", fs.listGlobals)
		r.Get("/global_vars/{key}", fs.getGlobal)
		r.Put("/global_vars/{key}", fs.putGlobal)
		r.Delete("/global_vars/{key}", fs.deleteGlobal)
	})

	fs.srv = httptest.NewServer(r)
	t.Cleanup(func() {
		fs.Streams.Drop()
		fs.srv.CloseClientConnections()
		fs.srv.Close()
	})
	return fs
}

// URL returns the API root, suitable for gateway.New.
func (fs *FakeServer) URL() string { return fs.srv.URL + "/api" }

// Fail makes every "METHOD path" request (path relative to the API root)
// answer with code until ClearFailures is called.
func (fs *FakeServer) Fail(method, path string, code int) {
	fs.Lock()
	defer fs.Unlock()
	fs.failures[method+" "+path] = code
}

// ClearFailures removes every injected failure.
func (fs *FakeServer) ClearFailures() {
	fs.Lock()
	defer fs.Unlock()
	fs.failures = make(map[string]int)
}

// Calls returns the "METHOD path" of every request received.
func (fs *FakeServer) Calls() []string {
	fs.Lock()
	defer fs.Unlock()
	return append([]string(nil), fs.calls...)
}

// CountCalls returns how many requests matched "METHOD path".
func (fs *FakeServer) CountCalls(call string) int {
	n := 0
	for _, c := range fs.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

// Spawned returns every recorded spawn request.
func (fs *FakeServer) Spawned() []Spawn {
	fs.Lock()
	defer fs.Unlock()
	return append([]Spawn(nil), fs.spawned...)
}

// Emit pushes a named event to every connected stream.
func (fs *FakeServer) Emit(event domain.EventType, key string) {
	fs.Streams.Broadcast(string(event), key)
}

// WaitForStreams blocks until n event streams are connected.
func (fs *FakeServer) WaitForStreams(t testing.TB, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for fs.Streams.Count() < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d event streams, have %d", n, fs.Streams.Count())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func (fs *FakeServer) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/api")
		call := r.Method + " " + path

		fs.Lock()
		fs.calls = append(fs.calls, call)
		code, fail := fs.failures[call]
		fs.Unlock()

		if fail {
			http.Error(w, "injected failure", code)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// keyParam returns the unescaped {key} segment. chi routes on the raw path
// when it contains escapes such as %2F.
func keyParam(r *http.Request) string {
	raw := chi.URLParam(r, "key")
	if key, err := url.PathUnescape(raw); err == nil {
		return key
	}
	return raw
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (fs *FakeServer) genUUID(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, uuid.New().String())
}

func (fs *FakeServer) variableTypes(w http.ResponseWriter, r *http.Request) {
	fs.Lock()
	defer fs.Unlock()
	writeJSON(w, http.StatusOK, fs.VariableTypes)
}

func (fs *FakeServer) commands(w http.ResponseWriter, r *http.Request) {
	fs.Lock()
	defer fs.Unlock()
	writeJSON(w, http.StatusOK, fs.Commands)
}

// events serves the push stream in text/event-stream framing.
func (fs *FakeServer) events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, dropped, cancel := fs.Streams.Subscribe()
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-dropped:
			return
		case frame := <-ch:
			fmt.Fprint(w, frame)
			flusher.Flush()
		}
	}
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (fs *FakeServer) listWorkflows(w http.ResponseWriter, r *http.Request) {
	fs.Lock()
	defer fs.Unlock()
	if fs.ListAsArray {
		list := make([]domain.Workflow, 0, len(fs.Workflows))
		for _, k := range sortedKeys(fs.Workflows) {
			list = append(list, fs.Workflows[k])
		}
		writeJSON(w, http.StatusOK, list)
		return
	}
	writeJSON(w, http.StatusOK, fs.Workflows)
}

func (fs *FakeServer) listInstances(w http.ResponseWriter, r *http.Request) {
	fs.Lock()
	defer fs.Unlock()
	if fs.ListAsArray {
		list := make([]domain.Instance, 0, len(fs.Instances))
		for _, k := range sortedKeys(fs.Instances) {
			list = append(list, fs.Instances[k])
		}
		writeJSON(w, http.StatusOK, list)
		return
	}
	writeJSON(w, http.StatusOK, fs.Instances)
}

func (fs *FakeServer) listGlobals(w http.ResponseWriter, r *http.Request) {
	fs.Lock()
	defer fs.Unlock()
	writeJSON(w, http.StatusOK, fs.Globals)
}

func (fs *FakeServer) getWorkflow(w http.ResponseWriter, r *http.Request) {
	fs.Lock()
	defer fs.Unlock()
	wf, ok := fs.Workflows[keyParam(r)]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, wf)
}

func (fs *FakeServer) getInstance(w http.ResponseWriter, r *http.Request) {
	fs.Lock()
	defer fs.Unlock()
	inst, ok := fs.Instances[keyParam(r)]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

func (fs *FakeServer) getGlobal(w http.ResponseWriter, r *http.Request) {
	fs.Lock()
	defer fs.Unlock()
	v, ok := fs.Globals[keyParam(r)]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (fs *FakeServer) putWorkflow(w http.ResponseWriter, r *http.Request) {
	var wf domain.Workflow
	if err := json.NewDecoder(r.Body).Decode(&wf); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	fs.Lock()
	fs.Workflows[keyParam(r)] = wf
	fs.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (fs *FakeServer) putInstance(w http.ResponseWriter, r *http.Request) {
	key := keyParam(r)
	var inst domain.Instance
	if err := json.NewDecoder(r.Body).Decode(&inst); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	fs.Lock()
	defer fs.Unlock()
	if _, ok := fs.Instances[key]; !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	fs.Instances[key] = inst
	w.WriteHeader(http.StatusNoContent)
}

func (fs *FakeServer) putGlobal(w http.ResponseWriter, r *http.Request) {
	key := keyParam(r)
	var v domain.GlobalVariable
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	fs.Lock()
	_, existed := fs.Globals[key]
	fs.Globals[key] = v
	fs.Unlock()
	if existed {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func deleteFrom[T any](fs *FakeServer, m map[string]T, w http.ResponseWriter, r *http.Request) {
	key := keyParam(r)
	fs.Lock()
	defer fs.Unlock()
	if _, ok := m[key]; !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	delete(m, key)
	w.WriteHeader(http.StatusNoContent)
}

func (fs *FakeServer) deleteWorkflow(w http.ResponseWriter, r *http.Request) {
	deleteFrom(fs, fs.Workflows, w, r)
}

func (fs *FakeServer) deleteInstance(w http.ResponseWriter, r *http.Request) {
	deleteFrom(fs, fs.Instances, w, r)
}

func (fs *FakeServer) deleteGlobal(w http.ResponseWriter, r *http.Request) {
	deleteFrom(fs, fs.Globals, w, r)
}

func (fs *FakeServer) toggleWorkflow(w http.ResponseWriter, r *http.Request) {
	key := keyParam(r)
	fs.Lock()
	defer fs.Unlock()
	wf, ok := fs.Workflows[key]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	wf.State = wf.State.Toggled()
	fs.Workflows[key] = wf
	w.WriteHeader(http.StatusNoContent)
}

func (fs *FakeServer) toggleInstance(w http.ResponseWriter, r *http.Request) {
	key := keyParam(r)
	fs.Lock()
	defer fs.Unlock()
	inst, ok := fs.Instances[key]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	inst.State = inst.State.Toggled()
	fs.Instances[key] = inst
	w.WriteHeader(http.StatusNoContent)
}

func (fs *FakeServer) spawnInstance(w http.ResponseWriter, r *http.Request) {
	key := keyParam(r)
	var vars domain.Variables
	if err := json.NewDecoder(r.Body).Decode(&vars); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	fs.Lock()
	defer fs.Unlock()
	if _, ok := fs.Workflows[key]; !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	inst := domain.Instance{
		UUID:           uuid.New().String(),
		WorkflowUUID:   key,
		State:          domain.StateRunning,
		ProcessingStep: domain.ProcessingStep{Procedure: domain.DefaultProcedure},
		Variables:      vars,
	}
	fs.Instances[inst.UUID] = inst
	fs.spawned = append(fs.spawned, Spawn{WorkflowUUID: key, Variables: vars, InstanceUUID: inst.UUID})
	writeJSON(w, http.StatusCreated, inst)
}
