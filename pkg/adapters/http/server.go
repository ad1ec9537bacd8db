// Package http serves a read-only JSON view of the mirror, plus a
// Server-Sent Events feed of every change applied to it.
package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/pipemirror"
	"github.com/aretw0/pipemirror/internal/logging"
	"github.com/aretw0/pipemirror/pkg/domain"
	"github.com/aretw0/pipemirror/pkg/push"
	"github.com/aretw0/pipemirror/pkg/store"
	"github.com/aretw0/pipemirror/pkg/views"
	"github.com/go-chi/chi/v5"
)

// Mirror is the part of the client the API reads from.
type Mirror interface {
	BaseURL() string
	Store() *store.Store
	PushStatus() push.Status
}

// ChangeEvent is the payload of each message on /events.
type ChangeEvent struct {
	Kind string          `json:"kind"`
	Op   string          `json:"op"`
	Keys []string        `json:"keys"`
	Diff *domain.KeyDiff `json:"diff,omitempty"`
}

// Server exposes a Mirror over HTTP.
type Server struct {
	mirror      Mirror
	streams     *StreamManager
	logger      *slog.Logger
	unsubscribe func()
	closeOnce   sync.Once
}

// NewServer subscribes to the mirror's store. Close releases the
// subscription and ends every open event stream.
func NewServer(m Mirror, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		mirror:  m,
		streams: NewStreamManager(logger),
		logger:  logger,
	}
	s.unsubscribe = m.Store().Subscribe(s.broadcast)
	return s
}

// Close stops the change feed.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		s.unsubscribe()
		s.streams.CloseAll()
	})
}

// Handler returns the routes. extra, if non-nil, is given the router to
// mount more routes (e.g. /metrics).
func (s *Server) Handler(extra func(chi.Router)) http.Handler {
	r := chi.NewRouter()
	r.Use(enableCORS)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/events", s.SubscribeEvents)
	r.Get("/catalog", s.GetCatalog)
	r.Get("/orphans", s.ListOrphans)

	r.Route("/workflows", func(r chi.Router) {
		r.Get("/", s.ListWorkflows)
		r.Get("/{uuid}", s.GetWorkflow)
		r.Get("/{uuid}/instances", s.ListWorkflowInstances)
	})
	r.Route("/instances", func(r chi.Router) {
		r.Get("/", s.ListInstances)
		r.Get("/{uuid}", s.GetInstance)
	})
	r.Route("/globals", func(r chi.Router) {
		r.Get("/", s.ListGlobals)
		r.Get("/{name}", s.GetGlobal)
	})

	if extra != nil {
		extra(r)
	}
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "error", err)
	}
}

func (s *Server) notFound(w http.ResponseWriter, kind domain.Kind, key string) {
	http.Error(w, fmt.Sprintf("%s %q not found", kind, key), http.StatusNotFound)
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{
		"status": "ok",
		"push":   s.mirror.PushStatus().String(),
	})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	st := s.mirror.Store()
	s.writeJSON(w, map[string]any{
		"app":       "pipemirror",
		"version":   strings.TrimSpace(pipemirror.Version),
		"server":    s.mirror.BaseURL(),
		"workflows": st.Workflows.Len(),
		"instances": st.Instances.Len(),
		"globals":   st.Globals.Len(),
	})
}

// GetCatalog handles GET /catalog.
func (s *Server) GetCatalog(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.mirror.Store().Catalog.Get())
}

// ListWorkflows handles GET /workflows.
func (s *Server) ListWorkflows(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.mirror.Store().Workflows.Snapshot())
}

// GetWorkflow handles GET /workflows/{uuid}.
func (s *Server) GetWorkflow(w http.ResponseWriter, r *http.Request) {
	uuid := chi.URLParam(r, "uuid")
	wf, ok := s.mirror.Store().Workflows.Get(uuid)
	if !ok {
		s.notFound(w, domain.KindWorkflow, uuid)
		return
	}
	s.writeJSON(w, wf)
}

// ListWorkflowInstances handles GET /workflows/{uuid}/instances. The workflow
// itself need not be mirrored.
func (s *Server) ListWorkflowInstances(w http.ResponseWriter, r *http.Request) {
	uuid := chi.URLParam(r, "uuid")
	s.writeJSON(w, views.FilterByWorkflow(s.mirror.Store().Instances.Snapshot(), uuid))
}

// ListInstances handles GET /instances.
func (s *Server) ListInstances(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.mirror.Store().Instances.Snapshot())
}

// GetInstance handles GET /instances/{uuid}.
func (s *Server) GetInstance(w http.ResponseWriter, r *http.Request) {
	uuid := chi.URLParam(r, "uuid")
	inst, ok := s.mirror.Store().Instances.Get(uuid)
	if !ok {
		s.notFound(w, domain.KindInstance, uuid)
		return
	}
	s.writeJSON(w, inst)
}

// ListGlobals handles GET /globals.
func (s *Server) ListGlobals(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.mirror.Store().Globals.Snapshot())
}

// GetGlobal handles GET /globals/{name}.
func (s *Server) GetGlobal(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	v, ok := s.mirror.Store().Globals.Get(name)
	if !ok {
		s.notFound(w, domain.KindGlobal, name)
		return
	}
	s.writeJSON(w, v)
}

// ListOrphans handles GET /orphans.
func (s *Server) ListOrphans(w http.ResponseWriter, r *http.Request) {
	st := s.mirror.Store()
	s.writeJSON(w, views.FindOrphans(st.Instances.Snapshot(), st.Workflows.Snapshot()))
}

func (s *Server) broadcast(c store.Change) {
	ev := ChangeEvent{Kind: c.Kind.String(), Op: c.Op.String(), Keys: c.Keys}
	if c.Op == store.OpReplace {
		diff := c.Diff
		ev.Diff = &diff
	}
	if ev.Keys == nil {
		ev.Keys = []string{}
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error("change encode failed", "error", err)
		return
	}
	s.streams.Broadcast(c.Kind, string(payload))
}

// StreamManager fans change messages out to the connected SSE clients.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[chan string]map[domain.Kind]bool
	logger      *slog.Logger
}

func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StreamManager{
		subscribers: make(map[chan string]map[domain.Kind]bool),
		logger:      logger,
	}
}

// Subscribe registers a client for kinds; an empty filter means every kind.
// The returned channel is closed by cancel or CloseAll.
func (sm *StreamManager) Subscribe(kinds []domain.Kind) (<-chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	filter := make(map[domain.Kind]bool, len(kinds))
	for _, k := range kinds {
		filter[k] = true
	}
	ch := make(chan string, 16)
	sm.subscribers[ch] = filter

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if _, ok := sm.subscribers[ch]; ok {
			delete(sm.subscribers, ch)
			close(ch)
		}
	}
}

// Broadcast never blocks; a full client buffer drops the message.
func (sm *StreamManager) Broadcast(kind domain.Kind, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch, filter := range sm.subscribers {
		if len(filter) > 0 && !filter[kind] {
			continue
		}
		select {
		case ch <- msg:
		default:
			sm.logger.Warn("SSE: client buffer full, dropping message", "kind", kind)
		}
	}
}

// Len returns the number of connected clients.
func (sm *StreamManager) Len() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers)
}

// CloseAll disconnects every client.
func (sm *StreamManager) CloseAll() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	for ch := range sm.subscribers {
		delete(sm.subscribers, ch)
		close(ch)
	}
}

// SubscribeEvents handles GET /events (SSE). The optional kinds query
// parameter is a comma separated filter, e.g. ?kinds=instance,global.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	kinds, err := parseKinds(r.URL.Query().Get("kinds"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.streams.Subscribe(kinds)
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE client disconnected")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: change\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func parseKinds(raw string) ([]domain.Kind, error) {
	if raw == "" {
		return nil, nil
	}
	var kinds []domain.Kind
	for _, part := range strings.Split(raw, ",") {
		k, err := domain.ParseKind(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds, nil
}
