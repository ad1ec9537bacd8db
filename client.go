package pipemirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/pipemirror/internal/logging"
	"github.com/aretw0/pipemirror/pkg/domain"
	"github.com/aretw0/pipemirror/pkg/editor"
	"github.com/aretw0/pipemirror/pkg/gateway"
	"github.com/aretw0/pipemirror/pkg/observability"
	"github.com/aretw0/pipemirror/pkg/ports"
	"github.com/aretw0/pipemirror/pkg/push"
	"github.com/aretw0/pipemirror/pkg/store"
	"github.com/aretw0/pipemirror/pkg/syncer"
	"github.com/aretw0/pipemirror/pkg/views"
)

// ErrAlreadyStarted is returned when Start is called twice.
var ErrAlreadyStarted = errors.New("client already started")

// DefaultEventsPath is the push stream endpoint relative to the API root.
const DefaultEventsPath = "/events_stream"

// snapshotTimeout bounds the snapshot write done by Close.
const snapshotTimeout = 5 * time.Second

// Client owns one mirrored session against a pipeline server: the store, the
// sync engine, the push stream and the editors. Every component is reached
// through it instead of through package-level state.
type Client struct {
	baseURL    string
	eventsPath string

	gw      *gateway.Client
	store   *store.Store
	sync    *syncer.Engine
	stream  *push.Stream
	editors *editor.Manager

	logger     *slog.Logger
	metrics    *observability.Metrics
	snapshots  ports.SnapshotStore
	httpClient *http.Client
	timeout    time.Duration
	confirmer  gateway.Confirmer
	minBackoff time.Duration
	maxBackoff time.Duration
	optimistic bool

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// Option defines a functional option for configuring the Client.
type Option func(*Client)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetrics records refreshes, push traffic and commits.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithSnapshotStore restores the mirror on Start and saves it on Close.
func WithSnapshotStore(s ports.SnapshotStore) Option {
	return func(c *Client) {
		c.snapshots = s
	}
}

// WithConfirmer sets who approves delete requests. Without one every delete
// is declined.
func WithConfirmer(confirmer gateway.Confirmer) Option {
	return func(c *Client) {
		c.confirmer = confirmer
	}
}

// WithHTTPClient sets the client for request/response calls. The push
// stream reuses its transport but never its timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout bounds each request/response call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithBackoff sets the push stream reconnection delay bounds.
func WithBackoff(lo, hi time.Duration) Option {
	return func(c *Client) {
		c.minBackoff = lo
		c.maxBackoff = hi
	}
}

// WithEventsPath overrides DefaultEventsPath. An empty path keeps the default.
func WithEventsPath(path string) Option {
	return func(c *Client) {
		if path != "" {
			c.eventsPath = path
		}
	}
}

// WithOptimisticCommit applies edits to the mirror before the server accepts
// them. See editor.WithOptimisticApply.
func WithOptimisticCommit() Option {
	return func(c *Client) {
		c.optimistic = true
	}
}

// New builds a Client for the API rooted at baseURL (e.g.
// "http://localhost:8000/api"). Nothing touches the network until Start.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		eventsPath: DefaultEventsPath,
		store:      store.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logging.NewNop()
	}
	c.logger = c.logger.With("server", u.Host)

	gwOpts := []gateway.Option{gateway.WithLogger(c.logger)}
	streamHTTP := &http.Client{}
	if c.httpClient != nil {
		gwOpts = append(gwOpts, gateway.WithHTTPClient(c.httpClient))
		streamHTTP.Transport = c.httpClient.Transport
	}
	if c.timeout > 0 {
		gwOpts = append(gwOpts, gateway.WithTimeout(c.timeout))
	}
	if c.confirmer != nil {
		gwOpts = append(gwOpts, gateway.WithConfirmer(c.confirmer))
	}
	c.gw = gateway.New(c.baseURL, gwOpts...)

	c.sync = syncer.New(c.gw, c.store,
		syncer.WithLogger(c.logger),
		syncer.WithMetrics(c.metrics),
	)

	c.stream = push.New(c.baseURL+"/"+strings.TrimLeft(c.eventsPath, "/"),
		push.WithHTTPClient(streamHTTP),
		push.WithBackoff(c.minBackoff, c.maxBackoff),
		push.WithLogger(c.logger),
		push.WithMetrics(c.metrics),
	)

	edOpts := []editor.Option{editor.WithLogger(c.logger), editor.WithMetrics(c.metrics)}
	if c.optimistic {
		edOpts = append(edOpts, editor.WithOptimisticApply())
	}
	c.editors = editor.NewManager(c.gw, c.store, edOpts...)

	return c, nil
}

// Start restores the last snapshot if one is configured, issues the initial
// bulk refreshes and opens the push stream. Refresh failures are logged and
// leave the restored state in place; they do not stop the client.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	c.mu.Unlock()

	c.restore(ctx)

	if err := c.sync.RefreshAll(ctx); err != nil {
		c.logger.Warn("initial refresh incomplete", "error", err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	events, err := c.stream.Start(runCtx)
	if err != nil {
		cancel()
		return fmt.Errorf("open push stream: %w", err)
	}

	done := make(chan struct{})
	c.mu.Lock()
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()

	go func() {
		defer close(done)
		c.sync.Run(runCtx, events)
		c.logger.Info("push processing stopped")
	}()
	return nil
}

func (c *Client) restore(ctx context.Context) {
	if c.snapshots == nil {
		return
	}
	snap, err := c.snapshots.Load(ctx)
	switch {
	case errors.Is(err, ports.ErrSnapshotNotFound):
		return
	case err != nil:
		c.logger.Warn("Unable to load snapshot", "error", err)
		return
	}
	c.store.Restore(*snap)
	c.logger.Info("snapshot restored", "saved_at", snap.SavedAt,
		"workflows", len(snap.Workflows), "instances", len(snap.Instances))
}

// Done is closed when push processing stops, either through Close or
// because the server announced it is shutting down. It is nil before Start.
func (c *Client) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Close stops the push stream, discards open edit buffers and saves a
// snapshot if a snapshot store is configured.
func (c *Client) Close() error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		c.stream.Close()
		<-done
	}
	c.editors.CloseAll()

	if c.snapshots == nil {
		return nil
	}
	ctx, cancelSave := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancelSave()
	if err := c.snapshots.Save(ctx, c.store.Snapshot()); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string { return c.baseURL }

// Store returns the mirrored entities.
func (c *Client) Store() *store.Store { return c.store }

// Sync returns the engine used for refreshes and server-side actions.
func (c *Client) Sync() *syncer.Engine { return c.sync }

// Gateway returns the request/response client.
func (c *Client) Gateway() *gateway.Client { return c.gw }

// Editors returns the edit buffers.
func (c *Client) Editors() *editor.Manager { return c.editors }

// PushStatus reports the push connection state.
func (c *Client) PushStatus() push.Status { return c.stream.Status() }

// SubscribePushStatus registers fn for push connection changes.
func (c *Client) SubscribePushStatus(fn func(push.Status)) func() {
	return c.stream.SubscribeStatus(fn)
}

// Orphans returns a live view of instances whose workflow is not mirrored.
// The caller must Close it.
func (c *Client) Orphans() *views.View { return views.Orphans(c.store) }

// InstancesForWorkflow returns a live view of the instances of one workflow.
// The caller must Close it.
func (c *Client) InstancesForWorkflow(uuid string) *views.View {
	return views.InstancesForWorkflow(c.store, uuid)
}

// Workflow returns the mirrored workflow with the given UUID.
func (c *Client) Workflow(uuid string) (domain.Workflow, bool) {
	return c.store.Workflows.Get(uuid)
}

// Instance returns the mirrored instance with the given UUID.
func (c *Client) Instance(uuid string) (domain.Instance, bool) {
	return c.store.Instances.Get(uuid)
}
