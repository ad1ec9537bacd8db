package push

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/aretw0/pipemirror/internal/logging"
	"github.com/aretw0/pipemirror/pkg/domain"
	"github.com/aretw0/pipemirror/pkg/observability"
)

const (
	DefaultMinBackoff = 500 * time.Millisecond
	DefaultMaxBackoff = 30 * time.Second
	eventBufferSize   = 64
)

// Stream is an auto-reconnecting event stream client.
type Stream struct {
	url        string
	http       *http.Client
	minBackoff time.Duration
	maxBackoff time.Duration
	logger     *slog.Logger
	metrics    *observability.Metrics

	mu        sync.Mutex
	status    Status
	observers map[int]func(Status)
	nextID    int
	cancel    context.CancelFunc
	done      chan struct{}
}

// Option configures the Stream.
type Option func(*Stream)

// WithHTTPClient sets the client used for the stream. It must not carry a
// total request timeout, or the stream is cut after that long.
func WithHTTPClient(hc *http.Client) Option {
	return func(s *Stream) {
		s.http = hc
	}
}

// WithBackoff sets the reconnection delay bounds.
func WithBackoff(lo, hi time.Duration) Option {
	return func(s *Stream) {
		if lo > 0 {
			s.minBackoff = lo
		}
		if hi >= s.minBackoff {
			s.maxBackoff = hi
		}
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Stream) {
		s.logger = logger
	}
}

// WithMetrics records connection state and received events.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Stream) {
		s.metrics = m
	}
}

// New creates a Stream for url. Nothing is opened until Start.
func New(url string, opts ...Option) *Stream {
	s := &Stream{
		url:        url,
		http:       &http.Client{},
		minBackoff: DefaultMinBackoff,
		maxBackoff: DefaultMaxBackoff,
		logger:     logging.NewNop(),
		observers:  make(map[int]func(Status)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens the stream and returns the channel events are delivered on.
// The channel closes once the stream is closed for good. Start may only be
// called once.
func (s *Stream) Start(ctx context.Context) (<-chan domain.Event, error) {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return nil, errors.New("push stream already started")
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	events := make(chan domain.Event, eventBufferSize)
	go s.run(ctx, events)
	return events, nil
}

// Close stops the stream and waits for the reader to exit.
func (s *Stream) Close() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Done is closed when the stream has stopped. It is nil before Start.
func (s *Stream) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Status returns the current connection state.
func (s *Stream) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// SubscribeStatus registers fn for status transitions. The returned func unsubscribes.
func (s *Stream) SubscribeStatus(fn func(Status)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.observers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

func (s *Stream) setStatus(st Status) {
	s.mu.Lock()
	if s.status == st {
		s.mu.Unlock()
		return
	}
	s.status = st
	fns := make([]func(Status), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	s.metrics.SetConnected(st == StatusConnected)
	for _, fn := range fns {
		fn(st)
	}
}

func (s *Stream) run(ctx context.Context, events chan<- domain.Event) {
	defer close(s.done)
	defer close(events)
	defer s.setStatus(StatusClosed)

	backoff := s.minBackoff
	for {
		connected, terminal, retry, err := s.connect(ctx, events)
		if terminal || ctx.Err() != nil {
			return
		}

		s.setStatus(StatusDisconnected)
		if connected {
			backoff = s.minBackoff
		}
		if retry > 0 {
			backoff = retry
		}
		s.logger.Warn("event stream lost, reconnecting", "url", s.url, "error", err, "backoff", backoff)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		s.metrics.ObserveReconnect()

		backoff *= 2
		if backoff > s.maxBackoff {
			backoff = s.maxBackoff
		}
	}
}

// connect holds one connection until it fails, the context ends or
// ClosingDown arrives.
func (s *Stream) connect(ctx context.Context, events chan<- domain.Event) (connected, terminal bool, retry time.Duration, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return false, false, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := s.http.Do(req)
	if err != nil {
		return false, false, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, false, 0, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	s.setStatus(StatusConnected)
	s.logger.Info("event stream connected", "url", s.url)

	p := newParser(resp.Body)
	for {
		f, err := p.next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return true, false, retry, err
		}
		if f.retry > 0 {
			retry = f.retry
		}

		switch f.event {
		case "ping", "message":
			continue
		}

		ev := domain.Event{Type: domain.EventType(f.event), Key: f.data}
		s.metrics.ObservePushEvent(f.event)
		s.logger.Debug("event received", "event", ev.String())

		select {
		case events <- ev:
		case <-ctx.Done():
			return true, false, retry, ctx.Err()
		}

		if ev.Type == domain.EventClosingDown {
			s.logger.Info("server closing down, event stream stopped", "url", s.url)
			return true, true, retry, nil
		}
	}
}
