package push_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/pipemirror/internal/testutils"
	"github.com/aretw0/pipemirror/pkg/domain"
	"github.com/aretw0/pipemirror/pkg/push"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, events <-chan domain.Event) domain.Event {
	t.Helper()
	select {
	case ev, ok := <-events:
		require.True(t, ok, "event channel closed unexpectedly")
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return domain.Event{}
}

func TestStream_DeliversNamedEvents(t *testing.T) {
	fs := testutils.NewFakeServer(t)
	s := push.New(fs.URL() + "/events_stream")
	t.Cleanup(s.Close)

	events, err := s.Start(context.Background())
	require.NoError(t, err)
	fs.WaitForStreams(t, 1)
	assert.Equal(t, push.StatusConnected, s.Status())

	fs.Emit(domain.EventRefreshWorkflow, "w1")
	fs.Emit(domain.EventRefreshGlobals, "")

	assert.Equal(t, domain.Event{Type: domain.EventRefreshWorkflow, Key: "w1"}, receive(t, events))
	assert.Equal(t, domain.Event{Type: domain.EventRefreshGlobals}, receive(t, events))
}

func TestStream_ReconnectsAfterTransportFailure(t *testing.T) {
	fs := testutils.NewFakeServer(t)
	s := push.New(fs.URL()+"/events_stream", push.WithBackoff(10*time.Millisecond, 50*time.Millisecond))
	t.Cleanup(s.Close)

	var mu sync.Mutex
	var transitions []push.Status
	s.SubscribeStatus(func(st push.Status) {
		mu.Lock()
		transitions = append(transitions, st)
		mu.Unlock()
	})

	events, err := s.Start(context.Background())
	require.NoError(t, err)
	fs.WaitForStreams(t, 1)

	fs.Streams.Drop()
	fs.WaitForStreams(t, 1)

	fs.Emit(domain.EventDeleteInstance, "i1")
	assert.Equal(t, domain.Event{Type: domain.EventDeleteInstance, Key: "i1"}, receive(t, events))

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, transitions, push.StatusDisconnected)
	assert.Equal(t, push.StatusConnected, transitions[len(transitions)-1])
	assert.GreaterOrEqual(t, fs.CountCalls("GET /events_stream"), 2)
}

func TestStream_ClosingDownIsTerminal(t *testing.T) {
	fs := testutils.NewFakeServer(t)
	s := push.New(fs.URL()+"/events_stream", push.WithBackoff(10*time.Millisecond, 10*time.Millisecond))
	t.Cleanup(s.Close)

	events, err := s.Start(context.Background())
	require.NoError(t, err)
	fs.WaitForStreams(t, 1)

	fs.Emit(domain.EventClosingDown, "")
	assert.Equal(t, domain.EventClosingDown, receive(t, events).Type)

	select {
	case _, ok := <-events:
		assert.False(t, ok, "no events expected after ClosingDown")
	case <-time.After(5 * time.Second):
		t.Fatal("event channel was not closed")
	}

	<-s.Done()
	assert.Equal(t, push.StatusClosed, s.Status())

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, fs.CountCalls("GET /events_stream"), "must not reconnect after ClosingDown")
}

func TestStream_KeepsRetryingWhileServerFails(t *testing.T) {
	fs := testutils.NewFakeServer(t)
	fs.Fail("GET", "/events_stream", 503)

	s := push.New(fs.URL()+"/events_stream", push.WithBackoff(5*time.Millisecond, 10*time.Millisecond))
	t.Cleanup(s.Close)

	_, err := s.Start(context.Background())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return fs.CountCalls("GET /events_stream") >= 3
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, push.StatusDisconnected, s.Status())

	fs.ClearFailures()
	fs.WaitForStreams(t, 1)
	require.Eventually(t, func() bool { return s.Status() == push.StatusConnected }, 5*time.Second, 10*time.Millisecond)
}

func TestStream_CloseStops(t *testing.T) {
	fs := testutils.NewFakeServer(t)
	s := push.New(fs.URL() + "/events_stream")

	events, err := s.Start(context.Background())
	require.NoError(t, err)
	fs.WaitForStreams(t, 1)

	s.Close()
	_, ok := <-events
	assert.False(t, ok)
	assert.Equal(t, push.StatusClosed, s.Status())

	_, err = s.Start(context.Background())
	assert.Error(t, err, "a stream starts once")
}
