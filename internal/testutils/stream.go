package testutils

import (
	"fmt"
	"sync"
)

// StreamManager fans server events out to every connected event stream.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[chan string]chan struct{} // frame channel -> drop signal
}

// NewStreamManager creates an empty manager.
func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[chan string]chan struct{}),
	}
}

// Subscribe registers a connection. The drop channel closes when the
// connection is forcibly cut by Drop.
func (sm *StreamManager) Subscribe() (ch chan string, drop <-chan struct{}, cancel func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	frames := make(chan string, 16)
	dropped := make(chan struct{})
	sm.subscribers[frames] = dropped

	return frames, dropped, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if d, ok := sm.subscribers[frames]; ok {
			delete(sm.subscribers, frames)
			select {
			case <-d:
			default:
				close(d)
			}
		}
	}
}

// Broadcast sends a named event to every subscriber.
func (sm *StreamManager) Broadcast(event, data string) {
	frame := fmt.Sprintf("event: %s\ndata: %s\n\n", event, data)

	sm.mu.RLock()
	defer sm.mu.RUnlock()
	for ch := range sm.subscribers {
		select {
		case ch <- frame:
		default:
			// Drop message if channel is full (slow client)
		}
	}
}

// Drop cuts every open connection, simulating a transport failure.
func (sm *StreamManager) Drop() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	for ch, d := range sm.subscribers {
		close(d)
		delete(sm.subscribers, ch)
	}
}

// Count returns the number of connected streams.
func (sm *StreamManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers)
}
