package domain

import "fmt"

// EventType is the name of a push notification sent on the event stream.
type EventType string

const (
	EventRefreshWorkflows EventType = "RefreshWorkflows"
	EventRefreshInstances EventType = "RefreshInstances"
	EventRefreshGlobals   EventType = "RefreshGlobals"
	EventRefreshWorkflow  EventType = "RefreshWorkflow"
	EventRefreshInstance  EventType = "RefreshInstance"
	EventRefreshGlobal    EventType = "RefreshGlobal"
	EventDeleteWorkflow   EventType = "DeleteWorkflow"
	EventDeleteInstance   EventType = "DeleteInstance"
	EventDeleteGlobal     EventType = "DeleteGlobal"
	EventClosingDown      EventType = "ClosingDown"
)

// Action is what a push event asks the client to do.
type Action int

const (
	ActionNone Action = iota
	ActionRefreshCollection
	ActionRefreshEntity
	ActionRemove
	ActionShutdown
)

// Event is a decoded push notification. Key is empty for collection-wide events.
type Event struct {
	Type EventType
	Key  string
}

func (e Event) String() string {
	if e.Key == "" {
		return string(e.Type)
	}
	return fmt.Sprintf("%s(%s)", e.Type, e.Key)
}

// Route reports which action the event requests and on which collection.
// ok is false for event types the client does not know.
func (e Event) Route() (action Action, kind Kind, ok bool) {
	switch e.Type {
	case EventRefreshWorkflows:
		return ActionRefreshCollection, KindWorkflow, true
	case EventRefreshInstances:
		return ActionRefreshCollection, KindInstance, true
	case EventRefreshGlobals:
		return ActionRefreshCollection, KindGlobal, true
	case EventRefreshWorkflow:
		return ActionRefreshEntity, KindWorkflow, true
	case EventRefreshInstance:
		return ActionRefreshEntity, KindInstance, true
	case EventRefreshGlobal:
		return ActionRefreshEntity, KindGlobal, true
	case EventDeleteWorkflow:
		return ActionRemove, KindWorkflow, true
	case EventDeleteInstance:
		return ActionRemove, KindInstance, true
	case EventDeleteGlobal:
		return ActionRemove, KindGlobal, true
	case EventClosingDown:
		return ActionShutdown, 0, true
	}
	return ActionNone, 0, false
}
