// Package comms provides the in-process notification bus that carries
// session and task events between the auth provider, the planner controller
// and the HTTP event stream.
package comms

import (
	"context"
	"time"
)

// Topics group related event types.
const (
	TopicSession = "session"
	TopicTasks   = "tasks"
)

// EventType identifies the kind of notification.
type EventType string

const (
	TypeSessionChanged EventType = "session.changed"   // auth state transition
	TypeTasksLoaded    EventType = "tasks.loaded"      // initial load for an identity finished
	TypeTasksChanged   EventType = "tasks.changed"     // local in-memory mutation
	TypeTasksSaved     EventType = "tasks.saved"       // replace-all save succeeded
	TypeTasksSaveFail  EventType = "tasks.save_failed" // replace-all save failed
)

// Event is one notification on the bus.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Topic     string    `json:"topic"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Handler processes an event delivered to a subscriber.
type Handler func(ctx context.Context, ev *Event) error

// Bus fans events out to subscribers of a topic.
type Bus interface {
	// Publish delivers ev synchronously to every subscriber of ev.Topic and
	// to every subscriber of all topics.
	Publish(ctx context.Context, ev *Event) error

	// Subscribe registers handler for topic; an empty topic receives every
	// event. The returned function removes the subscription.
	Subscribe(topic string, handler Handler) (unsubscribe func())

	// History returns the most recent events for topic (all topics when
	// empty), oldest first.
	History(topic string, limit int) ([]*Event, error)
}
