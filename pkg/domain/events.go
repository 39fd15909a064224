package domain

import "time"

// EventType identifies the kind of mutation an event describes.
type EventType string

// Event types emitted by the store.
const (
	// EventCreated fires after a record is inserted.
	EventCreated EventType = "created"
	// EventUpdated fires after a record is replaced.
	EventUpdated EventType = "updated"
	// EventDeleted fires after a record is removed.
	EventDeleted EventType = "deleted"
	// EventReset fires when the whole store is discarded and reseeded.
	EventReset EventType = "reset"
)

// WildcardCollection subscribes a listener to events from every collection.
const WildcardCollection Collection = "*"

// Event notifies subscribers of a single mutation. Data carries the record
// after the mutation, Previous the snapshot before it; either may be nil
// depending on the event type.
type Event struct {
	Type       EventType  `json:"type"`
	Collection Collection `json:"collection"`
	ID         string     `json:"id"`
	Data       any        `json:"data,omitempty"`
	Previous   any        `json:"previousData,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}
