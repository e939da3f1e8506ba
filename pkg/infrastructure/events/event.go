package events

import (
	"errors"
	"time"
)

// ErrEmptyStream is returned when an event is appended without a stream id
var ErrEmptyStream = errors.New("events: stream id is required")

// Event is one entry in a customer's reconciliation audit trail
type Event struct {
	Type    string    `json:"type"`
	Stream  string    `json:"stream"`
	Version int       `json:"version"`
	At      time.Time `json:"at"`
	Data    any       `json:"data"`
}

// Handler is called with every stored event of a subscribed type
type Handler func(Event)

// Store is an append-only audit log split into per-customer streams.
// Versions start at 1 and increase by one per append within a stream.
type Store interface {
	Append(stream, eventType string, data any, at time.Time) (Event, error)
	Read(stream string, fromVersion int) []Event
}

// CountByType tallies events per type
func CountByType(events []Event) map[string]int {
	counts := make(map[string]int)
	for _, e := range events {
		counts[e.Type]++
	}
	return counts
}

// LastRun returns the events of the most recent run in a stream, from its
// ReconciliationStartedEvent onward
func LastRun(events []Event) []Event {
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Type == ReconciliationStartedEvent {
			return events[i:]
		}
	}
	return events
}
