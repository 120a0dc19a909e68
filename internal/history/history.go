// Package history exports launch events to external analytics stores.
package history

import (
	"context"
	"sync"
	"time"
)

// EventType defines the kind of launch event.
type EventType string

const (
	EventLaunch         EventType = "launch"
	EventInjectFailed   EventType = "inject_failed"
	EventRegistryFailed EventType = "registry_failed"
	EventPruned         EventType = "pruned"
)

// Record is the launch a history event refers to.
type Record struct {
	Key         string `json:"key"`
	PID         int    `json:"pid"`
	Name        string `json:"name"`
	Source      string `json:"source"`
	Destination string `json:"destination"`
	FinalNum    int    `json:"final_num"`
	Error       string `json:"error,omitempty"`
}

// Event represents a launch event to be exported to external systems.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Record     Record    `json:"record"`
}

// Sink is a destination for history events (analytics/statistics systems).
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
}

// Memory keeps events in a slice.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

func (m *Memory) Send(_ context.Context, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

// Events returns a copy of everything received so far.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}
