package core

import (
	"time"

	"github.com/google/uuid"
)

// EventType classifies engine events.
type EventType string

const (
	// EventRunStart is published once when a run begins streaming.
	EventRunStart EventType = "run_start"
	// EventTextDelta carries one incremental text fragment.
	EventTextDelta EventType = "text_delta"
	// EventRunEnd is published once when a run terminates (Err set on failure or abort).
	EventRunEnd EventType = "run_end"
)

// Event is the unit of the engine's output stream. After emission it should be
// treated as immutable. Events of one run share the RunID and are published in
// the order the provider produced them.
type Event struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	Type      EventType `json:"type"`
	Delta     string    `json:"delta,omitempty"`
	Err       error     `json:"-"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent creates a bare event bound to a run.
func NewEvent(runID string, typ EventType) Event {
	return Event{
		ID:        NewID(),
		RunID:     runID,
		Type:      typ,
		Timestamp: time.Now().UTC(),
	}
}

// NewTextDeltaEvent creates an incremental text event.
func NewTextDeltaEvent(runID, delta string) Event {
	e := NewEvent(runID, EventTextDelta)
	e.Delta = delta
	return e
}

// NewRunEndEvent creates the terminal event of a run. err is nil on success.
func NewRunEndEvent(runID string, err error) Event {
	e := NewEvent(runID, EventRunEnd)
	e.Err = err
	return e
}

// NewID generates a new unique identifier for runs and events.
func NewID() string { return uuid.NewString() }

// IsTextDelta reports whether the event carries incremental text.
func (e Event) IsTextDelta() bool { return e.Type == EventTextDelta }

// IsTerminal reports whether the event ends its run.
func (e Event) IsTerminal() bool { return e.Type == EventRunEnd }

// UnixSeconds returns the timestamp as fractional seconds since Unix epoch.
func (e Event) UnixSeconds() float64 { return float64(e.Timestamp.UnixNano()) / 1e9 }
