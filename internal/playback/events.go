package playback

import "time"

// EventType names a lifecycle event. The value doubles as the WebSocket
// channel.
type EventType string

// Lifecycle events.
const (
	EventLoaded    EventType = "sequence.loaded"
	EventUnloaded  EventType = "sequence.unloaded"
	EventStarted   EventType = "sequence.started"
	EventSkipped   EventType = "sequence.skipped"
	EventFinished  EventType = "sequence.finished"
	EventCancelled EventType = "sequence.cancelled"
)

// EventTypes returns every lifecycle event type.
func EventTypes() []EventType {
	return []EventType{EventLoaded, EventUnloaded, EventStarted, EventSkipped, EventFinished, EventCancelled}
}

// Short returns the type without the "sequence." prefix.
func (t EventType) Short() string {
	const prefix = "sequence."
	s := string(t)
	if len(s) > len(prefix) && s[:len(prefix)] == prefix {
		return s[len(prefix):]
	}
	return s
}

// Event is a lifecycle event of one sequence.
type Event struct {
	Type         EventType `json:"type"`
	SequenceID   string    `json:"sequence_id"`
	SequenceName string    `json:"sequence_name"`
	ExecutionID  string    `json:"execution_id,omitempty"`
	TriggeredBy  string    `json:"triggered_by,omitempty"`

	// GroupIndex and Group identify the skipped group on sequence.skipped
	// events and the current group otherwise.
	GroupIndex int    `json:"group_index"`
	Group      string `json:"group,omitempty"`

	// Cycle results, set on sequence.finished and sequence.cancelled.
	Status        string `json:"status,omitempty"`
	DurationMS    int    `json:"duration_ms,omitempty"`
	SkippedGroups []int  `json:"skipped_groups,omitempty"`
	SkipAll       bool   `json:"skip_all,omitempty"`

	// Loaded is the number of loaded sequences after a load or unload.
	Loaded int `json:"loaded,omitempty"`

	// Running is the number of cycles in progress across the runner once
	// the event has been applied. It is set on every event.
	Running int `json:"running"`

	Timestamp time.Time `json:"timestamp"`
}

// Sink consumes lifecycle events. Handle is called from a single
// dispatcher goroutine in event order. It must not call back into the
// Runner: cycle events wait for the dispatcher when the queue is full.
type Sink interface {
	Handle(Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

// Handle calls f(e).
func (f SinkFunc) Handle(e Event) { f(e) }
