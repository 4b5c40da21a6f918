package playback

import (
	"encoding/json"
	"time"

	"github.com/nerrad567/gray-logic-sequencer/internal/infrastructure/mqtt"
)

// eventQoS is used for lifecycle events published on MQTT.
const eventQoS byte = 1

// Broadcaster is the interface for broadcasting WebSocket events.
type Broadcaster interface {
	// Broadcast sends an event to all clients subscribed to the channel.
	Broadcast(channel string, payload any)
}

// HubSink broadcasts every event on a channel named after its type.
type HubSink struct {
	Hub Broadcaster
}

// Handle broadcasts e.
func (s HubSink) Handle(e Event) {
	s.Hub.Broadcast(string(e.Type), e)
}

// Publisher is the interface for publishing MQTT messages.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// MQTTSink publishes events to graylogic/core/sequence/{id}/event.
type MQTTSink struct {
	Client Publisher
	Logger Logger
}

// Handle publishes e. Load and unload events are not published.
func (s MQTTSink) Handle(e Event) {
	if e.Type == EventLoaded || e.Type == EventUnloaded {
		return
	}
	payload, err := json.Marshal(e)
	if err != nil {
		s.logger().Error("marshalling sequence event", "type", e.Type, "error", err)
		return
	}
	topic := mqtt.Topics{}.SequenceEvent(e.SequenceID)
	if err := s.Client.Publish(topic, payload, eventQoS, false); err != nil {
		s.logger().Warn("failed to publish sequence event", "topic", topic, "error", err)
	}
}

func (s MQTTSink) logger() Logger {
	if s.Logger == nil {
		return noopLogger{}
	}
	return s.Logger
}

// TimeSeriesWriter is the subset of the InfluxDB client used for events.
type TimeSeriesWriter interface {
	WriteSequenceEvent(sequenceID, event string, group int)
	WriteCycleDuration(sequenceID string, duration time.Duration, skippedGroups int, skipAll bool)
}

// InfluxSink records cycle events and durations.
type InfluxSink struct {
	Writer TimeSeriesWriter
}

// Handle writes an event point for cycle events and a duration point for
// every completed or cancelled cycle.
func (s InfluxSink) Handle(e Event) {
	switch e.Type {
	case EventStarted, EventSkipped:
		s.Writer.WriteSequenceEvent(e.SequenceID, e.Type.Short(), e.GroupIndex)
	case EventFinished, EventCancelled:
		s.Writer.WriteSequenceEvent(e.SequenceID, e.Type.Short(), e.GroupIndex)
		s.Writer.WriteCycleDuration(e.SequenceID,
			time.Duration(e.DurationMS)*time.Millisecond,
			len(e.SkippedGroups), e.SkipAll)
	}
}
