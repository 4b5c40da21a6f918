package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the sequencer.
const (
	measurementSequenceEvents = "sequence_events"
	measurementSequenceCycles = "sequence_cycles"
)

// WriteSequenceEvent records a lifecycle event of a sequence.
//
// event is one of "started", "skipped", "finished"; group is the index
// of the group that was current when the event fired.
//
// Example:
//
//	client.WriteSequenceEvent("lobby-intro", "skipped", 2)
func (c *Client) WriteSequenceEvent(sequenceID, event string, group int) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(sequenceEventPoint(sequenceID, event, group, time.Now()))
}

// WriteCycleDuration records a completed play-through: how long it ran,
// how many groups were skipped, and whether SkipAll ended it.
func (c *Client) WriteCycleDuration(sequenceID string, duration time.Duration, skippedGroups int, skipAll bool) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(cycleDurationPoint(sequenceID, duration, skippedGroups, skipAll, time.Now()))
}

// WritePoint writes a custom point with full control over tags and fields.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a custom point with a specific timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
}

func sequenceEventPoint(sequenceID, event string, group int, ts time.Time) *write.Point {
	return write.NewPoint(
		measurementSequenceEvents,
		map[string]string{
			"sequence_id": sequenceID,
			"event":       event,
		},
		map[string]interface{}{
			"group": group,
		},
		ts,
	)
}

func cycleDurationPoint(sequenceID string, duration time.Duration, skippedGroups int, skipAll bool, ts time.Time) *write.Point {
	return write.NewPoint(
		measurementSequenceCycles,
		map[string]string{
			"sequence_id": sequenceID,
		},
		map[string]interface{}{
			"duration_ms":    duration.Milliseconds(),
			"skipped_groups": skippedGroups,
			"skip_all":       skipAll,
		},
		ts,
	)
}
