// Package influxdb provides InfluxDB connectivity for the sequencer.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, batched point writing and health monitoring.
//
// # Purpose
//
// Sequence telemetry is stored as time series:
//   - sequence_events: one point per started, skipped or finished event
//   - sequence_cycles: one point per completed play-through with its
//     duration and skip counts
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrTelemetryDisabled) {
//	    // run without telemetry
//	}
//	defer client.Close()
//
//	client.WriteSequenceEvent("lobby-intro", "started", 0)
//
// # Error Handling
//
// Writes are non-blocking; batch errors arrive through SetOnError.
// Connection and health check errors are returned directly. Writes on a
// nil or disconnected client are dropped silently.
package influxdb
