// Package playback runs loaded sequences.
//
// A Runner owns one sequence.Sequencer per loaded definition and advances
// all of them from a single goroutine at the configured tick interval.
// Other goroutines (API handlers, the MQTT command ingress, autoload)
// submit work through a command channel and never touch a sequencer
// directly.
//
// Each Play cycle is recorded as a schedule.Execution. Lifecycle events
// are fanned out to Sinks on a separate goroutine so that slow consumers
// cannot stall the tick:
//
//   - HubSink broadcasts sequence.* events to WebSocket clients
//   - MQTTSink publishes to graylogic/core/sequence/{id}/event
//   - InfluxSink writes sequence_events and sequence_cycles points
//   - Metrics maintains Prometheus counters and histograms
//
// Sequences can be addressed by ID or slug everywhere.
package playback
