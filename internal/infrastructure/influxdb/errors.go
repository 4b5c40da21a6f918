package influxdb

import "errors"

// Telemetry errors. Connect returns ErrTelemetryDisabled when the
// integration is off, which callers treat as "run without telemetry"
// rather than a failure.
var (
	ErrTelemetryDisabled = errors.New("sequence telemetry: disabled")

	// ErrTelemetryUnreachable wraps ping failures during Connect.
	ErrTelemetryUnreachable = errors.New("sequence telemetry: server unreachable")

	// ErrTelemetryClosed is returned by HealthCheck once Close has run.
	ErrTelemetryClosed = errors.New("sequence telemetry: client closed")

	// ErrPointRejected wraps batch write errors handed to the SetOnError
	// callback.
	ErrPointRejected = errors.New("sequence telemetry: point rejected")
)
