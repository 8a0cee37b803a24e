package influxdb

import "errors"

// Telemetry errors. Telemetry is optional, so ampd logs these and carries
// on without amp_state and amp_error points.
var (
	// ErrNotConnected is returned after Close or before Connect succeeded.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrConnectionFailed means the ping or health check at startup failed.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrDisabled is returned by Connect when influxdb.enabled is false.
	ErrDisabled = errors.New("influxdb: disabled in configuration")
)
