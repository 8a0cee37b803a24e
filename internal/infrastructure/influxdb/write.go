package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the bridge.
const (
	MeasurementAmpState = "amp_state"
	MeasurementAmpError = "amp_error"
)

// WriteAmpState records an amplifier state snapshot.
//
// The write is non-blocking; points are batched and sent asynchronously.
//
// Parameters:
//   - deviceID: Gray Logic device identifier (tag)
//   - fields: volume, volume_db, volume_raw, gain, muted, deep_sleep
//
// Example:
//
//	client.WriteAmpState("amp-1", map[string]any{"volume": 0.5, "muted": false})
func (c *Client) WriteAmpState(deviceID string, fields map[string]any) {
	if !c.IsConnected() || len(fields) == 0 {
		return
	}
	c.writeAPI.WritePoint(ampStatePoint(deviceID, fields, time.Now()))
}

// WriteAmpError records a failed driver operation.
//
// Parameters:
//   - deviceID: Gray Logic device identifier (tag)
//   - kind: driver error kind, e.g. "write_register_failed" (tag)
//   - busCode: raw transport code, e.g. "nack" (tag)
func (c *Client) WriteAmpError(deviceID, kind, busCode string) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(ampErrorPoint(deviceID, kind, busCode, time.Now()))
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Example:
//
//	client.WritePoint("bridge_stats",
//	    map[string]string{"bridge_id": "amp"},
//	    map[string]any{"commands": 42})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}

func ampStatePoint(deviceID string, fields map[string]any, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementAmpState,
		map[string]string{"device_id": deviceID},
		fields,
		ts,
	)
}

func ampErrorPoint(deviceID, kind, busCode string, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementAmpError,
		map[string]string{
			"device_id": deviceID,
			"kind":      kind,
			"bus_code":  busCode,
		},
		map[string]any{"count": 1},
		ts,
	)
}
