// Package influxdb writes amplifier telemetry to InfluxDB.
//
// It wraps the official influxdb-client-go v2 library. Telemetry is optional:
// the bridge runs without it and Connect returns ErrDisabled when the
// influxdb section is not enabled.
//
// # Measurements
//
//   - amp_state: volume, volume_db, volume_raw, gain, muted, deep_sleep
//     tagged by device_id
//   - amp_error: one point per failed driver operation, tagged by
//     device_id, kind and bus_code
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // run without telemetry
//	}
//	defer client.Close()
//
//	client.WriteAmpState("amp-1", map[string]any{"volume": 0.5})
//
// # Thread Safety
//
// All methods are safe for concurrent use. Writes are non-blocking and
// batched (batch_size, flush_interval); errors arrive through SetOnError.
package influxdb
