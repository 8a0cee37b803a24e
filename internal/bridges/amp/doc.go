// Package amp exposes a TAS5805M amplifier on the Gray Logic MQTT bus.
//
// The bridge owns one tas5805m.Device. It runs Init once in the background
// after Start, serialises every driver call behind a single mutex, and
// translates between MQTT messages and driver operations:
//
//	graylogic/command/amp/{device}   → set_volume, mute, unmute, set_gain, sleep, wake
//	graylogic/ack/amp/{device}       ← accepted / failed
//	graylogic/state/amp/{device}     ← retained state after every change
//	graylogic/request/amp/{id}       → read_state, diagnostics
//	graylogic/response/amp/{id}      ← response
//	graylogic/health/amp             ← retained health, also the Last Will
//
// Every init result and command outcome is written to an optional History
// and Telemetry sink.
//
// Hardware wiring (i2c-dev or simulated bus, CBOR bus trace, GPIO enable
// line) is built from config by OpenHardware so ampd and ampctl share it.
package amp
