package amp

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/nerrad567/gray-logic-amp/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-amp/internal/tas5805m"
)

// Protocol is the protocol segment of every amp topic.
const Protocol = "amp"

// Command names accepted on the command topic.
const (
	CommandSetVolume = "set_volume"
	CommandMute      = "mute"
	CommandUnmute    = "unmute"
	CommandSetGain   = "set_gain"
	CommandSleep     = "sleep"
	CommandWake      = "wake"
)

// Request actions accepted on the request topic.
const (
	ActionReadState   = "read_state"
	ActionDiagnostics = "diagnostics"
)

// Topic helpers.

// CommandTopic returns the command topic for deviceID.
func CommandTopic(deviceID string) string { return mqtt.Topics{}.BridgeCommand(Protocol, deviceID) }

// AckTopic returns the ack topic for deviceID.
func AckTopic(deviceID string) string { return mqtt.Topics{}.BridgeAck(Protocol, deviceID) }

// StateTopic returns the retained state topic for deviceID.
func StateTopic(deviceID string) string { return mqtt.Topics{}.BridgeState(Protocol, deviceID) }

// ResponseTopic returns the response topic for requestID.
func ResponseTopic(requestID string) string {
	return mqtt.Topics{}.BridgeResponse(Protocol, requestID)
}

// RequestSubscribeTopic matches every request.
func RequestSubscribeTopic() string { return mqtt.Topics{}.BridgeRequests(Protocol) }

// HealthTopic returns the retained health topic.
func HealthTopic() string { return mqtt.Topics{}.BridgeHealth(Protocol) }

// CommandMessage is sent from Core to the bridge to change the amplifier.
// Topic: graylogic/command/amp/{device}
type CommandMessage struct {
	// ID correlates the command with its ack.
	ID string `json:"id"`

	Timestamp time.Time `json:"timestamp"`

	// DeviceID must match the bridge's device.
	DeviceID string `json:"device_id"`

	// Command is one of set_volume, mute, unmute, set_gain, sleep, wake.
	Command string `json:"command"`

	// Parameters:
	//   {"volume": 0.5} for set_volume
	//   {"level": 12} for set_gain
	Parameters map[string]any `json:"parameters,omitempty"`

	// Source indicates where the command originated ("api", "automation", "scene").
	Source string `json:"source"`

	UserID string `json:"user_id,omitempty"`
}

// AckStatus represents the acknowledgment status of a command.
type AckStatus string

const (
	// AckAccepted indicates the command reached the device.
	AckAccepted AckStatus = "accepted"

	// AckFailed indicates the command could not be executed.
	AckFailed AckStatus = "failed"
)

// AckMessage acknowledges a command.
// Topic: graylogic/ack/amp/{device}
type AckMessage struct {
	CommandID string    `json:"command_id"`
	Timestamp time.Time `json:"timestamp"`
	DeviceID  string    `json:"device_id"`
	Status    AckStatus `json:"status"`
	Protocol  string    `json:"protocol"`
	Error     *AckError `json:"error,omitempty"`
}

// AckError contains error details for failed commands.
type AckError struct {
	Code    string `json:"code"`
	Message string `json:"message"`

	// BusCode is the raw transport code when the bus failed.
	BusCode string `json:"bus_code,omitempty"`
}

// StateMessage carries the amplifier state after every change.
// Topic: graylogic/state/amp/{device}
// QoS: 1, Retained: Yes
type StateMessage struct {
	DeviceID  string         `json:"device_id"`
	Timestamp time.Time      `json:"timestamp"`
	State     map[string]any `json:"state"`
	Protocol  string         `json:"protocol"`
}

// HealthStatus represents the operational status of the bridge.
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
	HealthOffline   HealthStatus = "offline"
	HealthStarting  HealthStatus = "starting"
	HealthStopping  HealthStatus = "stopping"
)

// HealthMessage reports bridge and device status.
// Topic: graylogic/health/amp
// QoS: 1, Retained: Yes
type HealthMessage struct {
	Bridge        string            `json:"bridge"`
	Timestamp     time.Time         `json:"timestamp"`
	Status        HealthStatus      `json:"status"`
	Version       string            `json:"version,omitempty"`
	SessionID     string            `json:"session_id,omitempty"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Device        *DeviceHealth     `json:"device,omitempty"`
	Statistics    *BridgeStatistics `json:"statistics,omitempty"`
	Reason        string            `json:"reason,omitempty"`
}

// DeviceHealth is the device part of a health message.
type DeviceHealth struct {
	DeviceID            string `json:"device_id"`
	Initialised         bool   `json:"initialised"`
	Failed              bool   `json:"failed"`
	RegistersConfigured int    `json:"registers_configured"`
	LastErrorKind       string `json:"last_error_kind,omitempty"`
	LastBusCode         string `json:"last_bus_code,omitempty"`
}

// BridgeStatistics contains operational counters.
type BridgeStatistics struct {
	CommandsReceived uint64 `json:"commands_received"`
	CommandsFailed   uint64 `json:"commands_failed"`
	RequestsServed   uint64 `json:"requests_served"`
	Errors           uint64 `json:"errors"`
}

// RequestMessage is a request/response operation from Core.
// Topic: graylogic/request/amp/{request_id}
type RequestMessage struct {
	RequestID  string         `json:"request_id"`
	Timestamp  time.Time      `json:"timestamp"`
	Action     string         `json:"action"`
	DeviceID   string         `json:"device_id,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// ResponseMessage answers a request.
// Topic: graylogic/response/amp/{request_id}
type ResponseMessage struct {
	RequestID string         `json:"request_id"`
	Timestamp time.Time      `json:"timestamp"`
	Success   bool           `json:"success"`
	Data      map[string]any `json:"data,omitempty"`
	Error     *ResponseError `json:"error,omitempty"`
}

// ResponseError contains error details for failed requests.
type ResponseError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// UnmarshalJSON accepts an RFC 3339 timestamp or none.
func (m *CommandMessage) UnmarshalJSON(data []byte) error {
	type Alias CommandMessage
	aux := &struct {
		*Alias
		Timestamp string `json:"timestamp"`
	}{
		Alias: (*Alias)(m),
	}
	if err := json.Unmarshal(data, aux); err != nil {
		return fmt.Errorf("unmarshal command message: %w", err)
	}
	if aux.Timestamp != "" {
		t, err := time.Parse(time.RFC3339, aux.Timestamp)
		if err != nil {
			return fmt.Errorf("parse timestamp: %w", err)
		}
		m.Timestamp = t
	}
	return nil
}

// NewAckMessage creates an accepted acknowledgment.
func NewAckMessage(cmd CommandMessage) AckMessage {
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		DeviceID:  cmd.DeviceID,
		Status:    AckAccepted,
		Protocol:  Protocol,
	}
}

// NewAckError creates a failed acknowledgment.
func NewAckError(cmd CommandMessage, code, message, busCode string) AckMessage {
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		DeviceID:  cmd.DeviceID,
		Status:    AckFailed,
		Protocol:  Protocol,
		Error: &AckError{
			Code:    code,
			Message: message,
			BusCode: busCode,
		},
	}
}

// NewStateMessage creates a state message from a device snapshot.
func NewStateMessage(deviceID string, s tas5805m.Status) StateMessage {
	return StateMessage{
		DeviceID:  deviceID,
		Timestamp: time.Now().UTC(),
		State:     stateFields(s),
		Protocol:  Protocol,
	}
}

// stateFields flattens a device snapshot for state messages and telemetry.
// volume_db is left out while muted since -Inf has no JSON encoding.
func stateFields(s tas5805m.Status) map[string]any {
	fields := map[string]any{
		"volume":     s.Volume,
		"volume_raw": int(s.DigitalVolumeRaw),
		"muted":      s.Muted,
		"gain":       int(s.AnalogGain),
		"gain_db":    tas5805m.GainToDB(s.AnalogGain),
		"deep_sleep": s.DeepSleep,
	}
	if db := tas5805m.RawVolumeToDB(s.DigitalVolumeRaw); !math.IsInf(db, 0) {
		fields["volume_db"] = db
	}
	return fields
}

// diagnosticsData flattens the full device status for a diagnostics response.
func diagnosticsData(s tas5805m.Status, sessionID string) map[string]any {
	data := stateFields(s)
	data["registers_configured"] = s.RegistersConfigured
	data["initialised"] = s.Initialised
	data["failed"] = s.Failed
	data["analog_gain_raw"] = int(s.AnalogGainRaw)
	data["last_error_kind"] = s.LastErrorKind.String()
	data["last_bus_code"] = s.LastBusCode.String()
	if s.LastError != "" {
		data["last_error"] = s.LastError
	}
	if sessionID != "" {
		data["session_id"] = sessionID
	}
	return data
}

// NewHealthMessage creates a health status message.
func NewHealthMessage(bridgeID, version, sessionID string, status HealthStatus, device *DeviceHealth, stats *BridgeStatistics, startTime time.Time) HealthMessage {
	return HealthMessage{
		Bridge:        bridgeID,
		Timestamp:     time.Now().UTC(),
		Status:        status,
		Version:       version,
		SessionID:     sessionID,
		UptimeSeconds: int64(time.Since(startTime).Seconds()),
		Device:        device,
		Statistics:    stats,
	}
}

// NewLWTMessage creates the Last Will published by the broker if the bridge
// disappears without a clean disconnect.
func NewLWTMessage(bridgeID string) HealthMessage {
	return HealthMessage{
		Bridge:    bridgeID,
		Timestamp: time.Now().UTC(),
		Status:    HealthOffline,
		Reason:    "unexpected_disconnect",
	}
}

// WillPayload returns the encoded Last Will for bridgeID, to be registered
// on the MQTT connection before the bridge is created.
func WillPayload(bridgeID string) ([]byte, error) {
	return json.Marshal(NewLWTMessage(bridgeID))
}
