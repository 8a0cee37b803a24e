package mqtt

import "fmt"

// TopicPrefix is the root of every Gray Logic topic.
//
// Bridge topics use the flat scheme graylogic/{category}/{protocol}/{id}.
const TopicPrefix = "graylogic"

// Topics builds bridge topic strings.
//
//	topics := mqtt.Topics{}
//	topics.BridgeState("amp", "amp-1") // graylogic/state/amp/amp-1
type Topics struct{}

// BridgeCommand returns the topic commands for a device arrive on.
//
// Example: graylogic/command/amp/amp-1
func (Topics) BridgeCommand(protocol, deviceID string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, protocol, deviceID)
}

// BridgeAck returns the topic command acknowledgements go to.
//
// Example: graylogic/ack/amp/amp-1
func (Topics) BridgeAck(protocol, deviceID string) string {
	return fmt.Sprintf("%s/ack/%s/%s", TopicPrefix, protocol, deviceID)
}

// BridgeState returns the retained device state topic.
//
// Example: graylogic/state/amp/amp-1
func (Topics) BridgeState(protocol, deviceID string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, protocol, deviceID)
}

// BridgeRequest returns the topic a request arrives on.
//
// Example: graylogic/request/amp/req-abc123
func (Topics) BridgeRequest(protocol, requestID string) string {
	return fmt.Sprintf("%s/request/%s/%s", TopicPrefix, protocol, requestID)
}

// BridgeResponse returns the topic a request's response goes to.
//
// Example: graylogic/response/amp/req-abc123
func (Topics) BridgeResponse(protocol, requestID string) string {
	return fmt.Sprintf("%s/response/%s/%s", TopicPrefix, protocol, requestID)
}

// BridgeHealth returns the retained health topic, also used for the will.
//
// Example: graylogic/health/amp
func (Topics) BridgeHealth(protocol string) string {
	return fmt.Sprintf("%s/health/%s", TopicPrefix, protocol)
}

// BridgeCommands returns a pattern matching commands for every device.
//
// Pattern: graylogic/command/amp/+
func (Topics) BridgeCommands(protocol string) string {
	return fmt.Sprintf("%s/command/%s/+", TopicPrefix, protocol)
}

// BridgeRequests returns a pattern matching every request.
//
// Pattern: graylogic/request/amp/+
func (Topics) BridgeRequests(protocol string) string {
	return fmt.Sprintf("%s/request/%s/+", TopicPrefix, protocol)
}

// AllBridgeStates returns a pattern matching every bridge state update.
//
// Pattern: graylogic/state/+/+
func (Topics) AllBridgeStates() string {
	return fmt.Sprintf("%s/state/+/+", TopicPrefix)
}

// AllBridgeHealth returns a pattern matching every bridge health update.
//
// Pattern: graylogic/health/+
func (Topics) AllBridgeHealth() string {
	return fmt.Sprintf("%s/health/+", TopicPrefix)
}
