package mqtt

import "errors"

// Errors returned by the bridge's broker client. The amp bridge logs them;
// a failed ack or state publish is not retried.
var (
	// ErrNotConnected means the broker link is down; publishes are not queued.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrConnectionFailed means ampd could not reach the broker at startup.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrPublishFailed wraps broker publish errors, timeouts and oversized
	// state or ack payloads.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed wraps command and request topic subscription errors.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrUnsubscribeFailed is returned when a topic cannot be released on stop.
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")

	// ErrInvalidQoS rejects a QoS outside 0..2 before anything is sent.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")

	// ErrInvalidTopic rejects an empty topic.
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")
)
