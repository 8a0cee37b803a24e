package amp

import (
	"errors"

	"github.com/nerrad567/gray-logic-amp/internal/tas5805m"
)

// Error codes carried in failed acks and responses.
const (
	ErrCodeDeviceUnreachable = "DEVICE_UNREACHABLE"
	ErrCodeDeviceFailed      = "DEVICE_FAILED"
	ErrCodeInvalidCommand    = "INVALID_COMMAND"
	ErrCodeInvalidParameters = "INVALID_PARAMETERS"
	ErrCodeNotConfigured     = "NOT_CONFIGURED"
	ErrCodeBridgeError       = "BRIDGE_ERROR"
)

// Bridge errors.
var (
	// ErrDeviceFailed is returned for commands after initialisation failed.
	ErrDeviceFailed = errors.New("amp: device failed to initialise")

	// ErrUnknownCommand is returned for a command name the bridge does not handle.
	ErrUnknownCommand = errors.New("amp: unknown command")

	// ErrInvalidParameter is returned when a command parameter is missing or out of range.
	ErrInvalidParameter = errors.New("amp: invalid parameter")

	// ErrUnknownDevice is returned when a message names another device.
	ErrUnknownDevice = errors.New("amp: unknown device")

	// ErrBridgeStopping is returned when the bridge stops before
	// initialisation has finished.
	ErrBridgeStopping = errors.New("amp: bridge stopping")
)

// ErrorCode maps an operation error to the code published on MQTT and
// returned by the HTTP API.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrDeviceFailed), errors.Is(err, tas5805m.ErrConfigurationFailed):
		return ErrCodeDeviceFailed
	case errors.Is(err, ErrUnknownCommand):
		return ErrCodeInvalidCommand
	case errors.Is(err, ErrInvalidParameter), errors.Is(err, tas5805m.ErrInvalidArgument):
		return ErrCodeInvalidParameters
	case errors.Is(err, ErrUnknownDevice):
		return ErrCodeNotConfigured
	case errors.Is(err, tas5805m.ErrWriteRegisterFailed):
		return ErrCodeDeviceUnreachable
	default:
		return ErrCodeBridgeError
	}
}

// errorKind returns the driver error kind name recorded in history.
func errorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, tas5805m.ErrConfigurationFailed), errors.Is(err, ErrDeviceFailed):
		return tas5805m.ErrorConfigurationFailed.String()
	case errors.Is(err, tas5805m.ErrWriteRegisterFailed):
		return tas5805m.ErrorWriteRegisterFailed.String()
	default:
		return tas5805m.ErrorInvalidArgument.String()
	}
}
