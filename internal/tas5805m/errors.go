package tas5805m

import (
	"errors"
	"fmt"
)

// Domain errors for the TAS5805M driver.
// Use errors.Is() to check the kind; use errors.As() with *TransportError
// to get the raw bus code.
var (
	// ErrConfigurationFailed is returned when initialisation could not apply
	// the register table or read back the initial state. The device is
	// unusable afterwards.
	ErrConfigurationFailed = errors.New("tas5805m: configuration failed")

	// ErrWriteRegisterFailed is returned when a runtime control operation hits
	// a bus failure. The device stays usable and the call may be retried.
	ErrWriteRegisterFailed = errors.New("tas5805m: write register failed")

	// ErrInvalidArgument is returned when a parameter is rejected before any
	// bus I/O (gain out of range, delay step over the ceiling).
	ErrInvalidArgument = errors.New("tas5805m: invalid argument")
)

// ErrorKind is the coarse classification kept for diagnostics.
type ErrorKind uint8

const (
	ErrorNone ErrorKind = iota
	ErrorConfigurationFailed
	ErrorWriteRegisterFailed
	ErrorInvalidArgument
)

// String returns the error kind name.
func (k ErrorKind) String() string {
	switch k {
	case ErrorNone:
		return "none"
	case ErrorConfigurationFailed:
		return "configuration_failed"
	case ErrorWriteRegisterFailed:
		return "write_register_failed"
	case ErrorInvalidArgument:
		return "invalid_argument"
	default:
		return "unknown"
	}
}

// MarshalText encodes the kind by name.
func (k ErrorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// BusCode is the opaque failure code reported by a transport.
type BusCode uint8

const (
	BusOK BusCode = iota
	BusUnknown
	BusNACK
	BusTimeout
	BusBusy
	BusClosed
)

// String returns the bus code name.
func (c BusCode) String() string {
	switch c {
	case BusOK:
		return "ok"
	case BusNACK:
		return "nack"
	case BusTimeout:
		return "timeout"
	case BusBusy:
		return "bus_busy"
	case BusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the code by name.
func (c BusCode) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// TransportError describes a failed bus transaction.
// Transports should return it so the driver can record the raw code.
type TransportError struct {
	Code     BusCode
	Op       string // "read" or "write"
	Register Register
	Err      error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s register 0x%02X: %s: %v", e.Op, e.Register, e.Code, e.Err)
	}
	return fmt.Sprintf("%s register 0x%02X: %s", e.Op, e.Register, e.Code)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// busCodeOf extracts the bus code from err, BusUnknown if the transport
// returned something else.
func busCodeOf(err error) BusCode {
	if err == nil {
		return BusOK
	}
	var terr *TransportError
	if errors.As(err, &terr) {
		return terr.Code
	}
	return BusUnknown
}
