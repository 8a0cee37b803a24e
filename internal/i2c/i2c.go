package i2c

import (
	"errors"

	"github.com/nerrad567/gray-logic-amp/internal/tas5805m"
)

// Common errors.
var (
	ErrUnsupported = errors.New("i2c: unsupported platform")
	ErrClosed      = errors.New("i2c: bus closed")
	ErrNoDevice    = errors.New("i2c: device path required")
	ErrBadAddress  = errors.New("i2c: address out of 7-bit range")
)

// Config holds bus settings.
type Config struct {
	// Device is the i2c-dev node, e.g. /dev/i2c-1.
	Device string

	// Address is the 7-bit target address (TAS5805M: 0x2C-0x2F).
	Address uint16
}

// Validate checks the configuration before the device is opened.
func (c Config) Validate() error {
	if c.Device == "" {
		return ErrNoDevice
	}
	if c.Address == 0 || c.Address > 0x7F {
		return ErrBadAddress
	}
	return nil
}

func transportError(code tas5805m.BusCode, op string, reg tas5805m.Register, err error) error {
	return &tas5805m.TransportError{Code: code, Op: op, Register: reg, Err: err}
}

var _ tas5805m.Transport = (*Bus)(nil)
