//go:build !linux

package i2c

import "github.com/nerrad567/gray-logic-amp/internal/tas5805m"

// Bus is unavailable on this platform.
type Bus struct{}

// Open always fails outside Linux.
func Open(cfg Config) (*Bus, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return nil, ErrUnsupported
}

// WriteRegister always fails outside Linux.
func (b *Bus) WriteRegister(reg tas5805m.Register, _ byte) error {
	return transportError(tas5805m.BusClosed, "write", reg, ErrUnsupported)
}

// ReadRegister always fails outside Linux.
func (b *Bus) ReadRegister(reg tas5805m.Register) (byte, error) {
	return 0, transportError(tas5805m.BusClosed, "read", reg, ErrUnsupported)
}

// Close is a no-op.
func (b *Bus) Close() error {
	return nil
}
