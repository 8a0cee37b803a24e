//go:build linux

package i2c

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/nerrad567/gray-logic-amp/internal/tas5805m"
)

// i2cSlave is the I2C_SLAVE request from linux/i2c-dev.h.
const i2cSlave = 0x0703

// Bus is an open i2c-dev node bound to one target address.
type Bus struct {
	mu     sync.Mutex
	fd     int
	cfg    Config
	closed bool
}

// Open opens the i2c-dev node and selects the target address.
//
// Parameters:
//   - cfg: Device path and 7-bit address
//
// Returns:
//   - *Bus: Open bus, ready for register access
//   - error: Validation, open or ioctl failure
func Open(cfg Config) (*Bus, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	fd, err := unix.Open(cfg.Device, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("i2c: open %s: %w", cfg.Device, err)
	}

	if err := unix.IoctlSetInt(fd, i2cSlave, int(cfg.Address)); err != nil {
		unix.Close(fd) //nolint:errcheck // best effort on the error path
		return nil, fmt.Errorf("i2c: select address 0x%02X: %w", cfg.Address, err)
	}

	return &Bus{fd: fd, cfg: cfg}, nil
}

// WriteRegister writes one byte to reg.
func (b *Bus) WriteRegister(reg tas5805m.Register, value byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return transportError(tas5805m.BusClosed, "write", reg, ErrClosed)
	}
	if err := b.writeAll([]byte{reg, value}); err != nil {
		return transportError(busCode(err), "write", reg, err)
	}
	return nil
}

// ReadRegister reads one byte from reg.
func (b *Bus) ReadRegister(reg tas5805m.Register) (byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, transportError(tas5805m.BusClosed, "read", reg, ErrClosed)
	}
	if err := b.writeAll([]byte{reg}); err != nil {
		return 0, transportError(busCode(err), "read", reg, err)
	}

	buf := make([]byte, 1)
	n, err := unix.Read(b.fd, buf)
	if err != nil {
		return 0, transportError(busCode(err), "read", reg, err)
	}
	if n != 1 {
		return 0, transportError(tas5805m.BusUnknown, "read", reg, fmt.Errorf("short read: %d bytes", n))
	}
	return buf[0], nil
}

func (b *Bus) writeAll(p []byte) error {
	n, err := unix.Write(b.fd, p)
	if err != nil {
		return err
	}
	if n != len(p) {
		return fmt.Errorf("short write: %d of %d bytes", n, len(p))
	}
	return nil
}

// Close releases the file descriptor. Safe to call more than once.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	if err := unix.Close(b.fd); err != nil {
		return fmt.Errorf("i2c: close %s: %w", b.cfg.Device, err)
	}
	return nil
}

// busCode maps an i2c-dev errno onto a driver bus code.
func busCode(err error) tas5805m.BusCode {
	var errno unix.Errno
	if !errors.As(err, &errno) {
		return tas5805m.BusUnknown
	}
	switch errno {
	case unix.ENXIO, unix.EREMOTEIO:
		return tas5805m.BusNACK
	case unix.ETIMEDOUT:
		return tas5805m.BusTimeout
	case unix.EBUSY, unix.EAGAIN:
		return tas5805m.BusBusy
	case unix.EBADF:
		return tas5805m.BusClosed
	default:
		return tas5805m.BusUnknown
	}
}
