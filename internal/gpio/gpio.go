// Package gpio drives the amplifier's PDN (enable) line through periph.io.
//
// Lines are resolved by name or number through periph's pin registry
// (gpioreg), which covers the GPIO character device and board-specific
// drivers loaded by host.Init.
package gpio

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

var (
	// ErrInvalidLine is returned for a negative line number.
	ErrInvalidLine = errors.New("gpio: invalid line number")

	// ErrLineNotFound is returned when no pin is registered under the name.
	ErrLineNotFound = errors.New("gpio: line not found")

	// ErrNotConfigured is returned by Set before Configure succeeded.
	ErrNotConfigured = errors.New("gpio: line not configured")
)

// Output is the part of a periph.io pin the enable line uses.
// gpio.PinIO satisfies it.
type Output interface {
	Name() string
	Out(l gpio.Level) error
}

// Lookup resolves a pin by name.
type Lookup func(name string) (Output, error)

var (
	hostOnce sync.Once
	hostErr  error
)

// HostLookup loads the periph.io host drivers once and resolves name in
// the pin registry.
func HostLookup(name string) (Output, error) {
	hostOnce.Do(func() {
		_, hostErr = host.Init()
	})
	if hostErr != nil {
		return nil, fmt.Errorf("gpio: host init: %w", hostErr)
	}

	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrLineNotFound, name)
	}
	return p, nil
}

// Line is one output line.
type Line struct {
	name   string
	lookup Lookup
	pin    Output
}

// NewLine returns line num, resolved with lookup (HostLookup if nil) when
// Configure is called.
func NewLine(num int, lookup Lookup) (*Line, error) {
	if num < 0 {
		return nil, ErrInvalidLine
	}
	if lookup == nil {
		lookup = HostLookup
	}
	return &Line{name: strconv.Itoa(num), lookup: lookup}, nil
}

// Name returns the registry name the line resolves to.
func (l *Line) Name() string {
	if l.pin != nil {
		return l.pin.Name()
	}
	return l.name
}

// Configure resolves the pin and drives it low as an output.
func (l *Line) Configure() error {
	pin, err := l.lookup(l.name)
	if err != nil {
		return err
	}
	if pin == nil {
		return fmt.Errorf("%w: %s", ErrLineNotFound, l.name)
	}
	if err := pin.Out(gpio.Low); err != nil {
		return fmt.Errorf("gpio: configure line %s: %w", l.name, err)
	}
	l.pin = pin
	return nil
}

// Set drives the line high or low.
func (l *Line) Set(high bool) error {
	if l.pin == nil {
		return ErrNotConfigured
	}
	if err := l.pin.Out(gpio.Level(high)); err != nil {
		return fmt.Errorf("gpio: set line %s: %w", l.name, err)
	}
	return nil
}
