package tas5805m

import (
	"context"
	"fmt"
	"time"
)

// RegisterEntry is one step of a register table: either a literal register
// write or, when Offset is MetaDelay, a pause of Value milliseconds.
type RegisterEntry struct {
	Offset byte
	Value  byte
}

// IsDelay reports whether the entry is a meta-delay directive.
func (e RegisterEntry) IsDelay() bool {
	return e.Offset == MetaDelay
}

// Duration returns the pause of a delay directive.
func (e RegisterEntry) Duration() time.Duration {
	return time.Duration(e.Value) * time.Millisecond
}

// Table is an ordered register table. Entries are applied strictly in order.
type Table []RegisterEntry

// Write returns a literal register write entry.
func Write(reg Register, value byte) RegisterEntry {
	return RegisterEntry{Offset: reg, Value: value}
}

// Delay returns a meta-delay entry of ms milliseconds.
func Delay(ms byte) RegisterEntry {
	return RegisterEntry{Offset: MetaDelay, Value: ms}
}

// Writes returns the number of non-delay entries.
func (t Table) Writes() int {
	n := 0
	for _, e := range t {
		if !e.IsDelay() {
			n++
		}
	}
	return n
}

// DefaultTable brings the amplifier from reset to play at 0 dB with the
// PPC3 "2.0 basic" flow.
var DefaultTable = Table{
	Write(bookPageReg, 0x00),
	Write(bookSelectReg, 0x00),
	Write(RegDeviceCtrl2, CtrlHiZ),
	Write(0x01, 0x11), // reset modules and registers
	Write(RegDeviceCtrl2, CtrlHiZ),
	Delay(5),
	Write(RegDeviceCtrl2, CtrlDeepSleep),
	Delay(5),
	Write(RegDeviceCtrl2, CtrlHiZ),
	Write(bookPageReg, 0x00),
	Write(bookSelectReg, 0x00),
	Write(0x02, 0x00), // BTL, 768 kHz FSW, BD modulation
	Write(0x53, 0x60), // class-D bandwidth 175 kHz
	Write(RegAnalogGain, 0x00),
	Write(RegDigitalVolume, VolumeZero),
	Write(RegDeviceCtrl2, CtrlPlay),
	Delay(5),
	Write(0x78, 0x80), // clear analog fault latches
}

// SleepFunc pauses the calling goroutine for d. It returns early with the
// context error if ctx is cancelled.
type SleepFunc func(ctx context.Context, d time.Duration) error

// sleepContext is the default SleepFunc.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Validate checks every delay step against maxStep before anything touches
// the bus. A non-positive maxStep disables the check.
func (t Table) Validate(maxStep time.Duration) error {
	if maxStep <= 0 {
		return nil
	}
	for i, e := range t {
		if e.IsDelay() && e.Duration() > maxStep {
			return fmt.Errorf("%w: entry %d delays %v, ceiling is %v",
				ErrInvalidArgument, i, e.Duration(), maxStep)
		}
	}
	return nil
}

// Apply writes table to the device in order and returns the number of
// register writes that succeeded.
//
// Delay entries pause for their value in milliseconds and do not count.
// The first transport failure stops the walk: the count of writes that
// succeeded before it is returned together with the error, and later entries
// are not attempted. Nothing is rolled back.
//
// Parameters:
//   - ctx: Cancels a pending delay step
//   - t: Bus the writes go to
//   - table: Entries to apply
//   - maxStep: Ceiling for a single delay step (<= 0 disables)
//   - sleep: Delay implementation (nil uses a timer)
//
// Returns:
//   - int: Register writes issued successfully
//   - error: ErrInvalidArgument before any I/O, or the transport error
func Apply(ctx context.Context, t Transport, table Table, maxStep time.Duration, sleep SleepFunc) (int, error) {
	if err := table.Validate(maxStep); err != nil {
		return 0, err
	}
	if sleep == nil {
		sleep = sleepContext
	}

	applied := 0
	for i, e := range table {
		if e.IsDelay() {
			if err := sleep(ctx, e.Duration()); err != nil {
				return applied, fmt.Errorf("delay at entry %d: %w", i, err)
			}
			continue
		}

		if err := t.WriteRegister(e.Offset, e.Value); err != nil {
			return applied, fmt.Errorf("entry %d: %w", i, err)
		}
		applied++
	}

	return applied, nil
}
