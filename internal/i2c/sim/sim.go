// Package sim provides an in-memory TAS5805M register file.
//
// It stands in for the i2c-dev transport when no hardware is present (bench
// runs, CI, the ampctl console) and lets tests inject bus faults.
package sim

import (
	"sync"

	"github.com/nerrad567/gray-logic-amp/internal/tas5805m"
)

// Write is one recorded register write.
type Write struct {
	Register tas5805m.Register
	Value    byte
}

// Bus is a simulated register file. Safe for concurrent use.
type Bus struct {
	mu     sync.Mutex
	regs   [256]byte
	writes []Write
	reads  int

	// reserved holds bits the device keeps set regardless of what is written.
	reserved map[tas5805m.Register]byte

	failWriteAt  int
	failRegister map[tas5805m.Register]tas5805m.BusCode
	failReads    tas5805m.BusCode
}

// New returns a register file holding the power-on defaults.
func New() *Bus {
	b := &Bus{
		reserved:     make(map[tas5805m.Register]byte),
		failRegister: make(map[tas5805m.Register]tas5805m.BusCode),
	}
	b.regs[tas5805m.RegDigitalVolume] = tas5805m.VolumeZero
	b.regs[tas5805m.RegAnalogGain] = 0x00
	b.regs[tas5805m.RegDeviceCtrl2] = tas5805m.CtrlHiZ
	return b
}

// WriteRegister stores value, applying any reserved-bit model.
func (b *Bus) WriteRegister(reg tas5805m.Register, value byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	attempt := len(b.writes) + 1
	if b.failWriteAt > 0 && attempt == b.failWriteAt {
		b.failWriteAt = 0
		return &tas5805m.TransportError{Code: tas5805m.BusNACK, Op: "write", Register: reg}
	}
	if code, ok := b.failRegister[reg]; ok {
		return &tas5805m.TransportError{Code: code, Op: "write", Register: reg}
	}

	b.regs[reg] = value | b.reserved[reg]
	b.writes = append(b.writes, Write{Register: reg, Value: value})
	return nil
}

// ReadRegister returns the stored value.
func (b *Bus) ReadRegister(reg tas5805m.Register) (byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failReads != tas5805m.BusOK {
		return 0, &tas5805m.TransportError{Code: b.failReads, Op: "read", Register: reg}
	}
	if code, ok := b.failRegister[reg]; ok {
		return 0, &tas5805m.TransportError{Code: code, Op: "read", Register: reg}
	}
	b.reads++
	return b.regs[reg], nil
}

// Close is a no-op.
func (b *Bus) Close() error {
	return nil
}

// Register returns the stored value without recording a read.
func (b *Bus) Register(reg tas5805m.Register) byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.regs[reg]
}

// Poke sets a register directly, bypassing the write log.
func (b *Bus) Poke(reg tas5805m.Register, value byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.regs[reg] = value
}

// SetReserved marks bits of reg as held set by the device.
func (b *Bus) SetReserved(reg tas5805m.Register, bits byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reserved[reg] = bits
	b.regs[reg] |= bits
}

// Writes returns a copy of the write log.
func (b *Bus) Writes() []Write {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Write, len(b.writes))
	copy(out, b.writes)
	return out
}

// Reads returns how many reads succeeded.
func (b *Bus) Reads() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reads
}

// FailWriteAt makes the nth write attempt from now fail with NACK, once.
func (b *Bus) FailWriteAt(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n <= 0 {
		b.failWriteAt = 0
		return
	}
	b.failWriteAt = len(b.writes) + n
}

// FailRegister makes every access to reg fail with code.
// BusOK clears the fault.
func (b *Bus) FailRegister(reg tas5805m.Register, code tas5805m.BusCode) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if code == tas5805m.BusOK {
		delete(b.failRegister, reg)
		return
	}
	b.failRegister[reg] = code
}

// FailReads makes every read fail with code. BusOK clears the fault.
func (b *Bus) FailReads(code tas5805m.BusCode) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failReads = code
}

var _ tas5805m.Transport = (*Bus)(nil)
