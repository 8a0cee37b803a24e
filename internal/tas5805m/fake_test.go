package tas5805m

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeBus is an in-memory register file that records every access.
type fakeBus struct {
	mu     sync.Mutex
	regs   [256]byte
	writes []RegisterEntry
	reads  []Register

	// failWriteAt fails the Nth write (1-based). Zero disables.
	failWriteAt int
	// failRegister fails any access to the listed registers.
	failRegister map[Register]BusCode
	// failReads fails every read.
	failReads bool
}

func newFakeBus() *fakeBus {
	return &fakeBus{failRegister: make(map[Register]BusCode)}
}

func (b *fakeBus) WriteRegister(reg Register, value byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(b.writes) + 1
	if b.failWriteAt > 0 && n == b.failWriteAt {
		b.failWriteAt = 0
		return &TransportError{Code: BusNACK, Op: "write", Register: reg}
	}
	if code, ok := b.failRegister[reg]; ok {
		return &TransportError{Code: code, Op: "write", Register: reg}
	}
	b.writes = append(b.writes, RegisterEntry{Offset: reg, Value: value})
	b.regs[reg] = value
	return nil
}

func (b *fakeBus) ReadRegister(reg Register) (byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failReads {
		return 0, &TransportError{Code: BusTimeout, Op: "read", Register: reg}
	}
	if code, ok := b.failRegister[reg]; ok {
		return 0, &TransportError{Code: code, Op: "read", Register: reg}
	}
	b.reads = append(b.reads, reg)
	return b.regs[reg], nil
}

func (b *fakeBus) writeCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.writes)
}

// sleepRecorder records requested delays without waiting.
type sleepRecorder struct {
	delays []time.Duration
	err    error
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return s.err
}

// fakePin records enable line transitions.
type fakePin struct {
	configured   bool
	levels       []bool
	configureErr error
}

func (p *fakePin) Configure() error {
	if p.configureErr != nil {
		return p.configureErr
	}
	p.configured = true
	return nil
}

func (p *fakePin) Set(high bool) error {
	p.levels = append(p.levels, high)
	return nil
}

// captureLogger records log calls by level.
type captureLogger struct {
	mu       sync.Mutex
	debugs   []string
	infos    []string
	warnings []string
	errors   []string
}

func (l *captureLogger) Debug(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.debugs = append(l.debugs, msg)
}

func (l *captureLogger) Info(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infos = append(l.infos, msg)
}

func (l *captureLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warnings = append(l.warnings, msg)
}

func (l *captureLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

var errPinBroken = errors.New("pin broken")

// newTestDevice returns an initialised device over a fake bus.
func newTestDevice(tb testing.TB, bus *fakeBus) (*Device, *sleepRecorder) {
	tb.Helper()
	rec := &sleepRecorder{}
	dev := New(bus, Options{Sleep: rec.sleep})
	if err := dev.Init(context.Background()); err != nil {
		tb.Fatalf("Init() error = %v", err)
	}
	return dev, rec
}
