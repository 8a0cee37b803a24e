package tas5805m

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"
)

func TestInitEndToEnd(t *testing.T) {
	bus := newFakeBus()
	rec := &sleepRecorder{}

	dev := New(bus, Options{
		Table: Table{
			Write(RegDeviceCtrl2, CtrlDeepSleep),
			Delay(2),
			Write(RegDigitalVolume, 0x1A),
		},
		SettleDelay: -1,
		Sleep:       rec.sleep,
	})

	if err := dev.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if dev.RegistersConfigured() != 2 {
		t.Errorf("RegistersConfigured() = %d, want 2", dev.RegistersConfigured())
	}
	if len(rec.delays) != 1 || rec.delays[0] != 2*time.Millisecond {
		t.Errorf("delays = %v, want [2ms]", rec.delays)
	}
	if bus.regs[RegDigitalVolume] != 0x1A {
		t.Errorf("digital volume = 0x%02X, want 0x1A", bus.regs[RegDigitalVolume])
	}
	if !dev.Initialised() || dev.Failed() {
		t.Errorf("Initialised() = %v, Failed() = %v", dev.Initialised(), dev.Failed())
	}
	if st := dev.Status(); st.DigitalVolumeRaw != 0x1A {
		t.Errorf("Status().DigitalVolumeRaw = 0x%02X, want 0x1A", st.DigitalVolumeRaw)
	}
}

func TestInitDefaults(t *testing.T) {
	bus := newFakeBus()
	pin := &fakePin{}
	rec := &sleepRecorder{}

	dev := New(bus, Options{EnablePin: pin, Sleep: rec.sleep})
	if err := dev.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	if !pin.configured {
		t.Error("enable pin not configured")
	}
	if len(pin.levels) != 2 || pin.levels[0] || !pin.levels[1] {
		t.Errorf("pin levels = %v, want [false true]", pin.levels)
	}
	if len(rec.delays) < 2 || rec.delays[0] != DefaultResetPulse || rec.delays[1] != DefaultSettleDelay {
		t.Errorf("delays = %v, want reset pulse then settle delay first", rec.delays)
	}
	if dev.RegistersConfigured() != DefaultTable.Writes() {
		t.Errorf("RegistersConfigured() = %d, want %d", dev.RegistersConfigured(), DefaultTable.Writes())
	}

	// Readback seeds volume from the 0 dB register value.
	want := RawToVolume(VolumeZero)
	if math.Abs(dev.Volume()-want) > 1e-9 {
		t.Errorf("Volume() = %v, want %v", dev.Volume(), want)
	}
	if dev.IsMuted() {
		t.Error("IsMuted() = true after default init")
	}
}

func TestInitReadback(t *testing.T) {
	tests := []struct {
		name      string
		gainReg   byte
		volReg    byte
		wantGain  byte
		wantMuted bool
	}{
		{"reserved bits discarded", 0xFF, 0x30, 31, false},
		{"plain", 0x04, 0x00, 4, false},
		{"muted", 0x00, VolumeMute, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := newFakeBus()
			rec := &sleepRecorder{}
			dev := New(bus, Options{
				Table: Table{
					Write(RegAnalogGain, tt.gainReg),
					Write(RegDigitalVolume, tt.volReg),
				},
				Sleep: rec.sleep,
			})
			if err := dev.Init(context.Background()); err != nil {
				t.Fatalf("Init() error = %v", err)
			}
			if dev.Gain() != tt.wantGain {
				t.Errorf("Gain() = %d, want %d", dev.Gain(), tt.wantGain)
			}
			if dev.IsMuted() != tt.wantMuted {
				t.Errorf("IsMuted() = %v, want %v", dev.IsMuted(), tt.wantMuted)
			}
		})
	}
}

func TestInitReadbackDisabled(t *testing.T) {
	bus := newFakeBus()
	bus.failReads = true
	rec := &sleepRecorder{}

	dev := New(bus, Options{DisableReadback: true, Sleep: rec.sleep})
	if err := dev.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if len(bus.reads) != 0 {
		t.Errorf("reads = %v, want none", bus.reads)
	}
}

func TestInitFailures(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(*fakeBus, *Options)
		wantRegs int
		wantIs   error
	}{
		{
			name:     "write fails mid table",
			setup:    func(b *fakeBus, _ *Options) { b.failWriteAt = 4 },
			wantRegs: 3,
		},
		{
			name:     "readback fails",
			setup:    func(b *fakeBus, _ *Options) { b.failReads = true },
			wantRegs: DefaultTable.Writes(),
		},
		{
			name: "delay over ceiling",
			setup: func(_ *fakeBus, o *Options) {
				o.Table = Table{Write(0x03, 0x00), Delay(10)}
			},
			wantRegs: 0,
			wantIs:   ErrInvalidArgument,
		},
		{
			name: "enable pin broken",
			setup: func(_ *fakeBus, o *Options) {
				o.EnablePin = &fakePin{configureErr: errPinBroken}
			},
			wantRegs: 0,
			wantIs:   errPinBroken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := newFakeBus()
			rec := &sleepRecorder{}
			logger := &captureLogger{}
			opts := Options{Sleep: rec.sleep, Logger: logger}
			tt.setup(bus, &opts)

			dev := New(bus, opts)
			err := dev.Init(context.Background())
			if !errors.Is(err, ErrConfigurationFailed) {
				t.Fatalf("Init() error = %v, want ErrConfigurationFailed", err)
			}
			if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
				t.Errorf("Init() error = %v, want it to wrap %v", err, tt.wantIs)
			}
			if dev.RegistersConfigured() != tt.wantRegs {
				t.Errorf("RegistersConfigured() = %d, want %d", dev.RegistersConfigured(), tt.wantRegs)
			}
			if !dev.Failed() || dev.Initialised() {
				t.Errorf("Failed() = %v, Initialised() = %v", dev.Failed(), dev.Initialised())
			}
			if st := dev.Status(); st.LastErrorKind != ErrorConfigurationFailed {
				t.Errorf("LastErrorKind = %v, want configuration_failed", st.LastErrorKind)
			}
			if len(logger.errors) == 0 {
				t.Error("expected an error log")
			}
		})
	}
}

func TestInitRecordsBusCode(t *testing.T) {
	bus := newFakeBus()
	bus.failRegister[0x7F] = BusTimeout
	rec := &sleepRecorder{}

	dev := New(bus, Options{Sleep: rec.sleep})
	if err := dev.Init(context.Background()); err == nil {
		t.Fatal("Init() should fail")
	}
	st := dev.Status()
	if st.LastBusCode != BusTimeout {
		t.Errorf("LastBusCode = %v, want timeout", st.LastBusCode)
	}
	if st.RegistersConfigured != 1 {
		t.Errorf("RegistersConfigured = %d, want 1", st.RegistersConfigured)
	}
}

func TestInitOnce(t *testing.T) {
	bus := newFakeBus()
	dev, _ := newTestDevice(t, bus)
	n := bus.writeCount()

	if err := dev.Init(context.Background()); err != nil {
		t.Fatalf("second Init() error = %v", err)
	}
	if bus.writeCount() != n {
		t.Errorf("second Init() wrote %d registers", bus.writeCount()-n)
	}

	failing := newFakeBus()
	failing.failWriteAt = 1
	rec := &sleepRecorder{}
	failed := New(failing, Options{Sleep: rec.sleep})
	_ = failed.Init(context.Background())
	if err := failed.Init(context.Background()); !errors.Is(err, ErrConfigurationFailed) {
		t.Errorf("Init() after failure = %v, want ErrConfigurationFailed", err)
	}
	if failing.writeCount() != 0 {
		t.Errorf("Init() after failure wrote %d registers", failing.writeCount())
	}
}

func TestSetVolumeBoundaries(t *testing.T) {
	tests := []struct {
		volume  float64
		wantRaw byte
		stored  float64
	}{
		{0.0, 0xFE, 0.0},
		{1.0, 0x00, 1.0},
		{0.5, 0x7F, 0.5},
		{-1.0, 0xFE, 0.0},
		{2.0, 0x00, 1.0},
		{math.NaN(), 0xFE, 0.0},
	}

	for _, tt := range tests {
		bus := newFakeBus()
		dev, _ := newTestDevice(t, bus)

		if err := dev.SetVolume(tt.volume); err != nil {
			t.Fatalf("SetVolume(%v) error = %v", tt.volume, err)
		}
		if got := bus.regs[RegDigitalVolume]; got != tt.wantRaw {
			t.Errorf("SetVolume(%v) register = 0x%02X, want 0x%02X", tt.volume, got, tt.wantRaw)
		}
		if dev.Volume() != tt.stored {
			t.Errorf("SetVolume(%v) Volume() = %v, want %v", tt.volume, dev.Volume(), tt.stored)
		}
		if dev.IsMuted() {
			t.Errorf("SetVolume(%v) changed mute state", tt.volume)
		}
	}
}

func TestSetVolumeFailureKeepsState(t *testing.T) {
	bus := newFakeBus()
	dev, _ := newTestDevice(t, bus)
	before := dev.Volume()

	bus.failRegister[RegDigitalVolume] = BusNACK
	err := dev.SetVolume(0.2)
	if !errors.Is(err, ErrWriteRegisterFailed) {
		t.Fatalf("SetVolume() error = %v, want ErrWriteRegisterFailed", err)
	}
	if dev.Volume() != before {
		t.Errorf("Volume() = %v, want unchanged %v", dev.Volume(), before)
	}
	if dev.Failed() {
		t.Error("runtime failure must not mark the device failed")
	}
	st := dev.Status()
	if st.LastErrorKind != ErrorWriteRegisterFailed || st.LastBusCode != BusNACK {
		t.Errorf("Status() kind=%v code=%v", st.LastErrorKind, st.LastBusCode)
	}

	// Retry after the fault clears.
	delete(bus.failRegister, RegDigitalVolume)
	if err := dev.SetVolume(0.2); err != nil {
		t.Errorf("retry SetVolume() error = %v", err)
	}
}

func TestMuteIdempotence(t *testing.T) {
	bus := newFakeBus()
	dev, _ := newTestDevice(t, bus)

	if err := dev.SetVolume(0.5); err != nil {
		t.Fatalf("SetVolume() error = %v", err)
	}

	if err := dev.SetMuteOn(); err != nil {
		t.Fatalf("SetMuteOn() error = %v", err)
	}
	if bus.regs[RegDigitalVolume] != VolumeMute {
		t.Errorf("register = 0x%02X, want 0xFF", bus.regs[RegDigitalVolume])
	}
	n := bus.writeCount()
	if err := dev.SetMuteOn(); err != nil {
		t.Fatalf("second SetMuteOn() error = %v", err)
	}
	if bus.writeCount() != n {
		t.Error("second SetMuteOn() performed bus I/O")
	}

	if err := dev.SetMuteOff(); err != nil {
		t.Fatalf("SetMuteOff() error = %v", err)
	}
	if bus.regs[RegDigitalVolume] != 0x7F {
		t.Errorf("register = 0x%02X, want 0x7F", bus.regs[RegDigitalVolume])
	}
	n = bus.writeCount()
	if err := dev.SetMuteOff(); err != nil {
		t.Fatalf("second SetMuteOff() error = %v", err)
	}
	if bus.writeCount() != n {
		t.Error("second SetMuteOff() performed bus I/O")
	}
}

func TestSetVolumeWhileMuted(t *testing.T) {
	bus := newFakeBus()
	dev, _ := newTestDevice(t, bus)

	if err := dev.SetMuteOn(); err != nil {
		t.Fatalf("SetMuteOn() error = %v", err)
	}
	n := bus.writeCount()

	if err := dev.SetVolume(1.0); err != nil {
		t.Fatalf("SetVolume() error = %v", err)
	}
	if bus.writeCount() != n {
		t.Error("SetVolume() while muted performed bus I/O")
	}
	if !dev.IsMuted() || bus.regs[RegDigitalVolume] != VolumeMute {
		t.Error("SetVolume() while muted unmuted the device")
	}

	if err := dev.SetMuteOff(); err != nil {
		t.Fatalf("SetMuteOff() error = %v", err)
	}
	if bus.regs[RegDigitalVolume] != VolumeMax {
		t.Errorf("register = 0x%02X, want stored volume 0x00", bus.regs[RegDigitalVolume])
	}
}

func TestMuteOffFailureStaysMuted(t *testing.T) {
	bus := newFakeBus()
	dev, _ := newTestDevice(t, bus)

	if err := dev.SetMuteOn(); err != nil {
		t.Fatalf("SetMuteOn() error = %v", err)
	}
	bus.failRegister[RegDigitalVolume] = BusBusy

	if err := dev.SetMuteOff(); !errors.Is(err, ErrWriteRegisterFailed) {
		t.Fatalf("SetMuteOff() error = %v, want ErrWriteRegisterFailed", err)
	}
	if !dev.IsMuted() {
		t.Error("IsMuted() = false after failed SetMuteOff()")
	}
}

func TestMuteOnFailureStaysUnmuted(t *testing.T) {
	bus := newFakeBus()
	dev, _ := newTestDevice(t, bus)
	bus.failRegister[RegDigitalVolume] = BusNACK

	if err := dev.SetMuteOn(); !errors.Is(err, ErrWriteRegisterFailed) {
		t.Fatalf("SetMuteOn() error = %v", err)
	}
	if dev.IsMuted() {
		t.Error("IsMuted() = true after failed SetMuteOn()")
	}
}

func TestSetGainPreservesReservedBits(t *testing.T) {
	tests := []struct {
		name    string
		initial byte
		level   byte
		want    byte
	}{
		{"clear level keeps reserved", 0b101_00011, 0, 0b101_00000},
		{"max level", 0b101_00000, 31, 0b101_11111},
		{"no reserved bits", 0x00, 7, 0x07},
		{"all reserved", 0xE0, 1, 0xE1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := newFakeBus()
			dev, _ := newTestDevice(t, bus)
			bus.regs[RegAnalogGain] = tt.initial

			if err := dev.SetGain(tt.level); err != nil {
				t.Fatalf("SetGain(%d) error = %v", tt.level, err)
			}
			if got := bus.regs[RegAnalogGain]; got != tt.want {
				t.Errorf("register = 0b%08b, want 0b%08b", got, tt.want)
			}
			if dev.Gain() != tt.level {
				t.Errorf("Gain() = %d, want %d", dev.Gain(), tt.level)
			}
		})
	}
}

func TestSetGainInvalid(t *testing.T) {
	bus := newFakeBus()
	dev, _ := newTestDevice(t, bus)
	n := bus.writeCount()
	reads := len(bus.reads)

	for _, level := range []byte{32, 0x80, 0xFF} {
		if err := dev.SetGain(level); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("SetGain(%d) error = %v, want ErrInvalidArgument", level, err)
		}
	}
	if bus.writeCount() != n || len(bus.reads) != reads {
		t.Error("invalid SetGain() performed bus I/O")
	}
	if st := dev.Status(); st.LastErrorKind != ErrorNone {
		t.Errorf("LastErrorKind = %v, want none", st.LastErrorKind)
	}
}

func TestSetGainReadFailure(t *testing.T) {
	bus := newFakeBus()
	dev, _ := newTestDevice(t, bus)
	n := bus.writeCount()
	bus.failReads = true

	if err := dev.SetGain(3); !errors.Is(err, ErrWriteRegisterFailed) {
		t.Fatalf("SetGain() error = %v, want ErrWriteRegisterFailed", err)
	}
	if bus.writeCount() != n {
		t.Error("SetGain() wrote after a failed read")
	}
}

func TestReadGainMasks(t *testing.T) {
	bus := newFakeBus()
	dev, _ := newTestDevice(t, bus)
	bus.regs[RegAnalogGain] = 0xFF

	got, err := dev.ReadGain()
	if err != nil {
		t.Fatalf("ReadGain() error = %v", err)
	}
	if got != 31 {
		t.Errorf("ReadGain() = %d, want 31", got)
	}

	bus.regs[RegDigitalVolume] = 0x42
	raw, err := dev.ReadDigitalVolume()
	if err != nil {
		t.Fatalf("ReadDigitalVolume() error = %v", err)
	}
	if raw != 0x42 {
		t.Errorf("ReadDigitalVolume() = 0x%02X, want 0x42", raw)
	}
}

func TestDeepSleepToggle(t *testing.T) {
	bus := newFakeBus()
	dev, _ := newTestDevice(t, bus)

	if dev.DeepSleep() {
		t.Fatal("DeepSleep() = true after init")
	}

	n := bus.writeCount()
	if err := dev.SetDeepSleepOff(); err != nil {
		t.Fatalf("SetDeepSleepOff() error = %v", err)
	}
	if bus.writeCount() != n {
		t.Error("SetDeepSleepOff() while awake performed bus I/O")
	}

	if err := dev.SetDeepSleepOn(); err != nil {
		t.Fatalf("SetDeepSleepOn() error = %v", err)
	}
	if !dev.DeepSleep() || bus.regs[RegDeviceCtrl2] != CtrlDeepSleep {
		t.Errorf("after SetDeepSleepOn: flag=%v reg=0x%02X", dev.DeepSleep(), bus.regs[RegDeviceCtrl2])
	}

	n = bus.writeCount()
	if err := dev.SetDeepSleepOn(); err != nil {
		t.Fatalf("second SetDeepSleepOn() error = %v", err)
	}
	if bus.writeCount() != n {
		t.Error("second SetDeepSleepOn() performed bus I/O")
	}

	if err := dev.SetDeepSleepOff(); err != nil {
		t.Fatalf("SetDeepSleepOff() error = %v", err)
	}
	if dev.DeepSleep() || bus.regs[RegDeviceCtrl2] != CtrlPlay {
		t.Errorf("after SetDeepSleepOff: flag=%v reg=0x%02X", dev.DeepSleep(), bus.regs[RegDeviceCtrl2])
	}
}

func TestDeepSleepFailureKeepsState(t *testing.T) {
	bus := newFakeBus()
	dev, _ := newTestDevice(t, bus)
	bus.failRegister[RegDeviceCtrl2] = BusNACK

	if err := dev.SetDeepSleepOn(); !errors.Is(err, ErrWriteRegisterFailed) {
		t.Fatalf("SetDeepSleepOn() error = %v", err)
	}
	if dev.DeepSleep() {
		t.Error("DeepSleep() = true after failed write")
	}

	delete(bus.failRegister, RegDeviceCtrl2)
	if err := dev.SetDeepSleepOn(); err != nil {
		t.Fatalf("SetDeepSleepOn() error = %v", err)
	}
	bus.failRegister[RegDeviceCtrl2] = BusNACK
	if err := dev.SetDeepSleepOff(); err == nil {
		t.Fatal("SetDeepSleepOff() should fail")
	}
	if !dev.DeepSleep() {
		t.Error("DeepSleep() = false after failed wake")
	}
}

func TestLogConfig(t *testing.T) {
	tests := []struct {
		name      string
		status    Status
		wantError bool
	}{
		{"success", Status{RegistersConfigured: 14, DigitalVolumeRaw: VolumeZero}, false},
		{"configuration failed", Status{LastErrorKind: ErrorConfigurationFailed}, true},
		{"write failed", Status{LastErrorKind: ErrorWriteRegisterFailed}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := &captureLogger{}
			LogConfig(logger, tt.status)
			if got := len(logger.errors) > 0; got != tt.wantError {
				t.Errorf("error logged = %v, want %v", got, tt.wantError)
			}
			if !tt.wantError && len(logger.infos) != 1 {
				t.Errorf("info logs = %d, want 1", len(logger.infos))
			}
		})
	}

	// nil logger is a no-op
	LogConfig(nil, Status{})
}
