package tas5805m

import (
	"context"
	"fmt"
	"time"
)

// Default initialisation timings.
const (
	// DefaultResetPulse is how long the enable line is held low.
	DefaultResetPulse = 10 * time.Millisecond

	// DefaultSettleDelay is the wait between releasing reset and the first
	// register write, letting the bus and supplies stabilise.
	DefaultSettleDelay = 100 * time.Millisecond

	// DefaultMaxDelayStep is the largest single delay a register table may ask for.
	DefaultMaxDelayStep = 5 * time.Millisecond
)

// Transport is the register bus the driver talks through.
// Implementations should return *TransportError on failure.
type Transport interface {
	// WriteRegister writes one byte to a register.
	WriteRegister(reg Register, value byte) error

	// ReadRegister reads one byte from a register.
	ReadRegister(reg Register) (byte, error)
}

// Pin is the hardware enable line (PDN) of the amplifier.
type Pin interface {
	// Configure sets the line up as a digital output.
	Configure() error

	// Set drives the line high or low.
	Set(high bool) error
}

// Logger is the logging interface used by the driver.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Options configures a Device. The zero value is usable.
type Options struct {
	// EnablePin, when set, is pulsed low then high before initialisation.
	EnablePin Pin

	// ResetPulse is the low time of the enable pulse. Default: 10ms.
	ResetPulse time.Duration

	// SettleDelay is waited before the register table is applied.
	// Default: 100ms. Negative disables the wait.
	SettleDelay time.Duration

	// MaxDelayStep rejects tables with a longer single delay step.
	// Default: 5ms. Negative disables the ceiling.
	MaxDelayStep time.Duration

	// DisableReadback skips reading volume and gain after the table is applied.
	DisableReadback bool

	// Table is the initialisation register table. Default: DefaultTable.
	Table Table

	// Logger is optional.
	Logger Logger

	// Sleep overrides how delays are waited (tests record them instead).
	Sleep SleepFunc
}

// Device controls one TAS5805M. It caches the last known register state and
// is not safe for concurrent use; callers must serialise access.
type Device struct {
	bus    Transport
	opts   Options
	logger Logger

	volume           float64
	muted            bool
	deepSleep        bool
	digitalVolumeRaw byte
	analogGainRaw    byte

	registersConfigured int
	initialised         bool
	failed              bool

	lastErrorKind    ErrorKind
	lastTransportErr error
}

// New creates a device bound to bus. Call Init before any control operation.
func New(bus Transport, opts Options) *Device {
	if opts.ResetPulse <= 0 {
		opts.ResetPulse = DefaultResetPulse
	}
	switch {
	case opts.SettleDelay == 0:
		opts.SettleDelay = DefaultSettleDelay
	case opts.SettleDelay < 0:
		opts.SettleDelay = 0
	}
	if opts.MaxDelayStep == 0 {
		opts.MaxDelayStep = DefaultMaxDelayStep
	}
	if opts.Table == nil {
		opts.Table = DefaultTable
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}

	return &Device{
		bus:    bus,
		opts:   opts,
		logger: opts.Logger,
	}
}

// Init brings the amplifier up. It runs once per device lifetime:
//  1. Pulses the enable line (if configured)
//  2. Waits the settle delay
//  3. Applies the register table
//  4. Reads back digital volume and analog gain (unless disabled)
//
// Any failure marks the device failed and returns ErrConfigurationFailed.
//
// Parameters:
//   - ctx: Cancels the reset and settle waits and table delays
//
// Returns:
//   - error: nil on success, ErrConfigurationFailed (wrapping the cause) otherwise
func (d *Device) Init(ctx context.Context) error {
	if d.initialised {
		return nil
	}
	if d.failed {
		return fmt.Errorf("%w: device already failed", ErrConfigurationFailed)
	}

	if d.opts.EnablePin != nil {
		if err := d.pulseEnable(ctx); err != nil {
			return d.configurationFailed("reset pulse", err)
		}
	}

	if d.opts.SettleDelay > 0 {
		if err := d.opts.Sleep(ctx, d.opts.SettleDelay); err != nil {
			return d.configurationFailed("settle delay", err)
		}
	}

	applied, err := Apply(ctx, d.bus, d.opts.Table, d.opts.MaxDelayStep, d.opts.Sleep)
	d.registersConfigured = applied
	if err != nil {
		return d.configurationFailed("apply register table", err)
	}

	if !d.opts.DisableReadback {
		if err := d.readback(); err != nil {
			return d.configurationFailed("readback", err)
		}
	}

	d.initialised = true
	d.logDebug("configuration applied",
		"registers", applied,
		"digital_volume", d.digitalVolumeRaw,
		"analog_gain", d.analogGainRaw&GainMask)
	return nil
}

// pulseEnable drives the enable line low for ResetPulse, then high.
func (d *Device) pulseEnable(ctx context.Context) error {
	pin := d.opts.EnablePin
	if err := pin.Configure(); err != nil {
		return fmt.Errorf("configure enable pin: %w", err)
	}
	if err := pin.Set(false); err != nil {
		return fmt.Errorf("drive enable low: %w", err)
	}
	if err := d.opts.Sleep(ctx, d.opts.ResetPulse); err != nil {
		return err
	}
	if err := pin.Set(true); err != nil {
		return fmt.Errorf("drive enable high: %w", err)
	}
	return nil
}

// readback seeds the cached state from the hardware.
func (d *Device) readback() error {
	vol, err := d.bus.ReadRegister(RegDigitalVolume)
	if err != nil {
		return err
	}
	gain, err := d.bus.ReadRegister(RegAnalogGain)
	if err != nil {
		return err
	}

	d.digitalVolumeRaw = vol
	d.analogGainRaw = gain
	if vol == VolumeMute {
		d.muted = true
	} else {
		d.volume = RawToVolume(vol)
	}
	return nil
}

func (d *Device) configurationFailed(stage string, err error) error {
	d.failed = true
	d.lastErrorKind = ErrorConfigurationFailed
	d.lastTransportErr = err
	d.logError("configuration failed",
		"stage", stage,
		"registers", d.registersConfigured,
		"bus_code", busCodeOf(err).String(),
		"error", err)
	return fmt.Errorf("%w: %s: %w", ErrConfigurationFailed, stage, err)
}

// SetVolume sets the normalised volume (clamped to [0, 1]).
//
// While muted the register stays at the mute value; the new level is stored
// and applied by SetMuteOff.
func (d *Device) SetVolume(volume float64) error {
	volume = ClampVolume(volume)

	if d.muted {
		d.volume = volume
		d.logDebug("volume stored while muted", "volume", volume)
		return nil
	}

	raw := VolumeToRaw(volume)
	if err := d.write("set volume", RegDigitalVolume, raw); err != nil {
		return err
	}
	d.volume = volume
	d.digitalVolumeRaw = raw
	d.logDebug("volume changed", "volume", volume, "raw", raw)
	return nil
}

// Volume returns the last requested normalised volume.
func (d *Device) Volume() float64 {
	return d.volume
}

// SetMuteOn writes the mute value to the digital volume register.
// No bus I/O if already muted.
func (d *Device) SetMuteOn() error {
	if d.muted {
		return nil
	}
	if err := d.write("mute on", RegDigitalVolume, VolumeMute); err != nil {
		return err
	}
	d.muted = true
	d.digitalVolumeRaw = VolumeMute
	d.logDebug("mute on")
	return nil
}

// SetMuteOff restores the digital volume register to the stored volume.
// No bus I/O if not muted. The device stays muted if the write fails.
func (d *Device) SetMuteOff() error {
	if !d.muted {
		return nil
	}
	raw := VolumeToRaw(d.volume)
	if err := d.write("mute off", RegDigitalVolume, raw); err != nil {
		return err
	}
	d.muted = false
	d.digitalVolumeRaw = raw
	d.logDebug("mute off", "volume", d.volume, "raw", raw)
	return nil
}

// IsMuted reports whether the digital volume register holds the mute value.
func (d *Device) IsMuted() bool {
	return d.muted
}

// SetGain sets the 5-bit analog gain level (0 = 0 dB, 31 = -15.5 dB).
// The reserved upper bits of the register are read and written back unchanged.
func (d *Device) SetGain(level byte) error {
	if level > MaxGain {
		return fmt.Errorf("%w: gain level %d exceeds %d", ErrInvalidArgument, level, MaxGain)
	}

	current, err := d.read("set gain", RegAnalogGain)
	if err != nil {
		return err
	}

	raw := (current & GainReservedMask) | level
	if err := d.write("set gain", RegAnalogGain, raw); err != nil {
		return err
	}
	d.analogGainRaw = raw
	d.logDebug("analog gain changed", "level", level, "db", GainToDB(level))
	return nil
}

// Gain returns the cached analog gain level.
func (d *Device) Gain() byte {
	return d.analogGainRaw & GainMask
}

// ReadGain reads the analog gain level from the device, discarding the
// reserved bits.
func (d *Device) ReadGain() (byte, error) {
	raw, err := d.read("read gain", RegAnalogGain)
	if err != nil {
		return 0, err
	}
	return raw & GainMask, nil
}

// ReadDigitalVolume reads the raw digital volume register.
func (d *Device) ReadDigitalVolume() (byte, error) {
	return d.read("read digital volume", RegDigitalVolume)
}

// SetDeepSleepOn puts the device into deep sleep.
// No bus I/O if already asleep; the state only changes if the write succeeds.
func (d *Device) SetDeepSleepOn() error {
	if d.deepSleep {
		return nil
	}
	if err := d.write("deep sleep on", RegDeviceCtrl2, CtrlDeepSleep); err != nil {
		return err
	}
	d.deepSleep = true
	d.logDebug("deep sleep on")
	return nil
}

// SetDeepSleepOff wakes the device into play.
// No bus I/O if already awake; the state only changes if the write succeeds.
func (d *Device) SetDeepSleepOff() error {
	if !d.deepSleep {
		return nil
	}
	if err := d.write("deep sleep off", RegDeviceCtrl2, CtrlPlay); err != nil {
		return err
	}
	d.deepSleep = false
	d.logDebug("deep sleep off")
	return nil
}

// DeepSleep reports whether the device is in deep sleep.
func (d *Device) DeepSleep() bool {
	return d.deepSleep
}

// Failed reports whether initialisation failed.
func (d *Device) Failed() bool {
	return d.failed
}

// Initialised reports whether Init completed successfully.
func (d *Device) Initialised() bool {
	return d.initialised
}

// RegistersConfigured returns how many table writes Init issued successfully.
func (d *Device) RegistersConfigured() int {
	return d.registersConfigured
}

// write performs a runtime register write and records failures.
func (d *Device) write(op string, reg Register, value byte) error {
	if err := d.bus.WriteRegister(reg, value); err != nil {
		return d.runtimeFailure(op, reg, err)
	}
	return nil
}

// read performs a runtime register read and records failures.
func (d *Device) read(op string, reg Register) (byte, error) {
	value, err := d.bus.ReadRegister(reg)
	if err != nil {
		return 0, d.runtimeFailure(op, reg, err)
	}
	return value, nil
}

func (d *Device) runtimeFailure(op string, reg Register, err error) error {
	d.lastErrorKind = ErrorWriteRegisterFailed
	d.lastTransportErr = err
	d.logError("register access failed",
		"op", op,
		"register", fmt.Sprintf("0x%02X", reg),
		"bus_code", busCodeOf(err).String(),
		"error", err)
	return fmt.Errorf("%w: %s: %w", ErrWriteRegisterFailed, op, err)
}

func (d *Device) logDebug(msg string, keysAndValues ...any) {
	if d.logger != nil {
		d.logger.Debug(msg, keysAndValues...)
	}
}

func (d *Device) logError(msg string, keysAndValues ...any) {
	if d.logger != nil {
		d.logger.Error(msg, keysAndValues...)
	}
}
