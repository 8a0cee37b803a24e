package amp

import (
	"errors"
	"fmt"
	"io"

	"github.com/nerrad567/gray-logic-amp/internal/bustrace"
	"github.com/nerrad567/gray-logic-amp/internal/gpio"
	"github.com/nerrad567/gray-logic-amp/internal/i2c"
	"github.com/nerrad567/gray-logic-amp/internal/i2c/sim"
	"github.com/nerrad567/gray-logic-amp/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-amp/internal/tas5805m"
)

// HardwareOptions holds the runtime parts of OpenHardware that do not come
// from the config file.
type HardwareOptions struct {
	// SessionID tags bus trace events.
	SessionID string

	// Logger is passed to the driver.
	Logger tas5805m.Logger

	// GPIOLookup resolves the enable line. Nil uses the periph.io host
	// registry.
	GPIOLookup gpio.Lookup

	// Sleep overrides the driver's delay function (tests).
	Sleep tas5805m.SleepFunc
}

// Hardware is an opened amplifier: the driver plus the bus stack under it.
type Hardware struct {
	Device *tas5805m.Device

	// Bus is the transport the driver talks to, including any recorder.
	Bus tas5805m.Transport

	// Sim is set when the simulated bus is in use.
	Sim *sim.Bus

	closers []io.Closer
}

// OpenHardware builds the transport stack and driver described by cfg.
// The device is not initialised; the bridge does that on Start.
func OpenHardware(cfg config.DeviceConfig, opts HardwareOptions) (*Hardware, error) {
	hw := &Hardware{}

	var bus tas5805m.Transport
	if cfg.Bus == config.BusSim {
		hw.Sim = sim.New()
		bus = hw.Sim
		hw.closers = append(hw.closers, hw.Sim)
	} else {
		b, err := i2c.Open(i2c.Config{Device: cfg.Bus, Address: uint16(cfg.Address)})
		if err != nil {
			return nil, fmt.Errorf("opening i2c bus: %w", err)
		}
		bus = b
		hw.closers = append(hw.closers, b)
	}

	if cfg.TraceFile != "" {
		sink, err := bustrace.NewFileSink(cfg.TraceFile)
		if err != nil {
			hw.Close() //nolint:errcheck // already failing
			return nil, fmt.Errorf("opening bus trace: %w", err)
		}
		hw.closers = append(hw.closers, sink)
		bus = bustrace.NewRecorder(bus, sink, cfg.ID, opts.SessionID)
	}
	hw.Bus = bus

	devOpts := tas5805m.Options{
		ResetPulse:      cfg.ResetPulse(),
		SettleDelay:     cfg.SettleDelay(),
		MaxDelayStep:    cfg.MaxDelayStep(),
		DisableReadback: !cfg.Readback,
		Table:           TableFromConfig(cfg.InitTable),
		Logger:          opts.Logger,
		Sleep:           opts.Sleep,
	}
	if cfg.SettleDelayMS == 0 {
		devOpts.SettleDelay = -1
	}

	if cfg.EnableGPIO >= 0 {
		line, err := gpio.NewLine(cfg.EnableGPIO, opts.GPIOLookup)
		if err != nil {
			hw.Close() //nolint:errcheck // already failing
			return nil, fmt.Errorf("enable line: %w", err)
		}
		devOpts.EnablePin = line
	}

	hw.Device = tas5805m.New(bus, devOpts)
	return hw, nil
}

// TableFromConfig converts config table entries to a driver table.
// An empty list yields nil, which selects the default table.
func TableFromConfig(entries []config.TableEntry) tas5805m.Table {
	if len(entries) == 0 {
		return nil
	}

	table := make(tas5805m.Table, 0, len(entries))
	for _, e := range entries {
		if e.DelayMS != nil {
			table = append(table, tas5805m.Delay(byte(*e.DelayMS)))
			continue
		}
		if e.Register != nil {
			table = append(table, tas5805m.Write(tas5805m.Register(*e.Register), byte(e.Value)))
		}
	}
	return table
}

// Close releases the trace file and the bus.
func (h *Hardware) Close() error {
	var errs []error
	for i := len(h.closers) - 1; i >= 0; i-- {
		if err := h.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	h.closers = nil
	return errors.Join(errs...)
}
