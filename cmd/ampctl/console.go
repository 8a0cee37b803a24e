package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/nerrad567/gray-logic-amp/internal/history"
	"github.com/nerrad567/gray-logic-amp/internal/tas5805m"
)

// Recorder stores console operations in the operation log.
// Satisfied by *history.SQLiteRepository.
type Recorder interface {
	Record(ctx context.Context, event *history.Event) error
}

// Console is the interactive amplifier shell.
type Console struct {
	dev       *tas5805m.Device
	bus       tas5805m.Transport
	out       io.Writer
	recorder  Recorder
	deviceID  string
	sessionID string
}

// ConsoleOptions configures a Console.
type ConsoleOptions struct {
	Device *tas5805m.Device

	// Bus is used by the raw reg command. It bypasses the driver cache.
	Bus tas5805m.Transport

	Out       io.Writer
	Recorder  Recorder // optional
	DeviceID  string
	SessionID string
}

// NewConsole creates a console. Output goes to opts.Out until Run replaces it
// with the readline writer.
func NewConsole(opts ConsoleOptions) *Console {
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	return &Console{
		dev:       opts.Device,
		bus:       opts.Bus,
		out:       out,
		recorder:  opts.Recorder,
		deviceID:  opts.DeviceID,
		sessionID: opts.SessionID,
	}
}

// Run reads commands until quit, EOF or ctx is cancelled.
func (c *Console) Run(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "amp> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	c.out = rl.Stdout()
	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			fmt.Fprintln(c.out, "Exiting...")
			return nil
		}

		if quit := c.Execute(ctx, line); quit {
			return nil
		}
	}
}

// Execute runs one command line. It reports whether the console should exit.
func (c *Console) Execute(ctx context.Context, line string) bool {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) == 0 {
		return false
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		c.printHelp()
	case "init":
		c.cmdInit(ctx)
	case "volume", "vol", "v":
		c.cmdVolume(args)
	case "mute", "m":
		c.cmdMute(args)
	case "gain", "g":
		c.cmdGain(args)
	case "sleep":
		c.cmdSleep(args)
	case "read", "r":
		c.cmdRead()
	case "reg":
		c.cmdReg(args)
	case "status", "s":
		c.cmdStatus()
	case "quit", "exit", "q":
		fmt.Fprintln(c.out, "Exiting...")
		return true
	default:
		fmt.Fprintf(c.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return false
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.out, `
TAS5805M Console Commands:
  Control:
    init               - Run the register table (once per session)
    volume <0..1>      - Set normalised volume
    mute on|off        - Mute or restore the last volume
    gain <0..31>       - Set analog gain (0 = 0 dB, 31 = -15.5 dB)
    sleep on|off       - Enter or leave deep sleep

  Inspection:
    read               - Read digital volume and analog gain from the device
    reg <hex> [value]  - Raw register read or write (bypasses the driver)
    status             - Show the cached driver state

  General:
    help               - Show this help
    quit               - Exit`)
}

func (c *Console) cmdInit(ctx context.Context) {
	err := c.dev.Init(ctx)
	s := c.dev.Status()
	c.record(ctx, history.ActionInit, map[string]any{"registers_configured": s.RegistersConfigured}, err)
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		fmt.Fprintf(c.out, "  registers configured: %d, bus code: %s\n", s.RegistersConfigured, s.LastBusCode)
		return
	}
	fmt.Fprintf(c.out, "Initialised: %d registers configured\n", s.RegistersConfigured)
}

func (c *Console) cmdVolume(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.out, "Usage: volume <0..1>")
		return
	}
	v, err := strconv.ParseFloat(args[0], 64)
	if err != nil || v < 0 || v > 1 || math.IsNaN(v) {
		fmt.Fprintf(c.out, "Invalid volume: %s (want 0..1)\n", args[0])
		return
	}
	if !c.ready() {
		return
	}

	err = c.dev.SetVolume(v)
	c.record(context.Background(), history.ActionSetVolume, map[string]any{"volume": v}, err)
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	if c.dev.IsMuted() {
		fmt.Fprintf(c.out, "Volume stored: %.3f (muted)\n", v)
		return
	}
	raw := tas5805m.VolumeToRaw(v)
	fmt.Fprintf(c.out, "Volume: %.3f (0x%02X, %.1f dB)\n", v, raw, tas5805m.RawVolumeToDB(raw))
}

func (c *Console) cmdMute(args []string) {
	on, ok := c.parseOnOff("mute", args)
	if !ok || !c.ready() {
		return
	}

	var err error
	action := history.ActionMute
	if on {
		err = c.dev.SetMuteOn()
	} else {
		action = history.ActionUnmute
		err = c.dev.SetMuteOff()
	}
	c.record(context.Background(), action, nil, err)
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "Muted: %v\n", c.dev.IsMuted())
}

func (c *Console) cmdGain(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.out, "Usage: gain <0..31>")
		return
	}
	level, err := strconv.ParseUint(args[0], 10, 8)
	if err != nil {
		fmt.Fprintf(c.out, "Invalid gain: %s\n", args[0])
		return
	}
	if !c.ready() {
		return
	}

	err = c.dev.SetGain(byte(level))
	c.record(context.Background(), history.ActionSetGain, map[string]any{"level": level}, err)
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "Gain: %d (%.1f dB)\n", c.dev.Gain(), tas5805m.GainToDB(c.dev.Gain()))
}

func (c *Console) cmdSleep(args []string) {
	on, ok := c.parseOnOff("sleep", args)
	if !ok || !c.ready() {
		return
	}

	var err error
	action := history.ActionSleep
	if on {
		err = c.dev.SetDeepSleepOn()
	} else {
		action = history.ActionWake
		err = c.dev.SetDeepSleepOff()
	}
	c.record(context.Background(), action, nil, err)
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "Deep sleep: %v\n", c.dev.DeepSleep())
}

func (c *Console) cmdRead() {
	vol, err := c.dev.ReadDigitalVolume()
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	gain, err := c.dev.ReadGain()
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}

	if vol == tas5805m.VolumeMute {
		fmt.Fprintf(c.out, "  digital volume: 0x%02X (muted)\n", vol)
	} else {
		fmt.Fprintf(c.out, "  digital volume: 0x%02X (%.1f dB)\n", vol, tas5805m.RawVolumeToDB(vol))
	}
	fmt.Fprintf(c.out, "  analog gain:    %d (%.1f dB)\n", gain, tas5805m.GainToDB(gain))
}

func (c *Console) cmdReg(args []string) {
	if len(args) < 1 || len(args) > 2 {
		fmt.Fprintln(c.out, "Usage: reg <hex> [value]")
		fmt.Fprintln(c.out, "  Example: reg 0x4c 0x30")
		return
	}
	reg, err := strconv.ParseUint(args[0], 0, 8)
	if err != nil {
		fmt.Fprintf(c.out, "Invalid register: %s\n", args[0])
		return
	}

	if len(args) == 1 {
		v, err := c.bus.ReadRegister(tas5805m.Register(reg))
		if err != nil {
			fmt.Fprintf(c.out, "Error: %v\n", err)
			return
		}
		fmt.Fprintf(c.out, "0x%02X = 0x%02X\n", reg, v)
		return
	}

	value, err := strconv.ParseUint(args[1], 0, 8)
	if err != nil {
		fmt.Fprintf(c.out, "Invalid value: %s\n", args[1])
		return
	}
	if err := c.bus.WriteRegister(tas5805m.Register(reg), byte(value)); err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "0x%02X <- 0x%02X\n", reg, value)
}

func (c *Console) cmdStatus() {
	s := c.dev.Status()
	fmt.Fprintln(c.out, "Amplifier Status:")
	fmt.Fprintf(c.out, "  Device:       %s\n", c.deviceID)
	fmt.Fprintf(c.out, "  Initialised:  %v\n", s.Initialised)
	fmt.Fprintf(c.out, "  Failed:       %v\n", s.Failed)
	fmt.Fprintf(c.out, "  Registers:    %d\n", s.RegistersConfigured)
	fmt.Fprintf(c.out, "  Volume:       %.3f (raw 0x%02X)\n", s.Volume, s.DigitalVolumeRaw)
	fmt.Fprintf(c.out, "  Muted:        %v\n", s.Muted)
	fmt.Fprintf(c.out, "  Analog gain:  %d (%.1f dB)\n", s.AnalogGain, tas5805m.GainToDB(s.AnalogGain))
	fmt.Fprintf(c.out, "  Deep sleep:   %v\n", s.DeepSleep)
	fmt.Fprintf(c.out, "  Last error:   %s", s.LastErrorKind)
	if s.LastErrorKind != tas5805m.ErrorNone {
		fmt.Fprintf(c.out, " (bus %s)", s.LastBusCode)
	}
	fmt.Fprintln(c.out)
}

// ready reports whether control commands may run, printing why not.
func (c *Console) ready() bool {
	switch {
	case c.dev.Failed():
		fmt.Fprintln(c.out, "Device failed to initialise; restart to retry")
		return false
	case !c.dev.Initialised():
		fmt.Fprintln(c.out, "Device not initialised; run 'init' first")
		return false
	}
	return true
}

func (c *Console) parseOnOff(cmd string, args []string) (on, ok bool) {
	if len(args) == 1 {
		switch strings.ToLower(args[0]) {
		case "on", "1", "true":
			return true, true
		case "off", "0", "false":
			return false, true
		}
	}
	fmt.Fprintf(c.out, "Usage: %s on|off\n", cmd)
	return false, false
}

func (c *Console) record(ctx context.Context, action string, details map[string]any, opErr error) {
	if c.recorder == nil {
		return
	}

	event := &history.Event{
		DeviceID:  c.deviceID,
		SessionID: c.sessionID,
		Action:    action,
		Source:    history.SourceConsole,
		Success:   opErr == nil,
		Details:   details,
	}
	if opErr != nil {
		event.Error = opErr.Error()
		event.ErrorKind = c.dev.Status().LastErrorKind.String()
		if errors.Is(opErr, tas5805m.ErrInvalidArgument) {
			event.ErrorKind = tas5805m.ErrorInvalidArgument.String()
		}
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.recorder.Record(ctx, event); err != nil {
		fmt.Fprintf(c.out, "Warning: history not recorded: %v\n", err)
	}
}
