package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/nerrad567/gray-logic-amp/internal/bustrace"
)

// runTrace prints a CBOR bus trace.
//
//	ampctl trace [-device id] [-session id] [-reg 0x4c] [-failed] <file>
func runTrace(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("trace", flag.ContinueOnError)
	fs.SetOutput(out)
	deviceID := fs.String("device", "", "Only events for this device")
	sessionID := fs.String("session", "", "Only events from this session")
	reg := fs.String("reg", "", "Only events for this register (e.g. 0x4c)")
	failedOnly := fs.Bool("failed", false, "Only failed transactions")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: ampctl trace [flags] <file>")
	}

	filter := bustrace.Filter{
		DeviceID:   *deviceID,
		SessionID:  *sessionID,
		FailedOnly: *failedOnly,
	}
	if *reg != "" {
		r, err := strconv.ParseUint(*reg, 0, 8)
		if err != nil {
			return fmt.Errorf("invalid register %q: %w", *reg, err)
		}
		b := byte(r)
		filter.Register = &b
	}

	r, err := bustrace.NewFilteredReader(fs.Arg(0), filter)
	if err != nil {
		return fmt.Errorf("opening trace: %w", err)
	}
	defer r.Close()

	var total, failed int
	for {
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("reading trace: %w", err)
		}
		total++
		if ev.Failed() {
			failed++
		}
		fmt.Fprintln(out, formatEvent(ev))
	}

	fmt.Fprintf(out, "%d events, %d failed\n", total, failed)
	return nil
}

// formatEvent renders one trace line.
func formatEvent(ev bustrace.Event) string {
	line := fmt.Sprintf("%s %-5s 0x%02X 0x%02X",
		ev.Timestamp.UTC().Format(time.RFC3339Nano), ev.Op, ev.Register, ev.Value)
	if ev.DeviceID != "" {
		line += " device=" + ev.DeviceID
	}
	if ev.Failed() {
		line += " FAILED " + ev.Code.String()
		if ev.Error != "" {
			line += ": " + ev.Error
		}
	}
	return line
}
