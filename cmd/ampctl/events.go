package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/nerrad567/gray-logic-amp/internal/history"
)

// Lister lists operation log events.
type Lister interface {
	List(ctx context.Context, filter history.Filter) (*history.ListResult, error)
}

// runHistory prints the most recent operations from the log.
//
//	ampctl history [-device id] [-session id] [-action name] [-failed] [-limit n]
func runHistory(ctx context.Context, args []string, repo Lister, out io.Writer) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(out)
	var filter history.Filter
	fs.StringVar(&filter.DeviceID, "device", "", "Only events for this device")
	fs.StringVar(&filter.SessionID, "session", "", "Only events from this session")
	fs.StringVar(&filter.Action, "action", "", "Only this action (init, set_volume, mute, ...)")
	fs.BoolVar(&filter.FailedOnly, "failed", false, "Only failed operations")
	fs.IntVar(&filter.Limit, "limit", 20, "Maximum events to show")
	if err := fs.Parse(args); err != nil {
		return err
	}

	result, err := repo.List(ctx, filter)
	if err != nil {
		return fmt.Errorf("listing history: %w", err)
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tDEVICE\tACTION\tSOURCE\tRESULT")
	for _, ev := range result.Events {
		outcome := "ok"
		if !ev.Success {
			outcome = ev.ErrorKind
			if ev.Error != "" {
				outcome += ": " + ev.Error
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			ev.CreatedAt.Local().Format(time.DateTime), ev.DeviceID, ev.Action, ev.Source, outcome)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "%d of %d events\n", len(result.Events), result.Total)
	return nil
}
