// ampctl is the bench console for a TAS5805M amplifier.
//
// Usage:
//
//	ampctl [-config file] [-no-history]          interactive console
//	ampctl [-config file] history [flags]        show the operation log
//	ampctl -config file token [flags]            mint an API bearer token
//	ampctl trace [flags] <file>                  print a CBOR bus trace
//
// Without -config (or GRAYLOGIC_AMP_CONFIG) the console drives a simulated
// amplifier.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	_ "github.com/nerrad567/gray-logic-amp/migrations"

	"github.com/nerrad567/gray-logic-amp/internal/bridges/amp"
	"github.com/nerrad567/gray-logic-amp/internal/history"
	"github.com/nerrad567/gray-logic-amp/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-amp/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-amp/internal/infrastructure/logging"
)

var version = "dev"

// configEnv names the config file when -config is not given.
const configEnv = "GRAYLOGIC_AMP_CONFIG"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("ampctl", flag.ContinueOnError)
	fs.SetOutput(out)
	configPath := fs.String("config", os.Getenv(configEnv), "Configuration file (default: simulated amplifier)")
	noHistory := fs.Bool("no-history", false, "Do not record console operations")
	if err := fs.Parse(args); err != nil {
		return err
	}

	sub := fs.Arg(0)
	if sub == "trace" {
		return runTrace(fs.Args()[1:], out)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	switch sub {
	case "":
		return runConsole(ctx, cfg, !*noHistory, out)
	case "history":
		db, err := openHistory(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		return runHistory(ctx, fs.Args()[1:], history.NewSQLiteRepository(db.DB), out)
	case "token":
		return runToken(fs.Args()[1:], cfg.API, out)
	default:
		return fmt.Errorf("unknown command %q (want trace, history or token)", sub)
	}
}

// loadConfig reads path, or returns the simulated default when path is empty.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func openHistory(ctx context.Context, cfg *config.Config) (*database.DB, error) {
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

func runConsole(ctx context.Context, cfg *config.Config, withHistory bool, out io.Writer) error {
	// Driver logs go to stderr so they do not garble the prompt.
	logCfg := cfg.Logging
	logCfg.Format = "text"
	log := logging.NewWithWriter(os.Stderr, logCfg, version).With("device_id", cfg.Device.ID)

	sessionID := uuid.NewString()
	hw, err := amp.OpenHardware(cfg.Device, amp.HardwareOptions{
		SessionID: sessionID,
		Logger:    log,
	})
	if err != nil {
		return fmt.Errorf("opening amplifier: %w", err)
	}
	defer hw.Close()

	var recorder Recorder
	if withHistory {
		db, err := openHistory(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		recorder = history.NewSQLiteRepository(db.DB)
	}

	fmt.Fprintf(out, "TAS5805M console: device %s on %s at 0x%02X (session %s)\n",
		cfg.Device.ID, cfg.Device.Bus, cfg.Device.Address, sessionID)

	console := NewConsole(ConsoleOptions{
		Device:    hw.Device,
		Bus:       hw.Bus,
		Out:       out,
		Recorder:  recorder,
		DeviceID:  cfg.Device.ID,
		SessionID: sessionID,
	})

	err = console.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
