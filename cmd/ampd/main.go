// Gray Logic Amp - TAS5805M amplifier bridge
//
// ampd brings up one TAS5805M class-D amplifier over I2C, applies its
// register table and exposes volume, mute, gain and deep sleep control on
// the Gray Logic MQTT bus. Every operation is logged to SQLite. When
// enabled, state is written to InfluxDB and a local HTTP API with a
// WebSocket state feed is served.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	_ "github.com/nerrad567/gray-logic-amp/migrations"

	"github.com/nerrad567/gray-logic-amp/internal/api"
	"github.com/nerrad567/gray-logic-amp/internal/bridges/amp"
	"github.com/nerrad567/gray-logic-amp/internal/history"
	"github.com/nerrad567/gray-logic-amp/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-amp/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-amp/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-amp/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-amp/internal/infrastructure/mqtt"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/ampd.yaml"

// configEnv overrides defaultConfigPath.
const configEnv = "GRAYLOGIC_AMP_CONFIG"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Gray Logic Amp",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Operation log
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	historyRepo := history.NewSQLiteRepository(db.DB)

	// MQTT, with a Last Will so Core sees the bridge go offline
	will, err := amp.WillPayload(cfg.Bridge.ID)
	if err != nil {
		return fmt.Errorf("encoding last will: %w", err)
	}
	mqttClient, err := mqtt.Connect(cfg.MQTT,
		mqtt.WithWill(mqtt.Will{
			Topic:    amp.HealthTopic(),
			Payload:  will,
			QoS:      1,
			Retained: true,
		}),
		mqtt.WithLogger(log),
	)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// InfluxDB (optional)
	influxClient, err := connectInflux(cfg.InfluxDB)
	if err != nil {
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	}
	var telemetry amp.Telemetry
	if influxClient != nil {
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		telemetry = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	// The hub must exist before the bridge so init state reaches the feed.
	var hub *api.Hub
	var observer amp.StateObserver
	if cfg.API.Enabled {
		hub = api.NewHub(cfg.API.WebSocket, log)
		go hub.Run(ctx)
		observer = hub
	}

	bridge, hw, err := startBridge(ctx, cfg, mqttClient, historyRepo, telemetry, observer, log)
	if err != nil {
		return fmt.Errorf("starting amplifier bridge: %w", err)
	}
	defer func() {
		log.Info("stopping amplifier bridge")
		bridge.Stop()
		if closeErr := hw.Close(); closeErr != nil {
			log.Error("error closing amplifier bus", "error", closeErr)
		}
	}()

	if cfg.API.Enabled {
		apiServer, apiErr := api.New(api.Deps{
			Config:  cfg.API,
			Logger:  log,
			Amp:     bridge,
			History: historyRepo,
			Hub:     hub,
			Version: version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := apiServer.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("HTTP API disabled")
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	log.Info("Gray Logic Amp stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses GRAYLOGIC_AMP_CONFIG if set, otherwise the default.
func getConfigPath() string {
	if path := os.Getenv(configEnv); path != "" {
		return path
	}
	return defaultConfigPath
}

// connectInflux returns nil without error when InfluxDB is disabled.
func connectInflux(cfg config.InfluxDBConfig) (*influxdb.Client, error) {
	client, err := influxdb.Connect(cfg)
	if errors.Is(err, influxdb.ErrDisabled) {
		return nil, nil
	}
	return client, err
}

// healthCheck verifies the infrastructure connections.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}

// startBridge opens the amplifier hardware and starts the MQTT bridge.
// Device initialisation runs in the background; a failed init leaves the
// bridge running and reporting DEVICE_FAILED.
func startBridge(ctx context.Context, cfg *config.Config, mqttClient *mqtt.Client, historyRepo amp.History, telemetry amp.Telemetry, observer amp.StateObserver, log *logging.Logger) (*amp.Bridge, *amp.Hardware, error) {
	hwLog := log.With("device_id", cfg.Device.ID)
	sessionID := uuid.NewString()

	hw, err := amp.OpenHardware(cfg.Device, amp.HardwareOptions{
		SessionID: sessionID,
		Logger:    hwLog,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("opening amplifier: %w", err)
	}
	log.Info("amplifier bus opened",
		"bus", cfg.Device.Bus,
		"address", fmt.Sprintf("0x%02X", cfg.Device.Address),
		"enable_gpio", cfg.Device.EnableGPIO,
		"trace_file", cfg.Device.TraceFile,
	)

	bridge, err := amp.NewBridge(amp.Options{
		BridgeID:       cfg.Bridge.ID,
		DeviceID:       cfg.Device.ID,
		Version:        version,
		SessionID:      sessionID,
		HealthInterval: cfg.HealthInterval(),
		Device:         hw.Device,
		MQTTClient:     &mqttBridgeAdapter{client: mqttClient},
		History:        historyRepo,
		Telemetry:      telemetry,
		Observer:       observer,
		Logger:         hwLog,
	})
	if err != nil {
		_ = hw.Close()
		return nil, nil, fmt.Errorf("creating bridge: %w", err)
	}

	if err := bridge.Start(ctx); err != nil {
		bridge.Stop()
		_ = hw.Close()
		return nil, nil, fmt.Errorf("starting bridge: %w", err)
	}
	log.Info("amplifier bridge started", "session_id", sessionID)

	return bridge, hw, nil
}

// mqttBridgeAdapter adapts the infrastructure MQTT client to the bridge's
// MQTTClient interface. The difference is the Subscribe handler signature:
// - Infrastructure mqtt: func(topic, payload []byte) error
// - Amp bridge expects: func(topic, payload []byte)
type mqttBridgeAdapter struct {
	client *mqtt.Client
}

// Publish implements amp.MQTTClient.
func (a *mqttBridgeAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}

// Subscribe implements amp.MQTTClient.
func (a *mqttBridgeAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	return a.client.Subscribe(topic, qos, func(t string, p []byte) error {
		handler(t, p)
		return nil
	})
}

// IsConnected implements amp.MQTTClient.
func (a *mqttBridgeAdapter) IsConnected() bool {
	return a.client.IsConnected()
}
