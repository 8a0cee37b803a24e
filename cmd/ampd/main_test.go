package main

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-amp/internal/infrastructure/config"
)

// writeConfig writes a test config file and points GRAYLOGIC_AMP_CONFIG at it.
func writeConfig(t *testing.T, content string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ampd.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv(configEnv, path)
}

func testConfig(dbPath string, mqttPort string) string {
	return `
bridge:
  id: amp-test
  health_interval: 30

device:
  id: amp-lounge
  bus: sim
  address: 0x2D
  enable_gpio: -1
  settle_delay_ms: 0

database:
  path: "` + dbPath + `"
  wal_mode: true
  busy_timeout: 5

mqtt:
  broker:
    host: "127.0.0.1"
    port: ` + mqttPort + `
    client_id: "ampd-test"
  qos: 1
  reconnect:
    initial_delay: 1
    max_delay: 5

influxdb:
  enabled: false

logging:
  level: warn
  format: text
  output: discard
`
}

// TestRun_InvalidConfig verifies run fails with an invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv(configEnv, "/nonexistent/path/ampd.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
	if !strings.Contains(err.Error(), "loading config") {
		t.Errorf("error = %v, want loading config failure", err)
	}
}

// TestRun_MissingDatabasePath verifies validation rejects an empty database path.
func TestRun_MissingDatabasePath(t *testing.T) {
	writeConfig(t, testConfig("", "1883"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with empty database path")
	}
}

// TestRun_MQTTUnavailable verifies run fails cleanly when the broker is down.
func TestRun_MQTTUnavailable(t *testing.T) {
	writeConfig(t, testConfig(filepath.Join(t.TempDir(), "amp.db"), "19999"))

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail without a broker")
	}
	if !strings.Contains(err.Error(), "MQTT") {
		t.Errorf("error = %v, want MQTT failure", err)
	}
}

// TestRun_SuccessfulStartupAndShutdown runs the bridge against a simulated
// amplifier. Requires an MQTT broker at 127.0.0.1:1883.
func TestRun_SuccessfulStartupAndShutdown(t *testing.T) {
	conn, err := net.DialTimeout("tcp", "127.0.0.1:1883", 500*time.Millisecond)
	if err != nil {
		t.Skip("MQTT broker not available at 127.0.0.1:1883")
	}
	conn.Close()

	dbPath := filepath.Join(t.TempDir(), "amp.db")
	writeConfig(t, testConfig(dbPath, "1883"))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := run(ctx); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database not created: %v", err)
	}
}

// TestGetConfigPath verifies the default path and environment override.
func TestGetConfigPath(t *testing.T) {
	t.Setenv(configEnv, "")
	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}

	expected := "/custom/path/ampd.yaml"
	t.Setenv(configEnv, expected)
	if path := getConfigPath(); path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

// TestConnectInflux_Disabled verifies a disabled InfluxDB is not an error.
func TestConnectInflux_Disabled(t *testing.T) {
	client, err := connectInflux(config.InfluxDBConfig{Enabled: false})
	if err != nil {
		t.Fatalf("connectInflux() error = %v", err)
	}
	if client != nil {
		t.Error("connectInflux() should return nil client when disabled")
	}
}
