package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Device bus values.
const (
	// BusSim selects the in-memory register file instead of hardware.
	BusSim = "sim"

	// minJWTSecretLength is the shortest accepted HMAC secret.
	minJWTSecretLength = 32

	// metaDelayRegister is the table offset reserved for delay directives.
	metaDelayRegister = 0xFE
)

// Config is the root configuration for the amplifier bridge.
type Config struct {
	Bridge   BridgeConfig   `yaml:"bridge"`
	Device   DeviceConfig   `yaml:"device"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	API      APIConfig      `yaml:"api"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// BridgeConfig identifies the bridge on the MQTT bus.
type BridgeConfig struct {
	ID             string `yaml:"id"`
	HealthInterval int    `yaml:"health_interval"` // seconds
}

// DeviceConfig describes the amplifier and how it is wired.
type DeviceConfig struct {
	// ID is the Gray Logic device identifier used in topics.
	ID string `yaml:"id"`

	// Bus is an i2c-dev node (/dev/i2c-1) or "sim".
	Bus string `yaml:"bus"`

	// Address is the 7-bit I2C address (0x2C-0x2F).
	Address int `yaml:"address"`

	// EnableGPIO is the GPIO line driving PDN. -1 disables the reset pulse.
	EnableGPIO int `yaml:"enable_gpio"`

	ResetPulseMS   int `yaml:"reset_pulse_ms"`
	SettleDelayMS  int `yaml:"settle_delay_ms"`   // 0 skips the settle wait
	MaxDelayStepMS int `yaml:"max_delay_step_ms"` // -1 disables the ceiling, 0 is rejected

	// Readback seeds volume and gain from the hardware after init.
	Readback bool `yaml:"readback"`

	// TraceFile, if set, records every register transaction as CBOR.
	TraceFile string `yaml:"trace_file"`

	// InitTable replaces the built-in register table.
	InitTable []TableEntry `yaml:"init_table"`
}

// TableEntry is one step of a custom init table: a write (reg, value) or a
// delay (delay_ms).
type TableEntry struct {
	Register *int `yaml:"reg,omitempty"`
	Value    int  `yaml:"value,omitempty"`
	DelayMS  *int `yaml:"delay_ms,omitempty"`
}

// ResetPulse returns the enable pulse low time.
func (d DeviceConfig) ResetPulse() time.Duration {
	return time.Duration(d.ResetPulseMS) * time.Millisecond
}

// SettleDelay returns the wait before the table is applied.
func (d DeviceConfig) SettleDelay() time.Duration {
	return time.Duration(d.SettleDelayMS) * time.Millisecond
}

// MaxDelayStep returns the delay ceiling. Negative disables it.
func (d DeviceConfig) MaxDelayStep() time.Duration {
	return time.Duration(d.MaxDelayStepMS) * time.Millisecond
}

// DatabaseConfig contains SQLite settings for the operation log.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// InfluxDBConfig contains InfluxDB telemetry settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig contains the local HTTP API settings.
type APIConfig struct {
	Enabled   bool             `yaml:"enabled"`
	Host      string           `yaml:"host"`
	Port      int              `yaml:"port"`
	Timeouts  APITimeoutConfig `yaml:"timeouts"`
	JWT       JWTConfig        `yaml:"jwt"`
	WebSocket WebSocketConfig  `yaml:"websocket"`
}

// APITimeoutConfig contains HTTP server timeouts in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// JWTConfig contains bearer token settings. An empty secret disables
// authentication, which is only sensible on a bench.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"` // minutes
}

// WebSocketConfig contains state push settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"` // seconds
	PongTimeout    int `yaml:"pong_timeout"`  // seconds
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads the YAML file at path, applies environment overrides and
// validates the result.
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If the file cannot be read, parsed, or fails validation
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Default returns the built-in configuration: a simulated amplifier at 0x2D
// with no enable line.
func Default() *Config {
	return &Config{
		Bridge: BridgeConfig{
			ID:             "amp",
			HealthInterval: 30,
		},
		Device: DeviceConfig{
			ID:             "amp-1",
			Bus:            BusSim,
			Address:        0x2D,
			EnableGPIO:     -1,
			ResetPulseMS:   10,
			SettleDelayMS:  100,
			MaxDelayStepMS: 5,
			Readback:       true,
		},
		Database: DatabaseConfig{
			Path:        "./data/amp.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-amp",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8089,
			Timeouts: APITimeoutConfig{
				Read:  10,
				Write: 10,
				Idle:  60,
			},
			JWT: JWTConfig{
				AccessTokenTTL: 15,
			},
			WebSocket: WebSocketConfig{
				MaxMessageSize: 4096,
				PingInterval:   30,
				PongTimeout:    10,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies GRAYLOGIC_AMP_SECTION_KEY variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GRAYLOGIC_AMP_DEVICE_BUS"); v != "" {
		cfg.Device.Bus = v
	}
	if v := os.Getenv("GRAYLOGIC_AMP_DEVICE_ADDRESS"); v != "" {
		if addr, err := strconv.ParseUint(v, 0, 8); err == nil {
			cfg.Device.Address = int(addr)
		}
	}
	if v := os.Getenv("GRAYLOGIC_AMP_DEVICE_TRACE_FILE"); v != "" {
		cfg.Device.TraceFile = v
	}

	if v := os.Getenv("GRAYLOGIC_AMP_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("GRAYLOGIC_AMP_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRAYLOGIC_AMP_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYLOGIC_AMP_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("GRAYLOGIC_AMP_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("GRAYLOGIC_AMP_JWT_SECRET"); v != "" {
		cfg.API.JWT.Secret = v
	}

	if v := os.Getenv("GRAYLOGIC_AMP_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration and reports every error found.
func (c *Config) Validate() error {
	var errs []string

	if c.Bridge.ID == "" {
		errs = append(errs, "bridge.id is required")
	}
	if c.Bridge.HealthInterval <= 0 {
		errs = append(errs, "bridge.health_interval must be positive")
	}

	errs = append(errs, c.validateDevice()...)

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when enabled")
		}
	}

	if c.API.Enabled {
		if c.API.Port < 1 || c.API.Port > 65535 {
			errs = append(errs, "api.port must be between 1 and 65535")
		}
		if c.API.JWT.Secret != "" && len(c.API.JWT.Secret) < minJWTSecretLength {
			errs = append(errs, fmt.Sprintf("api.jwt.secret must be at least %d characters", minJWTSecretLength))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateDevice() []string {
	var errs []string
	d := c.Device

	if d.ID == "" {
		errs = append(errs, "device.id is required")
	}
	if d.Bus == "" {
		errs = append(errs, "device.bus is required (i2c-dev path or \"sim\")")
	}
	if d.Address < 0x08 || d.Address > 0x77 {
		errs = append(errs, fmt.Sprintf("device.address 0x%02X is outside the 7-bit range", d.Address))
	}
	if d.EnableGPIO < -1 {
		errs = append(errs, "device.enable_gpio must be -1 (disabled) or a line number")
	}
	if d.ResetPulseMS < 0 {
		errs = append(errs, "device.reset_pulse_ms must not be negative")
	}
	if d.SettleDelayMS < 0 {
		errs = append(errs, "device.settle_delay_ms must not be negative")
	}
	if d.MaxDelayStepMS == 0 || d.MaxDelayStepMS < -1 {
		errs = append(errs, "device.max_delay_step_ms must be positive or -1 (disabled)")
	}

	for i, e := range d.InitTable {
		switch {
		case e.Register != nil && e.DelayMS != nil:
			errs = append(errs, fmt.Sprintf("device.init_table[%d]: reg and delay_ms are exclusive", i))
		case e.Register == nil && e.DelayMS == nil:
			errs = append(errs, fmt.Sprintf("device.init_table[%d]: reg or delay_ms is required", i))
		case e.Register != nil:
			if *e.Register < 0 || *e.Register > 0xFF || *e.Register == metaDelayRegister {
				errs = append(errs, fmt.Sprintf("device.init_table[%d]: invalid register %d", i, *e.Register))
			}
			if e.Value < 0 || e.Value > 0xFF {
				errs = append(errs, fmt.Sprintf("device.init_table[%d]: value %d out of range", i, e.Value))
			}
		default:
			if *e.DelayMS < 0 || *e.DelayMS > 0xFF {
				errs = append(errs, fmt.Sprintf("device.init_table[%d]: delay_ms %d out of range", i, *e.DelayMS))
			}
		}
	}
	return errs
}

// HealthInterval returns the health publish interval.
func (c *Config) HealthInterval() time.Duration {
	return time.Duration(c.Bridge.HealthInterval) * time.Second
}
