// Package logging provides structured logging for the amplifier bridge.
//
// It wraps log/slog so every entry carries the service name and build
// version, and the driver, bridge and console all log the same way.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, discard
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("amplifier ready", "device_id", "amp-1")
//	logger.Error("init failed", "error", err)
//
// *Logger satisfies the Logger interfaces of the tas5805m driver and the amp
// bridge, so it can be passed to both directly.
//
// Never log MQTT passwords or InfluxDB tokens.
package logging
