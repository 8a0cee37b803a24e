// Package config loads and validates the amplifier bridge configuration.
//
// Loading order:
//  1. Built-in defaults
//  2. YAML file values
//  3. GRAYLOGIC_AMP_* environment variables
//
// Validate collects every problem it finds rather than stopping at the first,
// so a broken file can be fixed in one pass.
//
// Security Considerations:
//   - Broker passwords and InfluxDB tokens should come from the environment
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("/etc/graylogic/amp.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Device.Bus)
package config
