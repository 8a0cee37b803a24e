// Package mqtt provides the broker connection for the amplifier bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing with QoS and retain flags
//   - Subscriptions that survive reconnects
//   - An optional Last Will for offline detection
//
// # Architecture
//
// The bridge sits between the Gray Logic core and one amplifier:
//
//	Gray Logic Core ↔ MQTT Broker ↔ amp bridge ↔ I2C ↔ TAS5805M
//
// # Security Considerations
//
//   - Enable TLS outside the lab (cfg.Broker.TLS=true)
//   - Supply the password through GRAYLOGIC_AMP_MQTT_PASSWORD
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, mqtt.WithWill(will), mqtt.WithLogger(log))
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.BridgeCommands("amp"), 1, handler)
package mqtt
