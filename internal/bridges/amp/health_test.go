package amp

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"
)

// mockPublisher implements HealthPublisher for testing.
type mockPublisher struct {
	mu        sync.Mutex
	connected bool
	messages  []publishedMessage
}

type publishedMessage struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

func newMockPublisher(connected bool) *mockPublisher {
	return &mockPublisher{connected: connected}
}

func (m *mockPublisher) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, publishedMessage{
		topic:    topic,
		payload:  payload,
		qos:      qos,
		retained: retained,
	})
	return nil
}

func (m *mockPublisher) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *mockPublisher) getMessages() []publishedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]publishedMessage, len(m.messages))
	copy(result, m.messages)
	return result
}

// mockSource implements HealthSource for testing.
type mockSource struct {
	device DeviceHealth
	stats  BridgeStatistics
}

func (m *mockSource) DeviceHealth() DeviceHealth   { return m.device }
func (m *mockSource) Statistics() BridgeStatistics { return m.stats }

func decodeHealth(t *testing.T, p []byte) HealthMessage {
	t.Helper()
	var h HealthMessage
	if err := json.Unmarshal(p, &h); err != nil {
		t.Fatalf("failed to unmarshal health message: %v", err)
	}
	return h
}

func TestNewHealthReporter(t *testing.T) {
	hr := NewHealthReporter(HealthReporterConfig{
		BridgeID:  "test-bridge",
		Version:   "1.0.0",
		SessionID: "s-1",
		Interval:  5 * time.Second,
	})

	if hr.bridgeID != "test-bridge" {
		t.Errorf("bridgeID = %q, want test-bridge", hr.bridgeID)
	}
	if hr.sessionID != "s-1" {
		t.Errorf("sessionID = %q, want s-1", hr.sessionID)
	}
	if hr.interval != 5*time.Second {
		t.Errorf("interval = %v, want 5s", hr.interval)
	}

	if def := NewHealthReporter(HealthReporterConfig{BridgeID: "b"}); def.interval != 30*time.Second {
		t.Errorf("default interval = %v, want 30s", def.interval)
	}
}

func TestHealthReporterPublishNow(t *testing.T) {
	pub := newMockPublisher(true)
	src := &mockSource{
		device: DeviceHealth{DeviceID: "amp-1", Initialised: true, RegistersConfigured: 20},
		stats:  BridgeStatistics{CommandsReceived: 7, CommandsFailed: 1},
	}

	hr := NewHealthReporter(HealthReporterConfig{
		BridgeID:  "health-test",
		Version:   "2.0.0",
		SessionID: "s-1",
		Publisher: pub,
		Source:    src,
	})

	if err := hr.PublishNow(); err != nil {
		t.Fatalf("PublishNow failed: %v", err)
	}

	messages := pub.getMessages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	msg := messages[0]
	if msg.topic != "graylogic/health/amp" {
		t.Errorf("topic = %q, want graylogic/health/amp", msg.topic)
	}
	if msg.qos != 1 || !msg.retained {
		t.Errorf("qos/retained = %d/%v, want 1/true", msg.qos, msg.retained)
	}

	health := decodeHealth(t, msg.payload)
	if health.Status != HealthHealthy {
		t.Errorf("Status = %q, want %q", health.Status, HealthHealthy)
	}
	if health.Version != "2.0.0" || health.SessionID != "s-1" {
		t.Errorf("Version/SessionID = %q/%q", health.Version, health.SessionID)
	}
	if health.Device == nil || health.Device.RegistersConfigured != 20 {
		t.Errorf("Device = %+v", health.Device)
	}
	if health.Statistics == nil || health.Statistics.CommandsReceived != 7 {
		t.Errorf("Statistics = %+v", health.Statistics)
	}
}

func TestHealthReporterDetermineStatus(t *testing.T) {
	tests := []struct {
		name      string
		connected bool
		device    DeviceHealth
		want      HealthStatus
	}{
		{"healthy", true, DeviceHealth{Initialised: true}, HealthHealthy},
		{"initialising", true, DeviceHealth{}, HealthStarting},
		{"failed", true, DeviceHealth{Failed: true}, HealthUnhealthy},
		{"mqtt disconnected", false, DeviceHealth{Initialised: true}, HealthDegraded},
		{"runtime bus error stays healthy", true, DeviceHealth{Initialised: true, LastErrorKind: "write_register_failed"}, HealthHealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hr := NewHealthReporter(HealthReporterConfig{
				BridgeID:  "b",
				Publisher: newMockPublisher(tt.connected),
				Source:    &mockSource{device: tt.device},
			})
			if got, _ := hr.determineStatus(); got != tt.want {
				t.Errorf("determineStatus() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHealthReporterPublishStarting(t *testing.T) {
	pub := newMockPublisher(true)
	hr := NewHealthReporter(HealthReporterConfig{BridgeID: "b", Publisher: pub})

	if err := hr.PublishStarting(); err != nil {
		t.Fatalf("PublishStarting failed: %v", err)
	}

	health := decodeHealth(t, pub.getMessages()[0].payload)
	if health.Status != HealthStarting {
		t.Errorf("Status = %q, want %q", health.Status, HealthStarting)
	}
	if health.Reason != "bridge starting" {
		t.Errorf("Reason = %q", health.Reason)
	}
}

func TestHealthReporterStartStop(t *testing.T) {
	pub := newMockPublisher(true)
	hr := NewHealthReporter(HealthReporterConfig{
		BridgeID:  "lifecycle-test",
		Interval:  20 * time.Millisecond,
		Publisher: pub,
		Source:    &mockSource{device: DeviceHealth{Initialised: true}},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hr.Start(ctx)
	time.Sleep(100 * time.Millisecond)
	hr.Stop()
	hr.Stop()

	messages := pub.getMessages()
	if len(messages) < 2 {
		t.Fatalf("expected at least 2 messages, got %d", len(messages))
	}

	last := decodeHealth(t, messages[len(messages)-1].payload)
	if last.Status != HealthStopping {
		t.Errorf("last Status = %q, want %q", last.Status, HealthStopping)
	}
}

func TestHealthReporterWithNoPublisher(t *testing.T) {
	hr := NewHealthReporter(HealthReporterConfig{BridgeID: "no-publisher"})

	if err := hr.PublishNow(); err != nil {
		t.Errorf("PublishNow with nil publisher should not error: %v", err)
	}
}
