package amp

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// defaultHealthInterval is used when no interval is configured.
const defaultHealthInterval = 30 * time.Second

// HealthReporter publishes retained health messages at a fixed interval.
type HealthReporter struct {
	bridgeID  string
	version   string
	sessionID string
	startTime time.Time
	interval  time.Duration
	publisher HealthPublisher
	source    HealthSource

	// Shutdown coordination (stopOnce prevents double-close panics)
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// HealthPublisher is the interface for publishing health messages.
type HealthPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// HealthSource supplies the device and counter parts of a health message.
// Implementations must not block on device I/O.
type HealthSource interface {
	DeviceHealth() DeviceHealth
	Statistics() BridgeStatistics
}

// HealthReporterConfig holds configuration for the health reporter.
type HealthReporterConfig struct {
	BridgeID  string
	Version   string
	SessionID string

	// Interval is how often to publish. Default: 30 seconds.
	Interval time.Duration

	Publisher HealthPublisher
	Source    HealthSource
}

// NewHealthReporter creates a reporter. Call Start to begin reporting.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultHealthInterval
	}

	return &HealthReporter{
		bridgeID:  cfg.BridgeID,
		version:   cfg.Version,
		sessionID: cfg.SessionID,
		startTime: time.Now(),
		interval:  interval,
		publisher: cfg.Publisher,
		source:    cfg.Source,
		done:      make(chan struct{}),
	}
}

// Start begins periodic reporting until ctx is cancelled or Stop is called.
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop ends reporting and publishes a final "stopping" status.
// Safe to call multiple times.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		//nolint:errcheck // Best-effort during shutdown, nothing we can do if it fails
		h.publishStatus(HealthStopping, "bridge stopping")
	})
}

// SetLogger sets the logger for this reporter.
func (h *HealthReporter) SetLogger(logger Logger) {
	h.loggerMu.Lock()
	h.logger = logger
	h.loggerMu.Unlock()
}

// PublishStarting publishes a "starting" status.
func (h *HealthReporter) PublishStarting() error {
	return h.publishStatus(HealthStarting, "bridge starting")
}

// PublishNow publishes the current status immediately.
func (h *HealthReporter) PublishNow() error {
	status, reason := h.determineStatus()
	return h.publishStatus(status, reason)
}

func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			if err := h.PublishNow(); err != nil {
				h.logError("failed to publish health", err)
			}
		}
	}
}

// determineStatus evaluates the bridge status from the broker connection and
// the device init state.
func (h *HealthReporter) determineStatus() (HealthStatus, string) {
	if h.publisher == nil || !h.publisher.IsConnected() {
		return HealthDegraded, "MQTT disconnected"
	}
	if h.source == nil {
		return HealthHealthy, ""
	}

	dev := h.source.DeviceHealth()
	switch {
	case dev.Failed:
		return HealthUnhealthy, "amplifier configuration failed"
	case !dev.Initialised:
		return HealthStarting, "amplifier initialising"
	default:
		return HealthHealthy, ""
	}
}

func (h *HealthReporter) publishStatus(status HealthStatus, reason string) error {
	if h.publisher == nil {
		return nil
	}

	var device *DeviceHealth
	var stats *BridgeStatistics
	if h.source != nil {
		d := h.source.DeviceHealth()
		s := h.source.Statistics()
		device, stats = &d, &s
	}

	msg := NewHealthMessage(h.bridgeID, h.version, h.sessionID, status, device, stats, h.startTime)
	msg.Reason = reason

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return h.publisher.Publish(HealthTopic(), payload, 1, true)
}

func (h *HealthReporter) logError(msg string, err error) {
	h.loggerMu.RLock()
	logger := h.logger
	h.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}
