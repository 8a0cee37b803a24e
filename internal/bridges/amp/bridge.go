package amp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-amp/internal/history"
	"github.com/nerrad567/gray-logic-amp/internal/tas5805m"
)

// Bridge operation constants.
const (
	// minTopicParts is the minimum number of parts in a valid MQTT topic.
	minTopicParts = 4

	// historyTimeout bounds a single history write.
	historyTimeout = 2 * time.Second
)

// Bridge connects one amplifier to MQTT.
//
// Thread Safety: All methods are safe for concurrent use. Driver calls are
// serialised by devMu; the driver itself has no locking.
type Bridge struct {
	bridgeID  string
	deviceID  string
	sessionID string

	mqtt      MQTTClient
	history   History
	telemetry Telemetry
	observer  StateObserver
	health    *HealthReporter

	dev   *tas5805m.Device
	devMu sync.Mutex

	// snapshot is refreshed after every driver call so health and
	// diagnostics never wait on the bus.
	snapshot   tas5805m.Status
	snapshotMu sync.RWMutex

	// ready is closed once Init has returned; initErr is its result.
	ready   chan struct{}
	initErr error

	commandsReceived atomic.Uint64
	commandsFailed   atomic.Uint64
	requestsServed   atomic.Uint64
	errorCount       atomic.Uint64

	// Shutdown coordination
	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
	ctx       context.Context
	ctxCancel context.CancelFunc

	logger   Logger
	loggerMu sync.RWMutex
}

// Logger is the logging interface used by the bridge.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// MQTTClient is the interface for MQTT operations.
type MQTTClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool
}

// History records operation outcomes.
// Satisfied by *history.SQLiteRepository. Optional.
type History interface {
	Record(ctx context.Context, event *history.Event) error
}

// Telemetry receives state snapshots and bus failures.
// Satisfied by *influxdb.Client. Optional.
type Telemetry interface {
	WriteAmpState(deviceID string, fields map[string]any)
	WriteAmpError(deviceID, kind, busCode string)
}

// StateObserver is notified of every published state.
// Satisfied by *api.Hub. Optional.
type StateObserver interface {
	BroadcastState(msg StateMessage)
}

// Options holds configuration for creating a bridge.
type Options struct {
	// BridgeID identifies the bridge in health messages.
	BridgeID string

	// DeviceID is the Gray Logic ID of the amplifier.
	DeviceID string

	// Version is reported in health messages.
	Version string

	// SessionID tags history rows and bus traces. Generated if empty.
	SessionID string

	// HealthInterval defaults to 30 seconds.
	HealthInterval time.Duration

	// Device is the driver. It must not have been used yet.
	Device *tas5805m.Device

	MQTTClient MQTTClient
	History    History
	Telemetry  Telemetry
	Observer   StateObserver
	Logger     Logger
}

// NewBridge creates a bridge. Call Start to subscribe and initialise the device.
func NewBridge(opts Options) (*Bridge, error) {
	if opts.BridgeID == "" {
		return nil, fmt.Errorf("bridge ID is required")
	}
	if opts.DeviceID == "" {
		return nil, fmt.Errorf("device ID is required")
	}
	if opts.Device == nil {
		return nil, fmt.Errorf("device is required")
	}
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}

	sessionID := opts.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	ctx, ctxCancel := context.WithCancel(context.Background())

	b := &Bridge{
		bridgeID:  opts.BridgeID,
		deviceID:  opts.DeviceID,
		sessionID: sessionID,
		mqtt:      opts.MQTTClient,
		history:   opts.History,
		telemetry: opts.Telemetry,
		observer:  opts.Observer,
		dev:       opts.Device,
		snapshot:  opts.Device.Status(),
		ready:     make(chan struct{}),
		done:      make(chan struct{}),
		ctx:       ctx,
		ctxCancel: ctxCancel,
		logger:    opts.Logger,
	}

	b.health = NewHealthReporter(HealthReporterConfig{
		BridgeID:  opts.BridgeID,
		Version:   opts.Version,
		SessionID: sessionID,
		Interval:  opts.HealthInterval,
		Publisher: opts.MQTTClient,
		Source:    b,
	})
	if opts.Logger != nil {
		b.health.SetLogger(opts.Logger)
	}

	return b, nil
}

// Start subscribes to the command and request topics, starts health
// reporting and runs Init in the background. Only the first call has effect.
func (b *Bridge) Start(ctx context.Context) error {
	var err error
	b.startOnce.Do(func() {
		err = b.start(ctx)
	})
	return err
}

func (b *Bridge) start(ctx context.Context) error {
	if err := b.health.PublishStarting(); err != nil {
		b.logError("failed to publish starting status", err)
	}

	commandTopic := CommandTopic(b.deviceID)
	if err := b.mqtt.Subscribe(commandTopic, 1, b.handleMQTTMessage); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	b.logInfo("subscribed to commands", "topic", commandTopic)

	requestTopic := RequestSubscribeTopic()
	if err := b.mqtt.Subscribe(requestTopic, 1, b.handleMQTTMessage); err != nil {
		return fmt.Errorf("subscribe to requests: %w", err)
	}
	b.logInfo("subscribed to requests", "topic", requestTopic)

	b.health.Start(ctx)

	b.wg.Add(1)
	go b.runInit()

	b.logInfo("bridge started",
		"bridge_id", b.bridgeID,
		"device_id", b.deviceID,
		"session_id", b.sessionID)
	return nil
}

// Stop cancels a running Init, stops health reporting and waits for
// background work.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		b.ctxCancel()
		b.wg.Wait()
		b.health.Stop()
		b.logInfo("bridge stopped")
	})
}

// Ready is closed once initialisation has finished, successfully or not.
func (b *Bridge) Ready() <-chan struct{} {
	return b.ready
}

// InitError returns the result of initialisation. Only meaningful after Ready.
func (b *Bridge) InitError() error {
	select {
	case <-b.ready:
		return b.initErr
	default:
		return nil
	}
}

// SessionID returns the ID tagging this run's history and trace events.
func (b *Bridge) SessionID() string {
	return b.sessionID
}

// Snapshot returns the last known device status without bus I/O.
func (b *Bridge) Snapshot() tas5805m.Status {
	b.snapshotMu.RLock()
	defer b.snapshotMu.RUnlock()
	return b.snapshot
}

// DeviceHealth implements HealthSource.
func (b *Bridge) DeviceHealth() DeviceHealth {
	s := b.Snapshot()
	h := DeviceHealth{
		DeviceID:            b.deviceID,
		Initialised:         s.Initialised,
		Failed:              s.Failed,
		RegistersConfigured: s.RegistersConfigured,
	}
	if s.LastErrorKind != tas5805m.ErrorNone {
		h.LastErrorKind = s.LastErrorKind.String()
		h.LastBusCode = s.LastBusCode.String()
	}
	return h
}

// Statistics implements HealthSource.
func (b *Bridge) Statistics() BridgeStatistics {
	return BridgeStatistics{
		CommandsReceived: b.commandsReceived.Load(),
		CommandsFailed:   b.commandsFailed.Load(),
		RequestsServed:   b.requestsServed.Load(),
		Errors:           b.errorCount.Load(),
	}
}

// runInit initialises the device once and reports the outcome.
func (b *Bridge) runInit() {
	defer b.wg.Done()
	defer close(b.ready)

	b.devMu.Lock()
	err := b.dev.Init(b.ctx)
	status := b.refreshSnapshot()
	b.devMu.Unlock()

	b.initErr = err
	tas5805m.LogConfig(b.getLogger(), status)

	b.record(history.ActionInit, history.SourceStartup,
		map[string]any{"registers_configured": status.RegistersConfigured}, err)

	if err != nil {
		b.errorCount.Add(1)
		b.writeTelemetryError(err)
	} else {
		b.publishState(status)
	}

	if err := b.health.PublishNow(); err != nil {
		b.logError("failed to publish health", err)
	}
}

// refreshSnapshot copies the device status. Caller must hold devMu.
func (b *Bridge) refreshSnapshot() tas5805m.Status {
	s := b.dev.Status()
	b.snapshotMu.Lock()
	b.snapshot = s
	b.snapshotMu.Unlock()
	return s
}

// waitReady blocks until Init has returned. False if the bridge stopped first.
func (b *Bridge) waitReady() bool {
	select {
	case <-b.ready:
		return true
	case <-b.done:
		return false
	}
}

// handleMQTTMessage routes incoming MQTT messages.
// Topic format: graylogic/{command|request}/amp/{id}
func (b *Bridge) handleMQTTMessage(topic string, payload []byte) {
	parts := strings.Split(topic, "/")
	if len(parts) < minTopicParts {
		b.errorCount.Add(1)
		b.logError("invalid topic format", fmt.Errorf("topic: %s", topic))
		return
	}

	switch parts[1] {
	case "command":
		b.handleCommand(parts[3], payload)
	case "request":
		b.handleRequest(parts[3], payload)
	default:
		b.errorCount.Add(1)
		b.logError("unknown message type", fmt.Errorf("type: %s", parts[1]))
	}
}

// commandActions maps command names to history actions.
var commandActions = map[string]string{
	CommandSetVolume: history.ActionSetVolume,
	CommandMute:      history.ActionMute,
	CommandUnmute:    history.ActionUnmute,
	CommandSetGain:   history.ActionSetGain,
	CommandSleep:     history.ActionSleep,
	CommandWake:      history.ActionWake,
}

func (b *Bridge) handleCommand(topicDeviceID string, payload []byte) {
	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		b.errorCount.Add(1)
		b.logError("failed to parse command", err)
		return
	}
	if cmd.DeviceID == "" {
		cmd.DeviceID = topicDeviceID
	}
	b.commandsReceived.Add(1)

	b.logInfo("received command",
		"command_id", cmd.ID,
		"device_id", cmd.DeviceID,
		"command", cmd.Command)

	if _, err := b.Execute(cmd, history.SourceMQTT); err != nil {
		if errors.Is(err, ErrBridgeStopping) {
			return
		}
		b.failCommand(cmd, err)
		return
	}
	b.publishAck(cmd)
}

// Execute runs cmd against the amplifier, records it in history and
// publishes the resulting state. It blocks until initialisation has
// finished. The returned state is valid even when err is non-nil.
func (b *Bridge) Execute(cmd CommandMessage, source string) (StateMessage, error) {
	if cmd.DeviceID != b.deviceID {
		return StateMessage{}, fmt.Errorf("%w: %s", ErrUnknownDevice, cmd.DeviceID)
	}
	if !b.waitReady() {
		return StateMessage{}, ErrBridgeStopping
	}

	status, err := b.executeCommand(cmd)

	if action, ok := commandActions[cmd.Command]; ok {
		b.record(action, source, commandDetails(cmd), err)
	}
	if err != nil {
		return NewStateMessage(b.deviceID, status), err
	}

	b.publishState(status)
	return NewStateMessage(b.deviceID, status), nil
}

// executeCommand runs one command against the device under devMu.
func (b *Bridge) executeCommand(cmd CommandMessage) (tas5805m.Status, error) {
	op, err := commandOp(cmd)
	if err != nil {
		return b.Snapshot(), err
	}

	b.devMu.Lock()
	defer b.devMu.Unlock()

	if b.dev.Failed() {
		return b.refreshSnapshot(), ErrDeviceFailed
	}

	err = op(b.dev)
	return b.refreshSnapshot(), err
}

// commandOp validates parameters and returns the driver call for cmd.
func commandOp(cmd CommandMessage) (func(*tas5805m.Device) error, error) {
	switch cmd.Command {
	case CommandSetVolume:
		v, err := floatParam(cmd.Parameters, "volume")
		if err != nil {
			return nil, err
		}
		if v < 0 || v > 1 {
			return nil, fmt.Errorf("%w: volume %v outside 0..1", ErrInvalidParameter, v)
		}
		return func(d *tas5805m.Device) error { return d.SetVolume(v) }, nil

	case CommandSetGain:
		level, err := intParam(cmd.Parameters, "level")
		if err != nil {
			return nil, err
		}
		if level < 0 || level > int(tas5805m.MaxGain) {
			return nil, fmt.Errorf("%w: gain level %d outside 0..%d", ErrInvalidParameter, level, tas5805m.MaxGain)
		}
		return func(d *tas5805m.Device) error { return d.SetGain(byte(level)) }, nil

	case CommandMute:
		return (*tas5805m.Device).SetMuteOn, nil
	case CommandUnmute:
		return (*tas5805m.Device).SetMuteOff, nil
	case CommandSleep:
		return (*tas5805m.Device).SetDeepSleepOn, nil
	case CommandWake:
		return (*tas5805m.Device).SetDeepSleepOff, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Command)
	}
}

func floatParam(params map[string]any, key string) (float64, error) {
	raw, ok := params[key]
	if !ok {
		return 0, fmt.Errorf("%w: %s is required", ErrInvalidParameter, key)
	}
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %w", ErrInvalidParameter, key, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: %s must be a number", ErrInvalidParameter, key)
	}
}

func intParam(params map[string]any, key string) (int, error) {
	f, err := floatParam(params, key)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %s must be an integer", ErrInvalidParameter, key)
	}
	return int(f), nil
}

func commandDetails(cmd CommandMessage) map[string]any {
	details := map[string]any{"command_id": cmd.ID}
	if cmd.Source != "" {
		details["origin"] = cmd.Source
	}
	if cmd.UserID != "" {
		details["user_id"] = cmd.UserID
	}
	if len(cmd.Parameters) > 0 {
		details["parameters"] = cmd.Parameters
	}
	return details
}

func (b *Bridge) failCommand(cmd CommandMessage, err error) {
	b.commandsFailed.Add(1)

	code := ErrorCode(err)
	busCode := BusCodeOf(err)
	b.publishAckError(cmd, code, err.Error(), busCode)

	if code == ErrCodeDeviceUnreachable {
		b.writeTelemetryError(err)
	}
}

// BusCodeOf returns the transport code name wrapped in err, or "".
func BusCodeOf(err error) string {
	var terr *tas5805m.TransportError
	if errors.As(err, &terr) {
		return terr.Code.String()
	}
	return ""
}

func (b *Bridge) publishAck(cmd CommandMessage) {
	payload, err := json.Marshal(NewAckMessage(cmd))
	if err != nil {
		b.logError("failed to marshal ack", err)
		return
	}
	if err := b.mqtt.Publish(AckTopic(cmd.DeviceID), payload, 1, false); err != nil {
		b.logError("failed to publish ack", err)
	}
}

func (b *Bridge) publishAckError(cmd CommandMessage, code, message, busCode string) {
	payload, err := json.Marshal(NewAckError(cmd, code, message, busCode))
	if err != nil {
		b.logError("failed to marshal ack error", err)
		return
	}
	if err := b.mqtt.Publish(AckTopic(cmd.DeviceID), payload, 1, false); err != nil {
		b.logError("failed to publish ack error", err)
	}

	b.logError("command failed",
		fmt.Errorf("code=%s message=%s", code, message))
}

// publishState publishes the retained state and forwards it to telemetry.
func (b *Bridge) publishState(s tas5805m.Status) {
	payload, err := json.Marshal(NewStateMessage(b.deviceID, s))
	if err != nil {
		b.logError("failed to marshal state", err)
		return
	}
	if err := b.mqtt.Publish(StateTopic(b.deviceID), payload, 1, true); err != nil {
		b.logError("failed to publish state", err)
	}

	if b.telemetry != nil {
		b.telemetry.WriteAmpState(b.deviceID, stateFields(s))
	}
	if b.observer != nil {
		b.observer.BroadcastState(NewStateMessage(b.deviceID, s))
	}
}

func (b *Bridge) writeTelemetryError(err error) {
	if b.telemetry == nil {
		return
	}
	b.telemetry.WriteAmpError(b.deviceID, errorKind(err), BusCodeOf(err))
}

func (b *Bridge) handleRequest(topicRequestID string, payload []byte) {
	var req RequestMessage
	if err := json.Unmarshal(payload, &req); err != nil {
		b.errorCount.Add(1)
		b.logError("failed to parse request", err)
		return
	}
	if req.RequestID == "" {
		req.RequestID = topicRequestID
	}
	b.requestsServed.Add(1)

	b.logInfo("received request",
		"request_id", req.RequestID,
		"action", req.Action)

	var resp ResponseMessage
	switch {
	case req.DeviceID != "" && req.DeviceID != b.deviceID:
		resp = errorResponse(req, ErrCodeNotConfigured,
			fmt.Sprintf("device %s not managed by this bridge", req.DeviceID), nil)
	case req.Action == ActionReadState:
		resp = b.handleReadState(req)
	case req.Action == ActionDiagnostics:
		resp = b.handleDiagnostics(req)
	default:
		resp = errorResponse(req, ErrCodeInvalidCommand,
			fmt.Sprintf("unknown action: %s", req.Action), nil)
	}

	respPayload, err := json.Marshal(resp)
	if err != nil {
		b.logError("failed to marshal response", err)
		return
	}
	if err := b.mqtt.Publish(ResponseTopic(req.RequestID), respPayload, 1, false); err != nil {
		b.logError("failed to publish response", err)
	}
}

// handleReadState reads volume and gain from the hardware.
func (b *Bridge) handleReadState(req RequestMessage) ResponseMessage {
	data, err := b.ReadState()
	if err != nil {
		var details map[string]any
		if code := BusCodeOf(err); code != "" {
			details = map[string]any{"bus_code": code}
		}
		return errorResponse(req, ErrorCode(err), err.Error(), details)
	}
	return ResponseMessage{
		RequestID: req.RequestID,
		Timestamp: time.Now().UTC(),
		Success:   true,
		Data:      data,
	}
}

// ReadState reads digital volume and analog gain back from the amplifier.
// The cached state is not changed.
func (b *Bridge) ReadState() (map[string]any, error) {
	if !b.waitReady() {
		return nil, ErrBridgeStopping
	}

	b.devMu.Lock()
	if b.dev.Failed() {
		b.devMu.Unlock()
		return nil, ErrDeviceFailed
	}
	volume, err := b.dev.ReadDigitalVolume()
	var gain byte
	if err == nil {
		gain, err = b.dev.ReadGain()
	}
	status := b.refreshSnapshot()
	b.devMu.Unlock()

	if err != nil {
		b.writeTelemetryError(err)
		return nil, err
	}

	data := map[string]any{
		"device_id":  b.deviceID,
		"volume_raw": int(volume),
		"gain":       int(gain),
		"gain_db":    tas5805m.GainToDB(gain),
		"muted":      volume == tas5805m.VolumeMute,
		"volume":     status.Volume,
		"deep_sleep": status.DeepSleep,
	}
	if db := tas5805m.RawVolumeToDB(volume); !math.IsInf(db, 0) {
		data["volume_db"] = db
	}
	return data, nil
}

// handleDiagnostics returns the cached status without bus I/O.
func (b *Bridge) handleDiagnostics(req RequestMessage) ResponseMessage {
	return ResponseMessage{
		RequestID: req.RequestID,
		Timestamp: time.Now().UTC(),
		Success:   true,
		Data:      b.Diagnostics(),
	}
}

// Diagnostics returns the full cached device status without bus I/O.
func (b *Bridge) Diagnostics() map[string]any {
	data := diagnosticsData(b.Snapshot(), b.sessionID)
	data["device_id"] = b.deviceID
	return data
}

// DeviceID returns the ID of the amplifier served by this bridge.
func (b *Bridge) DeviceID() string {
	return b.deviceID
}

func errorResponse(req RequestMessage, code, message string, details map[string]any) ResponseMessage {
	return ResponseMessage{
		RequestID: req.RequestID,
		Timestamp: time.Now().UTC(),
		Success:   false,
		Error: &ResponseError{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// record writes one operation to history. Failures are logged only.
func (b *Bridge) record(action, source string, details map[string]any, opErr error) {
	if b.history == nil {
		return
	}

	event := &history.Event{
		DeviceID:  b.deviceID,
		SessionID: b.sessionID,
		Action:    action,
		Source:    source,
		Success:   opErr == nil,
		ErrorKind: errorKind(opErr),
		Details:   details,
	}
	if opErr != nil {
		event.Error = opErr.Error()
	}

	ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
	defer cancel()
	if err := b.history.Record(ctx, event); err != nil {
		b.logError("failed to record history", err)
	}
}

// SetLogger sets the logger for the bridge and its health reporter.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()

	b.health.SetLogger(logger)
}

func (b *Bridge) getLogger() Logger {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	return b.logger
}

func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

func (b *Bridge) logError(msg string, err error) {
	if logger := b.getLogger(); logger != nil {
		logger.Error(msg, "error", err)
	}
}
