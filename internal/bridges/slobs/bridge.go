package slobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

// commandTimeout bounds how long a command may spend writing to SLOBS.
const commandTimeout = 5 * time.Second

// Bridge connects the Streamlabs connector to the MQTT bus.
// It handles:
//   - Commands from Core, translated into connector calls and acknowledged
//   - Scene state and stream events, published as they arrive
//   - Health reporting and graceful shutdown
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	id         string
	mqtt       MQTTClient
	controller SceneController
	health     *HealthReporter
	metrics    MetricsWriter
	audit      AuditRecorder

	done      chan struct{}
	stopOnce  sync.Once
	ctx       context.Context
	ctxCancel context.CancelFunc

	logger   Logger
	loggerMu sync.RWMutex
}

// MQTTClient is the interface for MQTT operations.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error
	IsConnected() bool
}

// SceneController is the part of *Connector the bridge drives.
type SceneController interface {
	HealthSource
	SetCallbacks(cb Callbacks)
	Scene(name string) (Scene, bool)
	SetCurrentScene(ctx context.Context, name string) (string, error)
	SetSourceVisibility(ctx context.Context, scene, source string, enabled bool) (int, error)
	FlipSourceX(ctx context.Context, scene, source string) (int, error)
	FlipSourceY(ctx context.Context, scene, source string) (int, error)
	RotateSource(ctx context.Context, scene, source string, degrees float64) (int, error)
}

// MetricsWriter records bridge activity as time series.
// Optional; satisfied by *influxdb.Client.
type MetricsWriter interface {
	WriteSceneSwitch(scene, previous string)
	WriteStreamStatus(live bool)
	WriteCommand(command, target string, accepted bool, matched int)
}

// AuditRecorder persists executed commands.
// Optional; adapted from audit.Repository in main.
type AuditRecorder interface {
	RecordCommand(ctx context.Context, cmd CommandMessage, target string, ack AckMessage) error
}

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	// BridgeID names this instance in health messages.
	BridgeID string
	Version  string

	// Address is the Streamlabs URL, reported in health messages.
	Address        string
	HealthInterval time.Duration

	MQTTClient MQTTClient
	Controller SceneController

	// Metrics and Audit are optional.
	Metrics MetricsWriter
	Audit   AuditRecorder

	Logger Logger
}

// NewBridge creates a bridge. Call Start before starting the connector so
// that no scene event is missed.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.Controller == nil {
		return nil, fmt.Errorf("scene controller is required")
	}
	if opts.BridgeID == "" {
		return nil, fmt.Errorf("bridge id is required")
	}

	ctx, cancel := context.WithCancel(context.Background())

	b := &Bridge{
		id:         opts.BridgeID,
		mqtt:       opts.MQTTClient,
		controller: opts.Controller,
		metrics:    opts.Metrics,
		audit:      opts.Audit,
		done:       make(chan struct{}),
		ctx:        ctx,
		ctxCancel:  cancel,
		logger:     opts.Logger,
	}

	b.health = NewHealthReporter(HealthReporterConfig{
		BridgeID:  opts.BridgeID,
		Version:   opts.Version,
		Address:   opts.Address,
		Interval:  opts.HealthInterval,
		Publisher: opts.MQTTClient,
		Source:    opts.Controller,
	})
	if opts.Logger != nil {
		b.health.SetLogger(opts.Logger)
	}

	return b, nil
}

// Start installs the connector callbacks, subscribes to commands and
// starts health reporting.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.health.PublishStarting(); err != nil {
		b.logError("failed to publish starting status", err)
	}

	b.controller.SetCallbacks(Callbacks{
		OnConnected:     b.handleConnected,
		OnSwitchScenes:  b.handleSceneSwitched,
		OnStreamStarted: func() { b.handleStreamStatus(true) },
		OnStreamStopped: func() { b.handleStreamStatus(false) },
		OnScenesChanged: b.publishState,
		OnError:         b.handleConnectorError,
		OnClosed:        b.handleConnectorClosed,
	})

	topic := CommandSubscribeTopic()
	if err := b.mqtt.Subscribe(topic, 1, b.handleMQTTMessage); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	b.logInfo("subscribed to commands", "topic", topic)

	b.health.Start(ctx)

	b.logInfo("bridge started", "bridge_id", b.id)
	return nil
}

// Stop gracefully shuts down the bridge. The connector is left open; the
// caller owns it.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		b.ctxCancel()
		b.health.Stop()
		b.logInfo("bridge stopped")
	})
}

// Health exposes the reporter, mainly for PublishNow after state changes.
func (b *Bridge) Health() *HealthReporter {
	return b.health
}

// LWTPayload returns the Last Will payload for this bridge.
func (b *Bridge) LWTPayload() ([]byte, error) {
	return b.health.LWTPayload()
}

// SetLogger sets the logger for this bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()
	b.health.SetLogger(logger)
}

func (b *Bridge) handleMQTTMessage(topic string, payload []byte) {
	target, ok := topics.CommandTarget(Protocol, topic)
	if !ok {
		b.logError("invalid topic format", fmt.Errorf("topic: %s", topic))
		return
	}

	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		b.logError("failed to parse command", err, "topic", topic)
		return
	}

	b.logInfo("received command",
		"command_id", cmd.ID,
		"command", cmd.Command,
		"target", target)

	ack := b.executeCommand(cmd, target)
	b.publishAck(ack)
	b.health.RecordCommand(ack.Status == AckAccepted)

	if b.metrics != nil {
		matched, _ := ack.Result["matched"].(int)
		b.metrics.WriteCommand(cmd.Command, target, ack.Status == AckAccepted, matched)
	}
	if b.audit != nil {
		if err := b.audit.RecordCommand(b.ctx, cmd, target, ack); err != nil {
			b.logError("failed to record command", err, "command_id", cmd.ID)
		}
	}
}

// executeCommand runs cmd against the controller and returns the ack to
// publish.
func (b *Bridge) executeCommand(cmd CommandMessage, target string) AckMessage {
	if !b.controller.IsConnected() {
		return NewAckError(cmd, target, ErrCodeDeviceUnreachable, "streamlabs not connected")
	}

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	switch cmd.Command {
	case CommandSwitchScene:
		return b.executeSwitchScene(ctx, cmd, target)
	case CommandSetVisibility:
		visible, ok := boolParam(cmd.Parameters, "visible")
		if !ok {
			return NewAckError(cmd, target, ErrCodeInvalidParameters, "visible must be a boolean")
		}
		return b.executeItemCommand(cmd, target, func(scene, source string) (int, error) {
			return b.controller.SetSourceVisibility(ctx, scene, source, visible)
		})
	case CommandFlipX:
		return b.executeItemCommand(cmd, target, func(scene, source string) (int, error) {
			return b.controller.FlipSourceX(ctx, scene, source)
		})
	case CommandFlipY:
		return b.executeItemCommand(cmd, target, func(scene, source string) (int, error) {
			return b.controller.FlipSourceY(ctx, scene, source)
		})
	case CommandRotate:
		degrees, ok := numberParam(cmd.Parameters, "degrees")
		if !ok {
			return NewAckError(cmd, target, ErrCodeInvalidParameters, "degrees must be a number")
		}
		return b.executeItemCommand(cmd, target, func(scene, source string) (int, error) {
			return b.controller.RotateSource(ctx, scene, source, degrees)
		})
	default:
		return NewAckError(cmd, target, ErrCodeInvalidCommand, fmt.Sprintf("unknown command: %s", cmd.Command))
	}
}

func (b *Bridge) executeSwitchScene(ctx context.Context, cmd CommandMessage, target string) AckMessage {
	name, ok := stringParam(cmd.Parameters, "scene")
	if !ok {
		return NewAckError(cmd, target, ErrCodeInvalidParameters, "scene is required")
	}

	previous, err := b.controller.SetCurrentScene(ctx, name)
	switch {
	case errors.Is(err, ErrSceneNotFound):
		return NewAckError(cmd, target, ErrCodeSceneNotFound, fmt.Sprintf("scene %q not found", name))
	case err != nil:
		return NewAckError(cmd, target, ErrCodeDeviceUnreachable, err.Error())
	}

	return NewAckMessage(cmd, target, map[string]any{
		"scene":          name,
		"previous_scene": previous,
	})
}

// executeItemCommand resolves scene and source parameters, then runs fn.
// An explicitly named scene must be cached; zero matched items fails with
// SOURCE_NOT_FOUND.
func (b *Bridge) executeItemCommand(cmd CommandMessage, target string, fn func(scene, source string) (int, error)) AckMessage {
	source, ok := stringParam(cmd.Parameters, "source")
	if !ok {
		return NewAckError(cmd, target, ErrCodeInvalidParameters, "source is required")
	}

	scene, _ := stringParam(cmd.Parameters, "scene")
	if scene != "" {
		if _, found := b.controller.Scene(scene); !found {
			return NewAckError(cmd, target, ErrCodeSceneNotFound, fmt.Sprintf("scene %q not found", scene))
		}
	}

	matched, err := fn(scene, source)
	if err != nil {
		return NewAckError(cmd, target, ErrCodeDeviceUnreachable, err.Error())
	}
	if matched == 0 {
		return NewAckError(cmd, target, ErrCodeSourceNotFound, fmt.Sprintf("no items named %q", source))
	}

	return NewAckMessage(cmd, target, map[string]any{"matched": matched})
}

func (b *Bridge) publishAck(ack AckMessage) {
	payload, err := json.Marshal(ack)
	if err != nil {
		b.logError("failed to marshal ack", err)
		return
	}

	if err := b.mqtt.Publish(AckTopic(ack.Target), payload, 1, false); err != nil {
		b.logError("failed to publish ack", err)
	}

	if ack.Error != nil {
		b.logWarn("command failed",
			"command_id", ack.CommandID,
			"code", ack.Error.Code,
			"message", ack.Error.Message)
	}
}

// publishState publishes the retained scene state.
func (b *Bridge) publishState() {
	msg := NewStateMessage(b.controller.CurrentScene(), b.controller.Scenes())

	payload, err := json.Marshal(msg)
	if err != nil {
		b.logError("failed to marshal state", err)
		return
	}
	if err := b.mqtt.Publish(StateTopic(), payload, 1, true); err != nil {
		b.logError("failed to publish state", err)
	}
}

func (b *Bridge) publishEvent(event string, data map[string]any) {
	payload, err := json.Marshal(NewEventMessage(event, data))
	if err != nil {
		b.logError("failed to marshal event", err, "event", event)
		return
	}
	if err := b.mqtt.Publish(EventTopic(event), payload, 1, false); err != nil {
		b.logError("failed to publish event", err, "event", event)
	}
}

func (b *Bridge) handleConnected() {
	b.logInfo("streamlabs connected")
}

func (b *Bridge) handleSceneSwitched(scene Scene, previous string) {
	b.publishEvent(EventNameSceneSwitched, map[string]any{
		"scene":          scene.Name,
		"scene_id":       scene.ID,
		"previous_scene": previous,
	})

	if b.metrics != nil {
		b.metrics.WriteSceneSwitch(scene.Name, previous)
	}
}

func (b *Bridge) handleStreamStatus(live bool) {
	b.health.SetStreaming(live)

	event := EventNameStreamStopped
	if live {
		event = EventNameStreamStarted
	}
	b.publishEvent(event, nil)

	if b.metrics != nil {
		b.metrics.WriteStreamStatus(live)
	}
}

func (b *Bridge) handleConnectorError(err error) {
	b.logWarn("streamlabs error", "error", err)
}

func (b *Bridge) handleConnectorClosed(err error) {
	select {
	case <-b.done:
		return
	default:
	}

	if err != nil {
		b.logError("streamlabs connection lost", err)
	}
	if pubErr := b.health.PublishNow(); pubErr != nil {
		b.logError("failed to publish health", pubErr)
	}
}

func stringParam(params map[string]any, key string) (string, bool) {
	s, ok := params[key].(string)
	return s, ok && s != ""
}

func boolParam(params map[string]any, key string) (bool, bool) {
	v, ok := params[key].(bool)
	return v, ok
}

// numberParam accepts JSON numbers, which decode as float64.
func numberParam(params map[string]any, key string) (float64, bool) {
	v, ok := params[key].(float64)
	return v, ok
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

func (b *Bridge) logWarn(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

func (b *Bridge) logError(msg string, err error, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Error(msg, append([]any{"error", err}, keysAndValues...)...)
	}
}
