package slobs

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

const defaultHealthInterval = 30 * time.Second

// HealthReporter publishes the bridge health message on a fixed interval.
type HealthReporter struct {
	bridgeID  string
	version   string
	address   string
	startTime time.Time
	interval  time.Duration
	publisher HealthPublisher
	source    HealthSource

	streaming        atomic.Bool
	commandsAccepted atomic.Uint64
	commandsFailed   atomic.Uint64

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// HealthPublisher is typically implemented by the MQTT client.
type HealthPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// HealthSource supplies the Streamlabs side of the report.
// Satisfied by *Connector.
type HealthSource interface {
	IsConnected() bool
	Stats() ConnectorStats
	CurrentScene() string
	Scenes() []Scene
}

// HealthReporterConfig holds configuration for the health reporter.
type HealthReporterConfig struct {
	BridgeID string
	Version  string

	// Address is the Streamlabs URL, reported as-is.
	Address string

	// Interval defaults to 30 seconds.
	Interval time.Duration

	Publisher HealthPublisher
	Source    HealthSource
}

// NewHealthReporter creates a reporter. Call Start to begin publishing.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultHealthInterval
	}

	return &HealthReporter{
		bridgeID:  cfg.BridgeID,
		version:   cfg.Version,
		address:   cfg.Address,
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

		//nolint:errcheck // best-effort during shutdown
		h.publishStatus(HealthStopping, "bridge stopping")
	})
}

// SetLogger sets the logger for publish failures.
func (h *HealthReporter) SetLogger(logger Logger) {
	h.loggerMu.Lock()
	h.logger = logger
	h.loggerMu.Unlock()
}

// SetStreaming records whether a stream is live.
func (h *HealthReporter) SetStreaming(live bool) {
	h.streaming.Store(live)
}

// RecordCommand counts a command outcome.
func (h *HealthReporter) RecordCommand(accepted bool) {
	if accepted {
		h.commandsAccepted.Add(1)
	} else {
		h.commandsFailed.Add(1)
	}
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

// LWTPayload returns the Last Will payload to register with the broker.
func (h *HealthReporter) LWTPayload() ([]byte, error) {
	return json.Marshal(NewLWTMessage(h.bridgeID))
}

func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	if err := h.PublishNow(); err != nil {
		h.logError("failed to publish initial health", err)
	}

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

func (h *HealthReporter) determineStatus() (HealthStatus, string) {
	if h.publisher == nil || !h.publisher.IsConnected() {
		return HealthDegraded, "MQTT disconnected"
	}
	if h.source == nil || !h.source.IsConnected() {
		return HealthDegraded, "streamlabs disconnected"
	}
	return HealthHealthy, ""
}

// buildMessage assembles the health message for status.
func (h *HealthReporter) buildMessage(status HealthStatus, reason string) HealthMessage {
	var stats ConnectorStats
	if h.source != nil {
		stats = h.source.Stats()
	}

	msg := NewHealthMessage(h.bridgeID, h.version, status, stats, h.startTime)
	msg.Reason = reason
	msg.Connection.Address = h.address
	msg.Streaming = h.streaming.Load()
	msg.Statistics.CommandsAccepted = h.commandsAccepted.Load()
	msg.Statistics.CommandsFailed = h.commandsFailed.Load()

	if h.source != nil {
		msg.ScenesCached = len(h.source.Scenes())
		msg.ActiveScene = h.source.CurrentScene()
	}
	return msg
}

func (h *HealthReporter) publishStatus(status HealthStatus, reason string) error {
	if h.publisher == nil {
		return nil
	}

	payload, err := json.Marshal(h.buildMessage(status, reason))
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
