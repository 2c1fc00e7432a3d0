package slobs

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
)

// MockMQTTClient implements MQTTClient for testing.
type MockMQTTClient struct {
	mu            sync.Mutex
	published     []mockPublish
	subscriptions []string
	handlers      map[string]func(topic string, payload []byte)
	connected     bool
	subscribeErr  error
}

type mockPublish struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

func NewMockMQTTClient() *MockMQTTClient {
	return &MockMQTTClient{
		connected: true,
		handlers:  make(map[string]func(topic string, payload []byte)),
	}
}

func (m *MockMQTTClient) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, mockPublish{Topic: topic, Payload: payload, QoS: qos, Retained: retained})
	return nil
}

func (m *MockMQTTClient) Subscribe(topic string, _ byte, handler func(topic string, payload []byte)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subscribeErr != nil {
		return m.subscribeErr
	}
	m.subscriptions = append(m.subscriptions, topic)
	m.handlers[topic] = handler
	return nil
}

func (m *MockMQTTClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockMQTTClient) SetConnected(v bool) {
	m.mu.Lock()
	m.connected = v
	m.mu.Unlock()
}

// SimulateMessage delivers payload to the handler subscribed with pattern.
func (m *MockMQTTClient) SimulateMessage(t *testing.T, pattern, topic string, payload []byte) {
	t.Helper()
	m.mu.Lock()
	handler, ok := m.handlers[pattern]
	m.mu.Unlock()
	if !ok {
		t.Fatalf("no handler subscribed for %s", pattern)
	}
	handler(topic, payload)
}

// PublishedTo returns messages published to topic, oldest first.
func (m *MockMQTTClient) PublishedTo(topic string) []mockPublish {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []mockPublish
	for _, p := range m.published {
		if p.Topic == topic {
			out = append(out, p)
		}
	}
	return out
}

func (m *MockMQTTClient) Reset() {
	m.mu.Lock()
	m.published = nil
	m.mu.Unlock()
}

type mockMetrics struct {
	mu       sync.Mutex
	switches [][2]string
	streams  []bool
	commands []string
}

func (m *mockMetrics) WriteSceneSwitch(scene, previous string) {
	m.mu.Lock()
	m.switches = append(m.switches, [2]string{scene, previous})
	m.mu.Unlock()
}

func (m *mockMetrics) WriteStreamStatus(live bool) {
	m.mu.Lock()
	m.streams = append(m.streams, live)
	m.mu.Unlock()
}

func (m *mockMetrics) WriteCommand(command, _ string, accepted bool, matched int) {
	m.mu.Lock()
	outcome := "failed"
	if accepted {
		outcome = "accepted"
	}
	m.commands = append(m.commands, command+":"+outcome)
	m.mu.Unlock()
}

type mockAudit struct {
	mu   sync.Mutex
	acks []AckMessage
	err  error
}

func (m *mockAudit) RecordCommand(_ context.Context, _ CommandMessage, _ string, ack AckMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acks = append(m.acks, ack)
	return m.err
}

type testBridge struct {
	bridge    *Bridge
	mqtt      *MockMQTTClient
	conn      *Connector
	transport *MockTransport
	metrics   *mockMetrics
	audit     *mockAudit
}

// newTestBridge starts a bridge over a loaded connector (scenes Main and
// BRB, Main active).
func newTestBridge(t *testing.T) *testBridge {
	t.Helper()
	conn, transport, _ := newLoadedConnector(t)
	tb := &testBridge{
		mqtt:      NewMockMQTTClient(),
		conn:      conn,
		transport: transport,
		metrics:   &mockMetrics{},
		audit:     &mockAudit{},
	}

	b, err := NewBridge(BridgeOptions{
		BridgeID:   "slobs-test",
		Version:    "test",
		Address:    "ws://127.0.0.1:59650/api/websocket",
		MQTTClient: tb.mqtt,
		Controller: conn,
		Metrics:    tb.metrics,
		Audit:      tb.audit,
	})
	if err != nil {
		t.Fatalf("NewBridge() error = %v", err)
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(b.Stop)

	tb.bridge = b
	tb.mqtt.Reset()
	return tb
}

func (tb *testBridge) command(t *testing.T, target string, cmd CommandMessage) AckMessage {
	t.Helper()
	payload, err := json.Marshal(cmd)
	if err != nil {
		t.Fatalf("marshal command: %v", err)
	}
	tb.mqtt.SimulateMessage(t, CommandSubscribeTopic(), "graylogic/command/slobs/"+target, payload)

	acks := tb.mqtt.PublishedTo(AckTopic(target))
	if len(acks) == 0 {
		t.Fatalf("no ack published for %s", cmd.Command)
	}
	var ack AckMessage
	if err := json.Unmarshal(acks[len(acks)-1].Payload, &ack); err != nil {
		t.Fatalf("unmarshal ack: %v", err)
	}
	return ack
}

func TestNewBridge_Validation(t *testing.T) {
	conn, _, _ := newTestConnector(t, 0)

	tests := []struct {
		name string
		opts BridgeOptions
	}{
		{"missing mqtt", BridgeOptions{BridgeID: "b", Controller: conn}},
		{"missing controller", BridgeOptions{BridgeID: "b", MQTTClient: NewMockMQTTClient()}},
		{"missing id", BridgeOptions{MQTTClient: NewMockMQTTClient(), Controller: conn}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewBridge(tt.opts); err == nil {
				t.Error("NewBridge() expected error")
			}
		})
	}
}

func TestBridge_StartSubscribes(t *testing.T) {
	conn, _, _ := newLoadedConnector(t)
	mqtt := NewMockMQTTClient()

	b, err := NewBridge(BridgeOptions{BridgeID: "slobs-test", MQTTClient: mqtt, Controller: conn})
	if err != nil {
		t.Fatalf("NewBridge() error = %v", err)
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer b.Stop()

	if len(mqtt.subscriptions) != 1 || mqtt.subscriptions[0] != "graylogic/command/slobs/+" {
		t.Errorf("subscriptions = %v", mqtt.subscriptions)
	}

	health := mqtt.PublishedTo(HealthTopic())
	if len(health) == 0 {
		t.Fatal("no health published on start")
	}
	var msg HealthMessage
	if err := json.Unmarshal(health[0].Payload, &msg); err != nil {
		t.Fatalf("unmarshal health: %v", err)
	}
	if msg.Status != HealthStarting || !health[0].Retained {
		t.Errorf("first health = %s retained=%v, want starting retained", msg.Status, health[0].Retained)
	}
}

func TestBridge_StartSubscribeError(t *testing.T) {
	conn, _, _ := newLoadedConnector(t)
	mqtt := NewMockMQTTClient()
	mqtt.subscribeErr = errors.New("broker gone")

	b, _ := NewBridge(BridgeOptions{BridgeID: "slobs-test", MQTTClient: mqtt, Controller: conn})
	defer b.Stop()

	if err := b.Start(context.Background()); err == nil {
		t.Error("Start() expected subscribe error")
	}
}

func TestBridge_Commands(t *testing.T) {
	tests := []struct {
		name       string
		command    string
		params     map[string]any
		wantStatus AckStatus
		wantCode   string
		wantMethod string
		wantSent   int
	}{
		{"switch scene", CommandSwitchScene, map[string]any{"scene": "BRB"}, AckAccepted, "", MethodMakeSceneActive, 1},
		{"switch unknown scene", CommandSwitchScene, map[string]any{"scene": "Nope"}, AckFailed, ErrCodeSceneNotFound, "", 0},
		{"switch missing scene", CommandSwitchScene, nil, AckFailed, ErrCodeInvalidParameters, "", 0},
		{"show in active scene", CommandSetVisibility, map[string]any{"source": "Cam", "visible": true}, AckAccepted, "", MethodSetVisibility, 2},
		{"visibility missing flag", CommandSetVisibility, map[string]any{"source": "Cam"}, AckFailed, ErrCodeInvalidParameters, "", 0},
		{"flip x in named scene", CommandFlipX, map[string]any{"scene": "BRB", "source": "Logo"}, AckAccepted, "", MethodFlipX, 1},
		{"flip y unknown source", CommandFlipY, map[string]any{"source": "Ghost"}, AckFailed, ErrCodeSourceNotFound, "", 0},
		{"flip y unknown scene", CommandFlipY, map[string]any{"scene": "Nope", "source": "Cam"}, AckFailed, ErrCodeSceneNotFound, "", 0},
		{"flip missing source", CommandFlipX, map[string]any{}, AckFailed, ErrCodeInvalidParameters, "", 0},
		{"rotate", CommandRotate, map[string]any{"source": "Overlay", "degrees": 90}, AckAccepted, "", MethodSetTransform, 1},
		{"rotate missing degrees", CommandRotate, map[string]any{"source": "Overlay"}, AckFailed, ErrCodeInvalidParameters, "", 0},
		{"unknown command", "explode", nil, AckFailed, ErrCodeInvalidCommand, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tb := newTestBridge(t)

			ack := tb.command(t, "scene", CommandMessage{ID: "cmd-1", Command: tt.command, Parameters: tt.params, Source: "api"})

			if ack.Status != tt.wantStatus {
				t.Errorf("Status = %s, want %s (error %+v)", ack.Status, tt.wantStatus, ack.Error)
			}
			if ack.CommandID != "cmd-1" || ack.Protocol != Protocol || ack.Target != "scene" {
				t.Errorf("ack header = %+v", ack)
			}
			if tt.wantCode != "" && (ack.Error == nil || ack.Error.Code != tt.wantCode) {
				t.Errorf("Error = %+v, want code %s", ack.Error, tt.wantCode)
			}

			sent := tb.transport.Sent(t)
			if len(sent) != tt.wantSent {
				t.Fatalf("sent %d requests, want %d", len(sent), tt.wantSent)
			}
			for _, r := range sent {
				if r.Method != tt.wantMethod {
					t.Errorf("Method = %s, want %s", r.Method, tt.wantMethod)
				}
			}
		})
	}
}

func TestBridge_SwitchSceneReportsPrevious(t *testing.T) {
	tb := newTestBridge(t)

	ack := tb.command(t, "scene", CommandMessage{ID: "c", Command: CommandSwitchScene, Parameters: map[string]any{"scene": "BRB"}})

	if ack.Result["previous_scene"] != "Main" || ack.Result["scene"] != "BRB" {
		t.Errorf("Result = %v", ack.Result)
	}
}

func TestBridge_ItemCommandReportsMatched(t *testing.T) {
	tb := newTestBridge(t)

	ack := tb.command(t, "Cam", CommandMessage{ID: "c", Command: CommandFlipX, Parameters: map[string]any{"source": "Cam"}})

	// JSON numbers decode as float64.
	if ack.Result["matched"] != float64(2) {
		t.Errorf("matched = %v, want 2", ack.Result["matched"])
	}
}

func TestBridge_CommandWhileDisconnected(t *testing.T) {
	tb := newTestBridge(t)
	tb.transport.SimulateClose(errors.New("gone"))

	ack := tb.command(t, "scene", CommandMessage{ID: "c", Command: CommandSwitchScene, Parameters: map[string]any{"scene": "BRB"}})

	if ack.Error == nil || ack.Error.Code != ErrCodeDeviceUnreachable {
		t.Errorf("Error = %+v, want DEVICE_UNREACHABLE", ack.Error)
	}
}

func TestBridge_SendFailureIsUnreachable(t *testing.T) {
	tb := newTestBridge(t)
	tb.transport.SetSendError(errors.New("write: broken pipe"))

	ack := tb.command(t, "Cam", CommandMessage{ID: "c", Command: CommandFlipY, Parameters: map[string]any{"source": "Cam"}})

	if ack.Error == nil || ack.Error.Code != ErrCodeDeviceUnreachable {
		t.Errorf("Error = %+v, want DEVICE_UNREACHABLE", ack.Error)
	}
}

func TestBridge_IgnoresBadMessages(t *testing.T) {
	tb := newTestBridge(t)
	pattern := CommandSubscribeTopic()

	tb.mqtt.SimulateMessage(t, pattern, "graylogic/command/slobs/a/b", []byte(`{"id":"x","command":"flip_x"}`))
	tb.mqtt.SimulateMessage(t, pattern, "graylogic/command/slobs/scene", []byte(`not json`))

	// The health loop may publish concurrently; only acks matter here.
	tb.mqtt.mu.Lock()
	defer tb.mqtt.mu.Unlock()
	for _, p := range tb.mqtt.published {
		if p.Topic != HealthTopic() {
			t.Errorf("unexpected publish to %s for invalid input", p.Topic)
		}
	}
}

func TestBridge_MetricsAndAudit(t *testing.T) {
	tb := newTestBridge(t)

	tb.command(t, "scene", CommandMessage{ID: "ok", Command: CommandSwitchScene, Parameters: map[string]any{"scene": "BRB"}})
	tb.command(t, "scene", CommandMessage{ID: "bad", Command: CommandSwitchScene, Parameters: map[string]any{"scene": "Nope"}})

	want := []string{"switch_scene:accepted", "switch_scene:failed"}
	if strings.Join(tb.metrics.commands, ",") != strings.Join(want, ",") {
		t.Errorf("metrics commands = %v, want %v", tb.metrics.commands, want)
	}
	if len(tb.audit.acks) != 2 || tb.audit.acks[1].CommandID != "bad" {
		t.Errorf("audit = %+v", tb.audit.acks)
	}
}

func TestBridge_AuditFailureStillAcks(t *testing.T) {
	tb := newTestBridge(t)
	tb.audit.err = errors.New("disk full")

	ack := tb.command(t, "scene", CommandMessage{ID: "c", Command: CommandSwitchScene, Parameters: map[string]any{"scene": "BRB"}})
	if ack.Status != AckAccepted {
		t.Errorf("Status = %s, want accepted", ack.Status)
	}
}

func TestBridge_SceneSwitchedEvent(t *testing.T) {
	tb := newTestBridge(t)

	tb.transport.Deliver(pushEvent(EventSceneSwitched, sceneJSON("s2", "BRB")))
	tb.transport.Deliver(pushEvent(EventSceneSwitched, sceneJSON("s1", "Main")))

	events := tb.mqtt.PublishedTo(EventTopic(EventNameSceneSwitched))
	if len(events) != 2 {
		t.Fatalf("published %d scene_switched events, want 2", len(events))
	}

	var last EventMessage
	if err := json.Unmarshal(events[1].Payload, &last); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if last.Data["scene"] != "Main" || last.Data["previous_scene"] != "BRB" {
		t.Errorf("Data = %v", last.Data)
	}
	if events[1].Retained {
		t.Error("events must not be retained")
	}

	if len(tb.metrics.switches) != 2 || tb.metrics.switches[1] != [2]string{"Main", "BRB"} {
		t.Errorf("metrics switches = %v", tb.metrics.switches)
	}
}

func TestBridge_FirstSwitchReportsBootstrapScene(t *testing.T) {
	tb := newTestBridge(t)

	tb.transport.Deliver(pushEvent(EventSceneSwitched, sceneJSON("s2", "BRB")))

	events := tb.mqtt.PublishedTo(EventTopic(EventNameSceneSwitched))
	if len(events) != 1 {
		t.Fatalf("published %d scene_switched events, want 1", len(events))
	}

	var first EventMessage
	if err := json.Unmarshal(events[0].Payload, &first); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if first.Data["scene"] != "BRB" {
		t.Errorf("scene = %v, want BRB", first.Data["scene"])
	}
	if first.Data["previous_scene"] != "Main" {
		t.Errorf("previous_scene = %v, want Main", first.Data["previous_scene"])
	}

	if len(tb.metrics.switches) != 1 || tb.metrics.switches[0] != [2]string{"BRB", "Main"} {
		t.Errorf("metrics switches = %v", tb.metrics.switches)
	}
}

func TestBridge_PublishesStateOnChange(t *testing.T) {
	tb := newTestBridge(t)

	tb.transport.Deliver(pushEvent(EventSceneAdded, sceneJSON("s3", "Intro")))

	states := tb.mqtt.PublishedTo(StateTopic())
	if len(states) != 1 {
		t.Fatalf("published %d states, want 1", len(states))
	}
	if !states[0].Retained {
		t.Error("state must be retained")
	}

	var msg StateMessage
	if err := json.Unmarshal(states[0].Payload, &msg); err != nil {
		t.Fatalf("unmarshal state: %v", err)
	}
	if msg.ActiveScene != "Main" || len(msg.Scenes) != 3 {
		t.Errorf("state = active %q, %d scenes", msg.ActiveScene, len(msg.Scenes))
	}
}

func TestBridge_StreamEvents(t *testing.T) {
	tb := newTestBridge(t)

	tb.transport.Deliver(pushEvent(EventStreamingStatusChange, `"starting"`))
	if !tb.bridge.Health().streaming.Load() {
		t.Error("streaming flag not set after start")
	}
	tb.transport.Deliver(pushEvent(EventStreamingStatusChange, `"ending"`))

	if n := len(tb.mqtt.PublishedTo(EventTopic(EventNameStreamStarted))); n != 1 {
		t.Errorf("stream_started events = %d, want 1", n)
	}
	if n := len(tb.mqtt.PublishedTo(EventTopic(EventNameStreamStopped))); n != 1 {
		t.Errorf("stream_stopped events = %d, want 1", n)
	}
	if len(tb.metrics.streams) != 2 || !tb.metrics.streams[0] || tb.metrics.streams[1] {
		t.Errorf("metrics streams = %v", tb.metrics.streams)
	}
	if tb.bridge.Health().streaming.Load() {
		t.Error("streaming flag still set after stop")
	}
}

func TestBridge_ConnectionLossPublishesHealth(t *testing.T) {
	tb := newTestBridge(t)

	tb.transport.SimulateClose(errors.New("reset by peer"))

	var degraded bool
	for _, p := range tb.mqtt.PublishedTo(HealthTopic()) {
		var msg HealthMessage
		if err := json.Unmarshal(p.Payload, &msg); err != nil {
			t.Fatalf("unmarshal health: %v", err)
		}
		if msg.Status == HealthDegraded && msg.Reason == "streamlabs disconnected" {
			degraded = true
		}
	}
	if !degraded {
		t.Error("no degraded health published after connection loss")
	}
}

func TestBridge_StopIdempotent(t *testing.T) {
	tb := newTestBridge(t)

	tb.bridge.Stop()
	tb.bridge.Stop()

	health := tb.mqtt.PublishedTo(HealthTopic())
	var stopping int
	for _, p := range health {
		var msg HealthMessage
		if err := json.Unmarshal(p.Payload, &msg); err == nil && msg.Status == HealthStopping {
			stopping++
		}
	}
	if stopping != 1 {
		t.Errorf("stopping published %d times, want 1", stopping)
	}
}
