package slobs

import (
	"time"

	"github.com/nerrad567/gray-logic-slobs/internal/infrastructure/mqtt"
)

// Protocol identifies this bridge in topics and messages.
const Protocol = "slobs"

// Bridge topic names.
var topics = mqtt.Topics{}

// CommandSubscribeTopic matches commands for every target.
func CommandSubscribeTopic() string { return topics.BridgeCommands(Protocol) }

// AckTopic is where acknowledgements for target are published.
func AckTopic(target string) string { return topics.BridgeAck(Protocol, target) }

// StateTopic is the retained scene state topic.
func StateTopic() string { return topics.BridgeState(Protocol, "scenes") }

// EventTopic is the topic for a one-shot event.
func EventTopic(event string) string { return topics.BridgeEvent(Protocol, event) }

// HealthTopic is the retained health topic, also used as the Last Will.
func HealthTopic() string { return topics.BridgeHealth(Protocol) }

// Command names accepted on graylogic/command/slobs/{target}.
const (
	CommandSwitchScene   = "switch_scene"
	CommandSetVisibility = "set_visibility"
	CommandFlipX         = "flip_x"
	CommandFlipY         = "flip_y"
	CommandRotate        = "rotate"
)

// Event names published on graylogic/event/slobs/{event}.
const (
	EventNameSceneSwitched = "scene_switched"
	EventNameStreamStarted = "stream_started"
	EventNameStreamStopped = "stream_stopped"
)

// CommandMessage is sent from Core to the bridge.
// Topic: graylogic/command/slobs/{target}
//
// Parameters by command:
//
//	switch_scene    {"scene": "Live"}
//	set_visibility  {"scene": "Live", "source": "Camera", "visible": true}
//	flip_x, flip_y  {"scene": "Live", "source": "Camera"}
//	rotate          {"scene": "Live", "source": "Camera", "degrees": 90}
//
// "scene" is optional for item commands and defaults to the active scene.
type CommandMessage struct {
	ID         string         `json:"id"`
	Timestamp  time.Time      `json:"timestamp"`
	Command    string         `json:"command"`
	Parameters map[string]any `json:"parameters,omitempty"`

	// Source indicates where the command originated ("api", "automation", ...).
	Source string `json:"source,omitempty"`
	UserID string `json:"user_id,omitempty"`
}

// AckStatus represents the acknowledgement status of a command.
type AckStatus string

const (
	// AckAccepted means every request for the command was written to SLOBS.
	AckAccepted AckStatus = "accepted"

	// AckFailed means nothing (or not everything) was sent.
	AckFailed AckStatus = "failed"
)

// Error codes for command failures.
const (
	ErrCodeSceneNotFound     = "SCENE_NOT_FOUND"
	ErrCodeSourceNotFound    = "SOURCE_NOT_FOUND"
	ErrCodeInvalidCommand    = "INVALID_COMMAND"
	ErrCodeInvalidParameters = "INVALID_PARAMETERS"
	ErrCodeDeviceUnreachable = "DEVICE_UNREACHABLE"
)

// AckMessage is sent from the bridge to Core for every parsed command.
// Topic: graylogic/ack/slobs/{target}
type AckMessage struct {
	CommandID string         `json:"command_id"`
	Timestamp time.Time      `json:"timestamp"`
	Command   string         `json:"command"`
	Status    AckStatus      `json:"status"`
	Protocol  string         `json:"protocol"`
	Target    string         `json:"target"`
	Result    map[string]any `json:"result,omitempty"`
	Error     *AckError      `json:"error,omitempty"`
}

// AckError contains error details for failed commands.
type AckError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewAckMessage creates an accepted acknowledgement.
func NewAckMessage(cmd CommandMessage, target string, result map[string]any) AckMessage {
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		Command:   cmd.Command,
		Status:    AckAccepted,
		Protocol:  Protocol,
		Target:    target,
		Result:    result,
	}
}

// NewAckError creates a failed acknowledgement.
func NewAckError(cmd CommandMessage, target, code, message string) AckMessage {
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		Command:   cmd.Command,
		Status:    AckFailed,
		Protocol:  Protocol,
		Target:    target,
		Error:     &AckError{Code: code, Message: message},
	}
}

// StateMessage carries the full scene list and the active scene.
// Topic: graylogic/state/slobs/scenes
// QoS: 1, Retained: Yes
type StateMessage struct {
	Timestamp   time.Time    `json:"timestamp"`
	Protocol    string       `json:"protocol"`
	ActiveScene string       `json:"active_scene"`
	Scenes      []SceneState `json:"scenes"`
}

// SceneState is one scene in a StateMessage.
type SceneState struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Active bool     `json:"active"`
	Items  []string `json:"items"`
}

// NewStateMessage builds a state message from a cache snapshot.
func NewStateMessage(active string, scenes []Scene) StateMessage {
	msg := StateMessage{
		Timestamp:   time.Now().UTC(),
		Protocol:    Protocol,
		ActiveScene: active,
		Scenes:      make([]SceneState, 0, len(scenes)),
	}
	for _, s := range scenes {
		items := make([]string, 0, len(s.Nodes))
		for _, item := range s.Nodes {
			items = append(items, item.Name)
		}
		msg.Scenes = append(msg.Scenes, SceneState{
			ID:     s.ID,
			Name:   s.Name,
			Active: s.Name == active,
			Items:  items,
		})
	}
	return msg
}

// EventMessage announces a scene switch or a stream transition.
// Topic: graylogic/event/slobs/{event}
type EventMessage struct {
	Event     string         `json:"event"`
	Timestamp time.Time      `json:"timestamp"`
	Protocol  string         `json:"protocol"`
	Data      map[string]any `json:"data,omitempty"`
}

// NewEventMessage creates an event message.
func NewEventMessage(event string, data map[string]any) EventMessage {
	return EventMessage{
		Event:     event,
		Timestamp: time.Now().UTC(),
		Protocol:  Protocol,
		Data:      data,
	}
}

// HealthStatus represents the operational status of the bridge.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"

	// HealthOffline is only ever published by the broker, from the LWT.
	HealthOffline  HealthStatus = "offline"
	HealthStarting HealthStatus = "starting"
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage reports bridge status.
// Topic: graylogic/health/slobs
// QoS: 1, Retained: Yes
type HealthMessage struct {
	Bridge        string            `json:"bridge"`
	Timestamp     time.Time         `json:"timestamp"`
	Status        HealthStatus      `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Connection    *ConnectionStatus `json:"connection,omitempty"`
	Statistics    *BridgeStatistics `json:"statistics,omitempty"`
	ScenesCached  int               `json:"scenes_cached"`
	ActiveScene   string            `json:"active_scene,omitempty"`
	Streaming     bool              `json:"streaming"`
	Reason        string            `json:"reason,omitempty"`
}

// ConnectionStatus describes the Streamlabs connection.
type ConnectionStatus struct {
	Status         string     `json:"status"`
	Address        string     `json:"address"`
	ConnectedSince *time.Time `json:"connected_since,omitempty"`
}

// BridgeStatistics contains connector counters plus command outcomes.
type BridgeStatistics struct {
	RequestsSent      uint64 `json:"requests_sent"`
	MessagesReceived  uint64 `json:"messages_received"`
	MessagesMalformed uint64 `json:"messages_malformed"`
	RPCErrors         uint64 `json:"rpc_errors"`
	Timeouts          uint64 `json:"timeouts"`
	Pending           int    `json:"pending"`
	CommandsAccepted  uint64 `json:"commands_accepted"`
	CommandsFailed    uint64 `json:"commands_failed"`
}

// NewHealthMessage creates a health message from connector statistics.
func NewHealthMessage(bridgeID, version string, status HealthStatus, stats ConnectorStats, startTime time.Time) HealthMessage {
	msg := HealthMessage{
		Bridge:        bridgeID,
		Timestamp:     time.Now().UTC(),
		Status:        status,
		Version:       version,
		UptimeSeconds: int64(time.Since(startTime).Seconds()),
		Statistics: &BridgeStatistics{
			RequestsSent:      stats.RequestsSent,
			MessagesReceived:  stats.MessagesReceived,
			MessagesMalformed: stats.MessagesMalformed,
			RPCErrors:         stats.RPCErrors,
			Timeouts:          stats.Timeouts,
			Pending:           stats.Pending,
		},
	}

	msg.Connection = &ConnectionStatus{Status: "disconnected"}
	if stats.Connected {
		msg.Connection.Status = "connected"
		if !stats.ConnectedSince.IsZero() {
			since := stats.ConnectedSince.UTC()
			msg.Connection.ConnectedSince = &since
		}
	}

	return msg
}

// NewLWTMessage is the health message the broker publishes if the bridge
// disappears.
func NewLWTMessage(bridgeID string) HealthMessage {
	return HealthMessage{
		Bridge:    bridgeID,
		Timestamp: time.Now().UTC(),
		Status:    HealthOffline,
		Reason:    "unexpected_disconnect",
	}
}
