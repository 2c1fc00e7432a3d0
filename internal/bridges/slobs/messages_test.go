package slobs

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestTopics(t *testing.T) {
	tests := []struct {
		got  string
		want string
	}{
		{CommandSubscribeTopic(), "graylogic/command/slobs/+"},
		{AckTopic("scene"), "graylogic/ack/slobs/scene"},
		{StateTopic(), "graylogic/state/slobs/scenes"},
		{EventTopic(EventNameSceneSwitched), "graylogic/event/slobs/scene_switched"},
		{HealthTopic(), "graylogic/health/slobs"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestNewStateMessage(t *testing.T) {
	scenes := []Scene{
		{ID: "s1", Name: "Main", Nodes: []SceneItem{{ID: "i1", Name: "Cam"}, {ID: "i2", Name: "Overlay"}}},
		{ID: "s2", Name: "BRB"},
	}

	msg := NewStateMessage("Main", scenes)

	if msg.ActiveScene != "Main" || msg.Protocol != Protocol || len(msg.Scenes) != 2 {
		t.Fatalf("msg = %+v", msg)
	}
	if !msg.Scenes[0].Active || msg.Scenes[1].Active {
		t.Errorf("active flags = %v, %v", msg.Scenes[0].Active, msg.Scenes[1].Active)
	}
	if strings.Join(msg.Scenes[0].Items, ",") != "Cam,Overlay" {
		t.Errorf("items = %v", msg.Scenes[0].Items)
	}

	// An empty scene still serialises items as [], not null.
	payload, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if !strings.Contains(string(payload), `"name":"BRB","active":false,"items":[]`) {
		t.Errorf("payload = %s", payload)
	}
}

func TestNewStateMessage_NoScenes(t *testing.T) {
	payload, err := json.Marshal(NewStateMessage("", nil))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if !strings.Contains(string(payload), `"scenes":[]`) {
		t.Errorf("payload = %s", payload)
	}
}

func TestAckMessages(t *testing.T) {
	cmd := CommandMessage{ID: "c-1", Command: CommandFlipX}

	ok := NewAckMessage(cmd, "Cam", map[string]any{"matched": 1})
	if ok.Status != AckAccepted || ok.Error != nil || ok.Target != "Cam" {
		t.Errorf("accepted ack = %+v", ok)
	}

	failed := NewAckError(cmd, "Cam", ErrCodeSourceNotFound, "no items")
	if failed.Status != AckFailed || failed.Error.Code != ErrCodeSourceNotFound {
		t.Errorf("failed ack = %+v", failed)
	}

	payload, err := json.Marshal(failed)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if strings.Contains(string(payload), `"result"`) {
		t.Errorf("failed ack should omit result: %s", payload)
	}
}

func TestCommandMessage_Decode(t *testing.T) {
	raw := `{"id":"c-9","timestamp":"2026-03-01T12:00:00Z","command":"rotate",
		"parameters":{"source":"Cam","degrees":45.5},"source":"automation"}`

	var cmd CommandMessage
	if err := json.Unmarshal([]byte(raw), &cmd); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !cmd.Timestamp.Equal(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("Timestamp = %v", cmd.Timestamp)
	}
	if deg, ok := numberParam(cmd.Parameters, "degrees"); !ok || deg != 45.5 {
		t.Errorf("degrees = %v, %v", deg, ok)
	}
	if _, ok := stringParam(cmd.Parameters, "scene"); ok {
		t.Error("absent scene reported present")
	}
}

func TestNewHealthMessage_Disconnected(t *testing.T) {
	msg := NewHealthMessage("b", "v", HealthDegraded, ConnectorStats{}, time.Now())
	if msg.Connection.Status != "disconnected" || msg.Connection.ConnectedSince != nil {
		t.Errorf("Connection = %+v", msg.Connection)
	}
}
