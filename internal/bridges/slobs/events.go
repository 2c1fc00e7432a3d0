package slobs

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Event is a classified inbound message. The concrete types below are the
// only implementations.
type Event interface {
	isEvent()
}

// ScenesListed is the reply to getScenes.
type ScenesListed struct {
	Scenes []Scene
}

// ActiveSceneResolved is the reply to activeScene.
type ActiveSceneResolved struct {
	Scene Scene
}

// SceneAdded is pushed when a scene is created.
type SceneAdded struct {
	Scene Scene
}

// SceneRemoved is pushed when a scene is deleted.
type SceneRemoved struct {
	Scene Scene
}

// SceneSwitched is pushed whenever the active scene changes.
type SceneSwitched struct {
	Scene Scene
}

// StreamingStatusChanged is pushed on every streaming state transition.
type StreamingStatusChanged struct {
	Status string
}

// Acknowledged is a successful reply to auth, a subscription or a command.
type Acknowledged struct {
	ID     int
	Kind   RequestKind
	Result json.RawMessage
}

// RPCError is an error reply to a request.
type RPCError struct {
	ID      int
	Kind    RequestKind
	Code    int
	Message string
}

// Unrecognized is valid JSON-RPC that matches no known request or event,
// such as a reply that arrives after its request timed out.
type Unrecognized struct {
	ID         *int
	ResourceID string
}

func (ScenesListed) isEvent()           {}
func (ActiveSceneResolved) isEvent()    {}
func (SceneAdded) isEvent()             {}
func (SceneRemoved) isEvent()           {}
func (SceneSwitched) isEvent()          {}
func (StreamingStatusChanged) isEvent() {}
func (Acknowledged) isEvent()           {}
func (RPCError) isEvent()               {}
func (Unrecognized) isEvent()           {}

// envelope covers replies and pushed events.
type envelope struct {
	ID     *int            `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// eventPayload is the result body of a pushed event.
type eventPayload struct {
	Type       string          `json:"_type"`
	ResourceID string          `json:"resourceId"`
	Data       json.RawMessage `json:"data"`
}

// ResolveFunc claims a pending request by id, returning the kind it was
// registered with. It reports false for ids that are not pending.
type ResolveFunc func(id int) (RequestKind, bool)

// Decode classifies one inbound message.
//
// Replies are matched against pending requests through resolve. A message
// that is not a reply to a pending request is treated as a pushed event if
// its result carries a resourceId and non-null data.
//
// Returns ErrMalformedMessage (wrapped) for invalid JSON or for a known
// message whose payload has the wrong shape.
func Decode(data []byte, resolve ResolveFunc) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}

	if env.ID != nil && resolve != nil {
		if kind, ok := resolve(*env.ID); ok {
			return decodeReply(*env.ID, kind, env)
		}
	}

	if isNull(env.Result) {
		return Unrecognized{ID: env.ID}, nil
	}

	var payload eventPayload
	if err := json.Unmarshal(env.Result, &payload); err != nil || payload.ResourceID == "" || isNull(payload.Data) {
		// Arrays and scalars land here too: a reply to an id nobody is waiting for.
		return Unrecognized{ID: env.ID, ResourceID: payload.ResourceID}, nil
	}

	return decodePush(payload)
}

func decodeReply(id int, kind RequestKind, env envelope) (Event, error) {
	if env.Error != nil {
		return RPCError{ID: id, Kind: kind, Code: env.Error.Code, Message: env.Error.Message}, nil
	}

	switch kind {
	case KindScenes:
		if !isArray(env.Result) {
			return nil, fmt.Errorf("%w: getScenes result is not an array", ErrMalformedMessage)
		}
		var scenes []Scene
		if err := json.Unmarshal(env.Result, &scenes); err != nil {
			return nil, fmt.Errorf("%w: getScenes result: %w", ErrMalformedMessage, err)
		}
		return ScenesListed{Scenes: scenes}, nil

	case KindActiveScene:
		scene, err := decodeScene(env.Result)
		if err != nil {
			return nil, fmt.Errorf("activeScene result: %w", err)
		}
		return ActiveSceneResolved{Scene: scene}, nil

	default:
		return Acknowledged{ID: id, Kind: kind, Result: env.Result}, nil
	}
}

func decodePush(p eventPayload) (Event, error) {
	switch p.ResourceID {
	case EventSceneAdded, EventSceneRemoved, EventSceneSwitched:
		scene, err := decodeScene(p.Data)
		if err != nil {
			return nil, fmt.Errorf("%s data: %w", p.ResourceID, err)
		}
		switch p.ResourceID {
		case EventSceneAdded:
			return SceneAdded{Scene: scene}, nil
		case EventSceneRemoved:
			return SceneRemoved{Scene: scene}, nil
		default:
			return SceneSwitched{Scene: scene}, nil
		}

	case EventStreamingStatusChange:
		var status string
		if err := json.Unmarshal(p.Data, &status); err != nil {
			return nil, fmt.Errorf("%w: streaming status: %w", ErrMalformedMessage, err)
		}
		return StreamingStatusChanged{Status: status}, nil

	default:
		return Unrecognized{ResourceID: p.ResourceID}, nil
	}
}

func decodeScene(raw json.RawMessage) (Scene, error) {
	if !isObject(raw) {
		return Scene{}, fmt.Errorf("%w: scene is not an object", ErrMalformedMessage)
	}
	var scene Scene
	if err := json.Unmarshal(raw, &scene); err != nil {
		return Scene{}, fmt.Errorf("%w: scene: %w", ErrMalformedMessage, err)
	}
	return scene, nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func isArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}
