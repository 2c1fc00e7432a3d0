package slobs

import (
	"encoding/json"
	"fmt"
)

// JSONRPCVersion is sent on every request.
const JSONRPCVersion = "2.0"

// Service resources.
const (
	ResourceTCPServer = "TcpServerService"
	ResourceScenes    = "ScenesService"
	ResourceStreaming = "StreamingService"
)

// Methods used by the connector.
const (
	MethodAuth                  = "auth"
	MethodGetScenes             = "getScenes"
	MethodActiveScene           = "activeScene"
	MethodSceneSwitched         = "sceneSwitched"
	MethodSceneAdded            = "sceneAdded"
	MethodSceneRemoved          = "sceneRemoved"
	MethodStreamingStatusChange = "streamingStatusChange"
	MethodMakeSceneActive       = "makeSceneActive"
	MethodSetVisibility         = "setVisibility"
	MethodFlipX                 = "flipX"
	MethodFlipY                 = "flipY"
	MethodSetTransform          = "setTransform"
)

// Resource ids carried by pushed events. They are "<resource>.<method>"
// of the subscription that produced them.
const (
	EventSceneSwitched         = ResourceScenes + "." + MethodSceneSwitched
	EventSceneAdded            = ResourceScenes + "." + MethodSceneAdded
	EventSceneRemoved          = ResourceScenes + "." + MethodSceneRemoved
	EventStreamingStatusChange = ResourceStreaming + "." + MethodStreamingStatusChange
)

// Streaming status values that drive the stream callbacks. SLOBS also
// emits "live", "reconnecting" and "offline", which are ignored.
const (
	StreamStatusStarting = "starting"
	StreamStatusEnding   = "ending"
)

// Scene mirrors a SLOBS scene model. Only the fields the connector uses
// are decoded.
type Scene struct {
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	Nodes []SceneItem `json:"nodes"`
}

// SceneItem is one node of a scene. Names are not unique.
type SceneItem struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	SourceID string `json:"sourceId"`
}

// Request is an outbound JSON-RPC request.
type Request struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  RequestParams `json:"params"`
	ID      int           `json:"id"`
}

// RequestParams addresses the resource the method is invoked on.
// Args is always encoded as an array.
type RequestParams struct {
	Resource string `json:"resource"`
	Args     []any  `json:"args"`
}

// NewRequest builds a request; nil args become an empty array.
func NewRequest(id int, method, resource string, args []any) Request {
	if args == nil {
		args = []any{}
	}
	return Request{
		JSONRPC: JSONRPCVersion,
		Method:  method,
		Params:  RequestParams{Resource: resource, Args: args},
		ID:      id,
	}
}

// Encode serialises the request for the wire.
func (r Request) Encode() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode %s request %d: %w", r.Method, r.ID, err)
	}
	return data, nil
}

// Transform is the argument of setTransform. Only rotation is supported.
type Transform struct {
	Rotation float64 `json:"rotation"`
}

// RequestKind records what a pending request expects back.
type RequestKind int

const (
	KindCommand RequestKind = iota
	KindAuth
	KindScenes
	KindActiveScene
	KindSubscription
)

func (k RequestKind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindScenes:
		return "scenes"
	case KindActiveScene:
		return "active_scene"
	case KindSubscription:
		return "subscription"
	default:
		return "command"
	}
}
