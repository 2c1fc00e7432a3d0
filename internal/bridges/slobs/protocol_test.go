package slobs

import (
	"encoding/json"
	"testing"
)

func TestRequest_Encode(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want string
	}{
		{
			name: "auth with token",
			req:  NewRequest(1, MethodAuth, ResourceTCPServer, []any{"tok"}),
			want: `{"jsonrpc":"2.0","method":"auth","params":{"resource":"TcpServerService","args":["tok"]},"id":1}`,
		},
		{
			name: "nil args become empty array",
			req:  NewRequest(2, MethodGetScenes, ResourceScenes, nil),
			want: `{"jsonrpc":"2.0","method":"getScenes","params":{"resource":"ScenesService","args":[]},"id":2}`,
		},
		{
			name: "rotation transform",
			req: NewRequest(9, MethodSetTransform, `SceneItem["s","i","src"]`,
				[]any{Transform{Rotation: 90}}),
			want: `{"jsonrpc":"2.0","method":"setTransform","params":{"resource":"SceneItem[\"s\",\"i\",\"src\"]","args":[{"rotation":90}]},"id":9}`,
		},
		{
			name: "visibility flag",
			req:  NewRequest(10, MethodSetVisibility, "r", []any{false}),
			want: `{"jsonrpc":"2.0","method":"setVisibility","params":{"resource":"r","args":[false]},"id":10}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := tt.req.Encode()
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if string(data) != tt.want {
				t.Errorf("Encode() =\n  %s\nwant\n  %s", data, tt.want)
			}
		})
	}
}

func TestRequest_EncodeUnsupportedArg(t *testing.T) {
	req := NewRequest(1, "x", "y", []any{make(chan int)})
	if _, err := req.Encode(); err == nil {
		t.Error("Encode() expected error for channel argument")
	}
}

func TestScene_DecodeIgnoresExtraFields(t *testing.T) {
	raw := `{"id":"s1","name":"Main","resourceId":"Scene[\"s1\"]","nodes":[
		{"id":"i1","name":"Cam","sourceId":"src1","sceneNodeType":"item","visible":true}
	]}`

	var scene Scene
	if err := json.Unmarshal([]byte(raw), &scene); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if scene.ID != "s1" || scene.Name != "Main" || len(scene.Nodes) != 1 {
		t.Fatalf("scene = %+v", scene)
	}
	if scene.Nodes[0] != (SceneItem{ID: "i1", Name: "Cam", SourceID: "src1"}) {
		t.Errorf("node = %+v", scene.Nodes[0])
	}
}

func TestRequestKind_String(t *testing.T) {
	kinds := map[RequestKind]string{
		KindCommand:      "command",
		KindAuth:         "auth",
		KindScenes:       "scenes",
		KindActiveScene:  "active_scene",
		KindSubscription: "subscription",
	}
	for k, want := range kinds {
		if got := k.String(); got != want {
			t.Errorf("RequestKind(%d).String() = %q, want %q", k, got, want)
		}
	}
}
