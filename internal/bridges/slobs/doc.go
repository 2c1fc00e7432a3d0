// Package slobs connects Gray Logic to Streamlabs OBS.
//
// It has two halves. The Connector speaks the SLOBS JSON-RPC 2.0 API over a
// websocket: it authenticates with the API token, loads the scene list and
// active scene, subscribes to scene and streaming events, and keeps a
// SceneCache in sync with what it receives. Commands (switch scene, show or
// hide a source, flip, rotate) resolve names against that cache and are
// sent fire-and-forget.
//
// The Bridge puts the connector on the MQTT bus:
//
//	graylogic/command/slobs/{target}  commands from Core
//	graylogic/ack/slobs/{target}      one ack per command
//	graylogic/state/slobs/scenes      scene list and active scene, retained
//	graylogic/event/slobs/{event}     scene_switched, stream_started, stream_stopped
//	graylogic/health/slobs            health, retained, also the Last Will
//
// Usage:
//
//	transport := slobs.NewWebSocketTransport(slobs.WebSocketConfig{URL: cfg.SLOBS.URL})
//	conn, err := slobs.NewConnector(slobs.Options{Transport: transport, Token: cfg.SLOBS.Token})
//	...
//	bridge, err := slobs.NewBridge(slobs.BridgeOptions{BridgeID: id, MQTTClient: mq, Controller: conn})
//	...
//	bridge.Start(ctx) // installs callbacks
//	conn.Start(ctx)   // opens the websocket and bootstraps
//
// A Connector serves one connection and never reconnects; build a new one
// to try again.
package slobs
