// Package api provides the HTTP REST API for the Streamlabs bridge.
//
// It exposes the cached scene list and the same commands the MQTT bridge
// accepts, for tools that would rather speak HTTP than MQTT.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// # Routes
//
// All routes live under /api/v1:
//
//	GET  /health                       dependency and connection status
//	GET  /scenes                       cached scenes and the active one
//	GET  /scenes/active                active scene name
//	PUT  /scenes/active                switch scene   {"scene": "BRB"}
//	GET  /scenes/{name}                one cached scene
//	POST /sources/{source}/visibility  {"scene": "Main", "visible": false}
//	POST /sources/{source}/flip        {"scene": "Main", "axis": "x"}
//	POST /sources/{source}/rotate      {"scene": "Main", "degrees": 90}
//	GET  /audit                        recent commands, newest first
//
// Commands are answered with 202 Accepted once the request is on the
// socket. Streamlabs confirms a scene switch by pushing sceneSwitched,
// which the MQTT bridge republishes; the HTTP caller is not held open for it.
// An omitted "scene" addresses the active scene.
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
