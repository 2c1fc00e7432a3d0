package slobs

import "errors"

// Domain errors for the SLOBS connector.
var (
	// ErrNotConnected is returned when a request is sent before the
	// transport has opened.
	ErrNotConnected = errors.New("slobs: not connected")

	// ErrTransportClosed is returned for any send after the transport
	// closed. A closed connector never reopens.
	ErrTransportClosed = errors.New("slobs: transport closed")

	// ErrConnectionFailed is returned when the websocket dial fails.
	ErrConnectionFailed = errors.New("slobs: connection failed")

	// ErrSceneNotFound is returned when a scene name is not in the cache.
	ErrSceneNotFound = errors.New("slobs: scene not found")

	// ErrMalformedMessage is returned by Decode for inbound payloads that
	// are not valid JSON-RPC or whose result does not have the expected shape.
	ErrMalformedMessage = errors.New("slobs: malformed message")

	// ErrRequestTimeout is reported when no reply arrives within the
	// configured request timeout.
	ErrRequestTimeout = errors.New("slobs: request timed out")

	// ErrRPC wraps an error object returned by the SLOBS API.
	ErrRPC = errors.New("slobs: rpc error")

	// ErrAuthFailed is reported when the auth request is rejected.
	ErrAuthFailed = errors.New("slobs: authentication failed")

	// ErrInvalidAddress is returned when a scene item resource string
	// cannot be parsed.
	ErrInvalidAddress = errors.New("slobs: invalid scene item address")
)

// IsClosedError reports whether err means there is no usable connection:
// the transport never opened or has closed.
func IsClosedError(err error) bool {
	return errors.Is(err, ErrTransportClosed) || errors.Is(err, ErrNotConnected)
}
