package slobs

import (
	"context"
	"sync"
)

// Transport is a message-oriented, bidirectional channel to SLOBS.
//
// Handlers are invoked from a single goroutine in delivery order. OnOpen
// fires once, before the first OnMessage. OnClose fires once, after the
// last OnMessage, with the error that ended the connection (nil for a
// local Close).
type Transport interface {
	SetHandlers(h TransportHandlers)
	Open(ctx context.Context) error
	SendText(ctx context.Context, msg []byte) error
	Close() error
}

// TransportHandlers are the transport callbacks. Nil fields are skipped.
type TransportHandlers struct {
	OnOpen    func()
	OnMessage func(data []byte)
	OnClose   func(err error)
}

// closeOnce wraps a channel with sync.Once to prevent double-close panics.
type closeOnce struct {
	ch   chan struct{}
	once sync.Once
}

func newCloseOnce() *closeOnce {
	return &closeOnce{ch: make(chan struct{})}
}

func (c *closeOnce) Close() {
	c.once.Do(func() { close(c.ch) })
}

func (c *closeOnce) Done() <-chan struct{} {
	return c.ch
}

func (c *closeOnce) IsClosed() bool {
	select {
	case <-c.ch:
		return true
	default:
		return false
	}
}
