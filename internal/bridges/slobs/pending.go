package slobs

import (
	"sync"
	"time"
)

// pendingRequest is an outstanding request awaiting its reply.
type pendingRequest struct {
	kind   RequestKind
	method string
	sentAt time.Time
	timer  *time.Timer
}

// pendingRegistry maps request id to what the reply should contain.
// Entries leave the registry when the reply arrives, when their timer
// fires, or when the registry is drained on close.
type pendingRegistry struct {
	mu      sync.Mutex
	entries map[int]*pendingRequest
}

func newPendingRegistry() *pendingRegistry {
	return &pendingRegistry{entries: make(map[int]*pendingRequest)}
}

// add registers id. With a positive timeout, onExpire runs on its own
// goroutine if the entry is still pending when the timer fires.
func (p *pendingRegistry) add(id int, kind RequestKind, method string, timeout time.Duration, onExpire func(id int, req pendingRequest)) {
	req := &pendingRequest{kind: kind, method: method, sentAt: time.Now()}

	p.mu.Lock()
	defer p.mu.Unlock()

	if timeout > 0 && onExpire != nil {
		req.timer = time.AfterFunc(timeout, func() {
			if expired, ok := p.take(id); ok {
				onExpire(id, expired)
			}
		})
	}
	p.entries[id] = req
}

// take removes id and returns its entry, stopping any timer.
func (p *pendingRegistry) take(id int) (pendingRequest, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	req, ok := p.entries[id]
	if !ok {
		return pendingRequest{}, false
	}
	delete(p.entries, id)
	if req.timer != nil {
		req.timer.Stop()
	}
	return *req, true
}

// resolve adapts take to ResolveFunc.
func (p *pendingRegistry) resolve(id int) (RequestKind, bool) {
	req, ok := p.take(id)
	return req.kind, ok
}

// drain removes every entry and returns how many there were.
func (p *pendingRegistry) drain() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.entries)
	for id, req := range p.entries {
		if req.timer != nil {
			req.timer.Stop()
		}
		delete(p.entries, id)
	}
	return n
}

func (p *pendingRegistry) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}
