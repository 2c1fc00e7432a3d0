package slobs

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Callbacks receive connector events. Nil fields are skipped.
//
// All callbacks except OnError run on the transport's read goroutine, in
// message order, and must not block. OnError may also run on a timer
// goroutine when a request times out.
type Callbacks struct {
	// OnConnected fires when the transport opens, before authentication.
	OnConnected func()

	// OnSwitchScenes fires once per sceneSwitched event, after the cache
	// has been updated. previous is the active scene before the switch,
	// including one learned from the bootstrap activeScene reply.
	OnSwitchScenes func(scene Scene, previous string)

	// OnStreamStarted and OnStreamStopped fire on the "starting" and
	// "ending" streaming status transitions.
	OnStreamStarted func()
	OnStreamStopped func()

	// OnScenesChanged fires after any event that changed the cache.
	OnScenesChanged func()

	// OnError reports dropped messages, RPC errors and timeouts.
	OnError func(err error)

	// OnClosed fires once when the transport closes.
	OnClosed func(err error)
}

// ConnectorStats holds operational statistics.
type ConnectorStats struct {
	RequestsSent      uint64
	MessagesReceived  uint64
	MessagesMalformed uint64
	RPCErrors         uint64
	Timeouts          uint64
	Pending           int
	Connected         bool
	ConnectedSince    time.Time
	LastActivity      time.Time
}

// Options holds configuration for creating a connector.
type Options struct {
	// Transport carries the JSON-RPC traffic. Required.
	Transport Transport

	// Token is the SLOBS API token sent with auth. Opaque.
	Token string

	// RequestTimeout expires pending requests with no reply.
	// Zero disables expiry.
	RequestTimeout time.Duration

	// Callbacks may also be installed later with SetCallbacks.
	Callbacks Callbacks

	// Logger is optional.
	Logger Logger
}

// connector lifecycle
const (
	stateIdle int32 = iota
	stateOpen
	stateClosed
)

// Connector speaks the SLOBS JSON-RPC API over a Transport and keeps a
// SceneCache in sync with the events it receives.
//
// On open it authenticates, requests the scene list and active scene, and
// subscribes to scene and streaming events. Commands resolve scene and
// source names against the cache and are fire-and-forget: they return once
// the request is written.
//
// A connector serves exactly one connection. After the transport closes,
// every send fails with ErrTransportClosed.
//
// Thread Safety: All methods are safe for concurrent use.
type Connector struct {
	transport      Transport
	token          string
	requestTimeout time.Duration

	cache   *SceneCache
	pending *pendingRegistry

	// sendMu keeps wire order equal to id order.
	sendMu sync.Mutex
	lastID int

	state atomic.Int32

	callbacks   Callbacks
	callbacksMu sync.RWMutex

	logger   Logger
	loggerMu sync.RWMutex

	requestsSent      atomic.Uint64
	messagesReceived  atomic.Uint64
	messagesMalformed atomic.Uint64
	rpcErrors         atomic.Uint64
	timeouts          atomic.Uint64
	connectedSince    atomic.Int64
	lastActivity      atomic.Int64
}

// NewConnector creates a connector bound to opts.Transport. Call Start to
// open the transport.
func NewConnector(opts Options) (*Connector, error) {
	if opts.Transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	if opts.RequestTimeout < 0 {
		return nil, fmt.Errorf("request timeout must not be negative")
	}

	c := &Connector{
		transport:      opts.Transport,
		token:          opts.Token,
		requestTimeout: opts.RequestTimeout,
		cache:          NewSceneCache(),
		pending:        newPendingRegistry(),
		callbacks:      opts.Callbacks,
		logger:         opts.Logger,
	}

	c.transport.SetHandlers(TransportHandlers{
		OnOpen:    c.handleOpen,
		OnMessage: c.handleMessage,
		OnClose:   c.handleClose,
	})

	return c, nil
}

// Start opens the transport. Bootstrap requests are sent from the open
// handler; a failed bootstrap send is logged and reported through OnError
// rather than returned, and the remaining bootstrap requests are skipped.
func (c *Connector) Start(ctx context.Context) error {
	if c.state.Load() == stateClosed {
		return ErrTransportClosed
	}
	if err := c.transport.Open(ctx); err != nil {
		return fmt.Errorf("open transport: %w", err)
	}
	return nil
}

// Close closes the transport. The connector stays inert afterwards.
func (c *Connector) Close() error {
	if c.state.Swap(stateClosed) == stateClosed {
		return nil
	}
	n := c.pending.drain()
	if n > 0 {
		c.logDebug("discarded pending requests on close", "count", n)
	}
	return c.transport.Close()
}

// SetCallbacks replaces the callbacks.
func (c *Connector) SetCallbacks(cb Callbacks) {
	c.callbacksMu.Lock()
	c.callbacks = cb
	c.callbacksMu.Unlock()
}

// SetLogger sets the logger.
func (c *Connector) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

// IsConnected reports whether the transport is open.
func (c *Connector) IsConnected() bool {
	return c.state.Load() == stateOpen
}

// Cache exposes the scene cache for read access.
func (c *Connector) Cache() *SceneCache {
	return c.cache
}

// CurrentScene returns the active scene name, "" until it is known.
func (c *Connector) CurrentScene() string {
	return c.cache.Active()
}

// Scene looks up a cached scene by name.
func (c *Connector) Scene(name string) (Scene, bool) {
	return c.cache.Get(name)
}

// Scenes returns every cached scene sorted by name.
func (c *Connector) Scenes() []Scene {
	return c.cache.Snapshot()
}

// SetCurrentScene asks SLOBS to activate the named scene and returns the
// scene that was active before. The cache is not changed here; the cursor
// moves when the sceneSwitched event arrives.
//
// Returns:
//   - string: previous active scene name
//   - error: ErrSceneNotFound (nothing sent), or a send error
func (c *Connector) SetCurrentScene(ctx context.Context, name string) (string, error) {
	scene, ok := c.cache.Get(name)
	if !ok {
		c.logError("no scene found with name", ErrSceneNotFound, "scene", name)
		return "", fmt.Errorf("%w: %q", ErrSceneNotFound, name)
	}

	previous := c.cache.Active()
	if _, err := c.send(ctx, MethodMakeSceneActive, ResourceScenes, []any{scene.ID}, KindCommand); err != nil {
		return previous, err
	}
	return previous, nil
}

// SetSourceVisibility shows or hides every item named source in scene.
// An empty scene means the active scene.
//
// Returns the number of items addressed. An unknown scene or source
// addresses nothing and is not an error.
func (c *Connector) SetSourceVisibility(ctx context.Context, scene, source string, enabled bool) (int, error) {
	return c.forEachItem(ctx, scene, source, MethodSetVisibility, []any{enabled})
}

// FlipSourceX mirrors every item named source horizontally.
func (c *Connector) FlipSourceX(ctx context.Context, scene, source string) (int, error) {
	return c.forEachItem(ctx, scene, source, MethodFlipX, nil)
}

// FlipSourceY mirrors every item named source vertically.
func (c *Connector) FlipSourceY(ctx context.Context, scene, source string) (int, error) {
	return c.forEachItem(ctx, scene, source, MethodFlipY, nil)
}

// RotateSource sets the absolute rotation, in degrees, of every item
// named source.
func (c *Connector) RotateSource(ctx context.Context, scene, source string, degrees float64) (int, error) {
	return c.forEachItem(ctx, scene, source, MethodSetTransform, []any{Transform{Rotation: degrees}})
}

// Send issues an arbitrary request and returns its id. The reply is
// consumed by the connector and only surfaces through OnError on failure.
func (c *Connector) Send(ctx context.Context, method, resource string, args []any) (int, error) {
	return c.send(ctx, method, resource, args, KindCommand)
}

// Stats returns a snapshot of the connector counters.
func (c *Connector) Stats() ConnectorStats {
	stats := ConnectorStats{
		RequestsSent:      c.requestsSent.Load(),
		MessagesReceived:  c.messagesReceived.Load(),
		MessagesMalformed: c.messagesMalformed.Load(),
		RPCErrors:         c.rpcErrors.Load(),
		Timeouts:          c.timeouts.Load(),
		Pending:           c.pending.len(),
		Connected:         c.IsConnected(),
	}
	if ts := c.connectedSince.Load(); ts != 0 {
		stats.ConnectedSince = time.Unix(0, ts)
	}
	if ts := c.lastActivity.Load(); ts != 0 {
		stats.LastActivity = time.Unix(0, ts)
	}
	return stats
}

// forEachItem sends method to every item named source in the resolved scene.
func (c *Connector) forEachItem(ctx context.Context, sceneName, source, method string, args []any) (int, error) {
	if sceneName == "" {
		sceneName = c.cache.Active()
	}

	scene, ok := c.cache.Get(sceneName)
	if !ok {
		c.logDebug("scene not cached, nothing to address", "scene", sceneName, "method", method)
		return 0, nil
	}

	matched := 0
	for _, item := range scene.Nodes {
		if item.Name != source {
			continue
		}
		if _, err := c.send(ctx, method, AddressOf(scene, item).String(), args, KindCommand); err != nil {
			return matched, err
		}
		matched++
	}

	if matched == 0 {
		c.logDebug("no scene items matched", "scene", sceneName, "source", source, "method", method)
	}
	return matched, nil
}

// send allocates the next id, registers it as pending and writes the
// request.
func (c *Connector) send(ctx context.Context, method, resource string, args []any, kind RequestKind) (int, error) {
	switch c.state.Load() {
	case stateIdle:
		return 0, ErrNotConnected
	case stateClosed:
		return 0, ErrTransportClosed
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	c.lastID++
	id := c.lastID

	payload, err := NewRequest(id, method, resource, args).Encode()
	if err != nil {
		return 0, err
	}

	c.pending.add(id, kind, method, c.requestTimeout, c.handleExpired)

	if err := c.transport.SendText(ctx, payload); err != nil {
		c.pending.take(id)
		return 0, fmt.Errorf("send %s (id %d): %w", method, id, err)
	}

	c.requestsSent.Add(1)
	c.logDebug("request sent", "id", id, "method", method, "resource", resource)
	return id, nil
}

// bootstrapRequest is one step of the open sequence.
type bootstrapRequest struct {
	method   string
	resource string
	kind     RequestKind
}

// bootstrapSequence lists the requests sent on open, in wire order
// (ids 1 through 7 on a fresh connector).
func bootstrapSequence() []bootstrapRequest {
	return []bootstrapRequest{
		{MethodAuth, ResourceTCPServer, KindAuth},
		{MethodGetScenes, ResourceScenes, KindScenes},
		{MethodActiveScene, ResourceScenes, KindActiveScene},
		{MethodSceneSwitched, ResourceScenes, KindSubscription},
		{MethodSceneAdded, ResourceScenes, KindSubscription},
		{MethodSceneRemoved, ResourceScenes, KindSubscription},
		{MethodStreamingStatusChange, ResourceStreaming, KindSubscription},
	}
}

func (c *Connector) handleOpen() {
	if !c.state.CompareAndSwap(stateIdle, stateOpen) {
		return
	}
	now := time.Now().UnixNano()
	c.connectedSince.Store(now)
	c.lastActivity.Store(now)

	c.logInfo("connected to streamlabs")
	if cb := c.getCallbacks().OnConnected; cb != nil {
		cb()
	}

	ctx := context.Background()
	for _, req := range bootstrapSequence() {
		var args []any
		if req.kind == KindAuth {
			args = []any{c.token}
		}
		if _, err := c.send(ctx, req.method, req.resource, args, req.kind); err != nil {
			c.logError("bootstrap request failed", err, "method", req.method)
			c.reportError(err)
			return
		}
	}
}

func (c *Connector) handleMessage(data []byte) {
	c.messagesReceived.Add(1)
	c.lastActivity.Store(time.Now().UnixNano())

	ev, err := Decode(data, c.pending.resolve)
	if err != nil {
		c.messagesMalformed.Add(1)
		c.logWarn("dropping malformed message", "error", err, "size", len(data))
		c.reportError(err)
		return
	}

	c.apply(ev)
}

// apply updates the cache for ev and forwards it to the callbacks.
func (c *Connector) apply(ev Event) {
	cb := c.getCallbacks()

	switch e := ev.(type) {
	case ScenesListed:
		c.cache.PutAll(e.Scenes)
		c.logInfo("scenes loaded", "count", len(e.Scenes))
		notify(cb.OnScenesChanged)

	case ActiveSceneResolved:
		c.cache.SetActive(e.Scene.Name)
		c.logInfo("active scene resolved", "scene", e.Scene.Name)
		notify(cb.OnScenesChanged)

	case SceneAdded:
		c.cache.Put(e.Scene)
		c.logInfo("scene added", "scene", e.Scene.Name)
		notify(cb.OnScenesChanged)

	case SceneRemoved:
		if c.cache.Remove(e.Scene.Name) {
			c.logInfo("scene removed", "scene", e.Scene.Name)
			notify(cb.OnScenesChanged)
		}

	case SceneSwitched:
		prev := c.cache.SetActive(e.Scene.Name)
		c.logInfo("scene switched", "scene", e.Scene.Name, "previous", prev)
		if cb.OnSwitchScenes != nil {
			cb.OnSwitchScenes(e.Scene, prev)
		}
		notify(cb.OnScenesChanged)

	case StreamingStatusChanged:
		switch e.Status {
		case StreamStatusStarting:
			c.logInfo("stream starting")
			notify(cb.OnStreamStarted)
		case StreamStatusEnding:
			c.logInfo("stream ending")
			notify(cb.OnStreamStopped)
		default:
			c.logDebug("streaming status", "status", e.Status)
		}

	case Acknowledged:
		if e.Kind == KindAuth {
			c.logInfo("authenticated")
		}

	case RPCError:
		c.rpcErrors.Add(1)
		sentinel := ErrRPC
		if e.Kind == KindAuth {
			sentinel = ErrAuthFailed
		}
		err := fmt.Errorf("%w: request %d (%s): code %d: %s", sentinel, e.ID, e.Kind, e.Code, e.Message)
		c.logError("request rejected", err)
		c.reportError(err)

	case Unrecognized:
		c.logDebug("ignoring message", "resource_id", e.ResourceID)
	}
}

func (c *Connector) handleExpired(id int, req pendingRequest) {
	c.timeouts.Add(1)
	err := fmt.Errorf("%w: request %d (%s) after %s", ErrRequestTimeout, id, req.method, time.Since(req.sentAt).Round(time.Millisecond))
	c.logWarn("request timed out", "id", id, "method", req.method)
	c.reportError(err)
}

func (c *Connector) handleClose(err error) {
	c.state.Store(stateClosed)
	c.pending.drain()

	if err != nil {
		c.logWarn("streamlabs connection closed", "error", err)
	} else {
		c.logInfo("streamlabs connection closed")
	}

	if cb := c.getCallbacks().OnClosed; cb != nil {
		cb(err)
	}
}

func (c *Connector) getCallbacks() Callbacks {
	c.callbacksMu.RLock()
	defer c.callbacksMu.RUnlock()
	return c.callbacks
}

func (c *Connector) reportError(err error) {
	if cb := c.getCallbacks().OnError; cb != nil {
		cb(err)
	}
}

func notify(fn func()) {
	if fn != nil {
		fn()
	}
}

func (c *Connector) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

func (c *Connector) logDebug(msg string, keysAndValues ...any) {
	if logger := c.getLogger(); logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}

func (c *Connector) logInfo(msg string, keysAndValues ...any) {
	if logger := c.getLogger(); logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

func (c *Connector) logWarn(msg string, keysAndValues ...any) {
	if logger := c.getLogger(); logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

func (c *Connector) logError(msg string, err error, keysAndValues ...any) {
	if logger := c.getLogger(); logger != nil {
		logger.Error(msg, append([]any{"error", err}, keysAndValues...)...)
	}
}
