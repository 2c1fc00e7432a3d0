package influxdb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-slobs/internal/infrastructure/config"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPingTimeout    = 5 * time.Second

	defaultBatchSize     = 100
	defaultFlushInterval = 10 * time.Second

	// tagBridge is added to every point and cannot be overridden.
	tagBridge = "bridge"
)

// pointWriter is the part of the library's WriteAPI the client needs.
type pointWriter interface {
	WritePoint(point *write.Point)
	Flush()
}

// Client records bridge activity in InfluxDB v2.
//
// Points are built here: each one carries the bridge tag and the client's
// clock, then goes to the batching, non-blocking write API. All methods are
// safe for concurrent use. A closed client drops points.
type Client struct {
	client   influxdb2.Client
	writer   pointWriter
	bridgeID string
	now      func() time.Time

	mu      sync.RWMutex
	closed  bool
	onError func(err error)
}

// Connect pings the server and returns a client writing to cfg.Bucket.
//
// Returns ErrDisabled when influxdb.enabled is false, so callers can treat
// metrics as optional.
func Connect(cfg config.InfluxDBConfig, bridgeID string) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, clientOptions(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), defaultConnectTimeout)
	defer cancel()
	if err := ping(ctx, client); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)

	c := newClient(writeAPI, bridgeID)
	c.client = client
	go c.forwardErrors(writeAPI.Errors())

	return c, nil
}

func newClient(w pointWriter, bridgeID string) *Client {
	return &Client{writer: w, bridgeID: bridgeID, now: time.Now}
}

// clientOptions maps the batch settings, falling back to defaults for
// non-positive values. The library takes the flush interval in ms.
func clientOptions(cfg config.InfluxDBConfig) *influxdb2.Options {
	batchSize := uint(defaultBatchSize)
	if cfg.BatchSize > 0 {
		batchSize = uint(cfg.BatchSize) // #nosec G115 -- checked positive
	}
	flush := defaultFlushInterval
	if cfg.FlushInterval > 0 {
		flush = time.Duration(cfg.FlushInterval) * time.Second
	}

	return influxdb2.DefaultOptions().
		SetBatchSize(batchSize).
		SetFlushInterval(uint(flush.Milliseconds())) // #nosec G115 -- positive
}

func ping(ctx context.Context, client influxdb2.Client) error {
	healthy, err := client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	if !healthy {
		return errors.New("server not healthy")
	}
	return nil
}

// forwardErrors hands async write failures to the OnError callback until
// the library closes the channel.
func (c *Client) forwardErrors(errorsCh <-chan error) {
	for err := range errorsCh {
		c.mu.RLock()
		callback := c.onError
		c.mu.RUnlock()

		if callback != nil {
			callback(fmt.Errorf("%w: %w", ErrWriteFailed, err))
		}
	}
}

// point stamps a measurement with the bridge tag and the client clock.
func (c *Client) point(measurement string, tags map[string]string, fields map[string]interface{}) *write.Point {
	all := make(map[string]string, len(tags)+1)
	for k, v := range tags {
		all[k] = v
	}
	all[tagBridge] = c.bridgeID
	return write.NewPoint(measurement, all, fields, c.now())
}

// record queues a point unless the client is closed.
func (c *Client) record(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}
	c.writer.WritePoint(c.point(measurement, tags, fields))
}

// Close flushes pending writes and closes the client.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	if c.writer != nil {
		c.writer.Flush()
	}
	if c.client != nil {
		c.client.Close()
	}
	return nil
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() || c.client == nil {
		return ErrNotConnected
	}

	checkCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	if err := ping(checkCtx, c.client); err != nil {
		return fmt.Errorf("influxdb health check: %w", err)
	}
	return nil
}

// IsConnected reports whether points are still accepted. HealthCheck
// actively pings.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.writer != nil && !c.closed
}

// SetOnError sets the callback for asynchronous write failures. Errors
// passed to it wrap ErrWriteFailed.
func (c *Client) SetOnError(callback func(err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = callback
}

// Flush blocks until buffered points are written. No-op after Close.
func (c *Client) Flush() {
	if !c.IsConnected() {
		return
	}
	c.writer.Flush()
}
