package influxdb

import (
	"context"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/nerrad567/fog-access-core/internal/infrastructure/config"
)

const (
	startupPingTimeout = 10 * time.Second
	healthPingTimeout  = 5 * time.Second

	// Points are flushed when either limit is reached. A busy door reader
	// produces a handful of decisions a minute, so the interval dominates.
	defaultBatchSize     = 100
	defaultFlushInterval = 10 // seconds
)

// Client records access decisions and device telemetry for one fog node.
// Every point is tagged with the node's site ID so several nodes can share
// a bucket.
//
// Thread Safety:
//   - Safe for concurrent use. Write methods queue points and return at
//     once; the influx WriteAPI batches them in the background.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	cfg      config.InfluxDBConfig

	connected bool
	mu        sync.RWMutex

	onError func(err error)
}

// Connect opens the history store for site. The server must answer a ping
// before any point is queued, so a misconfigured URL shows up at startup
// rather than as a stream of write errors.
//
// Returns:
//   - *Client: ready to accept points
//   - error: ErrDisabled when cfg.Enabled is false, ErrConnectionFailed when
//     the ping fails or reports the server unhealthy
func Connect(cfg config.InfluxDBConfig, site string) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = defaultFlushInterval
	}

	// #nosec G115 -- both values are positive, checked above
	opts := influxdb2.DefaultOptions().
		SetBatchSize(uint(batchSize)).
		SetFlushInterval(uint(time.Duration(flushInterval) * time.Second / time.Millisecond))
	if site != "" {
		opts.AddDefaultTag("site", site)
	}
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)

	ctx, cancel := context.WithTimeout(context.Background(), startupPingTimeout)
	defer cancel()

	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: %s reported unhealthy", ErrConnectionFailed, cfg.URL)
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)
	c := &Client{
		client:    client,
		writeAPI:  writeAPI,
		cfg:       cfg,
		connected: true,
	}
	go c.handleWriteErrors(writeAPI.Errors())

	return c, nil
}

// handleWriteErrors forwards batch failures until the WriteAPI closes its
// error channel on Close.
func (c *Client) handleWriteErrors(failures <-chan error) {
	for err := range failures {
		c.mu.RLock()
		callback := c.onError
		c.mu.RUnlock()

		if callback != nil {
			callback(err)
		}
	}
}

// Close sends any queued points and releases the connection. A nil or
// already closed Client is a no-op.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}

	c.mu.Lock()
	wasConnected := c.connected
	c.connected = false
	c.mu.Unlock()
	if !wasConnected {
		return nil
	}

	c.writeAPI.Flush()
	c.client.Close()
	return nil
}

// HealthCheck pings the history store for /api/v1/health.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	checkCtx, cancel := context.WithTimeout(ctx, healthPingTimeout)
	defer cancel()

	healthy, err := c.client.Ping(checkCtx)
	if err != nil {
		return fmt.Errorf("pinging history store: %w", err)
	}
	if !healthy {
		return fmt.Errorf("history store at %s reported unhealthy", c.cfg.URL)
	}
	return nil
}

// IsConnected reports whether Connect succeeded and Close has not run.
func (c *Client) IsConnected() bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// SetOnError registers fn for batches the server rejected. The node logs
// them; decisions are never retried.
func (c *Client) SetOnError(fn func(err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = fn
}

// Flush blocks until queued points are sent. Tests use it to read back
// what was written.
func (c *Client) Flush() {
	if !c.IsConnected() || c.writeAPI == nil {
		return
	}
	c.writeAPI.Flush()
}
