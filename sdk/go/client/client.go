// Package client provides a high-level mirror client for Keel
// replication servers. It owns a dedicated run goroutine that hosts
// the object context, pumps the replication client at a fixed rate,
// and reconnects with backoff when the link drops. Mirrored objects
// live on that goroutine; reach them through Do or the callbacks,
// never from outside.
package client

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/keel-engine/keel/internal/core/hash"
	"github.com/keel-engine/keel/internal/core/object"
	"github.com/keel-engine/keel/internal/core/observability/log"
	"github.com/keel-engine/keel/internal/core/replication"
	quictransport "github.com/keel-engine/keel/internal/core/replication/quic"
	wstransport "github.com/keel-engine/keel/internal/core/replication/websocket"
	"github.com/keel-engine/keel/internal/core/variant"
)

// Transport selectors for Config.Transport.
const (
	TransportWebsocket = "websocket"
	TransportQUIC      = "quic"
)

// Config holds configuration for the client
type Config struct {
	// Connection settings
	Transport            string
	ServerAddr           string
	ConnectTimeout       time.Duration
	ReconnectInterval    time.Duration
	MaxReconnectAttempts int // consecutive failed dials before giving up; 0 disables reconnection

	// PumpInterval is how often queued frames are applied to the
	// mirror. Usually the server's frame interval or faster.
	PumpInterval time.Duration

	// TLS settings for the QUIC transport. Insecure skips certificate
	// verification for development servers.
	TLS      *tls.Config
	Insecure bool

	// Register installs the replicated type factories and attributes
	// into the mirror context before the first connection attempt.
	Register func(*object.Context)

	// Logging
	LogLevel log.Level
}

// DefaultConfig returns default client configuration
func DefaultConfig() Config {
	return Config{
		Transport:            TransportWebsocket,
		ServerAddr:           "127.0.0.1:7777",
		ConnectTimeout:       10 * time.Second,
		ReconnectInterval:    2 * time.Second,
		MaxReconnectAttempts: 10,
		PumpInterval:         16 * time.Millisecond,
		LogLevel:             log.LevelInfo,
	}
}

func (c Config) validate() error {
	if c.ServerAddr == "" {
		return ErrInvalidConfig
	}
	if c.Transport != TransportWebsocket && c.Transport != TransportQUIC {
		return ErrInvalidConfig
	}
	if c.PumpInterval <= 0 || c.ConnectTimeout <= 0 {
		return ErrInvalidConfig
	}
	if c.MaxReconnectAttempts > 0 && c.ReconnectInterval <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// ObjectHandler is invoked on the run goroutine when a mirrored object
// appears or disappears. The object must not be retained past the
// callback without taking a reference.
type ObjectHandler func(netID uint32, obj object.Object)

// Client is a managed connection to a replication server.
type Client struct {
	config    Config
	logger    log.Log
	transport replication.Transport

	calls chan func(mirror *replication.Client)
	stop  chan struct{}
	done  chan struct{}

	connected atomic.Bool
	lastErr   error // set by run before done closes

	mu        sync.Mutex
	started   bool
	closed    bool
	onCreated ObjectHandler
	onRemoved ObjectHandler
	onLost    func()
}

// New creates a client. Configure callbacks, then call Start.
func New(config Config) (*Client, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	c := &Client{
		config: config,
		logger: log.New(config.LogLevel).With(log.String("component", "sdk")),
		calls:  make(chan func(*replication.Client)),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	switch config.Transport {
	case TransportQUIC:
		c.transport = &quictransport.Transport{TLS: config.TLS, Insecure: config.Insecure}
	default:
		c.transport = &wstransport.Transport{}
	}
	return c, nil
}

// OnObjectCreated registers the mirrored-object callback. Set before
// Start.
func (c *Client) OnObjectCreated(fn ObjectHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onCreated = fn
}

// OnObjectRemoved registers the removal callback. Set before Start.
func (c *Client) OnObjectRemoved(fn ObjectHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onRemoved = fn
}

// OnConnectionLost registers the link-drop callback. It fires before
// any reconnection attempt. Set before Start.
func (c *Client) OnConnectionLost(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onLost = fn
}

// Start spawns the run goroutine and begins connecting.
func (c *Client) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	if c.started {
		return ErrAlreadyStarted
	}
	c.started = true
	go c.run()
	return nil
}

// IsConnected reports whether the link is currently up.
func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

// Do runs fn on the run goroutine, the only place mirrored objects may
// be touched. The mirror argument is nil while disconnected. Do blocks
// until fn has run or the client stops. Calling Do from inside a
// callback deadlocks; callbacks already run on the run goroutine.
func (c *Client) Do(fn func(mirror *replication.Client)) error {
	c.mu.Lock()
	started := c.started
	c.mu.Unlock()
	if !started {
		return ErrNotStarted
	}
	ran := make(chan struct{})
	wrapped := func(mirror *replication.Client) {
		fn(mirror)
		close(ran)
	}
	select {
	case c.calls <- wrapped:
	case <-c.done:
		return ErrClientClosed
	}
	select {
	case <-ran:
		return nil
	case <-c.done:
		return ErrClientClosed
	}
}

// Stop disconnects and shuts down the run goroutine. It returns the
// terminal connection error, if any, and is idempotent.
func (c *Client) Stop() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		<-c.done
		return c.lastErr
	}
	c.closed = true
	started := c.started
	c.mu.Unlock()

	close(c.stop)
	if !started {
		close(c.done)
		return nil
	}
	<-c.done
	return c.lastErr
}

// run hosts the mirror context. The context is created here so event
// dispatch treats this goroutine as the main one.
func (c *Client) run() {
	defer close(c.done)

	ctx := object.NewContext(c.logger)
	if c.config.Register != nil {
		c.config.Register(ctx)
	}
	w := newWatcher(ctx, c)
	defer w.ReleaseRef()

	attempts := 0
	for {
		select {
		case <-c.stop:
			return
		default:
		}

		mirror, err := c.connectOnce(ctx)
		if err != nil {
			attempts++
			c.logger.Warn("sdk: connect failed",
				log.String("addr", c.config.ServerAddr),
				log.Int("attempt", attempts),
				log.Error(err))
			if attempts > c.config.MaxReconnectAttempts {
				c.lastErr = fmt.Errorf("%w after %d attempts: %v", ErrReconnectFailed, attempts, err)
				return
			}
			if !c.waitRetry() {
				return
			}
			continue
		}

		attempts = 0
		c.connected.Store(true)
		c.logger.Info("sdk: connected", log.String("addr", c.config.ServerAddr))

		stopped := c.pumpLoop(mirror)
		c.connected.Store(false)
		_ = mirror.Close()
		if stopped {
			return
		}
		if c.config.MaxReconnectAttempts == 0 {
			return
		}
		if !c.waitRetry() {
			return
		}
	}
}

// connectOnce builds a fresh replication client and dials. Each
// session gets its own mirror set; stale objects from a dropped link
// are released with the old client.
func (c *Client) connectOnce(ctx *object.Context) (*replication.Client, error) {
	mirror := replication.NewClient(ctx, c.transport)
	dialCtx, cancel := context.WithTimeout(context.Background(), c.config.ConnectTimeout)
	defer cancel()
	if err := mirror.Connect(dialCtx, c.config.ServerAddr); err != nil {
		_ = mirror.Close()
		return nil, err
	}
	return mirror, nil
}

// pumpLoop services pump ticks and Do calls until the link drops or
// Stop is called.
func (c *Client) pumpLoop(mirror *replication.Client) (stopped bool) {
	ticker := time.NewTicker(c.config.PumpInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return true
		case fn := <-c.calls:
			fn(mirror)
		case <-ticker.C:
			mirror.Pump()
			if !mirror.Connected() {
				return false
			}
		}
	}
}

// waitRetry sleeps out the reconnect interval, still servicing Do
// calls with a nil mirror. Returns false when Stop interrupts.
func (c *Client) waitRetry() bool {
	timer := time.NewTimer(c.config.ReconnectInterval)
	defer timer.Stop()
	for {
		select {
		case <-c.stop:
			return false
		case fn := <-c.calls:
			fn(nil)
		case <-timer.C:
			return true
		}
	}
}

// watcher bridges context events to the SDK callbacks.
var typeWatcher = object.NewTypeInfo("SDKWatcher", nil)

type watcher struct {
	object.BaseObject
}

func newWatcher(ctx *object.Context, sdk *Client) *watcher {
	w := &watcher{}
	w.Init(ctx, typeWatcher, w)
	w.SubscribeToEvent(replication.EventNetObjectCreated, func(_ object.Object, _ hash.StringHash, data variant.Map) {
		sdk.dispatchObject(data, func(c *Client) ObjectHandler { return c.onCreated })
	})
	w.SubscribeToEvent(replication.EventNetObjectRemoved, func(_ object.Object, _ hash.StringHash, data variant.Map) {
		sdk.dispatchObject(data, func(c *Client) ObjectHandler { return c.onRemoved })
	})
	w.SubscribeToEvent(replication.EventConnectionLost, func(_ object.Object, _ hash.StringHash, _ variant.Map) {
		sdk.mu.Lock()
		fn := sdk.onLost
		sdk.mu.Unlock()
		if fn != nil {
			fn()
		}
	})
	return w
}

func (c *Client) dispatchObject(data variant.Map, pick func(*Client) ObjectHandler) {
	c.mu.Lock()
	fn := pick(c)
	c.mu.Unlock()
	if fn == nil {
		return
	}
	id := uint32(data[replication.ParamNetID].Int64())
	if obj, ok := data[replication.ParamObject].WeakRef().Get().(object.Object); ok {
		fn(id, obj)
	}
}
