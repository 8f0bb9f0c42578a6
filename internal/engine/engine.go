// Package engine composes the core subsystems into a runnable shell:
// a frame clock, a work queue, the Lua script system, and optionally a
// replication server, all hanging off one object context driven by a
// fixed-rate main loop.
package engine

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	"github.com/keel-engine/keel/internal/core/object"
	"github.com/keel-engine/keel/internal/core/observability/log"
	"github.com/keel-engine/keel/internal/core/replication"
	quictransport "github.com/keel-engine/keel/internal/core/replication/quic"
	wstransport "github.com/keel-engine/keel/internal/core/replication/websocket"
	"github.com/keel-engine/keel/internal/core/script"
	"github.com/keel-engine/keel/internal/core/timing"
	"github.com/keel-engine/keel/internal/core/work"
)

// TypeEngine identifies the engine shell itself.
var TypeEngine = object.NewTypeInfo("Engine", nil)

// shutdownGrace bounds how long teardown waits for the network and work
// layers to drain.
const shutdownGrace = 5 * time.Second

// Engine owns the frame loop. Run must be called on the goroutine that
// created the Context.
type Engine struct {
	object.BaseObject

	cfg    Config
	clock  *timing.Clock
	work   *work.Queue
	script *script.System
	server *replication.Server

	stop     chan struct{}
	stopOnce sync.Once
	stopped  bool
}

// New builds an engine and registers its subsystems on the context in
// startup order.
func New(ctx *object.Context, cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	// Resolve the transport before any subsystem spawns goroutines, so
	// a bad network config cannot leave a half-built engine behind.
	var transport replication.Transport
	if cfg.Network.Enabled {
		var err error
		transport, err = buildTransport(cfg.Network)
		if err != nil {
			return nil, err
		}
	}

	e := &Engine{
		cfg:  cfg,
		stop: make(chan struct{}),
	}
	e.Init(ctx, TypeEngine, e)

	e.clock = timing.NewClock(ctx)
	e.work = work.NewQueue(ctx, cfg.Workers)
	e.script = script.NewSystem(ctx)
	ctx.RegisterSubsystem(e.clock)
	ctx.RegisterSubsystem(e.work)
	ctx.RegisterSubsystem(e.script)

	if transport != nil {
		e.server = replication.NewServer(ctx, transport)
		ctx.RegisterSubsystem(e.server)
	}
	return e, nil
}

// Clock returns the frame clock subsystem.
func (e *Engine) Clock() *timing.Clock { return e.clock }

// Work returns the background work queue subsystem.
func (e *Engine) Work() *work.Queue { return e.work }

// Script returns the Lua script subsystem.
func (e *Engine) Script() *script.System { return e.script }

// Server returns the replication server, or nil when networking is
// disabled.
func (e *Engine) Server() *replication.Server { return e.server }

// Run starts the network listener, executes the script entry point, and
// drives the frame loop until the context is canceled or Stop is
// called. Teardown runs before Run returns. Main goroutine only.
func (e *Engine) Run(ctx context.Context) error {
	if e.server != nil {
		if err := e.server.Start(ctx, e.cfg.Network.Listen); err != nil {
			e.teardown()
			return err
		}
	}
	if e.cfg.ScriptEntry != "" {
		if err := e.script.DoFile(e.cfg.ScriptEntry); err != nil {
			e.teardown()
			return err
		}
	}
	e.log().Info("engine: running",
		log.Int("frame_rate", e.cfg.FrameRate),
		log.Bool("network", e.cfg.Network.Enabled))

	ticker := time.NewTicker(e.cfg.FrameInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			e.teardown()
			return ctx.Err()
		case <-e.stop:
			e.teardown()
			return nil
		case <-ticker.C:
			e.frame()
		}
	}
}

// Stop ends Run from any goroutine. Safe to call repeatedly.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stop) })
}

// frame runs one iteration of the main loop: frame events, completion
// delivery, replication, end-of-frame.
func (e *Engine) frame() {
	dt := e.clock.MeasuredStep()
	e.clock.BeginFrame(dt)
	e.work.Drain()
	if e.server != nil {
		e.server.Tick()
	}
	e.clock.EndFrame()
}

// teardown shuts the layers down in dependency order: network first,
// then scripting, then the work queue, and finally the subsystem
// registry itself.
func (e *Engine) teardown() {
	if e.stopped {
		return
	}
	e.stopped = true
	graceCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if e.server != nil {
		if err := e.server.Stop(graceCtx); err != nil {
			e.log().Warn("engine: replication stop", log.Error(err))
		}
	}
	e.script.Close()
	if err := e.work.Close(graceCtx); err != nil {
		e.log().Warn("engine: work queue close", log.Error(err))
	}
	e.Context().Shutdown()
	e.log().Info("engine: stopped", log.Uint64("frames", e.clock.FrameNumber()))
}

func (e *Engine) log() log.Log { return e.Context().Log() }

func buildTransport(cfg NetworkConfig) (replication.Transport, error) {
	switch cfg.Transport {
	case TransportWebsocket:
		return &wstransport.Transport{}, nil
	case TransportQUIC:
		tlsConf, err := quicTLS(cfg)
		if err != nil {
			return nil, err
		}
		return &quictransport.Transport{TLS: tlsConf}, nil
	default:
		return nil, fmt.Errorf("engine: unknown transport %q", cfg.Transport)
	}
}

func quicTLS(cfg NetworkConfig) (*tls.Config, error) {
	if cfg.DevTLS {
		return quictransport.GenerateDevTLS()
	}
	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("engine: load tls keypair: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS13,
	}, nil
}
