// Command server runs a Keel engine with the replication server
// enabled and a handful of demo objects moving on the frame clock.
// Connect a replication client to the listen address to watch them.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"

	"github.com/keel-engine/keel/internal/core/hash"
	"github.com/keel-engine/keel/internal/core/object"
	"github.com/keel-engine/keel/internal/core/timing"
	"github.com/keel-engine/keel/internal/core/variant"
	"github.com/keel-engine/keel/internal/core/vmath"
	"github.com/keel-engine/keel/internal/engine"
	"github.com/keel-engine/keel/internal/injector"
)

// TypeOrbiter is the demo replicated type: a named point circling the
// origin. Name and Speed travel as reliable deltas, Position as
// latest-data updates every frame it moves.
var TypeOrbiter = object.NewTypeInfo("Orbiter", nil)

type Orbiter struct {
	object.Serializable

	name   string
	speed  float64
	radius float64
	angle  float64
	pos    vmath.Vector3
}

func NewOrbiter(ctx *object.Context) *Orbiter {
	o := &Orbiter{speed: 1, radius: 10}
	o.Init(ctx, TypeOrbiter, o)
	return o
}

func RegisterOrbiter(ctx *object.Context) {
	ctx.RegisterFactory(TypeOrbiter, func(c *object.Context) object.Object { return NewOrbiter(c) })
	ctx.RegisterAttribute(TypeOrbiter.Type(), object.AttributeInfo{
		Kind: variant.KindString, Name: "Name",
		Accessor: object.AccessorOf(
			func(o *Orbiter) variant.Variant { return variant.New(o.name) },
			func(o *Orbiter, v variant.Variant) { o.name = v.Str() }),
		Default: variant.New(""), Mode: object.AttrDefault,
	})
	ctx.RegisterAttribute(TypeOrbiter.Type(), object.AttributeInfo{
		Kind: variant.KindDouble, Name: "Speed",
		Accessor: object.AccessorOf(
			func(o *Orbiter) variant.Variant { return variant.New(o.speed) },
			func(o *Orbiter, v variant.Variant) { o.speed = v.Double() }),
		Default: variant.New(1.0), Mode: object.AttrDefault,
	})
	ctx.RegisterAttribute(TypeOrbiter.Type(), object.AttributeInfo{
		Kind: variant.KindVector3, Name: "Position",
		Accessor: object.AccessorOf(
			func(o *Orbiter) variant.Variant { return variant.New(o.pos) },
			func(o *Orbiter, v variant.Variant) { o.pos = v.Vector3() }),
		Default: variant.New(vmath.Vector3{}), Mode: object.AttrNet | object.AttrLatestData,
	})
}

// advance moves the orbiter along its circle by one frame step.
func (o *Orbiter) advance(dt float64) {
	o.angle = math.Mod(o.angle+o.speed*dt, 2*math.Pi)
	o.pos = vmath.Vector3{
		X: float32(math.Cos(o.angle) * o.radius),
		Z: float32(math.Sin(o.angle) * o.radius),
	}
}

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	e, err := buildEngine(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "server:", err)
		os.Exit(1)
	}

	RegisterOrbiter(e.Context())
	spawnOrbiters(e)

	// Run drives frames until the signal context is cancelled, then
	// tears down the replication server, scripts, and workers.
	if err := e.Run(ctx); err != nil && ctx.Err() == nil {
		fmt.Fprintln(os.Stderr, "server:", err)
		os.Exit(1)
	}
}

func buildEngine(configPath string) (*engine.Engine, error) {
	if configPath != "" {
		return injector.InitializeEngine(configPath)
	}
	// Without a config file, serve websocket replication on the
	// default listen address so the binary does something visible.
	cfg := engine.DefaultConfig()
	cfg.Network.Enabled = true
	return injector.InitializeEngineFromConfig(cfg)
}

// spawnOrbiters creates the demo set and, when the network is enabled,
// hands them to the replication server. The server holds its own
// reference; the clock subscription keeps them moving.
func spawnOrbiters(e *engine.Engine) {
	names := []string{"hull", "keel", "mast"}
	for i, name := range names {
		o := NewOrbiter(e.Context())
		o.name = name
		o.speed = 0.5 + 0.25*float64(i)
		o.radius = 5 * float64(i+1)

		o.SubscribeToEvent(timing.EventUpdate, func(_ object.Object, _ hash.StringHash, data variant.Map) {
			o.advance(data[timing.ParamTimeStep].Double())
		})

		if srv := e.Server(); srv != nil {
			srv.Register(o)
		}
	}
}
