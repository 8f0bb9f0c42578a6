// Package timing owns frame numbering and delta timing for the engine
// loop. The Clock is a context subsystem: each frame the loop feeds it a
// delta, and the Clock publishes the frame lifecycle events that drive
// every other subsystem.
package timing

import (
	"time"

	"github.com/keel-engine/keel/internal/core/object"
	"github.com/keel-engine/keel/internal/core/variant"
)

// TypeClock identifies the Clock subsystem.
var TypeClock = object.NewTypeInfo("Clock", nil)

// Clock numbers frames and publishes BeginFrame/Update/PostUpdate at the
// start of a frame and EndFrame at its close. Deltas are scaled by the
// time scale before they reach subscribers, so a scale of zero freezes
// simulation time while frames keep running.
type Clock struct {
	object.BaseObject

	frameNumber uint64
	timeStep    float64
	timeScale   float64

	prev    time.Time
	started bool
}

// NewClock returns a Clock bound to ctx with a time scale of one.
func NewClock(ctx *object.Context) *Clock {
	c := &Clock{timeScale: 1}
	c.Init(ctx, TypeClock, c)
	return c
}

// FrameNumber returns the number of the current frame. Zero means no
// frame has begun yet.
func (c *Clock) FrameNumber() uint64 { return c.frameNumber }

// TimeStep returns the scaled delta of the current frame in seconds.
func (c *Clock) TimeStep() float64 { return c.timeStep }

// TimeScale returns the current time scale.
func (c *Clock) TimeScale() float64 { return c.timeScale }

// SetTimeScale adjusts how fast simulation time advances relative to
// wall time. Negative values clamp to zero.
func (c *Clock) SetTimeScale(scale float64) {
	if scale < 0 {
		scale = 0
	}
	c.timeScale = scale
}

// MeasuredStep returns the wall-clock seconds elapsed since the previous
// call. The first call returns zero. Feed the result to BeginFrame when
// running with a measured rather than fixed timestep.
func (c *Clock) MeasuredStep() float64 {
	now := time.Now()
	if !c.started {
		c.started = true
		c.prev = now
		return 0
	}
	dt := now.Sub(c.prev).Seconds()
	c.prev = now
	return dt
}

// BeginFrame advances the frame counter, applies the time scale to dt
// (seconds) and publishes BeginFrame, Update and PostUpdate in that
// order. Subscribers see the frame number and the scaled delta.
func (c *Clock) BeginFrame(dt float64) {
	c.frameNumber++
	if c.frameNumber == 0 {
		c.frameNumber = 1
	}
	if dt < 0 {
		dt = 0
	}
	c.timeStep = dt * c.timeScale

	ctx := c.Context()
	data := ctx.EventDataMap()
	data[ParamFrameNumber] = variant.New(c.frameNumber)
	data[ParamTimeStep] = variant.New(c.timeStep)
	c.SendEvent(EventBeginFrame, data)

	data = ctx.EventDataMap()
	data[ParamTimeStep] = variant.New(c.timeStep)
	c.SendEvent(EventUpdate, data)

	data = ctx.EventDataMap()
	data[ParamTimeStep] = variant.New(c.timeStep)
	c.SendEvent(EventPostUpdate, data)
}

// EndFrame publishes EndFrame, closing the frame begun by BeginFrame.
func (c *Clock) EndFrame() {
	c.SendEvent(EventEndFrame, nil)
}
