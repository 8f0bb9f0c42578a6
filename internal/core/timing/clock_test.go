package timing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/keel-engine/keel/internal/core/hash"
	"github.com/keel-engine/keel/internal/core/object"
	"github.com/keel-engine/keel/internal/core/observability/log"
	"github.com/keel-engine/keel/internal/core/variant"
)

var typeRecorder = object.NewTypeInfo("ClockRecorder", nil)

type recorder struct {
	object.BaseObject
	events []hash.StringHash
	frames []int64
	steps  []float64
}

func newRecorder(ctx *object.Context) *recorder {
	r := &recorder{}
	r.Init(ctx, typeRecorder, r)
	return r
}

func (r *recorder) watch(clock *Clock) {
	record := func(sender object.Object, eventType hash.StringHash, data variant.Map) {
		r.events = append(r.events, eventType)
		if data.Contains(ParamFrameNumber) {
			r.frames = append(r.frames, data.Get(ParamFrameNumber).Int64())
		}
		if data.Contains(ParamTimeStep) {
			r.steps = append(r.steps, data.Get(ParamTimeStep).Double())
		}
	}
	for _, eventType := range []hash.StringHash{EventBeginFrame, EventUpdate, EventPostUpdate, EventEndFrame} {
		r.SubscribeToSenderEvent(clock, eventType, record)
	}
}

func TestFrameEventOrder(t *testing.T) {
	ctx := object.NewContext(log.Nop())
	clock := NewClock(ctx)
	r := newRecorder(ctx)
	r.watch(clock)

	clock.BeginFrame(0.016)
	clock.EndFrame()

	require.Equal(t, []hash.StringHash{EventBeginFrame, EventUpdate, EventPostUpdate, EventEndFrame}, r.events)
	require.Equal(t, []int64{1}, r.frames)
	require.Len(t, r.steps, 3)
	for _, dt := range r.steps {
		require.InDelta(t, 0.016, dt, 1e-12)
	}
}

func TestFrameNumberAdvances(t *testing.T) {
	ctx := object.NewContext(log.Nop())
	clock := NewClock(ctx)
	r := newRecorder(ctx)
	r.watch(clock)

	clock.BeginFrame(0.01)
	clock.EndFrame()
	clock.BeginFrame(0.01)
	clock.EndFrame()

	require.Equal(t, []int64{1, 2}, r.frames)
	require.Equal(t, uint64(2), clock.FrameNumber())
}

func TestTimeScale(t *testing.T) {
	ctx := object.NewContext(log.Nop())
	clock := NewClock(ctx)

	clock.SetTimeScale(0.5)
	clock.BeginFrame(0.1)
	require.InDelta(t, 0.05, clock.TimeStep(), 1e-12)

	clock.SetTimeScale(-1)
	require.Zero(t, clock.TimeScale())
	clock.BeginFrame(0.1)
	require.Zero(t, clock.TimeStep())
}

func TestNegativeDeltaClamped(t *testing.T) {
	ctx := object.NewContext(log.Nop())
	clock := NewClock(ctx)

	clock.BeginFrame(-5)
	require.Zero(t, clock.TimeStep())
	require.Equal(t, uint64(1), clock.FrameNumber())
}

func TestMeasuredStep(t *testing.T) {
	ctx := object.NewContext(log.Nop())
	clock := NewClock(ctx)

	require.Zero(t, clock.MeasuredStep())
	time.Sleep(10 * time.Millisecond)
	dt := clock.MeasuredStep()
	require.Greater(t, dt, 0.005)
	require.Less(t, dt, 5.0)
}
