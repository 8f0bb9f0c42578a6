// Profiling:
// go build ./profile/dispatch
// go tool pprof -http=":8000" -nodefraction=0.001 ./dispatch mem.pprof

package main

import (
	"github.com/pkg/profile"

	"github.com/keel-engine/keel/internal/core/hash"
	"github.com/keel-engine/keel/internal/core/object"
	"github.com/keel-engine/keel/internal/core/observability/log"
	"github.com/keel-engine/keel/internal/core/variant"
)

var (
	evTick  = hash.Register("ProfileTick")
	evBurst = hash.Register("ProfileBurst")
	pValue  = hash.Register("Value")
	pSource = hash.Register("Source")
)

var typeSink = object.NewTypeInfo("ProfileSink", nil)

type sink struct {
	object.BaseObject
	seen int64
}

func newSink(ctx *object.Context) *sink {
	s := &sink{}
	s.Init(ctx, typeSink, s)
	return s
}

func main() {
	receivers := 100
	rounds := 2000
	eventsPerRound := 500

	p := profile.Start(profile.MemProfileAllocs, profile.ProfilePath("."), profile.NoShutdownHook)
	run(receivers, rounds, eventsPerRound)
	p.Stop()
}

// run blasts pooled event maps through a half global, half
// sender-scoped receiver population.
func run(receivers, rounds, eventsPerRound int) {
	ctx := object.NewContext(log.Nop())
	sender := newSink(ctx)

	sinks := make([]*sink, 0, receivers)
	for i := 0; i < receivers; i++ {
		s := newSink(ctx)
		s.SubscribeToEvent(evTick, func(_ object.Object, _ hash.StringHash, data variant.Map) {
			s.seen += data[pValue].Int64()
		})
		if i%2 == 0 {
			s.SubscribeToSenderEvent(sender, evBurst, func(object.Object, hash.StringHash, variant.Map) {
				s.seen++
			})
		}
		sinks = append(sinks, s)
	}

	for r := 0; r < rounds; r++ {
		for e := 0; e < eventsPerRound; e++ {
			data := ctx.EventDataMap()
			data[pValue] = variant.New(int64(e))
			data[pSource] = variant.New("dispatch")
			sender.SendEvent(evTick, data)
		}
		sender.SendEvent(evBurst, nil)
	}

	for _, s := range sinks {
		s.ReleaseRef()
	}
	sender.ReleaseRef()
}
