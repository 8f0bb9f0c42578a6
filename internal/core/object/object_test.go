package object

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/keel-engine/keel/internal/core/hash"
	"github.com/keel-engine/keel/internal/core/observability/log"
	"github.com/keel-engine/keel/internal/core/variant"
)

var (
	typeProbe  = NewTypeInfo("Probe", nil)
	typeGadget = NewTypeInfo("Gadget", nil)
	eventPing  = hash.Register("Ping")
	eventPong  = hash.Register("Pong")
	paramCount = hash.Register("Count")
)

type heardEvent struct {
	sender    Object
	eventType hash.StringHash
	count     int
}

// probe is a minimal object recording every event routed to it.
type probe struct {
	BaseObject
	heard []heardEvent
}

func newProbe(ctx *Context) *probe {
	return newProbeAs(ctx, typeProbe)
}

func newProbeAs(ctx *Context, info *TypeInfo) *probe {
	p := &probe{}
	p.Init(ctx, info, p)
	return p
}

func (p *probe) hear(sender Object, eventType hash.StringHash, data variant.Map) {
	p.heard = append(p.heard, heardEvent{
		sender:    sender,
		eventType: eventType,
		count:     data.Get(paramCount).Int(),
	})
}

func TestSendEventDeliversToSubscriber(t *testing.T) {
	ctx := NewContext(log.Nop())
	sender := newProbe(ctx)
	receiver := newProbe(ctx)
	receiver.SubscribeToEvent(eventPing, receiver.hear)

	data := ctx.EventDataMap()
	data[paramCount] = variant.New(7)
	sender.SendEvent(eventPing, data)

	require.Len(t, receiver.heard, 1)
	require.True(t, receiver.heard[0].sender == Object(sender))
	require.Equal(t, eventPing, receiver.heard[0].eventType)
	require.Equal(t, 7, receiver.heard[0].count)
	require.Empty(t, sender.heard)
}

func TestAtMostOnceDeliveryPerSend(t *testing.T) {
	ctx := NewContext(log.Nop())
	sender := newProbe(ctx)
	receiver := newProbe(ctx)
	receiver.SubscribeToEvent(eventPing, receiver.hear)
	receiver.SubscribeToSenderEvent(sender, eventPing, receiver.hear)

	sender.SendEvent(eventPing, nil)
	require.Len(t, receiver.heard, 1)
}

func TestTwoSendersTwoDeliveries(t *testing.T) {
	ctx := NewContext(log.Nop())
	s1 := newProbe(ctx)
	s2 := newProbe(ctx)
	receiver := newProbe(ctx)
	receiver.SubscribeToSenderEvent(s1, eventPing, receiver.hear)
	receiver.SubscribeToSenderEvent(s2, eventPing, receiver.hear)

	s1.SendEvent(eventPing, nil)
	s2.SendEvent(eventPing, nil)

	require.Len(t, receiver.heard, 2)
	require.True(t, receiver.heard[0].sender == Object(s1))
	require.True(t, receiver.heard[1].sender == Object(s2))
}

func TestSenderSpecificHandlerWins(t *testing.T) {
	ctx := NewContext(log.Nop())
	sender := newProbe(ctx)
	other := newProbe(ctx)
	receiver := newProbe(ctx)

	var got []string
	receiver.SubscribeToEvent(eventPing, func(Object, hash.StringHash, variant.Map) {
		got = append(got, "any")
	})
	receiver.SubscribeToSenderEvent(sender, eventPing, func(Object, hash.StringHash, variant.Map) {
		got = append(got, "specific")
	})

	sender.SendEvent(eventPing, nil)
	require.Equal(t, []string{"specific"}, got)

	other.SendEvent(eventPing, nil)
	require.Equal(t, []string{"specific", "any"}, got)
}

func TestSenderScopedReceiversNotifiedFirst(t *testing.T) {
	ctx := NewContext(log.Nop())
	sender := newProbe(ctx)

	var order []string
	global := newProbe(ctx)
	global.SubscribeToEvent(eventPing, func(Object, hash.StringHash, variant.Map) {
		order = append(order, "global")
	})
	scoped := newProbe(ctx)
	scoped.SubscribeToSenderEvent(sender, eventPing, func(Object, hash.StringHash, variant.Map) {
		order = append(order, "scoped")
	})

	sender.SendEvent(eventPing, nil)
	require.Equal(t, []string{"scoped", "global"}, order)
}

func TestResubscribeReplacesHandler(t *testing.T) {
	ctx := NewContext(log.Nop())
	sender := newProbe(ctx)
	receiver := newProbe(ctx)

	calls := 0
	receiver.SubscribeToEvent(eventPing, func(Object, hash.StringHash, variant.Map) {
		calls++
	})
	receiver.SubscribeToEvent(eventPing, func(Object, hash.StringHash, variant.Map) {
		calls += 10
	})

	sender.SendEvent(eventPing, nil)
	require.Equal(t, 10, calls)
}

func TestUnsubscribeOtherReceiverDuringDispatch(t *testing.T) {
	ctx := NewContext(log.Nop())
	sender := newProbe(ctx)
	a := newProbe(ctx)
	b := newProbe(ctx)
	c := newProbe(ctx)

	a.SubscribeToEvent(eventPing, func(s Object, e hash.StringHash, d variant.Map) {
		a.hear(s, e, d)
		b.UnsubscribeFromEvent(eventPing)
	})
	b.SubscribeToEvent(eventPing, b.hear)
	c.SubscribeToEvent(eventPing, c.hear)

	sender.SendEvent(eventPing, nil)
	require.Len(t, a.heard, 1)
	require.Empty(t, b.heard)
	require.Len(t, c.heard, 1)

	sender.SendEvent(eventPing, nil)
	require.Len(t, a.heard, 2)
	require.Empty(t, b.heard)
	require.Len(t, c.heard, 2)
}

func TestSubscribeDuringDispatchNotNotifiedSamePass(t *testing.T) {
	ctx := NewContext(log.Nop())
	sender := newProbe(ctx)
	a := newProbe(ctx)
	d := newProbe(ctx)

	subscribed := false
	a.SubscribeToEvent(eventPing, func(s Object, e hash.StringHash, data variant.Map) {
		a.hear(s, e, data)
		if !subscribed {
			subscribed = true
			d.SubscribeToEvent(eventPing, d.hear)
		}
	})

	sender.SendEvent(eventPing, nil)
	require.Len(t, a.heard, 1)
	require.Empty(t, d.heard)

	sender.SendEvent(eventPing, nil)
	require.Len(t, a.heard, 2)
	require.Len(t, d.heard, 1)
}

func TestSenderSelfDestructionStopsDispatch(t *testing.T) {
	ctx := NewContext(log.Nop())
	sender := newProbe(ctx)
	a := newProbe(ctx)
	b := newProbe(ctx)

	a.SubscribeToEvent(eventPing, func(s Object, e hash.StringHash, d variant.Map) {
		a.hear(s, e, d)
		sender.ReleaseRef()
	})
	b.SubscribeToEvent(eventPing, b.hear)

	sender.SendEvent(eventPing, nil)
	require.Len(t, a.heard, 1)
	require.Empty(t, b.heard)
	require.True(t, sender.RefCount().Expired())

	// The receiver list survives the aborted dispatch.
	other := newProbe(ctx)
	other.SendEvent(eventPing, nil)
	require.Len(t, a.heard, 2)
	require.Len(t, b.heard, 1)
}

func TestSendEventOffMainGoroutineDropped(t *testing.T) {
	ctx := NewContext(log.Nop())
	sender := newProbe(ctx)
	receiver := newProbe(ctx)
	receiver.SubscribeToEvent(eventPing, receiver.hear)

	done := make(chan struct{})
	go func() {
		defer close(done)
		sender.SendEvent(eventPing, nil)
	}()
	<-done

	require.Empty(t, receiver.heard)
}

func TestReleaseRemovesAllSubscriptions(t *testing.T) {
	ctx := NewContext(log.Nop())
	sender := newProbe(ctx)
	receiver := newProbe(ctx)
	receiver.SubscribeToEvent(eventPing, receiver.hear)
	receiver.SubscribeToSenderEvent(sender, eventPong, receiver.hear)

	receiver.ReleaseRef()
	require.True(t, receiver.RefCount().Expired())

	sender.SendEvent(eventPing, nil)
	sender.SendEvent(eventPong, nil)
	require.Empty(t, receiver.heard)
}

func TestSenderTeardownDetachesScopedHandlers(t *testing.T) {
	ctx := NewContext(log.Nop())
	sender := newProbe(ctx)
	receiver := newProbe(ctx)
	receiver.SubscribeToSenderEvent(sender, eventPing, receiver.hear)
	require.True(t, receiver.HasSubscribedToEvent(eventPing))

	sender.ReleaseRef()
	require.False(t, receiver.HasSubscribedToEvent(eventPing))
}

func TestUnsubscribeVariants(t *testing.T) {
	ctx := NewContext(log.Nop())
	s1 := newProbe(ctx)
	s2 := newProbe(ctx)
	receiver := newProbe(ctx)

	receiver.SubscribeToEvent(eventPing, receiver.hear)
	receiver.SubscribeToSenderEvent(s1, eventPing, receiver.hear)
	receiver.SubscribeToSenderEvent(s1, eventPong, receiver.hear)
	receiver.SubscribeToSenderEvent(s2, eventPong, receiver.hear)

	receiver.UnsubscribeFromSenderEvent(s1, eventPong)
	s1.SendEvent(eventPong, nil)
	require.Empty(t, receiver.heard)

	receiver.UnsubscribeFromSender(s1)
	s1.SendEvent(eventPing, nil)
	// Still heard through the global subscription.
	require.Len(t, receiver.heard, 1)

	receiver.UnsubscribeFromEvent(eventPing)
	s1.SendEvent(eventPing, nil)
	require.Len(t, receiver.heard, 1)

	s2.SendEvent(eventPong, nil)
	require.Len(t, receiver.heard, 2)

	receiver.UnsubscribeFromAllEvents()
	s2.SendEvent(eventPong, nil)
	require.Len(t, receiver.heard, 2)
}

func TestNestedDispatchAndPayloadPool(t *testing.T) {
	ctx := NewContext(log.Nop())
	sender := newProbe(ctx)
	inner := newProbe(ctx)
	outer := newProbe(ctx)

	inner.SubscribeToEvent(eventPong, inner.hear)
	outer.SubscribeToEvent(eventPing, func(s Object, e hash.StringHash, d variant.Map) {
		outer.hear(s, e, d)
		nested := ctx.EventDataMap()
		nested[paramCount] = variant.New(2)
		outer.SendEvent(eventPong, nested)
	})

	data := ctx.EventDataMap()
	data[paramCount] = variant.New(1)
	sender.SendEvent(eventPing, data)

	require.Len(t, outer.heard, 1)
	require.Equal(t, 1, outer.heard[0].count)
	require.Len(t, inner.heard, 1)
	require.Equal(t, 2, inner.heard[0].count)

	// The depth-zero map is recycled: requesting it again clears the
	// same backing map the first send used.
	recycled := ctx.EventDataMap()
	require.Empty(t, recycled)
	recycled[paramCount] = variant.New(9)
	require.Equal(t, 9, data.Get(paramCount).Int())
}

func TestBlockEvents(t *testing.T) {
	ctx := NewContext(log.Nop())
	sender := newProbe(ctx)
	receiver := newProbe(ctx)
	receiver.SubscribeToEvent(eventPing, receiver.hear)

	receiver.SetBlockEvents(true)
	require.True(t, receiver.BlockEvents())
	sender.SendEvent(eventPing, nil)
	require.Empty(t, receiver.heard)

	receiver.SetBlockEvents(false)
	sender.SendEvent(eventPing, nil)
	require.Len(t, receiver.heard, 1)
}

func TestEventSenderDuringDispatch(t *testing.T) {
	ctx := NewContext(log.Nop())
	sender := newProbe(ctx)
	receiver := newProbe(ctx)

	receiver.SubscribeToEvent(eventPing, func(Object, hash.StringHash, variant.Map) {
		require.True(t, ctx.EventSender() == Object(sender))
		require.Equal(t, eventPing, ctx.EventType())
		require.True(t, receiver.EventSender() == Object(sender))
	})
	sender.SendEvent(eventPing, nil)

	require.Nil(t, ctx.EventSender())
	require.Equal(t, hash.Zero, ctx.EventType())
}

func TestSubsystemRegistry(t *testing.T) {
	ctx := NewContext(log.Nop())

	first := newProbe(ctx)
	ctx.RegisterSubsystem(first)
	require.True(t, ctx.Subsystem(typeProbe.Type()) == Object(first))
	require.Equal(t, 2, first.RefCount().Refs())

	second := newProbe(ctx)
	ctx.RegisterSubsystem(second)
	require.True(t, ctx.Subsystem(typeProbe.Type()) == Object(second))
	require.Equal(t, 1, first.RefCount().Refs())

	gadget := newProbeAs(ctx, typeGadget)
	ctx.RegisterSubsystem(gadget)

	ctx.RemoveSubsystem(typeGadget.Type())
	require.Nil(t, ctx.Subsystem(typeGadget.Type()))
	require.Equal(t, 1, gadget.RefCount().Refs())

	// Removing an absent subsystem is a silent no-op.
	ctx.RemoveSubsystem(hash.New("Nothing"))

	ctx.Shutdown()
	require.Nil(t, ctx.Subsystem(typeProbe.Type()))
	require.Equal(t, 1, second.RefCount().Refs())
}

func TestCreateObjectFactory(t *testing.T) {
	ctx := NewContext(log.Nop())
	ctx.RegisterFactoryCategory(typeProbe, func(c *Context) Object { return newProbe(c) }, "Testing")

	obj := ctx.CreateObject(typeProbe.Type())
	require.NotNil(t, obj)
	require.Equal(t, typeProbe, obj.TypeInfo())
	require.Equal(t, "Probe", ctx.TypeNameOf(typeProbe.Type()))

	require.Nil(t, ctx.CreateObject(hash.New("Unregistered")))
	require.Equal(t, []hash.StringHash{typeProbe.Type()}, ctx.CategoryTypes("Testing"))
}

func TestTypeInfoHierarchy(t *testing.T) {
	base := NewTypeInfo("Animal", nil)
	derived := NewTypeInfo("Dog", base)

	require.True(t, derived.IsTypeOf(base.Type()))
	require.True(t, derived.IsTypeOf(derived.Type()))
	require.False(t, base.IsTypeOf(derived.Type()))
	require.True(t, derived.IsTypeOfInfo(base))
	require.False(t, derived.IsTypeOfInfo(nil))
	require.Equal(t, base, derived.Base())
	require.Equal(t, "Animal", hash.NameOf(base.Type()))
}

func TestInitContract(t *testing.T) {
	ctx := NewContext(log.Nop())
	require.Panics(t, func() {
		p := &probe{}
		p.Init(nil, typeProbe, p)
	})

	p := newProbe(ctx)
	// A second Init is refused; identity is unchanged.
	p.Init(ctx, typeGadget, p)
	require.Equal(t, typeProbe, p.TypeInfo())
	require.Equal(t, 1, p.RefCount().Refs())
}

func TestObjectWeakRefExpiry(t *testing.T) {
	ctx := NewContext(log.Nop())
	p := newProbe(ctx)
	w := variant.NewWeakRef(p)
	require.True(t, w.Get() == variant.RefCounted(p))

	p.ReleaseRef()
	require.Nil(t, w.Get())
	require.True(t, w.Expired())
	w.Release()
}

func TestEventReceiverGroupHoleCompaction(t *testing.T) {
	ctx := NewContext(log.Nop())
	a := newProbe(ctx)
	b := newProbe(ctx)
	c := newProbe(ctx)

	g := &EventReceiverGroup{}
	g.Add(a)
	g.Add(a)
	g.Add(b)
	g.Add(c)
	g.Add(nil)
	require.Equal(t, 3, g.Count())

	g.BeginSendEvent()
	require.True(t, g.Sending())
	require.True(t, g.Remove(b))
	// The slot is a hole, not erased, while the send runs.
	require.Equal(t, 3, g.Count())
	require.Nil(t, g.Receiver(1))
	g.EndSendEvent()

	require.False(t, g.Sending())
	require.Equal(t, 2, g.Count())
	require.True(t, g.Receiver(0) == Object(a))
	require.True(t, g.Receiver(1) == Object(c))

	require.True(t, g.Remove(a))
	require.False(t, g.Remove(a))
	require.Equal(t, 1, g.Count())
	require.Nil(t, g.Receiver(5))
}

func BenchmarkSendEvent(b *testing.B) {
	ctx := NewContext(log.Nop())
	sender := newProbe(ctx)
	for i := 0; i < 8; i++ {
		r := newProbe(ctx)
		r.SubscribeToEvent(eventPing, func(Object, hash.StringHash, variant.Map) {})
	}

	data := ctx.EventDataMap()
	data[paramCount] = variant.New(1)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		sender.SendEvent(eventPing, data)
	}
}
