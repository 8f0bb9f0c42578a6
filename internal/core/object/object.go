package object

import (
	"github.com/keel-engine/keel/internal/core/hash"
	"github.com/keel-engine/keel/internal/core/observability/log"
	"github.com/keel-engine/keel/internal/core/variant"
)

// Object is the unit that participates in event dispatch and the type
// registry. Concrete types embed BaseObject and call Init before use;
// the unexported method keeps implementations inside this package's
// lifecycle rules.
type Object interface {
	variant.RefCounted

	// AddRef takes a strong reference.
	AddRef()
	// ReleaseRef drops a strong reference; the last one detaches the
	// object from the event system and expires its weak references.
	ReleaseRef()
	// TypeInfo returns the registered type identity.
	TypeInfo() *TypeInfo
	// Context returns the context the object was initialized against.
	Context() *Context
	// OnEvent delivers one event to the object. The default behavior
	// routes through the handler list; embedding types may override it
	// to intercept all delivery.
	OnEvent(sender Object, eventType hash.StringHash, data variant.Map)

	base() *BaseObject
}

// EventHandlerFunc handles one delivered event. sender is nil for events
// observed through a global subscription whose sender has no identity.
type EventHandlerFunc func(sender Object, eventType hash.StringHash, data variant.Map)

// EventHandler is one entry of an object's handler list: the sender it
// is scoped to (nil for any sender), the event type, and the callback.
type EventHandler struct {
	sender    Object
	eventType hash.StringHash
	fn        EventHandlerFunc
}

// Sender returns the scoping sender, or nil for a global handler.
func (h *EventHandler) Sender() Object { return h.sender }

// EventType returns the handled event type.
func (h *EventHandler) EventType() hash.StringHash { return h.eventType }

// BaseObject carries the state every engine object shares: reference
// counts, the owning context, type identity, and the event handler list.
// It is embedded, never used on its own; Init wires the embedding value
// in.
type BaseObject struct {
	refs        variant.RefCount
	context     *Context
	typeInfo    *TypeInfo
	self        Object
	handlers    []*EventHandler
	blockEvents bool
}

var _ Object = (*BaseObject)(nil)

// Init attaches the embedding object to its context and type. self must
// be the outermost embedding value so dispatch and registries see the
// concrete type, not the embedded base. The object starts with one
// strong reference owned by the caller.
func (o *BaseObject) Init(ctx *Context, info *TypeInfo, self Object) {
	if ctx == nil || info == nil || self == nil {
		panic("object: Init requires a context, a type info, and self")
	}
	if o.self != nil {
		ctx.log.Error("object already initialized", log.String("type", info.Name()))
		return
	}
	o.context = ctx
	o.typeInfo = info
	o.self = self
	o.refs.AddRef()
}

// RefCount exposes the shared count block for weak references.
func (o *BaseObject) RefCount() *variant.RefCount { return &o.refs }

// AddRef takes a strong reference.
func (o *BaseObject) AddRef() { o.refs.AddRef() }

// ReleaseRef drops a strong reference. When the last one goes the object
// unsubscribes from all events, detaches receivers subscribed to it as a
// sender, and expires its weak references. The Go heap reclaims the
// value itself once unreachable.
func (o *BaseObject) ReleaseRef() {
	if o.refs.ReleaseRef() > 0 || o.refs.Expired() {
		return
	}
	o.UnsubscribeFromAllEvents()
	if o.context != nil && o.self != nil {
		o.context.removeEventSender(o.self)
	}
	o.refs.MarkExpired()
}

// TypeInfo returns the identity passed to Init, or nil before Init.
func (o *BaseObject) TypeInfo() *TypeInfo { return o.typeInfo }

// Context returns the context passed to Init, or nil before Init.
func (o *BaseObject) Context() *Context { return o.context }

func (o *BaseObject) base() *BaseObject { return o }

// SetBlockEvents suppresses event delivery to this object while set.
func (o *BaseObject) SetBlockEvents(block bool) { o.blockEvents = block }

// BlockEvents reports whether delivery is suppressed.
func (o *BaseObject) BlockEvents() bool { return o.blockEvents }

// OnEvent routes one delivered event to at most one handler: the first
// handler scoped to exactly this sender wins; otherwise the first
// unscoped handler for the type runs, if any.
func (o *BaseObject) OnEvent(sender Object, eventType hash.StringHash, data variant.Map) {
	if o.blockEvents {
		return
	}
	var specific, anySender *EventHandler
	for _, h := range o.handlers {
		if h.eventType != eventType {
			continue
		}
		if h.sender == nil {
			if anySender == nil {
				anySender = h
			}
		} else if h.sender == sender && specific == nil {
			specific = h
		}
	}
	if specific != nil {
		specific.fn(sender, eventType, data)
		return
	}
	if anySender != nil {
		anySender.fn(sender, eventType, data)
	}
}

// SubscribeToEvent registers a handler for an event type from any
// sender. Resubscribing to the same type replaces the prior handler in
// place instead of stacking a second one.
func (o *BaseObject) SubscribeToEvent(eventType hash.StringHash, fn EventHandlerFunc) {
	o.subscribe(nil, eventType, fn)
}

// SubscribeToSenderEvent registers a handler scoped to one sender. A nil
// sender degrades to a global subscription.
func (o *BaseObject) SubscribeToSenderEvent(sender Object, eventType hash.StringHash, fn EventHandlerFunc) {
	o.subscribe(sender, eventType, fn)
}

func (o *BaseObject) subscribe(sender Object, eventType hash.StringHash, fn EventHandlerFunc) {
	if o.context == nil || o.self == nil || fn == nil {
		return
	}
	if existing := o.findHandler(sender, eventType); existing != nil {
		existing.fn = fn
		return
	}
	h := &EventHandler{sender: sender, eventType: eventType, fn: fn}
	o.handlers = append(o.handlers, nil)
	copy(o.handlers[1:], o.handlers)
	o.handlers[0] = h
	if sender != nil {
		o.context.addSenderReceiver(o.self, sender, eventType)
	} else {
		o.context.addEventReceiver(o.self, eventType)
	}
}

// UnsubscribeFromEvent removes every handler for the event type, both
// sender-scoped and global.
func (o *BaseObject) UnsubscribeFromEvent(eventType hash.StringHash) {
	for {
		i := -1
		for j, h := range o.handlers {
			if h.eventType == eventType {
				i = j
				break
			}
		}
		if i < 0 {
			return
		}
		h := o.handlers[i]
		o.removeHandlerAt(i)
		o.deregister(h)
	}
}

// UnsubscribeFromSenderEvent removes the handler scoped to one sender
// and event type, leaving any global handler for the type in place.
func (o *BaseObject) UnsubscribeFromSenderEvent(sender Object, eventType hash.StringHash) {
	if sender == nil {
		return
	}
	for i, h := range o.handlers {
		if h.sender == sender && h.eventType == eventType {
			o.removeHandlerAt(i)
			o.deregister(h)
			return
		}
	}
}

// UnsubscribeFromSender removes every handler scoped to the sender.
func (o *BaseObject) UnsubscribeFromSender(sender Object) {
	if sender == nil {
		return
	}
	for {
		i := -1
		for j, h := range o.handlers {
			if h.sender == sender {
				i = j
				break
			}
		}
		if i < 0 {
			return
		}
		h := o.handlers[i]
		o.removeHandlerAt(i)
		o.deregister(h)
	}
}

// UnsubscribeFromAllEvents removes every subscription this object holds.
func (o *BaseObject) UnsubscribeFromAllEvents() {
	for len(o.handlers) > 0 {
		h := o.handlers[0]
		o.handlers = o.handlers[1:]
		o.deregister(h)
	}
}

// HasSubscribedToEvent reports whether any handler covers the type.
func (o *BaseObject) HasSubscribedToEvent(eventType hash.StringHash) bool {
	for _, h := range o.handlers {
		if h.eventType == eventType {
			return true
		}
	}
	return false
}

func (o *BaseObject) findHandler(sender Object, eventType hash.StringHash) *EventHandler {
	for _, h := range o.handlers {
		if h.sender == sender && h.eventType == eventType {
			return h
		}
	}
	return nil
}

func (o *BaseObject) removeHandlerAt(i int) {
	o.handlers = append(o.handlers[:i], o.handlers[i+1:]...)
}

func (o *BaseObject) deregister(h *EventHandler) {
	if o.context == nil {
		return
	}
	if h.sender != nil {
		o.context.removeSenderReceiver(o.self, h.sender, h.eventType)
	} else {
		o.context.removeEventReceiver(o.self, h.eventType)
	}
}

// removeSenderHandlers drops handlers bound to a torn-down sender. The
// sender's receiver groups are being discarded wholesale by the context,
// so only the local handler list needs cleaning.
func (o *BaseObject) removeSenderHandlers(sender Object) {
	kept := o.handlers[:0]
	for _, h := range o.handlers {
		if h.sender != sender {
			kept = append(kept, h)
		}
	}
	for i := len(kept); i < len(o.handlers); i++ {
		o.handlers[i] = nil
	}
	o.handlers = kept
}

// SendEvent dispatches an event with this object as the sender. Delivery
// is synchronous and restricted to the context's main goroutine;
// off-goroutine sends are logged and dropped. Sender-scoped receivers
// run before global ones, each receiver hears the event at most once per
// send, receivers subscribed during the send are not notified in the
// same pass, and dispatch stops immediately if a handler releases the
// sender's last reference.
func (o *BaseObject) SendEvent(eventType hash.StringHash, data variant.Map) {
	ctx := o.context
	if ctx == nil || o.self == nil {
		return
	}
	if !ctx.onMainGoroutine() {
		ctx.log.Error("event sent from outside the main goroutine",
			log.String("event", eventType.String()),
			log.String("sender", o.typeInfo.Name()))
		return
	}

	// Weak self-reference so sender destruction mid-dispatch is visible.
	self := variant.NewWeakRef(o.self)
	defer self.Release()

	ctx.beginSendEvent(o.self, eventType)
	defer ctx.endSendEvent()

	var processed map[Object]struct{}

	if group := ctx.senderReceivers(o.self, eventType); group != nil {
		group.BeginSendEvent()
		count := group.Count()
		if count > 0 {
			processed = make(map[Object]struct{}, count)
		}
		for i := 0; i < count; i++ {
			receiver := group.Receiver(i)
			if receiver == nil {
				continue
			}
			processed[receiver] = struct{}{}
			receiver.OnEvent(o.self, eventType, data)
			if self.Expired() {
				group.EndSendEvent()
				return
			}
		}
		group.EndSendEvent()
	}

	if group := ctx.globalReceivers(eventType); group != nil {
		group.BeginSendEvent()
		count := group.Count()
		for i := 0; i < count; i++ {
			receiver := group.Receiver(i)
			if receiver == nil {
				continue
			}
			if processed != nil {
				if _, done := processed[receiver]; done {
					continue
				}
			}
			receiver.OnEvent(o.self, eventType, data)
			if self.Expired() {
				group.EndSendEvent()
				return
			}
		}
		group.EndSendEvent()
	}
}

// EventSender returns the sender of the event currently being handled,
// or nil outside a dispatch.
func (o *BaseObject) EventSender() Object {
	if o.context == nil {
		return nil
	}
	return o.context.EventSender()
}
