package object

import (
	"runtime"

	"github.com/keel-engine/keel/internal/core/hash"
	"github.com/keel-engine/keel/internal/core/observability/log"
	"github.com/keel-engine/keel/internal/core/variant"
)

// FactoryFunc constructs one object of a registered type against a
// context. The factory is responsible for calling Init on the result.
type FactoryFunc func(*Context) Object

type factoryEntry struct {
	info    *TypeInfo
	factory FactoryFunc
}

// Context is the composition root the whole object layer hangs off: the
// type registry, the attribute tables, the subsystem registry, and the
// event receiver tables. One context is created per process (or per
// test); objects keep a non-owning reference and must not outlive it.
//
// The context's tables are single-goroutine state. Every mutation and
// every event dispatch belongs to the goroutine that created the
// context; SendEvent enforces this, the rest is convention.
type Context struct {
	log           log.Log
	mainGoroutine uint64

	factories  map[hash.StringHash]factoryEntry
	categories map[string][]hash.StringHash

	attributes        map[hash.StringHash][]*AttributeInfo
	networkAttributes map[hash.StringHash][]*AttributeInfo

	subsystems     map[hash.StringHash]Object
	subsystemOrder []hash.StringHash

	globalGroups map[hash.StringHash]*EventReceiverGroup
	senderGroups map[Object]map[hash.StringHash]*EventReceiverGroup

	senderStack []eventFrame
	dataMaps    []variant.Map
}

type eventFrame struct {
	sender    Object
	eventType hash.StringHash
}

// NewContext builds an empty context bound to the calling goroutine as
// its main goroutine. A nil logger falls back to the process logger.
func NewContext(logger log.Log) *Context {
	if logger == nil {
		logger = log.Provide()
	}
	return &Context{
		log:               logger,
		mainGoroutine:     goroutineID(),
		factories:         make(map[hash.StringHash]factoryEntry),
		categories:        make(map[string][]hash.StringHash),
		attributes:        make(map[hash.StringHash][]*AttributeInfo),
		networkAttributes: make(map[hash.StringHash][]*AttributeInfo),
		subsystems:        make(map[hash.StringHash]Object),
		globalGroups:      make(map[hash.StringHash]*EventReceiverGroup),
		senderGroups:      make(map[Object]map[hash.StringHash]*EventReceiverGroup),
	}
}

// Log returns the context's logger.
func (c *Context) Log() log.Log { return c.log }

// RegisterFactory records a construction function for a type.
func (c *Context) RegisterFactory(info *TypeInfo, factory FactoryFunc) {
	c.RegisterFactoryCategory(info, factory, "")
}

// RegisterFactoryCategory records a construction function and tags the
// type under a free-form category for tooling. An empty category means
// no listing.
func (c *Context) RegisterFactoryCategory(info *TypeInfo, factory FactoryFunc, category string) {
	if info == nil || factory == nil {
		c.log.Warn("factory registration with nil type or factory ignored")
		return
	}
	c.factories[info.Type()] = factoryEntry{info: info, factory: factory}
	if category != "" {
		for _, h := range c.categories[category] {
			if h == info.Type() {
				return
			}
		}
		c.categories[category] = append(c.categories[category], info.Type())
	}
}

// CreateObject constructs a registered type. Unregistered hashes yield
// nil; the caller must check.
func (c *Context) CreateObject(typeHash hash.StringHash) Object {
	entry, ok := c.factories[typeHash]
	if !ok {
		return nil
	}
	return entry.factory(c)
}

// TypeNameOf returns the registered name for a type hash, falling back
// to the hash registry for types without a factory.
func (c *Context) TypeNameOf(typeHash hash.StringHash) string {
	if entry, ok := c.factories[typeHash]; ok {
		return entry.info.Name()
	}
	return hash.NameOf(typeHash)
}

// CategoryTypes returns the type hashes registered under a category.
func (c *Context) CategoryTypes(category string) []hash.StringHash {
	return c.categories[category]
}

// RegisterSubsystem stores obj as the singleton for its type, taking a
// reference. A prior subsystem of the same type is released.
func (c *Context) RegisterSubsystem(obj Object) {
	if obj == nil || obj.TypeInfo() == nil {
		c.log.Warn("subsystem registration with nil object ignored")
		return
	}
	typeHash := obj.TypeInfo().Type()
	obj.AddRef()
	if prev, ok := c.subsystems[typeHash]; ok {
		c.subsystems[typeHash] = obj
		prev.ReleaseRef()
		return
	}
	c.subsystems[typeHash] = obj
	c.subsystemOrder = append(c.subsystemOrder, typeHash)
}

// Subsystem returns the singleton registered for the type, or nil.
func (c *Context) Subsystem(typeHash hash.StringHash) Object {
	return c.subsystems[typeHash]
}

// RemoveSubsystem drops and releases the singleton for the type.
// Removing an absent subsystem is a silent no-op.
func (c *Context) RemoveSubsystem(typeHash hash.StringHash) {
	obj, ok := c.subsystems[typeHash]
	if !ok {
		return
	}
	delete(c.subsystems, typeHash)
	for i, h := range c.subsystemOrder {
		if h == typeHash {
			c.subsystemOrder = append(c.subsystemOrder[:i], c.subsystemOrder[i+1:]...)
			break
		}
	}
	obj.ReleaseRef()
}

// Shutdown releases all subsystems in reverse registration order. The
// order contract lets later-registered subsystems depend on earlier
// ones during teardown.
func (c *Context) Shutdown() {
	for i := len(c.subsystemOrder) - 1; i >= 0; i-- {
		typeHash := c.subsystemOrder[i]
		if obj, ok := c.subsystems[typeHash]; ok {
			delete(c.subsystems, typeHash)
			obj.ReleaseRef()
		}
	}
	c.subsystemOrder = c.subsystemOrder[:0]
}

// EventDataMap returns a reusable payload map for the current dispatch
// depth, cleared for use. The same map is handed out again for the next
// event at the same depth, so callers must not retain it across a
// nested SendEvent.
func (c *Context) EventDataMap() variant.Map {
	depth := len(c.senderStack)
	for len(c.dataMaps) <= depth {
		c.dataMaps = append(c.dataMaps, make(variant.Map))
	}
	m := c.dataMaps[depth]
	m.Clear()
	return m
}

// EventSender returns the sender of the innermost event being
// dispatched, or nil outside a dispatch.
func (c *Context) EventSender() Object {
	if n := len(c.senderStack); n > 0 {
		return c.senderStack[n-1].sender
	}
	return nil
}

// EventType returns the type of the innermost event being dispatched,
// or the zero hash outside a dispatch.
func (c *Context) EventType() hash.StringHash {
	if n := len(c.senderStack); n > 0 {
		return c.senderStack[n-1].eventType
	}
	return hash.Zero
}

func (c *Context) beginSendEvent(sender Object, eventType hash.StringHash) {
	c.senderStack = append(c.senderStack, eventFrame{sender: sender, eventType: eventType})
}

func (c *Context) endSendEvent() {
	n := len(c.senderStack) - 1
	if n < 0 {
		return
	}
	c.senderStack[n] = eventFrame{}
	c.senderStack = c.senderStack[:n]
}

func (c *Context) globalReceivers(eventType hash.StringHash) *EventReceiverGroup {
	return c.globalGroups[eventType]
}

func (c *Context) senderReceivers(sender Object, eventType hash.StringHash) *EventReceiverGroup {
	if groups, ok := c.senderGroups[sender]; ok {
		return groups[eventType]
	}
	return nil
}

func (c *Context) addEventReceiver(receiver Object, eventType hash.StringHash) {
	group := c.globalGroups[eventType]
	if group == nil {
		group = &EventReceiverGroup{}
		c.globalGroups[eventType] = group
	}
	group.Add(receiver)
}

func (c *Context) addSenderReceiver(receiver, sender Object, eventType hash.StringHash) {
	groups := c.senderGroups[sender]
	if groups == nil {
		groups = make(map[hash.StringHash]*EventReceiverGroup)
		c.senderGroups[sender] = groups
	}
	group := groups[eventType]
	if group == nil {
		group = &EventReceiverGroup{}
		groups[eventType] = group
	}
	group.Add(receiver)
}

func (c *Context) removeEventReceiver(receiver Object, eventType hash.StringHash) {
	group := c.globalGroups[eventType]
	c.checkedRemove(group, receiver, eventType)
}

func (c *Context) removeSenderReceiver(receiver, sender Object, eventType hash.StringHash) {
	group := c.senderReceivers(sender, eventType)
	c.checkedRemove(group, receiver, eventType)
}

// checkedRemove removes receiver from group. A miss outside a dispatch
// means subscription bookkeeping has diverged from the group tables,
// which is a caller contract violation, reported rather than fatal.
func (c *Context) checkedRemove(group *EventReceiverGroup, receiver Object, eventType hash.StringHash) {
	if group == nil {
		c.log.Error("unsubscribe for an event with no receiver group",
			log.String("event", eventType.String()))
		return
	}
	if !group.Remove(receiver) && !group.Sending() {
		c.log.Error("unsubscribe for a receiver that is not registered",
			log.String("event", eventType.String()))
	}
}

// removeEventSender detaches everything subscribed to sender and drops
// its scoped groups. Runs when the sender's last reference goes.
func (c *Context) removeEventSender(sender Object) {
	groups, ok := c.senderGroups[sender]
	if !ok {
		return
	}
	for _, group := range groups {
		for i := 0; i < group.Count(); i++ {
			if receiver := group.Receiver(i); receiver != nil && receiver != sender {
				receiver.base().removeSenderHandlers(sender)
			}
		}
	}
	delete(c.senderGroups, sender)
}

func (c *Context) onMainGoroutine() bool {
	return goroutineID() == c.mainGoroutine
}

// goroutineID parses the numeric id from the header line runtime.Stack
// prints, "goroutine N [running]:". The runtime deliberately exposes no
// cheaper accessor.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	const prefix = len("goroutine ")
	var id uint64
	for _, ch := range buf[prefix:n] {
		if ch < '0' || ch > '9' {
			break
		}
		id = id*10 + uint64(ch-'0')
	}
	return id
}
