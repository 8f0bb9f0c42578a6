// Package script embeds a Lua interpreter as an engine subsystem. Scripts
// reach the engine through the "keel" module: they log, send and receive
// events, and read or write object attributes by name. The interpreter
// state is not goroutine safe, so everything here runs on the main
// goroutine, like event dispatch itself.
package script

import (
	"errors"
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/keel-engine/keel/internal/core/hash"
	"github.com/keel-engine/keel/internal/core/object"
	"github.com/keel-engine/keel/internal/core/observability/log"
	"github.com/keel-engine/keel/internal/core/variant"
)

// TypeSystem identifies the script subsystem.
var TypeSystem = object.NewTypeInfo("ScriptSystem", nil)

var (
	ErrClosed        = errors.New("script: interpreter closed")
	ErrObjectUnknown = errors.New("script: object not registered")
)

// Attributed is the slice of the object model scripts can touch:
// anything serializable with named attributes.
type Attributed interface {
	object.Object
	GetAttribute(name string) (variant.Variant, error)
	SetAttribute(name string, value variant.Variant) error
}

// System owns the Lua state. Scripts obtain the engine bindings with
//
//	local keel = require("keel")
//
// and then call keel.log, keel.send_event, keel.subscribe,
// keel.unsubscribe, keel.get_attribute and keel.set_attribute.
type System struct {
	object.BaseObject

	state    *lua.LState
	handlers map[hash.StringHash]*lua.LFunction
	objects  map[string]Attributed
	closed   bool
}

// NewSystem builds the interpreter with the base, table, string and math
// libraries plus the "keel" module preloaded.
func NewSystem(ctx *object.Context) *System {
	s := &System{
		handlers: make(map[hash.StringHash]*lua.LFunction),
		objects:  make(map[string]Attributed),
	}
	s.Init(ctx, TypeSystem, s)

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	lua.OpenPackage(L)
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
	L.PreloadModule("keel", s.loadModule)
	s.state = L
	return s
}

// State exposes the raw interpreter for callers that need bindings
// beyond the keel module.
func (s *System) State() *lua.LState { return s.state }

// RegisterObject makes obj reachable from scripts under name, holding a
// reference until it is unregistered or the system closes. Registering
// an existing name replaces the previous object.
func (s *System) RegisterObject(name string, obj Attributed) {
	if obj == nil || name == "" {
		return
	}
	obj.AddRef()
	if prev, ok := s.objects[name]; ok {
		prev.ReleaseRef()
	}
	s.objects[name] = obj
}

// UnregisterObject removes the name and drops the held reference.
func (s *System) UnregisterObject(name string) {
	if prev, ok := s.objects[name]; ok {
		delete(s.objects, name)
		prev.ReleaseRef()
	}
}

// DoString executes a chunk of Lua source.
func (s *System) DoString(code string) error {
	if s.closed {
		return ErrClosed
	}
	if err := s.state.DoString(code); err != nil {
		return fmt.Errorf("script: %w", err)
	}
	return nil
}

// DoFile executes a Lua file.
func (s *System) DoFile(path string) error {
	if s.closed {
		return ErrClosed
	}
	if err := s.state.DoFile(path); err != nil {
		return fmt.Errorf("script: %w", err)
	}
	return nil
}

// Close detaches every script event handler, releases registered
// objects and shuts the interpreter down.
func (s *System) Close() {
	if s.closed {
		return
	}
	s.closed = true
	for eventType := range s.handlers {
		s.UnsubscribeFromEvent(eventType)
	}
	clear(s.handlers)
	for name, obj := range s.objects {
		delete(s.objects, name)
		obj.ReleaseRef()
	}
	s.state.Close()
}

func (s *System) loadModule(L *lua.LState) int {
	mod := L.NewTable()
	L.SetField(mod, "log", L.NewFunction(s.luaLog))
	L.SetField(mod, "send_event", L.NewFunction(s.luaSendEvent))
	L.SetField(mod, "subscribe", L.NewFunction(s.luaSubscribe))
	L.SetField(mod, "unsubscribe", L.NewFunction(s.luaUnsubscribe))
	L.SetField(mod, "get_attribute", L.NewFunction(s.luaGetAttribute))
	L.SetField(mod, "set_attribute", L.NewFunction(s.luaSetAttribute))
	L.Push(mod)
	return 1
}

// keel.log(level, message)
func (s *System) luaLog(L *lua.LState) int {
	level := L.CheckString(1)
	message := L.CheckString(2)
	logger := s.Context().Log()
	switch level {
	case "debug":
		logger.Debug(message)
	case "warn":
		logger.Warn(message)
	case "error":
		logger.Error(message)
	default:
		logger.Info(message)
	}
	return 0
}

// keel.send_event(name [, payload])
func (s *System) luaSendEvent(L *lua.LState) int {
	name := L.CheckString(1)
	payload := L.OptTable(2, nil)

	eventType := hash.Register(name)
	data := s.Context().EventDataMap()
	if payload != nil {
		payload.ForEach(func(k, v lua.LValue) {
			data[hash.Register(k.String())] = fromLua(v)
		})
	}
	s.SendEvent(eventType, data)
	return 0
}

// keel.subscribe(name, handler) wires handler(event_name, payload_table).
// Subscribing the same name again replaces the handler.
func (s *System) luaSubscribe(L *lua.LState) int {
	name := L.CheckString(1)
	fn := L.CheckFunction(2)

	eventType := hash.Register(name)
	s.handlers[eventType] = fn
	s.SubscribeToEvent(eventType, s.dispatchToLua)
	return 0
}

// keel.unsubscribe(name)
func (s *System) luaUnsubscribe(L *lua.LState) int {
	name := L.CheckString(1)
	eventType := hash.New(name)
	if _, ok := s.handlers[eventType]; ok {
		delete(s.handlers, eventType)
		s.UnsubscribeFromEvent(eventType)
	}
	return 0
}

// keel.get_attribute(object_name, attribute_name) -> value
func (s *System) luaGetAttribute(L *lua.LState) int {
	obj := s.checkObject(L, 1)
	attrName := L.CheckString(2)

	value, err := obj.GetAttribute(attrName)
	if err != nil {
		L.RaiseError("get_attribute: %s", err.Error())
		return 0
	}
	L.Push(toLua(L, value))
	return 1
}

// keel.set_attribute(object_name, attribute_name, value)
func (s *System) luaSetAttribute(L *lua.LState) int {
	obj := s.checkObject(L, 1)
	attrName := L.CheckString(2)
	lv := L.CheckAny(3)

	info := obj.Context().Attribute(obj.TypeInfo().Type(), attrName)
	if info == nil {
		L.RaiseError("set_attribute: no attribute %q on %s", attrName, obj.TypeInfo().Name())
		return 0
	}
	value, err := coerceLua(lv, info.Kind)
	if err != nil {
		L.RaiseError("set_attribute: %s", err.Error())
		return 0
	}
	if err := obj.SetAttribute(attrName, value); err != nil {
		L.RaiseError("set_attribute: %s", err.Error())
	}
	return 0
}

func (s *System) checkObject(L *lua.LState, n int) Attributed {
	name := L.CheckString(n)
	obj, ok := s.objects[name]
	if !ok {
		L.RaiseError("no object registered as %q", name)
	}
	return obj
}

// dispatchToLua forwards an engine event to the script handler
// registered for its type. Handler errors are logged, never raised back
// into the dispatch chain.
func (s *System) dispatchToLua(sender object.Object, eventType hash.StringHash, data variant.Map) {
	if s.closed {
		return
	}
	fn, ok := s.handlers[eventType]
	if !ok {
		return
	}
	L := s.state
	L.Push(fn)
	L.Push(lua.LString(eventType.String()))
	L.Push(mapToTable(L, data))
	if err := L.PCall(2, 0, nil); err != nil {
		s.Context().Log().Error("script: event handler failed",
			log.String("event", eventType.String()), log.Error(err))
	}
}
