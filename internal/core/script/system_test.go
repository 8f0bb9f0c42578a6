package script

import (
	"testing"

	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"

	"github.com/keel-engine/keel/internal/core/hash"
	"github.com/keel-engine/keel/internal/core/object"
	"github.com/keel-engine/keel/internal/core/observability/log"
	"github.com/keel-engine/keel/internal/core/variant"
	"github.com/keel-engine/keel/internal/core/vmath"
)

var (
	typeTap   = object.NewTypeInfo("ScriptTap", nil)
	typeRover = object.NewTypeInfo("Rover", nil)
)

// tap records event payloads delivered to it.
type tap struct {
	object.BaseObject
	heard []variant.Map
}

func newTap(ctx *object.Context) *tap {
	p := &tap{}
	p.Init(ctx, typeTap, p)
	return p
}

func (p *tap) listen(eventType hash.StringHash) {
	p.SubscribeToEvent(eventType, func(sender object.Object, eventType hash.StringHash, data variant.Map) {
		captured := variant.Map{}
		for k, v := range data {
			captured[k] = v
		}
		p.heard = append(p.heard, captured)
	})
}

type rover struct {
	object.Serializable
	speed int
	vel   vmath.Vector3
	tag   string
}

func newRover(ctx *object.Context) *rover {
	r := &rover{}
	r.Init(ctx, typeRover, r)
	return r
}

func registerRover(ctx *object.Context) {
	ctx.RegisterAttribute(typeRover.Type(), object.AttributeInfo{
		Kind: variant.KindInt,
		Name: "Speed",
		Accessor: object.AccessorOf(
			func(r *rover) variant.Variant { return variant.New(r.speed) },
			func(r *rover, v variant.Variant) { r.speed = v.Int() },
		),
		Default: variant.New(0),
		Mode:    object.AttrDefault,
	})
	ctx.RegisterAttribute(typeRover.Type(), object.AttributeInfo{
		Kind: variant.KindVector3,
		Name: "Velocity",
		Accessor: object.AccessorOf(
			func(r *rover) variant.Variant { return variant.New(r.vel) },
			func(r *rover, v variant.Variant) { r.vel = v.Vector3() },
		),
		Default: variant.New(vmath.Vector3{}),
		Mode:    object.AttrDefault,
	})
	ctx.RegisterAttribute(typeRover.Type(), object.AttributeInfo{
		Kind: variant.KindString,
		Name: "Tag",
		Accessor: object.AccessorOf(
			func(r *rover) variant.Variant { return variant.New(r.tag) },
			func(r *rover, v variant.Variant) { r.tag = v.Str() },
		),
		Default: variant.New(""),
		Mode:    object.AttrDefault,
	})
}

func TestModuleLoads(t *testing.T) {
	ctx := object.NewContext(log.Nop())
	sys := NewSystem(ctx)
	defer sys.Close()

	require.NoError(t, sys.DoString(`
		local keel = require("keel")
		keel.log("info", "hello from lua")
		keel.log("nonsense", "defaults to info")
	`))
}

func TestSendEventFromLua(t *testing.T) {
	ctx := object.NewContext(log.Nop())
	sys := NewSystem(ctx)
	defer sys.Close()

	p := newTap(ctx)
	p.listen(hash.Register("ScriptPing"))

	require.NoError(t, sys.DoString(`
		local keel = require("keel")
		keel.send_event("ScriptPing", {
			Count = 3,
			Label = "x",
			Flag = true,
			Ratio = 1.5,
			Tags = {"a", "b"},
		})
	`))

	require.Len(t, p.heard, 1)
	data := p.heard[0]
	require.Equal(t, 3, data.Get(hash.New("Count")).Int())
	require.Equal(t, "x", data.Get(hash.New("Label")).Str())
	require.True(t, data.Get(hash.New("Flag")).Bool())
	require.InDelta(t, 1.5, data.Get(hash.New("Ratio")).Double(), 1e-12)
	require.Equal(t, []string{"a", "b"}, func() []string {
		var out []string
		for _, v := range data.Get(hash.New("Tags")).VariantVector() {
			out = append(out, v.Str())
		}
		return out
	}())
}

func TestLuaHandlerReceivesEvents(t *testing.T) {
	ctx := object.NewContext(log.Nop())
	sys := NewSystem(ctx)
	defer sys.Close()

	require.NoError(t, sys.DoString(`
		local keel = require("keel")
		calls = 0
		keel.subscribe("Pulse", function(name, payload)
			calls = calls + 1
			got_name = name
			got_count = payload.Count
		end)
	`))

	sender := newTap(ctx)
	pulse := hash.Register("Pulse")
	data := ctx.EventDataMap()
	data[hash.Register("Count")] = variant.New(7)
	sender.SendEvent(pulse, data)

	L := sys.State()
	require.Equal(t, lua.LNumber(1), L.GetGlobal("calls"))
	require.Equal(t, lua.LString("Pulse"), L.GetGlobal("got_name"))
	require.Equal(t, lua.LNumber(7), L.GetGlobal("got_count"))

	// Unsubscribing stops delivery.
	require.NoError(t, sys.DoString(`require("keel").unsubscribe("Pulse")`))
	data = ctx.EventDataMap()
	data[hash.Register("Count")] = variant.New(8)
	sender.SendEvent(pulse, data)
	require.Equal(t, lua.LNumber(1), L.GetGlobal("calls"))
}

func TestAttributeAccessFromLua(t *testing.T) {
	ctx := object.NewContext(log.Nop())
	registerRover(ctx)
	sys := NewSystem(ctx)
	defer sys.Close()

	r := newRover(ctx)
	r.tag = "alpha"
	sys.RegisterObject("hero", r)

	require.NoError(t, sys.DoString(`
		local keel = require("keel")
		keel.set_attribute("hero", "Speed", 12)
		keel.set_attribute("hero", "Velocity", {x = 1, y = 2, z = 3})
		spd = keel.get_attribute("hero", "Speed")
		tag = keel.get_attribute("hero", "Tag")
		vel_y = keel.get_attribute("hero", "Velocity").y
	`))

	require.Equal(t, 12, r.speed)
	require.Equal(t, vmath.Vector3{X: 1, Y: 2, Z: 3}, r.vel)

	L := sys.State()
	require.Equal(t, lua.LNumber(12), L.GetGlobal("spd"))
	require.Equal(t, lua.LString("alpha"), L.GetGlobal("tag"))
	require.Equal(t, lua.LNumber(2), L.GetGlobal("vel_y"))
}

func TestAttributeErrorsSurface(t *testing.T) {
	ctx := object.NewContext(log.Nop())
	registerRover(ctx)
	sys := NewSystem(ctx)
	defer sys.Close()

	r := newRover(ctx)
	sys.RegisterObject("hero", r)

	err := sys.DoString(`require("keel").set_attribute("hero", "Speed", "fast")`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "cannot convert")

	err = sys.DoString(`require("keel").get_attribute("ghost", "Speed")`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "no object registered")

	err = sys.DoString(`require("keel").set_attribute("hero", "Warp", 1)`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "no attribute")
}

func TestRegisterObjectHoldsReference(t *testing.T) {
	ctx := object.NewContext(log.Nop())
	registerRover(ctx)
	sys := NewSystem(ctx)

	r := newRover(ctx)
	require.Equal(t, 1, r.RefCount().Refs())
	sys.RegisterObject("hero", r)
	require.Equal(t, 2, r.RefCount().Refs())

	replacement := newRover(ctx)
	sys.RegisterObject("hero", replacement)
	require.Equal(t, 1, r.RefCount().Refs())

	sys.UnregisterObject("hero")
	require.Equal(t, 1, replacement.RefCount().Refs())

	sys.RegisterObject("again", r)
	sys.Close()
	require.Equal(t, 1, r.RefCount().Refs())
	require.ErrorIs(t, sys.DoString(`print("late")`), ErrClosed)
}
