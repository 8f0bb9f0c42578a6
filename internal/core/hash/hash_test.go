package hash

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewDeterministic(t *testing.T) {
	a := New("PositionChanged")
	b := New("PositionChanged")
	require.Equal(t, a, b)
	require.False(t, a.IsZero())
}

func TestNewDistinct(t *testing.T) {
	seen := make(map[StringHash]string)
	for _, name := range []string{
		"BeginFrame", "EndFrame", "Update", "PostUpdate",
		"Node", "Component", "Widget", "Transform",
	} {
		h := New(name)
		if prev, ok := seen[h]; ok {
			t.Fatalf("hash collision between %q and %q", prev, name)
		}
		seen[h] = name
	}
}

func TestEmptyName(t *testing.T) {
	require.Equal(t, Zero, New(""))
	require.True(t, New("").IsZero())
}

func TestRegisterReverseLookup(t *testing.T) {
	h := Register("WidgetTestType")
	require.Equal(t, "WidgetTestType", NameOf(h))
	require.Equal(t, "WidgetTestType", h.String())
}

func TestUnregisteredName(t *testing.T) {
	h := New("never-registered-name-1234")
	require.Equal(t, "", NameOf(h))
	require.Len(t, h.String(), 8)
}

func TestRegisterFirstNameWins(t *testing.T) {
	h := Register("FirstNameForHash")
	// Registering the same name again must not change the mapping.
	Register("FirstNameForHash")
	require.Equal(t, "FirstNameForHash", NameOf(h))
}

func BenchmarkNew(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = New("SomeModeratelyLongEventName")
	}
}
