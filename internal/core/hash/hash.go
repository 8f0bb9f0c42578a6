// Package hash provides the 32-bit name hash used to key types, events,
// attributes, and variant map entries across the engine.
package hash

import (
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// StringHash is a stable 32-bit hash of a name string. Two distinct names
// colliding is accepted as a birthday-bound risk; the registry below keeps
// the first name seen for a hash so collisions surface in diagnostics.
type StringHash uint32

// Zero is the hash of the empty name.
const Zero StringHash = 0

// New computes the hash of name. It does not touch the reverse registry,
// so it is safe on hot paths.
func New(name string) StringHash {
	if name == "" {
		return Zero
	}
	return StringHash(uint32(xxhash.Sum64String(name)))
}

// Value returns the raw 32-bit value.
func (h StringHash) Value() uint32 { return uint32(h) }

// IsZero reports whether h is the empty-name hash.
func (h StringHash) IsZero() bool { return h == Zero }

// String renders the registered name when known, else the hex value.
func (h StringHash) String() string {
	if name := NameOf(h); name != "" {
		return name
	}
	return fmt.Sprintf("%08X", uint32(h))
}

var (
	namesMu sync.RWMutex
	names   = make(map[StringHash]string)
)

// Register computes the hash of name and records the reverse mapping for
// diagnostics. Intended for type names, event types, and event parameters
// declared at startup. The first name registered for a hash wins.
func Register(name string) StringHash {
	h := New(name)
	if name == "" {
		return h
	}
	namesMu.Lock()
	if _, exists := names[h]; !exists {
		names[h] = name
	}
	namesMu.Unlock()
	return h
}

// NameOf returns the registered name for h, or "" when unknown.
func NameOf(h StringHash) string {
	namesMu.RLock()
	name := names[h]
	namesMu.RUnlock()
	return name
}
