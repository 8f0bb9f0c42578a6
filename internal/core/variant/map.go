package variant

import "github.com/keel-engine/keel/internal/core/hash"

// Map is the hash-keyed variant map used for event payloads and nested
// values. It has reference semantics like any Go map; Clone through a
// Variant for an independent copy.
type Map map[hash.StringHash]Variant

// Get returns the value for key, or the none variant when absent.
func (m Map) Get(key hash.StringHash) Variant {
	return m[key]
}

// Contains reports whether key is present.
func (m Map) Contains(key hash.StringHash) bool {
	_, ok := m[key]
	return ok
}

// Clear removes every entry, keeping the allocation.
func (m Map) Clear() {
	clear(m)
}
