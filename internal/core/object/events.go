package object

import "github.com/keel-engine/keel/internal/core/hash"

// EventInterceptNetworkUpdate fires instead of applying an inbound
// network attribute the receiver has claimed with
// SetInterceptNetworkUpdate.
var EventInterceptNetworkUpdate = hash.Register("InterceptNetworkUpdate")

// Payload keys for EventInterceptNetworkUpdate.
var (
	// ParamSerializable is the target object, as a weak reference.
	ParamSerializable = hash.Register("Serializable")
	// ParamName is the attribute name.
	ParamName = hash.Register("Name")
	// ParamIndex is the attribute's index in the full attribute table,
	// or -1 when the descriptor is no longer registered.
	ParamIndex = hash.Register("Index")
	// ParamValue is the raw inbound value.
	ParamValue = hash.Register("Value")
)
