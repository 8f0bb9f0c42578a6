package replication

import "github.com/keel-engine/keel/internal/core/hash"

// Server-side connection lifecycle events, sent from Tick on the main
// goroutine.
var (
	EventClientConnected    = hash.Register("ClientConnected")
	EventClientDisconnected = hash.Register("ClientDisconnected")
)

// Client-side object lifecycle events, sent from Pump on the main
// goroutine.
var (
	EventNetObjectCreated = hash.Register("NetObjectCreated")
	EventNetObjectRemoved = hash.Register("NetObjectRemoved")
	// EventConnectionLost fires once when the client's connection drops
	// without a Close call.
	EventConnectionLost = hash.Register("ConnectionLost")
)

// Event parameters.
var (
	// ParamSession identifies a server session (string).
	ParamSession = hash.Register("Session")
	// ParamAddress is the peer address (string).
	ParamAddress = hash.Register("Address")
	// ParamNetID is the replicated object id (int64).
	ParamNetID = hash.Register("NetID")
	// ParamObject is the affected object (RefCounted).
	ParamObject = hash.Register("Object")
)
