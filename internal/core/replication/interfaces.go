// Package replication mirrors the network attributes of registered
// objects from a server context to client contexts. The server scans
// for attribute changes once per tick and broadcasts binary deltas;
// clients apply them to local instances created through their own
// context factories. Socket I/O runs on background goroutines, while
// every Object mutation stays on the main goroutine behind a channel.
package replication

import "context"

// Conn is one reliable, ordered byte-frame connection between a client
// and a server. Send and Receive are each safe for one goroutine at a
// time.
type Conn interface {
	// Send transmits one frame.
	Send(ctx context.Context, frame []byte) error
	// Receive blocks for the next frame. It returns an error once the
	// connection is closed.
	Receive(ctx context.Context) ([]byte, error)
	// RemoteAddr describes the peer for diagnostics.
	RemoteAddr() string
	Close() error
}

// Listener accepts replication connections.
type Listener interface {
	Accept(ctx context.Context) (Conn, error)
	// Addr returns the bound address, usable for dialling back.
	Addr() string
	Close() error
}

// Transport binds listeners and dials connections. Implementations live
// in the websocket and quic subpackages.
type Transport interface {
	Listen(ctx context.Context, addr string) (Listener, error)
	Dial(ctx context.Context, addr string) (Conn, error)
}
