package replication

import "errors"

var (
	ErrClosed          = errors.New("replication: closed")
	ErrAlreadyRunning  = errors.New("replication: already running")
	ErrNotConnected    = errors.New("replication: not connected")
	ErrFrameTooShort   = errors.New("replication: frame too short")
	ErrBadMessage      = errors.New("replication: malformed message")
	ErrVersionMismatch = errors.New("replication: protocol version mismatch")
	ErrUnknownType     = errors.New("replication: unknown object type")
	ErrNotReplicated   = errors.New("replication: object type is not replicated")
)
