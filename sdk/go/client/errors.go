package client

import "errors"

// Client-specific errors
var (
	ErrClientClosed    = errors.New("client is closed")
	ErrNotStarted      = errors.New("client is not started")
	ErrAlreadyStarted  = errors.New("client is already started")
	ErrReconnectFailed = errors.New("reconnection failed")
	ErrInvalidConfig   = errors.New("invalid client configuration")
)
