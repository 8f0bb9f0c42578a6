package replication

import (
	"bytes"
	"encoding/binary"

	"github.com/keel-engine/keel/pkg/generic"
)

// MessageType discriminates replication frames.
type MessageType byte

const (
	// MsgHello is sent once by the client after connecting. Its payload
	// is the single protocol version byte.
	MsgHello MessageType = iota + 1
	// MsgObjectCreate announces a server object: the payload carries the
	// object's type hash followed by an initial delta against the class
	// defaults.
	MsgObjectCreate
	// MsgObjectDelta carries changed reliable attributes.
	MsgObjectDelta
	// MsgObjectLatest carries the unreliable latest-data attributes.
	MsgObjectLatest
	// MsgObjectRemove retires an object; its payload is empty.
	MsgObjectRemove
)

// protocolVersion is negotiated by MsgHello. Mismatched clients are
// disconnected during the handshake.
const protocolVersion = 1

// frameHeaderSize covers the type byte and the object id.
const frameHeaderSize = 5

// payloadPool recycles the scratch buffers the per-object encoders
// write into.
var payloadPool = generic.NewHotPool(func() *bytes.Buffer {
	return &bytes.Buffer{}
}, 8)

// EncodeFrame assembles a wire frame from its parts. The object id is
// meaningful for object messages and zero otherwise.
func EncodeFrame(t MessageType, netID uint32, payload []byte) []byte {
	frame := make([]byte, frameHeaderSize+len(payload))
	frame[0] = byte(t)
	binary.LittleEndian.PutUint32(frame[1:5], netID)
	copy(frame[frameHeaderSize:], payload)
	return frame
}

// DecodeFrame splits a received frame. The payload aliases the input.
func DecodeFrame(frame []byte) (MessageType, uint32, []byte, error) {
	if len(frame) < frameHeaderSize {
		return 0, 0, nil, ErrFrameTooShort
	}
	t := MessageType(frame[0])
	if t < MsgHello || t > MsgObjectRemove {
		return 0, 0, nil, ErrBadMessage
	}
	return t, binary.LittleEndian.Uint32(frame[1:5]), frame[frameHeaderSize:], nil
}
