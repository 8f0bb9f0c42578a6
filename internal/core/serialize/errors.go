package serialize

import "errors"

var (
	// ErrUnsupportedKind marks variant kinds with no wire or document
	// form: opaque pointers, weak object references, and custom payloads.
	ErrUnsupportedKind = errors.New("serialize: kind has no serialized form")
	// ErrBlobTooLarge guards length-prefixed reads against corrupt or
	// hostile length fields.
	ErrBlobTooLarge = errors.New("serialize: length prefix exceeds limit")
	// ErrMalformed marks structurally invalid document input.
	ErrMalformed = errors.New("serialize: malformed input")
)

// maxBlob bounds any single length-prefixed string or buffer read.
const maxBlob = 1 << 26
