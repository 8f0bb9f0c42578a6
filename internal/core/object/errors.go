package object

import "errors"

var (
	// ErrTypeMismatch reports a value or document whose object type does
	// not match the receiver the operation was invoked on.
	ErrTypeMismatch = errors.New("object: type does not match receiver")
	// ErrAttributeReadOnly reports a write through an accessor with no
	// setter.
	ErrAttributeReadOnly = errors.New("object: attribute has no setter")
	// ErrAttributeNotFound reports a name absent from the receiver's
	// attribute table.
	ErrAttributeNotFound = errors.New("object: attribute not found")
	// ErrKindMismatch reports a variant whose kind differs from the
	// attribute's declared kind. Attribute writes never coerce.
	ErrKindMismatch = errors.New("object: variant kind does not match attribute")
)
