package variant

// CustomValue is implemented by user types stored in the custom kind.
// The custom kind participates in equality, cloning, and stringification
// through these methods; it is excluded from every serialization codec.
type CustomValue interface {
	// Equals compares against another custom payload. Implementations
	// should return false for payloads of a foreign concrete type.
	Equals(other CustomValue) bool
	// Clone returns an independent copy.
	Clone() CustomValue
	String() string
}
