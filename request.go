package anchor

// Write carries one remote store write through the remote pipeline.
type Write struct {
	// Key is the storage key.
	Key string

	// Value is the identifier being persisted.
	Value string

	// Origin is the entry point that produced the value. Configure writes
	// and republished values use the origin of the operation that led there.
	Origin Origin
}
