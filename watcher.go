package anchor

import "context"

// DefaultKey is the storage key the identifier is persisted under.
const DefaultKey = "anchor.id"

// Store is a key-value store holding opaque string values.
type Store interface {
	// Get returns the value stored under key. The boolean is false when the
	// key holds no value; a missing key is not an error.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key.
	Set(ctx context.Context, key, value string) error
}

// Watcher observes a key for changes made outside the process.
type Watcher interface {
	// Watch begins observing key and returns a channel that receives a
	// notification whenever the key is written or deleted. Notifications
	// carry no payload: receivers read the current value back from the store.
	// Bursts may be coalesced into a single notification. The channel is
	// closed when the context is canceled or an unrecoverable error occurs.
	Watch(ctx context.Context, key string) (<-chan struct{}, error)
}

// RemoteStore is a store synchronized across devices. It is eventually
// consistent and reports external changes through Watch.
type RemoteStore interface {
	Store
	Watcher

	// Synchronize hints the store to propagate pending writes. It is not a
	// durable-commit guarantee.
	Synchronize(ctx context.Context) error
}

// Notify performs a non-blocking send on a notification channel. Channels
// created with a buffer of one coalesce bursts this way.
func Notify(ch chan<- struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
