// Package firestore provides an anchor.RemoteStore backed by Firestore
// documents, watched through realtime listeners.
package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/zoobzio/anchor"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	// DefaultCollection holds one document per key.
	DefaultCollection = "anchor"

	// DefaultField is the document field holding the identifier.
	DefaultField = "id"
)

// Store persists identifiers as a field of a Firestore document. The key is
// the document ID.
type Store struct {
	client     *firestore.Client
	collection string
	field      string
}

// Option configures a Store.
type Option func(*Store)

// WithCollection sets the collection. Default: DefaultCollection.
func WithCollection(collection string) Option {
	return func(s *Store) {
		s.collection = collection
	}
}

// WithField sets the document field holding the identifier.
// Other fields of the document are left untouched. Default: DefaultField.
func WithField(field string) Option {
	return func(s *Store) {
		s.field = field
	}
}

// New creates a Store over client.
func New(client *firestore.Client, opts ...Option) *Store {
	s := &Store{
		client:     client,
		collection: DefaultCollection,
		field:      DefaultField,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) doc(key string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(key)
}

// Get returns the identifier field of the document for key. A missing
// document or field is reported as not found.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	snap, err := s.doc(key).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return s.value(snap)
}

func (s *Store) value(snap *firestore.DocumentSnapshot) (string, bool, error) {
	if !snap.Exists() {
		return "", false, nil
	}
	raw, err := snap.DataAt(s.field)
	if err != nil {
		// Field missing
		return "", false, nil
	}
	switch v := raw.(type) {
	case string:
		return v, true, nil
	case []byte:
		return string(v), true, nil
	default:
		return "", false, nil
	}
}

// Set writes value to the identifier field, creating the document if needed.
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.doc(key).Set(ctx, map[string]interface{}{
		s.field: value,
	}, firestore.MergeAll)
	return err
}

// Delete removes the document for key.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.doc(key).Delete(ctx)
	return err
}

// Synchronize is a no-op: writes return once committed.
func (*Store) Synchronize(_ context.Context) error {
	return nil
}

// Watch returns a channel notified whenever the document for key changes,
// including deletion, after the call. The channel closes when ctx ends or
// the listener fails.
func (s *Store) Watch(ctx context.Context, key string) (<-chan struct{}, error) {
	docRef := s.doc(key)

	out := make(chan struct{}, 1)

	go func() {
		defer close(out)

		snapshots := docRef.Snapshots(ctx)
		defer snapshots.Stop()

		first := true
		for {
			_, err := snapshots.Next()
			if err != nil {
				return
			}
			// The first snapshot is the state at subscription time
			if first {
				first = false
				continue
			}
			anchor.Notify(out)
		}
	}()

	return out, nil
}

var _ anchor.RemoteStore = (*Store)(nil)
