// Package nats provides an anchor.RemoteStore backed by a NATS JetStream
// key-value bucket, watched through the native Watch API.
package nats

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/zoobzio/anchor"
)

// Store persists identifiers in a JetStream KV bucket.
type Store struct {
	kv     jetstream.KeyValue
	prefix string
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix prepends prefix to every key, e.g. "devices.".
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a Store over kv.
func New(kv jetstream.KeyValue, opts ...Option) *Store {
	s := &Store{kv: kv}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) key(key string) string {
	return s.prefix + key
}

// Get returns the value stored under key. Deleted and purged keys are
// reported as missing.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	entry, err := s.kv.Get(ctx, s.key(key))
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(entry.Value()), true, nil
}

// Set stores value under key.
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.kv.Put(ctx, s.key(key), []byte(value))
	return err
}

// Delete places a delete marker on key.
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.kv.Delete(ctx, s.key(key))
}

// Synchronize is a no-op: Put returns once JetStream acknowledged the write.
func (*Store) Synchronize(_ context.Context) error {
	return nil
}

// Watch returns a channel notified on every put, delete or purge of key
// made after the call.
func (s *Store) Watch(ctx context.Context, key string) (<-chan struct{}, error) {
	watcher, err := s.kv.Watch(ctx, s.key(key), jetstream.UpdatesOnly())
	if err != nil {
		return nil, fmt.Errorf("failed to watch key: %w", err)
	}

	out := make(chan struct{}, 1)

	go func() {
		defer close(out)
		defer watcher.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case entry, ok := <-watcher.Updates():
				if !ok {
					return
				}
				// nil entry signals end of initial values
				if entry == nil {
					continue
				}
				anchor.Notify(out)
			}
		}
	}()

	return out, nil
}

var _ anchor.RemoteStore = (*Store)(nil)
