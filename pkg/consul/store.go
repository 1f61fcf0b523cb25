// Package consul provides an anchor.RemoteStore backed by Consul KV, watched
// through blocking queries.
package consul

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/consul/api"
	"github.com/zoobzio/anchor"
)

// Store persists identifiers as Consul KV pairs.
type Store struct {
	client    *api.Client
	prefix    string
	waitTime  time.Duration
	retryWait time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix prepends prefix to every key, e.g. "devices/".
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithWaitTime bounds each blocking query. Zero uses the agent default.
func WithWaitTime(d time.Duration) Option {
	return func(s *Store) {
		s.waitTime = d
	}
}

// New creates a Store over client.
func New(client *api.Client, opts ...Option) *Store {
	s := &Store{
		client:    client,
		retryWait: time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) key(key string) string {
	return s.prefix + key
}

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	pair, _, err := s.client.KV().Get(s.key(key), (&api.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return "", false, err
	}
	if pair == nil {
		return "", false, nil
	}
	return string(pair.Value), true, nil
}

// Set stores value under key.
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.client.KV().Put(&api.KVPair{
		Key:   s.key(key),
		Value: []byte(value),
	}, (&api.WriteOptions{}).WithContext(ctx))
	return err
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.KV().Delete(s.key(key), (&api.WriteOptions{}).WithContext(ctx))
	return err
}

// Synchronize is a no-op: KV writes return once committed through Raft.
func (*Store) Synchronize(_ context.Context) error {
	return nil
}

// Watch returns a channel notified whenever the index of key moves past the
// one current at the call, which covers writes and deletes.
func (s *Store) Watch(ctx context.Context, key string) (<-chan struct{}, error) {
	kv := s.client.KV()
	path := s.key(key)

	// Get initial index
	_, meta, err := kv.Get(path, (&api.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to get initial index: %w", err)
	}

	out := make(chan struct{}, 1)

	go func() {
		defer close(out)

		lastIndex := meta.LastIndex

		// Watch for changes using blocking queries
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			opts := &api.QueryOptions{
				WaitIndex: lastIndex,
				WaitTime:  s.waitTime,
			}
			opts = opts.WithContext(ctx)

			_, meta, err := kv.Get(path, opts)
			if err != nil {
				// Context cancelled
				if ctx.Err() != nil {
					return
				}
				// Other error - back off and continue watching
				select {
				case <-time.After(s.retryWait):
				case <-ctx.Done():
					return
				}
				continue
			}

			// The index resets if the KV store is restored from a snapshot
			if meta.LastIndex < lastIndex {
				lastIndex = 0
				continue
			}
			if meta.LastIndex > lastIndex {
				lastIndex = meta.LastIndex
				anchor.Notify(out)
			}
		}
	}()

	return out, nil
}

var _ anchor.RemoteStore = (*Store)(nil)
