// Package etcd provides an anchor.RemoteStore backed by etcd keys, watched
// through the native Watch API.
package etcd

import (
	"context"
	"fmt"

	"github.com/zoobzio/anchor"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// Store persists identifiers as etcd keys.
type Store struct {
	client *clientv3.Client
	prefix string
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix prepends prefix to every key, e.g. "/devices/".
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a Store over client.
func New(client *clientv3.Client, opts ...Option) *Store {
	s := &Store{client: client}
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
	resp, err := s.client.Get(ctx, s.key(key))
	if err != nil {
		return "", false, err
	}
	if len(resp.Kvs) == 0 {
		return "", false, nil
	}
	return string(resp.Kvs[0].Value), true, nil
}

// Set stores value under key.
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.client.Put(ctx, s.key(key), value)
	return err
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.Delete(ctx, s.key(key))
	return err
}

// Synchronize is a no-op: Put returns once the write is committed by a
// quorum.
func (*Store) Synchronize(_ context.Context) error {
	return nil
}

// Watch returns a channel notified on every put or delete of key made after
// the call.
func (s *Store) Watch(ctx context.Context, key string) (<-chan struct{}, error) {
	// Get current revision so no change between Watch and the first event is lost
	resp, err := s.client.Get(ctx, s.key(key))
	if err != nil {
		return nil, fmt.Errorf("failed to get current revision: %w", err)
	}

	out := make(chan struct{}, 1)

	go func() {
		defer close(out)

		watchChan := s.client.Watch(ctx, s.key(key), clientv3.WithRev(resp.Header.Revision+1))

		for {
			select {
			case <-ctx.Done():
				return
			case watchResp, ok := <-watchChan:
				if !ok {
					return
				}
				if watchResp.Err() != nil {
					continue
				}
				if len(watchResp.Events) > 0 {
					anchor.Notify(out)
				}
			}
		}
	}()

	return out, nil
}

var _ anchor.RemoteStore = (*Store)(nil)
