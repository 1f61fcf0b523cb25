// Package redis provides an anchor.RemoteStore backed by Redis keys, watched
// through keyspace notifications.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zoobzio/anchor"
)

// ErrNotReplicated is returned by Synchronize when fewer replicas than
// requested acknowledged the last write.
var ErrNotReplicated = errors.New("redis: write not acknowledged by enough replicas")

// Store persists identifiers as Redis strings.
// Watch requires Redis to have keyspace notifications enabled:
//
//	CONFIG SET notify-keyspace-events KEA
//
// Or in redis.conf:
//
//	notify-keyspace-events KEA
type Store struct {
	client      *redis.Client
	prefix      string
	replicas    int
	waitTimeout time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix prepends prefix to every key.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithReplicas makes Synchronize block until n replicas acknowledged the
// preceding writes, or timeout passes.
func WithReplicas(n int, timeout time.Duration) Option {
	return func(s *Store) {
		s.replicas = n
		s.waitTimeout = timeout
	}
}

// New creates a Store over client.
func New(client *redis.Client, opts ...Option) *Store {
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
	val, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// Set stores value under key without expiry.
func (s *Store) Set(ctx context.Context, key, value string) error {
	return s.client.Set(ctx, s.key(key), value, 0).Err()
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}

// Synchronize waits for replica acknowledgement when WithReplicas is set.
// Otherwise it is a no-op.
func (s *Store) Synchronize(ctx context.Context) error {
	if s.replicas <= 0 {
		return nil
	}
	acked, err := s.client.Wait(ctx, s.replicas, s.waitTimeout).Result()
	if err != nil {
		return err
	}
	if int(acked) < s.replicas {
		return fmt.Errorf("%w: %d of %d", ErrNotReplicated, acked, s.replicas)
	}
	return nil
}

// Watch subscribes to keyspace notifications for key and returns a channel
// that is notified on every write, delete or expiry.
func (s *Store) Watch(ctx context.Context, key string) (<-chan struct{}, error) {
	// Subscribe to keyspace notifications for this key
	channel := fmt.Sprintf("__keyspace@%d__:%s", s.client.Options().DB, s.key(key))
	pubsub := s.client.Subscribe(ctx, channel)

	// Verify subscription worked
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to keyspace notifications: %w", err)
	}

	out := make(chan struct{}, 1)

	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				switch msg.Payload {
				case "set", "setex", "psetex", "setnx", "mset", "setrange", "append",
					"del", "expired", "evicted", "rename_to", "rename_from":
					anchor.Notify(out)
				}
			}
		}
	}()

	return out, nil
}

var _ anchor.RemoteStore = (*Store)(nil)
