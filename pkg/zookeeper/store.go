// Package zookeeper provides an anchor.RemoteStore backed by ZooKeeper
// nodes, watched through exists watches.
package zookeeper

import (
	"context"
	"errors"
	"path"
	"strings"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/zoobzio/anchor"
)

// DefaultRoot is the parent node identifiers are stored under.
const DefaultRoot = "/anchor"

// Store persists identifiers as ZooKeeper node data. Each key maps to a
// child node of the root, e.g. "/anchor/anchor.id".
type Store struct {
	conn      *zk.Conn
	root      string
	acl       []zk.ACL
	retryWait time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithRoot sets the parent node. Default: DefaultRoot.
func WithRoot(root string) Option {
	return func(s *Store) {
		s.root = root
	}
}

// WithACL sets the ACL for nodes the Store creates. Default: world, all
// permissions.
func WithACL(acl []zk.ACL) Option {
	return func(s *Store) {
		s.acl = acl
	}
}

// New creates a Store over conn.
func New(conn *zk.Conn, opts ...Option) *Store {
	s := &Store{
		conn:      conn,
		root:      DefaultRoot,
		acl:       zk.WorldACL(zk.PermAll),
		retryWait: time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) path(key string) string {
	return path.Join(s.root, key)
}

// Get returns the data of the node for key.
func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	data, _, err := s.conn.Get(s.path(key))
	if errors.Is(err, zk.ErrNoNode) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(data), true, nil
}

// Set writes value to the node for key, creating it and its parents as needed.
func (s *Store) Set(_ context.Context, key, value string) error {
	p := s.path(key)
	for {
		_, err := s.conn.Set(p, []byte(value), -1)
		if !errors.Is(err, zk.ErrNoNode) {
			return err
		}
		if err := s.ensureParents(p); err != nil {
			return err
		}
		_, err = s.conn.Create(p, []byte(value), 0, s.acl)
		if !errors.Is(err, zk.ErrNodeExists) {
			return err
		}
		// Created concurrently, overwrite it.
	}
}

// Delete removes the node for key.
func (s *Store) Delete(_ context.Context, key string) error {
	err := s.conn.Delete(s.path(key), -1)
	if errors.Is(err, zk.ErrNoNode) {
		return nil
	}
	return err
}

// Synchronize flushes the leader channel so reads from this session observe
// every write committed before the call.
func (s *Store) Synchronize(_ context.Context) error {
	_, err := s.conn.Sync(s.root)
	return err
}

func (s *Store) ensureParents(p string) error {
	dir := path.Dir(p)
	if dir == "/" || dir == "." {
		return nil
	}
	var current string
	for _, part := range strings.Split(strings.Trim(dir, "/"), "/") {
		current += "/" + part
		_, err := s.conn.Create(current, nil, 0, s.acl)
		if err != nil && !errors.Is(err, zk.ErrNodeExists) {
			return err
		}
	}
	return nil
}

// Watch returns a channel notified whenever the node for key is created,
// changed or deleted after the call.
func (s *Store) Watch(ctx context.Context, key string) (<-chan struct{}, error) {
	p := s.path(key)

	// Set the first watch synchronously so no change after Watch is lost
	_, _, eventCh, err := s.conn.ExistsW(p)
	if err != nil {
		return nil, err
	}

	out := make(chan struct{}, 1)

	go func() {
		defer close(out)

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				switch event.Type {
				case zk.EventNodeCreated, zk.EventNodeDataChanged, zk.EventNodeDeleted:
					anchor.Notify(out)
				case zk.EventNotWatching:
					// Session lost; the value may have changed meanwhile
					anchor.Notify(out)
				}
			}

			// Re-arm the watch
			for {
				_, _, eventCh, err = s.conn.ExistsW(p)
				if err == nil {
					break
				}
				select {
				case <-time.After(s.retryWait):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

var _ anchor.RemoteStore = (*Store)(nil)
