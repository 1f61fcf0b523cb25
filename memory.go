package anchor

import (
	"context"
	"sync"
)

// MemoryStore is an in-process RemoteStore. Every Set and Delete notifies the
// watchers of the key, including writes made by the Identity itself, which
// makes it a faithful stand-in for a synchronized store in tests.
type MemoryStore struct {
	mu       sync.Mutex
	values   map[string]string
	watchers map[string][]chan struct{}
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values:   make(map[string]string),
		watchers: make(map[string][]chan struct{}),
	}
}

// Get returns the value stored under key.
func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok, nil
}

// Set stores value under key and notifies watchers.
func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	s.notify(key)
	return nil
}

// Delete removes key and notifies watchers.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	s.notify(key)
	return nil
}

// Synchronize is a no-op; writes are visible immediately.
func (*MemoryStore) Synchronize(_ context.Context) error {
	return nil
}

// Watch returns a channel notified on every write or delete of key.
func (s *MemoryStore) Watch(ctx context.Context, key string) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)

	s.mu.Lock()
	s.watchers[key] = append(s.watchers[key], ch)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		watchers := s.watchers[key]
		for i, w := range watchers {
			if w == ch {
				s.watchers[key] = append(watchers[:i], watchers[i+1:]...)
				break
			}
		}
		close(ch)
	}()

	return ch, nil
}

// notify must be called with s.mu held.
func (s *MemoryStore) notify(key string) {
	for _, ch := range s.watchers[key] {
		Notify(ch)
	}
}

var _ RemoteStore = (*MemoryStore)(nil)
