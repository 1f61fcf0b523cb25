// Package testing provides test utilities and helpers for anchor identities.
package testing

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zoobzio/anchor"
)

// Change is one delegate callback observed by a RecordingDelegate.
type Change struct {
	Current   string
	Candidate string
}

// RecordingDelegate records every callback. If Override is set, its result is
// returned from WillChangeID.
type RecordingDelegate struct {
	Override func(current, candidate string) (string, bool)

	mu      sync.Mutex
	pending []Change
	changed []string
}

// WillChangeID implements anchor.Delegate.
func (d *RecordingDelegate) WillChangeID(_ context.Context, current, candidate string) (string, bool) {
	d.mu.Lock()
	d.pending = append(d.pending, Change{Current: current, Candidate: candidate})
	d.mu.Unlock()
	if d.Override != nil {
		return d.Override(current, candidate)
	}
	return "", false
}

// DidChangeID implements anchor.Delegate.
func (d *RecordingDelegate) DidChangeID(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.changed = append(d.changed, id)
}

// WillChanges returns the WillChangeID calls in order.
func (d *RecordingDelegate) WillChanges() []Change {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Change(nil), d.pending...)
}

// DidChanges returns the identifiers passed to DidChangeID in order.
func (d *RecordingDelegate) DidChanges() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.changed...)
}

// CountingStore wraps a RemoteStore and counts reads and writes.
type CountingStore struct {
	anchor.RemoteStore
	gets atomic.Int32
	sets atomic.Int32
}

// NewCountingStore wraps store.
func NewCountingStore(store anchor.RemoteStore) *CountingStore {
	return &CountingStore{RemoteStore: store}
}

// Get counts and delegates.
func (s *CountingStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.gets.Add(1)
	return s.RemoteStore.Get(ctx, key)
}

// Set counts and delegates.
func (s *CountingStore) Set(ctx context.Context, key, value string) error {
	s.sets.Add(1)
	return s.RemoteStore.Set(ctx, key, value)
}

// Gets returns the number of Get calls.
func (s *CountingStore) Gets() int { return int(s.gets.Load()) }

// Sets returns the number of Set calls.
func (s *CountingStore) Sets() int { return int(s.sets.Load()) }

// FailingStore is a RemoteStore whose operations fail with the configured
// errors. A nil error makes the operation behave like an empty store.
type FailingStore struct {
	GetErr   error
	SetErr   error
	SyncErr  error
	WatchErr error
}

// Get returns GetErr.
func (s *FailingStore) Get(_ context.Context, _ string) (string, bool, error) {
	return "", false, s.GetErr
}

// Set returns SetErr.
func (s *FailingStore) Set(_ context.Context, _, _ string) error {
	return s.SetErr
}

// Synchronize returns SyncErr.
func (s *FailingStore) Synchronize(_ context.Context) error {
	return s.SyncErr
}

// Watch returns WatchErr, or a channel closed with ctx.
func (s *FailingStore) Watch(ctx context.Context, _ string) (<-chan struct{}, error) {
	if s.WatchErr != nil {
		return nil, s.WatchErr
	}
	ch := make(chan struct{})
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

// SlowStore delays every Set and Synchronize of the wrapped store by Delay,
// returning early if the context ends first.
type SlowStore struct {
	anchor.RemoteStore
	Delay time.Duration
}

// Set waits, then delegates.
func (s *SlowStore) Set(ctx context.Context, key, value string) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	return s.RemoteStore.Set(ctx, key, value)
}

// Synchronize waits, then delegates.
func (s *SlowStore) Synchronize(ctx context.Context) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	return s.RemoteStore.Synchronize(ctx)
}

func (s *SlowStore) wait(ctx context.Context) error {
	select {
	case <-time.After(s.Delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitFor polls a condition until it returns true or timeout is reached.
// Returns true if the condition was met, false if timeout occurred.
func WaitFor(t *testing.T, timeout time.Duration, condition func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

// RequireID fails the test immediately if the identity is not configured
// with the expected identifier.
func RequireID(t *testing.T, i *anchor.Identity, expected string) {
	t.Helper()
	got, err := i.ID()
	if err != nil {
		t.Fatalf("ID() error = %v", err)
	}
	if got != expected {
		t.Fatalf("expected id %q, got %q", expected, got)
	}
}

// RequireStored fails the test if store does not hold expected under key.
func RequireStored(t *testing.T, store anchor.Store, key, expected string) {
	t.Helper()
	got, ok, err := store.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get(%q) error = %v", key, err)
	}
	if !ok {
		t.Fatalf("expected %q stored under %q, got nothing", expected, key)
	}
	if got != expected {
		t.Fatalf("expected %q stored under %q, got %q", expected, key, got)
	}
}

// NewTestIdentity creates an identity over two memory stores in sync mode.
// Remote notifications are handled by calling Process.
func NewTestIdentity(t *testing.T, opts ...anchor.Option) (identity *anchor.Identity, local, remote *anchor.MemoryStore) {
	t.Helper()
	local = anchor.NewMemoryStore()
	remote = anchor.NewMemoryStore()
	identity = anchor.New(local, remote, opts...).SyncMode()
	t.Cleanup(identity.Reset)
	return identity, local, remote
}

// Sequence returns a generator yielding ids in order, then repeating the last.
func Sequence(ids ...string) anchor.Generator {
	var n atomic.Int32
	return anchor.GeneratorFunc(func() string {
		i := int(n.Add(1)) - 1
		if i >= len(ids) {
			i = len(ids) - 1
		}
		return ids[i]
	})
}
