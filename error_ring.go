package anchor

import (
	"fmt"
	"sync"
	"time"
)

// Stage names the store operation an absorbed failure came from.
type Stage string

const (
	StageLocalRead   Stage = "local-read"
	StageRemoteRead  Stage = "remote-read"
	StageLocalWrite  Stage = "local-write"
	StageRemoteWrite Stage = "remote-write"
	StageWatch       Stage = "watch"
)

// Failure is a store error the Identity absorbed instead of returning.
type Failure struct {
	Stage Stage
	Err   error
	At    time.Time
}

// Error implements error.
func (f Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Stage, f.Err)
}

// Unwrap returns the underlying store error.
func (f Failure) Unwrap() error {
	return f.Err
}

// failureRing is a thread-safe ring buffer of recent failures.
// A nil ring discards everything.
type failureRing struct {
	mu       sync.RWMutex
	failures []Failure
	head     int
	count    int
}

// newFailureRing returns nil when size is not positive.
func newFailureRing(size int) *failureRing {
	if size <= 0 {
		return nil
	}
	return &failureRing{failures: make([]Failure, size)}
}

func (r *failureRing) push(f Failure) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.failures[r.head] = f
	r.head = (r.head + 1) % len(r.failures)
	if r.count < len(r.failures) {
		r.count++
	}
}

// all returns the retained failures, oldest first.
func (r *failureRing) all() []Failure {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.count == 0 {
		return nil
	}
	size := len(r.failures)
	out := make([]Failure, r.count)
	start := (r.head - r.count + size) % size
	for i := range out {
		out[i] = r.failures[(start+i)%size]
	}
	return out
}
