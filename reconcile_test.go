package anchor_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zoobzio/anchor"
	anchortest "github.com/zoobzio/anchor/testing"
	"github.com/zoobzio/clockz"
)

func configured(t *testing.T, id string) (*anchor.Identity, *anchor.MemoryStore, *anchor.MemoryStore) {
	t.Helper()
	identity, local, remote := anchortest.NewTestIdentity(t)
	if err := identity.Configure(context.Background(), anchor.Config{ID: id}); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	return identity, local, remote
}

func TestReconcile_RemoteChangeAccepted(t *testing.T) {
	ctx := context.Background()
	identity, local, remote := configured(t, "mine")
	delegate := &anchortest.RecordingDelegate{}
	identity.SetDelegate(delegate)

	_ = remote.Set(ctx, anchor.DefaultKey, "theirs")

	if !identity.Process(ctx) {
		t.Fatal("expected a pending notification")
	}

	anchortest.RequireID(t, identity, "theirs")
	anchortest.RequireStored(t, local, anchor.DefaultKey, "theirs")
	anchortest.RequireStored(t, remote, anchor.DefaultKey, "theirs")

	will := delegate.WillChanges()
	if len(will) != 1 || will[0] != (anchortest.Change{Current: "mine", Candidate: "theirs"}) {
		t.Errorf("unexpected WillChangeID calls: %+v", will)
	}
	if did := delegate.DidChanges(); len(did) != 1 || did[0] != "theirs" {
		t.Errorf("unexpected DidChangeID calls: %v", did)
	}
}

func TestReconcile_RemoteChangeWithDelegateOverride(t *testing.T) {
	ctx := context.Background()
	identity, local, remote := configured(t, "mine")
	identity.SetDelegate(&anchortest.RecordingDelegate{
		Override: func(_, candidate string) (string, bool) {
			return "adjusted-" + candidate, true
		},
	})

	_ = remote.Set(ctx, anchor.DefaultKey, "theirs")
	identity.Process(ctx)

	anchortest.RequireID(t, identity, "adjusted-theirs")
	anchortest.RequireStored(t, local, anchor.DefaultKey, "adjusted-theirs")
	anchortest.RequireStored(t, remote, anchor.DefaultKey, "adjusted-theirs")
}

func TestReconcile_AcceptedRemoteValueIsNotWrittenBack(t *testing.T) {
	ctx := context.Background()
	local := anchor.NewMemoryStore()
	remote := anchortest.NewCountingStore(anchor.NewMemoryStore())
	identity := anchor.New(local, remote).SyncMode()
	defer identity.Reset()

	if err := identity.Configure(ctx, anchor.Config{ID: "mine"}); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	_ = remote.Set(ctx, anchor.DefaultKey, "theirs")
	sets := remote.Sets()

	if !identity.Process(ctx) {
		t.Fatal("expected a pending notification")
	}

	anchortest.RequireID(t, identity, "theirs")
	anchortest.RequireStored(t, local, anchor.DefaultKey, "theirs")
	if remote.Sets() != sets {
		t.Errorf("expected no remote write, got %d", remote.Sets()-sets)
	}
	if identity.Process(ctx) {
		t.Error("expected no echo to follow")
	}
}

func TestReconcile_AdjustedRemoteValueIsWrittenBack(t *testing.T) {
	ctx := context.Background()
	remote := anchortest.NewCountingStore(anchor.NewMemoryStore())
	identity := anchor.New(anchor.NewMemoryStore(), remote).SyncMode()
	defer identity.Reset()

	if err := identity.Configure(ctx, anchor.Config{ID: "mine"}); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	identity.SetDelegate(&anchortest.RecordingDelegate{
		Override: func(_, candidate string) (string, bool) {
			return "adjusted-" + candidate, true
		},
	})
	_ = remote.Set(ctx, anchor.DefaultKey, "theirs")
	sets := remote.Sets()

	identity.Process(ctx)

	if remote.Sets() != sets+1 {
		t.Errorf("expected one remote write, got %d", remote.Sets()-sets)
	}
	anchortest.RequireStored(t, remote, anchor.DefaultKey, "adjusted-theirs")
}

func TestReconcile_EchoIsNoOp(t *testing.T) {
	ctx := context.Background()
	local := anchortest.NewCountingStore(anchor.NewMemoryStore())
	remote := anchor.NewMemoryStore()
	identity := anchor.New(local, remote).SyncMode()
	defer identity.Reset()

	if err := identity.Configure(ctx, anchor.Config{ID: "a"}); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	if err := identity.Identify(ctx, "b"); err != nil {
		t.Fatalf("Identify() error = %v", err)
	}
	delegate := &anchortest.RecordingDelegate{}
	identity.SetDelegate(delegate)
	sets := local.Sets()

	// The remote write of Identify notified the watcher.
	if !identity.Process(ctx) {
		t.Fatal("expected the echo notification")
	}

	anchortest.RequireID(t, identity, "b")
	if local.Sets() != sets {
		t.Errorf("expected no writes for an echo, got %d", local.Sets()-sets)
	}
	if len(delegate.WillChanges()) != 0 {
		t.Error("expected no delegate callbacks for an echo")
	}
}

func TestReconcile_RemoteDeletionRollback(t *testing.T) {
	ctx := context.Background()
	identity, local, remote := configured(t, "C")
	delegate := &anchortest.RecordingDelegate{}
	identity.SetDelegate(delegate)

	_ = remote.Delete(ctx, anchor.DefaultKey)
	_ = local.Delete(ctx, anchor.DefaultKey)

	if !identity.Process(ctx) {
		t.Fatal("expected a pending notification")
	}

	anchortest.RequireID(t, identity, "C")
	anchortest.RequireStored(t, remote, anchor.DefaultKey, "C")
	anchortest.RequireStored(t, local, anchor.DefaultKey, "C")
	if len(delegate.WillChanges()) != 0 || len(delegate.DidChanges()) != 0 {
		t.Error("expected republish to skip the delegate")
	}
}

func TestReconcile_EmptyRemoteValueTreatedAsCleared(t *testing.T) {
	ctx := context.Background()
	identity, _, remote := configured(t, "C")

	_ = remote.Set(ctx, anchor.DefaultKey, "")
	identity.Process(ctx)

	anchortest.RequireID(t, identity, "C")
	anchortest.RequireStored(t, remote, anchor.DefaultKey, "C")
}

func TestReconcile_ReadFailureChangesNothing(t *testing.T) {
	ctx := context.Background()
	ch := make(chan struct{}, 1)
	remote := &notifyingStore{FailingStore: anchortest.FailingStore{}, ch: ch}
	local := anchor.NewMemoryStore()
	identity := anchor.New(local, remote).SyncMode()
	defer identity.Reset()

	if err := identity.Configure(ctx, anchor.Config{ID: "a"}); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}

	remote.GetErr = errors.New("unreachable")
	ch <- struct{}{}
	if !identity.Process(ctx) {
		t.Fatal("expected a pending notification")
	}

	anchortest.RequireID(t, identity, "a")
	var f anchor.Failure
	if !errors.As(identity.LastError(), &f) || f.Stage != anchor.StageRemoteRead {
		t.Errorf("expected remote read failure, got %v", identity.LastError())
	}
}

func TestReconcile_IgnoredAfterReset(t *testing.T) {
	ctx := context.Background()
	local := anchor.NewMemoryStore()
	remote := anchor.NewMemoryStore()
	identity := anchor.New(local, remote).SyncMode()

	if err := identity.Configure(ctx, anchor.Config{ID: "a"}); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	identity.Reset()

	_ = remote.Set(ctx, anchor.DefaultKey, "b")
	if identity.Process(ctx) {
		t.Error("expected no processing after reset")
	}
	anchortest.RequireStored(t, local, anchor.DefaultKey, "a")
}

func TestReconcile_ProcessOutsideSyncMode(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	identity := anchor.New(anchor.NewMemoryStore(), anchor.NewMemoryStore())
	defer identity.Reset()

	if err := identity.Configure(ctx, anchor.Config{ID: "a"}); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	if identity.Process(ctx) {
		t.Error("expected Process to return false when not in sync mode")
	}
}

func TestReconcile_AsyncWatchAcceptsRemoteChange(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	local := anchor.NewMemoryStore()
	remote := anchor.NewMemoryStore()
	identity := anchor.New(local, remote).Debounce(0)
	defer identity.Reset()

	if err := identity.Configure(ctx, anchor.Config{ID: "a"}); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}

	_ = remote.Set(ctx, anchor.DefaultKey, "b")

	if !anchortest.WaitFor(t, time.Second, func() bool {
		id, _ := identity.ID()
		return id == "b"
	}) {
		t.Fatal("expected remote change to be applied")
	}
	anchortest.RequireStored(t, local, anchor.DefaultKey, "b")
}

func TestReconcile_Debounce_CoalescesRapidChanges(t *testing.T) {
	clock := clockz.NewFakeClock()
	ch := make(chan struct{}, 10)
	remote := &notifyingStore{ch: ch}
	remote.value.Store(ptr("a"))

	var changes atomic.Int32
	identity := anchor.New(anchor.NewMemoryStore(), remote).
		Debounce(100 * time.Millisecond).
		Clock(clock)
	defer identity.Reset()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := identity.Configure(ctx, anchor.Config{}); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	anchortest.RequireID(t, identity, "a")
	identity.SetDelegate(anchor.DelegateFuncs{
		DidChange: func(_ context.Context, _ string) {
			changes.Add(1)
		},
	})

	// Send rapid changes
	for _, v := range []string{"b", "c", "d"} {
		remote.value.Store(ptr(v))
		ch <- struct{}{}
	}

	// Allow goroutine to receive changes
	time.Sleep(10 * time.Millisecond)

	// Nothing applied yet - debounce timer hasn't fired
	if changes.Load() != 0 {
		t.Errorf("expected no change while debouncing, got %d", changes.Load())
	}

	// Advance clock past debounce duration
	clock.Advance(150 * time.Millisecond)
	clock.BlockUntilReady()

	if !anchortest.WaitFor(t, time.Second, func() bool { return changes.Load() == 1 }) {
		t.Fatalf("expected 1 change after debounce, got %d", changes.Load())
	}
	anchortest.RequireID(t, identity, "d")
}

func TestReconcile_OnStopCalledWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var stopped atomic.Bool
	identity := anchor.New(anchor.NewMemoryStore(), anchor.NewMemoryStore()).
		OnStop(func() { stopped.Store(true) })
	defer identity.Reset()

	if err := identity.Configure(ctx, anchor.Config{ID: "a"}); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	cancel()

	if !anchortest.WaitFor(t, time.Second, stopped.Load) {
		t.Fatal("expected OnStop to be called")
	}
}

func TestReconcile_ResetStopsWatch(t *testing.T) {
	var stopped atomic.Bool
	identity := anchor.New(anchor.NewMemoryStore(), anchor.NewMemoryStore()).
		OnStop(func() { stopped.Store(true) })

	if err := identity.Configure(context.Background(), anchor.Config{ID: "a"}); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	identity.Reset()

	if !stopped.Load() {
		t.Error("expected Reset to wait for the watch loop")
	}
}

// notifyingStore is a remote store whose value and notifications are driven
// by the test.
type notifyingStore struct {
	anchortest.FailingStore
	ch    chan struct{}
	value atomic.Pointer[string]
}

func (s *notifyingStore) Get(ctx context.Context, key string) (string, bool, error) {
	if s.GetErr != nil {
		return "", false, s.GetErr
	}
	if v := s.value.Load(); v != nil {
		return *v, true, nil
	}
	return "", false, nil
}

func (s *notifyingStore) Set(_ context.Context, _, value string) error {
	s.value.Store(&value)
	return nil
}

func (s *notifyingStore) Watch(_ context.Context, _ string) (<-chan struct{}, error) {
	return s.ch, nil
}

func ptr(s string) *string { return &s }
