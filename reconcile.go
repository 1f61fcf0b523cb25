package anchor

import (
	"context"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
)

// startWatch subscribes to the remote store. Callers must hold i.mu.
// A failed subscription is absorbed; the Identity stays configured.
func (i *Identity) startWatch(ctx context.Context) {
	if i.remote == nil {
		return
	}

	watchCtx, cancel := context.WithCancel(ctx)
	start := i.clock.Now()
	changes, err := i.remote.Watch(watchCtx, i.key)
	if err != nil {
		cancel()
		i.fail(ctx, StageWatch, err, start)
		capitan.Emit(ctx, WatchFailed,
			KeyStoreKey.Field(i.key),
			KeyError.Field(err.Error()),
		)
		return
	}

	capitan.Emit(ctx, WatchStarted,
		KeyStoreKey.Field(i.key),
		KeyDebounce.Field(i.debounce),
	)

	i.cancel = cancel
	if i.syncMode {
		// In sync mode, store channel for manual processing
		i.changes = changes
		return
	}

	done := make(chan struct{})
	i.done = done
	go i.watch(watchCtx, changes, done)
}

// Process handles the next pending remote notification.
// This is only available in sync mode and is used for deterministic testing.
// Returns false if no notification is pending or the channel is closed.
func (i *Identity) Process(ctx context.Context) bool {
	if !i.syncMode {
		return false
	}

	i.mu.Lock()
	changes := i.changes
	i.mu.Unlock()
	if changes == nil {
		return false
	}

	select {
	case _, ok := <-changes:
		if !ok {
			return false
		}
		i.received(ctx)
		i.reconcile(ctx)
		return true
	default:
		return false
	}
}

func (i *Identity) received(ctx context.Context) {
	capitan.Emit(ctx, RemoteChangeReceived,
		KeyStoreKey.Field(i.key),
	)
	if i.metrics != nil {
		i.metrics.OnChangeReceived()
	}
}

// watch reconciles remote notifications with debouncing until ctx is canceled
// or the notification channel closes.
func (i *Identity) watch(ctx context.Context, changes <-chan struct{}, done chan struct{}) {
	defer func() {
		capitan.Emit(context.Background(), WatchStopped,
			KeyStoreKey.Field(i.key),
		)
		if i.onStop != nil {
			i.onStop()
		}
		close(done)
	}()

	var (
		timer   clockz.Timer
		pending bool
	)

	for {
		// Get timer channel or nil if no timer
		var timerC <-chan time.Time
		if timer != nil {
			timerC = timer.C()
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case _, ok := <-changes:
			if !ok {
				// Channel closed, reconcile any pending notification
				if pending {
					i.reconcile(ctx)
				}
				return
			}

			i.received(ctx)
			if i.debounce <= 0 {
				i.reconcile(ctx)
				continue
			}
			pending = true

			// Reset or start debounce timer
			if timer == nil {
				timer = i.clock.NewTimer(i.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C():
					default:
					}
				}
				timer.Reset(i.debounce)
			}

		case <-timerC:
			if pending {
				i.reconcile(ctx)
				pending = false
			}
		}
	}
}

// reconcile reads the remote value back and brings the Identity in line.
func (i *Identity) reconcile(ctx context.Context) {
	i.mu.Lock()
	defer i.mu.Unlock()

	// Reset may have run while the notification was pending.
	if !i.configured.Load() {
		return
	}

	start := i.clock.Now()
	value, found, err := i.remote.Get(ctx, i.key)
	if err != nil {
		i.fail(ctx, StageRemoteRead, err, start)
		capitan.Emit(ctx, ReconcileFailed,
			KeyStoreKey.Field(i.key),
			KeyError.Field(err.Error()),
		)
		return
	}

	current := *i.current.Load()
	switch {
	case !found || value == "":
		i.republish(ctx, current)
	case value == current:
		capitan.Emit(ctx, RemoteEchoIgnored,
			KeyID.Field(current),
			KeyStoreKey.Field(i.key),
		)
	default:
		i.setIdentity(ctx, value, OriginRemote)
	}
}

// republish writes the active identifier back after the remote value was
// cleared externally. The identifier does not change, so the delegate is
// not consulted. Callers must hold i.mu.
func (i *Identity) republish(ctx context.Context, id string) {
	i.persist(ctx, id, OriginRemote)
	capitan.Emit(ctx, IdentityRepublished,
		KeyID.Field(id),
		KeyStoreKey.Field(i.key),
	)
}
