package anchor

import (
	"context"
	"errors"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/pipz"
)

// setIdentity is the single path by which the active identifier changes.
// Callers must hold i.mu.
func (i *Identity) setIdentity(ctx context.Context, candidate string, origin Origin) {
	start := i.clock.Now()
	previous := *i.current.Load()

	if candidate == previous {
		capitan.Emit(ctx, IdentityChangeSkipped,
			KeyID.Field(previous),
			KeyOrigin.Field(origin.String()),
			KeyStoreKey.Field(i.key),
		)
		if i.metrics != nil {
			i.metrics.OnChangeSkipped(origin)
		}
		return
	}

	// One delegate for the whole change, even if SetDelegate races with it.
	var delegate Delegate
	if ref := i.delegate.Load(); ref != nil {
		delegate = ref.Delegate
	}

	adjusted := candidate
	if delegate != nil {
		if v, ok := delegate.WillChangeID(ctx, previous, candidate); ok && v != "" {
			adjusted = v
		}
	}

	i.current.Store(&adjusted)
	if origin == OriginRemote && adjusted == candidate {
		// The remote store already holds the value.
		i.persistLocal(ctx, adjusted)
	} else {
		i.persist(ctx, adjusted, origin)
	}

	capitan.Emit(ctx, IdentityChanged,
		KeyID.Field(adjusted),
		KeyPreviousID.Field(previous),
		KeyCandidate.Field(candidate),
		KeyOrigin.Field(origin.String()),
		KeyStoreKey.Field(i.key),
	)

	if delegate != nil {
		delegate.DidChangeID(ctx, adjusted)
	}
	if i.metrics != nil {
		i.metrics.OnChange(origin, i.clock.Since(start))
	}
}

// persist writes id to the local store, then through the remote pipeline.
// Failures are absorbed. LastError is cleared when both writes succeed.
func (i *Identity) persist(ctx context.Context, id string, origin Origin) {
	ok := true

	if i.local != nil {
		start := i.clock.Now()
		if err := i.local.Set(ctx, i.key, id); err != nil {
			i.fail(ctx, StageLocalWrite, err, start)
			ok = false
		}
	}

	if i.pipeline != nil {
		start := i.clock.Now()
		if _, err := i.pipeline.Process(ctx, &Write{Key: i.key, Value: id, Origin: origin}); err != nil {
			i.fail(ctx, StageRemoteWrite, pipelineCause(err), start)
			ok = false
		}
	}

	if ok {
		i.lastError.Store(nil)
	}
}

// persistLocal writes id to the local store only. LastError is cleared on
// success.
func (i *Identity) persistLocal(ctx context.Context, id string) {
	if i.local != nil {
		start := i.clock.Now()
		if err := i.local.Set(ctx, i.key, id); err != nil {
			i.fail(ctx, StageLocalWrite, err, start)
			return
		}
	}
	i.lastError.Store(nil)
}

// fail records an absorbed store failure.
func (i *Identity) fail(ctx context.Context, stage Stage, err error, start time.Time) {
	f := Failure{Stage: stage, Err: err, At: i.clock.Now()}
	var e error = f
	i.lastError.Store(&e)
	i.failures.push(f)

	capitan.Emit(ctx, PersistFailed,
		KeyStage.Field(string(stage)),
		KeyStoreKey.Field(i.key),
		KeyError.Field(err.Error()),
	)
	if i.metrics != nil {
		i.metrics.OnPersistFailure(stage, i.clock.Since(start))
	}
}

// pipelineCause strips the pipeline error wrapper so failures carry the
// store's own error.
func pipelineCause(err error) error {
	for {
		var perr *pipz.Error[*Write]
		if !errors.As(err, &perr) || perr.Err == nil {
			return err
		}
		err = perr.Err
	}
}
