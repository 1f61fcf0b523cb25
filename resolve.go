package anchor

import "context"

// resolve picks the initial identifier. The generator is always consulted,
// even when its value ends up unused.
func (i *Identity) resolve(ctx context.Context, cfg Config, gen Generator) (string, Resolution) {
	generated := gen.GenerateID()

	if cfg.ID != "" {
		if cfg.Policy == PreferStored {
			if stored, resolution, ok := i.fetchStored(ctx); ok {
				return stored, resolution
			}
		}
		return cfg.ID, ResolvedExplicit
	}

	if stored, resolution, ok := i.fetchStored(ctx); ok {
		return stored, resolution
	}
	return generated, ResolvedGenerated
}

// fetchStoredID returns the stored identifier, remote first.
func (i *Identity) fetchStoredID(ctx context.Context) (string, bool) {
	id, _, ok := i.fetchStored(ctx)
	return id, ok
}

// fetchStored reads the remote store, then the local store. Missing stores,
// empty values and read errors all count as not found.
func (i *Identity) fetchStored(ctx context.Context) (string, Resolution, bool) {
	if id, ok := i.read(ctx, i.remote, StageRemoteRead); ok {
		return id, ResolvedRemote, true
	}
	if id, ok := i.read(ctx, i.local, StageLocalRead); ok {
		return id, ResolvedLocal, true
	}
	return "", 0, false
}

func (i *Identity) read(ctx context.Context, store Store, stage Stage) (string, bool) {
	if store == nil {
		return "", false
	}
	start := i.clock.Now()
	id, ok, err := store.Get(ctx, i.key)
	if err != nil {
		i.fail(ctx, stage, err, start)
		return "", false
	}
	if !ok || id == "" {
		return "", false
	}
	return id, true
}
