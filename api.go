package anchor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/pipz"
)

// DefaultDebounce is the default debounce duration for remote change notifications.
const DefaultDebounce = 100 * time.Millisecond

// Config selects the initial identifier when an Identity is configured.
type Config struct {
	// ID is an explicit identifier. Empty means none was supplied.
	ID string

	// Generator mints identifiers. Nil selects UUIDGenerator.
	Generator Generator

	// Policy decides between ID and a stored identifier. The zero value is ForceUpdate.
	Policy Policy
}

// Identity owns one stable identifier, persists it to a local and a remote
// store, and reconciles changes the remote store reports.
//
// All mutations (Configure, Identify, GenerateNewID, remote reconciliation
// and Reset) are serialized. ID never blocks.
type Identity struct {
	local    Store
	remote   RemoteStore
	pipeline pipz.Chainable[*Write]
	key      string
	debounce time.Duration
	syncMode bool
	clock    clockz.Clock
	metrics  MetricsProvider
	onStop   func()
	failures *failureRing

	current    atomic.Pointer[string]
	delegate   atomic.Pointer[delegateRef]
	lastError  atomic.Pointer[error]
	configured atomic.Bool

	// mu serializes every read-modify-persist-notify sequence.
	mu        sync.Mutex
	generator Generator
	cancel    context.CancelFunc
	done      chan struct{}

	// For sync mode: channel to receive remote notifications
	changes <-chan struct{}
}

// New creates an Identity over a local and a remote store.
//
// Either store may be nil. A nil local store models a platform that denies
// local storage; a nil remote store disables synchronization. Reads from a
// missing store report "not found" and writes to it are skipped.
//
// Options configure the remote write pipeline. Instance configuration uses
// chainable methods before calling Configure.
//
// Example:
//
//	identity := anchor.New(
//	    file.New(dir),
//	    redis.New(client),
//	    anchor.WithCircuitBreaker(5, time.Minute),
//	).Key("myapp.device-id")
func New(local Store, remote RemoteStore, opts ...Option) *Identity {
	i := &Identity{
		local:    local,
		remote:   remote,
		key:      DefaultKey,
		debounce: DefaultDebounce,
		clock:    clockz.RealClock,
		failures: newFailureRing(0),
	}
	if remote != nil {
		i.pipeline = buildRemotePipeline(remote, opts)
	}
	return i
}

// -----------------------------------------------------------------------------
// Chainable Instance Configuration
// -----------------------------------------------------------------------------

// Key sets the storage key the identifier is persisted under.
// Default: DefaultKey. Must be called before Configure().
func (i *Identity) Key(key string) *Identity {
	i.key = key
	return i
}

// Debounce sets the debounce duration for remote change notifications.
// Notifications arriving within this duration are coalesced into a single
// reconciliation. Default: 100ms. Must be called before Configure().
func (i *Identity) Debounce(d time.Duration) *Identity {
	i.debounce = d
	return i
}

// SyncMode disables the background watch goroutine for testing.
// Remote notifications are then handled one at a time by Process().
// Must be called before Configure().
func (i *Identity) SyncMode() *Identity {
	i.syncMode = true
	return i
}

// Clock sets a custom clock for time operations.
// Use this with clockz.FakeClock for deterministic debounce testing.
// Must be called before Configure().
func (i *Identity) Clock(clock clockz.Clock) *Identity {
	i.clock = clock
	return i
}

// Metrics sets a metrics provider for observability integration.
// Must be called before Configure().
func (i *Identity) Metrics(provider MetricsProvider) *Identity {
	i.metrics = provider
	return i
}

// OnStop sets a callback invoked when the remote watch loop exits.
// Must be called before Configure().
func (i *Identity) OnStop(fn func()) *Identity {
	i.onStop = fn
	return i
}

// FailureHistorySize sets the number of absorbed failures to retain.
// Use 0 (default) to only retain the most recent error via LastError().
// Must be called before Configure().
func (i *Identity) FailureHistorySize(n int) *Identity {
	i.failures = newFailureRing(n)
	return i
}

// -----------------------------------------------------------------------------
// Accessors
// -----------------------------------------------------------------------------

// IsConfigured reports whether Configure has succeeded since creation or the
// last Reset.
func (i *Identity) IsConfigured() bool {
	return i.configured.Load()
}

// ID returns the active identifier from memory. It never blocks and never
// performs I/O. It returns ErrNotConfigured before Configure succeeds.
func (i *Identity) ID() (string, error) {
	ptr := i.current.Load()
	if ptr == nil {
		return "", ErrNotConfigured
	}
	return *ptr, nil
}

// MustID is like ID but panics before Configure succeeds.
func (i *Identity) MustID() string {
	id, err := i.ID()
	if err != nil {
		panic(err)
	}
	return id
}

// SetDelegate registers d, replacing any previous delegate. A nil d removes
// the delegate. It may be called at any time; a change already in progress
// keeps the delegate it started with.
func (i *Identity) SetDelegate(d Delegate) {
	if d == nil {
		i.delegate.Store(nil)
		return
	}
	i.delegate.Store(&delegateRef{d})
}

// HasStoredID reports whether either store holds a value for the identifier
// key, independent of the in-memory state.
func (i *Identity) HasStoredID(ctx context.Context) bool {
	_, ok := i.fetchStoredID(ctx)
	return ok
}

// LastError returns the last absorbed store failure, or nil. It is cleared
// when a later change persists to both stores.
func (i *Identity) LastError() error {
	ptr := i.lastError.Load()
	if ptr == nil {
		return nil
	}
	return *ptr
}

// Failures returns the recent absorbed failures, oldest first.
// Returns nil if failure history is not enabled (see FailureHistorySize).
func (i *Identity) Failures() []Failure {
	return i.failures.all()
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Configure resolves the initial identifier, persists it to both stores and
// starts watching the remote store. The watch lives as long as ctx or until
// Reset.
//
// A configured Identity rejects further calls with ErrAlreadyConfigured and
// keeps its state. Store failures are absorbed; only a resolution that would
// leave the identifier empty fails, with ErrEmptyID.
func (i *Identity) Configure(ctx context.Context, cfg Config) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.configured.Load() {
		capitan.Emit(ctx, IdentityConfigureRejected,
			KeyStoreKey.Field(i.key),
		)
		return ErrAlreadyConfigured
	}

	gen := cfg.Generator
	if gen == nil {
		gen = UUIDGenerator{}
	}

	id, resolution := i.resolve(ctx, cfg, gen)
	if id == "" {
		return ErrEmptyID
	}

	i.generator = gen
	i.current.Store(&id)
	i.persist(ctx, id, OriginIdentify)
	i.configured.Store(true)

	capitan.Emit(ctx, IdentityConfigured,
		KeyID.Field(id),
		KeyResolution.Field(resolution.String()),
		KeyPolicy.Field(cfg.Policy.String()),
		KeyStoreKey.Field(i.key),
	)
	if i.metrics != nil {
		i.metrics.OnConfigured(resolution)
	}

	i.startWatch(ctx)
	return nil
}

// Identify makes id the active identifier through the mutation path.
// An id equal to the active identifier is a no-op.
func (i *Identity) Identify(ctx context.Context, id string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !i.configured.Load() {
		return ErrNotConfigured
	}
	if id == "" {
		return ErrEmptyID
	}
	i.setIdentity(ctx, id, OriginIdentify)
	return nil
}

// GenerateNewID mints a fresh identifier with the configured generator and
// runs it through the mutation path. It returns the identifier in effect
// afterwards, which differs from the minted one if the delegate substituted it.
func (i *Identity) GenerateNewID(ctx context.Context) (string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !i.configured.Load() {
		return "", ErrNotConfigured
	}

	candidate := i.generator.GenerateID()
	if candidate == "" {
		return "", ErrEmptyID
	}
	i.setIdentity(ctx, candidate, OriginGenerate)
	return *i.current.Load(), nil
}

// Reset drops the in-memory state and stops watching the remote store.
// Persisted values are left untouched, so a later Configure without an
// explicit ID resolves the same identifier again.
func (i *Identity) Reset() {
	i.mu.Lock()
	cancel, done := i.cancel, i.done
	i.cancel, i.done = nil, nil
	i.changes = nil
	i.generator = nil
	i.current.Store(nil)
	i.configured.Store(false)
	if cancel != nil {
		cancel()
	}
	i.mu.Unlock()

	// The watch loop may be waiting on mu, so wait outside of it.
	if done != nil {
		<-done
	}

	capitan.Emit(context.Background(), IdentityReset,
		KeyStoreKey.Field(i.key),
	)
}
