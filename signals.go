package anchor

import "github.com/zoobzio/capitan"

// Configuration signals.
var (
	// IdentityConfigured is emitted when Configure resolves and persists the identifier.
	IdentityConfigured = capitan.NewSignal(
		"anchor.identity.configured",
		"Identity configured",
	)

	// IdentityConfigureRejected is emitted when Configure is called on a configured Identity.
	IdentityConfigureRejected = capitan.NewSignal(
		"anchor.identity.configure.rejected",
		"Configure called twice, ignored",
	)

	// IdentityReset is emitted when the in-memory state is dropped.
	IdentityReset = capitan.NewSignal(
		"anchor.identity.reset",
		"Identity reset",
	)
)

// Mutation signals.
var (
	// IdentityChanged is emitted when a new identifier is in effect and persisted.
	IdentityChanged = capitan.NewSignal(
		"anchor.identity.changed",
		"Identifier changed",
	)

	// IdentityChangeSkipped is emitted when a change equals the active identifier.
	IdentityChangeSkipped = capitan.NewSignal(
		"anchor.identity.change.skipped",
		"Change equals active identifier",
	)

	// IdentityRepublished is emitted when a cleared remote value is written back.
	IdentityRepublished = capitan.NewSignal(
		"anchor.identity.republished",
		"Identifier written back after remote clear",
	)

	// PersistFailed is emitted when a store read or write fails. The failure is absorbed.
	PersistFailed = capitan.NewSignal(
		"anchor.persist.failed",
		"Store operation failed",
	)
)

// Remote watch signals.
var (
	// WatchStarted is emitted when the remote store is being watched.
	WatchStarted = capitan.NewSignal(
		"anchor.watch.started",
		"Remote watch started",
	)

	// WatchFailed is emitted when the remote store cannot be watched.
	WatchFailed = capitan.NewSignal(
		"anchor.watch.failed",
		"Remote watch failed to start",
	)

	// WatchStopped is emitted when the remote watch loop exits.
	WatchStopped = capitan.NewSignal(
		"anchor.watch.stopped",
		"Remote watch stopped",
	)

	// RemoteChangeReceived is emitted for each notification from the remote store.
	RemoteChangeReceived = capitan.NewSignal(
		"anchor.remote.change.received",
		"Remote change notification received",
	)

	// RemoteEchoIgnored is emitted when the remote value equals the active identifier.
	RemoteEchoIgnored = capitan.NewSignal(
		"anchor.remote.echo.ignored",
		"Remote value equals active identifier",
	)

	// ReconcileFailed is emitted when the remote value cannot be read back.
	ReconcileFailed = capitan.NewSignal(
		"anchor.reconcile.failed",
		"Remote value could not be read",
	)
)
