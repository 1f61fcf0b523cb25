/*
Package anchor maintains a stable identifier for a user or device that survives
reinstalls, works offline, and stays reconciled with a remote synchronized
key-value store.

An Identity owns exactly one active identifier. It resolves the initial value
when Configure is called, persists every accepted change to both a local and a
remote store, and reacts to changes the remote store reports from other
processes or devices.

# Basic Usage

Build an Identity over a local and a remote store, then configure it once:

	identity := anchor.New(
	    file.New("/var/lib/myapp"),
	    redis.New(client),
	)

	if err := identity.Configure(ctx, anchor.Config{}); err != nil {
	    return err
	}

	id, _ := identity.ID()

# Resolution

Configure resolves the identifier in this order:

  - An explicit Config.ID with ForceUpdate is used as is.
  - An explicit Config.ID with PreferStored defers to a stored value if any.
  - Without an explicit ID, the stored value wins, remote before local.
  - Otherwise the generator mints a fresh identifier.

The resolved value is written to both stores before the remote store is watched.

# Changes

Identify and GenerateNewID funnel through one serialized mutation path. A
registered Delegate sees each pending change and may substitute the value:

	identity.SetDelegate(anchor.DelegateFuncs{
	    WillChange: func(ctx context.Context, current, candidate string) (string, bool) {
	        return strings.ToLower(candidate), true
	    },
	})

# Reconciliation

When the remote store reports a change, the remote value is read back. A
different value runs through the mutation path like any local change. An equal
value is the echo of a local write and is ignored. A missing value is treated as
an accidental clear and the in-memory identifier is written back.

# Stores

The core depends on the Store, Watcher and RemoteStore interfaces only.
MemoryStore is provided for tests and embedding. Backends live in pkg/:

  - pkg/file: Files on disk, watched with fsnotify
  - pkg/redis: Redis keys with keyspace notifications
  - pkg/etcd: etcd keys with the Watch API
  - pkg/consul: Consul KV with blocking queries
  - pkg/nats: NATS JetStream KV
  - pkg/zookeeper: ZooKeeper nodes
  - pkg/firestore: Firestore documents with realtime listeners
  - pkg/postgres: PostgreSQL rows with LISTEN/NOTIFY
  - pkg/kubernetes: Kubernetes ConfigMaps and Secrets

# Remote Writes

Remote writes run through a pipz pipeline bounded by DefaultRemoteTimeout.
Options add resilience around it:

	anchor.New(local, remote,
	    anchor.WithBackoff(3, 100*time.Millisecond),
	    anchor.WithFallback(anchor.UseStore(backupID, backup)),
	    anchor.WithCircuitBreaker(5, time.Minute),
	)

Remote failures never reach the caller. They are kept in LastError and
Failures and emitted as PersistFailed.

# Observability

Every transition is emitted as a capitan signal (see signals.go). pkg/logger
forwards those signals to a zerolog logger.
*/
package anchor
