// Package postgres provides an anchor.RemoteStore backed by a PostgreSQL
// table, watched through LISTEN/NOTIFY.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/zoobzio/anchor"
)

const (
	// DefaultTable holds one row per key.
	DefaultTable = "anchor_identity"

	// DefaultChannel is the notification channel the trigger created by
	// Migrate publishes to.
	DefaultChannel = "anchor_identity_changed"
)

// Store persists identifiers as rows of a key/value table. Changes are
// observed through a trigger that sends the key of every inserted, updated
// or deleted row with pg_notify. Migrate creates the table and trigger.
type Store struct {
	pool    *pgxpool.Pool
	table   string
	channel string
}

// Option configures a Store.
type Option func(*Store)

// WithTable sets the table name. Default: DefaultTable.
func WithTable(table string) Option {
	return func(s *Store) {
		s.table = table
	}
}

// WithChannel sets the notification channel. Default: DefaultChannel.
func WithChannel(channel string) Option {
	return func(s *Store) {
		s.channel = channel
	}
}

// New creates a Store over pool.
func New(pool *pgxpool.Pool, opts ...Option) *Store {
	s := &Store{
		pool:    pool,
		table:   DefaultTable,
		channel: DefaultChannel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Migrate creates the table, the notify function and its trigger if they
// do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	table := pgx.Identifier{s.table}.Sanitize()
	function := pgx.Identifier{s.table + "_notify"}.Sanitize()
	trigger := pgx.Identifier{s.table + "_notify_trigger"}.Sanitize()
	channel := "'" + strings.ReplaceAll(s.channel, "'", "''") + "'"

	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);

		CREATE OR REPLACE FUNCTION %[2]s() RETURNS trigger AS $$
		BEGIN
			PERFORM pg_notify(%[4]s, COALESCE(NEW.key, OLD.key));
			RETURN NULL;
		END;
		$$ LANGUAGE plpgsql;

		DROP TRIGGER IF EXISTS %[3]s ON %[1]s;
		CREATE TRIGGER %[3]s
			AFTER INSERT OR UPDATE OR DELETE ON %[1]s
			FOR EACH ROW EXECUTE FUNCTION %[2]s();
	`, table, function, trigger, channel))
	if err != nil {
		return fmt.Errorf("failed to migrate %s: %w", s.table, err)
	}
	return nil
}

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	query := fmt.Sprintf("SELECT value FROM %s WHERE key = $1", pgx.Identifier{s.table}.Sanitize())
	err := s.pool.QueryRow(ctx, query, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Set upserts value under key.
func (s *Store) Set(ctx context.Context, key, value string) error {
	query := fmt.Sprintf(
		"INSERT INTO %s (key, value) VALUES ($1, $2) ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value",
		pgx.Identifier{s.table}.Sanitize(),
	)
	_, err := s.pool.Exec(ctx, query, key, value)
	return err
}

// Delete removes the row for key.
func (s *Store) Delete(ctx context.Context, key string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE key = $1", pgx.Identifier{s.table}.Sanitize())
	_, err := s.pool.Exec(ctx, query, key)
	return err
}

// Synchronize is a no-op: statements run in autocommit mode.
func (*Store) Synchronize(_ context.Context) error {
	return nil
}

// Watch listens on the notification channel and returns a channel notified
// whenever the row for key is inserted, updated or deleted. The listening
// connection is held until ctx ends or the connection fails.
func (s *Store) Watch(ctx context.Context, key string) (<-chan struct{}, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}

	// Start listening
	_, err = conn.Exec(ctx, "LISTEN "+pgx.Identifier{s.channel}.Sanitize())
	if err != nil {
		conn.Release()
		return nil, fmt.Errorf("failed to listen on channel %s: %w", s.channel, err)
	}

	out := make(chan struct{}, 1)

	go func() {
		defer close(out)
		defer conn.Release()

		// Wait for notifications
		for {
			notification, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				return
			}

			// Check if notification is for our key
			if notification.Payload != key {
				continue
			}
			anchor.Notify(out)
		}
	}()

	return out, nil
}

var _ anchor.RemoteStore = (*Store)(nil)
