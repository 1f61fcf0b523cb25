// Package logger writes anchor signals to a zerolog.Logger.
//
// Failures are logged at warn or error level, identity transitions at info
// and the remaining bookkeeping at debug:
//
//	log := logger.New(os.Stderr)
//	logger.Attach(log)
package logger

import (
	"context"
	"io"

	"github.com/rs/zerolog"
	"github.com/zoobzio/anchor"
	"github.com/zoobzio/capitan"
)

// New creates a JSON logger with timestamps writing to w.
func New(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger()
}

// Attach hooks every anchor signal and writes it to log. Hooks are global
// to the process, so call it once.
func Attach(log zerolog.Logger) {
	capitan.Hook(anchor.IdentityConfigured, handler(log, zerolog.InfoLevel, "identity configured"))
	capitan.Hook(anchor.IdentityConfigureRejected, handler(log, zerolog.WarnLevel, "identity already configured"))
	capitan.Hook(anchor.IdentityReset, handler(log, zerolog.InfoLevel, "identity reset"))
	capitan.Hook(anchor.IdentityChanged, handler(log, zerolog.InfoLevel, "identity changed"))
	capitan.Hook(anchor.IdentityChangeSkipped, handler(log, zerolog.DebugLevel, "identity unchanged"))
	capitan.Hook(anchor.IdentityRepublished, handler(log, zerolog.InfoLevel, "identity republished"))
	capitan.Hook(anchor.PersistFailed, handler(log, zerolog.WarnLevel, "store operation failed"))
	capitan.Hook(anchor.WatchStarted, handler(log, zerolog.DebugLevel, "remote watch started"))
	capitan.Hook(anchor.WatchFailed, handler(log, zerolog.ErrorLevel, "remote watch failed"))
	capitan.Hook(anchor.WatchStopped, handler(log, zerolog.DebugLevel, "remote watch stopped"))
	capitan.Hook(anchor.RemoteChangeReceived, handler(log, zerolog.DebugLevel, "remote change received"))
	capitan.Hook(anchor.RemoteEchoIgnored, handler(log, zerolog.DebugLevel, "remote echo ignored"))
	capitan.Hook(anchor.ReconcileFailed, handler(log, zerolog.WarnLevel, "reconcile failed"))
}

func handler(log zerolog.Logger, level zerolog.Level, msg string) func(context.Context, *capitan.Event) {
	return func(_ context.Context, e *capitan.Event) {
		event := log.WithLevel(level)
		if !event.Enabled() {
			return
		}
		if v, ok := anchor.KeyID.From(e); ok {
			event.Str("id", v)
		}
		if v, ok := anchor.KeyPreviousID.From(e); ok {
			event.Str("previous_id", v)
		}
		if v, ok := anchor.KeyCandidate.From(e); ok {
			event.Str("candidate", v)
		}
		if v, ok := anchor.KeyOrigin.From(e); ok {
			event.Str("origin", v)
		}
		if v, ok := anchor.KeyResolution.From(e); ok {
			event.Str("resolution", v)
		}
		if v, ok := anchor.KeyPolicy.From(e); ok {
			event.Str("policy", v)
		}
		if v, ok := anchor.KeyStage.From(e); ok {
			event.Str("stage", v)
		}
		if v, ok := anchor.KeyStoreKey.From(e); ok {
			event.Str("store_key", v)
		}
		if v, ok := anchor.KeyError.From(e); ok {
			event.Str("error", v)
		}
		if d, ok := anchor.KeyDebounce.From(e); ok {
			event.Dur("debounce", d)
		}
		event.Msg(msg)
	}
}
