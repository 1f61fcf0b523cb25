package anchor

import (
	"context"
	"time"

	"github.com/zoobzio/pipz"
)

// DefaultRemoteTimeout bounds every remote write, including Synchronize.
const DefaultRemoteTimeout = 5 * time.Second

// Pipeline identities.
var (
	remoteWriteID    = pipz.NewIdentity("anchor:remote-write", "Writes the identifier to the remote store and synchronizes")
	remoteDeadlineID = pipz.NewIdentity("anchor:remote-deadline", "Default deadline for remote writes")
	timeoutID        = pipz.NewIdentity("anchor:timeout", "Caller supplied deadline for remote writes")
	circuitBreakerID = pipz.NewIdentity("anchor:circuit-breaker", "Stops calling a failing remote store")
	errorHandlerID   = pipz.NewIdentity("anchor:error-handler", "Observes remote write failures")
	middlewareID     = pipz.NewIdentity("anchor:middleware", "Processors run before the remote write")
	retryID          = pipz.NewIdentity("anchor:retry", "Retries failed remote writes immediately")
	backoffID        = pipz.NewIdentity("anchor:backoff", "Retries failed remote writes with exponential backoff")
	fallbackID       = pipz.NewIdentity("anchor:fallback", "Tries fallback processors when the remote write fails")
	rateLimitID      = pipz.NewIdentity("anchor:rate-limit", "Limits the rate of remote writes")
)

// Option configures the remote write pipeline of an Identity.
// Options wrap the terminal write in the order given.
//
// Instance configuration (key, debounce, sync mode, etc.) is handled via
// chainable methods on the Identity before calling Configure.
type Option func(pipz.Chainable[*Write]) pipz.Chainable[*Write]

// buildRemotePipeline wraps the remote write in the default deadline, then
// in the caller's options.
func buildRemotePipeline(remote RemoteStore, opts []Option) pipz.Chainable[*Write] {
	var pipeline pipz.Chainable[*Write] = pipz.NewTimeout(remoteDeadlineID, UseStore(remoteWriteID, remote), DefaultRemoteTimeout)
	for _, opt := range opts {
		pipeline = opt(pipeline)
	}
	return pipeline
}

// WithTimeout bounds remote writes by d. The default deadline of
// DefaultRemoteTimeout still applies underneath, so only shorter values
// have an effect.
func WithTimeout(d time.Duration) Option {
	return func(p pipz.Chainable[*Write]) pipz.Chainable[*Write] {
		return pipz.NewTimeout(timeoutID, p, d)
	}
}

// WithRetry retries a failed remote write immediately, up to maxAttempts
// attempts in total. For delays between attempts, use WithBackoff.
func WithRetry(maxAttempts int) Option {
	return func(p pipz.Chainable[*Write]) pipz.Chainable[*Write] {
		return pipz.NewRetry(retryID, p, maxAttempts)
	}
}

// WithBackoff retries a failed remote write with delays of baseDelay,
// 2*baseDelay, 4*baseDelay and so on. The identity stays locked while
// retrying, so keep maxAttempts small.
func WithBackoff(maxAttempts int, baseDelay time.Duration) Option {
	return func(p pipz.Chainable[*Write]) pipz.Chainable[*Write] {
		return pipz.NewBackoff(backoffID, p, maxAttempts, baseDelay)
	}
}

// WithFallback tries each fallback in order when the remote write fails.
// The write counts as persisted if any of them succeeds.
//
// Example:
//
//	anchor.New(local, primary,
//	    anchor.WithFallback(anchor.UseStore(backupID, backup)),
//	)
func WithFallback(fallbacks ...pipz.Chainable[*Write]) Option {
	return func(p pipz.Chainable[*Write]) pipz.Chainable[*Write] {
		all := append([]pipz.Chainable[*Write]{p}, fallbacks...)
		return pipz.NewFallback(fallbackID, all...)
	}
}

// WithRateLimit limits remote writes to rate per second with the given
// burst. Writes over the limit wait for a token.
func WithRateLimit(rate float64, burst int) Option {
	return func(p pipz.Chainable[*Write]) pipz.Chainable[*Write] {
		return pipz.NewRateLimiter(rateLimitID, rate, burst, p)
	}
}

// WithCircuitBreaker stops calling the remote store after 'failures'
// consecutive failures and tries again once 'recovery' has passed. Writes
// rejected by the open circuit are recorded like any other remote failure.
func WithCircuitBreaker(failures int, recovery time.Duration) Option {
	return func(p pipz.Chainable[*Write]) pipz.Chainable[*Write] {
		return pipz.NewCircuitBreaker(circuitBreakerID, p, failures, recovery)
	}
}

// WithErrorHandler passes remote write failures to handler for logging,
// metrics, or alerting. The failure is still recorded by the Identity.
func WithErrorHandler(handler pipz.Chainable[*pipz.Error[*Write]]) Option {
	return func(p pipz.Chainable[*Write]) pipz.Chainable[*Write] {
		return pipz.NewHandle(errorHandlerID, p, handler)
	}
}

// WithMiddleware runs processors before the remote write, in order.
//
// Example:
//
//	anchor.New(local, remote,
//	    anchor.WithMiddleware(
//	        anchor.UseEffect(auditID, func(ctx context.Context, w *anchor.Write) error {
//	            return audit.Record(ctx, w.Value)
//	        }),
//	    ),
//	)
func WithMiddleware(processors ...pipz.Chainable[*Write]) Option {
	return func(p pipz.Chainable[*Write]) pipz.Chainable[*Write] {
		all := make([]pipz.Chainable[*Write], 0, len(processors)+1)
		all = append(all, processors...)
		all = append(all, p)
		return pipz.NewSequence(middlewareID, all...)
	}
}

// UseEffect creates a processor that performs a side effect for each remote
// write. An error stops the write.
func UseEffect(identity pipz.Identity, fn func(context.Context, *Write) error) pipz.Chainable[*Write] {
	return pipz.Effect(identity, fn)
}

// UseStore creates a processor that writes to store and synchronizes it.
// Pair it with WithFallback or WithMiddleware to mirror the identifier.
func UseStore(identity pipz.Identity, store RemoteStore) pipz.Chainable[*Write] {
	return pipz.Effect(identity, func(ctx context.Context, w *Write) error {
		if err := store.Set(ctx, w.Key, w.Value); err != nil {
			return err
		}
		return store.Synchronize(ctx)
	})
}

// UseFilter runs processor only for writes matching condition. Other
// writes pass through unchanged.
func UseFilter(identity pipz.Identity, condition func(context.Context, *Write) bool, processor pipz.Chainable[*Write]) pipz.Chainable[*Write] {
	return pipz.NewFilter(identity, condition, processor)
}
