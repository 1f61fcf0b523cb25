package anchor

import "time"

// MetricsProvider allows integration with metrics systems like Prometheus, StatsD, etc.
// Implement this interface to receive callbacks on key identity events.
type MetricsProvider interface {
	// OnConfigured is called when Configure resolves the identifier.
	OnConfigured(resolution Resolution)

	// OnChange is called when a change is in effect. Duration covers the
	// delegate callbacks and both store writes.
	OnChange(origin Origin, duration time.Duration)

	// OnChangeSkipped is called when a change equals the active identifier.
	OnChangeSkipped(origin Origin)

	// OnPersistFailure is called when a store operation fails.
	OnPersistFailure(stage Stage, duration time.Duration)

	// OnChangeReceived is called for each notification from the remote store.
	OnChangeReceived()
}

// NoOpMetricsProvider is a no-op implementation of MetricsProvider.
// Use this as an embedded type to implement only the methods you need.
type NoOpMetricsProvider struct{}

func (NoOpMetricsProvider) OnConfigured(_ Resolution)                 {}
func (NoOpMetricsProvider) OnChange(_ Origin, _ time.Duration)        {}
func (NoOpMetricsProvider) OnChangeSkipped(_ Origin)                  {}
func (NoOpMetricsProvider) OnPersistFailure(_ Stage, _ time.Duration) {}
func (NoOpMetricsProvider) OnChangeReceived()                         {}
