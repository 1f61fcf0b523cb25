package integration

import (
	"context"
	"testing"
	"time"

	"github.com/zoobzio/anchor"
	"github.com/zoobzio/anchor/pkg/file"
)

// waitFor polls a condition until it returns true or timeout is reached.
// Uses short polling intervals for fast tests with reliable results.
func waitFor(t *testing.T, timeout time.Duration, condition func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

// device is a local directory and a shared remote directory, as a device
// sees them across restarts.
type device struct {
	local     *file.Store
	remote    *file.Store
	remoteDir string
}

func newDevice(t *testing.T) device {
	t.Helper()
	remoteDir := t.TempDir()
	return device{
		local:     file.New(t.TempDir()),
		remote:    file.New(remoteDir),
		remoteDir: remoteDir,
	}
}

// boot starts a new process on the device.
func (d device) boot(ctx context.Context, t *testing.T, cfg anchor.Config) *anchor.Identity {
	t.Helper()
	identity := anchor.New(d.local, d.remote).Debounce(0)
	t.Cleanup(identity.Reset)
	if err := identity.Configure(ctx, cfg); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	return identity
}

func idOf(i *anchor.Identity) string {
	id, _ := i.ID()
	return id
}
