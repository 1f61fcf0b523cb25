package etcd

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcetcd "github.com/testcontainers/testcontainers-go/modules/etcd"
	"github.com/zoobzio/anchor"
	clientv3 "go.etcd.io/etcd/client/v3"
)

func setupEtcd(t *testing.T) *clientv3.Client {
	t.Helper()
	ctx := context.Background()

	container, err := tcetcd.Run(ctx, "gcr.io/etcd-development/etcd:v3.5.21")
	if err != nil {
		t.Fatalf("failed to start etcd container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	endpoint, err := container.ClientEndpoint(ctx)
	if err != nil {
		t.Fatalf("failed to get endpoint: %v", err)
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   []string{endpoint},
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
	})

	return client
}

func expectNotification(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case _, ok := <-ch:
		if !ok {
			t.Fatalf("channel closed waiting for %s", what)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timeout waiting for %s", what)
	}
}

func TestStore_GetSetDelete(t *testing.T) {
	client := setupEtcd(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store := New(client, WithPrefix("/devices/"))

	if _, ok, err := store.Get(ctx, "id"); err != nil || ok {
		t.Fatalf("expected missing key, got ok=%v err=%v", ok, err)
	}
	if err := store.Set(ctx, "id", "abc"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	resp, err := client.Get(ctx, "/devices/id")
	if err != nil || len(resp.Kvs) != 1 || string(resp.Kvs[0].Value) != "abc" {
		t.Errorf("expected prefixed key to hold 'abc'")
	}
	if v, ok, err := store.Get(ctx, "id"); err != nil || !ok || v != "abc" {
		t.Errorf("Get() = (%q, %v, %v)", v, ok, err)
	}
	if err := store.Delete(ctx, "id"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok, _ := store.Get(ctx, "id"); ok {
		t.Error("expected key to be deleted")
	}
}

func TestStore_WatchNotifiesOnPutAndDelete(t *testing.T) {
	client := setupEtcd(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store := New(client)
	ch, err := store.Watch(ctx, "/device/id")
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	if _, err := client.Put(ctx, "/device/id", "external"); err != nil {
		t.Fatalf("failed to put value: %v", err)
	}
	expectNotification(t, ch, "put")

	if _, err := client.Delete(ctx, "/device/id"); err != nil {
		t.Fatalf("failed to delete value: %v", err)
	}
	expectNotification(t, ch, "delete")
}

func TestStore_WatchClosesOnContextCancel(t *testing.T) {
	client := setupEtcd(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)

	store := New(client)
	ch, err := store.Watch(ctx, "/device/id")
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected channel to close")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for channel close")
	}
}

func TestStore_IdentityRepublishesAfterDelete(t *testing.T) {
	client := setupEtcd(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store := New(client)
	identity := anchor.New(anchor.NewMemoryStore(), store).Debounce(0)
	defer identity.Reset()

	if err := identity.Configure(ctx, anchor.Config{ID: "mine"}); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	if _, err := client.Delete(ctx, anchor.DefaultKey); err != nil {
		t.Fatalf("failed to delete value: %v", err)
	}

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if v, ok, _ := store.Get(ctx, anchor.DefaultKey); ok && v == "mine" {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("expected the identifier to be written back")
}
