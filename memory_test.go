package anchor

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStore_GetMissing(t *testing.T) {
	s := NewMemoryStore()
	v, ok, err := s.Get(context.Background(), "missing")
	if err != nil || ok || v != "" {
		t.Errorf("expected not found, got (%q, %v, %v)", v, ok, err)
	}
}

func TestMemoryStore_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if err := s.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if v, ok, _ := s.Get(ctx, "k"); !ok || v != "v" {
		t.Errorf("expected 'v', got (%q, %v)", v, ok)
	}
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Error("expected key to be deleted")
	}
}

func TestMemoryStore_WatchNotifiesOnSetAndDelete(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := NewMemoryStore()

	ch, err := s.Watch(ctx, "k")
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	_ = s.Set(ctx, "k", "v")
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected notification on set")
	}

	_ = s.Delete(ctx, "k")
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected notification on delete")
	}
}

func TestMemoryStore_WatchIgnoresOtherKeys(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := NewMemoryStore()

	ch, _ := s.Watch(ctx, "k")
	_ = s.Set(ctx, "other", "v")

	select {
	case <-ch:
		t.Error("unexpected notification for another key")
	default:
	}
}

func TestMemoryStore_NotificationsCoalesce(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := NewMemoryStore()

	ch, _ := s.Watch(ctx, "k")
	for range 5 {
		_ = s.Set(ctx, "k", "v")
	}

	<-ch
	select {
	case <-ch:
		t.Error("expected pending notifications to coalesce")
	default:
	}
}

func TestMemoryStore_WatchClosesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewMemoryStore()

	ch, _ := s.Watch(ctx, "k")
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
}
