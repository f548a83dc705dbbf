package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestStoreCreateAndGet(t *testing.T) {
	store := NewStore(func() *Controller { return NewController(Options{}) }, time.Minute)

	id, c := store.Create(context.Background())
	if id == "" || c == nil {
		t.Fatal("expected a session id and controller")
	}

	got, ok := store.Get(id)
	if !ok || got != c {
		t.Fatal("expected the created controller to be returned")
	}
	if _, ok := store.Get("missing"); ok {
		t.Fatal("expected unknown id to miss")
	}
	if store.Len() != 1 {
		t.Fatalf("expected 1 session, got %d", store.Len())
	}
}

func TestStoreSweepRemovesIdleSessions(t *testing.T) {
	store := NewStore(func() *Controller { return NewController(Options{}) }, time.Minute)
	ctx := context.Background()

	idle, _ := store.Create(ctx)
	fresh, _ := store.Create(ctx)

	later := time.Now().Add(2 * time.Minute)
	c, _ := store.Get(fresh)
	c.mu.Lock()
	c.lastSeen = later
	c.mu.Unlock()

	if n := store.Sweep(ctx, later); n != 1 {
		t.Fatalf("expected 1 session swept, got %d", n)
	}
	if _, ok := store.Get(idle); ok {
		t.Fatal("expected idle session to be removed")
	}
	if _, ok := store.Get(fresh); !ok {
		t.Fatal("expected fresh session to remain")
	}
}

func TestStoreRunStopsWithContext(t *testing.T) {
	store := NewStore(func() *Controller { return NewController(Options{}) }, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		store.Run(ctx, time.Millisecond)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("expected Run to return after cancel")
	}
}

func TestStoreCloseClosesEverySession(t *testing.T) {
	store := NewStore(func() *Controller { return NewController(Options{}) }, time.Minute)
	ctx := context.Background()

	id, c := store.Create(ctx)
	c.Start(ctx)
	c.UpdateFields(ctx, referenceFields)

	store.Close()

	if store.Len() != 0 {
		t.Fatalf("expected empty store, got %d", store.Len())
	}
	if _, ok := store.Get(id); ok {
		t.Fatal("expected closed session to be gone")
	}
	if _, err := c.Submit(ctx); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
