package memory

import (
	"context"
	"errors"
	"testing"

	"solana-wallet-notifier/internal/domain"
	"solana-wallet-notifier/internal/storage"
)

func TestPushEndpointStore_InsertAndGet(t *testing.T) {
	store := NewPushEndpointStore()
	ctx := context.Background()

	err := store.Insert(ctx, &domain.PushEndpoint{
		UserID:  "u1",
		Token:   "token1",
		Channel: domain.ChannelMulticast,
	})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	endpoints, err := store.GetByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("GetByUser failed: %v", err)
	}
	if len(endpoints) != 1 {
		t.Fatalf("Expected 1 endpoint, got %d", len(endpoints))
	}
	if endpoints[0].Token != "token1" {
		t.Errorf("Token mismatch: %q", endpoints[0].Token)
	}
}

func TestPushEndpointStore_DuplicateToken(t *testing.T) {
	store := NewPushEndpointStore()
	ctx := context.Background()

	e := &domain.PushEndpoint{UserID: "u1", Token: "token1"}
	_ = store.Insert(ctx, e)

	err := store.Insert(ctx, e)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestPushEndpointStore_DeletePrunesOnlyTarget(t *testing.T) {
	store := NewPushEndpointStore()
	ctx := context.Background()

	_ = store.Insert(ctx, &domain.PushEndpoint{UserID: "u1", Token: "dead"})
	_ = store.Insert(ctx, &domain.PushEndpoint{UserID: "u1", Token: "alive"})

	if err := store.Delete(ctx, "u1", "dead"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	endpoints, _ := store.GetByUser(ctx, "u1")
	if len(endpoints) != 1 {
		t.Fatalf("Expected 1 surviving endpoint, got %d", len(endpoints))
	}
	if endpoints[0].Token != "alive" {
		t.Errorf("Wrong endpoint survived: %q", endpoints[0].Token)
	}
}

func TestPushEndpointStore_DeleteIdempotent(t *testing.T) {
	store := NewPushEndpointStore()
	ctx := context.Background()

	_ = store.Insert(ctx, &domain.PushEndpoint{UserID: "u1", Token: "t"})

	if err := store.Delete(ctx, "u1", "t"); err != nil {
		t.Fatalf("First delete failed: %v", err)
	}
	if err := store.Delete(ctx, "u1", "t"); err != nil {
		t.Errorf("Second delete must be a no-op, got %v", err)
	}
	if err := store.Delete(ctx, "u2", "never-existed"); err != nil {
		t.Errorf("Deleting unknown endpoint must be a no-op, got %v", err)
	}
}
