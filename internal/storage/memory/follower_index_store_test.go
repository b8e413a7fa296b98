package memory

import (
	"context"
	"testing"
)

func TestFollowerIndexStore_AddAndGet(t *testing.T) {
	store := NewFollowerIndexStore()
	ctx := context.Background()

	_ = store.AddFollower(ctx, "target1", "u1")
	_ = store.AddFollower(ctx, "target1", "u2")
	_ = store.AddFollower(ctx, "target1", "u1") // idempotent

	followers, err := store.GetFollowers(ctx, "target1")
	if err != nil {
		t.Fatalf("GetFollowers failed: %v", err)
	}
	if len(followers) != 2 {
		t.Errorf("Expected 2 followers, got %v", followers)
	}
}

func TestFollowerIndexStore_Remove(t *testing.T) {
	store := NewFollowerIndexStore()
	ctx := context.Background()

	_ = store.AddFollower(ctx, "target1", "u1")
	_ = store.RemoveFollower(ctx, "target1", "u1")
	_ = store.RemoveFollower(ctx, "target1", "u1") // no-op

	followers, _ := store.GetFollowers(ctx, "target1")
	if len(followers) != 0 {
		t.Errorf("Expected no followers, got %v", followers)
	}
}

func TestFollowerIndexStore_ReplaceAll(t *testing.T) {
	store := NewFollowerIndexStore()
	ctx := context.Background()

	_ = store.AddFollower(ctx, "stale", "u1")

	err := store.ReplaceAll(ctx, map[string][]string{
		"target1": {"u1", "u2"},
		"empty":   {},
	})
	if err != nil {
		t.Fatalf("ReplaceAll failed: %v", err)
	}

	if followers, _ := store.GetFollowers(ctx, "stale"); len(followers) != 0 {
		t.Errorf("Stale target should be gone, got %v", followers)
	}
	if followers, _ := store.GetFollowers(ctx, "target1"); len(followers) != 2 {
		t.Errorf("Expected 2 followers, got %v", followers)
	}
}
