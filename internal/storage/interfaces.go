package storage

import (
	"context"

	"solana-wallet-notifier/internal/domain"
)

// WatcherRegistryStore maps effective addresses to the users watching them.
// A record with no watchers must not exist: the set of stored addresses is
// what the synchronizer diffs against the upstream monitoring list.
type WatcherRegistryStore interface {
	// UpsertWatcher adds or updates one watcher on an address record,
	// creating the record if needed.
	UpsertWatcher(ctx context.Context, address, userID string, info domain.WatcherInfo) error

	// RemoveWatcher removes one watcher from an address record, deleting
	// the record when it becomes empty. Removing an absent watcher is a no-op.
	RemoveWatcher(ctx context.Context, address, userID string) error

	// Get retrieves the record for one address. Returns ErrNotFound if no
	// one watches it.
	Get(ctx context.Context, address string) (*domain.WatcherRecord, error)

	// GetMany retrieves records for the given addresses. Addresses with no
	// watchers are absent from the result.
	GetMany(ctx context.Context, addresses []string) (map[string]*domain.WatcherRecord, error)

	// ListAddresses returns every address with at least one watcher.
	ListAddresses(ctx context.Context) ([]string, error)

	// ReplaceAll atomically replaces the whole registry with the given
	// records. Records with empty watcher maps are dropped, not stored.
	ReplaceAll(ctx context.Context, records []*domain.WatcherRecord) error
}

// FollowerIndexStore maps on-platform target users to their followers.
// Only populated for targets who are public and currently wallet-linked.
type FollowerIndexStore interface {
	// AddFollower records that follower watches target. Idempotent.
	AddFollower(ctx context.Context, targetUserID, followerUserID string) error

	// RemoveFollower removes one follower. Removing an absent one is a no-op.
	RemoveFollower(ctx context.Context, targetUserID, followerUserID string) error

	// GetFollowers returns the follower set for a target, empty if none.
	GetFollowers(ctx context.Context, targetUserID string) ([]string, error)

	// ReplaceAll atomically replaces the whole index.
	ReplaceAll(ctx context.Context, followers map[string][]string) error
}

// NotificationStore persists notifications. Insert-only: the deterministic
// id is the idempotency key, so duplicate webhook deliveries are rejected
// with ErrDuplicateKey rather than written twice.
type NotificationStore interface {
	// Insert adds a new notification. Returns ErrDuplicateKey if the id exists.
	Insert(ctx context.Context, n *domain.Notification) error

	// GetByID retrieves one notification. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.Notification, error)

	// GetByRecipient retrieves a recipient's notifications, newest first,
	// capped at limit (0 means no cap).
	GetByRecipient(ctx context.Context, recipientID string, limit int) ([]*domain.Notification, error)
}

// PushEndpointStore holds registered push destinations per user. The
// pipeline only reads and prunes; registration happens elsewhere.
type PushEndpointStore interface {
	// Insert registers an endpoint. Returns ErrDuplicateKey if the same
	// token is already registered for the user.
	Insert(ctx context.Context, e *domain.PushEndpoint) error

	// GetByUser returns all endpoints registered for a user.
	GetByUser(ctx context.Context, userID string) ([]*domain.PushEndpoint, error)

	// Delete removes one endpoint from every index that stores it.
	// Deleting an absent endpoint is a no-op, never an error.
	Delete(ctx context.Context, userID, token string) error
}

// PriceStore is the persisted last-known-price fallback, one row per mint.
type PriceStore interface {
	// Upsert writes the latest observed price for a mint.
	Upsert(ctx context.Context, rec *domain.PriceRecord) error

	// Get retrieves the stored price for a mint. Returns ErrNotFound if absent.
	Get(ctx context.Context, mint string) (*domain.PriceRecord, error)
}
