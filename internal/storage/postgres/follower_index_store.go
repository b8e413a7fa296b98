package postgres

import (
	"context"
	"fmt"

	"solana-wallet-notifier/internal/storage"
)

// FollowerIndexStore implements storage.FollowerIndexStore using PostgreSQL.
type FollowerIndexStore struct {
	pool *Pool
}

// NewFollowerIndexStore creates a new FollowerIndexStore.
func NewFollowerIndexStore(pool *Pool) *FollowerIndexStore {
	return &FollowerIndexStore{pool: pool}
}

// Compile-time interface check.
var _ storage.FollowerIndexStore = (*FollowerIndexStore)(nil)

// AddFollower records that follower watches target. Idempotent.
func (s *FollowerIndexStore) AddFollower(ctx context.Context, targetUserID, followerUserID string) error {
	if targetUserID == "" || followerUserID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO followers (target_user_id, follower_user_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	if _, err := s.pool.Exec(ctx, query, targetUserID, followerUserID); err != nil {
		return fmt.Errorf("add follower: %w", err)
	}
	return nil
}

// RemoveFollower removes one follower row. Absent rows are a no-op.
func (s *FollowerIndexStore) RemoveFollower(ctx context.Context, targetUserID, followerUserID string) error {
	if targetUserID == "" || followerUserID == "" {
		return storage.ErrInvalidInput
	}

	query := `DELETE FROM followers WHERE target_user_id = $1 AND follower_user_id = $2`
	if _, err := s.pool.Exec(ctx, query, targetUserID, followerUserID); err != nil {
		return fmt.Errorf("remove follower: %w", err)
	}
	return nil
}

// GetFollowers returns the follower set for a target, sorted for determinism.
func (s *FollowerIndexStore) GetFollowers(ctx context.Context, targetUserID string) ([]string, error) {
	query := `SELECT follower_user_id FROM followers WHERE target_user_id = $1 ORDER BY follower_user_id`

	rows, err := s.pool.Query(ctx, query, targetUserID)
	if err != nil {
		return nil, fmt.Errorf("get followers: %w", err)
	}
	defer rows.Close()

	followers := []string{}
	for rows.Next() {
		var follower string
		if err := rows.Scan(&follower); err != nil {
			return nil, fmt.Errorf("scan follower: %w", err)
		}
		followers = append(followers, follower)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate followers: %w", err)
	}
	return followers, nil
}

// ReplaceAll swaps the whole index inside one transaction.
func (s *FollowerIndexStore) ReplaceAll(ctx context.Context, followers map[string][]string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM followers`); err != nil {
		return fmt.Errorf("clear followers: %w", err)
	}

	query := `INSERT INTO followers (target_user_id, follower_user_id) VALUES ($1, $2)`
	for target, list := range followers {
		if target == "" {
			return storage.ErrInvalidInput
		}
		for _, follower := range list {
			if _, err := tx.Exec(ctx, query, target, follower); err != nil {
				return fmt.Errorf("insert follower: %w", err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
