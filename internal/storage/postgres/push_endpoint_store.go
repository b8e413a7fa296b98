package postgres

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"solana-wallet-notifier/internal/domain"
	"solana-wallet-notifier/internal/storage"
)

// PushEndpointStore implements storage.PushEndpointStore using PostgreSQL.
// The token hash column is the secondary lookup key; both it and the
// per-user primary key are covered by a single delete.
type PushEndpointStore struct {
	pool *Pool
}

// NewPushEndpointStore creates a new PushEndpointStore.
func NewPushEndpointStore(pool *Pool) *PushEndpointStore {
	return &PushEndpointStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PushEndpointStore = (*PushEndpointStore)(nil)

func tokenHash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Insert registers an endpoint. Returns ErrDuplicateKey if already present.
func (s *PushEndpointStore) Insert(ctx context.Context, e *domain.PushEndpoint) error {
	if e == nil || e.UserID == "" || e.Token == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO push_endpoints (user_id, token_hash, token, channel, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := s.pool.Exec(ctx, query, e.UserID, tokenHash(e.Token), e.Token, e.Channel, e.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert push endpoint: %w", err)
	}
	return nil
}

// GetByUser returns all endpoints registered for a user.
func (s *PushEndpointStore) GetByUser(ctx context.Context, userID string) ([]*domain.PushEndpoint, error) {
	query := `
		SELECT user_id, token, channel, created_at
		FROM push_endpoints
		WHERE user_id = $1
		ORDER BY created_at ASC
	`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("get push endpoints: %w", err)
	}
	defer rows.Close()

	var result []*domain.PushEndpoint
	for rows.Next() {
		e := &domain.PushEndpoint{}
		if err := rows.Scan(&e.UserID, &e.Token, &e.Channel, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan push endpoint: %w", err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate push endpoints: %w", err)
	}
	return result, nil
}

// Delete removes one endpoint. Deleting an absent endpoint is a no-op.
func (s *PushEndpointStore) Delete(ctx context.Context, userID, token string) error {
	if userID == "" || token == "" {
		return storage.ErrInvalidInput
	}

	query := `DELETE FROM push_endpoints WHERE user_id = $1 AND token_hash = $2`
	if _, err := s.pool.Exec(ctx, query, userID, tokenHash(token)); err != nil {
		return fmt.Errorf("delete push endpoint: %w", err)
	}
	return nil
}
