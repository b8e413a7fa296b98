package postgres

import (
	"context"
	"fmt"

	"solana-wallet-notifier/internal/domain"
	"solana-wallet-notifier/internal/storage"
)

// NotificationStore implements storage.NotificationStore using PostgreSQL.
// Inserts are fail-if-exists on the deterministic id: the unique violation
// is mapped to ErrDuplicateKey, which callers treat as an idempotent no-op.
type NotificationStore struct {
	pool *Pool
}

// NewNotificationStore creates a new NotificationStore.
func NewNotificationStore(pool *Pool) *NotificationStore {
	return &NotificationStore{pool: pool}
}

// Compile-time interface check.
var _ storage.NotificationStore = (*NotificationStore)(nil)

// Insert adds a new notification. Returns ErrDuplicateKey if the id exists.
func (s *NotificationStore) Insert(ctx context.Context, n *domain.Notification) error {
	if n == nil || n.ID == "" || n.RecipientID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO notifications (
			id, recipient_id, actor_address, type, title, message,
			signature, primary_mint, paid_amount, paid_symbol, read, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := s.pool.Exec(ctx, query,
		n.ID,
		n.RecipientID,
		n.ActorAddress,
		n.Type,
		n.Title,
		n.Message,
		n.Signature,
		n.PrimaryMint,
		n.PaidAmount,
		n.PaidSymbol,
		n.Read,
		n.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// GetByID retrieves one notification. Returns ErrNotFound if not exists.
func (s *NotificationStore) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	query := `
		SELECT id, recipient_id, actor_address, type, title, message,
		       signature, primary_mint, paid_amount, paid_symbol, read, created_at
		FROM notifications
		WHERE id = $1
	`

	n := &domain.Notification{}
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&n.ID,
		&n.RecipientID,
		&n.ActorAddress,
		&n.Type,
		&n.Title,
		&n.Message,
		&n.Signature,
		&n.PrimaryMint,
		&n.PaidAmount,
		&n.PaidSymbol,
		&n.Read,
		&n.CreatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get notification: %w", err)
	}
	return n, nil
}

// GetByRecipient retrieves a recipient's notifications, newest first.
func (s *NotificationStore) GetByRecipient(ctx context.Context, recipientID string, limit int) ([]*domain.Notification, error) {
	query := `
		SELECT id, recipient_id, actor_address, type, title, message,
		       signature, primary_mint, paid_amount, paid_symbol, read, created_at
		FROM notifications
		WHERE recipient_id = $1
		ORDER BY created_at DESC, id ASC
	`
	args := []interface{}{recipientID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get notifications by recipient: %w", err)
	}
	defer rows.Close()

	var result []*domain.Notification
	for rows.Next() {
		n := &domain.Notification{}
		if err := rows.Scan(
			&n.ID,
			&n.RecipientID,
			&n.ActorAddress,
			&n.Type,
			&n.Title,
			&n.Message,
			&n.Signature,
			&n.PrimaryMint,
			&n.PaidAmount,
			&n.PaidSymbol,
			&n.Read,
			&n.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		result = append(result, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return result, nil
}
