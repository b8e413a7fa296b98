package memory

import (
	"context"
	"sort"
	"sync"

	"solana-wallet-notifier/internal/domain"
	"solana-wallet-notifier/internal/storage"
)

// NotificationStore is an in-memory implementation of storage.NotificationStore.
type NotificationStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Notification // keyed by deterministic id
}

// NewNotificationStore creates a new in-memory notification store.
func NewNotificationStore() *NotificationStore {
	return &NotificationStore{
		data: make(map[string]*domain.Notification),
	}
}

// Compile-time interface check.
var _ storage.NotificationStore = (*NotificationStore)(nil)

// Insert adds a new notification. Returns ErrDuplicateKey if the id exists.
func (s *NotificationStore) Insert(_ context.Context, n *domain.Notification) error {
	if n == nil || n.ID == "" || n.RecipientID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[n.ID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *n
	s.data[n.ID] = &copy
	return nil
}

// GetByID retrieves one notification. Returns ErrNotFound if not exists.
func (s *NotificationStore) GetByID(_ context.Context, id string) (*domain.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.data[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copy := *n
	return &copy, nil
}

// GetByRecipient retrieves a recipient's notifications, newest first.
func (s *NotificationStore) GetByRecipient(_ context.Context, recipientID string, limit int) ([]*domain.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Notification
	for _, n := range s.data {
		if n.RecipientID == recipientID {
			copy := *n
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt > result[j].CreatedAt
		}
		return result[i].ID < result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
