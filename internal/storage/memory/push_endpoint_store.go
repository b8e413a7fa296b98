package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"solana-wallet-notifier/internal/domain"
	"solana-wallet-notifier/internal/storage"
)

// PushEndpointStore is an in-memory implementation of storage.PushEndpointStore.
// It mirrors the two durable indexes: the per-user collection and the
// secondary lookup keyed by endpoint hash.
type PushEndpointStore struct {
	mu     sync.RWMutex
	byUser map[string]map[string]*domain.PushEndpoint // userID -> tokenHash -> endpoint
	byHash map[string]*domain.PushEndpoint            // tokenHash -> endpoint
}

// NewPushEndpointStore creates a new in-memory push endpoint store.
func NewPushEndpointStore() *PushEndpointStore {
	return &PushEndpointStore{
		byUser: make(map[string]map[string]*domain.PushEndpoint),
		byHash: make(map[string]*domain.PushEndpoint),
	}
}

// Compile-time interface check.
var _ storage.PushEndpointStore = (*PushEndpointStore)(nil)

// TokenHash returns the stable hash used as the secondary endpoint key.
func TokenHash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Insert registers an endpoint. Returns ErrDuplicateKey if already present.
func (s *PushEndpointStore) Insert(_ context.Context, e *domain.PushEndpoint) error {
	if e == nil || e.UserID == "" || e.Token == "" {
		return storage.ErrInvalidInput
	}

	hash := TokenHash(e.Token)

	s.mu.Lock()
	defer s.mu.Unlock()

	endpoints, ok := s.byUser[e.UserID]
	if !ok {
		endpoints = make(map[string]*domain.PushEndpoint)
		s.byUser[e.UserID] = endpoints
	}
	if _, exists := endpoints[hash]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *e
	endpoints[hash] = &copy
	s.byHash[hash] = &copy
	return nil
}

// GetByUser returns all endpoints registered for a user.
func (s *PushEndpointStore) GetByUser(_ context.Context, userID string) ([]*domain.PushEndpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PushEndpoint
	for _, e := range s.byUser[userID] {
		copy := *e
		result = append(result, &copy)
	}
	return result, nil
}

// Delete removes one endpoint from both indexes. Idempotent.
func (s *PushEndpointStore) Delete(_ context.Context, userID, token string) error {
	if userID == "" || token == "" {
		return storage.ErrInvalidInput
	}

	hash := TokenHash(token)

	s.mu.Lock()
	defer s.mu.Unlock()

	if endpoints, ok := s.byUser[userID]; ok {
		delete(endpoints, hash)
		if len(endpoints) == 0 {
			delete(s.byUser, userID)
		}
	}
	delete(s.byHash, hash)
	return nil
}
