package memory

import (
	"context"
	"sort"
	"sync"

	"solana-wallet-notifier/internal/storage"
)

// FollowerIndexStore is an in-memory implementation of storage.FollowerIndexStore.
type FollowerIndexStore struct {
	mu   sync.RWMutex
	data map[string]map[string]struct{} // targetUserID -> follower set
}

// NewFollowerIndexStore creates a new in-memory follower index.
func NewFollowerIndexStore() *FollowerIndexStore {
	return &FollowerIndexStore{
		data: make(map[string]map[string]struct{}),
	}
}

// Compile-time interface check.
var _ storage.FollowerIndexStore = (*FollowerIndexStore)(nil)

// AddFollower records that follower watches target. Idempotent.
func (s *FollowerIndexStore) AddFollower(_ context.Context, targetUserID, followerUserID string) error {
	if targetUserID == "" || followerUserID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	followers, ok := s.data[targetUserID]
	if !ok {
		followers = make(map[string]struct{})
		s.data[targetUserID] = followers
	}
	followers[followerUserID] = struct{}{}
	return nil
}

// RemoveFollower removes one follower; absent followers are a no-op.
func (s *FollowerIndexStore) RemoveFollower(_ context.Context, targetUserID, followerUserID string) error {
	if targetUserID == "" || followerUserID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	followers, ok := s.data[targetUserID]
	if !ok {
		return nil
	}
	delete(followers, followerUserID)
	if len(followers) == 0 {
		delete(s.data, targetUserID)
	}
	return nil
}

// GetFollowers returns the follower set for a target, sorted for determinism.
func (s *FollowerIndexStore) GetFollowers(_ context.Context, targetUserID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	followers := make([]string, 0, len(s.data[targetUserID]))
	for follower := range s.data[targetUserID] {
		followers = append(followers, follower)
	}
	sort.Strings(followers)
	return followers, nil
}

// ReplaceAll atomically replaces the whole index.
func (s *FollowerIndexStore) ReplaceAll(_ context.Context, followers map[string][]string) error {
	next := make(map[string]map[string]struct{}, len(followers))
	for target, list := range followers {
		if target == "" {
			return storage.ErrInvalidInput
		}
		if len(list) == 0 {
			continue
		}
		set := make(map[string]struct{}, len(list))
		for _, follower := range list {
			set[follower] = struct{}{}
		}
		next[target] = set
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = next
	return nil
}
