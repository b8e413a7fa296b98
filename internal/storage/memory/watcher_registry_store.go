package memory

import (
	"context"
	"sync"

	"solana-wallet-notifier/internal/domain"
	"solana-wallet-notifier/internal/storage"
)

// WatcherRegistryStore is an in-memory implementation of storage.WatcherRegistryStore.
type WatcherRegistryStore struct {
	mu   sync.RWMutex
	data map[string]map[string]domain.WatcherInfo // address -> userID -> info
}

// NewWatcherRegistryStore creates a new in-memory watcher registry.
func NewWatcherRegistryStore() *WatcherRegistryStore {
	return &WatcherRegistryStore{
		data: make(map[string]map[string]domain.WatcherInfo),
	}
}

// Compile-time interface check.
var _ storage.WatcherRegistryStore = (*WatcherRegistryStore)(nil)

// UpsertWatcher adds or updates one watcher on an address record.
func (s *WatcherRegistryStore) UpsertWatcher(_ context.Context, address, userID string, info domain.WatcherInfo) error {
	if address == "" || userID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	watchers, ok := s.data[address]
	if !ok {
		watchers = make(map[string]domain.WatcherInfo)
		s.data[address] = watchers
	}
	watchers[userID] = info
	return nil
}

// RemoveWatcher removes one watcher, deleting the record when it empties.
func (s *WatcherRegistryStore) RemoveWatcher(_ context.Context, address, userID string) error {
	if address == "" || userID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	watchers, ok := s.data[address]
	if !ok {
		return nil
	}
	delete(watchers, userID)
	if len(watchers) == 0 {
		delete(s.data, address)
	}
	return nil
}

// Get retrieves the record for one address.
func (s *WatcherRegistryStore) Get(_ context.Context, address string) (*domain.WatcherRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	watchers, ok := s.data[address]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &domain.WatcherRecord{Address: address, Watchers: copyWatchers(watchers)}, nil
}

// GetMany retrieves records for the given addresses; unwatched addresses
// are absent from the result.
func (s *WatcherRegistryStore) GetMany(_ context.Context, addresses []string) (map[string]*domain.WatcherRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]*domain.WatcherRecord)
	for _, address := range addresses {
		if watchers, ok := s.data[address]; ok {
			result[address] = &domain.WatcherRecord{Address: address, Watchers: copyWatchers(watchers)}
		}
	}
	return result, nil
}

// ListAddresses returns every watched address.
func (s *WatcherRegistryStore) ListAddresses(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	addresses := make([]string, 0, len(s.data))
	for address := range s.data {
		addresses = append(addresses, address)
	}
	return addresses, nil
}

// ReplaceAll atomically replaces the whole registry.
func (s *WatcherRegistryStore) ReplaceAll(_ context.Context, records []*domain.WatcherRecord) error {
	next := make(map[string]map[string]domain.WatcherInfo, len(records))
	for _, rec := range records {
		if rec == nil || rec.Address == "" {
			return storage.ErrInvalidInput
		}
		if len(rec.Watchers) == 0 {
			continue // empty records are dropped, not stored
		}
		next[rec.Address] = copyWatchers(rec.Watchers)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = next
	return nil
}

func copyWatchers(src map[string]domain.WatcherInfo) map[string]domain.WatcherInfo {
	dst := make(map[string]domain.WatcherInfo, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
