package memory

import (
	"context"
	"sync"

	"solana-wallet-notifier/internal/domain"
	"solana-wallet-notifier/internal/storage"
)

// PriceStore is an in-memory implementation of storage.PriceStore.
type PriceStore struct {
	mu   sync.RWMutex
	data map[string]*domain.PriceRecord // keyed by mint
}

// NewPriceStore creates a new in-memory price store.
func NewPriceStore() *PriceStore {
	return &PriceStore{
		data: make(map[string]*domain.PriceRecord),
	}
}

// Compile-time interface check.
var _ storage.PriceStore = (*PriceStore)(nil)

// Upsert writes the latest observed price for a mint.
func (s *PriceStore) Upsert(_ context.Context, rec *domain.PriceRecord) error {
	if rec == nil || rec.Mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *rec
	s.data[rec.Mint] = &copy
	return nil
}

// Get retrieves the stored price for a mint.
func (s *PriceStore) Get(_ context.Context, mint string) (*domain.PriceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.data[mint]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copy := *rec
	return &copy, nil
}
