package postgres

import (
	"context"
	"fmt"

	"solana-wallet-notifier/internal/domain"
	"solana-wallet-notifier/internal/storage"
)

// PriceStore implements storage.PriceStore using PostgreSQL.
type PriceStore struct {
	pool *Pool
}

// NewPriceStore creates a new PriceStore.
func NewPriceStore(pool *Pool) *PriceStore {
	return &PriceStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PriceStore = (*PriceStore)(nil)

// Upsert writes the latest observed price for a mint.
func (s *PriceStore) Upsert(ctx context.Context, rec *domain.PriceRecord) error {
	if rec == nil || rec.Mint == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO prices (mint, price_usd, observed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (mint)
		DO UPDATE SET price_usd = EXCLUDED.price_usd, observed_at = EXCLUDED.observed_at
	`

	if _, err := s.pool.Exec(ctx, query, rec.Mint, rec.PriceUSD, rec.ObservedAt); err != nil {
		return fmt.Errorf("upsert price: %w", err)
	}
	return nil
}

// Get retrieves the stored price for a mint.
func (s *PriceStore) Get(ctx context.Context, mint string) (*domain.PriceRecord, error) {
	query := `SELECT mint, price_usd, observed_at FROM prices WHERE mint = $1`

	rec := &domain.PriceRecord{}
	err := s.pool.QueryRow(ctx, query, mint).Scan(&rec.Mint, &rec.PriceUSD, &rec.ObservedAt)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get price: %w", err)
	}
	return rec, nil
}
