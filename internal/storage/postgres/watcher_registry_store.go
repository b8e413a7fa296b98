package postgres

import (
	"context"
	"fmt"

	"solana-wallet-notifier/internal/domain"
	"solana-wallet-notifier/internal/storage"
)

// WatcherRegistryStore implements storage.WatcherRegistryStore using PostgreSQL.
// Records are stored as one row per (address, watcher), so the "no empty
// records" invariant holds structurally.
type WatcherRegistryStore struct {
	pool *Pool
}

// NewWatcherRegistryStore creates a new WatcherRegistryStore.
func NewWatcherRegistryStore(pool *Pool) *WatcherRegistryStore {
	return &WatcherRegistryStore{pool: pool}
}

// Compile-time interface check.
var _ storage.WatcherRegistryStore = (*WatcherRegistryStore)(nil)

// UpsertWatcher adds or updates one watcher on an address record.
func (s *WatcherRegistryStore) UpsertWatcher(ctx context.Context, address, userID string, info domain.WatcherInfo) error {
	if address == "" || userID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO watchers (address, user_id, nickname, added_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (address, user_id)
		DO UPDATE SET nickname = EXCLUDED.nickname, added_at = EXCLUDED.added_at
	`

	if _, err := s.pool.Exec(ctx, query, address, userID, info.Nickname, info.AddedAt); err != nil {
		return fmt.Errorf("upsert watcher: %w", err)
	}
	return nil
}

// RemoveWatcher removes one watcher row. Absent rows are a no-op.
func (s *WatcherRegistryStore) RemoveWatcher(ctx context.Context, address, userID string) error {
	if address == "" || userID == "" {
		return storage.ErrInvalidInput
	}

	query := `DELETE FROM watchers WHERE address = $1 AND user_id = $2`
	if _, err := s.pool.Exec(ctx, query, address, userID); err != nil {
		return fmt.Errorf("remove watcher: %w", err)
	}
	return nil
}

// Get retrieves the record for one address.
func (s *WatcherRegistryStore) Get(ctx context.Context, address string) (*domain.WatcherRecord, error) {
	query := `SELECT user_id, nickname, added_at FROM watchers WHERE address = $1`

	rows, err := s.pool.Query(ctx, query, address)
	if err != nil {
		return nil, fmt.Errorf("get watchers: %w", err)
	}
	defer rows.Close()

	rec := &domain.WatcherRecord{Address: address, Watchers: make(map[string]domain.WatcherInfo)}
	for rows.Next() {
		var userID string
		var info domain.WatcherInfo
		if err := rows.Scan(&userID, &info.Nickname, &info.AddedAt); err != nil {
			return nil, fmt.Errorf("scan watcher: %w", err)
		}
		rec.Watchers[userID] = info
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate watchers: %w", err)
	}

	if len(rec.Watchers) == 0 {
		return nil, storage.ErrNotFound
	}
	return rec, nil
}

// GetMany retrieves records for the given addresses in one round trip.
func (s *WatcherRegistryStore) GetMany(ctx context.Context, addresses []string) (map[string]*domain.WatcherRecord, error) {
	result := make(map[string]*domain.WatcherRecord)
	if len(addresses) == 0 {
		return result, nil
	}

	query := `SELECT address, user_id, nickname, added_at FROM watchers WHERE address = ANY($1)`

	rows, err := s.pool.Query(ctx, query, addresses)
	if err != nil {
		return nil, fmt.Errorf("get many watchers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var address, userID string
		var info domain.WatcherInfo
		if err := rows.Scan(&address, &userID, &info.Nickname, &info.AddedAt); err != nil {
			return nil, fmt.Errorf("scan watcher: %w", err)
		}
		rec, ok := result[address]
		if !ok {
			rec = &domain.WatcherRecord{Address: address, Watchers: make(map[string]domain.WatcherInfo)}
			result[address] = rec
		}
		rec.Watchers[userID] = info
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate watchers: %w", err)
	}
	return result, nil
}

// ListAddresses returns every watched address.
func (s *WatcherRegistryStore) ListAddresses(ctx context.Context) ([]string, error) {
	query := `SELECT DISTINCT address FROM watchers`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	defer rows.Close()

	var addresses []string
	for rows.Next() {
		var address string
		if err := rows.Scan(&address); err != nil {
			return nil, fmt.Errorf("scan address: %w", err)
		}
		addresses = append(addresses, address)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate addresses: %w", err)
	}
	return addresses, nil
}

// ReplaceAll swaps the whole registry inside one transaction so readers
// never observe a mix of old and new epochs.
func (s *WatcherRegistryStore) ReplaceAll(ctx context.Context, records []*domain.WatcherRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM watchers`); err != nil {
		return fmt.Errorf("clear watchers: %w", err)
	}

	query := `INSERT INTO watchers (address, user_id, nickname, added_at) VALUES ($1, $2, $3, $4)`
	for _, rec := range records {
		if rec == nil || rec.Address == "" {
			return storage.ErrInvalidInput
		}
		for userID, info := range rec.Watchers {
			if _, err := tx.Exec(ctx, query, rec.Address, userID, info.Nickname, info.AddedAt); err != nil {
				return fmt.Errorf("insert watcher: %w", err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
