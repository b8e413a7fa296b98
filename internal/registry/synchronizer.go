// Package registry maintains the reverse indexes that drive notification
// fan-out: which users watch which address, and who follows whom.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log"

	"solana-wallet-notifier/internal/domain"
	"solana-wallet-notifier/internal/monitor"
	"solana-wallet-notifier/internal/storage"
	"solana-wallet-notifier/internal/wallet"
)

// SubscriberDirectory is the external account registry: watchlists and
// user profiles live there, the pipeline only reads them.
type SubscriberDirectory interface {
	// ListWatchlists returns every subscriber's watchlist entries.
	ListWatchlists(ctx context.Context) ([]*domain.WatchlistEntry, error)

	// Profile returns a user's profile, or storage.ErrNotFound.
	Profile(ctx context.Context, userID string) (*domain.UserProfile, error)
}

// Synchronizer rebuilds the watcher registry and follower index from
// watchlists, either one mutation at a time or from scratch, and keeps the
// upstream monitored address list a superset of the registry's keys.
type Synchronizer struct {
	registry  storage.WatcherRegistryStore
	followers storage.FollowerIndexStore
	directory SubscriberDirectory
	monitor   monitor.AddressMonitor // may be nil in tests and memory mode
	logger    *log.Logger
}

// Options configures a Synchronizer.
type Options struct {
	Registry  storage.WatcherRegistryStore
	Followers storage.FollowerIndexStore
	Directory SubscriberDirectory
	Monitor   monitor.AddressMonitor
	Logger    *log.Logger
}

// NewSynchronizer creates a Synchronizer.
func NewSynchronizer(opts Options) *Synchronizer {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Synchronizer{
		registry:  opts.Registry,
		followers: opts.Followers,
		directory: opts.Directory,
		monitor:   opts.Monitor,
		logger:    logger,
	}
}

// ResyncResult reports the outcome of a full resync.
type ResyncResult struct {
	WebhookID        string
	WalletsMonitored int
}

// ApplyAdd applies one watchlist add: upserts the watcher under the
// entry's effective address and, for on-platform entries, records the
// follower edge. The upstream monitored list is updated for the delta.
func (s *Synchronizer) ApplyAdd(ctx context.Context, entry *domain.WatchlistEntry) error {
	if entry == nil || entry.OwnerID == "" {
		return storage.ErrInvalidInput
	}

	target, err := s.resolveTarget(ctx, entry)
	if err != nil {
		return err
	}

	address := entry.EffectiveAddress(target)
	if address == "" {
		return fmt.Errorf("watchlist entry for %s: %w", entry.OwnerID, storage.ErrInvalidInput)
	}
	if err := validateWatchable(address); err != nil {
		return fmt.Errorf("watchlist entry for %s: %w", entry.OwnerID, err)
	}

	info := domain.WatcherInfo{Nickname: entry.Nickname, AddedAt: entry.AddedAt}
	if err := s.registry.UpsertWatcher(ctx, address, entry.OwnerID, info); err != nil {
		return fmt.Errorf("upsert watcher: %w", err)
	}

	if entry.OnPlatform && target != nil {
		if err := s.followers.AddFollower(ctx, entry.TargetUserID, entry.OwnerID); err != nil {
			return fmt.Errorf("add follower: %w", err)
		}
	}

	return s.syncMonitor(ctx)
}

// ApplyRemove applies one watchlist removal. Removing the last watcher of
// an address deletes its record, which in turn unsubscribes the address
// upstream on the next monitor sync.
func (s *Synchronizer) ApplyRemove(ctx context.Context, entry *domain.WatchlistEntry) error {
	if entry == nil || entry.OwnerID == "" {
		return storage.ErrInvalidInput
	}

	target, err := s.resolveTarget(ctx, entry)
	if err != nil {
		return err
	}

	address := entry.EffectiveAddress(target)
	if address != "" {
		if err := s.registry.RemoveWatcher(ctx, address, entry.OwnerID); err != nil {
			return fmt.Errorf("remove watcher: %w", err)
		}
	}

	if entry.OnPlatform && entry.TargetUserID != "" {
		if err := s.followers.RemoveFollower(ctx, entry.TargetUserID, entry.OwnerID); err != nil {
			return fmt.Errorf("remove follower: %w", err)
		}
	}

	return s.syncMonitor(ctx)
}

// FullResync re-derives both indexes from every subscriber's watchlist.
// The replacement maps are staged in memory first so a partial failure
// never leaves the registry mixing old and new epochs; addresses absent
// from the recomputation are garbage-collected by the replace.
func (s *Synchronizer) FullResync(ctx context.Context) (*ResyncResult, error) {
	entries, err := s.directory.ListWatchlists(ctx)
	if err != nil {
		return nil, fmt.Errorf("list watchlists: %w", err)
	}

	records := make(map[string]*domain.WatcherRecord)
	followers := make(map[string][]string)
	profiles := make(map[string]*domain.UserProfile)

	for _, entry := range entries {
		if entry == nil || entry.OwnerID == "" {
			continue
		}

		var target *domain.UserProfile
		if entry.OnPlatform && entry.TargetUserID != "" {
			cached, ok := profiles[entry.TargetUserID]
			if !ok {
				cached, err = s.lookupProfile(ctx, entry.TargetUserID)
				if err != nil {
					return nil, err
				}
				profiles[entry.TargetUserID] = cached
			}
			target = cached
		}

		address := entry.EffectiveAddress(target)
		if address == "" {
			continue
		}
		if err := validateWatchable(address); err != nil {
			s.logger.Printf("skipping entry of %s: %v", entry.OwnerID, err)
			continue
		}

		rec, ok := records[address]
		if !ok {
			rec = &domain.WatcherRecord{Address: address, Watchers: make(map[string]domain.WatcherInfo)}
			records[address] = rec
		}
		rec.Watchers[entry.OwnerID] = domain.WatcherInfo{Nickname: entry.Nickname, AddedAt: entry.AddedAt}

		if entry.OnPlatform && target != nil && target.Public && target.WalletAddress != "" {
			followers[entry.TargetUserID] = append(followers[entry.TargetUserID], entry.OwnerID)
		}
	}

	staged := make([]*domain.WatcherRecord, 0, len(records))
	for _, rec := range records {
		staged = append(staged, rec)
	}

	if err := s.registry.ReplaceAll(ctx, staged); err != nil {
		return nil, fmt.Errorf("replace watcher registry: %w", err)
	}
	if err := s.followers.ReplaceAll(ctx, followers); err != nil {
		return nil, fmt.Errorf("replace follower index: %w", err)
	}

	if err := s.syncMonitor(ctx); err != nil {
		return nil, err
	}

	result := &ResyncResult{WalletsMonitored: len(records)}
	if s.monitor != nil {
		result.WebhookID = s.monitor.WebhookID()
	}
	return result, nil
}

// validateWatchable rejects addresses that can never act as wallets:
// malformed keys, and program-derived addresses, which are off-curve and
// never sign transactions themselves.
func validateWatchable(address string) error {
	if err := wallet.Validate(address); err != nil {
		return fmt.Errorf("address %s: %w", wallet.Shorten(address), storage.ErrInvalidInput)
	}
	if !wallet.IsOnCurve(address) {
		return fmt.Errorf("address %s is program-derived: %w", wallet.Shorten(address), storage.ErrInvalidInput)
	}
	return nil
}

// resolveTarget loads the on-platform target profile for an entry.
// A missing target is tolerated: the entry falls back to its raw address.
func (s *Synchronizer) resolveTarget(ctx context.Context, entry *domain.WatchlistEntry) (*domain.UserProfile, error) {
	if !entry.OnPlatform || entry.TargetUserID == "" {
		return nil, nil
	}
	return s.lookupProfile(ctx, entry.TargetUserID)
}

func (s *Synchronizer) lookupProfile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	profile, err := s.directory.Profile(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("profile %s: %w", userID, err)
	}
	return profile, nil
}

// syncMonitor diffs the registry's keys against the upstream monitored
// list and issues add/remove calls only for the delta.
func (s *Synchronizer) syncMonitor(ctx context.Context) error {
	if s.monitor == nil {
		return nil
	}

	registered, err := s.registry.ListAddresses(ctx)
	if err != nil {
		return fmt.Errorf("list registry addresses: %w", err)
	}
	monitored, err := s.monitor.MonitoredAddresses(ctx)
	if err != nil {
		return fmt.Errorf("list monitored addresses: %w", err)
	}

	want := make(map[string]struct{}, len(registered))
	for _, a := range registered {
		want[a] = struct{}{}
	}
	have := make(map[string]struct{}, len(monitored))
	for _, a := range monitored {
		have[a] = struct{}{}
	}

	var toAdd, toRemove []string
	for a := range want {
		if _, ok := have[a]; !ok {
			toAdd = append(toAdd, a)
		}
	}
	for a := range have {
		if _, ok := want[a]; !ok {
			toRemove = append(toRemove, a)
		}
	}

	if len(toAdd) > 0 {
		if err := s.monitor.AddAddresses(ctx, toAdd); err != nil {
			return fmt.Errorf("add monitored addresses: %w", err)
		}
	}
	if len(toRemove) > 0 {
		if err := s.monitor.RemoveAddresses(ctx, toRemove); err != nil {
			return fmt.Errorf("remove monitored addresses: %w", err)
		}
	}
	return nil
}
