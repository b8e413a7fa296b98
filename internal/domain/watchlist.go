package domain

// WatchlistEntry is one wallet a subscriber watches. Entries are created and
// removed by subscriber actions; the pipeline only reads them.
type WatchlistEntry struct {
	OwnerID      string // subscriber who owns this entry
	Address      string // raw chain address
	OnPlatform   bool   // true if the entry follows an on-platform user
	TargetUserID string // set iff OnPlatform
	Nickname     string // optional display name for the watched wallet
	AddedAt      int64  // Unix timestamp in milliseconds
}

// WatcherInfo is the per-watcher payload stored in a WatcherRecord.
type WatcherInfo struct {
	Nickname string
	AddedAt  int64
}

// WatcherRecord maps one effective address to everyone watching it.
// A record with no watchers must not exist in storage.
type WatcherRecord struct {
	Address  string
	Watchers map[string]WatcherInfo // keyed by watcher user id
}

// UserProfile is the subset of the external account registry the pipeline
// needs: whether a user is public and which wallet they have linked.
type UserProfile struct {
	UserID        string
	WalletAddress string
	Public        bool
	DisplayName   string
}

// EffectiveAddress resolves the address actually monitored for an entry.
// For on-platform entries it is the target user's linked wallet, but only
// while that target is public and wallet-linked; otherwise the entry falls
// back to its raw address. Returns "" if no address can be resolved.
func (e *WatchlistEntry) EffectiveAddress(target *UserProfile) string {
	if e.OnPlatform && target != nil && target.Public && target.WalletAddress != "" {
		return target.WalletAddress
	}
	return e.Address
}
