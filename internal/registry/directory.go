package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"solana-wallet-notifier/internal/domain"
	"solana-wallet-notifier/internal/storage"
)

// DefaultDirectoryTimeout bounds one account-registry API call.
const DefaultDirectoryTimeout = 15 * time.Second

// DirectoryClient implements SubscriberDirectory against the account
// registry's internal HTTP API.
type DirectoryClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// DirectoryOption configures DirectoryClient.
type DirectoryOption func(*DirectoryClient)

// WithDirectoryHTTPClient sets a custom http.Client.
func WithDirectoryHTTPClient(client *http.Client) DirectoryOption {
	return func(c *DirectoryClient) {
		c.client = client
	}
}

// NewDirectoryClient creates an account-registry client.
func NewDirectoryClient(baseURL, apiKey string, opts ...DirectoryOption) *DirectoryClient {
	c := &DirectoryClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: DefaultDirectoryTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ SubscriberDirectory = (*DirectoryClient)(nil)

type watchlistEntryPayload struct {
	OwnerID      string `json:"ownerId"`
	Address      string `json:"address,omitempty"`
	OnPlatform   bool   `json:"onPlatform,omitempty"`
	TargetUserID string `json:"targetUserId,omitempty"`
	Nickname     string `json:"nickname,omitempty"`
	AddedAt      int64  `json:"addedAt,omitempty"`
}

type profilePayload struct {
	UserID        string `json:"userId"`
	WalletAddress string `json:"walletAddress,omitempty"`
	Public        bool   `json:"public"`
	DisplayName   string `json:"displayName,omitempty"`
}

// ListWatchlists returns every subscriber's watchlist entries.
func (c *DirectoryClient) ListWatchlists(ctx context.Context) ([]*domain.WatchlistEntry, error) {
	var payload struct {
		Entries []watchlistEntryPayload `json:"entries"`
	}
	if err := c.get(ctx, "/internal/watchlists", &payload); err != nil {
		return nil, err
	}

	entries := make([]*domain.WatchlistEntry, 0, len(payload.Entries))
	for _, p := range payload.Entries {
		entries = append(entries, &domain.WatchlistEntry{
			OwnerID:      p.OwnerID,
			Address:      p.Address,
			OnPlatform:   p.OnPlatform,
			TargetUserID: p.TargetUserID,
			Nickname:     p.Nickname,
			AddedAt:      p.AddedAt,
		})
	}
	return entries, nil
}

// Profile returns one user's profile, or storage.ErrNotFound.
func (c *DirectoryClient) Profile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	var payload profilePayload
	err := c.get(ctx, "/internal/users/"+url.PathEscape(userID), &payload)
	if err != nil {
		return nil, err
	}
	return &domain.UserProfile{
		UserID:        payload.UserID,
		WalletAddress: payload.WalletAddress,
		Public:        payload.Public,
		DisplayName:   payload.DisplayName,
	}, nil
}

func (c *DirectoryClient) get(ctx context.Context, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return storage.ErrNotFound
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
