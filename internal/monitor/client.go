package monitor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// Client implements AddressMonitor against the provider's webhook
// management HTTP API. Edits replace the whole address list upstream, so
// add/remove are read-modify-write.
type Client struct {
	baseURL     string
	apiKey      string
	webhookID   string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// NewClient creates a webhook management client for one subscription.
func NewClient(baseURL, apiKey, webhookID string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:     baseURL,
		apiKey:      apiKey,
		webhookID:   webhookID,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile-time interface check.
var _ AddressMonitor = (*Client)(nil)

// webhookState is the provider's subscription representation.
type webhookState struct {
	WebhookID        string   `json:"webhookID,omitempty"`
	AccountAddresses []string `json:"accountAddresses"`
}

// WebhookID identifies the provider-side subscription.
func (c *Client) WebhookID() string {
	return c.webhookID
}

// MonitoredAddresses returns the addresses currently monitored upstream.
func (c *Client) MonitoredAddresses(ctx context.Context) ([]string, error) {
	var state webhookState
	if err := c.do(ctx, http.MethodGet, nil, &state); err != nil {
		return nil, fmt.Errorf("fetch webhook state: %w", err)
	}
	return state.AccountAddresses, nil
}

// AddAddresses starts monitoring the given addresses.
func (c *Client) AddAddresses(ctx context.Context, addresses []string) error {
	if len(addresses) == 0 {
		return nil
	}
	return c.edit(ctx, func(current []string) []string {
		seen := make(map[string]struct{}, len(current))
		merged := make([]string, 0, len(current)+len(addresses))
		for _, a := range current {
			seen[a] = struct{}{}
			merged = append(merged, a)
		}
		for _, a := range addresses {
			if _, ok := seen[a]; !ok {
				seen[a] = struct{}{}
				merged = append(merged, a)
			}
		}
		return merged
	})
}

// RemoveAddresses stops monitoring the given addresses.
func (c *Client) RemoveAddresses(ctx context.Context, addresses []string) error {
	if len(addresses) == 0 {
		return nil
	}
	drop := make(map[string]struct{}, len(addresses))
	for _, a := range addresses {
		drop[a] = struct{}{}
	}
	return c.edit(ctx, func(current []string) []string {
		kept := make([]string, 0, len(current))
		for _, a := range current {
			if _, ok := drop[a]; !ok {
				kept = append(kept, a)
			}
		}
		return kept
	})
}

// edit applies a read-modify-write update to the monitored address list.
func (c *Client) edit(ctx context.Context, apply func([]string) []string) error {
	current, err := c.MonitoredAddresses(ctx)
	if err != nil {
		return err
	}

	next := apply(current)
	if len(next) == len(current) && sameSet(current, next) {
		return nil // nothing to resubscribe
	}

	body := webhookState{AccountAddresses: next}
	if err := c.do(ctx, http.MethodPut, &body, nil); err != nil {
		return fmt.Errorf("edit webhook addresses: %w", err)
	}
	return nil
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, s := range a {
		set[s] = struct{}{}
	}
	for _, s := range b {
		if _, ok := set[s]; !ok {
			return false
		}
	}
	return true
}

// do performs one API call with retries and exponential backoff.
func (c *Client) do(ctx context.Context, method string, payload, result interface{}) error {
	url := fmt.Sprintf("%s/v0/webhooks/%s?api-key=%s", c.baseURL, c.webhookID, c.apiKey)

	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			// Exponential backoff
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
			continue
		}

		if result != nil {
			if err := json.Unmarshal(respBody, result); err != nil {
				return fmt.Errorf("unmarshal response: %w", err)
			}
		}
		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}
