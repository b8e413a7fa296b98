package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// DefaultWebPushTTL is how long the push service keeps an undelivered
// message before dropping it.
const DefaultWebPushTTL = 24 * time.Hour

// DeliveryError is a web-push send rejected by the push service.
type DeliveryError struct {
	StatusCode int
	Body       string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("push service rejected delivery: status %d: %s", e.StatusCode, e.Body)
}

// IsPermanent reports whether err marks an endpoint that will never accept
// delivery again: gone (410), not found (404) or rejected as malformed
// (400). Rate limits and server errors are transient.
func IsPermanent(err error) bool {
	var de *DeliveryError
	if !errors.As(err, &de) {
		return false
	}
	switch de.StatusCode {
	case http.StatusBadRequest, http.StatusNotFound, http.StatusGone:
		return true
	}
	return false
}

// WebPushClient sends one message directly to a subscription's endpoint.
type WebPushClient struct {
	client *http.Client
	ttl    time.Duration
}

// WebPushOption configures WebPushClient.
type WebPushOption func(*WebPushClient)

// WithWebPushHTTPClient sets a custom http.Client.
func WithWebPushHTTPClient(client *http.Client) WebPushOption {
	return func(c *WebPushClient) {
		c.client = client
	}
}

// WithWebPushTTL sets the push service retention TTL.
func WithWebPushTTL(ttl time.Duration) WebPushOption {
	return func(c *WebPushClient) {
		c.ttl = ttl
	}
}

// NewWebPushClient creates a web-push delivery client.
func NewWebPushClient(opts ...WebPushOption) *WebPushClient {
	c := &WebPushClient{
		client: &http.Client{Timeout: DefaultSendTimeout},
		ttl:    DefaultWebPushTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ SubscriptionSender = (*WebPushClient)(nil)

type webPushPayload struct {
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	DeepLink string            `json:"deepLink,omitempty"`
	Data     map[string]string `json:"data,omitempty"`
}

// Send posts msg to the subscription's endpoint. A *DeliveryError is
// returned for non-2xx responses so the caller can classify permanence.
func (c *WebPushClient) Send(ctx context.Context, sub *Subscription, msg *Message) error {
	body, err := json.Marshal(webPushPayload{
		Title:    msg.Title,
		Body:     msg.Body,
		DeepLink: msg.DeepLink,
		Data:     msg.Data,
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("TTL", strconv.Itoa(int(c.ttl.Seconds())))

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		buf := make([]byte, 512)
		n, _ := resp.Body.Read(buf)
		return &DeliveryError{StatusCode: resp.StatusCode, Body: string(buf[:n])}
	}
	return nil
}
