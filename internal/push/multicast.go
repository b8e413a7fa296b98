package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultSendTimeout bounds one delivery call. Sends are best-effort and
// retried implicitly by the next activity event, so the timeout is short.
const DefaultSendTimeout = 10 * time.Second

// Error codes the multicast API reports for endpoints that will never
// accept delivery again.
var permanentMulticastErrors = map[string]bool{
	"NotRegistered":       true,
	"InvalidRegistration": true,
	"MismatchSenderId":    true,
}

// MulticastClient sends one message to a batch of device tokens through
// the multicast delivery API.
type MulticastClient struct {
	endpoint  string
	serverKey string
	client    *http.Client
}

// MulticastOption configures MulticastClient.
type MulticastOption func(*MulticastClient)

// WithMulticastHTTPClient sets a custom http.Client.
func WithMulticastHTTPClient(client *http.Client) MulticastOption {
	return func(c *MulticastClient) {
		c.client = client
	}
}

// NewMulticastClient creates a multicast delivery client.
func NewMulticastClient(endpoint, serverKey string, opts ...MulticastOption) *MulticastClient {
	c := &MulticastClient{
		endpoint:  endpoint,
		serverKey: serverKey,
		client:    &http.Client{Timeout: DefaultSendTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ MulticastSender = (*MulticastClient)(nil)

type multicastRequest struct {
	RegistrationIDs []string              `json:"registration_ids"`
	Notification    multicastNotification `json:"notification"`
	Data            map[string]string     `json:"data,omitempty"`
}

type multicastNotification struct {
	Title       string `json:"title"`
	Body        string `json:"body"`
	ClickAction string `json:"click_action,omitempty"`
}

type multicastResponse struct {
	Results []struct {
		MessageID string `json:"message_id"`
		Error     string `json:"error"`
	} `json:"results"`
}

// Send delivers msg to every token in one batch call. The returned slice
// has one entry per token, in order, with permanent invalidity classified
// from the API's per-token error code.
func (c *MulticastClient) Send(ctx context.Context, tokens []string, msg *Message) ([]SendResult, error) {
	payload := multicastRequest{
		RegistrationIDs: tokens,
		Notification: multicastNotification{
			Title:       msg.Title,
			Body:        msg.Body,
			ClickAction: msg.DeepLink,
		},
		Data: msg.Data,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+c.serverKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed multicastResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if len(parsed.Results) != len(tokens) {
		return nil, fmt.Errorf("result count %d does not match token count %d", len(parsed.Results), len(tokens))
	}

	results := make([]SendResult, len(tokens))
	for i, r := range parsed.Results {
		results[i].Token = tokens[i]
		if r.Error != "" {
			results[i].Err = fmt.Errorf("multicast delivery: %s", r.Error)
			results[i].Permanent = permanentMulticastErrors[r.Error]
		}
	}
	return results, nil
}
