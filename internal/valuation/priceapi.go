package valuation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// PriceAPIClient queries an external price API for token prices and
// tickers. It serves as both the Oracle and the SymbolSource for the
// resolvers.
type PriceAPIClient struct {
	baseURL string
	client  *http.Client
}

// PriceAPIOption configures PriceAPIClient.
type PriceAPIOption func(*PriceAPIClient)

// WithPriceAPIHTTPClient sets a custom http.Client.
func WithPriceAPIHTTPClient(client *http.Client) PriceAPIOption {
	return func(c *PriceAPIClient) {
		c.client = client
	}
}

// NewPriceAPIClient creates a price API client.
func NewPriceAPIClient(baseURL string, opts ...PriceAPIOption) *PriceAPIClient {
	c := &PriceAPIClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: DefaultLookupTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var (
	_ Oracle       = (*PriceAPIClient)(nil)
	_ SymbolSource = (*PriceAPIClient)(nil)
)

type priceAPIEntry struct {
	Price      float64 `json:"price"`
	MintSymbol string  `json:"mintSymbol"`
}

type priceAPIResponse struct {
	Data map[string]priceAPIEntry `json:"data"`
}

// PriceUSD returns the current USD price for a mint.
func (c *PriceAPIClient) PriceUSD(ctx context.Context, mint string) (float64, error) {
	entry, err := c.lookup(ctx, mint)
	if err != nil {
		return 0, err
	}
	if entry.Price <= 0 {
		return 0, fmt.Errorf("no price for mint %s", mint)
	}
	return entry.Price, nil
}

// Symbol returns the human-readable ticker for a mint.
func (c *PriceAPIClient) Symbol(ctx context.Context, mint string) (string, error) {
	entry, err := c.lookup(ctx, mint)
	if err != nil {
		return "", err
	}
	if entry.MintSymbol == "" {
		return "", fmt.Errorf("no symbol for mint %s", mint)
	}
	return entry.MintSymbol, nil
}

func (c *PriceAPIClient) lookup(ctx context.Context, mint string) (*priceAPIEntry, error) {
	reqURL := fmt.Sprintf("%s/price?ids=%s", c.baseURL, url.QueryEscape(mint))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var parsed priceAPIResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	entry, ok := parsed.Data[mint]
	if !ok {
		return nil, fmt.Errorf("mint %s not in response", mint)
	}
	return &entry, nil
}
