// Package enrich calls the external product-data source and turns its
// answers into product updates and deferred asset downloads. The source
// is treated as unreliable and slow: every call carries a bounded timeout
// and failures surface as warnings, never as import errors.
package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Result is the external source's answer for one GTIN.
type Result struct {
	Name           string   `json:"name"`
	Brand          string   `json:"brand"`
	Description    string   `json:"description"`
	EnrichedFields []string `json:"enriched_fields"`
	MediaURLs      []string `json:"media_urls"`
	DocumentURLs   []string `json:"document_urls"`
	Errors         []string `json:"errors"`
	Warnings       []string `json:"warnings"`
}

// ErrNotFound indicates the source knows nothing about the GTIN.
var ErrNotFound = errors.New("enrich: gtin not found")

// LookupPort fetches structured attributes for a GTIN.
type LookupPort interface {
	Lookup(ctx context.Context, gtin string) (Result, error)
}

// ClientConfig configures the HTTP lookup client.
type ClientConfig struct {
	BaseURL string
	APIKey  string
	// Timeout bounds one lookup; defaults to 8s.
	Timeout time.Duration
}

// Client is the HTTP implementation of LookupPort.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewClient constructs a lookup client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("enrich: base url required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
	}, nil
}

// Lookup fetches product data for the GTIN.
func (c *Client) Lookup(ctx context.Context, gtin string) (Result, error) {
	endpoint := c.baseURL + "/v1/products/" + url.PathEscape(gtin)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("enrich: lookup %s: %w", gtin, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return Result{}, ErrNotFound
	default:
		return Result{}, fmt.Errorf("enrich: lookup %s: status %d", gtin, resp.StatusCode)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Result{}, fmt.Errorf("enrich: decode response: %w", err)
	}
	return result, nil
}
