package aliasstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is where the viewer runs during local development.
const DefaultBaseURL = "http://localhost:3000"

// BypassHeader carries the deployment-protection bypass secret.
const BypassHeader = "x-vercel-protection-bypass"

const defaultFetchTimeout = 10 * time.Second

// Client reads merge tables over the viewer's /api/merges endpoint.
type Client struct {
	BaseURL      string
	BypassSecret string
	HTTPClient   *http.Client
}

// NewClient returns a Client with a 10 second timeout.
func NewClient(baseURL, bypassSecret string) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		BypassSecret: bypassSecret,
		HTTPClient:   &http.Client{Timeout: defaultFetchTimeout},
	}
}

// Fetch returns the merge table for account. Any network, status or decode failure wraps
// ErrUnavailable so callers can degrade instead of failing the run.
func (c *Client) Fetch(ctx context.Context, account string) (Merges, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: nil client", ErrUnavailable)
	}
	hc := c.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: defaultFetchTimeout}
	}
	base := strings.TrimRight(c.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	endpoint := base + "/api/merges?account=" + url.QueryEscape(strings.ToLower(account))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}
	if c.BypassSecret != "" {
		req.Header.Set(BypassHeader, c.BypassSecret)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: GET %s: status %d: %s", ErrUnavailable, endpoint, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var merges Merges
	if err := json.NewDecoder(resp.Body).Decode(&merges); err != nil {
		return nil, fmt.Errorf("%w: decode merges: %v", ErrUnavailable, err)
	}
	if merges == nil {
		merges = Merges{}
	}
	return merges, nil
}
