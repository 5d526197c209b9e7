// Package source fetches candidate redeem codes from external upstreams.
// Fetches never return an error to the caller: any network, HTTP-status or
// parse failure is logged, counted and yields an empty candidate list for
// that game in that cycle only.
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Upstreams are third-party sites; present a browser User-Agent and keep
// request volume polite.
const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

const maxBodyBytes = 4 << 20 // 4MB

// Client is a rate-limited HTTP client shared by all source adapters.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a source client with the given request timeout and a
// global rate limit across all upstreams.
func NewClient(timeout time.Duration, rps float64, burst int) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Get fetches the URL and returns the response body. Non-2xx statuses are
// errors.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	return body, nil
}
