package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// Client performs provider GET requests and caches successful bodies.
type Client struct {
	http     *http.Client
	cache    Cache
	cacheTTL time.Duration
}

// NewClient returns a Client. cache may be nil to disable caching.
func NewClient(timeout time.Duration, cache Cache, cacheTTL time.Duration) *Client {
	return &Client{
		http:     &http.Client{Timeout: timeout},
		cache:    cache,
		cacheTTL: cacheTTL,
	}
}

// failureEnvelope is implemented by responses that report provider errors
// inside a 200 body. Failed envelopes are not cached.
type failureEnvelope interface {
	failed() bool
}

// getJSON fetches rawURL and decodes the body into v. Only 200 responses that
// decode cleanly and do not report a failure are cached.
func (c *Client) getJSON(ctx context.Context, rawURL string, v any) error {
	key := cacheKey(rawURL)
	body, cached := c.cached(ctx, key)
	if !cached {
		var err error
		if body, err = c.fetch(ctx, rawURL); err != nil {
			return err
		}
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrProvider, redactURL(rawURL), err)
	}
	if cached || c.cache == nil || c.cacheTTL <= 0 {
		return nil
	}
	if env, ok := v.(failureEnvelope); ok && env.failed() {
		return nil
	}
	if err := c.cache.Set(ctx, key, body, c.cacheTTL); err != nil {
		slog.Warn("tools cache write failed", "error", err)
	}
	return nil
}

func (c *Client) cached(ctx context.Context, key string) ([]byte, bool) {
	if c.cache == nil {
		return nil, false
	}
	body, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		slog.Warn("tools cache read failed", "error", err)
		return nil, false
	}
	return body, ok
}

func (c *Client) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrProvider, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrProvider, redactURL(rawURL), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrProvider, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned status %d", ErrProvider, redactURL(rawURL), resp.StatusCode)
	}
	return body, nil
}

// redactURL drops the query string, which carries API keys for some providers.
func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid url>"
	}
	u.RawQuery = ""
	return u.String()
}
