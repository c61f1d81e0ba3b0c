// Package rpc fetches pool, member, price and yield data from the upstream HTTP APIs.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/xchpool-tools/xchpool-stats/internal/util"
)

// maxBodySize caps how much of an upstream response is read
const maxBodySize = 4 << 20

// Client issues JSON requests to upstream APIs and tracks their health
type Client struct {
	client    *http.Client
	userAgent string

	// Health tracking
	mu           sync.RWMutex
	healthy      bool
	lastCheck    time.Time
	successCount int
	failCount    int
}

// NewClient creates a new JSON client with the given per-request timeout
func NewClient(timeout time.Duration) *Client {
	return &Client{
		client: &http.Client{
			Timeout: timeout,
		},
		userAgent: "xchpool-stats",
		healthy:   true,
	}
}

// SetTransport replaces the HTTP transport, e.g. with an instrumented one
func (c *Client) SetTransport(rt http.RoundTripper) {
	c.client.Transport = rt
}

// Timeout returns the configured per-request timeout
func (c *Client) Timeout() time.Duration {
	return c.client.Timeout
}

// GetJSON fetches url and decodes the JSON body into out
func (c *Client) GetJSON(ctx context.Context, source, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &FetchError{Source: source, Err: err}
	}
	return c.do(source, req, out)
}

// PostJSON posts body as JSON to url and decodes the JSON response into out
func (c *Client) PostJSON(ctx context.Context, source, url string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", source, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return &FetchError{Source: source, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(source, req, out)
}

func (c *Client) do(source string, req *http.Request, out interface{}) error {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.recordFailure()
		return &FetchError{Source: source, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		c.recordFailure()
		return &FetchError{Source: source, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.recordFailure()
		return &FetchError{Source: source, StatusCode: resp.StatusCode}
	}

	if err := json.Unmarshal(body, out); err != nil {
		c.recordFailure()
		field := "body"
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			field = typeErr.Field
		}
		return &ParseError{Source: source, Field: field, Err: err}
	}

	c.recordSuccess()
	util.Debugw("upstream request", "source", source, "method", req.Method,
		"status", resp.StatusCode, "elapsed", time.Since(start))
	return nil
}

// recordSuccess records a successful request
func (c *Client) recordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.successCount++
	c.failCount = 0
	c.healthy = true
	c.lastCheck = time.Now()
}

// recordFailure records a failed request
func (c *Client) recordFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failCount++
	if c.failCount >= 3 && c.healthy {
		c.healthy = false
		util.Warnf("upstream APIs marked unhealthy after %d consecutive failures", c.failCount)
	}
	c.lastCheck = time.Now()
}

// IsHealthy returns whether recent requests succeeded
func (c *Client) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.healthy
}

// LastCheck returns the time of the last completed request
func (c *Client) LastCheck() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastCheck
}
