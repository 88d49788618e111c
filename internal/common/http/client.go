// internal/common/http/client.go
package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	DefaultMaxBytes  = 64 << 20
	defaultUserAgent = "designgen/1.0"
)

// Client is the shared outbound HTTP client for template and asset downloads.
type Client struct {
	httpClient *http.Client
	maxBytes   int64
	userAgent  string
}

type ClientOption func(*Client)

// WithMaxBytes caps the size of a downloaded body.
func WithMaxBytes(n int64) ClientOption {
	return func(c *Client) { c.maxBytes = n }
}

func NewClient(timeout time.Duration, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		maxBytes:   DefaultMaxBytes,
		userAgent:  defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetBytes downloads url and returns the body and its content type. Non-2xx responses are errors.
func (c *Client) GetBytes(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("get %s: unexpected status %s", url, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", url, err)
	}
	if int64(len(body)) > c.maxBytes {
		return nil, "", fmt.Errorf("get %s: body exceeds %d bytes", url, c.maxBytes)
	}
	return body, resp.Header.Get("Content-Type"), nil
}
