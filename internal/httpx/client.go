// Package httpx wraps net/http with the small JSON/form surface the rest of
// the codebase needs: bounded retries, exponential backoff, and errors that
// carry a truncated response body.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a thin wrapper around http.Client. Retries default to zero:
// observation-path calls fire once and report failure rather than hammering
// metered APIs.
type Client struct {
	client  *http.Client
	retries int
	backoff time.Duration
}

// New builds a Client. Non-positive timeout falls back to 15s, non-positive
// backoff to 300ms, negative retries to zero.
func New(timeout time.Duration, retries int, backoff time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if retries < 0 {
		retries = 0
	}
	if backoff <= 0 {
		backoff = 300 * time.Millisecond
	}
	return &Client{
		client:  &http.Client{Timeout: timeout},
		retries: retries,
		backoff: backoff,
	}
}

// DoJSON sends body as JSON and decodes a 2xx response into out. out may be
// nil to discard the response.
func (c *Client) DoJSON(ctx context.Context, method, rawURL string, headers map[string]string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		payload = b
	}
	data, err := c.do(ctx, method, rawURL, headers, "application/json", payload)
	if err != nil {
		return err
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response from %s: %w", rawURL, err)
	}
	return nil
}

// DoForm sends form as application/x-www-form-urlencoded and decodes a 2xx
// response into out.
func (c *Client) DoForm(ctx context.Context, method, rawURL string, form url.Values, out interface{}) error {
	data, err := c.do(ctx, method, rawURL, nil, "application/x-www-form-urlencoded", []byte(form.Encode()))
	if err != nil {
		return err
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response from %s: %w", rawURL, err)
	}
	return nil
}

// DoBytes sends body as JSON and returns the raw 2xx response body. Used for
// binary payloads like imagery tiles.
func (c *Client) DoBytes(ctx context.Context, method, rawURL string, headers map[string]string, body interface{}) ([]byte, error) {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		payload = b
	}
	return c.do(ctx, method, rawURL, headers, "application/json", payload)
}

func (c *Client) do(ctx context.Context, method, rawURL string, headers map[string]string, contentType string, payload []byte) ([]byte, error) {
	tries := c.retries + 1
	var lastErr error
	for attempt := 0; attempt < tries; attempt++ {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
		if err != nil {
			return nil, fmt.Errorf("build request %s %s: %w", method, rawURL, err)
		}
		if payload != nil {
			req.Header.Set("Content-Type", contentType)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		data, err := c.roundTrip(req)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if attempt+1 >= tries {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.backoff * time.Duration(1<<attempt)):
		}
	}
	return nil, lastErr
}

func (c *Client) roundTrip(req *http.Request) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("http %s %s: status %d: %s", req.Method, req.URL, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response from %s: %w", req.URL, err)
	}
	return data, nil
}
