// Package httpclient is the outbound HTTP client the migration engine uses
// to talk to remote data-plane nodes: JSON and byte-stream helpers, retry
// with exponential backoff, and a per-client token-bucket rate limiter
// (C8).
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"replicator/internal/logging"
)

// ErrNotFound is returned when a request receives 404.
var ErrNotFound = errors.New("httpclient: not found")

// Config configures a Client.
type Config struct {
	// HTTPClient is the underlying transport. Defaults to a client with a
	// 30 second timeout if nil.
	HTTPClient *http.Client

	// RateLimit caps outbound requests per second across every call this
	// Client makes, whatever the remote node; zero means unlimited. Burst
	// defaults to 1 if RateLimit is set and Burst is zero.
	RateLimit rate.Limit
	Burst     int

	Retry  RetryPolicy
	Logger *slog.Logger
}

// Client is a rate-limited, retrying HTTP client. The rate limiter is
// shared across every call a single Client makes, regardless of how many
// distinct remote hosts the caller addresses with it.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
	retry   RetryPolicy
	logger  *slog.Logger
}

// New returns a Client. A zero RateLimit means no limiting.
func New(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}

	retry := cfg.Retry
	if retry.MaxAttempts == 0 {
		retry = DefaultRetryPolicy
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(cfg.RateLimit, burst)
	}

	return &Client{
		http:    hc,
		limiter: limiter,
		retry:   retry,
		logger:  logging.Default(cfg.Logger).With("component", "httpclient"),
	}
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// Head issues a HEAD request and returns the response status code. A
// non-retryable status (200, 404, any other 2xx-4xx outside 408/429) is
// returned as data with a nil error; callers compare against
// http.StatusOK/http.StatusNotFound themselves (used for the migration
// engine's destination existence check, §4.7). A 5xx, 408 or 429 is retried
// and, once attempts are exhausted, returned as an error.
func (c *Client) Head(ctx context.Context, url string) (int, error) {
	var status int
	err := do(ctx, c.retry, func(ctx context.Context) (int, error) {
		if err := c.wait(ctx); err != nil {
			return 0, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
		if err != nil {
			return 0, err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return 0, err
		}
		resp.Body.Close()
		status = resp.StatusCode
		// A HEAD that reports 404 (or any other non-retryable status) is an
		// answer, not a transient failure to retry; the caller distinguishes
		// 200 from 404 itself (§4.7 step 2).
		if !retryableStatus(status) {
			return status, nil
		}
		return status, &statusError{status: status}
	})
	return status, err
}

// GetBytes issues a GET request and returns the full response body.
func (c *Client) GetBytes(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	err := do(ctx, c.retry, func(ctx context.Context) (int, error) {
		if err := c.wait(ctx); err != nil {
			return 0, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return 0, err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return 0, err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return resp.StatusCode, ErrNotFound
		}
		if resp.StatusCode != http.StatusOK {
			return resp.StatusCode, &statusError{status: resp.StatusCode}
		}
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return resp.StatusCode, err
		}
		body = b
		return resp.StatusCode, nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// PutBytes issues a PUT request with body as the request payload.
func (c *Client) PutBytes(ctx context.Context, url string, body []byte) error {
	return do(ctx, c.retry, func(ctx context.Context) (int, error) {
		if err := c.wait(ctx); err != nil {
			return 0, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
		if err != nil {
			return 0, err
		}
		req.ContentLength = int64(len(body))
		resp, err := c.http.Do(req)
		if err != nil {
			return 0, err
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)
		return checkPutStatus(resp.StatusCode)
	})
}

// checkPutStatus classifies the response to a PUT: any 2xx is success,
// everything else is wrapped so do can decide whether it's worth retrying.
func checkPutStatus(status int) (int, error) {
	if status >= 200 && status < 300 {
		return status, nil
	}
	return status, &statusError{status: status}
}

// GetJSON issues a GET request and decodes a JSON response body into out.
func (c *Client) GetJSON(ctx context.Context, url string, out any) error {
	body, err := c.GetBytes(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("httpclient: decode response from %s: %w", url, err)
	}
	return nil
}

// PutJSON issues a PUT request with in JSON-encoded as the request body.
func (c *Client) PutJSON(ctx context.Context, url string, in any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("httpclient: encode request to %s: %w", url, err)
	}
	return do(ctx, c.retry, func(ctx context.Context) (int, error) {
		if err := c.wait(ctx); err != nil {
			return 0, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
		if err != nil {
			return 0, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.ContentLength = int64(len(body))
		resp, err := c.http.Do(req)
		if err != nil {
			return 0, err
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)
		return checkPutStatus(resp.StatusCode)
	})
}
