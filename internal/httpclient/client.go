// Package httpclient provides the retrying HTTP client shared by every LLM
// provider (SPEC_FULL.md §4.3): jittered exponential backoff, Retry-After
// honoring, and body replay across attempts.
package httpclient

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/adnify/agentcore/internal/apperror"
)

// RetryStrategy selects how calculateDelay behaves for a given status code.
type RetryStrategy int

const (
	NoRetry RetryStrategy = iota
	ConservativeRetry
	SmartRetry
)

// Option configures a Client via the functional-options pattern.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

func WithBaseDelay(d time.Duration) Option {
	return func(c *Client) { c.baseDelay = d }
}

func WithMaxDelay(d time.Duration) Option {
	return func(c *Client) { c.maxDelay = d }
}

func WithRetryStrategy(f func(status int) RetryStrategy) Option {
	return func(c *Client) { c.strategy = f }
}

// Client retries idempotent-enough requests (bodies are buffered and
// replayed) using the error classification table of SPEC_FULL.md §4.3.
type Client struct {
	http       *http.Client
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	strategy   func(status int) RetryStrategy
}

// New builds a Client with the spec's defaults: 2 retries, 1s base delay
// (factor 2), capped at 4s.
func New(opts ...Option) *Client {
	c := &Client{
		http:       &http.Client{Timeout: 120 * time.Second},
		maxRetries: 2,
		baseDelay:  1 * time.Second,
		maxDelay:   4 * time.Second,
		strategy:   DefaultStrategy,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DefaultStrategy implements the SPEC_FULL.md §4.3 error table's retryable
// column for HTTP status codes.
func DefaultStrategy(status int) RetryStrategy {
	switch status {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return SmartRetry
	case http.StatusRequestTimeout, http.StatusInternalServerError, http.StatusBadGateway, http.StatusGatewayTimeout:
		return ConservativeRetry
	default:
		return NoRetry
	}
}

// Do executes req, replaying its body across retry attempts as needed.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	var bodyBytes []byte
	if req.Body != nil {
		b, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, apperror.Wrap(apperror.NetworkError, "reading request body", err)
		}
		bodyBytes = b
		req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = apperror.Wrap(apperror.NetworkError, "request failed", err)
			if attempt == c.maxRetries || req.Context().Err() != nil {
				return nil, lastErr
			}
			c.sleep(req.Context(), attempt, 0)
			continue
		}

		strategy := c.strategy(resp.StatusCode)
		if strategy == NoRetry || attempt == c.maxRetries {
			return resp, nil
		}

		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		resp.Body.Close()
		c.logRetry(resp.StatusCode, attempt)
		c.sleep(req.Context(), attempt, retryAfter)
	}
	return nil, lastErr
}

func (c *Client) sleep(ctx context.Context, attempt int, retryAfter time.Duration) {
	delay := c.calculateDelay(attempt, retryAfter)
	select {
	case <-time.After(delay):
	case <-ctx.Done():
	}
}

func (c *Client) calculateDelay(attempt int, retryAfter time.Duration) time.Duration {
	if retryAfter > 0 {
		if retryAfter > c.maxDelay {
			return c.maxDelay
		}
		return retryAfter
	}
	base := float64(c.baseDelay) * math.Pow(2, float64(attempt))
	jitter := 1 + (rand.Float64()*0.2 - 0.1) // +/-10%
	delay := time.Duration(base * jitter)
	if delay > c.maxDelay {
		delay = c.maxDelay
	}
	return delay
}

func (c *Client) logRetry(status, attempt int) {
	slog.Debug("retrying http request", "status", status, "attempt", attempt)
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return 0
}

// RetryableError wraps a non-2xx response so callers can inspect status and
// still use errors.Is/errors.As against the stdlib chain.
type RetryableError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *RetryableError) Error() string {
	return e.Message
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

func (e *RetryableError) IsRetryable() bool {
	return DefaultStrategy(e.StatusCode) != NoRetry
}
