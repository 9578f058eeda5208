// Package transport provides the shared HTTP JSON client the concrete
// adapters build on: bearer authentication, per-adapter rate limiting,
// and the common retry policy for transient backend failures.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/videoflow/types"
)

// Config controls one adapter's transport behavior.
type Config struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	// RateLimit is requests per second against the backend; zero disables
	// local rate limiting.
	RateLimit float64
	// Headers are sent on every request in addition to the auth header.
	Headers map[string]string
}

// Client is a reusable JSON HTTP client scoped to one adapter instance.
// The underlying http.Client is created lazily and recreated after Close,
// so a closed adapter can be used again without leaking connections.
type Client struct {
	cfg     Config
	logger  *zap.Logger
	limiter *rate.Limiter

	mu   sync.Mutex
	http *http.Client

	// sleep is swapped out in tests to avoid real backoff waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a transport client. A nil logger falls back to a nop
// logger.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return &Client{
		cfg:     cfg,
		logger:  logger,
		limiter: limiter,
		sleep:   sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func (c *Client) client() *http.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.http == nil {
		c.http = &http.Client{Timeout: c.cfg.Timeout}
	}
	return c.http
}

// Close releases idle connections and drops the session; the next call
// creates a fresh one.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.http != nil {
		c.http.CloseIdleConnections()
		c.http = nil
	}
}

// DoJSON issues one JSON request against path (joined to BaseURL) and
// decodes the response body into out when out is non-nil.
//
// Retry policy: HTTP 429 and transport-level failures are retried up to
// MaxRetries times with exponential backoff (2^attempt seconds, or the
// backend's Retry-After header when present). HTTP 400, 401 and 402 fail
// immediately with distinguishable error codes; any other non-2xx status
// fails immediately as an upstream error.
func (c *Client) DoJSON(ctx context.Context, method, path string, body, out any) error {
	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return types.NewError(types.ErrInvalidRequest, "failed to encode request body").WithCause(err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return types.NewError(types.ErrNetwork, "rate limiter wait cancelled").WithCause(err)
			}
		}

		retryAfter, err := c.doOnce(ctx, method, url, payload, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !types.IsRetryable(err) {
			return err
		}
		if attempt == c.cfg.MaxRetries {
			break
		}

		delay := time.Duration(1<<uint(attempt)) * time.Second
		if retryAfter > 0 {
			delay = retryAfter
		}
		c.logger.Debug("retrying backend request",
			zap.String("method", method),
			zap.String("url", url),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if serr := c.sleep(ctx, delay); serr != nil {
			return types.NewError(types.ErrNetwork, "retry cancelled").WithCause(serr)
		}
	}

	if e, ok := lastErr.(*types.Error); ok && e.Code == types.ErrRateLimited {
		return types.NewError(types.ErrRateLimited,
			fmt.Sprintf("rate limit persisted after %d retries", c.cfg.MaxRetries)).
			WithHTTPStatus(http.StatusTooManyRequests).WithCause(lastErr)
	}
	return types.NewError(types.ErrNetwork,
		fmt.Sprintf("network error after %d retries", c.cfg.MaxRetries)).WithCause(lastErr)
}

// doOnce performs a single request/response cycle. The returned duration
// is the backend's Retry-After hint for 429 responses, zero otherwise.
func (c *Client) doOnce(ctx context.Context, method, url string, payload []byte, out any) (time.Duration, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, types.NewError(types.ErrInvalidRequest, "failed to build request").WithCause(err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "videoflow/1.0")
	for k, v := range c.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client().Do(req)
	if err != nil {
		return 0, types.NewError(types.ErrNetwork, "request failed").WithRetryable(true).WithCause(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, types.NewError(types.ErrNetwork, "failed to read response").WithRetryable(true).WithCause(err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil || len(respBody) == 0 {
			return 0, nil
		}
		if err := json.Unmarshal(respBody, out); err != nil {
			return 0, types.NewError(types.ErrUpstream, "failed to decode response").
				WithHTTPStatus(resp.StatusCode).WithCause(err)
		}
		return 0, nil

	case resp.StatusCode == http.StatusTooManyRequests:
		return parseRetryAfter(resp.Header.Get("Retry-After")),
			types.NewError(types.ErrRateLimited, trim(respBody)).
				WithHTTPStatus(resp.StatusCode).WithRetryable(true)

	case resp.StatusCode == http.StatusBadRequest:
		return 0, types.NewError(types.ErrInvalidRequest, trim(respBody)).
			WithHTTPStatus(resp.StatusCode)

	case resp.StatusCode == http.StatusUnauthorized:
		return 0, types.NewError(types.ErrUnauthorized, trim(respBody)).
			WithHTTPStatus(resp.StatusCode)

	case resp.StatusCode == http.StatusPaymentRequired:
		return 0, types.NewError(types.ErrQuotaExceeded, trim(respBody)).
			WithHTTPStatus(resp.StatusCode)

	default:
		return 0, types.NewError(types.ErrUpstream,
			fmt.Sprintf("backend returned status %d: %s", resp.StatusCode, trim(respBody))).
			WithHTTPStatus(resp.StatusCode)
	}
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

func trim(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 300 {
		s = s[:300]
	}
	if s == "" {
		s = "(empty body)"
	}
	return s
}
