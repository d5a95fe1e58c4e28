// SPDX-License-Identifier: MIT

// Package fetch is the HTTP transport collaborator used by the feed
// parsers and cache managers. Its contract is deliberately blunt: a call
// returns bytes or a classified error. Retry, backoff and status mapping
// live here so callers can distinguish transport failures from parse
// failures and retry the transport without re-parsing.
package fetch

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	xlog "github.com/asrawiee-collab/StreamHaven-sub004/internal/log"
	"github.com/asrawiee-collab/StreamHaven-sub004/internal/xerrors"
)

const (
	defaultUserAgent = "StreamHaven/1.0"
	defaultTimeout   = 90 * time.Second

	maxRetries     = 3
	initialBackoff = 2 * time.Second
	maxBackoff     = 60 * time.Second
)

// Client fetches URLs with bounded retries.
type Client struct {
	http    *http.Client
	ua      string
	retries int
	backoff backoffPolicy
	logger  zerolog.Logger
}

type backoffPolicy struct {
	initial time.Duration
	max     time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying transport client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.ua = ua }
}

// WithTimeout bounds each request attempt. Zero keeps the default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithRetryPolicy tunes retry count and backoff bounds.
func WithRetryPolicy(retries int, initial, max time.Duration) Option {
	return func(c *Client) {
		c.retries = retries
		c.backoff = backoffPolicy{initial: initial, max: max}
	}
}

// New builds a fetch client with sane defaults.
func New(opts ...Option) *Client {
	c := &Client{
		http:    &http.Client{Timeout: defaultTimeout},
		ua:      defaultUserAgent,
		retries: maxRetries,
		backoff: backoffPolicy{initial: initialBackoff, max: maxBackoff},
		logger:  xlog.WithComponent("fetch"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch GETs url and returns the response body. Transient statuses
// (429/423/408/5xx) are retried with exponential backoff, honoring
// Retry-After when the server provides one.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	err := c.do(ctx, url, func(r io.Reader) error {
		var readErr error
		body, readErr = io.ReadAll(r)
		return readErr
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// FetchTo GETs url and streams the response body into w, for large
// feeds that should never be held in memory whole.
func (c *Client) FetchTo(ctx context.Context, url string, w io.Writer) error {
	return c.do(ctx, url, func(r io.Reader) error {
		_, copyErr := io.Copy(w, r)
		return copyErr
	})
}

func (c *Client) do(ctx context.Context, url string, consume func(io.Reader) error) error {
	var lastErr error
	backoff := c.backoff.initial

	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, backoff); err != nil {
				return xerrors.Wrap(xerrors.ErrCancelled, "fetch "+url, err)
			}
			if backoff < c.backoff.max {
				backoff *= 2
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return xerrors.Wrap(xerrors.ErrNetwork, "fetch "+url, err)
		}
		req.Header.Set("User-Agent", c.ua)

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return xerrors.Wrap(xerrors.ErrCancelled, "fetch "+url, ctx.Err())
			}
			lastErr = xerrors.Wrap(xerrors.ErrNetwork, "fetch "+url, err)
			continue
		}

		if resp.StatusCode == http.StatusOK {
			consumeErr := consume(resp.Body)
			_ = resp.Body.Close()
			if consumeErr != nil {
				lastErr = xerrors.Wrap(xerrors.ErrNetwork, "read "+url, consumeErr)
				continue
			}
			return nil
		}

		_ = resp.Body.Close()
		lastErr = statusError(url, resp.StatusCode)
		if !retryableStatus(resp.StatusCode) {
			return lastErr
		}
		if wait := parseRetryAfter(resp); wait > 0 {
			backoff = wait
		}
		c.logger.Debug().Int("status", resp.StatusCode).Str("url", url).
			Dur("backoff", backoff).Msg("retrying after transient status")
	}
	return lastErr
}

func statusError(url string, code int) error {
	e := &xerrors.IngestError{Operation: "fetch " + url, Status: code}
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		e.Sentinel = xerrors.ErrAuthenticationFailed
	case code == http.StatusNotFound:
		e.Sentinel = xerrors.ErrNotFound
	case code == http.StatusTooManyRequests:
		e.Sentinel = xerrors.ErrQuota
	default:
		e.Sentinel = xerrors.ErrNetwork
	}
	return e
}

// retryableStatus reports whether the status may succeed on retry.
func retryableStatus(code int) bool {
	if code == http.StatusTooManyRequests || code == http.StatusLocked || code == http.StatusRequestTimeout {
		return true
	}
	return code >= 500 && code < 600
}

// parseRetryAfter parses Retry-After (seconds or HTTP-date); 0 if absent.
func parseRetryAfter(resp *http.Response) time.Duration {
	s := resp.Header.Get("Retry-After")
	if s == "" {
		return 0
	}
	if sec, err := strconv.Atoi(s); err == nil && sec > 0 {
		return clampBackoff(time.Duration(sec) * time.Second)
	}
	if t, err := http.ParseTime(s); err == nil {
		d := time.Until(t)
		if d < 0 {
			return initialBackoff
		}
		return clampBackoff(d)
	}
	return 0
}

func clampBackoff(d time.Duration) time.Duration {
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
