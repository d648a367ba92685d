// Package fetch retrieves search result pages. It owns everything
// transport-shaped: browser-like headers, session cookies, retries with
// backoff, rate limiting, and the jittered delay around each request.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// ErrBotDetected marks a response body that looks like a bot-block
// interstitial rather than real search results.
var ErrBotDetected = errors.New("bot detection triggered")

var botMarkers = []string{"captcha", "blocked", "unusual traffic"}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// Page is one fetched document.
type Page struct {
	StatusCode int
	Body       string
}

type Client struct {
	hc         *http.Client
	limiter    *rate.Limiter
	userAgent  string
	maxRetries int
	baseDelay  time.Duration
	minJitter  time.Duration
	maxJitter  time.Duration
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

// WithJitter bounds the randomized pause taken before each request.
func WithJitter(min, max time.Duration) Option {
	return func(c *Client) { c.minJitter, c.maxJitter = min, max }
}

func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) { c.baseDelay = d }
}

func New(opts ...Option) *Client {
	jar, _ := cookiejar.New(nil)
	c := &Client{
		hc: &http.Client{
			Timeout: 30 * time.Second,
			Jar:     jar,
		},
		limiter:    rate.NewLimiter(rate.Limit(0.5), 1),
		userAgent:  defaultUserAgent,
		maxRetries: 3,
		baseDelay:  2 * time.Second,
		minJitter:  500 * time.Millisecond,
		maxJitter:  2 * time.Second,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Get fetches url, retrying transport errors and 5xx/429 responses with
// exponential backoff. A body containing a bot-block marker is returned
// as ErrBotDetected; other non-2xx statuses as *StatusError.
func (c *Client) Get(ctx context.Context, url string) (*Page, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	if err := c.jitterSleep(ctx); err != nil {
		return nil, err
	}

	var lastErr error
	delay := c.baseDelay

	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		page, retryable, err := c.do(ctx, url)
		if err == nil {
			return page, nil
		}
		lastErr = err
		if !retryable || attempt == c.maxRetries {
			break
		}

		slog.Warn("fetch retry", "url", url, "attempt", attempt, "error", err, "backoff", delay.String())
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	return nil, lastErr
}

func (c *Client) do(ctx context.Context, url string) (page *Page, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9,ja;q=0.8")

	res, err := c.hc.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer func() { _ = res.Body.Close() }()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, true, fmt.Errorf("read body: %w", err)
	}

	if res.StatusCode >= 500 || res.StatusCode == http.StatusTooManyRequests {
		return nil, true, &StatusError{Code: res.StatusCode}
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, false, &StatusError{Code: res.StatusCode}
	}
	if looksBlocked(string(body)) {
		return nil, false, ErrBotDetected
	}

	return &Page{StatusCode: res.StatusCode, Body: string(body)}, false, nil
}

func (c *Client) jitterSleep(ctx context.Context) error {
	if c.maxJitter <= 0 {
		return nil
	}
	d := c.minJitter
	if span := c.maxJitter - c.minJitter; span > 0 {
		d += rand.N(span)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func looksBlocked(body string) bool {
	lower := strings.ToLower(body)
	for _, marker := range botMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
