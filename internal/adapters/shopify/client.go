// Package shopify provides a resilient client and crawler for the upstream
// commerce REST API consumed by the sync service
package shopify

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	perr "ordercast/internal/platform/errors"
	"ordercast/internal/platform/logger"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultUA        = "ordercast-sync"
	defaultVersion   = "2024-01"
	defaultMaxRetry  = 5
	defaultRetryBase = 500 * time.Millisecond

	// MaxPageSize is the upstream-enforced cap on the limit parameter
	MaxPageSize = 250
)

// Options configures the Client
type Options struct {
	// ShopDomain like acme.myshopify.com; ignored when BaseURL is set
	ShopDomain string

	// AccessToken for the X-Shopify-Access-Token header; empty means none
	AccessToken string

	// APIVersion selects the /admin/api/{version} prefix
	APIVersion string

	// BaseURL overrides the scheme+host derived from ShopDomain (tests)
	BaseURL string

	UserAgent string
	Timeout   time.Duration

	// Retry config for transient and rate limited responses
	MaxRetries int
	RetryBase  time.Duration
}

// Client is a minimal upstream REST client with retry and rate limit handling
type Client struct {
	http  *http.Client
	opts  Options
	log   logger.Logger
	now   func() time.Time
	sleep func(time.Duration)
}

// NewClient creates a new Client with sane defaults
func NewClient(o Options) *Client {
	if o.BaseURL == "" {
		o.BaseURL = "https://" + o.ShopDomain
	}
	if o.APIVersion == "" {
		o.APIVersion = defaultVersion
	}
	if o.UserAgent == "" {
		o.UserAgent = defaultUA
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = defaultMaxRetry
	}
	if o.RetryBase <= 0 {
		o.RetryBase = defaultRetryBase
	}
	return &Client{
		http:  &http.Client{Timeout: o.Timeout},
		opts:  o,
		log:   *logger.Named("shopify"),
		now:   time.Now,
		sleep: time.Sleep,
	}
}

// apiPath prefixes a resource path with the versioned admin root
func (c *Client) apiPath(resource string) string {
	return "/admin/api/" + c.opts.APIVersion + "/" + strings.TrimPrefix(resource, "/")
}

// Do issues a request with auth headers, retries, and rate limit handling
// query may be nil; the caller owns closing the response body on success
func (c *Client) Do(ctx context.Context, method, path string, query url.Values) (*http.Response, error) {
	u := c.opts.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	attempts := 0
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		req, err := http.NewRequestWithContext(ctx, method, u, nil)
		if err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "shopify new request failed")
		}
		req.Header.Set("User-Agent", c.opts.UserAgent)
		req.Header.Set("Accept", "application/json")
		if c.opts.AccessToken != "" {
			req.Header.Set("X-Shopify-Access-Token", c.opts.AccessToken)
		}

		start := c.now()
		resp, err := c.http.Do(req)
		lat := c.now().Sub(start)

		if err != nil {
			// cancellation is not a transport failure; let callers tell them apart
			if cerr := ctx.Err(); cerr != nil {
				return nil, cerr
			}
			if !c.shouldRetry(attempts) {
				return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "shopify do failed")
			}
			back := c.backoff(attempts)
			c.log.Warn().Dur("retry_in", back).Int("attempt", attempts).Msg("shopify transport error retrying")
			c.sleep(back)
			attempts++
			continue
		}

		retryAfter := parseRetryAfter(resp.Header)
		c.log.Debug().
			Str("method", method).
			Str("path", path).
			Int("status", resp.StatusCode).
			Int("attempt", attempts).
			Dur("latency", lat).
			Str("call_limit", resp.Header.Get("X-Shopify-Shop-Api-Call-Limit")).
			Msg("shopify http response")

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return resp, nil
		case resp.StatusCode == http.StatusTooManyRequests:
			wait := retryAfter
			if wait <= 0 {
				wait = c.backoff(attempts)
			}
			if !c.shouldRetry(attempts) {
				_ = drainAndClose(resp.Body)
				return nil, perr.Newf(perr.ErrorCodeTooManyRequests, "shopify rate limited")
			}
			c.log.Warn().Dur("sleep", wait).Msg("shopify rate limited backing off")
			_ = drainAndClose(resp.Body)
			c.sleep(wait)
			attempts++
			continue
		case resp.StatusCode == http.StatusBadGateway,
			resp.StatusCode == http.StatusServiceUnavailable,
			resp.StatusCode == http.StatusGatewayTimeout:
			if !c.shouldRetry(attempts) {
				_ = drainAndClose(resp.Body)
				return nil, perr.Newf(perr.ErrorCodeUnavailable, "shopify transient server error")
			}
			back := c.backoff(attempts)
			c.log.Warn().Dur("retry_in", back).Int("attempt", attempts).Msg("shopify transient error retrying")
			_ = drainAndClose(resp.Body)
			c.sleep(back)
			attempts++
			continue
		default:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			_ = resp.Body.Close()
			return nil, &StatusError{
				Status: resp.StatusCode,
				Body:   string(body),
				Err:    perr.Newf(perr.ErrorCodeUpstream, "shopify unexpected status %d", resp.StatusCode),
			}
		}
	}
}

func (c *Client) backoff(attempt int) time.Duration {
	d := c.opts.RetryBase
	// simple exponential with cap
	ms := int64(d / time.Millisecond)
	ms = ms << uint(attempt)
	max := int64(30 * time.Second / time.Millisecond)
	if ms > max {
		ms = max
	}
	return time.Duration(ms) * time.Millisecond
}

func (c *Client) shouldRetry(attempt int) bool {
	return attempt < c.opts.MaxRetries
}
