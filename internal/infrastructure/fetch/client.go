package fetch

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/time/rate"

	"FacilityScanner/internal/config"
	"FacilityScanner/internal/ports"
)

const userAgent = "FacilityScanner/1.0"

// Client implements the fetch capability on top of resty. The directory
// serves a legacy charset, so every body is decoded to UTF-8 before the
// parsers see it. Per-item failures are never retried here.
type Client struct {
	http    *resty.Client
	enc     encoding.Encoding
	charset string
	limiter *rate.Limiter
}

var _ ports.Fetcher = (*Client)(nil)

// NewClient builds a client from source settings; the charset must be a
// name known to the WHATWG encoding index (e.g. "euc-jp", "shift_jis").
func NewClient(cfg config.SourceConfig) (*Client, error) {
	enc, err := htmlindex.Get(cfg.Charset)
	if err != nil {
		return nil, fmt.Errorf("unknown charset %s: %w", cfg.Charset, err)
	}

	httpClient := resty.New().
		SetTimeout(cfg.Timeout()).
		SetHeader("User-Agent", userAgent).
		SetRetryCount(0)

	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}

	return &Client{
		http:    httpClient,
		enc:     enc,
		charset: cfg.Charset,
		limiter: limiter,
	}, nil
}

// Fetch performs one GET and returns the decoded body. Non-2xx statuses are
// returned to the caller, not turned into errors; the scrapers decide.
func (c *Client) Fetch(ctx context.Context, url string) (*ports.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	resp, err := c.http.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", url, err)
	}

	body, err := c.enc.NewDecoder().Bytes(resp.Body())
	if err != nil {
		return nil, fmt.Errorf("decode %s body: %w", c.charset, err)
	}

	return &ports.Response{
		Status:  resp.StatusCode(),
		Body:    body,
		Charset: c.charset,
	}, nil
}
