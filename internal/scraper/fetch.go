package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/net/html/charset"
)

const (
	// BrowserUserAgent is sent when no user agent is configured.
	BrowserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	defaultFetchTimeout   = 10 * time.Second
	defaultMaxBodyBytes   = 5 << 20
	defaultMaxTries       = 3
	defaultInitialBackoff = 500 * time.Millisecond
	maxBackoff            = 5 * time.Second
	maxRedirects          = 10
)

// StatusError reports a non-2xx response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// Page is a fetched HTML document.
type Page struct {
	HTML string
	// FinalURL is the URL after redirects.
	FinalURL string
}

// FetchConfig tunes page fetching.
type FetchConfig struct {
	Timeout        time.Duration
	MaxBodyBytes   int64
	MaxRetries     int
	UserAgent      string
	InitialBackoff time.Duration
}

// Fetcher downloads recipe pages with browser-like headers.
type Fetcher struct {
	client *http.Client
	cfg    FetchConfig
}

// NewFetcher builds a Fetcher. A nil client gets a default one with cfg.Timeout.
func NewFetcher(cfg FetchConfig, client *http.Client) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultFetchTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxTries
	}
	if strings.TrimSpace(cfg.UserAgent) == "" {
		cfg.UserAgent = BrowserUserAgent
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = defaultInitialBackoff
	}
	if client == nil {
		client = &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return errors.New("stopped after 10 redirects")
				}
				return nil
			},
		}
	}
	return &Fetcher{client: client, cfg: cfg}
}

// Fetch GETs rawURL, retrying on 429 and 5xx responses. Transport errors and other
// non-2xx statuses fail immediately.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	operation := func() (*Page, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set("User-Agent", f.cfg.UserAgent)
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")
		req.Header.Set("DNT", "1")
		req.Header.Set("Upgrade-Insecure-Requests", "1")

		resp, err := f.client.Do(req)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		defer resp.Body.Close()

		if isRetryableStatus(resp.StatusCode) {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			return nil, &StatusError{Code: resp.StatusCode}
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, backoff.Permanent(&StatusError{Code: resp.StatusCode})
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodyBytes))
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("read body: %w", err))
		}
		html, err := decodeHTML(body, resp.Header.Get("Content-Type"))
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		return &Page{HTML: html, FinalURL: resp.Request.URL.String()}, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = f.cfg.InitialBackoff
	bo.MaxInterval = maxBackoff

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(f.cfg.MaxRetries)),
		backoff.WithMaxElapsedTime(3*f.cfg.Timeout),
	)
}

// decodeHTML converts body to UTF-8. The encoding comes from a byte order mark, the
// Content-Type charset or a <meta> declaration, in that order, then UTF-8 validity.
func decodeHTML(body []byte, contentType string) (string, error) {
	enc, name, _ := charset.DetermineEncoding(body, contentType)
	if name == "utf-8" {
		return string(body), nil
	}
	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return "", fmt.Errorf("decode %s body: %w", name, err)
	}
	return string(decoded), nil
}

func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}
