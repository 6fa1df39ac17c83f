// Package fetcher issues HTTP GET requests and follows redirects by hand,
// up to a fixed hop limit.
//
// GitHub release downloads go through one or more 302 hops to a CDN. The
// stdlib client would follow these silently and with its own limit of 10; the
// installer wants a hard limit of 5 and a distinct error when it is exceeded,
// so the underlying client never follows redirects and Get walks the chain.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const (
	// MaxRedirects is the number of 3xx hops followed before giving up.
	MaxRedirects = 5
	// HTTP_TIMEOUT bounds response headers, not the body transfer.
	HTTP_TIMEOUT = 30 // seconds
)

// ErrTooManyRedirects is returned when the redirect chain exceeds the hop limit.
var ErrTooManyRedirects = errors.New("too many redirects")

// StatusError is returned for a final response that is neither 2xx nor a
// followable redirect.
type StatusError struct {
	StatusCode int
	URL        string
}

// Error implements the error interface for StatusError.
func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s returned status %d", e.URL, e.StatusCode)
}

// Fetcher is the single entry point for outbound GETs.
type Fetcher interface {
	Get(ctx context.Context, rawURL string) (*http.Response, error)
}

type Option func(*HTTPFetcher)

// WithHTTPClient uses c's transport, timeout and jar. The fetcher works on a
// copy, so c itself is never modified.
func WithHTTPClient(c *http.Client) Option {
	return func(f *HTTPFetcher) {
		f.client = c
	}
}

// WithMaxRedirects overrides the hop limit.
func WithMaxRedirects(n int) Option {
	return func(f *HTTPFetcher) {
		f.maxRedirects = n
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(f *HTTPFetcher) {
		f.logger = l
	}
}

// WithUserAgent sets the User-Agent header on every request.
func WithUserAgent(ua string) Option {
	return func(f *HTTPFetcher) {
		f.userAgent = ua
	}
}

// HTTPFetcher implements Fetcher on top of net/http.
type HTTPFetcher struct {
	client       *http.Client
	maxRedirects int
	userAgent    string
	logger       *slog.Logger
}

// New returns an HTTPFetcher with a proxy-aware transport and the default hop limit.
func New(opts ...Option) *HTTPFetcher {
	f := &HTTPFetcher{
		maxRedirects: MaxRedirects,
		userAgent:    "pomowisectl",
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	client := &http.Client{Transport: NewTransport()}
	if f.client != nil {
		c := *f.client
		client = &c
	}
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	f.client = client
	return f
}

// Get requests rawURL and follows redirects. The caller owns the returned body.
//
// Network errors are returned wrapped; there is no retry at this layer.
func (f *HTTPFetcher) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	current, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}

	for hop := 0; ; hop++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, current.String(), nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}
		if f.userAgent != "" {
			req.Header.Set("User-Agent", f.userAgent)
		}

		resp, err := f.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("GET %s: %w", current, err)
		}

		if isRedirect(resp.StatusCode) {
			location := resp.Header.Get("Location")
			closeBody(f.logger, resp)
			if location == "" {
				return nil, &StatusError{StatusCode: resp.StatusCode, URL: current.String()}
			}
			if hop >= f.maxRedirects {
				f.logger.Error("Redirect limit reached", "url", rawURL, "hops", hop)
				return nil, fmt.Errorf("%w: more than %d hops from %s", ErrTooManyRedirects, f.maxRedirects, rawURL)
			}
			next, err := current.Parse(location)
			if err != nil {
				return nil, fmt.Errorf("invalid redirect location %q: %w", location, err)
			}
			f.logger.Debug("Following redirect", "from", current.String(), "to", next.String())
			current = next
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			closeBody(f.logger, resp)
			return nil, &StatusError{StatusCode: resp.StatusCode, URL: current.String()}
		}
		return resp, nil
	}
}

func isRedirect(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

func closeBody(logger *slog.Logger, resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		logger.Error("Failed to close response body", "error", err)
	}
}

// headerTimeout is used by NewTransport.
var headerTimeout = HTTP_TIMEOUT * time.Second
