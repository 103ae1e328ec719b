// Package fetch provides Fetcher implementations for the acquisition stage:
// a plain HTTP client for static pages and a headless-browser fetcher for
// script-rendered ones. Both map transport failures onto the engine's
// AcquisitionError taxonomy so its retry policy applies uniformly.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	quire "github.com/quireio/quire"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "quire/1.0 (+https://github.com/quireio/quire)"

	// maxBodySize caps reads to prevent runaway downloads.
	maxBodySize = 10 << 20
)

// HTTP fetches remote content with a single GET.
type HTTP struct {
	client *http.Client
	ua     string
}

// HTTPOption configures an HTTP fetcher.
type HTTPOption func(*HTTP)

// WithClient sets a custom HTTP client.
func WithClient(c *http.Client) HTTPOption {
	return func(f *HTTP) { f.client = c }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) HTTPOption {
	return func(f *HTTP) { f.ua = ua }
}

// NewHTTP creates an HTTP fetcher with sensible defaults.
func NewHTTP(opts ...HTTPOption) *HTTP {
	f := &HTTP{
		client: &http.Client{Timeout: defaultTimeout},
		ua:     defaultUserAgent,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Compile-time interface check.
var _ quire.Fetcher = (*HTTP)(nil)

// Fetch GETs the referenced URL. HTTP statuses map onto acquisition error
// kinds: 404/410 are NotFound, 401/403/429 are Blocked, 5xx are Blocked
// (transient, retried by the engine), and network timeouts are Timeout.
func (f *HTTP) Fetch(ctx context.Context, ref quire.SourceRef) (*quire.RawContent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.URL, nil)
	if err != nil {
		return nil, &quire.AcquisitionError{Kind: quire.AcquireMalformed, Source: ref.URL, Err: err}
	}
	req.Header.Set("User-Agent", f.ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classifyTransport(ref.URL, err)
	}
	defer resp.Body.Close()

	if kind, bad := classifyStatus(resp.StatusCode); bad {
		return nil, &quire.AcquisitionError{
			Kind:   kind,
			Source: ref.URL,
			Err:    fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, classifyTransport(ref.URL, err)
	}

	return &quire.RawContent{
		Bytes:               body,
		DeclaredContentType: resp.Header.Get("Content-Type"),
		FetchedAt:           time.Now(),
	}, nil
}

func classifyStatus(code int) (quire.AcquireErrorKind, bool) {
	switch {
	case code >= 200 && code < 300:
		return "", false
	case code == http.StatusNotFound || code == http.StatusGone:
		return quire.AcquireNotFound, true
	case code == http.StatusUnauthorized || code == http.StatusForbidden || code == http.StatusTooManyRequests:
		return quire.AcquireBlocked, true
	case code >= 500:
		return quire.AcquireBlocked, true
	default:
		return quire.AcquireMalformed, true
	}
}

func classifyTransport(url string, err error) error {
	var nerr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &quire.AcquisitionError{Kind: quire.AcquireTimeout, Source: url, Err: err}
	case errors.As(err, &nerr) && nerr.Timeout():
		return &quire.AcquisitionError{Kind: quire.AcquireTimeout, Source: url, Err: err}
	default:
		return &quire.AcquisitionError{Kind: quire.AcquireMalformed, Source: url, Err: err}
	}
}
