package assetlinks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"time"

	"github.com/congo-pay/payguard/internal/logging"
)

const (
	DefaultLoadTimeout     = time.Second
	DefaultMaxDocumentSize = 100 * 1024
)

// Loader fetches a statement list document.
type Loader interface {
	Load(ctx context.Context, u *url.URL) ([]byte, error)
}

// HTTPLoader fetches documents over HTTP. Redirects are not followed and only
// a 200 response is accepted.
type HTTPLoader struct {
	client  *http.Client
	timeout time.Duration
	maxSize int64
	logger  *slog.Logger
}

// LoaderOption configures an HTTPLoader.
type LoaderOption func(*HTTPLoader)

// WithHTTPClient uses a copy of client for requests. Its redirect policy is replaced.
func WithHTTPClient(client *http.Client) LoaderOption {
	return func(l *HTTPLoader) {
		if client != nil {
			c := *client
			c.CheckRedirect = noRedirect
			l.client = &c
		}
	}
}

// WithLoadTimeout bounds each document request.
func WithLoadTimeout(d time.Duration) LoaderOption {
	return func(l *HTTPLoader) {
		if d > 0 {
			l.timeout = d
		}
	}
}

// WithMaxDocumentSize caps the accepted document body.
func WithMaxDocumentSize(n int64) LoaderOption {
	return func(l *HTTPLoader) {
		if n > 0 {
			l.maxSize = n
		}
	}
}

// WithLoaderLogger sets the logger used for protocol warnings.
func WithLoaderLogger(logger *slog.Logger) LoaderOption {
	return func(l *HTTPLoader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewHTTPLoader returns a loader with a one second timeout and a 100 KiB cap.
func NewHTTPLoader(opts ...LoaderOption) *HTTPLoader {
	l := &HTTPLoader{
		client:  &http.Client{CheckRedirect: noRedirect},
		timeout: DefaultLoadTimeout,
		maxSize: DefaultMaxDocumentSize,
		logger:  logging.Discard(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func noRedirect(*http.Request, []*http.Request) error {
	return http.ErrUseLastResponse
}

// Load performs a GET for u. Cancelling ctx aborts the request in flight.
func (l *HTTPLoader) Load(ctx context.Context, u *url.URL) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d, expected %d", u, resp.StatusCode, http.StatusOK)
	}
	if mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mediaType != "application/json" {
		// A mismatched content type is logged but accepted.
		l.logger.Warn("asset links document has unexpected content type",
			slog.String("url", u.String()),
			slog.String("content_type", resp.Header.Get("Content-Type")),
		)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, l.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", u, err)
	}
	if int64(len(body)) > l.maxSize {
		return nil, errors.New("asset links document exceeds size limit")
	}
	return body, nil
}
