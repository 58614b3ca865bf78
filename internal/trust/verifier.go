package trust

import (
	"context"
	"errors"
	"fmt"
	"net/url"
)

// ErrMalformedLink indicates a transaction request link that is not an absolute URL.
var ErrMalformedLink = errors.New("malformed verification link")

// Verifier checks that origin is authorized to issue requests for link.
// A false result and an error both leave the origin untrusted. Implementations
// must return promptly once ctx is cancelled.
type Verifier interface {
	Verify(ctx context.Context, origin string, link *url.URL) (bool, error)
}

// VerifierFunc adapts a function to the Verifier interface.
type VerifierFunc func(ctx context.Context, origin string, link *url.URL) (bool, error)

// Verify calls f.
func (f VerifierFunc) Verify(ctx context.Context, origin string, link *url.URL) (bool, error) {
	return f(ctx, origin, link)
}

func parseLink(link string) (*url.URL, error) {
	u, err := url.Parse(link)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedLink, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("%w: %q is not an absolute URL", ErrMalformedLink, link)
	}
	return u, nil
}
