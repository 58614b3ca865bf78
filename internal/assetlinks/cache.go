package assetlinks

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/payguard/internal/logging"
)

const cachePrefix = "payguard:dal:v1:"

// Verifier is the contract CachedVerifier decorates.
type Verifier interface {
	Verify(ctx context.Context, packageName string, link *url.URL) (bool, error)
}

// CachedVerifier remembers definitive outcomes in Redis, keyed by package and
// link origin. Errors are never cached and Redis failures fall through to the
// wrapped verifier.
type CachedVerifier struct {
	next   Verifier
	cache  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedVerifier wraps next. A nil cache disables caching.
func NewCachedVerifier(next Verifier, cache *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedVerifier {
	if logger == nil {
		logger = logging.Discard()
	}
	return &CachedVerifier{next: next, cache: cache, ttl: ttl, logger: logger}
}

// Verify consults the cache before delegating.
func (c *CachedVerifier) Verify(ctx context.Context, packageName string, link *url.URL) (bool, error) {
	if c.cache == nil || c.ttl <= 0 {
		return c.next.Verify(ctx, packageName, link)
	}
	source, err := WellKnownURI(link)
	if err != nil {
		return c.next.Verify(ctx, packageName, link)
	}
	key := cacheKey(packageName, source)

	cached, err := c.cache.Get(ctx, key).Result()
	switch {
	case err == nil:
		return cached == "1", nil
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("asset links cache lookup failed", slog.String("key", key), slog.Any("error", err))
	}

	ok, err := c.next.Verify(ctx, packageName, link)
	if err != nil {
		return false, err
	}
	value := "0"
	if ok {
		value = "1"
	}
	if err := c.cache.Set(ctx, key, value, c.ttl).Err(); err != nil {
		c.logger.Warn("asset links cache store failed", slog.String("key", key), slog.Any("error", err))
	}
	return ok, nil
}

// ForgetPackage drops every cached outcome for packageName. It is called when
// the package's signing certificates change.
func (c *CachedVerifier) ForgetPackage(ctx context.Context, packageName string) error {
	if c.cache == nil {
		return nil
	}
	iter := c.cache.Scan(ctx, 0, cachePrefix+packageName+":*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.cache.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

func cacheKey(packageName string, source *url.URL) string {
	return cachePrefix + packageName + ":" + strings.ToLower(source.Scheme+"://"+source.Host)
}
