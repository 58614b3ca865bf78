package assetlinks

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingVerifier struct {
	ok    bool
	err   error
	calls int
}

func (c *countingVerifier) Verify(context.Context, string, *url.URL) (bool, error) {
	c.calls++
	return c.ok, c.err
}

func setupCache(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		cache.Close()
		mr.Close()
	})
	return mr, cache
}

func TestCachedVerifierStoresOutcomes(t *testing.T) {
	_, cache := setupCache(t)
	next := &countingVerifier{ok: true}
	v := NewCachedVerifier(next, cache, time.Minute, nil)
	ctx := context.Background()

	ok, err := v.Verify(ctx, testPackage, mustURL(t, "https://example.com/pay?a=1"))
	require.NoError(t, err)
	assert.True(t, ok)

	// Same origin, different path.
	ok, err = v.Verify(ctx, testPackage, mustURL(t, "https://EXAMPLE.com/other"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, next.calls)

	_, err = v.Verify(ctx, testPackage, mustURL(t, "https://example.org/pay"))
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls)
}

func TestCachedVerifierStoresNegativeOutcome(t *testing.T) {
	_, cache := setupCache(t)
	next := &countingVerifier{ok: false}
	v := NewCachedVerifier(next, cache, time.Minute, nil)

	for i := 0; i < 3; i++ {
		ok, err := v.Verify(context.Background(), testPackage, mustURL(t, "https://example.com/pay"))
		require.NoError(t, err)
		assert.False(t, ok)
	}
	assert.Equal(t, 1, next.calls)
}

func TestCachedVerifierSkipsErrors(t *testing.T) {
	_, cache := setupCache(t)
	next := &countingVerifier{err: ErrCouldNotVerify}
	v := NewCachedVerifier(next, cache, time.Minute, nil)

	for i := 0; i < 2; i++ {
		_, err := v.Verify(context.Background(), testPackage, mustURL(t, "https://example.com/pay"))
		assert.ErrorIs(t, err, ErrCouldNotVerify)
	}
	assert.Equal(t, 2, next.calls)
}

func TestCachedVerifierExpires(t *testing.T) {
	mr, cache := setupCache(t)
	next := &countingVerifier{ok: true}
	v := NewCachedVerifier(next, cache, time.Minute, nil)
	link := mustURL(t, "https://example.com/pay")

	_, err := v.Verify(context.Background(), testPackage, link)
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)
	_, err = v.Verify(context.Background(), testPackage, link)
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls)
}

func TestCachedVerifierFailsOpen(t *testing.T) {
	mr, cache := setupCache(t)
	next := &countingVerifier{ok: true}
	v := NewCachedVerifier(next, cache, time.Minute, nil)
	mr.SetError("server unavailable")

	ok, err := v.Verify(context.Background(), testPackage, mustURL(t, "https://example.com/pay"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, next.calls)
}

func TestCachedVerifierForgetPackage(t *testing.T) {
	_, cache := setupCache(t)
	next := &countingVerifier{ok: true}
	v := NewCachedVerifier(next, cache, time.Minute, nil)
	ctx := context.Background()
	link := mustURL(t, "https://example.com/pay")

	_, err := v.Verify(ctx, testPackage, link)
	require.NoError(t, err)
	_, err = v.Verify(ctx, "com.sample.app", link)
	require.NoError(t, err)

	require.NoError(t, v.ForgetPackage(ctx, testPackage))

	_, err = v.Verify(ctx, testPackage, link)
	require.NoError(t, err)
	_, err = v.Verify(ctx, "com.sample.app", link)
	require.NoError(t, err)
	assert.Equal(t, 3, next.calls)
}

func TestCachedVerifierWithoutRedis(t *testing.T) {
	next := &countingVerifier{err: errors.New("boom")}
	v := NewCachedVerifier(next, nil, time.Minute, nil)

	_, err := v.Verify(context.Background(), testPackage, mustURL(t, "https://example.com/pay"))
	assert.Error(t, err)
	assert.NoError(t, v.ForgetPackage(context.Background(), testPackage))
}
