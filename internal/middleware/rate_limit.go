package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const resolutionRatePrefix = "rl:resolutions:"

// ResolutionRateLimit limits how many resolutions a caller may open per
// minute. Requests without a caller are keyed by client IP. Without Redis, or
// when Redis fails, requests are let through.
func ResolutionRateLimit(cache *redis.Client, maxPerMin int, logger *slog.Logger) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 30
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next()
		}
		var req struct {
			Caller string `json:"caller"`
		}
		_ = c.BodyParser(&req)
		subject := strings.TrimSpace(req.Caller)
		if subject == "" {
			subject = "ip:" + c.IP()
		}
		key := resolutionRatePrefix + subject

		cnt, err := cache.Incr(c.UserContext(), key).Result()
		if err != nil {
			if logger != nil {
				logger.Warn("rate limit check failed", slog.String("key", key), slog.Any("error", err))
			}
			return c.Next()
		}
		if cnt == 1 {
			cache.Expire(c.UserContext(), key, time.Minute)
		}
		if cnt > int64(maxPerMin) {
			c.Set(fiber.HeaderRetryAfter, "60")
			return fiber.NewError(http.StatusTooManyRequests, "too many resolutions, try again later")
		}
		return c.Next()
	}
}
