package middleware

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// PaymentRateLimit caps payment submissions per business per minute using
// Redis if available. Cache errors fail open; the payment path must not
// depend on the limiter being healthy.
func PaymentRateLimit(cache *redis.Client, maxPerMin int) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 60
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next()
		}

		caller, _ := c.Locals(LocalBusinessID).(string)
		if caller == "" {
			caller = c.IP()
		}
		key := "rl:payments:" + caller

		cnt, err := cache.Incr(c.UserContext(), key).Result()
		if err != nil {
			return c.Next()
		}
		if cnt == 1 {
			cache.Expire(c.UserContext(), key, time.Minute)
		}
		if cnt > int64(maxPerMin) {
			return fiber.NewError(http.StatusTooManyRequests, "payment rate limit exceeded, try again later")
		}
		return c.Next()
	}
}
