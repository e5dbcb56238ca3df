package middlewares

import (
	"strings"
	"time"

	helper "templeseva_backend/internals/helpers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

func newLimiter(max int, window time.Duration, message string, skip func(*fiber.Ctx) bool) fiber.Handler {
	return limiter.New(limiter.Config{
		Next:       skip,
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return helper.JsonError(c, fiber.StatusTooManyRequests, message)
		},
	})
}

// GlobalRateLimiter covers every public endpoint except the webhook.
func GlobalRateLimiter() fiber.Handler {
	return newLimiter(100, time.Minute, "Too many requests. Please try again later.", func(c *fiber.Ctx) bool {
		return strings.HasSuffix(c.Path(), "/payments/webhook")
	})
}

// OtpRateLimiter is stricter: every request sends an email.
func OtpRateLimiter() fiber.Handler {
	return newLimiter(5, 10*time.Minute, "Too many code requests. Please wait a few minutes.", nil)
}

// DonationRateLimiter slows down scripted session creation.
func DonationRateLimiter() fiber.Handler {
	return newLimiter(10, time.Minute, "Too many donation attempts. Please try again shortly.", nil)
}
