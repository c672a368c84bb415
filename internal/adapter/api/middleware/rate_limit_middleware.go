package middleware

import (
	"math"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"repairhub/internal/infrastructure/ratelimit"
	"repairhub/pkg/errors"
	"repairhub/pkg/logger"
	"repairhub/pkg/response"
)

type Limiter interface {
	Allow(key, action string) (bool, time.Duration)
}

type RateLimitMiddleware struct {
	limiter Limiter
}

func NewRateLimitMiddleware(limiter Limiter) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter: limiter,
	}
}

// LimitByIP throttles every request per client IP.
func (m *RateLimitMiddleware) LimitByIP(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ip := c.RealIP()

		ok, retryAfter := m.limiter.Allow(ip, ratelimit.ActionHTTP)
		if !ok {
			logger.Warn("rate limit exceeded: %s", logger.Fields("ip", ip, "path", c.Path(), "retryAfter", retryAfter))

			seconds := int(math.Ceil(retryAfter.Seconds()))
			if seconds < 1 {
				seconds = 1
			}
			c.Response().Header().Set("Retry-After", strconv.Itoa(seconds))
			return response.Error(c, errors.TooManyRequests("Rate limit exceeded"))
		}

		return next(c)
	}
}
