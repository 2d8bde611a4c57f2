package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// RateLimiterConfig holds configuration for rate limiting
type RateLimiterConfig struct {
	RequestsPerSecond float64
	BurstSize         int
	IdleTimeout       time.Duration // Per-client limiters unused this long are dropped
}

// DefaultRateLimiterConfig returns default rate limiting settings
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		RequestsPerSecond: 10,
		BurstSize:         20,
		IdleTimeout:       5 * time.Minute,
	}
}

// ClientRateLimiter tracks one rate limiter per client IP.
type ClientRateLimiter struct {
	limiters *gocache.Cache
	config   RateLimiterConfig
}

// NewClientRateLimiter creates a new per-client rate limiter
func NewClientRateLimiter(config RateLimiterConfig) *ClientRateLimiter {
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = DefaultRateLimiterConfig().IdleTimeout
	}
	return &ClientRateLimiter{
		limiters: gocache.New(config.IdleTimeout, config.IdleTimeout),
		config:   config,
	}
}

// Limiter returns the rate limiter for the given client, creating it on first
// use. Each lookup extends the limiter's idle deadline.
func (rl *ClientRateLimiter) Limiter(client string) *rate.Limiter {
	if v, ok := rl.limiters.Get(client); ok {
		limiter := v.(*rate.Limiter)
		rl.limiters.SetDefault(client, limiter)
		return limiter
	}
	limiter := rate.NewLimiter(rate.Limit(rl.config.RequestsPerSecond), rl.config.BurstSize)
	if err := rl.limiters.Add(client, limiter, gocache.DefaultExpiration); err != nil {
		// Lost a race with another request from the same client.
		if v, ok := rl.limiters.Get(client); ok {
			return v.(*rate.Limiter)
		}
	}
	return limiter
}

// RateLimitMiddleware applies rate limiting based on client IP
func RateLimitMiddleware(config RateLimiterConfig) gin.HandlerFunc {
	limiter := NewClientRateLimiter(config)

	return func(c *gin.Context) {
		if !limiter.Limiter(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}

// ServiceRateLimitMiddleware applies rate limiting for service-to-service calls
// Uses a global limiter (not per-IP) since all internal services share the same key
func ServiceRateLimitMiddleware(requestsPerSecond float64, burstSize int) gin.HandlerFunc {
	limiter := rate.NewLimiter(rate.Limit(requestsPerSecond), burstSize)

	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Service rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
