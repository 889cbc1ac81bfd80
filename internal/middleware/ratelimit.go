package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	apperrors "boingbox-backend/pkg/errors"
	"boingbox-backend/pkg/logger"
	"boingbox-backend/pkg/metrics"
	"boingbox-backend/pkg/response"
)

// RateLimiter is a fixed window limiter keyed by client IP and stored in Redis.
type RateLimiter struct {
	redisClient *redis.Client
	requests    int
	window      time.Duration
}

// NewRateLimiter allows requests calls per window for each client.
func NewRateLimiter(redisClient *redis.Client, requests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		redisClient: redisClient,
		requests:    requests,
		window:      window,
	}
}

// Middleware returns a Gin middleware for rate limiting
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		identifier := "ip:" + c.ClientIP()

		count, ttl, err := rl.hit(c.Request.Context(), identifier)
		if err != nil {
			// Fail open: a Redis outage must not take the API down.
			logger.Warn("Rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}

		remaining := rl.requests - int(count)
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.requests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(ttl).Unix(), 10))

		if int(count) > rl.requests {
			metrics.RateLimitBlockedTotal.WithLabelValues("ip").Inc()
			appErr := apperrors.RateLimitExceededError()
			response.Error(c, http.StatusTooManyRequests, string(appErr.Code), appErr.Message)
			c.Abort()
			return
		}

		c.Next()
	}
}

// hit counts one request in the current window and returns the count and the window's remaining time.
func (rl *RateLimiter) hit(ctx context.Context, identifier string) (int64, time.Duration, error) {
	key := fmt.Sprintf("ratelimit:%s", identifier)

	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := rl.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, rl.window)
		ttl = pipe.TTL(ctx, key)
		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count request: %w", err)
	}

	remaining := ttl.Val()
	if remaining < 0 {
		remaining = rl.window
	}
	return incr.Val(), remaining, nil
}
