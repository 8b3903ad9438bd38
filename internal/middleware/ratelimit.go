package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type RateLimiter struct {
	redis  *redis.Client
	limit  int
	window time.Duration
	prefix string
}

func NewRateLimiter(redisClient *redis.Client, limit int, window time.Duration, prefix string) *RateLimiter {
	return &RateLimiter{
		redis:  redisClient,
		limit:  limit,
		window: window,
		prefix: prefix,
	}
}

func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.redis == nil {
			next.ServeHTTP(w, r)
			return
		}

		ip := getClientIP(r)
		key := fmt.Sprintf("%s:%s", rl.prefix, ip)

		ctx := r.Context()
		allowed, remaining, resetTime, err := rl.isAllowed(ctx, key)
		if err != nil {
			// On Redis error, allow the request
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", rl.limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", resetTime))

		if !allowed {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", resetTime-time.Now().Unix()))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"Rate limit exceeded. Please try again later."}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) isAllowed(ctx context.Context, key string) (allowed bool, remaining int, resetTime int64, err error) {
	now := time.Now()
	windowStart := now.Truncate(rl.window)
	windowEnd := windowStart.Add(rl.window)

	pipe := rl.redis.Pipeline()
	incrCmd := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, rl.window)

	_, err = pipe.Exec(ctx)
	if err != nil {
		return true, rl.limit, windowEnd.Unix(), err
	}

	count := int(incrCmd.Val())
	remaining = rl.limit - count
	if remaining < 0 {
		remaining = 0
	}

	return count <= rl.limit, remaining, windowEnd.Unix(), nil
}

func getClientIP(r *http.Request) string {
	// Check X-Forwarded-For header (for reverse proxies)
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		// Take the first IP in the chain
		if i := strings.Index(xff, ","); i != -1 {
			xff = xff[:i]
		}
		return strings.TrimSpace(xff)
	}

	xri := r.Header.Get("X-Real-IP")
	if xri != "" {
		return xri
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// Stricter rate limiter for auth endpoints
func NewAuthRateLimiter(redisClient *redis.Client) *RateLimiter {
	return NewRateLimiter(redisClient, 5, time.Minute, "ratelimit:auth")
}

// Stricter rate limiter for quest generation, which fans out to paid
// provider calls
func NewQuestRateLimiter(redisClient *redis.Client) *RateLimiter {
	return NewRateLimiter(redisClient, 30, time.Minute, "ratelimit:quest")
}

// General API rate limiter
func NewAPIRateLimiter(redisClient *redis.Client) *RateLimiter {
	return NewRateLimiter(redisClient, 100, time.Minute, "ratelimit:api")
}
