package middlewares

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/geocoder89/carshare/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type RateDecision struct {
	Allowed   bool
	Count     int
	WindowEnd time.Time
}

// Limiter counts hits per key in a fixed window.
type Limiter interface {
	Allow(ctx context.Context, key string) RateDecision
}

const rateLimiterSweepInterval = 5 * time.Minute

type MemoryLimiter struct {
	mu      sync.Mutex
	window  time.Duration
	limit   int
	clients map[string]*clientBucket
	lastGC  time.Time
	now     func() time.Time
}

type clientBucket struct {
	count     int
	windowEnd time.Time
}

func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &MemoryLimiter{
		limit:   limit,
		window:  window,
		clients: make(map[string]*clientBucket),
		lastGC:  time.Now(),
		now:     time.Now,
	}
}

func (rl *MemoryLimiter) Allow(_ context.Context, key string) RateDecision {
	if rl.limit <= 0 {
		return RateDecision{Allowed: true}
	}

	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.lastGC) > rateLimiterSweepInterval {
		for k, b := range rl.clients {
			if now.After(b.windowEnd) {
				delete(rl.clients, k)
			}
		}
		rl.lastGC = now
	}

	b, ok := rl.clients[key]
	if !ok || now.After(b.windowEnd) {
		b = &clientBucket{count: 1, windowEnd: now.Add(rl.window)}
		rl.clients[key] = b
		return RateDecision{Allowed: true, Count: 1, WindowEnd: b.windowEnd}
	}

	if b.count >= rl.limit {
		return RateDecision{Allowed: false, Count: b.count, WindowEnd: b.windowEnd}
	}

	b.count++
	return RateDecision{Allowed: true, Count: b.count, WindowEnd: b.windowEnd}
}

// RedisLimiter shares counters across API replicas. Redis failures fail open.
type RedisLimiter struct {
	rdb     *redis.Client
	log     *slog.Logger
	prefix  string
	limit   int
	window  time.Duration
	timeout time.Duration
}

func NewRedisLimiter(rdb *redis.Client, log *slog.Logger, limit int, window time.Duration) *RedisLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &RedisLimiter{
		rdb:     rdb,
		log:     log,
		prefix:  "carshare:ratelimit:",
		limit:   limit,
		window:  window,
		timeout: 250 * time.Millisecond,
	}
}

func (rl *RedisLimiter) Allow(ctx context.Context, key string) RateDecision {
	if rl.limit <= 0 {
		return RateDecision{Allowed: true}
	}

	ctx, cancel := context.WithTimeout(ctx, rl.timeout)
	defer cancel()

	redisKey := rl.prefix + key
	counter, err := rl.rdb.Incr(ctx, redisKey).Result()
	if err != nil {
		rl.logRedisError(ctx, "incr", err)
		return RateDecision{Allowed: true}
	}
	if counter == 1 {
		if err := rl.rdb.Expire(ctx, redisKey, rl.window).Err(); err != nil {
			rl.logRedisError(ctx, "expire", err)
		}
	}

	ttl, err := rl.rdb.TTL(ctx, redisKey).Result()
	if err != nil || ttl <= 0 {
		ttl = rl.window
	}

	return RateDecision{
		Allowed:   int(counter) <= rl.limit,
		Count:     int(counter),
		WindowEnd: time.Now().Add(ttl),
	}
}

func (rl *RedisLimiter) logRedisError(ctx context.Context, op string, err error) {
	if rl.log == nil {
		return
	}
	rl.log.ErrorContext(ctx, "redis rate limiter error", "op", op, "err", err)
}

// RateLimit enforces l for the key derived by keyFn.
func RateLimit(l Limiter, keyFn func(*gin.Context) string, prom *observability.Prom) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFn(c)

		if key == "" {
			// fallback to IP if key cannot be derived
			key = clientIP(c)
		}

		d := l.Allow(c.Request.Context(), c.FullPath()+"|"+key)
		if d.Allowed {
			c.Next()
			return
		}

		retryAfter := int(time.Until(d.WindowEnd).Seconds())
		if retryAfter < 0 {
			retryAfter = 0
		}

		prom.RateLimited(c.FullPath())
		c.Header("Retry-After", strconv.Itoa(retryAfter))
		abortError(c, http.StatusTooManyRequests, "rate_limited", "Too many requests. Please try again shortly.")
	}
}

// for unauthenticated endpoints: rate limit by IP
func KeyByIP(c *gin.Context) string {
	return clientIP(c)
}

// For authenticated endpoints: rate limit by userID if available
func KeyByUserOrIP(c *gin.Context) string {
	id, ok := UserIDFromContext(c)

	if ok && id != "" {
		return "user:" + id
	}

	return clientIP(c)
}

func clientIP(c *gin.Context) string {
	// Gin's ClientIP respects X-Forwarded-For / X-Real-IP if configured.
	ip := c.ClientIP()

	host, _, err := net.SplitHostPort(ip)

	if err == nil && host != "" {
		return host
	}

	return ip
}
