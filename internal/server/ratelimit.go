package server

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimitConfig holds the per-client limits.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
	// IdleTTL is how long an unused client bucket is kept.
	IdleTTL time.Duration
}

// RateLimiter keeps one token bucket per client key.
type RateLimiter struct {
	buckets     map[string]*clientBucket
	bucketMutex sync.Mutex
	config      RateLimitConfig
	lastSweep   time.Time
	now         func() time.Time
}

type clientBucket struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// NewRateLimiter creates a new rate limiter. A non-positive rate disables it.
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	if config.IdleTTL <= 0 {
		config.IdleTTL = 5 * time.Minute
	}
	if config.BurstSize <= 0 {
		config.BurstSize = 1
	}
	return &RateLimiter{
		buckets:   make(map[string]*clientBucket),
		config:    config,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

// Enabled reports whether requests are limited at all.
func (rl *RateLimiter) Enabled() bool {
	return rl.config.RequestsPerSecond > 0
}

// Allow reports whether a request for key may proceed now.
func (rl *RateLimiter) Allow(key string) bool {
	if !rl.Enabled() {
		return true
	}
	now := rl.now()
	return rl.getBucket(key, now).limiter.AllowN(now, 1)
}

// getBucket gets or creates the bucket for key. Idle buckets are swept
// inline at most once per TTL, so the limiter needs no background goroutine.
func (rl *RateLimiter) getBucket(key string, now time.Time) *clientBucket {
	rl.bucketMutex.Lock()
	defer rl.bucketMutex.Unlock()

	if now.Sub(rl.lastSweep) >= rl.config.IdleTTL {
		for k, b := range rl.buckets {
			if now.Sub(b.lastAccess) >= rl.config.IdleTTL {
				delete(rl.buckets, k)
			}
		}
		rl.lastSweep = now
	}

	bucket, exists := rl.buckets[key]
	if !exists {
		bucket = &clientBucket{
			limiter: rate.NewLimiter(rate.Limit(rl.config.RequestsPerSecond), rl.config.BurstSize),
		}
		rl.buckets[key] = bucket
	}
	bucket.lastAccess = now
	return bucket
}

// size returns the number of tracked clients.
func (rl *RateLimiter) size() int {
	rl.bucketMutex.Lock()
	defer rl.bucketMutex.Unlock()
	return len(rl.buckets)
}

// Middleware rejects clients over their budget with 429.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	retryAfter := "1"
	if rl.Enabled() && rl.config.RequestsPerSecond < 1 {
		retryAfter = strconv.Itoa(int(1/rl.config.RequestsPerSecond + 0.5))
	}

	return func(c *gin.Context) {
		if rl.Allow(c.ClientIP()) {
			c.Next()
			return
		}
		c.Header("Retry-After", retryAfter)
		c.String(http.StatusTooManyRequests, "Too many requests, slow down")
		c.Abort()
	}
}
