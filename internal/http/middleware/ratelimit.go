package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// KeyFunc maps a request to the bucket it draws tokens from.
type KeyFunc func(*gin.Context) string

// KeyByUserOrIP buckets signed-in callers by user id and anonymous callers
// by client IP. The prefixes keep the two namespaces apart.
func KeyByUserOrIP() KeyFunc {
	return func(c *gin.Context) string {
		if id := UserID(c); id != "" {
			return "user:" + id
		}
		return "ip:" + c.ClientIP()
	}
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a process-local token bucket per key. Write endpoints
// (likes, follows, comments, messages) share one instance so a single caller
// cannot flood the notification fan-out.
type RateLimiter struct {
	rps   rate.Limit
	burst int
	keyFn KeyFunc

	mu      sync.Mutex
	buckets map[string]*bucket
	idleTTL time.Duration
	lookups uint64
	gcEvery uint64
}

// NewRateLimiter refills rps tokens per second up to burst (minimum 1).
func NewRateLimiter(rps float64, burst int, keyFn KeyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	if keyFn == nil {
		keyFn = KeyByUserOrIP()
	}
	return &RateLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		keyFn:   keyFn,
		buckets: make(map[string]*bucket),
		idleTTL: 10 * time.Minute,
		gcEvery: 5000,
	}
}

// limiterFor returns the bucket for key. Every gcEvery lookups buckets idle
// for idleTTL are dropped; eviction runs before the requested bucket is
// touched so a stale one starts over full.
func (rl *RateLimiter) limiterFor(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.lookups++
	if rl.lookups >= rl.gcEvery {
		for k, b := range rl.buckets {
			if now.Sub(b.lastSeen) >= rl.idleTTL {
				delete(rl.buckets, k)
			}
		}
		rl.lookups = 0
	}

	if b, ok := rl.buckets[key]; ok {
		b.lastSeen = now
		return b.limiter
	}
	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.buckets[key] = &bucket{limiter: lim, lastSeen: now}
	return lim
}

// retryAfter is the whole number of seconds until one token refills.
func (rl *RateLimiter) retryAfter() int {
	if rl.rps <= 0 || rl.rps >= 1 {
		return 1
	}
	return int(math.Ceil(1 / float64(rl.rps)))
}

// IsRateBypass reports whether IdempotencyValidator flagged the request as a
// replay, which never consumes tokens.
func IsRateBypass(c *gin.Context) bool {
	return c.GetBool(ctxKeyRateBypass)
}

// Handler answers 429 with Retry-After once the caller's bucket is empty.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}
		if rl.limiterFor(rl.keyFn(c), time.Now()).Allow() {
			c.Next()
			return
		}
		c.Header("Retry-After", strconv.Itoa(rl.retryAfter()))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": RequestIDFrom(c),
			"code":       "rate_limited",
			"message":    "too many requests, slow down",
		})
	}
}
