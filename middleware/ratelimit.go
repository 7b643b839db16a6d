package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/siteanalyzer/backend/metrics"
)

const visitorIdleTimeout = 30 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client.
type RateLimiter struct {
	name        string
	limit       rate.Limit
	burst       int
	visitors    map[string]*visitor
	mu          sync.Mutex
	lastCleanup time.Time
	metrics     *metrics.Manager
	now         func() time.Time
}

// NewRateLimiter allows perMinute requests per client on average with bursts
// of up to burst. name labels rejections in metrics.
func NewRateLimiter(name string, perMinute float64, burst int, m *metrics.Manager) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		name:        name,
		limit:       rate.Limit(perMinute / 60),
		burst:       burst,
		visitors:    make(map[string]*visitor),
		lastCleanup: time.Now(),
		metrics:     m,
		now:         time.Now,
	}
}

// Allow reports whether key may make a request now, spending a token if so.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastCleanup) > visitorIdleTimeout {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) > visitorIdleTimeout {
				delete(rl.visitors, k)
			}
		}
		rl.lastCleanup = now
	}

	v, exists := rl.visitors[key]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// RateLimit limits requests per client IP.
func (rl *RateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.Allow(c.ClientIP()) {
			c.Next()
			return
		}

		rl.metrics.RecordRateLimited(rl.name)
		c.Header("Retry-After", strconv.Itoa(rl.retryAfterSeconds()))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":   "Too many requests",
			"message": "Rate limit exceeded. Please try again later.",
		})
	}
}

func (rl *RateLimiter) retryAfterSeconds() int {
	if rl.limit <= 0 {
		return 60
	}
	return int(math.Ceil(1 / float64(rl.limit)))
}
