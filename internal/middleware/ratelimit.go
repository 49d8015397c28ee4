package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/smallbiznis/redmine-mcp-gateway/internal/metrics"
)

const idleLimiterTTL = 5 * time.Minute

// RateLimiter throttles each client IP to a requests-per-minute budget.
type RateLimiter struct {
	name    string
	limit   rate.Limit
	burst   int
	mu      sync.Mutex
	clients map[string]*ipLimiter
	now     func() time.Time
}

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter returns nil when requestsPerMinute is not positive, which
// disables throttling.
func NewRateLimiter(name string, requestsPerMinute int) *RateLimiter {
	if requestsPerMinute <= 0 {
		return nil
	}
	burst := requestsPerMinute / 10
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		name:    name,
		limit:   rate.Limit(float64(requestsPerMinute) / 60.0),
		burst:   burst,
		clients: make(map[string]*ipLimiter),
		now:     time.Now,
	}
}

// Handler returns the gin middleware. A nil limiter lets everything through.
func (r *RateLimiter) Handler() gin.HandlerFunc {
	if r == nil {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		reservation := r.limiterFor(c.ClientIP()).ReserveN(r.now(), 1)
		if delay := reservation.DelayFrom(r.now()); !reservation.OK() || delay > 0 {
			reservation.CancelAt(r.now())
			metrics.RateLimitRejected.WithLabelValues(r.name).Inc()
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":             "rate_limited",
				"error_description": "Too many requests. Please slow down.",
			})
			return
		}
		c.Next()
	}
}

func (r *RateLimiter) limiterFor(ip string) *rate.Limiter {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.clients[ip]; ok {
		entry.lastSeen = now
		return entry.limiter
	}
	for key, entry := range r.clients {
		if now.Sub(entry.lastSeen) > idleLimiterTTL {
			delete(r.clients, key)
		}
	}
	limiter := rate.NewLimiter(r.limit, r.burst)
	r.clients[ip] = &ipLimiter{limiter: limiter, lastSeen: now}
	return limiter
}
