// Package mw holds the gin middlewares of the UI adapter
package mw

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// clientIdleTTL is how long an idle client's bucket is kept
const clientIdleTTL = 10 * time.Minute

// ClientLimiter keeps one token bucket per client IP. Buckets of clients
// that stay idle for the TTL are evicted.
type ClientLimiter struct {
	mu       sync.Mutex
	limiters *cache.Cache
	limit    rate.Limit
	burst    int
}

// NewClientLimiter allows limit events per second with the given burst,
// per client
func NewClientLimiter(limit rate.Limit, burst int) *ClientLimiter {
	return newClientLimiter(limit, burst, clientIdleTTL)
}

func newClientLimiter(limit rate.Limit, burst int, ttl time.Duration) *ClientLimiter {
	return &ClientLimiter{
		limiters: cache.New(ttl, ttl),
		limit:    limit,
		burst:    burst,
	}
}

// Allow reports whether the client may proceed now
func (l *ClientLimiter) Allow(client string) bool {
	l.mu.Lock()
	var limiter *rate.Limiter
	if v, ok := l.limiters.Get(client); ok {
		limiter = v.(*rate.Limiter)
	} else {
		limiter = rate.NewLimiter(l.limit, l.burst)
	}
	l.limiters.SetDefault(client, limiter)
	l.mu.Unlock()

	return limiter.Allow()
}

// RateLimit rejects requests over the per-client budget with 429
func RateLimit(limiter *ClientLimiter, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !limiter.Allow(ip) {
			logger.Debug("Rate limited", zap.String("client", ip), zap.String("path", c.FullPath()))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
