package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	"github.com/yungbote/noc-backend/internal/pkg/ctxutil"
)

const (
	limiterCacheSize = 4096
	limiterIdleTTL   = 10 * time.Minute
)

// TenantRateLimiter keeps one token bucket per tenant. Buckets idle for
// limiterIdleTTL are evicted and start full again.
type TenantRateLimiter struct {
	rps      rate.Limit
	burst    int
	limiters *expirable.LRU[string, *rate.Limiter]
}

// NewTenantRateLimiter returns nil when rps <= 0; a nil limiter allows all.
func NewTenantRateLimiter(rps float64, burst int) *TenantRateLimiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = int(rps)
		if burst < 1 {
			burst = 1
		}
	}
	return &TenantRateLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		limiters: expirable.NewLRU[string, *rate.Limiter](limiterCacheSize, nil, limiterIdleTTL),
	}
}

func (l *TenantRateLimiter) limiter(key string) *rate.Limiter {
	if lim, ok := l.limiters.Get(key); ok {
		return lim
	}
	lim := rate.NewLimiter(l.rps, l.burst)
	l.limiters.Add(key, lim)
	return lim
}

func (l *TenantRateLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	return l.limiter(key).Allow()
}

// Middleware keys by the caller's tenant, falling back to client IP, and
// must run after RequireAuth.
func (l *TenantRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l == nil {
			c.Next()
			return
		}
		key := "ip:" + c.ClientIP()
		if rd := ctxutil.GetRequestData(c.Request.Context()); rd != nil {
			key = "tenant:" + rd.TenantID.String()
		}
		lim := l.limiter(key)
		if !lim.Allow() {
			retry := time.Duration(float64(time.Second) / float64(l.rps))
			c.Header("Retry-After", strconv.Itoa(int(retry.Seconds())+1))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{"message": "ingest rate limit exceeded", "code": "rate_limited"},
			})
			return
		}
		c.Next()
	}
}
