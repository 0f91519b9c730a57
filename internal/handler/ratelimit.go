package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/storefront/backend/internal/config"
	"github.com/storefront/backend/internal/metrics"
	"github.com/storefront/backend/internal/model"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	rateLimitBurst   = 5
	visitorIdleAfter = 5 * time.Minute
)

// IPRateLimiter throttles unauthenticated endpoints per client IP.
type IPRateLimiter struct {
	visitors sync.Map
	rps      rate.Limit
	burst    int
	logger   *zap.Logger
	now      func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	mu       sync.Mutex
	lastSeen time.Time
}

// NewIPRateLimiter allows perMinute requests per IP after a burst of
// rateLimitBurst. A non-positive rate falls back to the configured default.
func NewIPRateLimiter(perMinute int, logger *zap.Logger) *IPRateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if perMinute <= 0 {
		perMinute = config.DefaultAuthRatePerMinute
	}
	return &IPRateLimiter{
		rps:    rate.Limit(float64(perMinute) / 60.0),
		burst:  rateLimitBurst,
		logger: logger,
		now:    time.Now,
	}
}

func (l *IPRateLimiter) limiter(ip string) *rate.Limiter {
	now := l.now()
	v, ok := l.visitors.Load(ip)
	if !ok {
		v, _ = l.visitors.LoadOrStore(ip, &visitor{limiter: rate.NewLimiter(l.rps, l.burst), lastSeen: now})
	}
	vi := v.(*visitor)
	vi.mu.Lock()
	vi.lastSeen = now
	vi.mu.Unlock()
	return vi.limiter
}

// Cleanup forgets visitors idle for longer than visitorIdleAfter.
func (l *IPRateLimiter) Cleanup() {
	cutoff := l.now().Add(-visitorIdleAfter)
	l.visitors.Range(func(k, v any) bool {
		vi := v.(*visitor)
		vi.mu.Lock()
		idle := vi.lastSeen.Before(cutoff)
		vi.mu.Unlock()
		if idle {
			l.visitors.Delete(k)
		}
		return true
	})
}

// Run calls Cleanup every minute until ctx is done.
func (l *IPRateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Cleanup()
		}
	}
}

func (l *IPRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		if !l.limiter(ip).Allow() {
			metrics.RateLimitExceededTotal.Inc()
			l.logger.Warn("Rate limit exceeded", zap.String("ip", ip), zap.String("path", c.FullPath()))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, model.ErrorResponse{Message: msgTooManyRequests})
			return
		}
		c.Next()
	}
}
