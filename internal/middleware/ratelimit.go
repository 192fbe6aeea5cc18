package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"craftcrm/internal/config"
	"craftcrm/internal/metrics"

	"github.com/gin-gonic/gin"
)

// tokenBucket is a minimal token bucket refilled at ratePerSec.
type tokenBucket struct {
	mu         sync.Mutex
	tokens     float64
	capacity   float64
	ratePerSec float64
	last       time.Time
}

func newTokenBucket(requestsPerMinute, burst int) *tokenBucket {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	if burst <= 0 {
		burst = requestsPerMinute
	}
	return &tokenBucket{
		tokens:     float64(burst),
		capacity:   float64(burst),
		ratePerSec: float64(requestsPerMinute) / 60.0,
		last:       time.Now(),
	}
}

func (b *tokenBucket) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now()
	elapsed := now.Sub(b.last).Seconds()
	b.last = now
	b.tokens += elapsed * b.ratePerSec
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// rateLimiter keys buckets by client identity (API key header or client IP),
// optionally with a per-path prefix override.
type rateLimiter struct {
	cfg     config.RateLimitingConfig
	mu      sync.Mutex
	buckets map[string]*tokenBucket
}

func newRateLimiter(cfg config.RateLimitingConfig) *rateLimiter {
	return &rateLimiter{
		cfg:     cfg,
		buckets: make(map[string]*tokenBucket),
	}
}

// pathOverride returns the most specific enabled prefix rule for path.
func (l *rateLimiter) pathOverride(path string) *config.PathRateLimitConfig {
	var best *config.PathRateLimitConfig
	for i := range l.cfg.Paths {
		p := &l.cfg.Paths[i]
		if !p.Enabled || p.Prefix == "" {
			continue
		}
		if strings.HasPrefix(path, p.Prefix) {
			if best == nil || len(p.Prefix) > len(best.Prefix) {
				best = p
			}
		}
	}
	return best
}

func (l *rateLimiter) bucketFor(key string, rpm, burst int) *tokenBucket {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[key]
	if !ok {
		b = newTokenBucket(rpm, burst)
		l.buckets[key] = b
	}
	return b
}

func clientIP(c *gin.Context) string {
	ip := c.ClientIP()
	if host, _, err := net.SplitHostPort(ip); err == nil {
		return host
	}
	return ip
}

// RateLimitMiddleware applies token-bucket limiting per client.
// Clients on the IP or key whitelist are never limited. Per-path
// prefix overrides take precedence over the global rpm/burst.
func RateLimitMiddleware(cfg config.RateLimitingConfig) gin.HandlerFunc {
	limiter := newRateLimiter(cfg)
	return func(c *gin.Context) {
		if !cfg.Enabled {
			c.Next()
			return
		}

		ip := clientIP(c)
		for _, w := range cfg.WhitelistIPs {
			if w == ip {
				c.Next()
				return
			}
		}

		key := ip
		if cfg.KeyHeader != "" {
			if hv := c.GetHeader(cfg.KeyHeader); hv != "" {
				for _, w := range cfg.WhitelistKeys {
					if w == hv {
						c.Next()
						return
					}
				}
				key = "key:" + hv
			}
		}

		rpm, burst := cfg.RequestsPerMinute, cfg.Burst
		prefix := "global"
		if ov := limiter.pathOverride(c.Request.URL.Path); ov != nil {
			rpm, burst = ov.RequestsPerMinute, ov.Burst
			prefix = ov.Prefix
			key = prefix + "|" + key
		}

		if !limiter.bucketFor(key, rpm, burst).allow() {
			metrics.IncRateLimitDrop(prefix)
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "Too Many Requests",
				"message": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
