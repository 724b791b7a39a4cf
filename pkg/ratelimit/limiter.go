package ratelimit

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// MapLimiter applies a token bucket per string key and periodically evicts idle entries.
type MapLimiter struct {
	limit   rate.Limit
	burst   int
	mu      sync.Mutex
	byKey   map[string]*entry
	hits    uint64
	idleTTL time.Duration
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New creates a key-based limiter; returns nil (allow everything) if args are invalid.
func New(rps float64, burst int, idleTTL time.Duration) *MapLimiter {
	if rps <= 0 || burst <= 0 {
		return nil
	}
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &MapLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		byKey:   make(map[string]*entry),
		idleTTL: idleTTL,
	}
}

// Allow reports whether one token can be consumed for the key at now.
func (l *MapLimiter) Allow(key string, now time.Time) bool {
	if l == nil {
		return true
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.byKey[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.byKey[key] = e
	}
	e.lastSeen = now
	allowed := e.limiter.AllowN(now, 1)

	l.hits++
	if l.hits%512 == 0 {
		cutoff := now.Add(-l.idleTTL)
		for k, v := range l.byKey {
			if v.lastSeen.Before(cutoff) {
				delete(l.byKey, k)
			}
		}
	}

	return allowed
}

// KeyFunc picks the bucket for a request
type KeyFunc func(c *gin.Context) string

// ByClientIP buckets requests by client address
func ByClientIP(c *gin.Context) string {
	return c.ClientIP()
}

// ByParam buckets requests by a path parameter, e.g. the session id
func ByParam(name string) KeyFunc {
	return func(c *gin.Context) string {
		return c.Param(name)
	}
}

// Middleware rejects requests over the limit with 429.
// onReject renders the response, so callers keep their own error envelope.
func Middleware(l *MapLimiter, key KeyFunc, onReject func(c *gin.Context)) gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.Allow(key(c), time.Now()) {
			c.Next()
			return
		}
		if onReject != nil {
			onReject(c)
		} else {
			c.Status(http.StatusTooManyRequests)
		}
		c.Abort()
	}
}
