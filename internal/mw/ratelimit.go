package mw

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// DeviceHeader identifies the kiosk or staff screen calling the local API.
const DeviceHeader = "X-Device-UID"

// ClientRateLimiter stores a rate limiter for each client key.
type ClientRateLimiter struct {
	clients map[string]*rate.Limiter
	mu      sync.RWMutex
	r       rate.Limit
	b       int
}

func NewClientRateLimiter(r rate.Limit, b int) *ClientRateLimiter {
	return &ClientRateLimiter{
		clients: make(map[string]*rate.Limiter),
		r:       r,
		b:       b,
	}
}

// GetLimiter returns the rate limiter for a client, creating it on first use.
func (l *ClientRateLimiter) GetLimiter(key string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.clients[key]
	l.mu.RUnlock()
	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if limiter, exists = l.clients[key]; !exists {
		limiter = rate.NewLimiter(l.r, l.b)
		l.clients[key] = limiter
	}
	return limiter
}

// ClientKey is the device header when present, else the client IP.
func ClientKey(c *gin.Context) string {
	if uid := c.GetHeader(DeviceHeader); uid != "" {
		return "device:" + uid
	}
	return "ip:" + c.ClientIP()
}

// RateLimiter is a middleware for per-client rate limiting.
func RateLimiter(r rate.Limit, b int) gin.HandlerFunc {
	limiter := NewClientRateLimiter(r, b)
	return func(c *gin.Context) {
		if !limiter.GetLimiter(ClientKey(c)).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
