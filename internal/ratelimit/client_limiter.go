package ratelimit

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// clientLimiter stores the token bucket of a single client
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ClientLimiter is a per-client token bucket used in front of the auth endpoints
type ClientLimiter struct {
	clients map[string]*clientLimiter
	mu      sync.Mutex
	rps     rate.Limit
	burst   int
	idleTTL time.Duration
}

func NewClientLimiter(requestsPerSecond float64, burst int) *ClientLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &ClientLimiter{
		clients: make(map[string]*clientLimiter),
		rps:     rate.Limit(requestsPerSecond),
		burst:   burst,
		idleTTL: 30 * time.Minute,
	}
}

// getClientLimiter retrieves or creates the limiter for a given client identifier
func (cl *ClientLimiter) getClientLimiter(identifier string) *rate.Limiter {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	entry, exists := cl.clients[identifier]
	if !exists {
		entry = &clientLimiter{limiter: rate.NewLimiter(cl.rps, cl.burst)}
		cl.clients[identifier] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter
}

// Allow consumes one token for the client
func (cl *ClientLimiter) Allow(identifier string) bool {
	return cl.getClientLimiter(identifier).Allow()
}

// StartCleanup removes idle client entries every interval until ctx is done
func (cl *ClientLimiter) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := cl.cleanup(); n > 0 {
					log.Printf("[RateLimit] Cleanup removed %d idle client entries", n)
				}
			}
		}
	}()
}

func (cl *ClientLimiter) cleanup() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	count := 0
	for id, client := range cl.clients {
		if time.Since(client.lastSeen) > cl.idleTTL {
			delete(cl.clients, id)
			count++
		}
	}
	return count
}

// Limit creates the gin middleware, keyed by client IP
func (cl *ClientLimiter) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientKey := c.ClientIP()
		if !cl.Allow(clientKey) {
			log.Printf("[RateLimit] Limit exceeded for client %s on %s", clientKey, c.FullPath())
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}
		c.Next()
	}
}
