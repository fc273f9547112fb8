package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// staleClientAge is how long an idle client entry survives before sweeping.
const staleClientAge = 10 * time.Minute

type clientLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// PerClientRateLimit throttles a mutating endpoint per authenticated user
// (falling back to client IP for unauthenticated requests). This is a
// transport-level guard against request floods, separate from the
// business-level broadcast admission limits.
func PerClientRateLimit(rps float64, burst int) gin.HandlerFunc {
	var mu sync.Mutex
	clients := make(map[string]*clientLimiter)

	return func(c *gin.Context) {
		key := c.ClientIP()
		if id, exists := c.Get("user_id"); exists {
			if userID, ok := id.(uuid.UUID); ok {
				key = userID.String()
			}
		}

		now := time.Now()

		mu.Lock()
		cl, ok := clients[key]
		if !ok {
			cl = &clientLimiter{lim: rate.NewLimiter(rate.Limit(rps), burst)}
			clients[key] = cl
		}
		cl.lastSeen = now

		// Sweep idle entries so the map cannot grow without bound.
		if len(clients) > 10000 {
			for k, v := range clients {
				if now.Sub(v.lastSeen) > staleClientAge {
					delete(clients, k)
				}
			}
		}
		mu.Unlock()

		if !cl.lim.Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			c.Abort()
			return
		}

		c.Next()
	}
}
