package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	trialCookie = "sa_trial"
	trialWindow = 24 * time.Hour
)

type trialUsage struct {
	count   int
	started time.Time
}

// TrialGate lets anonymous visitors run a limited number of analyses per
// cookie. Usage is kept in memory for a day.
type TrialGate struct {
	limit  int
	secure bool
	mu     sync.Mutex
	usage  map[string]*trialUsage
	now    func() time.Time
}

// NewTrialGate allows limit trial analyses per visitor. secure marks the
// cookie Secure.
func NewTrialGate(limit int, secure bool) *TrialGate {
	if limit < 0 {
		limit = 0
	}
	return &TrialGate{
		limit:  limit,
		secure: secure,
		usage:  make(map[string]*trialUsage),
		now:    time.Now,
	}
}

// reserve takes one trial slot for id, or reports that none is left.
func (g *TrialGate) reserve(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	for k, u := range g.usage {
		if now.Sub(u.started) > trialWindow {
			delete(g.usage, k)
		}
	}

	u, ok := g.usage[id]
	if !ok {
		u = &trialUsage{started: now}
		g.usage[id] = u
	}
	if u.count >= g.limit {
		return false
	}
	u.count++
	return true
}

func (g *TrialGate) release(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if u, ok := g.usage[id]; ok && u.count > 0 {
		u.count--
	}
}

// Gate is the middleware. A slot is only spent when the handler succeeds.
func (g *TrialGate) Gate() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(trialCookie)
		if err != nil || uuid.Validate(id) != nil {
			id = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(trialCookie, id, int(trialWindow.Seconds()), "/", "", g.secure, true)
		}

		if !g.reserve(id) {
			c.AbortWithStatusJSON(http.StatusPaymentRequired, gin.H{
				"error":      "Trial limit reached",
				"message":    "Sign up for a free account to continue analyzing websites.",
				"signup_url": "/signup",
			})
			return
		}

		c.Next()

		if c.Writer.Status() >= http.StatusBadRequest {
			g.release(id)
		}
	}
}
