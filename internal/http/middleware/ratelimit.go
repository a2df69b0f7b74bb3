package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// visitorTTL bounds how long an idle bucket survives before the sweep
// drops it.
const visitorTTL = 5 * time.Minute

// Throttle applies a token bucket per client. Buckets are scoped to the
// resolved workspace so one noisy tenant behind a shared proxy cannot
// starve another.
type Throttle struct {
	perSecond rate.Limit
	burst     int

	mu        sync.Mutex
	visitors  map[string]*visitor
	lastSweep time.Time
}

type visitor struct {
	bucket   *rate.Limiter
	lastSeen time.Time
}

// NewThrottle builds a throttle from a requests-per-minute budget. A
// non-positive budget disables throttling.
func NewThrottle(requestsPerMinute int) *Throttle {
	if requestsPerMinute <= 0 {
		return nil
	}
	burst := requestsPerMinute / 6
	if burst < 3 {
		burst = 3
	}
	return &Throttle{
		perSecond: rate.Limit(float64(requestsPerMinute) / 60),
		burst:     burst,
		visitors:  make(map[string]*visitor),
		lastSweep: time.Now(),
	}
}

// Middleware returns the gin handler. It must run after Workspace so
// the bucket key can carry the workspace scope.
func (t *Throttle) Middleware() gin.HandlerFunc {
	if t == nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		key := c.ClientIP()
		if wc, ok := GetWorkspace(c); ok && wc != nil {
			key = strconv.FormatInt(wc.Workspace.ID, 10) + "/" + key
		}
		if !t.allow(key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":             "rate_limited",
				"error_description": "Too many requests. Please slow down.",
			})
			return
		}
		c.Next()
	}
}

func (t *Throttle) allow(key string) bool {
	now := time.Now()

	t.mu.Lock()
	v, ok := t.visitors[key]
	if !ok {
		v = &visitor{bucket: rate.NewLimiter(t.perSecond, t.burst)}
		t.visitors[key] = v
	}
	v.lastSeen = now
	if now.Sub(t.lastSweep) > visitorTTL {
		t.sweepLocked(now)
	}
	t.mu.Unlock()

	return v.bucket.Allow()
}

// sweepLocked evicts idle buckets. Callers hold t.mu.
func (t *Throttle) sweepLocked(now time.Time) {
	for key, v := range t.visitors {
		if now.Sub(v.lastSeen) > visitorTTL {
			delete(t.visitors, key)
		}
	}
	t.lastSweep = now
}
