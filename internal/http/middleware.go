package http

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"agenda-api/internal/domain"
	"agenda-api/internal/session"
)

const identityKey = "agenda.identity"

// requestLogger emits one entry per request; the level follows the status class.
func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()
		route := c.FullPath()

		if h.metrics != nil {
			h.metrics.RecordRequest(c.Request.Method, route, status, duration)
		}

		fields := logrus.Fields{
			"method":      c.Request.Method,
			"route":       route,
			"path":        c.Request.URL.Path,
			"status":      status,
			"duration_ms": duration.Milliseconds(),
			"client_ip":   c.ClientIP(),
		}
		if uid := userID(c); uid > 0 {
			fields["user_id"] = uid
		}
		entry := h.logger.WithFields(fields)

		switch {
		case status >= http.StatusInternalServerError:
			entry.Error("request failed")
		case status >= http.StatusBadRequest:
			entry.Warn("request rejected")
		default:
			entry.Info("request handled")
		}
	}
}

// sessionMiddleware binds the identity behind the session cookie, if any.
// Invalid, expired or revoked tokens leave the request unbound.
func (h *Handler) sessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(h.cookie.Name)
		if err != nil || token == "" {
			c.Next()
			return
		}

		ident, err := h.sessions.Resolve(c.Request.Context(), token)
		if err != nil {
			if !errors.Is(err, domain.ErrUnauthenticated) {
				h.logger.WithError(err).Error("resolve session failed")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Erro interno do servidor."})
				return
			}
			c.Next()
			return
		}

		c.Set(identityKey, ident)
		c.Next()
	}
}

func (h *Handler) requireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := identity(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msgLoginRequired})
			return
		}
		c.Next()
	}
}

func identity(c *gin.Context) (session.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return session.Identity{}, false
	}
	ident, ok := v.(session.Identity)
	return ident, ok
}

// userID returns the session user or zero when the request is unbound.
func userID(c *gin.Context) int64 {
	ident, _ := identity(c)
	return ident.UserID
}

func (h *Handler) setSessionCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, token, int(h.sessions.TTL().Seconds()), "/", "", h.cookie.Secure, true)
}

func (h *Handler) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, "", -1, "/", "", h.cookie.Secure, true)
}

func (h *Handler) rateLimitLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.loginLimiter == nil {
			c.Next()
			return
		}
		ip := c.ClientIP()
		if !h.loginLimiter.Allow(ip) {
			h.logger.WithField("client_ip", ip).Warn("login rate limit exceeded")
			c.Header("Retry-After", strconv.Itoa(h.loginLimiter.RetryAfterSeconds()))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Muitas tentativas de login. Tente novamente mais tarde."})
			return
		}
		c.Next()
	}
}

type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter keeps one token bucket per key. Idle buckets are dropped
// lazily once they have been unused for twice the cleanup interval.
type RateLimiter struct {
	perMinute       float64
	limit           rate.Limit
	burst           int
	cleanupInterval time.Duration
	now             func() time.Time

	mu          sync.Mutex
	clients     map[string]*clientLimiter
	lastCleanup time.Time
}

// NewRateLimiter allows perMinute events per key with the given burst.
// It returns nil when perMinute is not positive.
func NewRateLimiter(perMinute float64, burst int) *RateLimiter {
	if perMinute <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		perMinute:       perMinute,
		limit:           rate.Limit(perMinute / 60),
		burst:           burst,
		cleanupInterval: 5 * time.Minute,
		now:             time.Now,
		clients:         make(map[string]*clientLimiter),
		lastCleanup:     time.Now(),
	}
}

func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastCleanup) >= rl.cleanupInterval {
		rl.cleanup(now)
	}

	cl, ok := rl.clients[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[key] = cl
	}
	cl.lastAccess = now
	return cl.limiter.AllowN(now, 1)
}

// Len reports how many keys are tracked.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// RetryAfterSeconds estimates how long until one token is refilled.
func (rl *RateLimiter) RetryAfterSeconds() int {
	secs := int(math.Ceil(60 / rl.perMinute))
	if secs < 1 {
		secs = 1
	}
	return secs
}

func (rl *RateLimiter) cleanup(now time.Time) {
	ttl := rl.cleanupInterval * 2
	for key, cl := range rl.clients {
		if now.Sub(cl.lastAccess) > ttl {
			delete(rl.clients, key)
		}
	}
	rl.lastCleanup = now
}
