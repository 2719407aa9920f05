package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"agenda-api/internal/authz"
	"agenda-api/internal/domain"
	"agenda-api/internal/service"
	"agenda-api/internal/session"
)

// Pinger reports whether the record store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// RequestRecorder receives one observation per finished request.
type RequestRecorder interface {
	RecordRequest(method, route string, statusCode int, duration time.Duration)
}

// CookieConfig describes the session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
}

// Deps groups the collaborators of Handler.
type Deps struct {
	Identity service.IdentityService
	Agendas  service.AgendaService
	Events   service.EventService
	Sessions *session.Manager
	Gate     *authz.Gate
	Cookie   CookieConfig
	// LoginLimiter throttles POST /login per client IP; nil disables it.
	LoginLimiter *RateLimiter
	// TrustedProxies lists the proxy IPs or CIDRs whose X-Forwarded-For is honored.
	// Empty means the client address is always the TCP peer.
	TrustedProxies []string
	Store          Pinger
	Metrics      RequestRecorder
	// MetricsHandler serves GET /metrics when set.
	MetricsHandler http.Handler
	Logger         logrus.FieldLogger
}

// Handler wires HTTP routes to domain services.
type Handler struct {
	identity       service.IdentityService
	agendas        service.AgendaService
	events         service.EventService
	sessions       *session.Manager
	gate           *authz.Gate
	cookie         CookieConfig
	loginLimiter   *RateLimiter
	trustedProxies []string
	store          Pinger
	metrics        RequestRecorder
	metricsHandler http.Handler
	logger         logrus.FieldLogger
}

func NewHandler(deps Deps) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{
		identity:       deps.Identity,
		agendas:        deps.Agendas,
		events:         deps.Events,
		sessions:       deps.Sessions,
		gate:           deps.Gate,
		cookie:         deps.Cookie,
		loginLimiter:   deps.LoginLimiter,
		trustedProxies: deps.TrustedProxies,
		store:          deps.Store,
		metrics:        deps.Metrics,
		metricsHandler: deps.MetricsHandler,
		logger:         logger,
	}
}

// NewRouter returns a gin engine with every route and middleware registered.
func (h *Handler) NewRouter() *gin.Engine {
	router := gin.New()
	if err := router.SetTrustedProxies(h.trustedProxies); err != nil {
		h.logger.WithError(err).Error("invalid trusted proxies, client addresses fall back to the peer address")
		_ = router.SetTrustedProxies(nil)
	}
	router.Use(gin.CustomRecovery(h.recoverPanic))
	h.RegisterRoutes(router)
	return router
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(h.requestLogger(), h.sessionMiddleware())

	router.GET("/", h.welcome)
	router.GET("/health", h.health)
	if h.metricsHandler != nil {
		router.GET("/metrics", gin.WrapH(h.metricsHandler))
	}

	router.POST("/registrar", h.register)
	router.POST("/login", h.rateLimitLogin(), h.login)

	authed := router.Group("/", h.requireSession())
	{
		authed.POST("/logout", h.logout)
		authed.DELETE("/usuario", h.deleteAccount)

		authed.POST("/agendas", h.createAgenda)
		authed.GET("/agendas", h.listAgendas)
		authed.DELETE("/agendas/:id", h.deleteAgenda)
		authed.GET("/agendas/:id/ics", h.exportAgenda)

		authed.POST("/eventos", h.createEvent)
		authed.GET("/eventos/agenda/:id_agenda", h.listEvents)
		authed.DELETE("/eventos/:id", h.deleteEvent)
	}
}

func (h *Handler) welcome(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Bem-vindo à API da Agenda Eletrônica!"})
}

func (h *Handler) health(c *gin.Context) {
	if h.store != nil {
		if err := h.store.PingContext(c.Request.Context()); err != nil {
			h.logger.WithError(err).Warn("health check: store unreachable")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) recoverPanic(c *gin.Context, recovered any) {
	h.logger.WithFields(logrus.Fields{
		"method": c.Request.Method,
		"path":   c.Request.URL.Path,
		"panic":  recovered,
	}).Error("panic while handling request")
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Erro interno do servidor."})
}

// statusFor maps the domain error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

var defaultMessages = map[int]string{
	http.StatusBadRequest:   "Requisição inválida.",
	http.StatusUnauthorized: msgLoginRequired,
	http.StatusForbidden:    "Acesso negado.",
	http.StatusNotFound:     "Recurso não encontrado.",
	http.StatusConflict:     "Conflito com um registro existente.",
}

const msgLoginRequired = "Acesso negado. Por favor, faça o login."

// failure describes how one operation reports errors to the client.
type failure struct {
	op       string
	internal string
	messages map[int]string
}

// fail writes the error response for err. Store failures are logged with the
// operation and ids; their details never reach the client.
func (h *Handler) fail(c *gin.Context, f failure, err error, fields logrus.Fields) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		entry := h.logger.WithFields(fields).WithField("op", f.op)
		if uid := userID(c); uid > 0 {
			entry = entry.WithField("user_id", uid)
		}
		entry.WithError(err).Error(f.op + " failed")
		c.JSON(status, gin.H{"error": f.internal})
		return
	}

	msg, ok := f.messages[status]
	if !ok {
		msg = defaultMessages[status]
	}
	c.JSON(status, gin.H{"error": msg})
}

// pathID parses a positive integer path parameter.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Identificador inválido."})
		return 0, false
	}
	return id, true
}
