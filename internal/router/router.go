package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	appointmentH "github.com/jwalitptl/clinic-api/internal/handler/appointment"
	auditH "github.com/jwalitptl/clinic-api/internal/handler/audit"
	authH "github.com/jwalitptl/clinic-api/internal/handler/auth"
	catalogH "github.com/jwalitptl/clinic-api/internal/handler/catalog"
	clientH "github.com/jwalitptl/clinic-api/internal/handler/client"
	clinicH "github.com/jwalitptl/clinic-api/internal/handler/clinic"
	"github.com/jwalitptl/clinic-api/internal/handler/health"
	invitationH "github.com/jwalitptl/clinic-api/internal/handler/invitation"
	memberH "github.com/jwalitptl/clinic-api/internal/handler/member"
	paymentH "github.com/jwalitptl/clinic-api/internal/handler/payment"
	permissionH "github.com/jwalitptl/clinic-api/internal/handler/permission"
	professionalH "github.com/jwalitptl/clinic-api/internal/handler/professional"
	webhookH "github.com/jwalitptl/clinic-api/internal/handler/webhook"
	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/pkg/event"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

// Handlers groups every HTTP handler the API mounts.
type Handlers struct {
	Health       *health.Handler
	Auth         *authH.Handler
	Clinic       *clinicH.Handler
	Member       *memberH.Handler
	Permission   *permissionH.Handler
	Invitation   *invitationH.Handler
	Client       *clientH.Handler
	Professional *professionalH.Handler
	Catalog      *catalogH.Handler
	Appointment  *appointmentH.Handler
	Payment      *paymentH.Handler
	Audit        *auditH.Handler
	Webhook      *webhookH.Handler
}

type RouterConfig struct {
	RateLimit      rate.Limit
	RateBurst      int
	RateTTL        time.Duration
	AuthRateLimit  rate.Limit
	AuthRateBurst  int
	CORSConfig     middleware.CORSConfig
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	Gatherer       prometheus.Gatherer
	ReleaseMode    bool
}

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	tracker  *event.Tracker
	handlers Handlers
	config   RouterConfig
}

func NewRouter(auth *middleware.AuthMiddleware, tracker *event.Tracker, m *metrics.Metrics, handlers Handlers, config RouterConfig) *Router {
	if config.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.RegisterValidators(model.Validators())

	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(),
		middleware.Logger(),
		middleware.Metrics(m),
		middleware.CORS(config.CORSConfig),
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig()),
		middleware.SizeLimit(middleware.SizeLimitConfig{MaxBodySize: config.MaxBodyBytes}),
		middleware.Timeout(middleware.TimeoutConfig{Duration: config.RequestTimeout}),
	)
	if config.RateLimit > 0 {
		limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
			TTL:   config.RateTTL,
		})
		engine.Use(limiter.RateLimit())
	}
	engine.Use(middleware.RequestInfo())

	return &Router{
		engine:   engine,
		auth:     auth,
		tracker:  tracker,
		handlers: handlers,
		config:   config,
	}
}

func (r *Router) Setup() {
	h := r.handlers

	if r.config.Gatherer != nil {
		h.Health.RegisterMetrics(r.engine, r.config.Gatherer)
	}

	api := r.engine.Group("/api/v1")
	h.Health.RegisterRoutes(api)
	h.Webhook.RegisterRoutes(api)

	// Credential and token endpoints get a tighter per-IP budget.
	var guard []gin.HandlerFunc
	if r.config.AuthRateLimit > 0 {
		limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  r.config.AuthRateLimit,
			Burst: r.config.AuthRateBurst,
			TTL:   r.config.RateTTL,
		})
		guard = append(guard, limiter.RateLimitBy(func(c *gin.Context) string {
			return c.ClientIP() + "|" + c.FullPath()
		}))
	}
	h.Auth.RegisterPublicRoutes(api, guard...)
	h.Invitation.RegisterPublicRoutes(api, guard...)

	authed := api.Group("", r.auth.Authenticate())
	h.Auth.RegisterRoutes(authed)
	h.Clinic.RegisterRoutes(authed, r.tracker)

	clinic := authed.Group("/clinics/:clinicID", r.auth.RequireClinicMember())
	h.Clinic.RegisterClinicRoutes(clinic, r.auth, r.tracker)
	h.Member.RegisterRoutes(clinic, r.auth, r.tracker)
	h.Permission.RegisterRoutes(clinic, r.auth, r.tracker)
	h.Invitation.RegisterRoutes(clinic, r.auth, r.tracker)
	h.Client.RegisterRoutes(clinic, r.auth, r.tracker)
	h.Professional.RegisterRoutes(clinic, r.auth, r.tracker)
	h.Catalog.RegisterRoutes(clinic, r.auth, r.tracker)
	h.Appointment.RegisterRoutes(clinic, r.auth, r.tracker)
	h.Payment.RegisterRoutes(clinic, r.auth, r.tracker)
	h.Audit.RegisterRoutes(clinic, r.auth)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
