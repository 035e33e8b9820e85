package router

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"conversation-analytics/backend/internal/api"
	"conversation-analytics/backend/pkg/config"
	"conversation-analytics/backend/pkg/di"
	"conversation-analytics/backend/pkg/errors"
	"conversation-analytics/backend/pkg/logger"
	"conversation-analytics/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

const serviceName = "conversation-analytics"

// Track server start time for uptime calculations
var startTime = time.Now()

// Router is the main router for the application
type Router struct {
	Engine    *gin.Engine
	Container *di.Container
	Logger    *logger.Logger
	Config    *config.Config
}

// New creates the engine and installs the global middleware chain
func New(container *di.Container) *Router {
	cfg := container.Config
	log := container.Logger

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.Security.TrustedProxies); err != nil {
		log.Warn("Invalid trusted proxies, trusting none", "error", err.Error())
		_ = engine.SetTrustedProxies(nil)
	}

	dev := cfg.IsDevelopment()
	httpMetrics := middleware.NewHTTPMetrics(container.Registry)

	engine.Use(errors.RecoveryWithLogger(dev))
	engine.Use(middleware.RequestIDMiddleware())
	engine.Use(logger.Middleware(log))
	engine.Use(middleware.Tracing(serviceName))
	engine.Use(httpMetrics.Middleware())
	engine.Use(errors.ErrorHandler(dev))
	engine.Use(corsMiddleware(cfg.Security.AllowedOrigins))
	engine.Use(bodyLimit(cfg.Security.MaxBodySize))
	engine.Use(rateLimiter(container).Middleware())

	return &Router{
		Engine:    engine,
		Container: container,
		Logger:    log,
		Config:    cfg,
	}
}

func rateLimiter(container *di.Container) *middleware.RateLimiter {
	cfg := container.Config
	opts := middleware.DefaultRateLimiterOptions()
	if cfg.Security.RateLimit > 0 {
		opts.Limit = rate.Limit(cfg.Security.RateLimit)
	}
	if cfg.Security.RateLimitBurst > 0 {
		opts.Burst = cfg.Security.RateLimitBurst
	}

	var store middleware.RateLimitStore
	if container.Redis != nil {
		store = middleware.NewRedisStore(container.Redis, opts)
	}
	return middleware.NewRateLimiter(container.Logger, store, opts)
}

// Limits derives handler page bounds from configuration
func Limits(cfg *config.Config) api.Limits {
	limits := api.DefaultLimits
	if cfg.Query.DefaultLimit > 0 {
		limits.Page.DefaultLimit = cfg.Query.DefaultLimit
	}
	if cfg.Query.MaxLimit > 0 {
		limits.Page.MaxLimit = cfg.Query.MaxLimit
	}
	if cfg.Query.SearchLimit > 0 {
		limits.SearchDefault = cfg.Query.SearchLimit
	}
	if cfg.Query.SearchMaxLimit > 0 {
		limits.SearchMax = cfg.Query.SearchMaxLimit
	}
	return limits
}

// SetupRoutes registers all application routes
func (r *Router) SetupRoutes() {
	c := r.Container
	limits := Limits(r.Config)

	r.setupHealthRoutes()
	r.Engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{})))

	auth := middleware.RequireAuth(c.JWTService)
	entitlement := middleware.NewEntitlement(r.Config.Security.TenantEntitlement)

	api.NewIdentityHandler().RegisterRoutes(r.Engine.Group("/api/auth", middleware.OptionalAuth(c.JWTService)))

	apiGroup := r.Engine.Group("/api", auth)

	// Tenant management is not tenant-scoped. Under claims entitlement only
	// admins may write.
	var companyWrite []gin.HandlerFunc
	if _, claims := entitlement.(middleware.ClaimsEntitlement); claims {
		companyWrite = append(companyWrite, middleware.RequireAnyRole("admin"))
	}
	api.NewCompanyHandler(c.Companies, limits, entitlement).RegisterRoutes(apiGroup, companyWrite...)

	tenant := apiGroup.Group("", middleware.TenantGuard(entitlement))
	api.NewConversationHandler(c.Conversations, c.Contacts, limits).RegisterRoutes(tenant)
	api.NewSessionHandler(c.Sessions, c.Conversations, limits).RegisterRoutes(tenant)
	api.NewLeadHandler(c.Leads, c.Knowledge, limits).RegisterRoutes(tenant)
	api.NewStockHandler(c.Stock, limits).RegisterRoutes(tenant)
	api.NewSearchHandler(c.Search, limits).RegisterRoutes(tenant)
	api.NewMetricsHandler(c.Metrics, c.Hub, r.Config.Realtime.PushInterval).RegisterRoutes(tenant)

	r.Engine.NoRoute(func(ctx *gin.Context) {
		ctx.Error(errors.NewNotFoundError(errors.CodeNotFound, "Route not found"))
	})
}

// corsMiddleware allows the configured origins; "*" allows any. Upgrade
// headers are allowed for the realtime stream.
func corsMiddleware(allowed []string) gin.HandlerFunc {
	anyOrigin := len(allowed) == 0 || slices.Contains(allowed, "*")

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		switch {
		case origin == "":
		case anyOrigin:
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		case slices.Contains(allowed, origin):
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Add("Vary", "Origin")
		default:
			if c.Request.Method == http.MethodOptions {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
		}

		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", strings.Join([]string{
			"Content-Type", "Content-Length", "Accept", "Authorization", "Origin",
			"X-Request-ID", "Upgrade", "Connection", "Cache-Control",
		}, ", "))
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID, X-Trace-ID")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func bodyLimit(max int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if max > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, max)
		}
		c.Next()
	}
}
