package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"docsign-backend/internal/audit"
	googleauth "docsign-backend/internal/auth"
	"docsign-backend/internal/certificates"
	"docsign-backend/internal/documents"
	"docsign-backend/internal/services/health"
	"docsign-backend/internal/shared/config"
	"docsign-backend/internal/shared/metrics"
	"docsign-backend/internal/shared/server/middleware"
	"docsign-backend/internal/shared/server/respond"
	"docsign-backend/internal/shares"
	"docsign-backend/internal/uploads"
	"docsign-backend/internal/users"
)

// RouterDeps carries the handlers mounted under /api/v1. Nil handlers are
// skipped so partial builds (tests, the lambda adapter) still route.
type RouterDeps struct {
	Config             config.Config
	DocumentHandler    *documents.Handler
	ShareHandler       *shares.Handler
	AuditHandler       *audit.Handler
	CertificateHandler *certificates.Handler
	UserHandler        *users.Handler
	UploadsHandler     *uploads.Handler
	GoogleAuth         *googleauth.GoogleService
	IsAdmin            func(ctx context.Context, userID string) (bool, error)
	RateLimiter        *middleware.RateLimiter
	Health             *health.Service
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.GET("/metrics", metrics.Handler())
	r.GET("/healthz", readiness(deps.Health))

	limiter := deps.RateLimiter
	if limiter == nil {
		limiter = middleware.NewRateLimiter(nil)
	}

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	api := r.Group("/api/v1")
	api.GET("/health", liveness)
	if deps.GoogleAuth != nil {
		deps.GoogleAuth.RegisterRoutes(api)
	}

	api.Use(
		middleware.Auth(deps.Config.Env),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules:        middleware.DefaultRateLimitRules(),
			DefaultGroup: middleware.RateLimitGroupDefault,
			GroupFor:     middleware.GroupForRoute,
			Limiter:      limiter,
		}),
	)
	api.GET("/session", session)

	if deps.DocumentHandler != nil {
		deps.DocumentHandler.RegisterRoutes(api)
	}
	if deps.ShareHandler != nil {
		deps.ShareHandler.RegisterRoutes(api)
	}
	if deps.AuditHandler != nil {
		deps.AuditHandler.RegisterRoutes(api)
	}
	if deps.CertificateHandler != nil {
		deps.CertificateHandler.RegisterRoutes(api)
	}
	if deps.UploadsHandler != nil {
		deps.UploadsHandler.RegisterRoutes(api)
	}
	if deps.UserHandler != nil {
		deps.UserHandler.RegisterRoutes(api)
		if deps.IsAdmin != nil {
			admin := api.Group("/admin", middleware.RequireUser(), middleware.RequireAdmin(deps.IsAdmin))
			deps.UserHandler.RegisterAdminRoutes(admin)
		}
	}

	return r
}

func liveness(c *gin.Context) {
	respond.JSON(c, http.StatusOK, gin.H{"ok": true})
}

// readiness probes the database and broker; load balancers drain the
// instance on 503.
func readiness(svc *health.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if svc == nil {
			liveness(c)
			return
		}
		report := svc.Status(c.Request.Context())
		status := http.StatusOK
		if !report.OK {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, report)
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
