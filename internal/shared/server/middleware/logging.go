package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"docsign-backend/internal/shared/metrics"
	"docsign-backend/internal/shared/telemetry"
)

// Logging writes one request.complete line per request and feeds the
// HTTP request metrics. Document, step and
// status fields appear only when a handler annotated them.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		elapsed := time.Since(start)
		metrics.ObserveHTTPRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), elapsed)

		fields := map[string]any{
			"request_id":  RequestIDFromContext(c),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"route":       c.FullPath(),
			"status":      c.Writer.Status(),
			"duration_ms": float64(elapsed.Microseconds()) / 1000.0,
			"client_ip":   c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
		}
		if userID := UserIDFromContext(c); userID != "" {
			fields["user_id"] = userID
			fields["is_guest"] = IsGuest(c)
		}
		for key, field := range map[string]string{
			documentIDKey:       "document_id",
			signStepKey:         "sign_step",
			statusTransitionKey: "status_transition",
		} {
			if v, ok := c.Get(key); ok {
				fields[field] = v
			}
		}

		level := telemetry.Info
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = telemetry.Error
		}
		level("request.complete", fields)
	}
}
