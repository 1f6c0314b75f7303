package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"docsign-backend/internal/shared/util"
)

const (
	corsMaxAge       = "600"
	corsAllowMethods = "GET,POST,PUT,PATCH,DELETE,OPTIONS"
	corsAllowHeaders = "Content-Type, Authorization, X-Guest-Id, X-Request-Id"
	// Content-Disposition carries the file name of document downloads.
	corsExposeHeaders = "X-Request-Id, Content-Disposition, Retry-After"
)

// CORS answers preflights and decorates responses for allowed origins.
// Preflights from other origins still get 204, just without grants.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	origins := util.NewOriginSet(allowedOrigins)
	return func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); origins.Allows(origin) {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Methods", corsAllowMethods)
			h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
			h.Set("Access-Control-Expose-Headers", corsExposeHeaders)
			h.Set("Access-Control-Max-Age", corsMaxAge)
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
