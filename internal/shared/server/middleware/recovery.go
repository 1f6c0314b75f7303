package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"docsign-backend/internal/shared/server/respond"
	"docsign-backend/internal/shared/telemetry"
)

// Recovery turns a handler panic into a 500 envelope. When the handler had
// already started streaming a body (a PDF download) the connection is only
// aborted.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			telemetry.Error("http.panic", telemetry.Fields(c.Request.Context(), map[string]any{
				"error":  fmt.Sprint(rec),
				"stack":  string(debug.Stack()),
				"route":  c.FullPath(),
				"method": c.Request.Method,
			}))
			if c.Writer.Written() {
				c.Abort()
				return
			}
			respond.Error(c, http.StatusInternalServerError, "internal", "Unexpected server error", nil)
		}()
		c.Next()
	}
}
