package audit

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"docsign-backend/internal/shared/server/middleware"
	"docsign-backend/internal/shared/server/respond"
)

// DocumentAccess resolves whether a user may see a document; the error is
// rendered by AccessError when they may not.
type DocumentAccess interface {
	Authorize(ctx context.Context, userID, documentID string) error
}

type Handler struct {
	Svc         *Service
	Access      DocumentAccess
	AccessError func(c *gin.Context, err error)
}

func NewHandler(svc *Service, access DocumentAccess, accessError func(c *gin.Context, err error)) *Handler {
	return &Handler{Svc: svc, Access: access, AccessError: accessError}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/documents/:id/audit", h.list)
}

func (h *Handler) list(c *gin.Context) {
	docID := c.Param("id")
	middleware.SetDocumentID(c, docID)
	if err := h.Access.Authorize(c.Request.Context(), middleware.UserIDFromContext(c), docID); err != nil {
		if h.AccessError != nil {
			h.AccessError(c, err)
			return
		}
		respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	entries, err := h.Svc.List(c.Request.Context(), docID, limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load audit trail", nil)
		return
	}
	respond.OK(c, gin.H{"entries": entries})
}
