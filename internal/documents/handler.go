package documents

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"docsign-backend/internal/shared/server/middleware"
	"docsign-backend/internal/shared/server/respond"
	"docsign-backend/internal/shared/telemetry"
	"docsign-backend/internal/shared/util"
)

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches document routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/documents", h.upload)
	rg.POST("/documents/from-s3", h.createFromS3)
	rg.GET("/documents", h.list)
	rg.GET("/documents/shared", middleware.RequireUser(), h.listShared)
	rg.GET("/documents/:id", h.get)
	rg.GET("/documents/:id/download", h.download)
	rg.DELETE("/documents/:id", h.remove)
}

func (h *Handler) upload(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.Svc.maxUploadBytes()+1<<20)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer file.Close()

	doc, err := h.Svc.Upload(c.Request.Context(), userID, fileHeader.Filename, file)
	if err != nil {
		WriteError(c, err)
		return
	}
	middleware.SetDocumentID(c, doc.ID)
	respond.Created(c, ToResponse(doc))
}

type createFromS3Request struct {
	S3Key            string `json:"s3Key"`
	OriginalFileName string `json:"originalFileName"`
	ContentType      string `json:"contentType"`
	SizeBytes        int64  `json:"sizeBytes"`
}

// normalize trims the request and returns the first validation problem.
func (r *createFromS3Request) normalize() string {
	r.S3Key = strings.TrimSpace(r.S3Key)
	r.OriginalFileName = strings.TrimSpace(r.OriginalFileName)
	r.ContentType = strings.TrimSpace(r.ContentType)
	switch {
	case r.S3Key == "":
		return "s3Key is required"
	case r.OriginalFileName == "":
		return "originalFileName is required"
	case r.ContentType == "":
		return "contentType is required"
	case r.SizeBytes <= 0:
		return "sizeBytes must be positive"
	}
	return ""
}

func (h *Handler) createFromS3(c *gin.Context) {
	var req createFromS3Request
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if problem := req.normalize(); problem != "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", problem, nil)
		return
	}

	doc, err := h.Svc.CreateFromS3(c.Request.Context(), middleware.UserIDFromContext(c), req.S3Key, req.OriginalFileName, req.ContentType, req.SizeBytes)
	if err != nil {
		WriteError(c, err)
		return
	}
	middleware.SetDocumentID(c, doc.ID)
	respond.Created(c, ToResponse(doc))
}

func (h *Handler) list(c *gin.Context) {
	q := listQuery(c)
	docs, total, err := h.Svc.List(c.Request.Context(), middleware.UserIDFromContext(c), q)
	if err != nil {
		WriteError(c, err)
		return
	}
	q.Limit, q.Offset = util.Page(q.Limit, q.Offset, defaultListLimit, maxListLimit)
	respond.OK(c, toListResponse(docs, total, q))
}

func (h *Handler) listShared(c *gin.Context) {
	q := listQuery(c)
	docs, total, err := h.Svc.ListShared(c.Request.Context(), middleware.UserIDFromContext(c), q)
	if err != nil {
		WriteError(c, err)
		return
	}
	q.Limit, q.Offset = util.Page(q.Limit, q.Offset, defaultListLimit, maxListLimit)
	respond.OK(c, toListResponse(docs, total, q))
}

func (h *Handler) get(c *gin.Context) {
	docID := c.Param("id")
	middleware.SetDocumentID(c, docID)
	doc, err := h.Svc.Get(c.Request.Context(), middleware.UserIDFromContext(c), docID)
	if err != nil {
		WriteError(c, err)
		return
	}
	respond.OK(c, ToResponse(doc))
}

func (h *Handler) download(c *gin.Context) {
	docID := c.Param("id")
	middleware.SetDocumentID(c, docID)
	doc, body, err := h.Svc.Open(c.Request.Context(), middleware.UserIDFromContext(c), docID)
	if err != nil {
		WriteError(c, err)
		return
	}
	defer body.Close()

	// ?inline=1 lets the UI render the PDF in a viewer instead of saving it.
	disposition := "attachment"
	if inline, _ := strconv.ParseBool(c.Query("inline")); inline {
		disposition = "inline"
	}
	c.Header("Content-Type", doc.MimeType)
	c.Header("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": doc.FileName}))
	c.Header("Cache-Control", "private, no-store")
	if doc.SizeBytes > 0 {
		c.Header("Content-Length", strconv.FormatInt(doc.SizeBytes, 10))
	}
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, body); err != nil {
		telemetry.Warn("documents.download.interrupted", telemetry.Fields(c.Request.Context(), telemetry.Err(map[string]any{
			"document_id": doc.ID,
		}, err)))
	}
}

func (h *Handler) remove(c *gin.Context) {
	docID := c.Param("id")
	middleware.SetDocumentID(c, docID)
	if err := h.Svc.Delete(c.Request.Context(), middleware.UserIDFromContext(c), docID); err != nil {
		WriteError(c, err)
		return
	}
	respond.NoContent(c)
}

func listQuery(c *gin.Context) ListQuery {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	return ListQuery{
		Search: strings.TrimSpace(c.Query("search")),
		Limit:  limit,
		Offset: offset,
	}
}

// WriteError maps document errors onto the response envelope. Other packages
// that authorize through Service use it so access failures look the same.
func WriteError(c *gin.Context, err error) {
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
	case errors.Is(err, ErrForbidden):
		respond.Error(c, http.StatusForbidden, "forbidden", "document is not downloadable", nil)
	case errors.As(err, &maxErr):
		respond.Error(c, http.StatusRequestEntityTooLarge, "payload_too_large", "file too large", nil)
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "document request failed", nil)
	}
}
