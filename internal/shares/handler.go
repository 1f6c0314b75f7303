package shares

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"docsign-backend/internal/events"
	"docsign-backend/internal/shared/server/middleware"
	"docsign-backend/internal/shared/server/respond"
	"docsign-backend/internal/signing"
)

const maxShareBodyBytes = 1 << 20

type Handler struct {
	Svc *Service
	Hub *events.Hub
}

func NewHandler(svc *Service, hub *events.Hub) *Handler {
	return &Handler{Svc: svc, Hub: hub}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.PUT("/documents/:id/share", middleware.RequireUser(), h.share)
	rg.GET("/documents/:id/signers", h.signers)
	rg.POST("/documents/:id/sign", middleware.RequireUser(), h.sign)
	rg.GET("/documents/:id/events", h.stream)
	rg.POST("/signing-order/preview", h.preview)
}

type shareBody struct {
	Message      string `json:"message"`
	Downloadable bool   `json:"downloadable"`
}

func (h *Handler) share(c *gin.Context) {
	docID := c.Param("id")
	middleware.SetDocumentID(c, docID)

	raw, err := readBody(c)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	var body shareBody
	if err := json.Unmarshal(raw, &body); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	parsed, err := signing.ParseAssignments(raw)
	if err != nil {
		writeError(c, err)
		return
	}
	participants := make([]ParticipantInput, 0, len(parsed))
	for _, a := range parsed {
		participants = append(participants, ParticipantInput{
			UserID:     a.UserID,
			Step:       a.Step,
			Parallel:   a.Parallel,
			Permission: string(a.Permission),
		})
	}

	view, err := h.Svc.Share(c.Request.Context(), middleware.UserIDFromContext(c), ShareRequest{
		DocumentID:   docID,
		Message:      body.Message,
		Downloadable: body.Downloadable,
		Participants: participants,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	middleware.SetStatusTransition(c, string(view.Status))
	respond.OK(c, view)
}

func (h *Handler) signers(c *gin.Context) {
	docID := c.Param("id")
	middleware.SetDocumentID(c, docID)
	view, err := h.Svc.Roster(c.Request.Context(), middleware.UserIDFromContext(c), docID)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, view)
}

type signBody struct {
	CertificateID string `json:"certificateId"`
}

func (h *Handler) sign(c *gin.Context) {
	docID := c.Param("id")
	middleware.SetDocumentID(c, docID)

	var body signBody
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
			return
		}
	}

	userID := middleware.UserIDFromContext(c)
	view, err := h.Svc.Sign(c.Request.Context(), userID, docID, strings.TrimSpace(body.CertificateID))
	if err != nil {
		writeError(c, err)
		return
	}
	if a, ok := signing.NewRoster(view.Signers).Find(userID); ok {
		middleware.SetSignStep(c, a.Step)
	}
	middleware.SetStatusTransition(c, string(view.Status))
	respond.OK(c, view)
}

func (h *Handler) stream(c *gin.Context) {
	docID := c.Param("id")
	middleware.SetDocumentID(c, docID)
	view, err := h.Svc.Roster(c.Request.Context(), middleware.UserIDFromContext(c), docID)
	if err != nil {
		writeError(c, err)
		return
	}
	steps := make([]signing.Assignment, 0, len(view.Signers)+len(view.Viewers))
	steps = append(steps, view.Signers...)
	steps = append(steps, view.Viewers...)
	h.Hub.ServeWS(c, docID, &events.Event{
		Type:        events.TypeDocumentUpdated,
		DocumentID:  docID,
		SignerSteps: steps,
	})
}

type previewBody struct {
	Assignments json.RawMessage `json:"assignments"`
	Operations  []Operation     `json:"operations"`
	UserID      string          `json:"userId"`
}

func (h *Handler) preview(c *gin.Context) {
	var body previewBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	var list []signing.Assignment
	if trimmed := strings.TrimSpace(string(body.Assignments)); trimmed != "" && trimmed != "null" {
		parsed, err := signing.ParseAssignments(body.Assignments)
		if err != nil {
			writeError(c, err)
			return
		}
		list = parsed
	}
	userID := strings.TrimSpace(body.UserID)
	if userID == "" {
		userID = middleware.UserIDFromContext(c)
	}

	res, err := Preview(PreviewRequest{Assignments: list, Operations: body.Operations, UserID: userID})
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, res)
}

func readBody(c *gin.Context) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxShareBodyBytes)
	return c.GetRawData()
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
	case errors.Is(err, signing.ErrMalformed), errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, ErrForbidden):
		respond.Error(c, http.StatusForbidden, "forbidden", "viewers cannot sign", nil)
	case errors.Is(err, ErrNotYourTurn):
		respond.Error(c, http.StatusConflict, "not_your_turn", "waiting on earlier signers", nil)
	case errors.Is(err, ErrAlreadySigned):
		respond.Error(c, http.StatusConflict, "already_signed", "document already signed", nil)
	case errors.Is(err, ErrConflict):
		respond.Error(c, http.StatusConflict, "conflict", err.Error(), nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "share request failed", nil)
	}
}
