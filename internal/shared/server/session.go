package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"docsign-backend/internal/shared/server/middleware"
	"docsign-backend/internal/shared/server/respond"
)

type sessionView struct {
	UserID  string `json:"userId"`
	Guest   bool   `json:"guest"`
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
}

// session echoes the identity resolved by the auth middleware, guests
// included, so the UI can decide which actions to offer.
func session(c *gin.Context) {
	id := middleware.IdentityFromContext(c)
	if id.UserID == "" {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
		return
	}
	respond.OK(c, sessionView{
		UserID:  id.UserID,
		Guest:   middleware.IsGuest(c),
		Email:   id.Email,
		Name:    id.Name,
		Picture: id.Picture,
	})
}
