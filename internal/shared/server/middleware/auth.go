package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"docsign-backend/internal/shared/auth"
	"docsign-backend/internal/shared/server/respond"
)

const (
	identityKey = "identity"
	guestPrefix = "guest:"
	guestHeader = "X-Guest-Id"
)

var (
	errBadToken        = errors.New("missing or invalid token")
	errMissingIdentity = errors.New("missing identity")
)

// Identity is the caller resolved by Auth.
type Identity struct {
	UserID  string
	Email   string
	Name    string
	Picture string
	Guest   bool
}

// Auth resolves a bearer JWT or, outside production, an X-Guest-Id header.
// Browsers cannot set headers on websocket upgrades, so GET requests on
// paths ending in /events may pass the token as ?access_token=.
func Auth(env string) gin.HandlerFunc {
	allowGuests := env != "production"
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}
		id, err := resolveIdentity(c, allowGuests)
		if err != nil {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", err.Error(), nil)
			return
		}
		SetIdentity(c, id)
		c.Next()
	}
}

func resolveIdentity(c *gin.Context, allowGuests bool) (Identity, error) {
	if token, present := bearerToken(c); present {
		if token == "" {
			return Identity{}, errBadToken
		}
		claims, err := auth.VerifyJWT(token)
		if err != nil {
			return Identity{}, errBadToken
		}
		return Identity{UserID: claims.Sub, Email: claims.Email, Name: claims.Name, Picture: claims.Picture}, nil
	}

	guestID := strings.TrimSpace(c.GetHeader(guestHeader))
	if guestID == "" || !allowGuests {
		return Identity{}, errMissingIdentity
	}
	return Identity{UserID: guestPrefix + guestID, Guest: true}, nil
}

// bearerToken returns the token and whether the caller attempted bearer
// auth at all. A non-Bearer Authorization header counts as an attempt with
// an empty token.
func bearerToken(c *gin.Context) (string, bool) {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if header == "" {
		if c.Request.Method == http.MethodGet && strings.HasSuffix(c.Request.URL.Path, "/events") {
			if token := strings.TrimSpace(c.Query("access_token")); token != "" {
				return token, true
			}
		}
		return "", false
	}
	scheme, token, _ := strings.Cut(header, " ")
	if scheme != "Bearer" {
		return "", true
	}
	return strings.TrimSpace(token), true
}

// RequireUser rejects guest identities. Sharing, signing and certificate
// management need a real account.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsGuest(c) || UserIDFromContext(c) == "" {
			respond.Error(c, http.StatusForbidden, "forbidden", "sign in required", nil)
			return
		}
		c.Next()
	}
}

// RequireAdmin lets the request through only when isAdmin reports true.
func RequireAdmin(isAdmin func(ctx context.Context, userID string) (bool, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := UserIDFromContext(c)
		if IsGuest(c) || userID == "" {
			respond.Error(c, http.StatusForbidden, "forbidden", "admin access required", nil)
			return
		}
		ok, err := isAdmin(c.Request.Context(), userID)
		switch {
		case err != nil:
			respond.Error(c, http.StatusInternalServerError, "internal", "failed to resolve role", nil)
		case !ok:
			respond.Error(c, http.StatusForbidden, "forbidden", "admin access required", nil)
		default:
			c.Next()
		}
	}
}

// SetIdentity stores id on the request. Tests use it to skip token minting.
func SetIdentity(c *gin.Context, id Identity) {
	c.Set(identityKey, id)
}

// IdentityFromContext returns the identity stored by Auth, or the zero value.
func IdentityFromContext(c *gin.Context) Identity {
	if c == nil {
		return Identity{}
	}
	v, _ := c.Get(identityKey)
	id, _ := v.(Identity)
	return id
}

// UserIDFromContext returns the authenticated user ID.
func UserIDFromContext(c *gin.Context) string {
	return IdentityFromContext(c).UserID
}

// IsGuest reports whether the request identity came from X-Guest-Id.
func IsGuest(c *gin.Context) bool {
	id := IdentityFromContext(c)
	return id.Guest || strings.HasPrefix(id.UserID, guestPrefix)
}
