// Package auth signs users in with Google and issues app tokens.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	sharedauth "docsign-backend/internal/shared/auth"
	"docsign-backend/internal/shared/server/respond"
	"docsign-backend/internal/shared/telemetry"
	"docsign-backend/internal/users"
)

const (
	googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
	stateTTL          = 5 * time.Minute
)

var errAccountDisabled = errors.New("account disabled")

// Accounts persists identities returned by the identity provider.
type Accounts interface {
	UpsertFromAuth(ctx context.Context, user users.User) (users.User, error)
}

// GoogleService runs the authorization-code flow and hands the UI an app
// token carrying the account's role.
type GoogleService struct {
	oauth       *oauth2.Config
	userInfoURL string
	uiRedirect  string
	states      *stateStore
	accounts    Accounts
}

func NewGoogleService(clientID, clientSecret, redirectURL, uiRedirect string, accounts Accounts) *GoogleService {
	return &GoogleService{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
		userInfoURL: googleUserInfoURL,
		uiRedirect:  uiRedirect,
		states:      newStateStore(),
		accounts:    accounts,
	}
}

func (s *GoogleService) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/auth/google/start", s.start)
	rg.GET("/auth/google/callback", s.callback)
}

func (s *GoogleService) configured() bool {
	return s.oauth.ClientID != "" && s.oauth.ClientSecret != "" && s.oauth.RedirectURL != ""
}

// start redirects to Google. An optional returnTo path is carried through
// so a signer following a share link lands back on that document.
func (s *GoogleService) start(c *gin.Context) {
	if !s.configured() {
		respond.Error(c, http.StatusInternalServerError, "auth_not_configured", "Google auth not configured", nil)
		return
	}
	state := uuid.NewString()
	s.states.put(state, pendingLogin{
		expires:  s.states.now().Add(stateTTL),
		returnTo: safeReturnTo(c.Query("returnTo")),
	})
	c.Redirect(http.StatusFound, s.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline))
}

func (s *GoogleService) callback(c *gin.Context) {
	state, code := c.Query("state"), c.Query("code")
	if state == "" || code == "" {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "missing state or code", nil)
		return
	}
	pending, ok := s.states.consume(state)
	if !ok {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "invalid or expired state", nil)
		return
	}

	ctx := c.Request.Context()
	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "failed to exchange code", nil)
		return
	}
	profile, err := s.fetchProfile(ctx, token)
	if err != nil {
		telemetry.Warn("auth.google.profile_failed", telemetry.Err(nil, err))
		respond.Error(c, http.StatusBadGateway, "auth_failed", "failed to fetch user profile", nil)
		return
	}

	jwt, err := s.login(ctx, profile)
	switch {
	case errors.Is(err, errAccountDisabled):
		respond.Error(c, http.StatusForbidden, "forbidden", "account disabled", nil)
		return
	case err != nil:
		telemetry.Error("auth.google.login_failed", telemetry.Err(map[string]any{"sub": profile.Sub}, err))
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to issue token", nil)
		return
	}

	target, err := redirectWithToken(s.uiRedirect, jwt, pending.returnTo)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to redirect", nil)
		return
	}
	telemetry.Info("auth.google.login", map[string]any{"user_id": "google:" + profile.Sub})
	c.Redirect(http.StatusFound, target)
}

// login stores the account and issues a token carrying its role.
func (s *GoogleService) login(ctx context.Context, profile googleProfile) (string, error) {
	claims := sharedauth.Claims{
		Sub:     "google:" + profile.Sub,
		Email:   profile.Email,
		Name:    profile.Name,
		Picture: profile.Picture,
	}
	if s.accounts != nil {
		stored, err := s.accounts.UpsertFromAuth(ctx, users.User{
			ID:         claims.Sub,
			Email:      profile.Email,
			FullName:   profile.Name,
			PictureURL: profile.Picture,
		})
		if err != nil {
			return "", err
		}
		if stored.Disabled {
			return "", errAccountDisabled
		}
		claims.Role = string(stored.Role)
	}
	return sharedauth.SignJWT(claims)
}

type googleProfile struct {
	Sub     string `json:"sub"`
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

func (s *GoogleService) fetchProfile(ctx context.Context, token *oauth2.Token) (googleProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.userInfoURL, nil)
	if err != nil {
		return googleProfile{}, err
	}
	resp, err := s.oauth.Client(ctx, token).Do(req)
	if err != nil {
		return googleProfile{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return googleProfile{}, fmt.Errorf("userinfo status %d", resp.StatusCode)
	}

	var profile googleProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return googleProfile{}, err
	}
	// The v2 endpoint reports the subject as "id".
	if profile.Sub == "" {
		profile.Sub = profile.ID
	}
	if profile.Sub == "" {
		return googleProfile{}, errors.New("userinfo without subject")
	}
	return profile, nil
}

func redirectWithToken(rawURL, token, returnTo string) (string, error) {
	if rawURL == "" {
		return "", errors.New("redirect url required")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", token)
	if returnTo != "" {
		q.Set("returnTo", returnTo)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
