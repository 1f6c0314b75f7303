package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Issuer is stamped on every token this service mints.
const Issuer = "docsign-backend"

// DefaultTTL is the lifetime of tokens issued without an explicit Exp.
const DefaultTTL = 24 * time.Hour

// Claims is the identity carried by an app token.
type Claims struct {
	Sub     string `json:"sub"`
	Iss     string `json:"iss,omitempty"`
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
	Role    string `json:"role,omitempty"`
	Exp     int64  `json:"exp,omitempty"`
	Iat     int64  `json:"iat,omitempty"`
}

var (
	ErrMissingSecret = errors.New("jwt secret not configured")
	ErrInvalidToken  = errors.New("invalid token")
)

var hs256Header = mustSegment(map[string]string{"alg": "HS256", "typ": "JWT"})

// Signer mints and checks HS256 tokens.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSigner(secret []byte, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Signer{secret: secret, ttl: ttl, now: time.Now}
}

// SignerFromEnv reads JWT_SECRET. Outside production a fixed dev secret is
// used when it is unset.
func SignerFromEnv() (*Signer, error) {
	secret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if secret == "" {
		switch strings.ToLower(strings.TrimSpace(os.Getenv("ENV"))) {
		case "production", "prod":
			return nil, fmt.Errorf("%w: JWT_SECRET required in production", ErrMissingSecret)
		}
		secret = "dev-secret"
	}
	return NewSigner([]byte(secret), DefaultTTL), nil
}

// Sign fills Iss, Iat and Exp when unset and returns the compact token.
func (s *Signer) Sign(claims Claims) (string, error) {
	if claims.Sub == "" {
		return "", errors.New("sub is required")
	}
	now := s.now().UTC()
	if claims.Iss == "" {
		claims.Iss = Issuer
	}
	if claims.Iat == 0 {
		claims.Iat = now.Unix()
	}
	if claims.Exp == 0 {
		claims.Exp = now.Add(s.ttl).Unix()
	}
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	unsigned := hs256Header + "." + base64.RawURLEncoding.EncodeToString(payload)
	return unsigned + "." + s.mac(unsigned), nil
}

// Verify checks signature, issuer and expiry.
func (s *Signer) Verify(token string) (Claims, error) {
	head, payload, sig, ok := splitToken(token)
	if !ok || head != hs256Header {
		return Claims{}, ErrInvalidToken
	}
	if !hmac.Equal([]byte(sig), []byte(s.mac(head+"."+payload))) {
		return Claims{}, ErrInvalidToken
	}
	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	var claims Claims
	if err := json.Unmarshal(raw, &claims); err != nil {
		return Claims{}, ErrInvalidToken
	}
	switch {
	case claims.Sub == "":
		return Claims{}, ErrInvalidToken
	case claims.Iss != "" && claims.Iss != Issuer:
		return Claims{}, ErrInvalidToken
	case claims.Exp > 0 && s.now().UTC().Unix() > claims.Exp:
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}

func (s *Signer) mac(input string) string {
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(input))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

// SignJWT signs claims with the environment-configured secret.
func SignJWT(claims Claims) (string, error) {
	signer, err := SignerFromEnv()
	if err != nil {
		return "", err
	}
	return signer.Sign(claims)
}

// VerifyJWT verifies token with the environment-configured secret.
func VerifyJWT(token string) (Claims, error) {
	signer, err := SignerFromEnv()
	if err != nil {
		return Claims{}, err
	}
	return signer.Verify(token)
}

func splitToken(token string) (head, payload, sig string, ok bool) {
	head, rest, found := strings.Cut(token, ".")
	if !found {
		return "", "", "", false
	}
	payload, sig, found = strings.Cut(rest, ".")
	if !found || strings.Contains(sig, ".") {
		return "", "", "", false
	}
	return head, payload, sig, true
}

func mustSegment(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
