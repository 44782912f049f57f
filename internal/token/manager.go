// Package token issues and validates the signed session tokens carried
// in the engine's cookie. Tokens are stateless: validity is fully
// determined by signature and expiry, so revocation before expiry is
// only possible by rotating the signing key.
package token

import (
	"crypto/rand"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/horanet/hauth/internal/shared"
)

const (
	// DefaultCookieName is used when no cookie name is configured.
	DefaultCookieName = "hauth"
	// DefaultExpiry bounds a session when no expiry is configured.
	DefaultExpiry = 2 * time.Hour
	// DefaultAlgorithm is the signing algorithm used by default.
	DefaultAlgorithm = "HS256"
)

// Claims is the JWT payload asserting a principal's identity.
type Claims struct {
	Login string `json:"login"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Manager signs and verifies session tokens and owns their cookie.
type Manager struct {
	key        []byte
	method     jwt.SigningMethod
	expiry     time.Duration
	cookieName string
}

// NewManager builds a Manager. A nil key is replaced with a random one,
// meaning sessions do not survive a process restart unless a fixed key
// is supplied. An empty algorithm selects HS256; only HMAC algorithms
// are accepted.
func NewManager(key []byte, algorithm string, expiry time.Duration, cookieName string) (*Manager, error) {
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate signing key: %w", err)
		}
	}
	if algorithm == "" {
		algorithm = DefaultAlgorithm
	}
	method := jwt.GetSigningMethod(algorithm)
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", algorithm)
	}
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	return &Manager{key: key, method: method, expiry: expiry, cookieName: cookieName}, nil
}

// Issue signs a token asserting the principal's identity.
func (m *Manager) Issue(p shared.Principal) (string, error) {
	now := time.Now()
	claims := Claims{
		Login: p.Login,
		Name:  p.Name,
		Role:  p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiry)),
		},
	}
	return jwt.NewWithClaims(m.method, claims).SignedString(m.key)
}

// Verify checks signature, algorithm and expiry, returning the embedded
// principal. Any failure is returned as an error; callers treat it as a
// silent non-match and fall through to credential verification.
func (m *Manager) Verify(raw string) (*shared.Principal, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return m.key, nil
	}, jwt.WithValidMethods([]string{m.method.Alg()}))
	if err != nil {
		return nil, err
	}
	return &shared.Principal{Login: claims.Login, Name: claims.Name, Role: claims.Role}, nil
}

// ReadCookie extracts and verifies the session cookie from a request.
// The second return is false when the cookie is absent or invalid.
func (m *Manager) ReadCookie(r *http.Request) (*shared.Principal, bool) {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil {
		return nil, false
	}
	principal, err := m.Verify(cookie.Value)
	if err != nil {
		return nil, false
	}
	return principal, true
}

// WriteCookie sets the session cookie on the response.
func (m *Manager) WriteCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie. Holders of a previously
// captured token stay valid until natural expiry, since tokens carry no
// server-side state.
func (m *Manager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
