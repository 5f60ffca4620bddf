// internal/auth/session.go
package auth

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// CookieName is the cookie that carries the session token.
const CookieName = "auth_token"

var ErrNoToken = errors.New("no session token")

// Claims is the session payload. Subject holds the player id.
type Claims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Sessions signs and verifies EdDSA session tokens.
type Sessions struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	// expiry 0 => tokens never expire
	expiry time.Duration
	now    func() time.Time
}

// New generates a fresh ed25519 key pair. Tokens do not survive a restart.
func New(expiry time.Duration) (*Sessions, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	return &Sessions{privateKey: priv, publicKey: pub, expiry: expiry, now: time.Now}, nil
}

// NewFromPath reads raw ed25519 private/public keys from file.
func NewFromPath(privatePath, publicPath string, expiry time.Duration) (*Sessions, error) {
	privateKeyData, err := os.ReadFile(privatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key file: %w", err)
	}
	publicKeyData, err := os.ReadFile(publicPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key file: %w", err)
	}
	if len(privateKeyData) != ed25519.PrivateKeySize || len(publicKeyData) != ed25519.PublicKeySize {
		return nil, errors.New("ed25519 key files have the wrong size")
	}
	return &Sessions{
		privateKey: ed25519.PrivateKey(privateKeyData),
		publicKey:  ed25519.PublicKey(publicKeyData),
		expiry:     expiry,
		now:        time.Now,
	}, nil
}

// Expiry is the configured token lifetime (0 => never).
func (s *Sessions) Expiry() time.Duration {
	return s.expiry
}

// Issue signs a token for playerID.
func (s *Sessions) Issue(playerID uuid.UUID, name string) (string, error) {
	now := s.now()
	claims := Claims{
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  playerID.String(),
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if s.expiry > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.expiry))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(s.privateKey)
}

// Verify checks the signature and expiry and returns the token's claims.
func (s *Sessions) Verify(tokenString string) (uuid.UUID, *Claims, error) {
	var claims Claims
	t, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.publicKey, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("jwt parse error: %w", err)
	}
	if !t.Valid {
		return uuid.Nil, nil, errors.New("invalid token")
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("invalid subject in jwt: %w", err)
	}
	return id, &claims, nil
}

// TokenFromRequest reads the session token from the auth cookie or an
// "Authorization: Bearer" header, in that order.
func TokenFromRequest(r *http.Request) (string, error) {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value, nil
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		if token := strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")); token != "" {
			return token, nil
		}
	}
	return "", ErrNoToken
}

// Authenticate verifies the request's session token.
func (s *Sessions) Authenticate(r *http.Request) (uuid.UUID, *Claims, error) {
	token, err := TokenFromRequest(r)
	if err != nil {
		return uuid.Nil, nil, err
	}
	return s.Verify(token)
}

// Cookie wraps a token in the session cookie.
func (s *Sessions) Cookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		HttpOnly: true,
		Path:     "/",
		MaxAge:   int(s.expiry.Seconds()),
		SameSite: http.SameSiteLaxMode,
	}
}
