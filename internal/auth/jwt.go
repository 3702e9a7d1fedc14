// Package auth provides the session layer: GitHub OAuth, JWT cookies,
// and the middleware that guards the API routes.
//
// SESSION FLOW:
//  1. /auth/github/login redirects to GitHub with a state cookie
//  2. /auth/github/callback verifies the state, exchanges the code
//  3. The user is upserted, the OAuth access token goes into the vault
//  4. A short-lived JWT lands in an HttpOnly cookie
//  5. Middleware validates the cookie on each API call and puts the
//     userID in the request context
//
// The JWT is the SESSION credential only — it never contains or grants
// access to the GitHub token. That one lives encrypted in the vault and
// is decrypted per-operation server-side.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "docs-admin"

// TokenService signs and verifies the session JWTs. It holds the HMAC
// secret; the same secret must be used for both operations.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService. The secret should be at least
// 32 bytes of random data in production (JWT_SECRET=$(openssl rand -hex 32)).
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// claims embeds jwt.RegisteredClaims; the internal user ID rides in the
// standard "sub" claim.
type claims struct {
	jwt.RegisteredClaims
}

// Generate creates a signed session token for userID. Lifetime is 15
// minutes; after expiry the client re-runs the OAuth flow.
func (s *TokenService) Generate(userID string) (string, error) {
	return s.GenerateWithDuration(userID, 15*time.Minute)
}

// GenerateWithDuration creates a token with a custom expiry. Used by
// tests to produce already-expired tokens.
func (s *TokenService) GenerateWithDuration(userID string, d time.Duration) (string, error) {
	now := time.Now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a JWT string and returns the userID from
// its subject claim.
//
// WithValidMethods pins HS256 — without it an attacker could present a
// token claiming a different algorithm and the library might accept it
// (the classic algorithm-confusion attack).
func (s *TokenService) Validate(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("auth: token expired")
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("auth: invalid token claims")
	}

	if c.Subject == "" {
		return "", fmt.Errorf("auth: token has no subject")
	}

	return c.Subject, nil
}
