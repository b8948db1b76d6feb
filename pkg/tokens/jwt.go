// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package tokens provides post-ceremony session token generation. The
// JWT generator implements ceremony.TokenGenerator.
package tokens

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jeremyhahn/go-passkey/pkg/ceremony"
)

// JWTGenerator mints HMAC-signed JWT session tokens for verified
// identities.
type JWTGenerator struct {
	secret    []byte
	issuer    string
	audience  []string
	expiresIn time.Duration
}

// JWTGeneratorConfig contains configuration for the JWT generator.
type JWTGeneratorConfig struct {
	// Secret is the HMAC signing secret (required).
	Secret []byte

	// Issuer is the JWT issuer claim (default: "go-passkey").
	Issuer string

	// Audience is the JWT audience claim (default: ["go-passkey"]).
	Audience []string

	// ExpiresIn is how long tokens are valid (default: 1 hour).
	ExpiresIn time.Duration
}

// NewJWTGenerator creates a new JWT generator with the given
// configuration.
func NewJWTGenerator(config *JWTGeneratorConfig) (*JWTGenerator, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if len(config.Secret) == 0 {
		return nil, fmt.Errorf("signing secret is required")
	}

	issuer := config.Issuer
	if issuer == "" {
		issuer = "go-passkey"
	}

	audience := config.Audience
	if len(audience) == 0 {
		audience = []string{"go-passkey"}
	}

	expiresIn := config.ExpiresIn
	if expiresIn == 0 {
		expiresIn = time.Hour
	}

	return &JWTGenerator{
		secret:    config.Secret,
		issuer:    issuer,
		audience:  audience,
		expiresIn: expiresIn,
	}, nil
}

// GenerateToken creates a JWT for the verified identity.
func (g *JWTGenerator) GenerateToken(ctx context.Context, identity *ceremony.Identity) (string, error) {
	now := time.Now()

	claims := jwt.MapClaims{
		"iss": g.issuer,
		"aud": g.audience,
		"sub": base64.RawURLEncoding.EncodeToString(identity.WebAuthnID()),
		"iat": now.Unix(),
		"exp": now.Add(g.expiresIn).Unix(),
		"nbf": now.Unix(),
		// Custom claims
		"name":     identity.WebAuthnDisplayName(),
		"identity": identity.Handle,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(g.secret)
}

// VerifyToken verifies a JWT and returns the claims.
func (g *JWTGenerator) VerifyToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return g.secret, nil
		},
		jwt.WithIssuer(g.issuer),
		jwt.WithAudience(g.audience[0]),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("token verification failed: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid claims type")
	}

	return claims, nil
}

// Issuer returns the configured issuer.
func (g *JWTGenerator) Issuer() string {
	return g.issuer
}

// ExpiresIn returns the token expiration duration.
func (g *JWTGenerator) ExpiresIn() time.Duration {
	return g.expiresIn
}
