// Copyright 2025 AA Global Reach GmbH
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenFunc supplies a bearer token for outbound remote calls.
type TokenFunc func(ctx context.Context) (string, error)

// Claims are the JWT claims the sync backend expects: tenant scoping plus
// the standard subject carrying the user ID.
type Claims struct {
	TenantID string `json:"tid"`
	jwt.RegisteredClaims
}

// HS256TokenSource mints short-lived HS256 tokens from a shared secret.
// Tokens are cached and re-minted shortly before expiry.
type HS256TokenSource struct {
	secret   []byte
	userID   string
	tenantID string
	ttl      time.Duration

	cached    string
	expiresAt time.Time
}

// NewHS256TokenSource creates a token source for the given identity.
func NewHS256TokenSource(secret, userID, tenantID string, ttl time.Duration) *HS256TokenSource {
	return &HS256TokenSource{
		secret:   []byte(secret),
		userID:   userID,
		tenantID: tenantID,
		ttl:      ttl,
	}
}

// Token returns a valid signed token, minting a fresh one when the cached
// token is within a minute of expiry. An Identity attached to ctx
// overrides the configured defaults; such tokens bypass the cache. Not
// safe for concurrent use; the sync coordinator serializes remote calls.
func (s *HS256TokenSource) Token(ctx context.Context) (string, error) {
	now := time.Now()

	userID, tenantID := s.userID, s.tenantID
	override := false
	if id, ok := IdentityFrom(ctx); ok {
		userID, tenantID = id.UserID, id.TenantID
		override = userID != s.userID || tenantID != s.tenantID
	}

	if !override && s.cached != "" && now.Before(s.expiresAt.Add(-time.Minute)) {
		return s.cached, nil
	}

	claims := &Claims{
		TenantID: tenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "fieldsync",
			Subject:   userID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	if !override {
		s.cached = signed
		s.expiresAt = now.Add(s.ttl)
	}
	return signed, nil
}

// ValidateToken parses and validates a token signed with the shared
// secret and returns its claims. Used by tests and local tooling.
func ValidateToken(tokenString string, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}
