// Copyright (C) 2025 Moodchat Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTProvider validates HMAC-signed access tokens carrying a "user_id"
// claim. After signature and expiry checks, the principal is resolved
// through the directory so deactivated accounts fail closed.
type JWTProvider struct {
	secret    []byte
	directory PrincipalDirectory
}

// NewJWTProvider creates a JWTProvider. The secret must be non-empty;
// the directory must not be nil.
func NewJWTProvider(secret []byte, directory PrincipalDirectory) (*JWTProvider, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("jwt secret must not be empty")
	}
	if directory == nil {
		return nil, fmt.Errorf("principal directory must not be nil")
	}
	return &JWTProvider{secret: secret, directory: directory}, nil
}

// Validate implements AuthProvider.
func (p *JWTProvider) Validate(ctx context.Context, token string) (*Principal, error) {
	if token == "" {
		return nil, fmt.Errorf("missing token: %w", ErrUnauthorized)
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return p.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, fmt.Errorf("token rejected: %w", ErrUnauthorized)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("unexpected claims type: %w", ErrUnauthorized)
	}
	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return nil, fmt.Errorf("token missing user_id claim: %w", ErrUnauthorized)
	}

	principal, err := p.directory.GetPrincipal(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("unknown principal %q: %w", userID, ErrUnauthorized)
	}
	if !principal.Active {
		return nil, fmt.Errorf("%w", ErrInactivePrincipal)
	}
	return principal, nil
}

// IssueToken signs a token for the given user ID, valid for ttl.
// Primarily used by tests and local tooling; production deployments
// issue tokens from the account service.
func (p *JWTProvider) IssueToken(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"iat":     now.Unix(),
		"exp":     now.Add(ttl).Unix(),
	})
	signed, err := token.SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// StaticProvider validates tokens against a fixed map. Test helper.
type StaticProvider struct {
	// Principals maps token string to the principal it denotes.
	Principals map[string]*Principal
}

// Validate implements AuthProvider.
func (p *StaticProvider) Validate(ctx context.Context, token string) (*Principal, error) {
	principal, ok := p.Principals[token]
	if !ok {
		return nil, fmt.Errorf("unknown token: %w", ErrUnauthorized)
	}
	if !principal.Active {
		return nil, fmt.Errorf("%w", ErrInactivePrincipal)
	}
	return principal, nil
}
