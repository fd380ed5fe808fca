// Copyright (C) 2025 Moodchat Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package auth provides bearer-credential validation for Moodchat.
//
// The chat gateway authenticates each WebSocket connection exactly once,
// before any turn traffic, using a token supplied in the handshake query
// string. Validation is abstracted behind the AuthProvider interface so
// the gateway and its tests do not depend on a concrete token format.
//
// # Authentication Flow
//
//	Handshake (?token=<jwt>)
//	   │
//	   ▼
//	provider.Validate(ctx, token)
//	   │
//	   ├─► invalid / expired / inactive → ErrUnauthorized (connection closed)
//	   │
//	   └─► *Principal{UserID, Username, Active}
//
// Authentication failures are fatal to the connection by design: the
// gateway closes with a distinguished code and never retries.
package auth

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnauthorized is returned when a credential is missing, malformed,
// expired, or does not denote a known principal. Implementations should
// wrap it with context:
//
//	return nil, fmt.Errorf("token expired: %w", auth.ErrUnauthorized)
var ErrUnauthorized = errors.New("unauthorized")

// ErrInactivePrincipal is returned when the credential is valid but the
// principal has been deactivated. It wraps ErrUnauthorized so callers
// checking errors.Is(err, ErrUnauthorized) treat it as an auth failure.
var ErrInactivePrincipal = fmt.Errorf("principal inactive: %w", ErrUnauthorized)

// Principal is the identity bound to one authenticated connection.
type Principal struct {
	// UserID is the unique identifier for the principal. Never empty
	// on a successful Validate.
	UserID string

	// Username is the display name used when rendering the persona
	// prompt. May equal UserID when the directory has no richer name.
	Username string

	// Active reports whether the account is enabled. Validate never
	// returns an inactive principal; the field exists so directories
	// can expose the flag to other callers.
	Active bool
}

// AuthProvider validates bearer credentials and returns the principal
// identity. Implementations must be safe for concurrent use.
type AuthProvider interface {
	// Validate checks the token and returns the principal it denotes.
	// Returns ErrUnauthorized (possibly wrapped) for any credential
	// failure; other errors indicate provider-level faults (directory
	// unreachable), which callers also treat as fail-closed.
	Validate(ctx context.Context, token string) (*Principal, error)
}

// PrincipalDirectory resolves user IDs to principals. The JWT provider
// consults it after signature verification so revoked or deactivated
// accounts are rejected even while their tokens are still fresh.
type PrincipalDirectory interface {
	// GetPrincipal returns the principal for the given user ID, or an
	// error when the ID is unknown.
	GetPrincipal(ctx context.Context, userID string) (*Principal, error)
}
