// Copyright (C) 2025 Moodchat Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package auth

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapDirectory is an in-memory PrincipalDirectory for tests.
type mapDirectory map[string]*Principal

func (d mapDirectory) GetPrincipal(ctx context.Context, userID string) (*Principal, error) {
	p, ok := d[userID]
	if !ok {
		return nil, fmt.Errorf("no such user %q", userID)
	}
	return p, nil
}

func newTestProvider(t *testing.T, directory PrincipalDirectory) *JWTProvider {
	t.Helper()
	provider, err := NewJWTProvider([]byte("test-secret"), directory)
	require.NoError(t, err)
	return provider
}

func TestNewJWTProviderRejectsEmptySecret(t *testing.T) {
	t.Parallel()

	_, err := NewJWTProvider(nil, mapDirectory{})
	assert.Error(t, err)
}

func TestValidateAcceptsIssuedToken(t *testing.T) {
	t.Parallel()

	directory := mapDirectory{
		"u1": {UserID: "u1", Username: "soyeon", Active: true},
	}
	provider := newTestProvider(t, directory)

	token, err := provider.IssueToken("u1", time.Minute)
	require.NoError(t, err)

	principal, err := provider.Validate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "u1", principal.UserID)
	assert.Equal(t, "soyeon", principal.Username)
}

func TestValidateRejectsMissingToken(t *testing.T) {
	t.Parallel()

	provider := newTestProvider(t, mapDirectory{})
	_, err := provider.Validate(context.Background(), "")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestValidateRejectsGarbageToken(t *testing.T) {
	t.Parallel()

	provider := newTestProvider(t, mapDirectory{})
	_, err := provider.Validate(context.Background(), "not.a.jwt")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	t.Parallel()

	directory := mapDirectory{"u1": {UserID: "u1", Active: true}}
	provider := newTestProvider(t, directory)

	token, err := provider.IssueToken("u1", -time.Minute)
	require.NoError(t, err)

	_, err = provider.Validate(context.Background(), token)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	t.Parallel()

	directory := mapDirectory{"u1": {UserID: "u1", Active: true}}
	provider := newTestProvider(t, directory)

	other, err := NewJWTProvider([]byte("other-secret"), directory)
	require.NoError(t, err)
	token, err := other.IssueToken("u1", time.Minute)
	require.NoError(t, err)

	_, err = provider.Validate(context.Background(), token)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestValidateRejectsUnknownPrincipal(t *testing.T) {
	t.Parallel()

	provider := newTestProvider(t, mapDirectory{})
	token, err := provider.IssueToken("ghost", time.Minute)
	require.NoError(t, err)

	_, err = provider.Validate(context.Background(), token)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestValidateRejectsInactivePrincipal(t *testing.T) {
	t.Parallel()

	directory := mapDirectory{"u1": {UserID: "u1", Active: false}}
	provider := newTestProvider(t, directory)

	token, err := provider.IssueToken("u1", time.Minute)
	require.NoError(t, err)

	_, err = provider.Validate(context.Background(), token)
	assert.ErrorIs(t, err, ErrInactivePrincipal)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestValidateRejectsNoneAlgorithm(t *testing.T) {
	t.Parallel()

	directory := mapDirectory{"u1": {UserID: "u1", Active: true}}
	provider := newTestProvider(t, directory)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"user_id": "u1"})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = provider.Validate(context.Background(), token)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestStaticProvider(t *testing.T) {
	t.Parallel()

	provider := &StaticProvider{Principals: map[string]*Principal{
		"good":     {UserID: "u1", Active: true},
		"disabled": {UserID: "u2", Active: false},
	}}

	principal, err := provider.Validate(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, "u1", principal.UserID)

	_, err = provider.Validate(context.Background(), "disabled")
	assert.True(t, errors.Is(err, ErrUnauthorized))

	_, err = provider.Validate(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrUnauthorized)
}
