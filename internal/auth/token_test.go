// Copyright 2025 AA Global Reach GmbH
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTokenMintAndValidate(t *testing.T) {
	source := NewHS256TokenSource("secret", "user-42", "tenant-7", time.Hour)

	token, err := source.Token(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ValidateToken(token, []byte("secret"))
	require.NoError(t, err)
	require.Equal(t, "user-42", claims.Subject)
	require.Equal(t, "tenant-7", claims.TenantID)
	require.Equal(t, "fieldsync", claims.Issuer)
	require.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, 5*time.Second)
}

func TestTokenIsCached(t *testing.T) {
	source := NewHS256TokenSource("secret", "user-42", "tenant-7", time.Hour)

	first, err := source.Token(context.Background())
	require.NoError(t, err)
	second, err := source.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestTokenRemintedNearExpiry(t *testing.T) {
	// A 30 second TTL is already inside the one-minute re-mint window, so
	// every call mints fresh.
	source := NewHS256TokenSource("secret", "user-42", "tenant-7", 30*time.Second)

	_, err := source.Token(context.Background())
	require.NoError(t, err)
	require.True(t, source.expiresAt.Before(time.Now().Add(time.Minute)))

	_, err = source.Token(context.Background())
	require.NoError(t, err)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	source := NewHS256TokenSource("secret", "user-42", "tenant-7", time.Hour)

	token, err := source.Token(context.Background())
	require.NoError(t, err)

	_, err = ValidateToken(token, []byte("other-secret"))
	require.Error(t, err)
}

func TestIdentityRoundTrip(t *testing.T) {
	ctx := WithIdentity(context.Background(), Identity{UserID: "user-42", TenantID: "tenant-7"})

	id, ok := IdentityFrom(ctx)
	require.True(t, ok)
	require.Equal(t, "user-42", id.UserID)
	require.Equal(t, "tenant-7", id.TenantID)

	_, ok = IdentityFrom(context.Background())
	require.False(t, ok)
}

func TestContextIdentityOverridesTokenClaims(t *testing.T) {
	source := NewHS256TokenSource("secret", "user-42", "tenant-7", time.Hour)

	// Warm the cache with the default identity.
	cached, err := source.Token(context.Background())
	require.NoError(t, err)

	ctx := WithIdentity(context.Background(), Identity{UserID: "user-99", TenantID: "tenant-9"})
	token, err := source.Token(ctx)
	require.NoError(t, err)
	require.NotEqual(t, cached, token)

	claims, err := ValidateToken(token, []byte("secret"))
	require.NoError(t, err)
	require.Equal(t, "user-99", claims.Subject)
	require.Equal(t, "tenant-9", claims.TenantID)

	// The override never pollutes the cache for the default identity.
	again, err := source.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, cached, again)
}
