package services

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novatrust/bio-gateway/internal/cache"
)

const testSigningKey = "test-signing-key-0123456789abcdef"

func newTestIssuer() *credentialIssuer {
	return NewCredentialIssuer([]byte(testSigningKey), "bio-gateway", time.Hour, 24*time.Hour, cache.NewMemoryCache()).(*credentialIssuer)
}

func TestIssue(t *testing.T) {
	ctx := context.Background()
	issuer := newTestIssuer()

	creds, err := issuer.Issue(ctx, "user-1")
	require.NoError(t, err)
	assert.NotEmpty(t, creds.AccessToken)
	assert.NotEmpty(t, creds.RefreshToken)
	assert.WithinDuration(t, time.Now().Add(time.Hour), creds.ExpiresAt, time.Minute)

	token, err := jwt.ParseWithClaims(creds.AccessToken, &jwt.RegisteredClaims{}, func(_ *jwt.Token) (interface{}, error) {
		return []byte(testSigningKey), nil
	})
	require.NoError(t, err)
	require.True(t, token.Valid)

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	require.True(t, ok)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "bio-gateway", claims.Issuer)
	assert.NotEmpty(t, claims.ID)
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()
	issuer := newTestIssuer()

	creds, err := issuer.Issue(ctx, "user-1")
	require.NoError(t, err)

	refreshed, err := issuer.Refresh(ctx, creds.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)
	assert.NotEqual(t, creds.RefreshToken, refreshed.RefreshToken)

	// refreshed token carries the same subject
	token, err := jwt.ParseWithClaims(refreshed.AccessToken, &jwt.RegisteredClaims{}, func(_ *jwt.Token) (interface{}, error) {
		return []byte(testSigningKey), nil
	})
	require.NoError(t, err)
	claims := token.Claims.(*jwt.RegisteredClaims)
	assert.Equal(t, "user-1", claims.Subject)
}

func TestRefreshTokenIsSingleUse(t *testing.T) {
	ctx := context.Background()
	issuer := newTestIssuer()

	creds, err := issuer.Issue(ctx, "user-1")
	require.NoError(t, err)

	_, err = issuer.Refresh(ctx, creds.RefreshToken)
	require.NoError(t, err)

	_, err = issuer.Refresh(ctx, creds.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRefreshUnknownToken(t *testing.T) {
	issuer := newTestIssuer()

	_, err := issuer.Refresh(context.Background(), "never-issued")
	require.ErrorIs(t, err, ErrInvalidRefreshToken)
}
