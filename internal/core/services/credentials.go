package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/novatrust/bio-gateway/internal/cache"
	"github.com/novatrust/bio-gateway/internal/core/domain"
	"github.com/novatrust/bio-gateway/internal/core/ports"
)

// ErrInvalidRefreshToken is returned when a refresh token is unknown or expired
var ErrInvalidRefreshToken = errors.New("invalid refresh token")

const refreshTokenKeyPrefix = "refresh_token:"

// credentialIssuer mints session credentials. Access tokens are HS256 JWTs,
// refresh tokens are opaque and stored in the cache with their own TTL.
type credentialIssuer struct {
	signingKey []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	cache      cache.Cache
}

// NewCredentialIssuer returns a CredentialIssuer service
func NewCredentialIssuer(signingKey []byte, issuer string, accessTTL, refreshTTL time.Duration, c cache.Cache) ports.CredentialIssuer {
	return &credentialIssuer{
		signingKey: signingKey,
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		cache:      c,
	}
}

// Issue mints an access/refresh token pair for a verified user
func (s *credentialIssuer) Issue(ctx context.Context, userID string) (*domain.Credentials, error) {
	now := time.Now()
	expiresAt := now.Add(s.accessTTL)

	claims := jwt.RegisteredClaims{
		Issuer:    s.issuer,
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		ID:        uuid.NewString(),
	}

	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return nil, fmt.Errorf("signing access token: %w", err)
	}

	refreshToken := uuid.NewString()
	if err := s.cache.Set(ctx, refreshTokenKeyPrefix+refreshToken, userID, s.refreshTTL); err != nil {
		return nil, fmt.Errorf("storing refresh token: %w", err)
	}

	return &domain.Credentials{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
	}, nil
}

// Refresh exchanges a valid refresh token for a fresh credential pair. The
// used token is invalidated.
func (s *credentialIssuer) Refresh(ctx context.Context, refreshToken string) (*domain.Credentials, error) {
	var userID string
	if found := s.cache.Get(ctx, refreshTokenKeyPrefix+refreshToken, &userID); !found {
		return nil, ErrInvalidRefreshToken
	}

	if err := s.cache.Delete(ctx, refreshTokenKeyPrefix+refreshToken); err != nil {
		return nil, fmt.Errorf("invalidating refresh token: %w", err)
	}

	return s.Issue(ctx, userID)
}
