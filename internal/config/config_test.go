package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Configuration {
	return &Configuration{
		ServerUrl:  "http://localhost:3001/",
		ServerPort: 3001,
		Provider: Provider{
			URL:             "https://verification.example.com",
			APIKey:          "key",
			ResponseTimeout: 10 * time.Second,
		},
		Verification: Verification{
			PollInterval:        2 * time.Second,
			PollMaxAttempts:     120,
			MatchThreshold:      0.80,
			ConfidenceThreshold: 0.85,
			OperationTTL:        10 * time.Minute,
		},
		Credentials: Credentials{
			SigningKey:      "secret",
			Issuer:          "bio-gateway",
			AccessTokenTTL:  time.Hour,
			RefreshTokenTTL: 720 * time.Hour,
		},
	}
}

func TestSanitize(t *testing.T) {
	type testConfig struct {
		name    string
		mutate  func(*Configuration)
		wantErr bool
	}

	for _, tc := range []testConfig{
		{
			name:   "valid configuration",
			mutate: func(_ *Configuration) {},
		},
		{
			name:    "server url must be absolute",
			mutate:  func(c *Configuration) { c.ServerUrl = "localhost" },
			wantErr: true,
		},
		{
			name:    "provider url is required",
			mutate:  func(c *Configuration) { c.Provider.URL = "" },
			wantErr: true,
		},
		{
			name:    "match threshold must be in range",
			mutate:  func(c *Configuration) { c.Verification.MatchThreshold = 1.5 },
			wantErr: true,
		},
		{
			name:    "confidence threshold must be positive",
			mutate:  func(c *Configuration) { c.Verification.ConfidenceThreshold = 0 },
			wantErr: true,
		},
		{
			name:    "signing key is required",
			mutate:  func(c *Configuration) { c.Credentials.SigningKey = "" },
			wantErr: true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)

			err := cfg.Sanitize()
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestSanitizeTrimsServerUrl(t *testing.T) {
	cfg := validConfig()
	cfg.ServerUrl = "http://localhost:3001/?x=y"

	require.NoError(t, cfg.Sanitize())
	assert.Equal(t, "http://localhost:3001", cfg.ServerUrl)
}
