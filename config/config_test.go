package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordanlanch/colorbook/pkg/secrets"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"7d", 7 * 24 * time.Hour, false},
		{"30d", 30 * 24 * time.Hour, false},
		{"12h", 12 * time.Hour, false},
		{"90m", 90 * time.Minute, false},
		{" 1d ", 24 * time.Hour, false},
		{"0d", 0, true},
		{"-5m", 0, true},
		{"xd", 0, true},
		{"soon", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDuration(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoad_RequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	cfg, err := Load()
	assert.ErrorIs(t, err, ErrMissingJWTSecret)
	assert.Nil(t, cfg)
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret-key-minimum-32-characters-long")
	t.Setenv("JWT_ACCESS_EXPIRES_IN", "")
	t.Setenv("JWT_REFRESH_EXPIRES_IN", "")
	t.Setenv("FRONTEND_URL", "https://app.colorbook.io/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7*24*time.Hour, cfg.AccessTokenTTL)
	assert.Equal(t, 30*24*time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, "https://app.colorbook.io/pricing", cfg.UpgradeURL())
	assert.Equal(t, "https://app.colorbook.io/account/billing", cfg.ManageURL())
}

func TestLoad_InvalidAccessTTL(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret-key-minimum-32-characters-long")
	t.Setenv("JWT_ACCESS_EXPIRES_IN", "forever")

	_, err := Load()
	assert.ErrorContains(t, err, "JWT_ACCESS_EXPIRES_IN")
}

type mapSecrets map[string]string

func (m mapSecrets) GetSecret(_ context.Context, key string) (string, error) {
	if v, ok := m[key]; ok {
		return v, nil
	}
	return "", secrets.ErrNotFound
}

func (m mapSecrets) RefreshCache() {}

func TestLoadWithSecrets_PrefersManager(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("STRIPE_SECRET_KEY", "sk_from_env")
	t.Setenv("DATABASE_URL", "")

	cfg, err := LoadWithSecrets(context.Background(), mapSecrets{
		"JWT_SECRET":            "jwt-from-manager",
		"STRIPE_WEBHOOK_SECRET": "whsec_from_manager",
	})
	require.NoError(t, err)

	assert.Equal(t, "jwt-from-manager", cfg.JWTSecret)
	assert.Equal(t, "whsec_from_manager", cfg.StripeWebhookSecret)
	// Not in the manager: environment, then the built-in default
	assert.Equal(t, "sk_from_env", cfg.StripeSecretKey)
	assert.Equal(t, defaultDatabaseURL, cfg.DatabaseURL)
}

func TestLoadWithSecrets_MissingJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := LoadWithSecrets(context.Background(), mapSecrets{})
	assert.ErrorIs(t, err, ErrMissingJWTSecret)
}

func TestLoadDotEnv_FeedsSecretsBackend(t *testing.T) {
	for _, key := range []string{"SECRETS_BACKEND", "SECRETS_PREFIX", "AWS_REGION", "AWS_SECRETS_MANAGER_ENABLED"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("SECRETS_BACKEND=aws\nSECRETS_PREFIX=colorbook/prod/\nAWS_REGION=eu-west-1\n"), 0o600))

	require.NoError(t, LoadDotEnv(path))

	cfg := secrets.ConfigFromEnv()
	assert.Equal(t, secrets.BackendAWS, cfg.Backend)
	assert.Equal(t, "colorbook/prod/", cfg.Prefix)
	assert.Equal(t, "eu-west-1", cfg.AWSRegion)
}

func TestLoadDotEnv_KeepsExistingAndIgnoresMissingFile(t *testing.T) {
	t.Setenv("SECRETS_PREFIX", "from-process/")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("SECRETS_PREFIX=from-file/\n"), 0o600))

	require.NoError(t, LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")))
	assert.Equal(t, "from-process/", os.Getenv("SECRETS_PREFIX"))
}
