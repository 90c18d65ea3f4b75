package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "info", cfg.Server.LogLevel)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, "invoria", cfg.Auth.JWT.Issuer)
	require.Equal(t, 48, cfg.Invites.TokenBytes)
	require.Equal(t, "@every 1h", cfg.Invites.SweepInterval)
	require.True(t, cfg.Monitoring.Prometheus.Enabled)
	require.Contains(t, cfg.Google.GmailScopes, "https://www.googleapis.com/auth/gmail.readonly")
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	contents := []byte(`
server:
  port: 9090
  log_level: debug
invites:
  default_expiry: 48h
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), contents, 0o600))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)
	require.Equal(t, "48h0m0s", cfg.Invites.DefaultExpiry.String())
}

func TestConfigValidate(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	// Secrets are never defaulted.
	require.Error(t, cfg.Validate())

	cfg.Auth.JWT.Secret = "jwt-secret"
	require.Error(t, cfg.Validate())

	cfg.Google.ClientID = "cid"
	cfg.Google.ClientSecret = "secret"
	require.Error(t, cfg.Validate())

	cfg.Security.EncryptionKey = "too-short"
	require.Error(t, cfg.Validate())

	cfg.Security.EncryptionKey = "0123456789abcdef0123456789abcdef"
	require.NoError(t, cfg.Validate())
}
