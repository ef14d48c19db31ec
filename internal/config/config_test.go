package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsRequireSigningKey(t *testing.T) {
	_, err := Load("")
	require.Error(t, err)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlBody := `
listen: ":9090"
signing:
  keyId: k1
  secret: super-secret
auth:
  enabled: true
  jwtSigningKey: jwt-secret
`
	require.NoError(t, os.WriteFile(path, []byte(yamlBody), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.ListenAddress)
	require.True(t, cfg.Auth.Enabled)
	require.Equal(t, "k1", cfg.Signing.KeyID)
}

func TestLoadRejectsAuthEnabledWithoutJWTKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlBody := `
signing:
  keyId: k1
  secret: super-secret
auth:
  enabled: true
`
	require.NoError(t, os.WriteFile(path, []byte(yamlBody), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}
