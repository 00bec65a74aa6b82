package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "main", cfg.Store.Branch)
	require.Equal(t, 30, cfg.Store.TimeoutSeconds)
	require.Equal(t, "data/rfps.json", cfg.Documents.RFPs)
	require.Equal(t, "data/sites.json", cfg.Documents.Sites)
	require.Equal(t, 3, cfg.Guard.MaxRetries)
	require.Equal(t, 50, cfg.Batch.MaxOperations)
	require.Equal(t, "stdio", cfg.Server.Transport)
	require.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  owner: acme
  repo: rfp-data
  branch: data
documents:
  rfps: collections/rfps.json
guard:
  max_retries: 5
server:
  transport: http
  port: 9090
`), 0o644))
	t.Setenv("RFPWATCH_CONFIG_PATH", path)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "acme", cfg.Store.Owner)
	require.Equal(t, "rfp-data", cfg.Store.Repo)
	require.Equal(t, "data", cfg.Store.Branch)
	require.Equal(t, "collections/rfps.json", cfg.Documents.RFPs)
	require.Equal(t, 5, cfg.Guard.MaxRetries)
	require.Equal(t, "http", cfg.Server.Transport)
	require.Equal(t, 9090, cfg.Server.Port)
	// Untouched sections keep their defaults.
	require.Equal(t, "data/sites.json", cfg.Documents.Sites)
	require.Equal(t, 50, cfg.Batch.MaxOperations)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  owner: acme
  repo: rfp-data
`), 0o644))
	t.Setenv("RFPWATCH_CONFIG_PATH", path)
	t.Setenv("RFPWATCH_STORE_REPO", "watchdog/rfp-mirror")
	t.Setenv("RFPWATCH_STORE_BRANCH", "staging")
	t.Setenv("RFPWATCH_GITHUB_TOKEN", "secret")
	t.Setenv("RFPWATCH_SERVER_PORT", "7070")
	t.Setenv("RFPWATCH_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "watchdog", cfg.Store.Owner)
	require.Equal(t, "rfp-mirror", cfg.Store.Repo)
	require.Equal(t, "staging", cfg.Store.Branch)
	require.Equal(t, "secret", cfg.Store.Token)
	require.Equal(t, 7070, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("RFPWATCH_STORE_REPO", "not-owner-slash-repo")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("RFPWATCH_STORE_REPO", "acme/rfp-data")
	t.Setenv("RFPWATCH_SERVER_PORT", "not-a-port")
	_, err = Load()
	require.Error(t, err)
}
