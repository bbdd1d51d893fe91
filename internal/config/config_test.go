package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "server:\n  addr: \":9090\"\n"))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, BackendKeyword, cfg.Generator.Backend)
	assert.Equal(t, 2000, cfg.Generator.LatencyMS)
	assert.Equal(t, PublishLog, cfg.Publish.Mode)
	assert.Equal(t, 3000, cfg.Publish.LatencyMS)
	assert.Equal(t, 3, cfg.Jira.RetryCount)
	assert.Equal(t, 60, cfg.Server.SessionTTLMinutes)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("JIRA_ASSISTANT_PUBLISH_MODE", "jira")
	t.Setenv("JIRA_ASSISTANT_JIRA_API_TOKEN", "from-env")
	t.Setenv("JIRA_ASSISTANT_GENERATOR_LATENCY_MS", "0")
	t.Setenv("JIRA_ASSISTANT_SERVER_SESSION_TTL_MINUTES", "5")

	path := writeConfig(t, `
jira:
  base_url: https://example.atlassian.net
  username: dev@example.com
  api_token: from-file
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, PublishJira, cfg.Publish.Mode)
	assert.Equal(t, "from-env", cfg.Jira.APIToken)
	assert.Equal(t, 0, cfg.Generator.LatencyMS)
	assert.Equal(t, "dev@example.com", cfg.Jira.Username)
	assert.Equal(t, 5, cfg.Server.SessionTTLMinutes)
}

func TestValidate(t *testing.T) {
	t.Run("keyword backend needs no credentials", func(t *testing.T) {
		assert.NoError(t, Default().Validate())
	})

	t.Run("negative session TTL", func(t *testing.T) {
		cfg := Default()
		cfg.Server.SessionTTLMinutes = -1
		assert.ErrorContains(t, cfg.Validate(), "session TTL")
	})

	t.Run("anthropic backend needs an API key", func(t *testing.T) {
		cfg := Default()
		cfg.Generator.Backend = BackendAnthropic
		assert.ErrorContains(t, cfg.Validate(), "anthropic API key")

		cfg.Anthropic.APIKey = "key"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("jira mode needs credentials", func(t *testing.T) {
		cfg := Default()
		cfg.Publish.Mode = PublishJira
		assert.ErrorContains(t, cfg.Validate(), "base URL")

		cfg.Jira.BaseURL = "https://example.atlassian.net"
		cfg.Jira.Username = "dev"
		cfg.Jira.APIToken = "token"
		assert.NoError(t, cfg.Validate())

		cfg.Jira.CreateProject = true
		assert.ErrorContains(t, cfg.Validate(), "lead account")
	})

	t.Run("unknown values are rejected", func(t *testing.T) {
		cfg := Default()
		cfg.Generator.Backend = "gpt"
		assert.Error(t, cfg.Validate())

		cfg = Default()
		cfg.Publish.Mode = "email"
		assert.Error(t, cfg.Validate())

		cfg = Default()
		cfg.Publish.LatencyMS = -1
		assert.Error(t, cfg.Validate())
	})
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := Default()
	cfg.Jira.ProjectKey = "FOODEL"
	require.NoError(t, cfg.Save(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "FOODEL", loaded.Jira.ProjectKey)
	assert.Equal(t, cfg.Anthropic.Model, loaded.Anthropic.Model)
}
