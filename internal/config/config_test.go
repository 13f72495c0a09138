package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv(configPathEnv, "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ProfileSimple, cfg.Enrichment.Profile)
	require.NotNil(t, cfg.Enrichment.Threshold)
	assert.Equal(t, 6, *cfg.Enrichment.Threshold)
	assert.False(t, *cfg.Enrichment.DeepRead)
	assert.False(t, *cfg.Enrichment.RequireNoiseVerdict)
	assert.Equal(t, 10, cfg.Enrichment.MaxCandidates)
	assert.Equal(t, 384, cfg.Embedding.Dimensions)
	assert.InDelta(t, 0.25, cfg.Search.Threshold, 1e-9)
	assert.Len(t, cfg.Sites, 3)
	assert.Equal(t, "UTC", cfg.Scheduler.Location().String())
}

func TestLoadDeepProfileFromFile(t *testing.T) {
	path := writeConfig(t, `
enrichment:
  profile: deep
  maxCandidates: 0
  interval: 3s
reasoner:
  provider: gemini
  model: gemini-2.0-flash-lite
  fallbackModels: [gemini-flash-latest, gemini-pro]
scheduler:
  timezone: Asia/Shanghai
sites:
  - name: gh
    scanner: github
`)
	t.Setenv(geminiKeyEnv, "gem-key")
	t.Setenv(githubTokenEnv, "gh-token")
	t.Setenv(reasonerKeyEnv, "")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ProfileDeep, cfg.Enrichment.Profile)
	assert.Equal(t, 7, *cfg.Enrichment.Threshold)
	assert.True(t, *cfg.Enrichment.DeepRead)
	assert.True(t, *cfg.Enrichment.RequireNoiseVerdict)
	assert.Equal(t, 0, cfg.Enrichment.MaxCandidates)
	assert.Equal(t, 3*time.Second, cfg.Enrichment.Interval)
	assert.Equal(t, "gem-key", cfg.Reasoner.APIKey)
	assert.Equal(t, []string{"gemini-flash-latest", "gemini-pro"}, cfg.Reasoner.FallbackModels)
	assert.Equal(t, "Asia/Shanghai", cfg.Scheduler.Location().String())
	require.Len(t, cfg.Sites, 1)
	assert.Equal(t, "gh-token", cfg.Sites[0].Options["token"])
}

func TestLoadExplicitOverridesBeatProfile(t *testing.T) {
	path := writeConfig(t, `
enrichment:
  profile: deep
  threshold: 8
  deepRead: false
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8, *cfg.Enrichment.Threshold)
	assert.False(t, *cfg.Enrichment.DeepRead)
	assert.True(t, *cfg.Enrichment.RequireNoiseVerdict)
}

func TestLoadZeroThresholdIsKept(t *testing.T) {
	path := writeConfig(t, `
enrichment:
  profile: deep
  threshold: 0
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	require.NotNil(t, cfg.Enrichment.Threshold)
	assert.Equal(t, 0, *cfg.Enrichment.Threshold)
}

func TestLoadReasonerDefaultsPerProvider(t *testing.T) {
	t.Setenv(reasonerKeyEnv, "")

	cases := []struct {
		name      string
		body      string
		endpoint  string
		model     string
		fallbacks []string
	}{
		{
			name:     "default provider",
			body:     "logging:\n  level: info\n",
			endpoint: "https://api.deepseek.com/v1",
			model:    "deepseek-chat",
		},
		{
			name:     "deepseek",
			body:     "reasoner:\n  provider: DeepSeek\n",
			endpoint: "https://api.deepseek.com/v1",
			model:    "deepseek-chat",
		},
		{
			name:  "anthropic",
			body:  "reasoner:\n  provider: anthropic\n",
			model: "claude-3-5-haiku-latest",
		},
		{
			name:      "gemini",
			body:      "reasoner:\n  provider: gemini\n",
			model:     "gemini-2.0-flash-lite",
			fallbacks: []string{"gemini-flash-latest", "gemini-pro"},
		},
		{
			name:     "explicit values win",
			body:     "reasoner:\n  provider: openai\n  endpoint: http://llm.local/v1\n  model: local\n",
			endpoint: "http://llm.local/v1",
			model:    "local",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, tc.body))
			require.NoError(t, err)

			assert.Equal(t, tc.endpoint, cfg.Reasoner.Endpoint)
			assert.Equal(t, tc.model, cfg.Reasoner.Model)
			assert.Equal(t, tc.fallbacks, cfg.Reasoner.FallbackModels)
		})
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv(configPathEnv, "")
	t.Setenv(databaseDSNEnv, "postgres://u:p@db/sota")
	t.Setenv(databaseDriverEnv, "postgres")
	t.Setenv(deepseekKeyEnv, "ds-key")
	t.Setenv(reasonerKeyEnv, "")
	t.Setenv(telegramTokenEnv, "bot")
	t.Setenv(telegramChatIDEnv, "42")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://u:p@db/sota", cfg.Database.DSN)
	assert.Equal(t, "ds-key", cfg.Reasoner.APIKey)
	assert.Equal(t, "bot", cfg.Notifications.Telegram.BotToken)
	assert.Equal(t, "42", cfg.Notifications.Telegram.ChatID)
}

func TestLoadInvalidFile(t *testing.T) {
	path := writeConfig(t, "enrichment: [unclosed")

	_, err := Load(path)
	require.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
