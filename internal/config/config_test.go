package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("AI_PROVIDER", "Ollama")
	t.Setenv("MAX_FETCH_EMAILS", "500")
	t.Setenv("REFRESH_DEBOUNCE_MS", "2000")
	t.Setenv("SYNC_INTERVAL_SECONDS", "0")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "ollama", cfg.AIProvider)
	assert.Equal(t, 500, cfg.MaxFetchEmails)
	assert.Equal(t, 2*time.Second, cfg.RefreshDebounce)
	assert.Equal(t, time.Duration(0), cfg.SyncInterval)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigCapsMaxFetch(t *testing.T) {
	t.Setenv("MAX_FETCH_EMAILS", "50000")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 2000, cfg.MaxFetchEmails)
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("MC_INT", "42")
	t.Setenv("MC_BAD_INT", "forty-two")
	t.Setenv("MC_BOOL", "true")

	assert.Equal(t, 42, GetEnvInt("MC_INT", 1))
	assert.Equal(t, 1, GetEnvInt("MC_BAD_INT", 1))
	assert.Equal(t, 7, GetEnvInt("MC_UNSET_INT", 7))
	assert.True(t, GetEnvBool("MC_BOOL", false))
	assert.Equal(t, 42*time.Millisecond, GetEnvDuration("MC_INT", 0, time.Millisecond))
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Port:                 "8080",
			DBPath:               "data/test.db",
			AIProvider:           "ollama",
			MaxFetchEmails:       10,
			FetchMaxRetries:      5,
			SummaryRatePerMinute: 10,
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid sqlite", mutate: func(c *Config) {}},
		{name: "valid postgres", mutate: func(c *Config) { c.DatabaseURL = "postgres://u:p@localhost/db" }},
		{name: "mysql rejected", mutate: func(c *Config) { c.DatabaseURL = "mysql://u@localhost/db" }, wantErr: "postgres"},
		{name: "unknown provider", mutate: func(c *Config) { c.AIProvider = "claude" }, wantErr: "not supported"},
		{name: "openai needs key", mutate: func(c *Config) { c.AIProvider = "openai" }, wantErr: "AI_API_KEY"},
		{name: "no store", mutate: func(c *Config) { c.DBPath = "" }, wantErr: "DB_PATH"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
