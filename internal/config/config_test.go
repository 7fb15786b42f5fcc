package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("DRAFT_STORAGE", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DraftStorageRedis, cfg.DraftStorage)
	assert.Equal(t, 2*time.Second, cfg.FormAutosaveDelay)
	assert.Equal(t, time.Second, cfg.SelectionAutosaveDelay)
	assert.Equal(t, 24*time.Hour, cfg.DraftTTL)
	assert.True(t, cfg.RunMigrations)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("DRAFT_STORAGE", "Memory")
	t.Setenv("DRAFT_TTL", "1h")
	t.Setenv("BACKEND_RATE", "12.5")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("RUN_MIGRATIONS", "false")
	t.Setenv("FETCH_CONCURRENCY", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DraftStorageMemory, cfg.DraftStorage)
	assert.Equal(t, time.Hour, cfg.DraftTTL)
	assert.Equal(t, 12.5, cfg.BackendRate)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.False(t, cfg.RunMigrations)
	assert.Equal(t, 4, cfg.FetchConcurrency)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "studio.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "9090"
draft_storage: postgres
form_autosave_delay: 3s
backend_url: http://templates.internal/api
`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("DRAFT_STORAGE", "")
	t.Setenv("API_PORT", "7070")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Port)
	assert.Equal(t, DraftStoragePostgres, cfg.DraftStorage)
	assert.Equal(t, 3*time.Second, cfg.FormAutosaveDelay)
	assert.Equal(t, "http://templates.internal/api", cfg.BackendURL)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "nope.yaml"))
	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults are valid", func(c *Config) {}, ""},
		{"unknown storage", func(c *Config) { c.DraftStorage = "s3" }, "DRAFT_STORAGE must be one of"},
		{"redis without url", func(c *Config) { c.RedisURL = "" }, "REDIS_URL is required"},
		{"postgres without url", func(c *Config) {
			c.DraftStorage = DraftStoragePostgres
			c.DatabaseURL = ""
		}, "DATABASE_URL is required"},
		{"production without secret", func(c *Config) { c.Environment = "production" }, "BACKEND_SECRET is required"},
		{"zero autosave delay", func(c *Config) { c.FormAutosaveDelay = 0 }, "autosave delays"},
		{"missing backend", func(c *Config) { c.BackendURL = "" }, "BACKEND_URL is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
