package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, int64(20*1024*1024), cfg.Pipeline.MaxFileSize())
	assert.Equal(t, 50*1024*1024, cfg.Pipeline.MaxPayload())
	assert.Equal(t, 180*time.Second, cfg.Generation.Timeout)
	assert.Equal(t, 10, cfg.RateLimit.MaxRequests)
	assert.Equal(t, 2, cfg.RateLimit.MaxConcurrent)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlDoc := `
server:
  port: 9090
pipeline:
  engine: fitz
  quality: 70
rate_limit:
  window: 30s
  max_requests: 5
`
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o600))

	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DATABASE_URL", "sqlite:/tmp/test.db")
	t.Setenv("OPENROUTER_API_KEY", "sk-test")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "fitz", cfg.Pipeline.Engine)
	assert.Equal(t, 70, cfg.Pipeline.Quality)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Window)
	assert.Equal(t, 5, cfg.RateLimit.MaxRequests)
	assert.Equal(t, "debug", cfg.Observability.LogLevel)
	assert.Equal(t, "/tmp/test.db", cfg.Database.SQLite.Path)
	assert.Equal(t, "sk-test", cfg.Generation.APIKey)
	// untouched defaults survive the file
	assert.Equal(t, 150, cfg.Pipeline.Density)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")
}

func TestApplyEnvOverrides_Redis(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://cache:6379")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")

	cfg := DefaultConfig()
	applyEnvOverrides(cfg)

	assert.Equal(t, "redis", cfg.Cache.Driver)
	assert.Equal(t, "cache:6379", cfg.Cache.Redis.Addr)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "invalid server port"},
		{"bad driver", func(c *Config) { c.Database.Driver = "mysql" }, "invalid database driver"},
		{"postgres without dsn", func(c *Config) { c.Database.Driver = "postgres" }, "requires a dsn"},
		{"auth without secret", func(c *Config) { c.Auth.Enabled = true }, "jwt_secret"},
		{"bad engine", func(c *Config) { c.Pipeline.Engine = "ghostscript" }, "invalid pipeline engine"},
		{"quality too high", func(c *Config) { c.Pipeline.Quality = 101 }, "quality"},
		{"zero pages", func(c *Config) { c.Pipeline.MaxPages = 0 }, "positive"},
		{"zero concurrency", func(c *Config) { c.RateLimit.MaxConcurrent = 0 }, "rate limit"},
		{"redis store without redis cache", func(c *Config) { c.RateLimit.Store = "redis" }, "requires cache driver redis"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
