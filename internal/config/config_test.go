package config

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "SERVER_HOST", "CHAT_ERROR_STATUS", "CORS_ORIGINS", "KNOWLEDGE_PATH",
		"SCRAPE_ENABLED", "SCRAPE_INTERVAL", "DATABASE_URL", "JWT_SECRET",
		"ADMIN_USERNAME", "ADMIN_PASSWORD_HASH", "TELEGRAM_BOT_TOKEN",
		"WHATSAPP_ENABLED", "LOG_LEVEL", "LOG_FORMAT", "REPLY_STRICT",
	} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, http.StatusOK, cfg.Server.ErrorStatus)
	assert.Equal(t, "sqlite", cfg.Cache.Driver)
	assert.False(t, cfg.Scraper.Enabled)
	assert.False(t, cfg.Auth.Enabled())
	assert.Equal(t, "0.0.0.0:3000", cfg.Addr())
}

func TestLoad_YAML(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
server:
  port: 8080
  error_status: 500
  allowed_origins: ["https://kas.example"]
scraper:
  enabled: true
  interval: 1h
  concurrency: 2
cache:
  driver: none
reply:
  strict: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, http.StatusInternalServerError, cfg.Server.ErrorStatus)
	assert.Equal(t, []string{"https://kas.example"}, cfg.Server.AllowedOrigins)
	assert.True(t, cfg.Scraper.Enabled)
	assert.Equal(t, time.Hour, cfg.Scraper.Interval)
	assert.Equal(t, 2*time.Minute, cfg.Scraper.PassTimeout, "unset keys keep defaults")
	assert.Equal(t, "none", cfg.Cache.Driver)
	assert.True(t, cfg.Reply.Strict)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("CHAT_ERROR_STATUS", "500")
	t.Setenv("CORS_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("DATABASE_URL", "postgres://kas@localhost/kas")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("SCRAPE_ENABLED", "true")
	t.Setenv("SCRAPE_INTERVAL", "30m")
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("ADMIN_PASSWORD_HASH", "$2a$10$x")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 500, cfg.Server.ErrorStatus)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "postgres", cfg.Cache.Driver)
	assert.Equal(t, "postgres://kas@localhost/kas", cfg.Cache.Postgres.DSN)
	assert.True(t, cfg.Telegram.Enabled)
	assert.True(t, cfg.Scraper.Enabled)
	assert.Equal(t, 30*time.Minute, cfg.Scraper.Interval)
	assert.True(t, cfg.Auth.Enabled())
}

func TestLoad_SQLiteDatabaseURL(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "sqlite:/tmp/pages.db")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Cache.Driver)
	assert.Equal(t, "/tmp/pages.db", cfg.Cache.SQLite.Path)
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config file")

	_, err = Load(writeConfig(t, "server: [1, 2"))
	assert.ErrorContains(t, err, "parse config file")

	_, err = Load(writeConfig(t, "server:\n  error_status: 404\n"))
	assert.ErrorContains(t, err, "error_status")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "invalid server port"},
		{"bad body limit", func(c *Config) { c.Server.MaxBodyBytes = 0 }, "max_body_bytes"},
		{"bad rate limit", func(c *Config) { c.Server.RateLimit.RPS = 0 }, "rate_limit"},
		{"no knowledge path", func(c *Config) { c.Knowledge.Path = "" }, "knowledge.path"},
		{"unknown cache", func(c *Config) { c.Cache.Driver = "redis" }, "invalid cache driver"},
		{"postgres without dsn", func(c *Config) { c.Cache.Driver = "postgres" }, "dsn"},
		{"zero pass timeout", func(c *Config) { c.Scraper.PassTimeout = 0 }, "pass_timeout"},
		{"scrape too often", func(c *Config) {
			c.Scraper.Enabled = true
			c.Scraper.Interval = time.Second
		}, "scraper.interval"},
		{"telegram without token", func(c *Config) { c.Telegram.Enabled = true }, "telegram.token"},
		{"bad log format", func(c *Config) { c.Observability.LogFormat = "xml" }, "invalid log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.wantErr)
		})
	}
}
