// Package config loads the bot configuration from defaults, an optional YAML
// file, a .env file and the process environment, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Knowledge     KnowledgeConfig     `yaml:"knowledge"`
	Scraper       ScraperConfig       `yaml:"scraper"`
	Cache         CacheConfig         `yaml:"cache"`
	Auth          AuthConfig          `yaml:"auth"`
	Telegram      TelegramConfig      `yaml:"telegram"`
	WhatsApp      WhatsAppConfig      `yaml:"whatsapp"`
	Channels      ChannelsConfig      `yaml:"channels"`
	Observability ObservabilityConfig `yaml:"observability"`
	Reply         ReplyConfig         `yaml:"reply"`
}

type ServerConfig struct {
	Host             string          `yaml:"host"`
	Port             int             `yaml:"port"`
	ReadTimeout      time.Duration   `yaml:"read_timeout"`
	WriteTimeout     time.Duration   `yaml:"write_timeout"`
	IdleTimeout      time.Duration   `yaml:"idle_timeout"`
	GracefulShutdown time.Duration   `yaml:"graceful_shutdown"`
	ErrorStatus      int             `yaml:"error_status"` // status of the generic error reply: 200 or 500
	AllowedOrigins   []string        `yaml:"allowed_origins"`
	MaxBodyBytes     int64           `yaml:"max_body_bytes"`
	RateLimit        RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig describes a token bucket.
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled"`
	RPS     float64 `yaml:"rps"`
	Burst   int     `yaml:"burst"`
}

type KnowledgeConfig struct {
	Path string `yaml:"path"`
}

// ScraperConfig controls product page refreshes.
type ScraperConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Interval     time.Duration `yaml:"interval"`
	Timeout      time.Duration `yaml:"timeout"`      // per page
	PassTimeout  time.Duration `yaml:"pass_timeout"` // whole refresh
	Concurrency  int           `yaml:"concurrency"`
	UserAgent    string        `yaml:"user_agent"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
}

type CacheConfig struct {
	Driver   string         `yaml:"driver"` // none, sqlite or postgres
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// AuthConfig guards the admin endpoints. Admin endpoints are disabled when
// JWTSecret or AdminPasswordHash is empty.
type AuthConfig struct {
	JWTSecret         string        `yaml:"jwt_secret"`
	TokenTTL          time.Duration `yaml:"token_ttl"`
	AdminUsername     string        `yaml:"admin_username"`
	AdminPasswordHash string        `yaml:"admin_password_hash"` // bcrypt
}

func (a AuthConfig) Enabled() bool {
	return a.JWTSecret != "" && a.AdminPasswordHash != ""
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	Debug   bool   `yaml:"debug"`
}

type WhatsAppConfig struct {
	Enabled   bool   `yaml:"enabled"`
	StorePath string `yaml:"store_path"`
}

// ChannelsConfig applies to the Telegram and WhatsApp front-ends.
type ChannelsConfig struct {
	SessionIdleTTL time.Duration   `yaml:"session_idle_ttl"`
	RateLimit      RateLimitConfig `yaml:"rate_limit"`
}

type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	ServiceName string `yaml:"service_name"`
}

type ReplyConfig struct {
	Strict bool `yaml:"strict"` // strip emoji, keep only the first link
}

// Load reads configuration from a YAML file and applies environment overrides.
// An empty path skips the file. A missing .env file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             3000,
			ReadTimeout:      15 * time.Second,
			WriteTimeout:     15 * time.Second,
			IdleTimeout:      60 * time.Second,
			GracefulShutdown: 10 * time.Second,
			ErrorStatus:      http.StatusOK,
			AllowedOrigins:   []string{"https://egy-tronix.com", "https://www.egy-tronix.com"},
			MaxBodyBytes:     64 << 10,
			RateLimit:        RateLimitConfig{Enabled: true, RPS: 2, Burst: 10},
		},
		Knowledge: KnowledgeConfig{
			Path: "data/knowledge.yaml",
		},
		Scraper: ScraperConfig{
			Enabled:      false,
			Interval:     6 * time.Hour,
			Timeout:      20 * time.Second,
			PassTimeout:  2 * time.Minute,
			Concurrency:  4,
			UserAgent:    "Mozilla/5.0 (KASBot; +https://egy-tronix.com)",
			MaxBodyBytes: 5 << 20,
		},
		Cache: CacheConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{Path: "data/pages.db"},
			Postgres: PostgresConfig{
				MaxConns:        10,
				MinConns:        2,
				ConnMaxLifetime: time.Hour,
			},
		},
		Auth: AuthConfig{
			TokenTTL:      24 * time.Hour,
			AdminUsername: "admin",
		},
		WhatsApp: WhatsAppConfig{
			StorePath: "devices/whatsapp.db",
		},
		Channels: ChannelsConfig{
			SessionIdleTTL: 30 * time.Minute,
			RateLimit:      RateLimitConfig{Enabled: true, RPS: 1, Burst: 5},
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogFormat:   "json",
			ServiceName: "kasbot",
		},
	}
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ErrorStatus != http.StatusOK && c.Server.ErrorStatus != http.StatusInternalServerError {
		return fmt.Errorf("server.error_status must be 200 or 500, got %d", c.Server.ErrorStatus)
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be positive")
	}
	if c.Server.RateLimit.Enabled && (c.Server.RateLimit.RPS <= 0 || c.Server.RateLimit.Burst < 1) {
		return fmt.Errorf("server.rate_limit needs positive rps and burst")
	}
	if c.Knowledge.Path == "" {
		return fmt.Errorf("knowledge.path is required")
	}

	switch c.Cache.Driver {
	case "none", "sqlite", "postgres":
	default:
		return fmt.Errorf("invalid cache driver: %s", c.Cache.Driver)
	}
	if c.Cache.Driver == "postgres" && c.Cache.Postgres.DSN == "" {
		return fmt.Errorf("cache.postgres.dsn is required for the postgres driver")
	}
	if c.Cache.Driver == "sqlite" && c.Cache.SQLite.Path == "" {
		return fmt.Errorf("cache.sqlite.path is required for the sqlite driver")
	}

	if c.Scraper.PassTimeout <= 0 {
		return fmt.Errorf("scraper.pass_timeout must be positive")
	}
	if c.Scraper.Enabled {
		if c.Scraper.Interval < time.Minute {
			return fmt.Errorf("scraper.interval must be at least 1m, got %s", c.Scraper.Interval)
		}
		if c.Scraper.Concurrency < 1 {
			return fmt.Errorf("scraper.concurrency must be at least 1")
		}
	}

	if c.Telegram.Enabled && c.Telegram.Token == "" {
		return fmt.Errorf("telegram.token is required when telegram is enabled")
	}
	if c.WhatsApp.Enabled && c.WhatsApp.StorePath == "" {
		return fmt.Errorf("whatsapp.store_path is required when whatsapp is enabled")
	}

	switch c.Observability.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format: %s", c.Observability.LogFormat)
	}
	return nil
}

// Addr is the listen address of the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("CHAT_ERROR_STATUS"); v != "" {
		if status, err := strconv.Atoi(v); err == nil {
			cfg.Server.ErrorStatus = status
		}
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = splitList(v)
	}

	if v := os.Getenv("KNOWLEDGE_PATH"); v != "" {
		cfg.Knowledge.Path = v
	}

	if v, ok := envBool("SCRAPE_ENABLED"); ok {
		cfg.Scraper.Enabled = v
	}
	if v := os.Getenv("SCRAPE_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Scraper.Interval = d
		}
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		if strings.HasPrefix(v, "sqlite:") {
			cfg.Cache.Driver = "sqlite"
			cfg.Cache.SQLite.Path = strings.TrimPrefix(v, "sqlite:")
		} else if strings.HasPrefix(v, "postgres") {
			cfg.Cache.Driver = "postgres"
			cfg.Cache.Postgres.DSN = v
		}
	}

	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("ADMIN_USERNAME"); v != "" {
		cfg.Auth.AdminUsername = v
	}
	if v := os.Getenv("ADMIN_PASSWORD_HASH"); v != "" {
		cfg.Auth.AdminPasswordHash = v
	}

	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.Token = v
		cfg.Telegram.Enabled = true
	}
	if v, ok := envBool("WHATSAPP_ENABLED"); ok {
		cfg.WhatsApp.Enabled = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
	if v, ok := envBool("REPLY_STRICT"); ok {
		cfg.Reply.Strict = v
	}
}

func envBool(key string) (bool, bool) {
	v := os.Getenv(key)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
