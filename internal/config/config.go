// Package config provides configuration loading for the flashcards service.
// Values come from defaults, then an optional YAML file, then the environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the service and CLI.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Cache         CacheConfig         `yaml:"cache"`
	Observability ObservabilityConfig `yaml:"observability"`
	Auth          AuthConfig          `yaml:"auth"`
	CORS          CORSConfig          `yaml:"cors"`
	Pipeline      PipelineConfig      `yaml:"pipeline"`
	Generation    GenerationConfig    `yaml:"generation"`
	Thematic      ThematicConfig      `yaml:"thematic"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver   string         `yaml:"driver"` // sqlite or postgres
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type SQLiteConfig struct {
	Path        string `yaml:"path"`
	JournalMode string `yaml:"journal_mode"`
}

type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// CacheConfig selects the cache backing dashboard metrics and shared counters.
type CacheConfig struct {
	Driver     string        `yaml:"driver"` // memory or redis
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
	Redis      RedisConfig   `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
	Prefix   string `yaml:"prefix"`
}

type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// AuthConfig configures bearer token verification. When disabled the caller
// identity is read from DevUserHeader.
type AuthConfig struct {
	Enabled       bool   `yaml:"enabled"`
	JWTSecret     string `yaml:"jwt_secret"`
	Issuer        string `yaml:"issuer"`
	Audience      string `yaml:"audience"`
	DevUserHeader string `yaml:"dev_user_header"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// PipelineConfig bounds PDF ingestion.
type PipelineConfig struct {
	MaxFileSizeMB int    `yaml:"max_file_size_mb"`
	MaxPayloadMB  int    `yaml:"max_payload_mb"`
	MaxPages      int    `yaml:"max_pages"`
	Density       int    `yaml:"density"`
	MaxWidth      int    `yaml:"max_width"`
	Quality       int    `yaml:"quality"`
	BatchSize     int    `yaml:"batch_size"`
	Engine        string `yaml:"engine"` // pdftoppm or fitz
	PdftoppmPath  string `yaml:"pdftoppm_path"`
	ThematicPages int    `yaml:"thematic_pages"`
}

// MaxFileSize returns the upload ceiling in bytes.
func (p PipelineConfig) MaxFileSize() int64 {
	return int64(p.MaxFileSizeMB) * 1024 * 1024
}

// MaxPayload returns the aggregate encoded image ceiling in bytes.
func (p PipelineConfig) MaxPayload() int {
	return p.MaxPayloadMB * 1024 * 1024
}

// GenerationConfig configures the flashcard generation model.
type GenerationConfig struct {
	APIKey            string        `yaml:"api_key"`
	BaseURL           string        `yaml:"base_url"`
	Model             string        `yaml:"model"`
	Timeout           time.Duration `yaml:"timeout"`
	MaxRetries        int           `yaml:"max_retries"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
}

// ThematicConfig configures the thematic extraction model.
type ThematicConfig struct {
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

type RateLimitConfig struct {
	Window        time.Duration `yaml:"window"`
	MaxRequests   int           `yaml:"max_requests"`
	MaxConcurrent int           `yaml:"max_concurrent"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	Store         string        `yaml:"store"` // memory or redis
}

// Load reads configuration from a YAML file and applies environment overrides.
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

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with development defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8080,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     240 * time.Second,
			IdleTimeout:      120 * time.Second,
			RequestTimeout:   200 * time.Second,
			GracefulShutdown: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{
				Path:        "data/flashcards.db",
				JournalMode: "WAL",
			},
			Postgres: PostgresConfig{
				MaxOpenConns:    25,
				MaxIdleConns:    5,
				ConnMaxLifetime: 5 * time.Minute,
			},
		},
		Cache: CacheConfig{
			Driver:     "memory",
			TTL:        30 * time.Second,
			MaxEntries: 10000,
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				PoolSize: 10,
				Prefix:   "flashcards:",
			},
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "json",
		},
		Auth: AuthConfig{
			Enabled:       false,
			DevUserHeader: "X-User-ID",
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"http://localhost:3000"},
			AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-User-ID", "X-Request-ID"},
		},
		Pipeline: PipelineConfig{
			MaxFileSizeMB: 20,
			MaxPayloadMB:  50,
			MaxPages:      50,
			Density:       150,
			MaxWidth:      1024,
			Quality:       80,
			BatchSize:     5,
			Engine:        "pdftoppm",
			PdftoppmPath:  "pdftoppm",
			ThematicPages: 2,
		},
		Generation: GenerationConfig{
			BaseURL:           "https://openrouter.ai/api/v1/chat/completions",
			Model:             "google/gemini-2.0-flash-001",
			Timeout:           180 * time.Second,
			MaxRetries:        2,
			RequestsPerSecond: 2,
			Burst:             4,
		},
		Thematic: ThematicConfig{
			Model:   "gpt-4o-mini",
			Timeout: 30 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Window:        60 * time.Second,
			MaxRequests:   10,
			MaxConcurrent: 2,
			SweepInterval: 5 * time.Minute,
			Store:         "memory",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Driver != "sqlite" && c.Database.Driver != "postgres" {
		return fmt.Errorf("invalid database driver: %s", c.Database.Driver)
	}

	if c.Database.Driver == "postgres" && c.Database.Postgres.DSN == "" {
		return fmt.Errorf("postgres driver requires a dsn")
	}

	if c.Cache.Driver != "memory" && c.Cache.Driver != "redis" {
		return fmt.Errorf("invalid cache driver: %s", c.Cache.Driver)
	}

	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth enabled without jwt_secret")
	}

	p := c.Pipeline
	if p.Engine != "pdftoppm" && p.Engine != "fitz" {
		return fmt.Errorf("invalid pipeline engine: %s", p.Engine)
	}
	if p.Quality < 1 || p.Quality > 100 {
		return fmt.Errorf("quality must be between 1 and 100, got %d", p.Quality)
	}
	if p.MaxFileSizeMB < 1 || p.MaxPayloadMB < 1 || p.MaxPages < 1 ||
		p.Density < 1 || p.MaxWidth < 1 || p.BatchSize < 1 {
		return fmt.Errorf("pipeline limits must be positive")
	}

	if c.Generation.Timeout <= 0 {
		return fmt.Errorf("generation timeout must be positive")
	}

	rl := c.RateLimit
	if rl.Window <= 0 || rl.MaxRequests < 1 || rl.MaxConcurrent < 1 || rl.SweepInterval <= 0 {
		return fmt.Errorf("rate limit settings must be positive")
	}
	if rl.Store != "memory" && rl.Store != "redis" {
		return fmt.Errorf("invalid rate limit store: %s", rl.Store)
	}
	if rl.Store == "redis" && c.Cache.Driver != "redis" {
		return fmt.Errorf("rate limit store redis requires cache driver redis")
	}

	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Database.Driver == "sqlite" || !c.Auth.Enabled
}

// Addr returns the listen address of the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		if strings.HasPrefix(v, "sqlite:") {
			cfg.Database.Driver = "sqlite"
			cfg.Database.SQLite.Path = strings.TrimPrefix(v, "sqlite:")
		} else if strings.HasPrefix(v, "postgres") {
			cfg.Database.Driver = "postgres"
			cfg.Database.Postgres.DSN = v
		}
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Cache.Driver = "redis"
		cfg.Cache.Redis.Addr = strings.TrimPrefix(v, "redis://")
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}

	if v := os.Getenv("AUTH_ENABLED"); v == "true" {
		cfg.Auth.Enabled = true
	}

	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}

	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.CORS.AllowedOrigins = splitList(v)
	}

	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
		cfg.Generation.APIKey = v
	}

	if v := os.Getenv("GENERATION_MODEL"); v != "" {
		cfg.Generation.Model = v
	}

	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Thematic.APIKey = v
	}

	if v := os.Getenv("THEMATIC_MODEL"); v != "" {
		cfg.Thematic.Model = v
	}

	if v := os.Getenv("PDF_ENGINE"); v != "" {
		cfg.Pipeline.Engine = v
	}

	if v := os.Getenv("RATE_LIMIT_STORE"); v != "" {
		cfg.RateLimit.Store = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
