package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the PodForge server.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Upload     UploadConfig
	Transcript TranscriptConfig
	Audio      AudioConfig
}

type ServerConfig struct {
	Port           int
	Env            string
	MaxUploadBytes int64
	AllowedOrigins []string
	RequestsPerMin int
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

// UploadConfig points at the external file upload sink that turns raw bytes
// into a durably addressable URL.
type UploadConfig struct {
	BaseURL string
	Timeout time.Duration
}

// TranscriptConfig points at the Wetrocloud transcript engine.
type TranscriptConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// AudioConfig points at the Podcastfy audio synthesis engine.
type AudioConfig struct {
	BaseURL string
	Timeout time.Duration
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:           envInt("PODFORGE_PORT", 8080),
			Env:            envString("PODFORGE_ENV", "development"),
			MaxUploadBytes: envInt64("PODFORGE_MAX_UPLOAD_BYTES", 32<<20),
			AllowedOrigins: envList("PODFORGE_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			RequestsPerMin: envInt("PODFORGE_REQUESTS_PER_MIN", 60),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Upload: UploadConfig{
			BaseURL: os.Getenv("UPLOAD_SERVICE_URL"),
			Timeout: envDuration("UPLOAD_TIMEOUT", 60*time.Second),
		},
		Transcript: TranscriptConfig{
			BaseURL: envString("WETRO_BASE_URL", "https://api.wetrocloud.com"),
			APIKey:  os.Getenv("WETRO_API_KEY"),
			Timeout: envDuration("WETRO_TIMEOUT", 5*time.Minute),
		},
		Audio: AudioConfig{
			BaseURL: os.Getenv("PODCASTFY_BASE_URL"),
			Timeout: envDuration("PODCASTFY_TIMEOUT", 10*time.Minute),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Upload.BaseURL == "" {
		return fmt.Errorf("UPLOAD_SERVICE_URL is required")
	}
	if !httpURL(c.Upload.BaseURL) {
		return fmt.Errorf("UPLOAD_SERVICE_URL must start with http:// or https://, got %q", c.Upload.BaseURL)
	}

	if !httpURL(c.Transcript.BaseURL) {
		return fmt.Errorf("WETRO_BASE_URL must start with http:// or https://, got %q", c.Transcript.BaseURL)
	}
	if c.Transcript.APIKey == "" {
		return fmt.Errorf("WETRO_API_KEY is required")
	}

	if c.Audio.BaseURL == "" {
		return fmt.Errorf("PODCASTFY_BASE_URL is required")
	}
	if !httpURL(c.Audio.BaseURL) {
		return fmt.Errorf("PODCASTFY_BASE_URL must start with http:// or https://, got %q", c.Audio.BaseURL)
	}

	return nil
}

func httpURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
