// Package config loads runtime settings from MAAT_* environment variables,
// optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

const devSecret = "maat-dev-secret"

type Config struct {
	Addr          string `env:"ADDR" envDefault:":8080"`
	DBPath        string `env:"DB_PATH" envDefault:"data/maat.db"`
	MigrationsDir string `env:"MIGRATIONS_DIR"`
	ResultsDir    string `env:"RESULTS_DIR" envDefault:"results"`
	// StaticDir, when set, is served at / for the participant front end.
	StaticDir     string `env:"STATIC_DIR"`

	JWTSecret     string        `env:"JWT_SECRET"`
	TokenTTL      time.Duration `env:"TOKEN_TTL" envDefault:"168h"`
	SecureCookies bool          `env:"SECURE_COOKIES" envDefault:"false"`

	SessionBackend string        `env:"SESSION_BACKEND" envDefault:"memory"`
	SessionTTL     time.Duration `env:"SESSION_TTL" envDefault:"12h"`
	PruneInterval  time.Duration `env:"PRUNE_INTERVAL" envDefault:"10m"`
	RedisAddr      string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword  string        `env:"REDIS_PASSWORD"`
	RedisDB        int           `env:"REDIS_DB" envDefault:"0"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	Commit    string `env:"COMMIT" envDefault:"dev"`
	BuildTime string `env:"BUILD_TIME"`
}

// Load reads envFile when it exists, then parses the environment.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	return Parse()
}

// Parse reads MAAT_* variables without touching any file.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: "MAAT_"}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = devSecret
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// UsingDevSecret reports whether no JWT secret was configured.
func (c *Config) UsingDevSecret() bool { return c.JWTSecret == devSecret }

func (c *Config) Validate() error {
	var errs []error
	c.SessionBackend = strings.ToLower(strings.TrimSpace(c.SessionBackend))
	switch c.SessionBackend {
	case BackendMemory, BackendRedis:
	default:
		errs = append(errs, fmt.Errorf("MAAT_SESSION_BACKEND: unknown backend %q", c.SessionBackend))
	}
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("MAAT_LOG_FORMAT: unknown format %q", c.LogFormat))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("MAAT_TOKEN_TTL must be positive"))
	}
	if c.SessionTTL < 0 || c.PruneInterval < 0 {
		errs = append(errs, errors.New("MAAT_SESSION_TTL and MAAT_PRUNE_INTERVAL must not be negative"))
	}
	if c.ResultsDir == "" {
		errs = append(errs, errors.New("MAAT_RESULTS_DIR is required"))
	}
	return errors.Join(errs...)
}
