// Package config reads the server settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"gymbro/internal/repositories"
	"gymbro/internal/services"
	"gymbro/pkg/matching"
)

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

const defaultJWTSecret = "change-me"

type Config struct {
	AppPort string
	AppEnv  string

	DatabaseDriver string
	DatabaseDSN    string

	// RedisAddr empty keeps match state in process memory.
	RedisAddr   string
	RedisPrefix string
	// RabbitMQURL empty disables domain events.
	RabbitMQURL string

	JWTSecret string

	UsernameRandomAttempts int
	DocstoreTxAttempts     int
	MatchDefaultLimit      int
}

// Production reports whether APP_ENV selects production behaviour.
func (c *Config) Production() bool {
	switch strings.ToLower(c.AppEnv) {
	case "prod", "production":
		return true
	}
	return false
}

// Load reads the configuration. Variables already set in the environment win
// over the given .env files; missing files are ignored.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	v := viper.New()
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("DATABASE_DRIVER", DriverSQLite)
	v.SetDefault("DATABASE_DSN", "gymbro.db")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PREFIX", "gymbro:")
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("JWT_SECRET", defaultJWTSecret)
	v.SetDefault("USERNAME_RANDOM_ATTEMPTS", services.DefaultRandomAttempts)
	v.SetDefault("DOCSTORE_TX_ATTEMPTS", repositories.DefaultTransactionAttempts)
	v.SetDefault("MATCH_DEFAULT_LIMIT", matching.DefaultLimit)
	v.AutomaticEnv()

	cfg := &Config{
		AppPort:                v.GetString("APP_PORT"),
		AppEnv:                 v.GetString("APP_ENV"),
		DatabaseDriver:         strings.ToLower(v.GetString("DATABASE_DRIVER")),
		DatabaseDSN:            v.GetString("DATABASE_DSN"),
		RedisAddr:              v.GetString("REDIS_ADDR"),
		RedisPrefix:            v.GetString("REDIS_PREFIX"),
		RabbitMQURL:            v.GetString("RABBITMQ_URL"),
		JWTSecret:              v.GetString("JWT_SECRET"),
		UsernameRandomAttempts: v.GetInt("USERNAME_RANDOM_ATTEMPTS"),
		DocstoreTxAttempts:     v.GetInt("DOCSTORE_TX_ATTEMPTS"),
		MatchDefaultLimit:      v.GetInt("MATCH_DEFAULT_LIMIT"),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DatabaseDriver {
	case DriverPostgres, DriverSQLite:
		if c.DatabaseDSN == "" {
			return fmt.Errorf("DATABASE_DSN is required for driver %s", c.DatabaseDriver)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	if c.JWTSecret == "" || (c.Production() && c.JWTSecret == defaultJWTSecret) {
		return errors.New("JWT_SECRET must be set")
	}
	if c.UsernameRandomAttempts <= 0 || c.DocstoreTxAttempts <= 0 || c.MatchDefaultLimit <= 0 {
		return errors.New("USERNAME_RANDOM_ATTEMPTS, DOCSTORE_TX_ATTEMPTS and MATCH_DEFAULT_LIMIT must be positive")
	}
	return nil
}
