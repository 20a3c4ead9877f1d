// Package config loads service configuration from the environment, with
// an optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Security SecurityConfig
	Vision   VisionConfig
	Logging  LoggingConfig
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds the postgres connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds the rate-limit backend settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// SecurityConfig holds auth settings.
type SecurityConfig struct {
	JWTSecret string
}

// VisionConfig holds provider-facing settings.
type VisionConfig struct {
	RequestTimeout time.Duration
	// PriceOverridesPath optionally points at a YAML file replacing the
	// built-in per-model price table.
	PriceOverridesPath string
}

// LoggingConfig holds log settings.
type LoggingConfig struct {
	Level string
}

// Load reads configuration from the environment. A .env file in the
// working directory is loaded first if present; real environment
// variables win over file entries.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:            envString("SERVER_HOST", "0.0.0.0"),
			Port:            envInt("SERVER_PORT", 8080),
			ReadTimeout:     envDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    envDuration("SERVER_WRITE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: envDuration("SERVER_SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Database: DatabaseConfig{
			Host:     envString("DATABASE_HOST", "localhost"),
			Port:     envInt("DATABASE_PORT", 5432),
			User:     envString("DATABASE_USER", "fieldproof"),
			Password: os.Getenv("DATABASE_PASSWORD"),
			DBName:   envString("DATABASE_NAME", "fieldproof"),
			SSLMode:  envString("DATABASE_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     envString("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       envInt("REDIS_DB", 0),
		},
		Security: SecurityConfig{
			JWTSecret: os.Getenv("JWT_SECRET"),
		},
		Vision: VisionConfig{
			RequestTimeout:     envDuration("VISION_REQUEST_TIMEOUT", 60*time.Second),
			PriceOverridesPath: os.Getenv("PRICE_OVERRIDES_PATH"),
		},
		Logging: LoggingConfig{
			Level: envString("LOG_LEVEL", "info"),
		},
	}

	if cfg.Security.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET must be set")
	}

	return cfg, nil
}

// DSN returns the postgres connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// Addr returns the HTTP listen address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
