package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	ServerPort string
	ServerHost string

	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis configuration
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	RedisURL      string

	// JWT configuration
	JWTSecret string

	// Meal analysis endpoint. May be empty: the analysis client reports a
	// configuration error on first use instead of failing startup, so the
	// rest of the API keeps working without the analysis backend.
	AnalysisAPIURL string
}

// LoadConfig creates a new Config instance with values from environment variables or secrets
func LoadConfig() (*Config, error) {
	env := GetEnvironment()
	cfg := &Config{}

	switch env {
	case CI, Development, Test:
		loadEnvConfig(cfg)
	case Production:
		loadProdConfig(cfg)
	default:
		return nil, fmt.Errorf("unknown environment: %s", env)
	}

	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadEnvConfig loads configuration from plain environment variables
func loadEnvConfig(cfg *Config) {
	cfg.ServerPort = envOr("SERVER_PORT", "8080")
	cfg.ServerHost = envOr("SERVER_HOST", "0.0.0.0")
	cfg.DBHost = envOr("DB_HOST", "localhost")
	cfg.DBPort = envOr("DB_PORT", "5432")
	cfg.DBUser = os.Getenv("DB_USER")
	cfg.DBPassword = os.Getenv("DB_PASSWORD")
	cfg.DBName = os.Getenv("DB_NAME")
	cfg.DBSSLMode = envOr("DB_SSL_MODE", "disable")
	cfg.RedisHost = envOr("REDIS_HOST", "localhost")
	cfg.RedisPort = envOr("REDIS_PORT", "6379")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.RedisDB = envInt("REDIS_DB", 0)
	cfg.RedisURL = os.Getenv("REDIS_URL")
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	cfg.AnalysisAPIURL = os.Getenv("ANALYSIS_API_URL")
}

// loadProdConfig loads configuration for production using Docker secrets,
// falling back to environment variables for non-sensitive values
func loadProdConfig(cfg *Config) {
	cfg.ServerPort = secretOr("server_port", envOr("SERVER_PORT", "8080"))
	cfg.ServerHost = secretOr("server_host", envOr("SERVER_HOST", "0.0.0.0"))
	cfg.DBHost = secretOr("db_host", os.Getenv("DB_HOST"))
	cfg.DBPort = secretOr("db_port", envOr("DB_PORT", "5432"))
	cfg.DBUser = readSecret("db_user")
	cfg.DBPassword = readSecret("db_password")
	cfg.DBName = secretOr("db_name", os.Getenv("DB_NAME"))
	cfg.DBSSLMode = secretOr("db_ssl_mode", envOr("DB_SSL_MODE", "require"))
	cfg.RedisHost = secretOr("redis_host", os.Getenv("REDIS_HOST"))
	cfg.RedisPort = secretOr("redis_port", envOr("REDIS_PORT", "6379"))
	cfg.RedisPassword = readSecret("redis_password")
	cfg.RedisDB = 0
	cfg.RedisURL = secretOr("redis_url", os.Getenv("REDIS_URL"))
	cfg.JWTSecret = readSecret("jwt_secret")
	cfg.AnalysisAPIURL = secretOr("analysis_api_url", os.Getenv("ANALYSIS_API_URL"))
}

// readSecret reads a Docker secret from the secrets directory
func readSecret(name string) string {
	secretsDir := os.Getenv("SECRETS_DIR")
	if secretsDir == "" {
		secretsDir = "/run/secrets"
	}
	secretPath := filepath.Join(secretsDir, name)
	if data, err := os.ReadFile(secretPath); err == nil {
		return strings.TrimSpace(string(data))
	}
	return ""
}

func secretOr(name, fallback string) string {
	if v := readSecret(name); v != "" {
		return v
	}
	return fallback
}

func envOr(key, fallback string) string {
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
