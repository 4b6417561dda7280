package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateConfig checks that the loaded configuration is usable.
// ANALYSIS_API_URL is deliberately not required: its absence surfaces as a
// configuration error on the first analysis request, not at startup.
func ValidateConfig(cfg *Config) error {
	var errs []string

	if cfg.DBHost == "" {
		errs = append(errs, "database host is required")
	}
	if cfg.DBUser == "" {
		errs = append(errs, "database user is required")
	}
	if cfg.DBName == "" {
		errs = append(errs, "database name is required")
	}
	if cfg.JWTSecret == "" {
		errs = append(errs, "JWT secret is required")
	}
	if cfg.ServerPort == "" {
		errs = append(errs, "server port is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}
