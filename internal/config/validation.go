package config

import (
	"fmt"
	"strings"

	"github.com/respogen/respogen/internal/errors"
	"github.com/respogen/respogen/internal/logging"
	"github.com/respogen/respogen/internal/validation"
)

// Validate checks configuration values for security and correctness.
func (c *Config) Validate() error {
	if err := validateServerConfig(&c.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := validateLimitsConfig(&c.Limits); err != nil {
		return fmt.Errorf("limits config: %w", err)
	}
	if err := validateLogConfig(&c.Log); err != nil {
		return fmt.Errorf("log config: %w", err)
	}
	if c.Templates.Watch && c.Templates.Dir == "" {
		return errors.NewConfigError("templates.watch requires templates.dir")
	}
	return nil
}

func validateServerConfig(config *ServerConfig) error {
	if config.Port < 1 || config.Port > 65535 {
		return errors.NewConfigError(fmt.Sprintf("port %d is not in valid range 1-65535", config.Port))
	}

	if config.Host != "" {
		dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\"}
		for _, char := range dangerousChars {
			if strings.Contains(config.Host, char) {
				return errors.NewConfigError("host contains dangerous character: " + char)
			}
		}
	}

	for _, origin := range config.AllowedOrigins {
		if err := validation.ValidateOrigin(origin); err != nil {
			return fmt.Errorf("allowed origin %q: %w", origin, err)
		}
	}

	if config.MaxConnections < 0 {
		return errors.NewConfigError("max_connections cannot be negative")
	}
	if config.RateLimit < 0 || config.RateBurst < 0 {
		return errors.NewConfigError("rate_limit and rate_burst cannot be negative")
	}
	if config.ShutdownTimeout <= 0 {
		return errors.NewConfigError("shutdown_timeout must be positive")
	}

	return nil
}

func validateLimitsConfig(config *LimitsConfig) error {
	checks := []struct {
		name  string
		value int64
	}{
		{"max_upload_bytes", config.MaxUploadBytes},
		{"max_archive_total_bytes", config.MaxArchiveTotalBytes},
		{"max_entry_bytes", config.MaxEntryBytes},
		{"max_entries", int64(config.MaxEntries)},
		{"max_path_length", int64(config.MaxPathLength)},
	}
	for _, c := range checks {
		if c.value <= 0 {
			return errors.NewConfigError(fmt.Sprintf("%s must be positive, got %d", c.name, c.value))
		}
	}
	return nil
}

func validateLogConfig(config *LogConfig) error {
	if _, err := logging.ParseLevel(config.Level); err != nil {
		return errors.NewConfigError(err.Error())
	}
	switch config.Format {
	case "text", "json":
		return nil
	default:
		return errors.NewConfigError(fmt.Sprintf("log format %q must be text or json", config.Format))
	}
}
