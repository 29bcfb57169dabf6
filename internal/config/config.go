// Package config provides configuration management for respogen using Viper
// for loading from files, environment variables and command-line flags.
//
// Values come from a YAML file (.respogen.yml by default), RESPOGEN_
// prefixed environment variables (a .env file in the working directory is
// loaded first) and bound cobra flags. Every key has a default, so an empty
// environment yields a working server.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "RESPOGEN"

const mib = 1 << 20

type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Limits    LimitsConfig    `mapstructure:"limits" yaml:"limits"`
	Templates TemplatesConfig `mapstructure:"templates" yaml:"templates"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	MaxConnections  int           `mapstructure:"max_connections" yaml:"max_connections"`
	RateLimit       float64       `mapstructure:"rate_limit" yaml:"rate_limit"`
	RateBurst       int           `mapstructure:"rate_burst" yaml:"rate_burst"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// LimitsConfig holds the size ceilings that bound one request.
type LimitsConfig struct {
	MaxUploadBytes       int64 `mapstructure:"max_upload_bytes" yaml:"max_upload_bytes"`
	MaxArchiveTotalBytes int64 `mapstructure:"max_archive_total_bytes" yaml:"max_archive_total_bytes"`
	MaxEntryBytes        int64 `mapstructure:"max_entry_bytes" yaml:"max_entry_bytes"`
	MaxEntries           int   `mapstructure:"max_entries" yaml:"max_entries"`
	MaxPathLength        int   `mapstructure:"max_path_length" yaml:"max_path_length"`
}

type TemplatesConfig struct {
	Dir   string `mapstructure:"dir" yaml:"dir"`
	Watch bool   `mapstructure:"watch" yaml:"watch"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// SetDefaults registers the default of every key on v. Registering them
// also lets AutomaticEnv resolve the matching environment variables during
// Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.max_connections", 256)
	v.SetDefault("server.rate_limit", 10.0)
	v.SetDefault("server.rate_burst", 20)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("limits.max_upload_bytes", int64(128*mib))
	v.SetDefault("limits.max_archive_total_bytes", int64(100*mib))
	v.SetDefault("limits.max_entry_bytes", int64(100*mib))
	v.SetDefault("limits.max_entries", 10000)
	v.SetDefault("limits.max_path_length", 4096)

	v.SetDefault("templates.dir", "")
	v.SetDefault("templates.watch", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// ConfigureEnv wires the RESPOGEN_ environment onto v.
func ConfigureEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// LoadDotEnv loads the given .env files into the process environment
// without overriding variables that are already set. Missing files are
// ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads and validates the configuration held by v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Origins may arrive as one comma separated env value
	var origins []string
	for _, o := range config.Server.AllowedOrigins {
		origins = append(origins, splitList(o)...)
	}
	config.Server.AllowedOrigins = origins

	config.Log.Level = strings.ToLower(strings.TrimSpace(config.Log.Level))
	config.Log.Format = strings.ToLower(strings.TrimSpace(config.Log.Format))

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
