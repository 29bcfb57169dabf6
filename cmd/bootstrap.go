package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/respogen/respogen/internal/config"
	"github.com/respogen/respogen/internal/logging"
	"github.com/respogen/respogen/internal/scaffolding"
)

// loadConfig loads the configuration and builds the logger it describes.
func loadConfig() (*config.Config, logging.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, nil, err
	}

	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
	return cfg, logger, nil
}

// loadRegistry returns the external template directory when one is
// configured, otherwise the built-in templates.
func loadRegistry(cfg *config.Config) (*scaffolding.Registry, error) {
	if cfg.Templates.Dir != "" {
		registry, err := scaffolding.LoadDir(cfg.Templates.Dir)
		if err != nil {
			return nil, fmt.Errorf("failed to load templates from %s: %w", cfg.Templates.Dir, err)
		}
		return registry, nil
	}
	return scaffolding.LoadBuiltin()
}

// bindFlags binds each flag name in keys to its viper key. A missing flag is
// a programming error.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet, keys map[string]string) {
	for name, key := range keys {
		flag := fs.Lookup(name)
		if flag == nil {
			panic(fmt.Sprintf("flag --%s is not defined", name))
		}
		if err := v.BindPFlag(key, flag); err != nil {
			panic(err)
		}
	}
}
