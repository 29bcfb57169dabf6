// Package cmd provides the respogen command-line interface.
//
// Configuration is read, highest priority first, from command-line flags,
// RESPOGEN_<SECTION>_<KEY> environment variables (a .env file in the
// working directory is loaded first), and the config file given by
// --config, RESPOGEN_CONFIG_FILE or ./.respogen.yml.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/respogen/respogen/internal/config"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "respogen",
	Short: "Assemble uploaded files, archives and snippets into a ready-to-publish project",
	Long: `Respogen merges loose files, an existing ZIP archive and inline code snippets
into one normalized project tree, overlays a scaffold template (README, LICENSE,
.gitignore, manifests) and returns the result as a deterministic ZIP archive.

Quick Start:
  respogen serve                           Start the HTTP service
  respogen generate --name demo -f main.go Build an archive locally
  respogen templates                       List available templates`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .respogen.yml, can also use RESPOGEN_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().String("templates-dir", "", "load templates from this directory instead of the built-in set")

	bindFlags(viper.GetViper(), rootCmd.PersistentFlags(), map[string]string{
		"log-level":     "log.level",
		"log-format":    "log.format",
		"templates-dir": "templates.dir",
	})
}

// initConfig wires every configuration source into the global viper.
func initConfig() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, "Warning:", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("RESPOGEN_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".respogen")
	}

	config.ConfigureEnv(viper.GetViper())

	// A missing file is fine; defaults apply
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
