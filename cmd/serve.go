package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/respogen/respogen/internal/scaffolding"
	"github.com/respogen/respogen/internal/server"
	"github.com/respogen/respogen/internal/services"
	"github.com/respogen/respogen/internal/watcher"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Start the archive generation HTTP service",
	Long: `Start the HTTP service.

Routes:
  POST /generate   multipart form (files, zip, snippets, repoName, description, template)
  GET  /health     JSON health probe
  GET  /ping       liveness probe

Examples:
  respogen serve
  respogen serve --port 8080 --templates-dir ./templates --watch-templates`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 3000, "Port to serve on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().Bool("watch-templates", false, "Reload --templates-dir when its files change")

	bindFlags(viper.GetViper(), serveCmd.Flags(), map[string]string{
		"port":            "server.port",
		"host":            "server.host",
		"watch-templates": "templates.watch",
	})
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	registry, err := loadRegistry(cfg)
	if err != nil {
		return err
	}
	store := scaffolding.NewStore(registry)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Templates.Watch {
		fw, err := watcher.WatchTemplates(ctx, cfg.Templates.Dir, store, watcher.DefaultDebounce, logger)
		if err != nil {
			return fmt.Errorf("failed to watch templates: %w", err)
		}
		defer fw.Stop()
	}

	svc := services.NewGenerateService(cfg.Limits, store, logger)
	srv := server.New(cfg, svc, logger)

	fmt.Fprintf(cmd.OutOrStdout(), "Starting respogen at http://%s (templates: %v)\n", cfg.Addr(), registry.IDs())

	return srv.Start(ctx)
}
