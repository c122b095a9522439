package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fairyhunter13/seatcover-storefront/internal/config"
	"github.com/fairyhunter13/seatcover-storefront/internal/obs"
	"github.com/fairyhunter13/seatcover-storefront/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the storefront HTTP server",
	Long: `Serves the storefront API and the supplier proxies. Configuration comes
from CONFIG_FILE (YAML) and environment variables; SIGINT or SIGTERM
drains pending order notifications before exiting.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	obs.InitLogger(cfg.LogLevel)
	obs.Logger.Info("service_starting",
		"addr", cfg.HTTPAddr,
		"store_driver", cfg.StoreDriver,
		"catalog_dir", cfg.CatalogDir,
		"catalog_url", cfg.CatalogURL,
	)

	srv, err := server.New(cfg)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.Run(ctx)
}
