package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hugo-lorenzo-mato/fleetd/internal/api"
	"github.com/hugo-lorenzo-mato/fleetd/internal/collect"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Register this instance and serve the fleet API",
	Long: `Register this process in the shared store, heartbeat on the
configured interval, and serve the fleet metrics API.

Examples:
  # Start with defaults (localhost:9620, .fleetd/fleet.db)
  fleetd serve

  # Start on a custom port against a shared database file
  fleetd serve --port 3000 --store /var/lib/fleetd/fleet.db`,
	RunE: runServe,
}

var (
	serveHost  string
	servePort  int
	serveStore string
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "localhost",
		"Host address to bind to")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 9620,
		"Port to listen on")
	serveCmd.Flags().StringVar(&serveStore, "store", "",
		"Path to the shared instance store (overrides config)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger := newLogger()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if serveStore != "" {
		cfg.Store.Path = serveStore
	}
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = serveHost
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = servePort
	}

	st, reg, err := openRegistry(cfg, logger)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Warn("failed to close store", slog.String("error", closeErr.Error()))
		}
	}()

	// Host metrics are the default collector; hosts embedding the
	// registry swap in their own.
	reg.SetMetricsCollector(collect.NewHostCollector().Collect)

	serverCfg := api.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		EnableCORS:      cfg.Server.EnableCORS,
		CORSOrigins:     cfg.Server.CORSOrigins,
	}
	server := api.New(serverCfg, reg, logger.Logger)

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}

	logger.Info("fleetd started",
		slog.String("instance_id", reg.InstanceID()),
		slog.String("addr", server.Addr()),
		slog.String("store", st.Path()),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return reg.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")
		return server.Shutdown(context.Background())
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info("fleetd stopped")
	return nil
}
