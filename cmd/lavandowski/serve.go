package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/opensource-finance/lavandowski/internal/api"
	"github.com/opensource-finance/lavandowski/internal/domain"
	"github.com/opensource-finance/lavandowski/internal/worker"
)

func newServeCmd(c *cli) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard API and execute queued runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("port") {
				c.cfg.Server.Port = port
			}
			return serve(cmd.Context(), c.cfg, c.logger)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "HTTP port (default from server.port)")
	return cmd
}

func serve(parent context.Context, cfg *domain.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	registry := api.NewRegistry()
	subs, err := registry.Subscribe(ctx, a.bus)
	if err != nil {
		return fmt.Errorf("failed to subscribe run registry: %w", err)
	}
	defer func() {
		for _, s := range subs {
			_ = s.Unsubscribe()
		}
	}()

	runWorker := worker.NewWorker(a.bus, a.orchestrator, logger)
	if err := runWorker.Start(); err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}

	srv := api.NewServer(cfg.Server, api.Deps{
		Warehouse: a.warehouse,
		Catalog:   a.catalog,
		Cache:     a.cache,
		Bus:       a.bus,
		Registry:  registry,
		Version:   Version,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	logger.Info("lavandowski is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)
	printBanner(cfg)

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
		logger.Error("server failed", "error", serveErr)
	}
	logger.Info("shutting down...")

	// Stop the worker first so an active batch is cancelled before the bus closes.
	if err := runWorker.Stop(); err != nil {
		logger.Error("failed to stop worker", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("lavandowski shutdown complete")
	return serveErr
}

func printBanner(cfg *domain.Config) {
	fmt.Println()
	fmt.Println("  LAVANDOWSKI - AML case triage")
	fmt.Println()
	fmt.Printf("  Version:   %s\n", Version)
	fmt.Printf("  Tier:      %s\n", cfg.Tier)
	fmt.Printf("  Warehouse: %s\n", cfg.Warehouse.Driver)
	fmt.Printf("  Server:    http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    GET  /stats               - Dashboard statistics")
	fmt.Println("    POST /runs                - Queue a batch run")
	fmt.Println("    GET  /runs                - List runs")
	fmt.Println("    GET  /runs/{id}           - Run progress and results")
	fmt.Println("    GET  /runs/{id}/export    - Download CSV, JSON or PDF report")
	fmt.Println("    GET  /health              - Health check")
	fmt.Println("    GET  /ready               - Readiness check")
	fmt.Println()
}
