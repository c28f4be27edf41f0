package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"property-marketplace/internal/cleanup"
	"property-marketplace/internal/handlers"
	"property-marketplace/internal/ratelimit"
	"property-marketplace/internal/scheduler"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:          "marketplace",
		Short:        "Property marketplace API server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configPath)
		},
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML, defaults to $CONFIG_PATH)")

	cmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configPath)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), configPath, func(ctx context.Context, a *app) error {
				log.Println("Schema is up to date")
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the Meilisearch index from approved properties",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), configPath, func(ctx context.Context, a *app) error {
				if !a.search.Enabled() {
					return errors.New("meilisearch is disabled")
				}
				count, err := a.search.Reindex(ctx)
				if err != nil {
					return fmt.Errorf("reindex failed after %d properties: %w", count, err)
				}
				log.Printf("Indexed %d properties", count)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reconcile",
		Short: "Repair submissions whose status diverged from their property",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), configPath, func(ctx context.Context, a *app) error {
				result, err := a.cleanup.Reconcile(ctx)
				if err != nil {
					return err
				}
				return printJSON(result)
			})
		},
	})

	var dryRun bool
	cleanupCmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete unapproved properties that never got a submission",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), configPath, func(ctx context.Context, a *app) error {
				cfg := cleanup.NewCleanupConfig(a.cfg.Cleanup)
				if cmd.Flags().Changed("dry-run") {
					cfg.DryRun = dryRun
				}
				result, err := a.cleanup.DeleteOrphans(ctx, cfg)
				if err != nil {
					return err
				}
				return printJSON(result)
			})
		},
	}
	cleanupCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Only report what would be deleted")
	cmd.AddCommand(cleanupCmd)

	return cmd
}

// withApp runs a one-shot command against the wired services
func withApp(ctx context.Context, configPath string, fn func(context.Context, *app) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func serve(configPath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	// Background jobs
	sched := scheduler.NewScheduler(a.cleanup, cfg, a.quota)
	if err := sched.Start(); err != nil {
		log.Printf("Warning: Failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	if cfg.RateLimit.Enabled && cfg.RateLimit.AuthRequestsPerSecond > 0 {
		limiter := ratelimit.NewClientLimiter(cfg.RateLimit.AuthRequestsPerSecond, cfg.RateLimit.AuthBurst)
		limiter.StartCleanup(ctx, 5*time.Minute)
		a.deps.AuthLimiter = limiter
	}

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handlers.NewRouter(a.deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GetShutdownTimeout())
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	log.Println("Server stopped")
	return nil
}
