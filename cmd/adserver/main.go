// Command adserver serves targeted advertisements over HTTP.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/goliatone/go-targeted-ads/internal/api"
	"github.com/goliatone/go-targeted-ads/internal/config"
	"github.com/goliatone/go-targeted-ads/internal/database"
	"github.com/goliatone/go-targeted-ads/internal/logging"
	"github.com/goliatone/go-targeted-ads/internal/matrix"
	"github.com/goliatone/go-targeted-ads/pkg/di"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:          "adserver",
		Short:        "Targeted advertisement service",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (default ./adserver.yaml)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), configPath)
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "schema",
		Short: "Create the advertisement table if it does not exist",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSchema(cmd.Context(), configPath)
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "adserver %s (%s)\n", version, commit)
		},
	})
	return rootCmd
}

func setup(configPath string) (config.Config, zerolog.Logger, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, zerolog.Nop(), nil, err
	}
	logger, closer, err := logging.Setup(cfg.Log)
	if err != nil {
		return config.Config{}, zerolog.Nop(), nil, err
	}
	return cfg, logger, func() { _ = closer.Close() }, nil
}

func runServe(ctx context.Context, configPath string) error {
	cfg, logger, done, err := setup(configPath)
	if err != nil {
		return err
	}
	defer done()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container, err := di.NewContainer(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("startup failed")
		return err
	}
	defer container.Close()

	srv := api.NewServer(cfg.Server, container.Handler())
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Server.Addr).Str("version", version).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return errors.Wrap(err, "serve")
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	logger.Info().Msg("server stopped")
	return nil
}

func runSchema(ctx context.Context, configPath string) error {
	cfg, logger, done, err := setup(configPath)
	if err != nil {
		return err
	}
	defer done()

	table := cfg.Database.Table
	if cfg.Database.Driver == database.DriverPostgres {
		if err := database.EnsurePostgresSchema(ctx, cfg.Database.Write, table); err != nil {
			return err
		}
		logger.Info().Str("table", table).Msg("postgres schema ready")
		return nil
	}

	// Opening the embedded store creates the table and compiles every statement.
	m, err := matrix.Build(matrix.SQLite{}, table)
	if err != nil {
		return err
	}
	pools, err := database.OpenSQLite(ctx, cfg.Database, m, logger)
	if err != nil {
		return err
	}
	pools.Close()
	return nil
}
