package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/pubsum/internal/catalog"
	"github.com/JonMunkholm/pubsum/internal/logging"
	"github.com/JonMunkholm/pubsum/internal/web"
)

func newServeCmd(f *flags) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the catalog as a JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(f)
			if err != nil {
				return err
			}
			if port != 0 {
				cfg.Server.Port = port
				if err := cfg.Validate(); err != nil {
					return err
				}
			}

			logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format, cmd.OutOrStdout())
			logger.Info("configuration loaded",
				"port", cfg.Server.Port,
				"source", cfg.Source.Path,
				"archive_enabled", cfg.Database.ArchiveEnabled(),
			)

			ctx := cmd.Context()
			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("%s: %w", catalog.FormatUserError(err), err)
			}
			defer a.Close()

			// A nil *store.Store must not become a non-nil interface.
			var history web.ExportHistory
			if a.store != nil {
				history = a.store
			}
			server := web.NewServer(a.catalog, history, cfg.Server)

			errCh := make(chan error, 1)
			go func() {
				errCh <- server.Start()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			slog.Info("shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				slog.Error("shutdown error", "error", err)
				return err
			}
			slog.Info("server stopped")
			return nil
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides SERVER_PORT)")
	return cmd
}
