package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/forest6511/quantavault/internal/api"
	"github.com/forest6511/quantavault/pkg/audit"
	"github.com/forest6511/quantavault/pkg/security"
)

var serveAddr string

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default server.addr from config)")
}

// serveCmd starts the HTTP API
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the JSON HTTP API over the unlocked vault.

Every /api/credentials, /api/import and /api/security request must carry the
X-Owner-ID header; credentials of other owners are invisible.

Authentication:
  Set QV_PASSWORD before starting the server. The variable is cleared
  from the environment once read.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := ensureUnlocked(ctx, audit.SourceAPI); err != nil {
			return err
		}
		defer lockVault()

		addr := cfg.Server.Addr
		if serveAddr != "" {
			addr = serveAddr
		}
		return runServer(ctx, addr)
	},
}

// runServer serves the API until ctx is done, then shuts down gracefully.
func runServer(ctx context.Context, addr string) error {
	reports := api.NewReportCache(api.DefaultReportTTL)
	watching := reports.Watch(ctx, v)

	auditor := security.NewAuditor().WithTwoFactorScore(cfg.Security.TwoFactorScore)
	srv := &http.Server{
		Addr:         addr,
		Handler:      api.SetupRouter(v, auditor, reports, log),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("api listening", "addr", addr, "driver", cfg.Store.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("api server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down", "timeout", cfg.Server.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api shutdown: %w", err)
	}
	<-watching
	return nil
}
