// File: cmd/serve.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/panelgate/internal/api"
	"github.com/xkilldash9x/panelgate/internal/automation"
	"github.com/xkilldash9x/panelgate/internal/ledger"
	"github.com/xkilldash9x/panelgate/internal/observability"
	"github.com/xkilldash9x/panelgate/internal/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP service and the shared browser process.",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := observability.GetLogger()
	defer observability.Sync()

	audit, err := observability.NewAuditLog(cfg.Audit.Dir)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer audit.Close()

	manager, err := automation.NewManager(ctx, logger, cfg.Browser)
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := manager.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Browser shutdown did not complete cleanly.", zap.Error(err))
		}
	}()

	driver := automation.NewPanelDriver(logger, cfg.Panel, cfg.Browser)

	// The transaction ledger is optional; without a database the service
	// still runs and only the audit log records actions.
	var txs *ledger.Store
	if cfg.Database.URL != "" {
		pool, err := pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("failed to open database pool: %w", err)
		}
		defer pool.Close()

		txs = ledger.New(pool, logger)
		if err := txs.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("failed to prepare transactions table: %w", err)
		}
	} else {
		logger.Warn("No database configured; transactions will not be persisted.")
	}

	reporter := ledger.NewReporter(txs, audit.Logger(), logger)
	defer reporter.Wait()

	gate := session.NewGate(session.NewStore(), driver, manager, logger)
	handler := api.New(gate, driver, reporter, txs, audit, logger)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server listening.", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down HTTP server.")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
