/*
main.go - Application entry point

PURPOSE:
  The `shopbook` command. Loads configuration, opens the document store,
  wires the services and either serves the HTTP API or runs a one-off
  maintenance task.

COMMANDS:
  serve            Start the HTTP server (default)
  recalc           Recalculate every customer balance and party due once
  bootstrap-admin  Create the configured default admin if missing

STARTUP SEQUENCE (serve):
  1. Load config (file, then SHOPBOOK_* env overrides)
  2. Build the zap logger
  3. Open the store (sqlite3, postgres or memory)
  4. Ensure the default admin when configured
  5. Start the reconciler when enabled
  6. Start the HTTP server with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the reconciler (waits for a running pass)
  2. Stop accepting new connections
  3. Wait for active requests (http.shutdown_timeout)
  4. Close the store

EXAMPLES:
  # Run with defaults (./shopbook.db)
  shopbook serve

  # Explicit config file
  shopbook --config /etc/shopbook/shopbook.toml serve

  # Throwaway in-memory store
  SHOPBOOK_DATABASE_DRIVER=memory shopbook serve

SEE ALSO:
  - config/config.go: Settings and defaults
  - api/server.go: Router configuration
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shopbook/shopbook/accounts"
	"github.com/shopbook/shopbook/api"
	"github.com/shopbook/shopbook/bookkeeping"
	"github.com/shopbook/shopbook/config"
	"github.com/shopbook/shopbook/generic"
	"github.com/shopbook/shopbook/generic/store"
	"github.com/shopbook/shopbook/logging"
	"github.com/shopbook/shopbook/metrics"
	"github.com/shopbook/shopbook/store/sqlstore"
)

var configPath string

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to shopbook.toml")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(recalcCmd)
	rootCmd.AddCommand(bootstrapAdminCmd)
}

var rootCmd = &cobra.Command{
	Use:   "shopbook",
	Short: "Customer credit and supplier dues ledger",
	Long: `shopbook keeps a small shop's customer credit ledgers and supplier
(party) dues. Balances are always derived from the full transaction log.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// =============================================================================
// WIRING
// =============================================================================

// app is everything a command needs.
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	store    generic.Store
	closer   io.Closer
	metrics  *metrics.Metrics
	books    *bookkeeping.Service
	accounts *accounts.Service
}

func setup() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	logger = logger.With(zap.String("app", cfg.App.Name), zap.String("env", cfg.App.Env))

	a := &app{cfg: cfg, log: logger, metrics: metrics.New()}

	if cfg.Database.Driver == config.MemoryDriver {
		logger.Warn("using in-memory store, data is lost on exit")
		a.store = store.NewMemory()
	} else {
		st, err := sqlstore.Open(cfg.Database.Driver, cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("open %s store: %w", cfg.Database.Driver, err)
		}
		a.store, a.closer = st, st
	}

	a.books = bookkeeping.NewService(a.store,
		bookkeeping.WithLogger(logger.Named("bookkeeping")),
		bookkeeping.WithRecorder(a.metrics),
	)
	a.accounts = accounts.NewService(a.store, accounts.WithLogger(logger.Named("accounts")))
	return a, nil
}

func (a *app) close() {
	if a.closer != nil {
		if err := a.closer.Close(); err != nil {
			a.log.Warn("close store", zap.Error(err))
		}
	}
	_ = a.log.Sync()
}

func (a *app) ensureAdmin(ctx context.Context) error {
	if !a.cfg.HasAdminSeed() {
		a.log.Info("no default admin configured")
		return nil
	}
	u, created, err := a.accounts.EnsureDefaultAdmin(ctx, accounts.AdminSeed{
		Name:     a.cfg.Admin.Name,
		Phone:    a.cfg.Admin.Phone,
		Password: a.cfg.Admin.Password,
	})
	if err != nil {
		return err
	}
	if created {
		a.log.Info("default admin created", zap.String("user_id", u.ID))
	}
	return nil
}

// =============================================================================
// SERVE
// =============================================================================

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.ensureAdmin(ctx); err != nil {
		return err
	}

	reconciler := api.NewReconciler(a.books, a.log)
	reconciler.Enabled = a.cfg.Reconcile.Enabled
	reconciler.Interval = a.cfg.Reconcile.Interval
	reconciler.Start()
	defer reconciler.Stop()

	handler := api.NewHandler(a.books, a.accounts, a.log.Named("http"))
	handler.Metrics = a.metrics
	handler.Reconciler = reconciler
	if st, ok := a.store.(*sqlstore.Store); ok {
		handler.Ping = st.Ping
	}

	srv := &http.Server{
		Addr:         a.cfg.Addr(),
		Handler:      api.NewRouter(handler, a.cfg.HTTP.CORSAllowOrigins),
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
		IdleTimeout:  a.cfg.HTTP.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("server listening", zap.String("addr", srv.Addr), zap.String("driver", a.cfg.Database.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	a.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	a.log.Info("server stopped")
	return nil
}

// =============================================================================
// MAINTENANCE
// =============================================================================

var recalcCmd = &cobra.Command{
	Use:   "recalc",
	Short: "Recalculate every balance and due from the transaction logs",
	Long: `Re-folds every customer and party ledger, rebuilds direct-payment
mirrors that drifted from their payments and rewrites the derived fields.
Use it after a crash or a failed write left balances stale.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup()
		if err != nil {
			return err
		}
		defer a.close()

		report, err := a.books.RecalculateAll(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "customers: %d\nparties:   %d\nmirrors:   %d\nfailures:  %d\n",
			report.Customers, report.Parties, report.Mirrors, len(report.Failures))
		for _, f := range report.Failures {
			fmt.Fprintf(cmd.ErrOrStderr(), "  %s %s: %v\n", f.Ledger, f.OwnerID, f.Err)
		}
		return report.Err()
	},
}

var bootstrapAdminCmd = &cobra.Command{
	Use:   "bootstrap-admin",
	Short: "Create the configured default admin if it does not exist",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup()
		if err != nil {
			return err
		}
		defer a.close()

		if !a.cfg.HasAdminSeed() {
			return errors.New("admin.phone and admin.password must be set (SHOPBOOK_ADMIN_PHONE, SHOPBOOK_ADMIN_PASSWORD)")
		}
		return a.ensureAdmin(cmd.Context())
	},
}
