package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/spf13/cobra"

	"github.com/Sadick14/ticket-flow/internal/feesplit"
	"github.com/Sadick14/ticket-flow/internal/metrics"
	"github.com/Sadick14/ticket-flow/internal/payout"
	"github.com/Sadick14/ticket-flow/internal/paymentgateway"
	"github.com/Sadick14/ticket-flow/internal/profile"
	"github.com/Sadick14/ticket-flow/internal/report"
	"github.com/Sadick14/ticket-flow/internal/transaction"
	"github.com/Sadick14/ticket-flow/internal/transport"
	"github.com/Sadick14/ticket-flow/internal/transport/middleware"
	"github.com/Sadick14/ticket-flow/internal/transport/rest"
)

const shutdownTimeout = 30 * time.Second

var withScheduler bool

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests, optionally with the payout scheduler and gateway sandbox in-process`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHTTPServer(cmd.Context())
	},
}

func init() {
	httpServerCmd.Flags().BoolVar(&withScheduler, "with-scheduler", false, "Run the payout scheduler inside the server process")
}

func runHTTPServer(ctx context.Context) error {
	deps, err := initializeDependencies()
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer deps.Close()
	lg := deps.Logger

	if deps.Config.Sandbox.Enabled {
		sandbox := paymentgateway.NewSandbox(deps.Config.Sandbox, lg)
		sandbox.Subscribe(deps.Bus)
		defer sandbox.Shutdown()
		lg.Info("gateway sandbox enabled",
			"transaction_webhook", deps.Config.Sandbox.TransactionWebhookURL,
			"payout_webhook", deps.Config.Sandbox.PayoutWebhookURL)
	}

	if withScheduler {
		daemon, err := deps.newDaemon(ctx)
		if err != nil {
			return fmt.Errorf("create payout scheduler: %w", err)
		}
		if err := daemon.Start(); err != nil {
			return fmt.Errorf("start payout scheduler: %w", err)
		}
		defer func() {
			if err := daemon.Stop(); err != nil {
				lg.Error("payout scheduler stop error", "error", err)
			}
		}()
	}

	cfg := deps.Config.Server
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           setupRoutes(deps),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		lg.Info("starting HTTP server", "address", server.Addr)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		lg.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("server shutdown error", "error", err)
		}
	}

	lg.Info("server stopped")
	return nil
}

func setupRoutes(deps *Dependencies) *chi.Mux {
	router := chi.NewRouter()
	base := transport.NewBaseHandler(deps.Logger)

	opts := rest.RouterOptions{RateLimiter: middleware.NewRateLimiter(deps.Config.Server.RateLimit)}
	if deps.Config.Observability.Metrics.Enabled {
		opts.MetricsPath = deps.Config.Observability.Metrics.Path
		opts.HTTPMetrics = metrics.DefaultHTTP()
	}

	rest.RegisterAllRoutes(router, rest.Handlers{
		Health:      rest.NewHealthHandler(deps.DB.DB),
		Quote:       feesplit.NewHandler(base, deps.Calculator),
		Transaction: transaction.NewHandler(base, deps.Transactions),
		Profile:     profile.NewHandler(base, deps.Profiles),
		Payout:      payout.NewHandler(base, deps.Payouts, deps.Scheduler),
		Report:      report.NewHandler(base, deps.Reports),
	}, opts)
	return router
}
