package rest

import (
	"net/http"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Sadick14/ticket-flow/internal/feesplit"
	"github.com/Sadick14/ticket-flow/internal/metrics"
	"github.com/Sadick14/ticket-flow/internal/payout"
	"github.com/Sadick14/ticket-flow/internal/profile"
	"github.com/Sadick14/ticket-flow/internal/report"
	"github.com/Sadick14/ticket-flow/internal/transaction"
	"github.com/Sadick14/ticket-flow/internal/transport/middleware"
	"github.com/Sadick14/ticket-flow/internal/transport/swagger"
)

// Handlers lists every REST handler. A nil handler leaves its routes out.
type Handlers struct {
	Health      *HealthHandler
	Quote       *feesplit.Handler
	Transaction *transaction.Handler
	Profile     *profile.Handler
	Payout      *payout.Handler
	Report      *report.Handler
}

type RouterOptions struct {
	// MetricsPath serves Prometheus metrics when set.
	MetricsPath string
	HTTPMetrics *metrics.HTTP
	// RateLimiter throttles write endpoints. Nil leaves them open.
	RateLimiter *middleware.RateLimiter
}

func RegisterAllRoutes(router chi.Router, h Handlers, opts RouterOptions) {
	router.Use(middleware.RequestID)
	router.Use(middleware.Recovery)
	router.Use(middleware.Logging)
	if opts.HTTPMetrics != nil {
		router.Use(middleware.Metrics(opts.HTTPMetrics))
	}

	if opts.MetricsPath != "" {
		router.Method(http.MethodGet, opts.MetricsPath, promhttp.Handler())
	}

	router.Get(swagger.DocumentPath, swagger.Document)
	router.Handle("/swagger/*", swagger.Handler())

	limited := opts.RateLimiter.Middleware

	router.Route("/api/v1", func(r chi.Router) {
		if h.Health != nil {
			r.Get("/health", h.Health.Health)
			r.Get("/ping", h.Health.Ping)
		}

		if h.Quote != nil {
			r.With(limited).Post("/quotes", h.Quote.Quote)
		}

		if h.Transaction != nil {
			r.Route("/transactions", func(tr chi.Router) {
				tr.With(limited).Post("/", h.Transaction.RecordSale)
				// gateway reports settlement, failure or refund
				tr.With(limited).Post("/callback", h.Transaction.StatusCallback)
				tr.Get("/{id}", h.Transaction.GetTransaction)
			})
			r.Get("/creators/{creatorID}/transactions", h.Transaction.ListCreatorTransactions)
			r.With(limited).Post("/reconciliation/cases/{id}/resolve", h.Transaction.ResolveCase)
		}

		if h.Profile != nil {
			r.Route("/profiles", func(pr chi.Router) {
				pr.With(limited).Post("/", h.Profile.CreateProfile)
				pr.Get("/", h.Profile.ListProfiles)
				pr.Get("/{creatorID}", h.Profile.GetProfile)
				pr.With(limited).Patch("/{creatorID}", h.Profile.UpdateProfile)
			})
		}

		if h.Payout != nil {
			r.Route("/payouts", func(pr chi.Router) {
				pr.With(limited).Post("/batch", h.Payout.RunBatch)
				// money-transfer collaborator reports disbursement progress
				pr.With(limited).Post("/callback", h.Payout.StatusCallback)
				pr.Get("/{id}", h.Payout.GetPayout)
			})
			r.Get("/creators/{creatorID}/payouts", h.Payout.ListCreatorPayouts)
		}

		if h.Report != nil {
			r.Get("/creators/{creatorID}/balance", h.Report.CreatorBalance)
			r.Get("/reconciliation/cases", h.Report.OpenReconciliationCases)
		}
	})
}
