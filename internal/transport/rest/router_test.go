package rest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"github.com/jmoiron/sqlx"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Sadick14/ticket-flow/internal"
	"github.com/Sadick14/ticket-flow/internal/core/datamodel"
	"github.com/Sadick14/ticket-flow/internal/core/events"
	"github.com/Sadick14/ticket-flow/internal/feesplit"
	"github.com/Sadick14/ticket-flow/internal/metrics"
	"github.com/Sadick14/ticket-flow/internal/payout"
	payoutPostgres "github.com/Sadick14/ticket-flow/internal/payout/postgres"
	"github.com/Sadick14/ticket-flow/internal/profile"
	profilePostgres "github.com/Sadick14/ticket-flow/internal/profile/postgres"
	"github.com/Sadick14/ticket-flow/internal/report"
	"github.com/Sadick14/ticket-flow/internal/transaction"
	txPostgres "github.com/Sadick14/ticket-flow/internal/transaction/postgres"
	"github.com/Sadick14/ticket-flow/internal/transport"
	"github.com/Sadick14/ticket-flow/internal/transport/rest"
	"github.com/Sadick14/ticket-flow/internal/transport/swagger"
	"github.com/Sadick14/ticket-flow/pkg/logger"
)

var _ = Describe("Settlement API", func() {
	var router chi.Router

	BeforeEach(func() {
		db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		Expect(err).NotTo(HaveOccurred())
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		sqlDB.SetMaxOpenConns(1)
		Expect(db.AutoMigrate(datamodel.All()...)).To(Succeed())

		calc, _, tiers, err := feesplit.FromConfig(internal.SettlementConfig{
			Currency:        "USD",
			PlatformFeeRate: "0.01",
			DefaultTier:     "free",
			CommissionTiers: map[string]string{"free": "0.05", "premium": "0.01"},
			Gateways:        []internal.GatewayConfig{{ID: "paystack", PercentFee: "0.015"}},
		})
		Expect(err).NotTo(HaveOccurred())

		lg := logger.Discard()
		bus := events.NewEventBus(lg)
		m := metrics.Default()
		base := transport.NewBaseHandler(lg)

		profileRepo := profilePostgres.NewProfileRepository(db)
		txRepo := txPostgres.NewTransactionRepository(db)
		store := payoutPostgres.NewStore(db, profileRepo, txRepo)

		profiles := profile.NewService(profileRepo, tiers, lg)
		transactions := transaction.NewService(txRepo, calc, profiles, bus, m, lg)
		payouts := payout.NewService(store, bus, m, lg)
		scheduler := payout.NewScheduler(store, bus, m, lg)

		router = chi.NewRouter()
		rest.RegisterAllRoutes(router, rest.Handlers{
			Health:      rest.NewHealthHandler(sqlDB),
			Quote:       feesplit.NewHandler(base, calc),
			Transaction: transaction.NewHandler(base, transactions),
			Profile:     profile.NewHandler(base, profiles),
			Payout:      payout.NewHandler(base, payouts, scheduler),
			Report:      report.NewHandler(base, report.NewReader(sqlx.NewDb(sqlDB, "sqlite3"))),
		}, rest.RouterOptions{MetricsPath: "/metrics", HTTPMetrics: metrics.DefaultHTTP()})
	})

	do := func(method, path string, body interface{}, out interface{}) int {
		var buf bytes.Buffer
		if body != nil {
			Expect(json.NewEncoder(&buf).Encode(body)).To(Succeed())
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(method, path, &buf))
		if out != nil && w.Code < 300 {
			Expect(json.NewDecoder(w.Body).Decode(out)).To(Succeed())
		}
		return w.Code
	}

	It("takes three sales from checkout to a completed payout", func() {
		// Given a verified weekly creator with a minimum of 2000
		Expect(do(http.MethodPost, "/api/v1/profiles", map[string]interface{}{
			"creator_id": "c1", "payout_cadence": "weekly", "minimum_payout_amount": 2000, "verified": true,
		}, nil)).To(Equal(http.StatusCreated))

		// And three settled sales
		ids := make([]string, 0, 3)
		for i, gross := range []int64{1000, 1500, 800} {
			var t transaction.Transaction
			Expect(do(http.MethodPost, "/api/v1/transactions", map[string]interface{}{
				"creator_id": "c1", "sale_id": fmt.Sprintf("sale-%d", i), "gateway_id": "paystack", "gross_amount": gross,
			}, &t)).To(Equal(http.StatusCreated))
			Expect(do(http.MethodPost, "/api/v1/transactions/callback", map[string]string{
				"transaction_id": t.ID, "status": "completed",
			}, nil)).To(Equal(http.StatusOK))
			ids = append(ids, t.ID)
		}

		var before report.Balance
		Expect(do(http.MethodGet, "/api/v1/creators/c1/balance", nil, &before)).To(Equal(http.StatusOK))
		Expect(before.Available).To(BeNumerically(">", 0))
		Expect(before.Pending).To(BeZero())

		// When the batch runs
		var result payout.BatchResult
		Expect(do(http.MethodPost, "/api/v1/payouts/batch", map[string]interface{}{
			"now": time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
		}, &result)).To(Equal(http.StatusOK))

		// Then one payout carries the whole available balance
		Expect(result.Payouts).To(HaveLen(1))
		p := result.Payouts[0]
		Expect(p.Amount).To(Equal(before.Available))
		Expect(p.TransactionIDs).To(ConsistOf(ids))

		for _, status := range []string{"processing", "completed"} {
			Expect(do(http.MethodPost, "/api/v1/payouts/callback", map[string]string{
				"payout_id": p.ID, "status": status,
			}, nil)).To(Equal(http.StatusOK))
		}

		var after report.Balance
		Expect(do(http.MethodGet, "/api/v1/creators/c1/balance", nil, &after)).To(Equal(http.StatusOK))
		Expect(after.Available).To(BeZero())
		Expect(after.Paid).To(Equal(p.Amount))

		// And a refund on a paid transaction opens a reconciliation case
		var update transaction.StatusUpdate
		Expect(do(http.MethodPost, "/api/v1/transactions/callback", map[string]string{
			"transaction_id": ids[0], "status": "refunded",
		}, &update)).To(Equal(http.StatusOK))
		Expect(update.OrphanedRefund).ToNot(BeNil())

		var cases report.CasesResponse
		Expect(do(http.MethodGet, "/api/v1/reconciliation/cases", nil, &cases)).To(Equal(http.StatusOK))
		Expect(cases.Cases).To(HaveLen(1))
		Expect(cases.Cases[0].PayoutID).To(Equal(p.ID))

		Expect(do(http.MethodPost, "/api/v1/reconciliation/cases/"+cases.Cases[0].ID+"/resolve", nil, nil)).To(Equal(http.StatusNoContent))
		Expect(do(http.MethodGet, "/api/v1/reconciliation/cases", nil, &cases)).To(Equal(http.StatusOK))
		Expect(cases.Cases).To(BeEmpty())
	})

	It("quotes a checkout total", func() {
		var q feesplit.Quote
		Expect(do(http.MethodPost, "/api/v1/quotes", map[string]interface{}{"gateway_id": "paystack", "gross_amount": 5000}, &q)).To(Equal(http.StatusOK))
		Expect(q.TotalCharged).To(Equal(int64(5125)))
	})

	It("reports health and exposes metrics", func() {
		Expect(do(http.MethodGet, "/api/v1/health", nil, nil)).To(Equal(http.StatusOK))
		Expect(do(http.MethodGet, "/api/v1/ping", nil, nil)).To(Equal(http.StatusOK))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(ContainSubstring("ticketflow_http_requests_total"))
	})

	It("routes every documented operation", func() {
		routes := map[string]bool{}
		Expect(chi.Walk(router, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
			routes[method+" "+strings.TrimSuffix(route, "/")] = true
			return nil
		})).To(Succeed())

		doc, err := swagger.Load(context.Background())
		Expect(err).NotTo(HaveOccurred())
		for path, item := range doc.Paths.Map() {
			for method := range item.Operations() {
				Expect(routes).To(HaveKey(method+" /api/v1"+path), "no route for documented %s %s", method, path)
			}
		}

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, swagger.DocumentPath, nil))
		Expect(w.Code).To(Equal(http.StatusOK))
	})
})

var _ = Describe("Health", func() {
	It("answers 503 when a check fails", func() {
		h := rest.NewHealthHandler(nil).WithCheck("gateway", func(context.Context) error {
			return errors.New("unreachable")
		})
		w := httptest.NewRecorder()

		h.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		Expect(w.Code).To(Equal(http.StatusServiceUnavailable))
		var resp rest.HealthResponse
		Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
		Expect(resp.Components["gateway"].Message).To(Equal("unreachable"))
	})
})
