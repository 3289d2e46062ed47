package transaction_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Sadick14/ticket-flow/internal/core/datamodel"
	"github.com/Sadick14/ticket-flow/internal/transaction"
	txPostgres "github.com/Sadick14/ticket-flow/internal/transaction/postgres"
	"github.com/Sadick14/ticket-flow/internal/transport"
	"github.com/Sadick14/ticket-flow/pkg/logger"
)

var _ = Describe("Transaction Handler Integration", func() {
	var (
		router chi.Router
		db     *gorm.DB
	)

	BeforeEach(func() {
		var err error
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		Expect(err).NotTo(HaveOccurred())
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		sqlDB.SetMaxOpenConns(1)
		Expect(db.AutoMigrate(datamodel.All()...)).To(Succeed())

		service := transaction.NewService(txPostgres.NewTransactionRepository(db), testCalculator(), &mockProfiles{}, nil, nil, logger.Discard())
		handler := transaction.NewHandler(transport.NewBaseHandler(logger.Discard()), service)

		router = chi.NewRouter()
		router.Post("/transactions", handler.RecordSale)
		router.Post("/transactions/callback", handler.StatusCallback)
		router.Get("/transactions/{id}", handler.GetTransaction)
		router.Get("/creators/{creatorID}/transactions", handler.ListCreatorTransactions)
		router.Post("/reconciliation/cases/{id}/resolve", handler.ResolveCase)
	})

	do := func(method, path string, body interface{}) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			Expect(json.NewEncoder(&buf).Encode(body)).To(Succeed())
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(method, path, &buf))
		return w
	}

	recordSale := func() transaction.Transaction {
		w := do(http.MethodPost, "/transactions", map[string]interface{}{
			"creator_id": "c1", "sale_id": "sale-1", "gateway_id": "paystack", "gross_amount": 5000,
		})
		Expect(w.Code).To(Equal(http.StatusCreated))
		var t transaction.Transaction
		Expect(json.NewDecoder(w.Body).Decode(&t)).To(Succeed())
		return t
	}

	It("records a sale and returns its split", func() {
		t := recordSale()

		Expect(t.Status).To(Equal(transaction.StatusPending))
		Expect(t.Split.NetPayout).To(Equal(int64(4625)))

		w := do(http.MethodGet, "/transactions/"+t.ID, nil)
		Expect(w.Code).To(Equal(http.StatusOK))
	})

	It("answers 400 INVALID_AMOUNT for a zero amount", func() {
		w := do(http.MethodPost, "/transactions", map[string]interface{}{
			"creator_id": "c1", "sale_id": "sale-1", "gateway_id": "paystack", "gross_amount": 0,
		})

		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(w.Body.String()).To(ContainSubstring("INVALID_AMOUNT"))
	})

	It("answers 400 UNKNOWN_GATEWAY for an unconfigured gateway", func() {
		w := do(http.MethodPost, "/transactions", map[string]interface{}{
			"creator_id": "c1", "sale_id": "sale-1", "gateway_id": "mpesa", "gross_amount": 100,
		})

		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(w.Body.String()).To(ContainSubstring("UNKNOWN_GATEWAY"))
	})

	It("applies a collaborator callback idempotently", func() {
		t := recordSale()
		body := map[string]interface{}{"transaction_id": t.ID, "status": "completed"}

		first := do(http.MethodPost, "/transactions/callback", body)
		second := do(http.MethodPost, "/transactions/callback", body)

		Expect(first.Code).To(Equal(http.StatusOK))
		Expect(second.Code).To(Equal(http.StatusOK))
		var update transaction.StatusUpdate
		Expect(json.NewDecoder(second.Body).Decode(&update)).To(Succeed())
		Expect(update.Changed).To(BeFalse())
		Expect(update.Transaction.Status).To(Equal(transaction.StatusCompleted))
	})

	It("answers 409 for an invalid transition", func() {
		t := recordSale()

		w := do(http.MethodPost, "/transactions/callback", map[string]interface{}{"transaction_id": t.ID, "status": "refunded"})

		Expect(w.Code).To(Equal(http.StatusConflict))
		Expect(w.Body.String()).To(ContainSubstring("INVALID_TRANSITION"))
	})

	It("rejects a callback with an unknown status", func() {
		w := do(http.MethodPost, "/transactions/callback", map[string]interface{}{"transaction_id": "x", "status": "pending"})

		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("includes the reconciliation case when a paid-out sale is refunded", func() {
		t := recordSale()
		Expect(do(http.MethodPost, "/transactions/callback", map[string]interface{}{"transaction_id": t.ID, "status": "completed"}).Code).To(Equal(http.StatusOK))
		Expect(db.Exec("UPDATE transactions SET payout_id = ? WHERE id = ?", "p1", t.ID).Error).To(Succeed())

		w := do(http.MethodPost, "/transactions/callback", map[string]interface{}{"transaction_id": t.ID, "status": "refunded"})

		Expect(w.Code).To(Equal(http.StatusOK))
		var update transaction.StatusUpdate
		Expect(json.NewDecoder(w.Body).Decode(&update)).To(Succeed())
		Expect(update.OrphanedRefund).NotTo(BeNil())
		Expect(update.OrphanedRefund.PayoutID).To(Equal("p1"))

		resolve := "/reconciliation/cases/" + update.OrphanedRefund.ID + "/resolve"
		Expect(do(http.MethodPost, resolve, nil).Code).To(Equal(http.StatusNoContent))
		Expect(do(http.MethodPost, resolve, nil).Code).To(Equal(http.StatusNotFound))
	})

	It("pages through a creator's transactions", func() {
		recordSale()

		w := do(http.MethodGet, "/creators/c1/transactions?limit=5", nil)

		Expect(w.Code).To(Equal(http.StatusOK))
		var resp transaction.TransactionsResponse
		Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
		Expect(resp.Limit).To(Equal(5))
		Expect(resp.Transactions).To(HaveLen(1))
	})
})
