package feesplit_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/Sadick14/ticket-flow/internal/feesplit"
	"github.com/Sadick14/ticket-flow/internal/transport"
	"github.com/Sadick14/ticket-flow/pkg/logger"
)

var _ = Describe("Quote Handler", func() {
	var handler *feesplit.Handler

	BeforeEach(func() {
		registry := feesplit.NewRegistry()
		Expect(registry.Register(feesplit.FeeSchedule{GatewayID: "stripe", PercentFee: rate("0.029"), FixedFee: 30})).To(Succeed())
		tiers, err := feesplit.NewTiers(map[feesplit.CommissionTier]decimal.Decimal{feesplit.TierFree: rate("0.05")}, feesplit.TierFree)
		Expect(err).ToNot(HaveOccurred())
		calc, err := feesplit.NewCalculator(rate("0.01"), registry, tiers)
		Expect(err).ToNot(HaveOccurred())
		handler = feesplit.NewHandler(transport.NewBaseHandler(logger.Discard()), calc)
	})

	post := func(body map[string]interface{}) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		Expect(json.NewEncoder(&buf).Encode(body)).To(Succeed())
		w := httptest.NewRecorder()
		handler.Quote(w, httptest.NewRequest(http.MethodPost, "/quotes", &buf))
		return w
	}

	It("returns the buyer's total", func() {
		w := post(map[string]interface{}{"gateway_id": "stripe", "gross_amount": 10000})

		Expect(w.Code).To(Equal(http.StatusOK))
		var q feesplit.Quote
		Expect(json.NewDecoder(w.Body).Decode(&q)).To(Succeed())
		Expect(q.TotalCharged).To(Equal(int64(10420)))
	})

	It("answers 400 for an unknown gateway", func() {
		w := post(map[string]interface{}{"gateway_id": "mpesa", "gross_amount": 10000})

		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(w.Body.String()).To(ContainSubstring("UNKNOWN_GATEWAY"))
	})

	It("answers 400 INVALID_AMOUNT for a zero amount", func() {
		w := post(map[string]interface{}{"gateway_id": "stripe", "gross_amount": 0})

		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(w.Body.String()).To(ContainSubstring("INVALID_AMOUNT"))
	})
})
