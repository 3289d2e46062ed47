package metrics_test

import (
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Sadick14/ticket-flow/internal/metrics"
)

func counterNamed(name string) float64 {
	families, err := prometheus.DefaultGatherer.Gather()
	Expect(err).ToNot(HaveOccurred())
	total := 0.0
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

var _ = Describe("Settlement metrics", func() {
	It("returns the same registry every time", func() {
		Expect(metrics.Default()).To(BeIdenticalTo(metrics.Default()))
	})

	It("is safe to call on a nil receiver", func() {
		var m *metrics.Settlement
		Expect(func() {
			m.RecordSale("stripe", nil)
			m.RecordOrphanedRefund()
			m.ObserveBatch(time.Now(), time.Second, 0, nil)
		}).NotTo(Panic())
	})

	It("counts created payouts and their amount", func() {
		m := metrics.Default()
		before := counterNamed("ticketflow_payouts_amount_minor_units_total")

		m.RecordPayoutCreated(3300)

		Expect(counterNamed("ticketflow_payouts_amount_minor_units_total") - before).To(Equal(3300.0))
	})

	It("segments sales by outcome", func() {
		m := metrics.Default()
		before := counterNamed("ticketflow_transactions_recorded_total")

		m.RecordSale("stripe", nil)
		m.RecordSale("", errors.New("nope"))

		Expect(counterNamed("ticketflow_transactions_recorded_total") - before).To(Equal(2.0))
	})
})

var _ = Describe("HTTP metrics", func() {
	It("labels unmatched routes", func() {
		m := metrics.DefaultHTTP()
		before := counterNamed("ticketflow_http_requests_total")

		m.Observe("GET", "", 404, time.Millisecond)

		Expect(counterNamed("ticketflow_http_requests_total") - before).To(Equal(1.0))
	})
})
