package transaction_test

import (
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Sadick14/ticket-flow/internal"
	"github.com/Sadick14/ticket-flow/internal/transaction"
)

var _ = Describe("Transaction state machine", func() {
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	DescribeTable("allowed transitions",
		func(from, to transaction.Status, allowed bool) {
			Expect(from.CanTransitionTo(to)).To(Equal(allowed))
		},
		Entry("pending to completed", transaction.StatusPending, transaction.StatusCompleted, true),
		Entry("pending to failed", transaction.StatusPending, transaction.StatusFailed, true),
		Entry("completed to refunded", transaction.StatusCompleted, transaction.StatusRefunded, true),
		Entry("pending to refunded", transaction.StatusPending, transaction.StatusRefunded, false),
		Entry("completed back to pending", transaction.StatusCompleted, transaction.StatusPending, false),
		Entry("failed to completed", transaction.StatusFailed, transaction.StatusCompleted, false),
		Entry("failed back to pending", transaction.StatusFailed, transaction.StatusPending, false),
		Entry("refunded to completed", transaction.StatusRefunded, transaction.StatusCompleted, false),
		Entry("refunded back to pending", transaction.StatusRefunded, transaction.StatusPending, false),
	)

	It("stamps completedAt on completion and refundedAt on refund", func() {
		t := &transaction.Transaction{ID: "t1", Status: transaction.StatusPending}

		Expect(t.Transition(transaction.StatusCompleted, at)).To(Succeed())
		Expect(t.CompletedAt).To(HaveValue(Equal(at)))
		Expect(t.RefundedAt).To(BeNil())

		later := at.Add(time.Hour)
		Expect(t.Transition(transaction.StatusRefunded, later)).To(Succeed())
		Expect(t.RefundedAt).To(HaveValue(Equal(later)))
		Expect(t.Status).To(Equal(transaction.StatusRefunded))
	})

	It("leaves the transaction untouched on an invalid transition", func() {
		t := &transaction.Transaction{ID: "t1", Status: transaction.StatusPending}

		err := t.Transition(transaction.StatusRefunded, at)

		Expect(errors.Is(err, internal.ErrInvalidTransition)).To(BeTrue())
		Expect(t.Status).To(Equal(transaction.StatusPending))
		Expect(t.RefundedAt).To(BeNil())
	})

	It("knows when it belongs to a payout", func() {
		payoutID := "p1"
		Expect((&transaction.Transaction{}).Grouped()).To(BeFalse())
		Expect((&transaction.Transaction{PayoutID: &payoutID}).Grouped()).To(BeTrue())
	})
})
