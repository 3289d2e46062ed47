package transaction_test

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/Sadick14/ticket-flow/internal"
	txDatamodel "github.com/Sadick14/ticket-flow/internal/core/datamodel/transaction"
	"github.com/Sadick14/ticket-flow/internal/core/events"
	"github.com/Sadick14/ticket-flow/internal/feesplit"
	"github.com/Sadick14/ticket-flow/internal/profile"
	"github.com/Sadick14/ticket-flow/internal/transaction"
	"github.com/Sadick14/ticket-flow/pkg/logger"
)

type mockRepository struct {
	rows map[string]*txDatamodel.Transaction
	// racer runs just before a status write, to simulate a concurrent writer
	racer     func(row *txDatamodel.Transaction)
	createErr error
	resolved  []string
}

func newMockRepository() *mockRepository {
	return &mockRepository{rows: make(map[string]*txDatamodel.Transaction)}
}

func (m *mockRepository) Create(_ context.Context, t *txDatamodel.Transaction) error {
	if m.createErr != nil {
		return m.createErr
	}
	for _, row := range m.rows {
		if row.SaleID == t.SaleID {
			return internal.ErrDuplicateSale
		}
	}
	row := *t
	m.rows[t.ID] = &row
	return nil
}

func (m *mockRepository) GetByID(_ context.Context, id string) (*txDatamodel.Transaction, error) {
	row, ok := m.rows[id]
	if !ok {
		return nil, internal.ErrTransactionNotFound
	}
	out := *row
	return &out, nil
}

func (m *mockRepository) ListByCreator(_ context.Context, creatorID string, _, _ int) ([]*txDatamodel.Transaction, error) {
	var out []*txDatamodel.Transaction
	for _, row := range m.rows {
		if row.CreatorID == creatorID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *mockRepository) ApplyStatusChange(_ context.Context, change transaction.StatusChange) (*transaction.StatusChangeResult, error) {
	row, ok := m.rows[change.ID]
	if !ok {
		return nil, internal.ErrTransactionNotFound
	}
	if m.racer != nil {
		m.racer(row)
	}
	if row.Status != string(change.From) {
		return nil, internal.ErrConcurrentUpdate
	}
	row.Status = string(change.To)
	switch change.To {
	case transaction.StatusCompleted:
		row.CompletedAt = &change.At
	case transaction.StatusRefunded:
		row.RefundedAt = &change.At
	}

	out := &transaction.StatusChangeResult{Transaction: row}
	if change.To == transaction.StatusRefunded && row.PayoutID != nil {
		out.OrphanedRefund = &txDatamodel.ReconciliationCase{
			ID:            "case-1",
			Kind:          transaction.CaseKindOrphanedRefund,
			TransactionID: row.ID,
			PayoutID:      *row.PayoutID,
			CreatorID:     row.CreatorID,
			Amount:        row.NetPayout,
			DetectedAt:    change.At,
		}
	}
	return out, nil
}

func (m *mockRepository) ResolveCase(_ context.Context, caseID string, _ time.Time) error {
	m.resolved = append(m.resolved, caseID)
	return nil
}

type mockProfiles struct {
	profiles map[string]*profile.Profile
	err      error
}

func (m *mockProfiles) GetProfile(_ context.Context, creatorID string) (*profile.Profile, error) {
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.profiles[creatorID]
	if !ok {
		return nil, internal.ErrProfileNotFound
	}
	return p, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

func testCalculator() *feesplit.Calculator {
	registry := feesplit.NewRegistry()
	Expect(registry.Register(feesplit.FeeSchedule{GatewayID: "paystack", PercentFee: decimal.RequireFromString("0.015")})).To(Succeed())
	tiers, err := feesplit.NewTiers(map[feesplit.CommissionTier]decimal.Decimal{
		feesplit.TierFree:    decimal.RequireFromString("0.05"),
		feesplit.TierPremium: decimal.RequireFromString("0.01"),
	}, feesplit.TierFree)
	Expect(err).ToNot(HaveOccurred())
	calc, err := feesplit.NewCalculator(decimal.RequireFromString("0.01"), registry, tiers)
	Expect(err).ToNot(HaveOccurred())
	return calc
}

var _ = Describe("Service", func() {
	var (
		repo      *mockRepository
		profiles  *mockProfiles
		publisher *recordingPublisher
		service   *transaction.Service
		ctx       context.Context
		at        time.Time
	)

	BeforeEach(func() {
		repo = newMockRepository()
		profiles = &mockProfiles{profiles: map[string]*profile.Profile{
			"premium-creator": {CreatorID: "premium-creator", CommissionTier: feesplit.TierPremium},
		}}
		publisher = &recordingPublisher{}
		service = transaction.NewService(repo, testCalculator(), profiles, publisher, nil, logger.Discard())
		ctx = context.Background()
		at = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	})

	record := func(creatorID, saleID string, gross int64) *transaction.Transaction {
		t, err := service.RecordSale(ctx, transaction.RecordSaleDTO{CreatorID: creatorID, SaleID: saleID, GatewayID: "paystack", GrossAmount: gross})
		Expect(err).ToNot(HaveOccurred())
		return t
	}

	Describe("RecordSale", func() {
		It("stores a pending transaction with a frozen split", func() {
			// When
			t := record("new-creator", "sale-1", 5000)

			// Then
			Expect(t.Status).To(Equal(transaction.StatusPending))
			Expect(t.Split).To(Equal(feesplit.Split{GrossAmount: 5000, ProcessingFee: 75, PlatformFee: 50, CommissionFee: 250, NetPayout: 4625}))
			Expect(t.PayoutID).To(BeNil())
			Expect(repo.rows).To(HaveKey(t.ID))
			Expect(publisher.types()).To(ConsistOf(events.EventTypeTransactionCreated))
		})

		It("charges the creator's commission tier", func() {
			t := record("premium-creator", "sale-1", 5000)

			Expect(t.Split.CommissionFee).To(Equal(int64(50)))
			Expect(t.Split.NetPayout).To(Equal(int64(4825)))
		})

		It("fails with InvalidAmount before anything else", func() {
			_, err := service.RecordSale(ctx, transaction.RecordSaleDTO{GrossAmount: 0})

			Expect(errors.Is(err, internal.ErrInvalidAmount)).To(BeTrue())
			Expect(repo.rows).To(BeEmpty())
		})

		It("fails with UnknownGateway", func() {
			_, err := service.RecordSale(ctx, transaction.RecordSaleDTO{CreatorID: "c", SaleID: "s", GatewayID: "mpesa", GrossAmount: 100})

			Expect(errors.Is(err, internal.ErrUnknownGateway)).To(BeTrue())
			Expect(publisher.types()).To(BeEmpty())
		})

		It("propagates a store outage from the profile lookup", func() {
			profiles.err = internal.NewStoreUnavailableError("get profile", errors.New("down"))

			_, err := service.RecordSale(ctx, transaction.RecordSaleDTO{CreatorID: "c", SaleID: "s", GatewayID: "paystack", GrossAmount: 100})

			Expect(errors.Is(err, internal.ErrStoreUnavailable)).To(BeTrue())
		})

		It("refuses the same sale twice", func() {
			record("c", "sale-1", 100)

			_, err := service.RecordSale(ctx, transaction.RecordSaleDTO{CreatorID: "c", SaleID: "sale-1", GatewayID: "paystack", GrossAmount: 100})

			Expect(errors.Is(err, internal.ErrDuplicateSale)).To(BeTrue())
		})
	})

	Describe("ApplyStatus", func() {
		var t *transaction.Transaction

		BeforeEach(func() {
			t = record("c", "sale-1", 5000)
		})

		It("completes a pending transaction", func() {
			update, err := service.ApplyStatus(ctx, t.ID, transaction.StatusCompleted, at)

			Expect(err).ToNot(HaveOccurred())
			Expect(update.Changed).To(BeTrue())
			Expect(update.Transaction.Status).To(Equal(transaction.StatusCompleted))
			Expect(update.Transaction.CompletedAt).To(HaveValue(Equal(at)))
			Expect(update.OrphanedRefund).To(BeNil())
			Expect(publisher.types()).To(ContainElement(events.EventTypeTransactionStatusChanged))
		})

		It("treats a repeated report as a no-op", func() {
			_, err := service.ApplyStatus(ctx, t.ID, transaction.StatusCompleted, at)
			Expect(err).ToNot(HaveOccurred())

			update, err := service.ApplyStatus(ctx, t.ID, transaction.StatusCompleted, at.Add(time.Minute))

			Expect(err).ToNot(HaveOccurred())
			Expect(update.Changed).To(BeFalse())
			Expect(update.Transaction.CompletedAt).To(HaveValue(Equal(at)))
		})

		It("rejects pending to refunded", func() {
			_, err := service.ApplyStatus(ctx, t.ID, transaction.StatusRefunded, at)

			Expect(errors.Is(err, internal.ErrInvalidTransition)).To(BeTrue())
			Expect(repo.rows[t.ID].Status).To(Equal(string(transaction.StatusPending)))
		})

		It("never returns to pending", func() {
			_, err := service.ApplyStatus(ctx, t.ID, transaction.StatusFailed, at)
			Expect(err).ToNot(HaveOccurred())

			_, err = service.ApplyStatus(ctx, t.ID, transaction.StatusPending, at)

			Expect(errors.Is(err, internal.ErrInvalidTransition)).To(BeTrue())
		})

		It("rejects an unknown status", func() {
			_, err := service.ApplyStatus(ctx, t.ID, transaction.Status("settled"), at)

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))
		})

		It("reports a missing transaction", func() {
			_, err := service.ApplyStatus(ctx, "missing", transaction.StatusCompleted, at)

			Expect(errors.Is(err, internal.ErrTransactionNotFound)).To(BeTrue())
		})

		It("refunds an ungrouped transaction quietly", func() {
			_, err := service.ApplyStatus(ctx, t.ID, transaction.StatusCompleted, at)
			Expect(err).ToNot(HaveOccurred())

			update, err := service.ApplyStatus(ctx, t.ID, transaction.StatusRefunded, at)

			Expect(err).ToNot(HaveOccurred())
			Expect(update.OrphanedRefund).To(BeNil())
			Expect(publisher.types()).ToNot(ContainElement(events.EventTypeOrphanedRefund))
		})

		It("surfaces a refund on a paid-out transaction as an orphaned refund", func() {
			// Given a completed transaction already grouped into a payout
			_, err := service.ApplyStatus(ctx, t.ID, transaction.StatusCompleted, at)
			Expect(err).ToNot(HaveOccurred())
			payoutID := "payout-1"
			repo.rows[t.ID].PayoutID = &payoutID

			// When
			update, err := service.ApplyStatus(ctx, t.ID, transaction.StatusRefunded, at)

			// Then
			Expect(err).ToNot(HaveOccurred())
			Expect(update.Transaction.Status).To(Equal(transaction.StatusRefunded))
			Expect(update.Transaction.PayoutID).To(HaveValue(Equal("payout-1")))
			Expect(update.OrphanedRefund).ToNot(BeNil())
			Expect(update.OrphanedRefund.Kind).To(Equal(transaction.CaseKindOrphanedRefund))
			Expect(update.OrphanedRefund.Amount).To(Equal(int64(4625)))
			Expect(publisher.types()).To(ContainElement(events.EventTypeOrphanedRefund))
		})

		It("accepts a concurrent writer that reached the same status", func() {
			repo.racer = func(row *txDatamodel.Transaction) { row.Status = string(transaction.StatusCompleted) }

			update, err := service.ApplyStatus(ctx, t.ID, transaction.StatusCompleted, at)

			Expect(err).ToNot(HaveOccurred())
			Expect(update.Changed).To(BeFalse())
		})

		It("reports a concurrent writer that moved elsewhere", func() {
			repo.racer = func(row *txDatamodel.Transaction) { row.Status = string(transaction.StatusFailed) }

			_, err := service.ApplyStatus(ctx, t.ID, transaction.StatusCompleted, at)

			Expect(errors.Is(err, internal.ErrConcurrentUpdate)).To(BeTrue())
		})
	})

	It("resolves reconciliation cases", func() {
		Expect(service.ResolveCase(ctx, "case-1")).To(Succeed())
		Expect(repo.resolved).To(ConsistOf("case-1"))
	})
})
