package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/Sadick14/ticket-flow/internal"
	"github.com/Sadick14/ticket-flow/internal/profile"
	"github.com/Sadick14/ticket-flow/internal/transaction"
)

const demoPrefix = "demo-"

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with demo creators and settled sales for development and testing purposes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := initializeDependencies()
		if err != nil {
			return fmt.Errorf("failed to initialize dependencies: %w", err)
		}
		defer deps.Close()

		ctx := cmd.Context()
		if clearData {
			if err := clearDemoData(deps.Gorm); err != nil {
				return fmt.Errorf("failed to clear demo data: %w", err)
			}
			fmt.Println("Cleared existing demo data")
		}

		creators := []profile.CreateProfileDTO{
			{CreatorID: demoPrefix + "weekly", PayoutCadence: "weekly", MinimumPayoutAmount: 2000, Verified: true},
			{CreatorID: demoPrefix + "daily", CommissionTier: "premium", PayoutCadence: "daily", MinimumPayoutAmount: 0, Verified: true},
			{CreatorID: demoPrefix + "monthly", CommissionTier: "standard", PayoutCadence: "monthly", MinimumPayoutAmount: 10000, Verified: true},
			{CreatorID: demoPrefix + "unverified", PayoutCadence: "weekly", MinimumPayoutAmount: 0, Verified: false},
		}
		for _, c := range creators {
			if _, err := deps.Profiles.CreateProfile(ctx, c); err != nil {
				if errors.Is(err, internal.ErrProfileExists) {
					fmt.Println("profile already exists:", c.CreatorID)
					continue
				}
				return fmt.Errorf("failed to seed profile %s: %w", c.CreatorID, err)
			}
			fmt.Println("Seeded profile:", c.CreatorID)
		}

		gateway := deps.Config.Settlement.Gateways[0].ID
		sales := []struct {
			creator string
			gross   int64
			settle  transaction.Status
		}{
			{"weekly", 1000, transaction.StatusCompleted},
			{"weekly", 1500, transaction.StatusCompleted},
			{"weekly", 800, transaction.StatusCompleted},
			{"daily", 5000, transaction.StatusCompleted},
			{"daily", 2500, transaction.StatusFailed},
			{"monthly", 4200, transaction.StatusCompleted},
			{"monthly", 3900, transaction.StatusPending},
			{"unverified", 7000, transaction.StatusCompleted},
		}
		for i, s := range sales {
			saleID := fmt.Sprintf("%ssale-%03d", demoPrefix, i+1)
			t, err := deps.Transactions.RecordSale(ctx, transaction.RecordSaleDTO{
				CreatorID:   demoPrefix + s.creator,
				SaleID:      saleID,
				GatewayID:   gateway,
				GrossAmount: s.gross,
			})
			if err != nil {
				if errors.Is(err, internal.ErrDuplicateSale) {
					fmt.Println("sale already recorded:", saleID)
					continue
				}
				return fmt.Errorf("failed to seed sale %s: %w", saleID, err)
			}
			if s.settle != transaction.StatusPending {
				if _, err := deps.Transactions.ApplyStatus(ctx, t.ID, s.settle, time.Now().UTC()); err != nil {
					return fmt.Errorf("failed to settle sale %s: %w", saleID, err)
				}
			}
			fmt.Printf("Seeded sale %s (%d, %s)\n", saleID, s.gross, s.settle)
		}

		fmt.Println("Seeding completed")
		return nil
	},
}

func clearDemoData(db *gorm.DB) error {
	like := demoPrefix + "%"
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM reconciliation_cases WHERE creator_id LIKE ?", like).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM transactions WHERE creator_id LIKE ?", like).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM payouts WHERE creator_id LIKE ?", like).Error; err != nil {
			return err
		}
		return tx.Exec("DELETE FROM creator_payment_profiles WHERE creator_id LIKE ?", like).Error
	})
}
