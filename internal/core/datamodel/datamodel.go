// Package datamodel groups the gorm row types of every settlement table.
package datamodel

import (
	"github.com/Sadick14/ticket-flow/internal/core/datamodel/payout"
	"github.com/Sadick14/ticket-flow/internal/core/datamodel/profile"
	"github.com/Sadick14/ticket-flow/internal/core/datamodel/transaction"
)

// All returns one zero value per table, in dependency order, for AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&profile.CreatorPaymentProfile{},
		&payout.Payout{},
		&transaction.Transaction{},
		&transaction.ReconciliationCase{},
	}
}
