package model

import (
	"time"

	"backend/pkg/apperr"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Pool status constants
const (
	PoolActive   = "ACTIVE"
	PoolArchived = "ARCHIVED"
)

// PoolTransaction type constants
const (
	PoolTxFold     = "FOLD"
	PoolTxWithdraw = "WITHDRAW"
)

// MilkPool is the shared raw-milk buffer. Quality is tracked as mass units
// (liters x percent), never as a running average of percentages, so repeated
// folding and withdrawal stay exact. The total_* columns are lifetime
// cumulative figures; remaining_* is the withdrawable balance. Exactly one
// row is ACTIVE at any time.
type MilkPool struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	TotalMilkLiters decimal.Decimal `gorm:"type:decimal(14,3);not null;default:0" json:"total_milk_liters"`
	TotalFatUnits   decimal.Decimal `gorm:"type:decimal(14,3);not null;default:0" json:"total_fat_units"`
	TotalSnfUnits   decimal.Decimal `gorm:"type:decimal(14,3);not null;default:0" json:"total_snf_units"`

	RemainingMilkLiters decimal.Decimal `gorm:"type:decimal(14,3);not null;default:0" json:"remaining_milk_liters"`
	RemainingFatUnits   decimal.Decimal `gorm:"type:decimal(14,3);not null;default:0" json:"remaining_fat_units"`
	RemainingSnfUnits   decimal.Decimal `gorm:"type:decimal(14,3);not null;default:0" json:"remaining_snf_units"`

	OriginalAvgFat decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0" json:"original_avg_fat"`
	OriginalAvgSnf decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0" json:"original_avg_snf"`

	Status     string     `gorm:"type:varchar(20);not null;default:'ACTIVE';index" json:"status"`
	CreatedBy  *uuid.UUID `gorm:"type:uuid" json:"created_by"`
	ArchivedAt *time.Time `json:"archived_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Fold adds quantity liters carrying fatPct/snfPct quality into the pool.
// Both the lifetime totals and the remaining balance grow by the same amount.
func (p *MilkPool) Fold(quantity, fatPct, snfPct decimal.Decimal) error {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return apperr.Validation("fold quantity must be positive")
	}

	fatUnits := quantity.Mul(fatPct)
	snfUnits := quantity.Mul(snfPct)

	p.TotalMilkLiters = p.TotalMilkLiters.Add(quantity)
	p.TotalFatUnits = p.TotalFatUnits.Add(fatUnits)
	p.TotalSnfUnits = p.TotalSnfUnits.Add(snfUnits)

	p.RemainingMilkLiters = p.RemainingMilkLiters.Add(quantity)
	p.RemainingFatUnits = p.RemainingFatUnits.Add(fatUnits)
	p.RemainingSnfUnits = p.RemainingSnfUnits.Add(snfUnits)

	return nil
}

// Withdraw removes quantity liters from the remaining balance, reducing the
// quality mass by the same fraction so the averages of what stays behind are
// unchanged. Lifetime totals are untouched; the gap between total and
// remaining is what reconciliation reports as milk used.
func (p *MilkPool) Withdraw(quantity decimal.Decimal) error {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return apperr.Validation("withdraw quantity must be positive")
	}
	if quantity.GreaterThan(p.RemainingMilkLiters) {
		return apperr.InsufficientPool(quantity, p.RemainingMilkLiters)
	}

	fraction := quantity.Div(p.RemainingMilkLiters)

	p.RemainingFatUnits = p.RemainingFatUnits.Sub(p.RemainingFatUnits.Mul(fraction))
	p.RemainingSnfUnits = p.RemainingSnfUnits.Sub(p.RemainingSnfUnits.Mul(fraction))
	p.RemainingMilkLiters = p.RemainingMilkLiters.Sub(quantity)

	return nil
}

// CurrentAvgFat derives the average fat percent of the remaining balance.
func (p *MilkPool) CurrentAvgFat() decimal.Decimal {
	if p.RemainingMilkLiters.IsZero() {
		return decimal.Zero
	}
	return p.RemainingFatUnits.Div(p.RemainingMilkLiters)
}

// CurrentAvgSNF derives the average SNF percent of the remaining balance.
func (p *MilkPool) CurrentAvgSNF() decimal.Decimal {
	if p.RemainingMilkLiters.IsZero() {
		return decimal.Zero
	}
	return p.RemainingSnfUnits.Div(p.RemainingMilkLiters)
}

// PoolTransaction journals every pool mutation: one row per fold or
// withdrawal, with the balance left afterwards.
type PoolTransaction struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	PoolID         uuid.UUID       `gorm:"type:uuid;not null;index" json:"pool_id"`
	BatchID        *uuid.UUID      `gorm:"type:uuid;index" json:"batch_id"` // Nullable for manual withdrawals
	Type           string          `gorm:"type:varchar(10);not null" json:"type"` // FOLD, WITHDRAW
	QuantityLiters decimal.Decimal `gorm:"type:decimal(12,3);not null" json:"quantity_liters"`
	FatUnits       decimal.Decimal `gorm:"type:decimal(14,3);not null;default:0" json:"fat_units"`
	SnfUnits       decimal.Decimal `gorm:"type:decimal(14,3);not null;default:0" json:"snf_units"`
	RemainingAfter decimal.Decimal `gorm:"type:decimal(14,3);not null" json:"remaining_after"`
	CreatedBy      *uuid.UUID      `gorm:"type:uuid" json:"created_by"`
	Note           string          `gorm:"type:text" json:"note,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}
