package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// QCStatus constants for milk collections
const (
	QCPending  = "PENDING"
	QCApproved = "APPROVED"
	QCRejected = "REJECTED"
)

// ConsumptionStatus constants
const (
	ConsumptionNew         = "NEW"
	ConsumptionUsedInBatch = "USED_IN_BATCH"
)

// MilkCollection is one intake event from a supplier. Quantity and quality are
// immutable after creation; qc_status and consumption_status each transition
// exactly once.
type MilkCollection struct {
	ID            uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	SupplierID    uuid.UUID        `gorm:"type:uuid;not null;index" json:"supplier_id"`
	Supplier      *Supplier        `gorm:"foreignKey:SupplierID" json:"supplier,omitempty"`
	OperatorID    *uuid.UUID       `gorm:"type:uuid;index" json:"operator_id"`
	Operator      *User            `gorm:"foreignKey:OperatorID" json:"operator,omitempty"`
	QuantityLiters decimal.Decimal `gorm:"type:decimal(12,3);not null" json:"quantity_liters"`
	FatPct        *decimal.Decimal `gorm:"type:decimal(5,2)" json:"fat_pct"`
	SnfPct        *decimal.Decimal `gorm:"type:decimal(5,2)" json:"snf_pct"`
	PricePerLiter *decimal.Decimal `gorm:"type:decimal(10,2)" json:"price_per_liter"`
	PhotoURL      string           `gorm:"type:text" json:"photo_url,omitempty"`

	QCStatus          string     `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"qc_status"`
	ConsumptionStatus string     `gorm:"type:varchar(20);not null;default:'NEW';index" json:"consumption_status"`
	ReviewedBy        *uuid.UUID `gorm:"type:uuid" json:"reviewed_by"`
	ReviewedAt        *time.Time `json:"reviewed_at"`

	// Set by the batch consumption transaction when the collection is folded
	PoolID  *uuid.UUID `gorm:"type:uuid;index" json:"pool_id"`
	BatchID *uuid.UUID `gorm:"type:uuid;index" json:"batch_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FatOrZero coalesces a missing fat reading to zero. Volume with unknown
// quality still enters the pool, it just carries no quality mass.
func (c *MilkCollection) FatOrZero() decimal.Decimal {
	if c.FatPct == nil {
		return decimal.Zero
	}
	return *c.FatPct
}

// SnfOrZero coalesces a missing SNF reading to zero.
func (c *MilkCollection) SnfOrZero() decimal.Decimal {
	if c.SnfPct == nil {
		return decimal.Zero
	}
	return *c.SnfPct
}

// Poolable reports whether the collection may be folded into the pool.
func (c *MilkCollection) Poolable() bool {
	return c.QCStatus == QCApproved && c.ConsumptionStatus == ConsumptionNew
}
