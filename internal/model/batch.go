package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Batch QC status constants (independent of collection QC)
const (
	BatchQCPending  = "PENDING"
	BatchQCApproved = "APPROVED"
	BatchQCRejected = "REJECTED"
)

// ProductionBatch is one production run consuming pooled milk into a finished
// product. Its input collections are fixed at creation: each MilkCollection
// points at the batch that consumed it via batch_id, so a collection can
// never appear in two batches.
type ProductionBatch struct {
	ID            uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	BatchCode     string           `gorm:"type:varchar(100);uniqueIndex;not null" json:"batch_code"`
	ProductID     uuid.UUID        `gorm:"type:uuid;not null;index" json:"product_id"`
	Product       *Product         `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	YieldQuantity decimal.Decimal  `gorm:"type:decimal(12,3);not null" json:"yield_quantity"`
	ExpiryDate    *time.Time       `json:"expiry_date"`
	QCStatus      string           `gorm:"type:varchar(20);not null;default:'PENDING'" json:"qc_status"`
	CreatedBy     *uuid.UUID       `gorm:"type:uuid" json:"created_by"`
	Creator       *User            `gorm:"foreignKey:CreatedBy" json:"creator,omitempty"`
	Collections   []MilkCollection `gorm:"foreignKey:BatchID" json:"collections,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}
