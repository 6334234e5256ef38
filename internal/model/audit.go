package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	ActionCreateCollection = "CREATE_COLLECTION"
	ActionReviewCollection = "REVIEW_COLLECTION"
	ActionCreateBatch      = "CREATE_BATCH"
	ActionWithdrawPool     = "WITHDRAW_POOL"
	ActionResetPool        = "RESET_POOL"
	ActionCreateSupplier   = "CREATE_SUPPLIER"
	ActionCreateProduct    = "CREATE_PRODUCT"
	ActionCreateUser       = "CREATE_USER"
)

// AuditLog tracks Who, What, and When for critical system changes
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // Nullable gracefully if automated bot
	User       *User      `gorm:"foreignKey:UserID" json:"user"`
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`        // Reference string (uuid/code)
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"` // Human readable name
	Details    string     `gorm:"type:jsonb" json:"details"`                      // Serialized JSON payload of the action
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}
