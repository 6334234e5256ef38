package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Supplier represents a milk supplier (farmer or collection agent)
type Supplier struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Code          string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"`
	Name          string    `gorm:"type:varchar(255);not null" json:"name"`
	Village       string    `gorm:"type:varchar(255)" json:"village"`
	Phone         string    `gorm:"type:varchar(50)" json:"phone"`
	ContactPerson string    `gorm:"type:varchar(255)" json:"contact_person"`

	// Bank details kept as named columns rather than a free-form JSON blob
	BankAccountName   string `gorm:"type:varchar(255)" json:"bank_account_name"`
	BankAccountNumber string `gorm:"type:varchar(50)" json:"bank_account_number"`
	BankIFSC          string `gorm:"type:varchar(20)" json:"bank_ifsc"`

	IsActive  bool           `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
