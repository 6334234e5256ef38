package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Product unit constants
const (
	UnitKilogram = "kg"
	UnitLiter    = "liter"
)

// Product represents a finished good produced from pooled milk (ghee, paneer, curd, ...)
type Product struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	SKU       string         `gorm:"type:varchar(100);uniqueIndex;not null" json:"sku"`
	Name      string         `gorm:"type:varchar(255);not null" json:"name"`
	Unit      string         `gorm:"type:varchar(20);not null;default:'kg'" json:"unit"` // kg, liter
	IsActive  bool           `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
