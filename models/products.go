package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a product in the catalog.
// Image holds the stored media reference, either a path relative to the
// media root or an absolute URL for remote backends.
type Product struct {
	ID          uint            `gorm:"primaryKey"`
	Name        string          `gorm:"size:200;not null"`
	Description string          `gorm:"type:text;not null;default:''"`
	Price       decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Image       *string         `gorm:"size:255"`
	CategoryID  uint            `gorm:"not null;index"`
	Category    Category        `gorm:"foreignKey:CategoryID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	IsActive    bool            `gorm:"not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (p *Product) TableName() string {
	return "products"
}
