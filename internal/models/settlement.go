package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Settlement is the monthly close-out handed to the cashier. Once a
// settlement with a non-empty settle date exists, the month is locked:
// its payments and readings may no longer be mutated.
type Settlement struct {
	ID          uint            `gorm:"primaryKey"`
	Month       string          `gorm:"size:7;uniqueIndex;not null"` // YYYY-MM
	SettleDate  *time.Time      `gorm:"index"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Cashier     string          `gorm:"size:64"`
	Notes       string          `gorm:"size:255"`
	CreatedAt   time.Time
}
