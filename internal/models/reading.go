package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MeterReading is one dated measurement of a meter. One row per
// (meter, month); a second write for the same month updates in place.
// usage = current - previous + adjustment is derived on write.
type MeterReading struct {
	ID          uint            `gorm:"primaryKey"`
	MeterID     uint            `gorm:"uniqueIndex:idx_reading_meter_month;not null"`
	Month       string          `gorm:"size:7;uniqueIndex:idx_reading_meter_month;index;not null"` // YYYY-MM
	ReadingDate time.Time       `gorm:"index;not null"`
	Current     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Previous    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Adjustment  decimal.Decimal `gorm:"type:decimal(12,2);not null"` // signed correction
	Usage       decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Reader      string          `gorm:"size:64"`
	Remark      string          `gorm:"size:255;default:''"`
	CreatedAt   time.Time

	Meter Meter `gorm:"constraint:OnDelete:RESTRICT"`
}
