package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Charge payment statuses, stored as stable short codes
// (未缴 / 部分缴纳 / 已缴 at the display layer).
const (
	ChargeStatusUnpaid        = "unpaid"
	ChargeStatusPartiallyPaid = "partial"
	ChargeStatusPaid          = "paid"
)

// Charge is the billed amount for one tenant for one month.
// Status is persisted for query speed but always recomputed from the
// payments against the charge inside the same transaction.
type Charge struct {
	ID             uint            `gorm:"primaryKey"`
	TenantID       uint            `gorm:"uniqueIndex:idx_charge_tenant_month;not null"`
	Month          string          `gorm:"size:7;uniqueIndex:idx_charge_tenant_month;index;not null"` // YYYY-MM
	WaterUsage     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	WaterUnitPrice decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	WaterAmount    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	ElecUsage      decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	ElecUnitPrice  decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	ElecAmount     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	TotalAmount    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Status         string          `gorm:"size:16;index;not null;default:unpaid"`
	CreatedAt      time.Time
	UpdatedAt      time.Time

	Tenant Tenant `gorm:"constraint:OnDelete:RESTRICT"`
}
