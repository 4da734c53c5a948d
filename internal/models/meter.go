package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Meter kinds and statuses, stored as stable short codes.
const (
	MeterKindWater       = "water"
	MeterKindElectricity = "electricity"

	MeterStatusNormal   = "normal"
	MeterStatusDamaged  = "damaged"
	MeterStatusReplaced = "replaced"
)

// Meter represents a water or electricity meter owned by a tenant.
type Meter struct {
	ID             uint            `gorm:"primaryKey"`
	MeterNo        string          `gorm:"size:32;uniqueIndex;not null"`
	Kind           string          `gorm:"size:16;index;not null"` // water / electricity
	TenantID       uint            `gorm:"index;not null"`
	Location       string          `gorm:"size:128"`
	InitialReading decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Status         string          `gorm:"size:16;not null;default:normal"` // normal / damaged / replaced
	CreatedAt      time.Time
	UpdatedAt      time.Time

	Tenant Tenant `gorm:"constraint:OnDelete:RESTRICT"`
}
