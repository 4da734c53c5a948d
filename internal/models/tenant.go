package models

import "time"

// Tenant types. Stored as stable short codes; the display layer maps
// them to localized names (办公室 / 门面).
const (
	TenantTypeOffice     = "office"
	TenantTypeStorefront = "storefront"
)

// Tenant represents an occupying unit billed for utilities.
type Tenant struct {
	ID            uint   `gorm:"primaryKey"`
	Name          string `gorm:"size:64;not null"`
	Type          string `gorm:"size:16;index;not null"` // office / storefront
	Address       string `gorm:"size:255"`
	ContactPerson string `gorm:"size:64;not null"`
	Phone         string `gorm:"size:32;not null"`
	Email         string `gorm:"size:128"`
	Deactivated   bool   `gorm:"index;not null;default:false"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
