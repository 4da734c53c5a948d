package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Price scopes. A price either applies to every tenant type or to one.
const (
	PriceScopeAll        = "all"
	PriceScopeOffice     = TenantTypeOffice
	PriceScopeStorefront = TenantTypeStorefront
)

// Price is one time-versioned unit price for a resource. At most one price
// per (resource, scope) is active at any instant; a later start_date
// supersedes earlier rows.
type Price struct {
	ID        uint            `gorm:"primaryKey"`
	Resource  string          `gorm:"size:16;index:idx_price_resource_scope;not null"` // water / electricity
	Scope     string          `gorm:"size:16;index:idx_price_resource_scope;not null"` // all / office / storefront
	UnitPrice decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	StartDate time.Time       `gorm:"index;not null"`
	EndDate   *time.Time      `gorm:"index"`
	CreatedAt time.Time
}
