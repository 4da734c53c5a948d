package ledger

import (
	"context"
	"errors"
	"time"

	"meter-billing/internal/apperr"
	"meter-billing/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Prices owns the time-versioned unit-price table.
type Prices struct {
	DB *gorm.DB
}

func NewPrices(db *gorm.DB) *Prices {
	return &Prices{DB: db}
}

// PriceInput carries one new price version.
type PriceInput struct {
	Resource  string
	Scope     string
	UnitPrice decimal.Decimal
	StartDate time.Time
}

func validatePriceInput(in *PriceInput) error {
	if in.Resource != models.MeterKindWater && in.Resource != models.MeterKindElectricity {
		return apperr.InvalidField("price", "resource", "资源必须是 water 或 electricity")
	}
	switch in.Scope {
	case models.PriceScopeAll, models.PriceScopeOffice, models.PriceScopeStorefront:
	default:
		return apperr.InvalidField("price", "scope", "适用范围必须是 all、office 或 storefront")
	}
	if in.UnitPrice.IsNegative() {
		return apperr.InvalidField("price", "unit_price", "单价不能为负")
	}
	if in.StartDate.IsZero() {
		return apperr.InvalidField("price", "start_date", "生效日期不能为空")
	}
	return nil
}

// Put inserts a new price version and closes the open predecessor for
// the same (resource, scope) by setting its end date.
func (l *Prices) Put(ctx context.Context, caller *Caller, in PriceInput) (*models.Price, error) {
	if err := requireCaller(caller, "price"); err != nil {
		return nil, err
	}
	if err := validatePriceInput(&in); err != nil {
		return nil, err
	}
	start := dateOnly(in.StartDate)
	var p models.Price
	err := l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Close the currently open version, if any.
		var prev models.Price
		err := tx.Where("resource = ? AND scope = ? AND end_date IS NULL", in.Resource, in.Scope).
			Order("start_date DESC").First(&prev).Error
		switch {
		case err == nil:
			if !prev.StartDate.Before(start) {
				return apperr.Newf(apperr.Conflict, "price", in.Resource+"/"+in.Scope,
					"生效日期必须晚于现行价格的生效日期 %s", prev.StartDate.Format(dateLayout))
			}
			if err := tx.Model(&prev).Update("end_date", start).Error; err != nil {
				return storeErr("price", in.Resource+"/"+in.Scope, err)
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			// first version for this (resource, scope)
		default:
			return storeErr("price", in.Resource+"/"+in.Scope, err)
		}

		p = models.Price{
			Resource:  in.Resource,
			Scope:     in.Scope,
			UnitPrice: round2(in.UnitPrice),
			StartDate: start,
		}
		if err := tx.Create(&p).Error; err != nil {
			return storeErr("price", in.Resource+"/"+in.Scope, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Current resolves the active unit price for a resource and tenant type:
// candidates have start_date <= now and end_date null or in the future;
// an exact tenant-type scope wins over "all"; within a scope the largest
// start_date wins. A missing price resolves to zero with ok=false.
func (l *Prices) Current(ctx context.Context, resource, tenantType string) (decimal.Decimal, bool, error) {
	return l.At(ctx, resource, tenantType, time.Now())
}

// At is Current evaluated at an arbitrary instant.
func (l *Prices) At(ctx context.Context, resource, tenantType string, at time.Time) (decimal.Decimal, bool, error) {
	for _, scope := range []string{tenantType, models.PriceScopeAll} {
		var p models.Price
		err := l.DB.WithContext(ctx).
			Where("resource = ? AND scope = ? AND start_date <= ? AND (end_date IS NULL OR end_date > ?)",
				resource, scope, at, at).
			Order("start_date DESC").
			First(&p).Error
		if err == nil {
			return p.UnitPrice, true, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, false, storeErr("price", resource+"/"+scope, err)
		}
	}
	return decimal.Zero, false, nil
}

// List returns all price versions for review, newest first.
func (l *Prices) List(ctx context.Context, resource string) ([]models.Price, error) {
	q := l.DB.WithContext(ctx).Model(&models.Price{})
	if resource != "" {
		q = q.Where("resource = ?", resource)
	}
	var out []models.Price
	if err := q.Order("start_date DESC, id DESC").Find(&out).Error; err != nil {
		return nil, storeErr("price", resource, err)
	}
	return out, nil
}
