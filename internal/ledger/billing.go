package ledger

import (
	"context"
	"errors"

	"meter-billing/internal/apperr"
	"meter-billing/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// BillingEngine turns one month's readings into charges. Re-runnable:
// a second pass with no intervening changes leaves the rows unchanged.
type BillingEngine struct {
	DB     *gorm.DB
	Prices *Prices
	Log    *zap.Logger
}

func NewBillingEngine(db *gorm.DB, prices *Prices, log *zap.Logger) *BillingEngine {
	return &BillingEngine{DB: db, Prices: prices, Log: log}
}

// TenantFailure is one tenant's outcome in a failed batch item.
type TenantFailure struct {
	TenantID uint   `json:"tenant_id"`
	Name     string `json:"name"`
	Reason   string `json:"reason"`
}

// BillingResult summarizes one ComputeForMonth call.
type BillingResult struct {
	Month        string          `json:"month"`
	NewCount     int             `json:"new_count"`
	UpdatedCount int             `json:"updated_count"`
	SkippedCount int             `json:"skipped_count"`
	Failed       []TenantFailure `json:"failed"`
}

// ComputeForMonth produces one charge per tenant with metered usage in
// the month. Per-tenant failures are collected, not propagated; sibling
// tenants commit independently.
func (e *BillingEngine) ComputeForMonth(ctx context.Context, caller *Caller, month string) (*BillingResult, error) {
	if err := requireCaller(caller, "charge"); err != nil {
		return nil, err
	}
	if _, err := ParseMonth(month); err != nil {
		return nil, err
	}

	// Deactivated tenants are still billed for months where their
	// meters were read; consumption always gets charged.
	var tenants []models.Tenant
	if err := e.DB.WithContext(ctx).Order("id ASC").Find(&tenants).Error; err != nil {
		return nil, storeErr("tenant", "", err)
	}

	res := &BillingResult{Month: month}
	for _, t := range tenants {
		outcome, err := e.computeOne(ctx, &t, month)
		if err != nil {
			e.Log.Warn("billing failed for tenant",
				zap.Uint("tenant_id", t.ID),
				zap.String("tenant", t.Name),
				zap.String("month", month),
				zap.Error(err))
			res.Failed = append(res.Failed, TenantFailure{TenantID: t.ID, Name: t.Name, Reason: err.Error()})
			continue
		}
		switch outcome {
		case billedNew:
			res.NewCount++
		case billedUpdated:
			res.UpdatedCount++
		default:
			res.SkippedCount++
		}
	}
	return res, nil
}

// ComputeForTenant is ComputeForMonth restricted to one tenant.
func (e *BillingEngine) ComputeForTenant(ctx context.Context, caller *Caller, tenantID uint, month string) (*BillingResult, error) {
	if err := requireCaller(caller, "charge"); err != nil {
		return nil, err
	}
	if _, err := ParseMonth(month); err != nil {
		return nil, err
	}
	var t models.Tenant
	if err := e.DB.WithContext(ctx).First(&t, tenantID).Error; err != nil {
		return nil, storeErr("tenant", itoa(tenantID), err)
	}
	res := &BillingResult{Month: month}
	outcome, err := e.computeOne(ctx, &t, month)
	if err != nil {
		return nil, err
	}
	switch outcome {
	case billedNew:
		res.NewCount++
	case billedUpdated:
		res.UpdatedCount++
	default:
		res.SkippedCount++
	}
	return res, nil
}

type billingOutcome int

const (
	billedSkipped billingOutcome = iota
	billedNew
	billedUpdated
)

// computeOne bills one tenant for one month in a single transaction.
func (e *BillingEngine) computeOne(ctx context.Context, t *models.Tenant, month string) (billingOutcome, error) {
	key := t.Name + "/" + month
	var outcome billingOutcome
	err := e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		waterUsage, err := tenantUsage(tx, t.ID, month, models.MeterKindWater)
		if err != nil {
			return err
		}
		elecUsage, err := tenantUsage(tx, t.ID, month, models.MeterKindElectricity)
		if err != nil {
			return err
		}

		// Zero readings in the month: absence, not a zero-row.
		var readings int64
		if err := tx.Model(&models.MeterReading{}).
			Joins("JOIN meters ON meters.id = meter_readings.meter_id").
			Where("meters.tenant_id = ? AND meter_readings.month = ?", t.ID, month).
			Count(&readings).Error; err != nil {
			return storeErr("charge", key, err)
		}
		if readings == 0 {
			outcome = billedSkipped
			return nil
		}

		waterUP, ok, err := e.Prices.Current(ctx, models.MeterKindWater, t.Type)
		if err != nil {
			return err
		}
		if !ok && waterUsage.IsPositive() {
			e.Log.Warn("no active water price, billing at zero",
				zap.String("tenant", t.Name), zap.String("month", month))
		}
		elecUP, ok, err := e.Prices.Current(ctx, models.MeterKindElectricity, t.Type)
		if err != nil {
			return err
		}
		if !ok && elecUsage.IsPositive() {
			e.Log.Warn("no active electricity price, billing at zero",
				zap.String("tenant", t.Name), zap.String("month", month))
		}

		waterAmount := round2(waterUsage.Mul(waterUP))
		elecAmount := round2(elecUsage.Mul(elecUP))
		total := round2(waterAmount.Add(elecAmount))

		var charge models.Charge
		err = tx.Where("tenant_id = ? AND month = ?", t.ID, month).First(&charge).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			charge = models.Charge{
				TenantID:       t.ID,
				Month:          month,
				WaterUsage:     waterUsage,
				WaterUnitPrice: waterUP,
				WaterAmount:    waterAmount,
				ElecUsage:      elecUsage,
				ElecUnitPrice:  elecUP,
				ElecAmount:     elecAmount,
				TotalAmount:    total,
				Status:         models.ChargeStatusUnpaid,
			}
			if err := tx.Create(&charge).Error; err != nil {
				return storeErr("charge", key, err)
			}
			outcome = billedNew
			return nil
		case err != nil:
			return storeErr("charge", key, err)
		}

		// Update in place; the payment-derived status is recomputed from
		// the payments, never reset.
		charge.WaterUsage = waterUsage
		charge.WaterUnitPrice = waterUP
		charge.WaterAmount = waterAmount
		charge.ElecUsage = elecUsage
		charge.ElecUnitPrice = elecUP
		charge.ElecAmount = elecAmount
		charge.TotalAmount = total
		if err := tx.Save(&charge).Error; err != nil {
			return storeErr("charge", key, err)
		}
		if err := refreshChargeStatus(tx, &charge); err != nil {
			return err
		}
		outcome = billedUpdated
		return nil
	})
	if err != nil {
		return billedSkipped, err
	}
	return outcome, nil
}

// tenantUsage sums the month's usage over the tenant's meters of a kind.
func tenantUsage(tx *gorm.DB, tenantID uint, month, kind string) (decimal.Decimal, error) {
	var raw *string
	err := tx.Model(&models.MeterReading{}).
		Joins("JOIN meters ON meters.id = meter_readings.meter_id").
		Where("meters.tenant_id = ? AND meters.kind = ? AND meter_readings.month = ?", tenantID, kind, month).
		Select("SUM(meter_readings.usage)").
		Scan(&raw).Error
	if err != nil {
		return decimal.Zero, storeErr("meter_reading", month, err)
	}
	if raw == nil {
		return decimal.Zero, nil
	}
	sum, err := decimal.NewFromString(*raw)
	if err != nil {
		return decimal.Zero, apperr.Wrap(apperr.Unavailable, "meter_reading", month, err)
	}
	return round2(sum), nil
}

// Charge loads one charge by tenant and month.
func (e *BillingEngine) Charge(ctx context.Context, tenantID uint, month string) (*models.Charge, error) {
	var charge models.Charge
	err := e.DB.WithContext(ctx).Where("tenant_id = ? AND month = ?", tenantID, month).First(&charge).Error
	if err != nil {
		return nil, storeErr("charge", itoa(tenantID)+"/"+month, err)
	}
	return &charge, nil
}
