package ledger

import (
	"context"

	"meter-billing/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Summaries are the read-only projections behind the dashboard and
// reports. Arrears additionally repairs stale charge statuses.
type Summaries struct {
	DB *gorm.DB
}

func NewSummaries(db *gorm.DB) *Summaries {
	return &Summaries{DB: db}
}

// ArrearsRow is one charge with an outstanding balance.
type ArrearsRow struct {
	TenantID   uint            `json:"tenant_id"`
	TenantName string          `json:"tenant_name"`
	TenantType string          `json:"tenant_type"`
	Month      string          `json:"month"`
	Total      decimal.Decimal `json:"total"`
	Paid       decimal.Decimal `json:"paid"`
	Due        decimal.Decimal `json:"due"`
	Status     string          `json:"status"`
}

// Arrears lists charges with due > 0, optionally for one month. Stale
// on-disk statuses found along the way are rewritten.
func (s *Summaries) Arrears(ctx context.Context, month string) ([]ArrearsRow, error) {
	if month != "" {
		if _, err := ParseMonth(month); err != nil {
			return nil, err
		}
	}
	var out []ArrearsRow
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&models.Charge{}).Preload("Tenant")
		if month != "" {
			q = q.Where("month = ?", month)
		}
		var charges []models.Charge
		if err := q.Order("month DESC, tenant_id ASC").Find(&charges).Error; err != nil {
			return storeErr("charge", month, err)
		}
		for i := range charges {
			c := &charges[i]
			paid, err := chargePaid(tx, c.ID)
			if err != nil {
				return err
			}
			// Reconcile before emitting.
			if err := refreshChargeStatus(tx, c); err != nil {
				return err
			}
			due := c.TotalAmount.Sub(paid)
			if !due.IsPositive() {
				continue
			}
			out = append(out, ArrearsRow{
				TenantID:   c.TenantID,
				TenantName: c.Tenant.Name,
				TenantType: c.Tenant.Type,
				Month:      c.Month,
				Total:      c.TotalAmount,
				Paid:       paid,
				Due:        due,
				Status:     c.Status,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MethodSum is one payment-method bucket.
type MethodSum struct {
	Method string          `json:"method"`
	Amount decimal.Decimal `json:"amount"`
}

// TypeSum is one tenant-type bucket.
type TypeSum struct {
	TenantType string          `json:"tenant_type"`
	Amount     decimal.Decimal `json:"amount"`
}

// MonthlyReceivedResult groups a month's received payments.
type MonthlyReceivedResult struct {
	Month    string          `json:"month"`
	Total    decimal.Decimal `json:"total"`
	ByMethod []MethodSum     `json:"by_method"`
	ByType   []TypeSum       `json:"by_type"`
}

// MonthlyReceived sums payment amounts whose charge lies in the month,
// grouped by payment method and by tenant type.
func (s *Summaries) MonthlyReceived(ctx context.Context, month string) (*MonthlyReceivedResult, error) {
	if _, err := ParseMonth(month); err != nil {
		return nil, err
	}
	res := &MonthlyReceivedResult{Month: month, Total: decimal.Zero}

	type paymentJoin struct {
		Amount     decimal.Decimal
		Method     string
		TenantType string
	}
	var rows []paymentJoin
	err := s.DB.WithContext(ctx).Model(&models.Payment{}).
		Joins("JOIN charges ON charges.id = payments.charge_id").
		Joins("JOIN tenants ON tenants.id = charges.tenant_id").
		Where("charges.month = ?", month).
		Select("payments.amount AS amount, payments.method AS method, tenants.type AS tenant_type").
		Scan(&rows).Error
	if err != nil {
		return nil, storeErr("payment", month, err)
	}

	byMethod := map[string]decimal.Decimal{}
	byType := map[string]decimal.Decimal{}
	for _, r := range rows {
		res.Total = res.Total.Add(r.Amount)
		byMethod[r.Method] = byMethod[r.Method].Add(r.Amount)
		byType[r.TenantType] = byType[r.TenantType].Add(r.Amount)
	}
	res.Total = round2(res.Total)
	for _, m := range []string{models.PayMethodCash, models.PayMethodBankTransfer, models.PayMethodWeChat, models.PayMethodAlipay} {
		if v, ok := byMethod[m]; ok {
			res.ByMethod = append(res.ByMethod, MethodSum{Method: m, Amount: round2(v)})
		}
	}
	for _, t := range []string{models.TenantTypeOffice, models.TenantTypeStorefront} {
		if v, ok := byType[t]; ok {
			res.ByType = append(res.ByType, TypeSum{TenantType: t, Amount: round2(v)})
		}
	}
	return res, nil
}

// DashboardResult aggregates the landing-page numbers.
type DashboardResult struct {
	TenantsTotal       int64           `json:"tenants_total"`
	TenantsDeactivated int64           `json:"tenants_deactivated"`
	WaterMeters        int64           `json:"water_meters"`
	ElectricityMeters  int64           `json:"electricity_meters"`
	Month              string          `json:"month"`
	MonthWaterAmount   decimal.Decimal `json:"month_water_amount"`
	MonthElecAmount    decimal.Decimal `json:"month_elec_amount"`
	MonthTotalAmount   decimal.Decimal `json:"month_total_amount"`
	UnpaidTotal        decimal.Decimal `json:"unpaid_total"`
	UnpaidCharges      int64           `json:"unpaid_charges"`
}

// Dashboard returns tenant/meter counts, the given month's billed
// totals and the outstanding balance across all charges.
func (s *Summaries) Dashboard(ctx context.Context, month string) (*DashboardResult, error) {
	if _, err := ParseMonth(month); err != nil {
		return nil, err
	}
	db := s.DB.WithContext(ctx)
	res := &DashboardResult{
		Month:            month,
		MonthWaterAmount: decimal.Zero,
		MonthElecAmount:  decimal.Zero,
		MonthTotalAmount: decimal.Zero,
		UnpaidTotal:      decimal.Zero,
	}

	if err := db.Model(&models.Tenant{}).Count(&res.TenantsTotal).Error; err != nil {
		return nil, storeErr("tenant", "", err)
	}
	if err := db.Model(&models.Tenant{}).Where("deactivated = ?", true).Count(&res.TenantsDeactivated).Error; err != nil {
		return nil, storeErr("tenant", "", err)
	}
	if err := db.Model(&models.Meter{}).Where("kind = ?", models.MeterKindWater).Count(&res.WaterMeters).Error; err != nil {
		return nil, storeErr("meter", "", err)
	}
	if err := db.Model(&models.Meter{}).Where("kind = ?", models.MeterKindElectricity).Count(&res.ElectricityMeters).Error; err != nil {
		return nil, storeErr("meter", "", err)
	}

	var charges []models.Charge
	if err := db.Where("month = ?", month).Find(&charges).Error; err != nil {
		return nil, storeErr("charge", month, err)
	}
	for _, c := range charges {
		res.MonthWaterAmount = res.MonthWaterAmount.Add(c.WaterAmount)
		res.MonthElecAmount = res.MonthElecAmount.Add(c.ElecAmount)
		res.MonthTotalAmount = res.MonthTotalAmount.Add(c.TotalAmount)
	}

	var open []models.Charge
	if err := db.Where("status <> ?", models.ChargeStatusPaid).Find(&open).Error; err != nil {
		return nil, storeErr("charge", "", err)
	}
	for _, c := range open {
		paid, err := chargePaid(db, c.ID)
		if err != nil {
			return nil, err
		}
		due := c.TotalAmount.Sub(paid)
		if due.IsPositive() {
			res.UnpaidTotal = res.UnpaidTotal.Add(due)
			res.UnpaidCharges++
		}
	}
	res.UnpaidTotal = round2(res.UnpaidTotal)
	return res, nil
}
