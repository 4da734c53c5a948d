package ledger

import (
	"context"
	"errors"
	"time"

	"meter-billing/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Rows builds the iterable result sets handed to exporters. Mapping
// them to Excel/PDF bytes is the exporter's job, not the core's.
type Rows struct {
	DB *gorm.DB
}

func NewRows(db *gorm.DB) *Rows {
	return &Rows{DB: db}
}

// ChargeRow is one exported charge line.
type ChargeRow struct {
	TenantType     string          `json:"tenant_type"`
	TenantName     string          `json:"tenant_name"`
	Month          string          `json:"month"`
	WaterPrev      decimal.Decimal `json:"water_prev"`
	WaterCurr      decimal.Decimal `json:"water_curr"`
	WaterUsage     decimal.Decimal `json:"water_usage"`
	WaterUnitPrice decimal.Decimal `json:"water_unit_price"`
	WaterAmount    decimal.Decimal `json:"water_amount"`
	ElecPrev       decimal.Decimal `json:"elec_prev"`
	ElecCurr       decimal.Decimal `json:"elec_curr"`
	ElecUsage      decimal.Decimal `json:"elec_usage"`
	ElecUnitPrice  decimal.Decimal `json:"elec_unit_price"`
	ElecAmount     decimal.Decimal `json:"elec_amount"`
	Total          decimal.Decimal `json:"total"`
	Paid           decimal.Decimal `json:"paid"`
	Due            decimal.Decimal `json:"due"`
	Status         string          `json:"status"`
}

// ChargeRows returns the month's charges with their reading context,
// or all months when month is empty.
func (r *Rows) ChargeRows(ctx context.Context, month string) ([]ChargeRow, error) {
	if month != "" {
		if _, err := ParseMonth(month); err != nil {
			return nil, err
		}
	}
	db := r.DB.WithContext(ctx)
	q := db.Model(&models.Charge{}).Preload("Tenant")
	if month != "" {
		q = q.Where("month = ?", month)
	}
	var charges []models.Charge
	if err := q.Order("month DESC, tenant_id ASC").Find(&charges).Error; err != nil {
		return nil, storeErr("charge", month, err)
	}

	out := make([]ChargeRow, 0, len(charges))
	for i := range charges {
		c := &charges[i]
		paid, err := chargePaid(db, c.ID)
		if err != nil {
			return nil, err
		}
		row := ChargeRow{
			TenantType:     c.Tenant.Type,
			TenantName:     c.Tenant.Name,
			Month:          c.Month,
			WaterUsage:     c.WaterUsage,
			WaterUnitPrice: c.WaterUnitPrice,
			WaterAmount:    c.WaterAmount,
			ElecUsage:      c.ElecUsage,
			ElecUnitPrice:  c.ElecUnitPrice,
			ElecAmount:     c.ElecAmount,
			Total:          c.TotalAmount,
			Paid:           paid,
			Due:            c.TotalAmount.Sub(paid),
			Status:         c.Status,
		}
		if prev, curr, err := tenantMonthReading(db, c.TenantID, c.Month, models.MeterKindWater); err == nil {
			row.WaterPrev, row.WaterCurr = prev, curr
		} else {
			return nil, err
		}
		if prev, curr, err := tenantMonthReading(db, c.TenantID, c.Month, models.MeterKindElectricity); err == nil {
			row.ElecPrev, row.ElecCurr = prev, curr
		} else {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

// tenantMonthReading finds the tenant's reading for a month by meter
// kind. Zero values when the kind was not read that month.
func tenantMonthReading(db *gorm.DB, tenantID uint, month, kind string) (prev, curr decimal.Decimal, err error) {
	var reading models.MeterReading
	e := db.
		Joins("JOIN meters ON meters.id = meter_readings.meter_id").
		Where("meters.tenant_id = ? AND meters.kind = ? AND meter_readings.month = ?", tenantID, kind, month).
		Order("meter_readings.id ASC").
		First(&reading).Error
	if e != nil {
		if errors.Is(e, gorm.ErrRecordNotFound) {
			return decimal.Zero, decimal.Zero, nil
		}
		return decimal.Zero, decimal.Zero, storeErr("meter_reading", month, e)
	}
	return reading.Previous, reading.Current, nil
}

// PaymentRow is one exported payment line.
type PaymentRow struct {
	Tenant         string          `json:"tenant"`
	Month          string          `json:"month"`
	PaymentDate    time.Time       `json:"payment_date"`
	Amount         decimal.Decimal `json:"amount"`
	Method         string          `json:"method"`
	Payer          string          `json:"payer"`
	Notes          string          `json:"notes"`
	SettlementDate *time.Time      `json:"settlement_date,omitempty"`
}

// PaymentRows returns payments whose charge lies in the month, or all
// payments when month is empty.
func (r *Rows) PaymentRows(ctx context.Context, month string) ([]PaymentRow, error) {
	if month != "" {
		if _, err := ParseMonth(month); err != nil {
			return nil, err
		}
	}
	db := r.DB.WithContext(ctx)
	q := db.Model(&models.Payment{}).
		Joins("JOIN charges ON charges.id = payments.charge_id").
		Joins("JOIN tenants ON tenants.id = charges.tenant_id").
		Select("payments.*, charges.month AS charge_month, tenants.name AS tenant_name")
	if month != "" {
		q = q.Where("charges.month = ?", month)
	}

	type paymentWide struct {
		models.Payment
		ChargeMonth string
		TenantName  string
	}
	var rows []paymentWide
	if err := q.Order("payments.payment_date ASC, payments.id ASC").Scan(&rows).Error; err != nil {
		return nil, storeErr("payment", month, err)
	}

	// Settlement dates per month, for the optional column.
	var settlements []models.Settlement
	if err := db.Find(&settlements).Error; err != nil {
		return nil, storeErr("settlement", "", err)
	}
	settleByMonth := make(map[string]*time.Time, len(settlements))
	for i := range settlements {
		settleByMonth[settlements[i].Month] = settlements[i].SettleDate
	}

	out := make([]PaymentRow, 0, len(rows))
	for _, p := range rows {
		out = append(out, PaymentRow{
			Tenant:         p.TenantName,
			Month:          p.ChargeMonth,
			PaymentDate:    p.PaymentDate,
			Amount:         p.Amount,
			Method:         p.Method,
			Payer:          p.Payer,
			Notes:          p.Notes,
			SettlementDate: settleByMonth[p.ChargeMonth],
		})
	}
	return out, nil
}

// SettlementRow is one exported settlement line.
type SettlementRow struct {
	Month       string          `json:"month"`
	SettleDate  *time.Time      `json:"settle_date"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Cashier     string          `json:"cashier"`
	Notes       string          `json:"notes"`
}

// SettlementRows returns every settlement, newest month first.
func (r *Rows) SettlementRows(ctx context.Context) ([]SettlementRow, error) {
	var settlements []models.Settlement
	if err := r.DB.WithContext(ctx).Order("month DESC").Find(&settlements).Error; err != nil {
		return nil, storeErr("settlement", "", err)
	}
	out := make([]SettlementRow, 0, len(settlements))
	for _, s := range settlements {
		out = append(out, SettlementRow{
			Month:       s.Month,
			SettleDate:  s.SettleDate,
			TotalAmount: s.TotalAmount,
			Cashier:     s.Cashier,
			Notes:       s.Notes,
		})
	}
	return out, nil
}

// ReadingRow is one exported reading line.
type ReadingRow struct {
	Month       string          `json:"month"`
	Tenant      string          `json:"tenant"`
	MeterNo     string          `json:"meter_no"`
	Kind        string          `json:"kind"`
	Previous    decimal.Decimal `json:"previous"`
	Current     decimal.Decimal `json:"current"`
	Adjustment  decimal.Decimal `json:"adjustment"`
	Usage       decimal.Decimal `json:"usage"`
	Remark      string          `json:"remark"`
	ReadingDate time.Time       `json:"reading_date"`
	BillingTime *time.Time      `json:"billing_time,omitempty"`
	Reader      string          `json:"reader"`
}

// ReadingRows returns the month's readings, or all when month is empty.
// BillingTime is the creation time of the tenant's charge for the
// month, when one exists.
func (r *Rows) ReadingRows(ctx context.Context, month string) ([]ReadingRow, error) {
	if month != "" {
		if _, err := ParseMonth(month); err != nil {
			return nil, err
		}
	}
	db := r.DB.WithContext(ctx)
	q := db.Model(&models.MeterReading{}).Preload("Meter").Preload("Meter.Tenant")
	if month != "" {
		q = q.Where("month = ?", month)
	}
	var readings []models.MeterReading
	if err := q.Order("month DESC, id ASC").Find(&readings).Error; err != nil {
		return nil, storeErr("meter_reading", month, err)
	}

	var charges []models.Charge
	if err := db.Find(&charges).Error; err != nil {
		return nil, storeErr("charge", "", err)
	}
	type chargeKey struct {
		tenantID uint
		month    string
	}
	billedAt := make(map[chargeKey]time.Time, len(charges))
	for _, c := range charges {
		billedAt[chargeKey{c.TenantID, c.Month}] = c.CreatedAt
	}

	out := make([]ReadingRow, 0, len(readings))
	for i := range readings {
		rd := &readings[i]
		row := ReadingRow{
			Month:       rd.Month,
			Tenant:      rd.Meter.Tenant.Name,
			MeterNo:     rd.Meter.MeterNo,
			Kind:        rd.Meter.Kind,
			Previous:    rd.Previous,
			Current:     rd.Current,
			Adjustment:  rd.Adjustment,
			Usage:       rd.Usage,
			Remark:      rd.Remark,
			ReadingDate: rd.ReadingDate,
			Reader:      rd.Reader,
		}
		if t, ok := billedAt[chargeKey{rd.Meter.TenantID, rd.Month}]; ok {
			tt := t
			row.BillingTime = &tt
		}
		out = append(out, row)
	}
	return out, nil
}
