package ledger

import (
	"context"
	"errors"
	"time"

	"meter-billing/internal/apperr"
	"meter-billing/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Anomaly detection looks at the prior 3-6 positive-usage readings.
const (
	anomalyMinSamples = 3
	anomalyMaxSamples = 6
)

// ReadingLedger owns the write path for meter readings.
type ReadingLedger struct {
	DB       *gorm.DB
	Settings *Settings
	Log      *zap.Logger
}

func NewReadingLedger(db *gorm.DB, settings *Settings, log *zap.Logger) *ReadingLedger {
	return &ReadingLedger{DB: db, Settings: settings, Log: log}
}

// RecordReadingInput carries one meter read. Force acknowledges an
// anomaly warning or a negative usage caused by a negative adjustment.
type RecordReadingInput struct {
	MeterID     uint
	ReadingDate time.Time
	Current     decimal.Decimal
	Adjustment  decimal.Decimal
	Reader      string
	Remark      string
	Force       bool
}

// Record inserts or updates the reading for (meter, month of date).
// previous and usage are derived here, never caller-supplied.
func (l *ReadingLedger) Record(ctx context.Context, caller *Caller, in RecordReadingInput) (*models.MeterReading, error) {
	if err := requireCaller(caller, "meter_reading"); err != nil {
		return nil, err
	}
	if in.Current.IsNegative() {
		return nil, apperr.InvalidField("meter_reading", "current", "本期读数不能为负")
	}
	date := dateOnly(in.ReadingDate)
	if date.IsZero() {
		return nil, apperr.InvalidField("meter_reading", "reading_date", "抄表日期不能为空")
	}
	if date.After(today()) {
		return nil, apperr.InvalidField("meter_reading", "reading_date", "抄表日期不能晚于今天")
	}
	month := MonthOf(date)

	maxJump, err := l.Settings.MaxUsageJump(ctx)
	if err != nil {
		return nil, err
	}

	var out models.MeterReading
	err = l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var meter models.Meter
		if err := tx.First(&meter, in.MeterID).Error; err != nil {
			return storeErr("meter", itoa(in.MeterID), err)
		}
		key := meter.MeterNo + "/" + month

		if locked, err := monthLocked(tx, month); err != nil {
			return err
		} else if locked {
			return apperr.New(apperr.Locked, "meter_reading", key, "该月份已结算，禁止修改抄表记录")
		}

		// Update-in-place when the (meter, month) row already exists.
		var existing *models.MeterReading
		var row models.MeterReading
		err := tx.Where("meter_id = ? AND month = ?", in.MeterID, month).First(&row).Error
		switch {
		case err == nil:
			existing = &row
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return storeErr("meter_reading", key, err)
		}

		// previous comes from the latest reading of an earlier month, or
		// the meter's initial reading. An in-place update keeps its own
		// previous rather than chaining onto itself.
		previous := meter.InitialReading
		var lastOther models.MeterReading
		err = tx.Where("meter_id = ? AND month <> ?", in.MeterID, month).
			Order("reading_date DESC, id DESC").
			First(&lastOther).Error
		switch {
		case err == nil:
			if lastOther.ReadingDate.After(date) {
				return apperr.Newf(apperr.Invalid, "meter_reading", key,
					"抄表日期不能早于最近一次抄表（%s）", lastOther.ReadingDate.Format(dateLayout))
			}
			previous = lastOther.Current
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return storeErr("meter_reading", key, err)
		}
		if existing != nil {
			previous = existing.Previous
		}

		usage := in.Current.Sub(previous).Add(in.Adjustment)
		if usage.IsNegative() {
			if !in.Adjustment.IsNegative() {
				return apperr.Newf(apperr.Invalid, "meter_reading", key,
					"用量为负（本期 %s < 上期 %s）", in.Current.String(), previous.String())
			}
			if !in.Force {
				return apperr.Newf(apperr.Invalid, "meter_reading", key,
					"负调整导致用量为负（%s），需显式确认", usage.String())
			}
		}

		if warn := l.checkAnomaly(tx, in.MeterID, existing, usage, maxJump); warn != nil {
			if !in.Force {
				return apperr.NewAnomaly(key, *warn)
			}
			l.Log.Warn("meter reading anomaly acknowledged",
				zap.String("meter_no", meter.MeterNo),
				zap.String("month", month),
				zap.String("usage", usage.String()),
				zap.String("mean", warn.Mean.String()))
		}

		if existing != nil {
			existing.ReadingDate = date
			existing.Current = round2(in.Current)
			existing.Previous = round2(previous)
			existing.Adjustment = round2(in.Adjustment)
			existing.Usage = round2(usage)
			existing.Reader = in.Reader
			existing.Remark = in.Remark
			if err := tx.Save(existing).Error; err != nil {
				return storeErr("meter_reading", key, err)
			}
			out = *existing
			return nil
		}

		out = models.MeterReading{
			MeterID:     in.MeterID,
			Month:       month,
			ReadingDate: date,
			Current:     round2(in.Current),
			Previous:    round2(previous),
			Adjustment:  round2(in.Adjustment),
			Usage:       round2(usage),
			Reader:      in.Reader,
			Remark:      in.Remark,
		}
		if err := tx.Create(&out).Error; err != nil {
			return storeErr("meter_reading", key, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// checkAnomaly compares usage to the mean of the prior 3-6 readings with
// positive usage. Beyond 2x the mean in either direction, or more than
// max_usage_jump away from it, is a warning the caller may override.
func (l *ReadingLedger) checkAnomaly(tx *gorm.DB, meterID uint, existing *models.MeterReading, usage, maxJump decimal.Decimal) *apperr.UsageAnomaly {
	if !usage.IsPositive() {
		return nil
	}
	q := tx.Where("meter_id = ? AND usage > 0", meterID)
	if existing != nil {
		q = q.Where("id <> ?", existing.ID)
	}
	var prior []models.MeterReading
	if err := q.Order("reading_date DESC, id DESC").Limit(anomalyMaxSamples).Find(&prior).Error; err != nil {
		return nil
	}
	if len(prior) < anomalyMinSamples {
		return nil
	}
	sum := decimal.Zero
	for _, r := range prior {
		sum = sum.Add(r.Usage)
	}
	mean := sum.Div(decimal.NewFromInt(int64(len(prior)))).Round(2)
	two := decimal.NewFromInt(2)
	if usage.GreaterThan(mean.Mul(two)) || usage.Mul(two).LessThan(mean) || usage.Sub(mean).Abs().GreaterThan(maxJump) {
		return &apperr.UsageAnomaly{Usage: round2(usage), Mean: mean, Threshold: maxJump, Samples: len(prior)}
	}
	return nil
}

// Delete removes one reading. Refused when the month is settlement-locked
// or the tenant has already been billed for it (a charge row exists).
func (l *ReadingLedger) Delete(ctx context.Context, caller *Caller, id uint) error {
	if err := requireCaller(caller, "meter_reading"); err != nil {
		return err
	}
	return l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var r models.MeterReading
		if err := tx.First(&r, id).Error; err != nil {
			return storeErr("meter_reading", itoa(id), err)
		}
		var meter models.Meter
		if err := tx.First(&meter, r.MeterID).Error; err != nil {
			return storeErr("meter", itoa(r.MeterID), err)
		}
		key := meter.MeterNo + "/" + r.Month

		if locked, err := monthLocked(tx, r.Month); err != nil {
			return err
		} else if locked {
			return apperr.New(apperr.Locked, "meter_reading", key, "该月份已结算，禁止删除抄表记录")
		}

		var billed int64
		if err := tx.Model(&models.Charge{}).
			Where("tenant_id = ? AND month = ?", meter.TenantID, r.Month).
			Count(&billed).Error; err != nil {
			return storeErr("meter_reading", key, err)
		}
		if billed > 0 {
			return apperr.New(apperr.HasDependents, "meter_reading", key, "该月份已生成账单，请先删除账单")
		}

		if err := tx.Delete(&models.MeterReading{}, id).Error; err != nil {
			return storeErr("meter_reading", key, err)
		}
		return nil
	})
}

// ReadingFilter narrows List results.
type ReadingFilter struct {
	MeterID  uint
	TenantID uint
	Month    string
}

// List returns readings matching the filter, newest first.
func (l *ReadingLedger) List(ctx context.Context, f ReadingFilter) ([]models.MeterReading, error) {
	q := l.DB.WithContext(ctx).Model(&models.MeterReading{})
	if f.MeterID != 0 {
		q = q.Where("meter_id = ?", f.MeterID)
	}
	if f.TenantID != 0 {
		q = q.Joins("JOIN meters ON meters.id = meter_readings.meter_id").
			Where("meters.tenant_id = ?", f.TenantID)
	}
	if f.Month != "" {
		q = q.Where("meter_readings.month = ?", f.Month)
	}
	var out []models.MeterReading
	if err := q.Order("meter_readings.reading_date DESC, meter_readings.id DESC").Find(&out).Error; err != nil {
		return nil, storeErr("meter_reading", "", err)
	}
	return out, nil
}
