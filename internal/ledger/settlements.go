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

// SettlementLedger owns the monthly close-out records.
type SettlementLedger struct {
	DB *gorm.DB
}

func NewSettlementLedger(db *gorm.DB) *SettlementLedger {
	return &SettlementLedger{DB: db}
}

// monthLocked is the lock predicate shared with the reading and payment
// ledgers: a settlement with a non-empty settle date freezes the month.
func monthLocked(tx *gorm.DB, month string) (bool, error) {
	var count int64
	err := tx.Model(&models.Settlement{}).
		Where("month = ? AND settle_date IS NOT NULL", month).
		Count(&count).Error
	if err != nil {
		return false, storeErr("settlement", month, err)
	}
	return count > 0, nil
}

// IsLocked reports whether the month is settlement-locked.
func (l *SettlementLedger) IsLocked(ctx context.Context, month string) (bool, error) {
	return monthLocked(l.DB.WithContext(ctx), month)
}

// SettlementInput carries one monthly close-out. When TotalAmount is
// nil the month's payment sum is used.
type SettlementInput struct {
	Month       string
	SettleDate  time.Time
	TotalAmount *decimal.Decimal
	Cashier     string
	Notes       string
}

// Upsert creates or updates the settlement for a month.
func (l *SettlementLedger) Upsert(ctx context.Context, caller *Caller, in SettlementInput) (*models.Settlement, error) {
	if err := requireCaller(caller, "settlement"); err != nil {
		return nil, err
	}
	monthStart, _, err := MonthRange(in.Month)
	if err != nil {
		return nil, err
	}
	settleDate := dateOnly(in.SettleDate)
	if settleDate.After(today()) {
		return nil, apperr.InvalidField("settlement", "settle_date", "结算日期不能晚于今天")
	}
	if settleDate.Before(monthStart) {
		return nil, apperr.InvalidField("settlement", "settle_date", "结算日期不能早于结算月份的第一天")
	}

	var out models.Settlement
	err = l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		total := decimal.Zero
		if in.TotalAmount != nil {
			if in.TotalAmount.IsNegative() {
				return apperr.InvalidField("settlement", "total_amount", "结算金额不能为负")
			}
			total = round2(*in.TotalAmount)
		} else {
			sum, err := monthPaymentSum(tx, in.Month)
			if err != nil {
				return err
			}
			total = sum
		}

		var existing models.Settlement
		err := tx.Where("month = ?", in.Month).First(&existing).Error
		switch {
		case err == nil:
			existing.SettleDate = &settleDate
			existing.TotalAmount = total
			existing.Cashier = in.Cashier
			existing.Notes = in.Notes
			if err := tx.Save(&existing).Error; err != nil {
				return storeErr("settlement", in.Month, err)
			}
			out = existing
			return nil
		case errors.Is(err, gorm.ErrRecordNotFound):
			out = models.Settlement{
				Month:       in.Month,
				SettleDate:  &settleDate,
				TotalAmount: total,
				Cashier:     in.Cashier,
				Notes:       in.Notes,
			}
			if err := tx.Create(&out).Error; err != nil {
				return storeErr("settlement", in.Month, err)
			}
			return nil
		default:
			return storeErr("settlement", in.Month, err)
		}
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// monthPaymentSum sums payment amounts whose charge lies in the month.
func monthPaymentSum(tx *gorm.DB, month string) (decimal.Decimal, error) {
	var raw *string
	err := tx.Model(&models.Payment{}).
		Joins("JOIN charges ON charges.id = payments.charge_id").
		Where("charges.month = ?", month).
		Select("SUM(payments.amount)").
		Scan(&raw).Error
	if err != nil {
		return decimal.Zero, storeErr("payment", month, err)
	}
	if raw == nil {
		return decimal.Zero, nil
	}
	sum, err := decimal.NewFromString(*raw)
	if err != nil {
		return decimal.Zero, apperr.Wrap(apperr.Unavailable, "payment", month, err)
	}
	return round2(sum), nil
}

// Delete removes a settlement, unlocking its month. Callers confirm
// with the user before invoking.
func (l *SettlementLedger) Delete(ctx context.Context, caller *Caller, id uint) error {
	if err := requireCaller(caller, "settlement"); err != nil {
		return err
	}
	res := l.DB.WithContext(ctx).Delete(&models.Settlement{}, id)
	if res.Error != nil {
		return storeErr("settlement", itoa(id), res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.New(apperr.NotFound, "settlement", itoa(id), "结算记录不存在")
	}
	return nil
}

// List returns settlements, newest month first.
func (l *SettlementLedger) List(ctx context.Context) ([]models.Settlement, error) {
	var out []models.Settlement
	if err := l.DB.WithContext(ctx).Order("month DESC").Find(&out).Error; err != nil {
		return nil, storeErr("settlement", "", err)
	}
	return out, nil
}
