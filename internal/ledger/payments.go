package ledger

import (
	"context"
	"time"

	"meter-billing/internal/apperr"
	"meter-billing/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentLedger owns payments and keeps Charge.status eagerly
// consistent: every mutation recomputes the status in the same
// transaction.
type PaymentLedger struct {
	DB *gorm.DB
}

func NewPaymentLedger(db *gorm.DB) *PaymentLedger {
	return &PaymentLedger{DB: db}
}

// RecordPaymentInput carries one payment against a charge.
type RecordPaymentInput struct {
	ChargeID    uint
	PaymentDate time.Time
	Amount      decimal.Decimal
	Method      string
	Payer       string
	Notes       string
}

func validatePaymentInput(in *RecordPaymentInput) error {
	if !in.Amount.IsPositive() {
		return apperr.InvalidField("payment", "amount", "缴费金额必须大于 0")
	}
	switch in.Method {
	case models.PayMethodCash, models.PayMethodBankTransfer, models.PayMethodWeChat, models.PayMethodAlipay:
	default:
		return apperr.InvalidField("payment", "method", "缴费方式必须是 cash、bank、wechat 或 alipay")
	}
	if in.PaymentDate.IsZero() {
		return apperr.InvalidField("payment", "payment_date", "缴费日期不能为空")
	}
	return nil
}

// Record inserts a payment and recomputes the charge status.
func (l *PaymentLedger) Record(ctx context.Context, caller *Caller, in RecordPaymentInput) (*models.Payment, error) {
	if err := requireCaller(caller, "payment"); err != nil {
		return nil, err
	}
	if err := validatePaymentInput(&in); err != nil {
		return nil, err
	}
	var p models.Payment
	err := l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var charge models.Charge
		if err := tx.First(&charge, in.ChargeID).Error; err != nil {
			return storeErr("charge", itoa(in.ChargeID), err)
		}
		if locked, err := monthLocked(tx, charge.Month); err != nil {
			return err
		} else if locked {
			return apperr.New(apperr.Locked, "payment", charge.Month, "该月份已结算，禁止登记缴费")
		}

		p = models.Payment{
			ChargeID:    in.ChargeID,
			PaymentDate: dateOnly(in.PaymentDate),
			Amount:      round2(in.Amount),
			Method:      in.Method,
			Payer:       in.Payer,
			Notes:       in.Notes,
		}
		if err := tx.Create(&p).Error; err != nil {
			return storeErr("payment", charge.Month, err)
		}
		return refreshChargeStatus(tx, &charge)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Delete removes a payment and recomputes the charge status. Refused
// when the charge's month is settlement-locked.
func (l *PaymentLedger) Delete(ctx context.Context, caller *Caller, paymentID uint) error {
	if err := requireCaller(caller, "payment"); err != nil {
		return err
	}
	return l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Payment
		if err := tx.First(&p, paymentID).Error; err != nil {
			return storeErr("payment", itoa(paymentID), err)
		}
		var charge models.Charge
		if err := tx.First(&charge, p.ChargeID).Error; err != nil {
			return storeErr("charge", itoa(p.ChargeID), err)
		}
		if locked, err := monthLocked(tx, charge.Month); err != nil {
			return err
		} else if locked {
			return apperr.New(apperr.Locked, "payment", charge.Month, "该月份已结算，禁止删除缴费记录")
		}
		if err := tx.Delete(&models.Payment{}, paymentID).Error; err != nil {
			return storeErr("payment", itoa(paymentID), err)
		}
		return refreshChargeStatus(tx, &charge)
	})
}

// DeleteCharge removes a charge. Allowed only while the charge is
// unpaid and no payments exist against it.
func (l *PaymentLedger) DeleteCharge(ctx context.Context, caller *Caller, chargeID uint) error {
	if err := requireCaller(caller, "charge"); err != nil {
		return err
	}
	return l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var charge models.Charge
		if err := tx.First(&charge, chargeID).Error; err != nil {
			return storeErr("charge", itoa(chargeID), err)
		}
		if locked, err := monthLocked(tx, charge.Month); err != nil {
			return err
		} else if locked {
			return apperr.New(apperr.Locked, "charge", charge.Month, "该月份已结算，禁止删除账单")
		}
		if charge.Status != models.ChargeStatusUnpaid {
			return apperr.New(apperr.HasDependents, "charge", charge.Month, "已缴费的账单不能删除")
		}
		var payments int64
		if err := tx.Model(&models.Payment{}).Where("charge_id = ?", chargeID).Count(&payments).Error; err != nil {
			return storeErr("charge", charge.Month, err)
		}
		if payments > 0 {
			return apperr.Newf(apperr.HasDependents, "charge", charge.Month, "存在 %d 条缴费记录", payments)
		}
		if err := tx.Delete(&models.Charge{}, chargeID).Error; err != nil {
			return storeErr("charge", charge.Month, err)
		}
		return nil
	})
}

// ListByCharge returns the payments against one charge, oldest first.
func (l *PaymentLedger) ListByCharge(ctx context.Context, chargeID uint) ([]models.Payment, error) {
	var out []models.Payment
	err := l.DB.WithContext(ctx).
		Where("charge_id = ?", chargeID).
		Order("payment_date ASC, id ASC").
		Find(&out).Error
	if err != nil {
		return nil, storeErr("payment", itoa(chargeID), err)
	}
	return out, nil
}

// Paid returns the payment sum against a charge.
func (l *PaymentLedger) Paid(ctx context.Context, chargeID uint) (decimal.Decimal, error) {
	return chargePaid(l.DB.WithContext(ctx), chargeID)
}

// chargePaid sums the payments against one charge.
func chargePaid(tx *gorm.DB, chargeID uint) (decimal.Decimal, error) {
	var raw *string
	err := tx.Model(&models.Payment{}).
		Where("charge_id = ?", chargeID).
		Select("SUM(amount)").
		Scan(&raw).Error
	if err != nil {
		return decimal.Zero, storeErr("payment", itoa(chargeID), err)
	}
	if raw == nil {
		return decimal.Zero, nil
	}
	sum, err := decimal.NewFromString(*raw)
	if err != nil {
		return decimal.Zero, apperr.Wrap(apperr.Unavailable, "payment", itoa(chargeID), err)
	}
	return round2(sum), nil
}

// statusFor derives the charge status from paid vs total.
func statusFor(paid, total decimal.Decimal) string {
	switch {
	case paid.GreaterThanOrEqual(total) && paid.IsPositive():
		return models.ChargeStatusPaid
	case paid.IsPositive():
		return models.ChargeStatusPartiallyPaid
	default:
		return models.ChargeStatusUnpaid
	}
}

// refreshChargeStatus recomputes and persists the charge status inside
// the caller's transaction.
func refreshChargeStatus(tx *gorm.DB, charge *models.Charge) error {
	paid, err := chargePaid(tx, charge.ID)
	if err != nil {
		return err
	}
	status := statusFor(paid, charge.TotalAmount)
	if status == charge.Status {
		return nil
	}
	charge.Status = status
	if err := tx.Model(&models.Charge{}).Where("id = ?", charge.ID).
		Update("status", status).Error; err != nil {
		return storeErr("charge", charge.Month, err)
	}
	return nil
}
