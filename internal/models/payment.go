package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment methods, stored as stable short codes.
const (
	PayMethodCash         = "cash"
	PayMethodBankTransfer = "bank"
	PayMethodWeChat       = "wechat"
	PayMethodAlipay       = "alipay"
)

// Payment is one cash event against a charge. Multiple payments may
// exist per charge; their sum drives the charge status.
type Payment struct {
	ID          uint            `gorm:"primaryKey"`
	ChargeID    uint            `gorm:"index;not null"`
	PaymentDate time.Time       `gorm:"index;not null"`
	Amount      decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Method      string          `gorm:"size:16;not null"` // cash / bank / wechat / alipay
	Payer       string          `gorm:"size:64"`
	Notes       string          `gorm:"size:255"`
	CreatedAt   time.Time

	Charge Charge `gorm:"constraint:OnDelete:RESTRICT"`
}
