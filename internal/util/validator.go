package util

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ValidateAmount 验证金额（必须为正数且不超过上限）
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("amount must be positive, got %s", amount)
	}
	if amount.GreaterThanOrEqual(decimal.NewFromInt(10000000)) { // 限制最大金额为1千万
		return fmt.Errorf("amount too large, got %s", amount)
	}
	return nil
}

// ValidateDate 验证日期格式（必须为 YYYY-MM-DD）
func ValidateDate(dateStr string) error {
	if dateStr == "" {
		return fmt.Errorf("date is empty")
	}
	_, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return fmt.Errorf("invalid date format: %w", err)
	}
	return nil
}

// ValidateMonth 验证月份格式（必须为 YYYY-MM）
func ValidateMonth(monthStr string) error {
	if monthStr == "" {
		return fmt.Errorf("month is empty")
	}
	_, err := time.Parse("2006-01", monthStr)
	if err != nil {
		return fmt.Errorf("invalid month format: %w", err)
	}
	return nil
}
