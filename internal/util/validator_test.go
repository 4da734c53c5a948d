package util

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestValidateAmount(t *testing.T) {
	if err := ValidateAmount(decimal.RequireFromString("100.50")); err != nil {
		t.Errorf("valid amount rejected: %v", err)
	}
	for _, bad := range []string{"0", "-1", "10000000"} {
		if err := ValidateAmount(decimal.RequireFromString(bad)); err == nil {
			t.Errorf("ValidateAmount(%s) accepted, want error", bad)
		}
	}
}

func TestValidateDate(t *testing.T) {
	if err := ValidateDate("2024-02-29"); err != nil {
		t.Errorf("valid date rejected: %v", err)
	}
	for _, bad := range []string{"", "2024-2-9", "2024/02/09", "2023-02-29"} {
		if err := ValidateDate(bad); err == nil {
			t.Errorf("ValidateDate(%q) accepted, want error", bad)
		}
	}
}

func TestValidateMonth(t *testing.T) {
	if err := ValidateMonth("2024-02"); err != nil {
		t.Errorf("valid month rejected: %v", err)
	}
	for _, bad := range []string{"", "2024", "2024-13", "2024-02-01"} {
		if err := ValidateMonth(bad); err == nil {
			t.Errorf("ValidateMonth(%q) accepted, want error", bad)
		}
	}
}
