package ledger

import (
	"time"

	"meter-billing/internal/apperr"
)

// monthLayout is the canonical YYYY-MM month key.
const monthLayout = "2006-01"

// dateLayout is the canonical civil-date format. Importers normalize
// Excel serials and other variants before they reach the core.
const dateLayout = "2006-01-02"

// MonthOf returns the YYYY-MM key of a date.
func MonthOf(t time.Time) string {
	return t.Format(monthLayout)
}

// ParseMonth validates a YYYY-MM key.
func ParseMonth(month string) (time.Time, error) {
	t, err := time.Parse(monthLayout, month)
	if err != nil {
		return time.Time{}, apperr.InvalidField("month", "month", "月份格式错误，应为 YYYY-MM")
	}
	return t, nil
}

// MonthRange returns [first day of month, first day of next month).
func MonthRange(month string) (start, end time.Time, err error) {
	t, err := ParseMonth(month)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.Local)
	end = start.AddDate(0, 1, 0)
	return start, end, nil
}

// ParseDate validates a YYYY-MM-DD civil date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, apperr.InvalidField("date", "date", "日期格式错误，应为 YYYY-MM-DD")
	}
	return t, nil
}

// dateOnly truncates a timestamp to its civil date.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.Local)
}

// today returns the current civil date.
func today() time.Time {
	return dateOnly(time.Now())
}
