package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"meter-billing/internal/apperr"
	"meter-billing/internal/database"
	"meter-billing/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newTestDB 每个测试使用独立的临时数据库
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "billing_test.db")), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func testCaller() *Caller {
	return &Caller{ID: 1, Role: models.RoleAdmin}
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal literal %q: %v", s, err)
	}
	return d
}

func wantDecimal(t *testing.T, name string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Fatalf("%s = %s, want %s", name, got.String(), want)
	}
}

func wantKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := apperr.KindOf(err); got != kind {
		t.Fatalf("error kind = %q, want %q (err: %v)", got, kind, err)
	}
}

func civil(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

func seedTenant(t *testing.T, db *gorm.DB, name, typ string) *models.Tenant {
	t.Helper()
	tn, err := NewTenants(db).Create(context.Background(), testCaller(), TenantInput{
		Name:          name,
		Type:          typ,
		ContactPerson: "张三",
		Phone:         "13800000000",
	})
	if err != nil {
		t.Fatalf("seed tenant %s: %v", name, err)
	}
	return tn
}

func seedMeter(t *testing.T, db *gorm.DB, tenantID uint, no, kind, initial string) *models.Meter {
	t.Helper()
	m, err := NewMeters(db).Create(context.Background(), testCaller(), MeterInput{
		MeterNo:        no,
		Kind:           kind,
		TenantID:       tenantID,
		InitialReading: dec(t, initial),
	})
	if err != nil {
		t.Fatalf("seed meter %s: %v", no, err)
	}
	return m
}

func seedPrice(t *testing.T, db *gorm.DB, resource, scope, unitPrice string, start time.Time) {
	t.Helper()
	_, err := NewPrices(db).Put(context.Background(), testCaller(), PriceInput{
		Resource:  resource,
		Scope:     scope,
		UnitPrice: dec(t, unitPrice),
		StartDate: start,
	})
	if err != nil {
		t.Fatalf("seed price %s/%s: %v", resource, scope, err)
	}
}

func seedReading(t *testing.T, db *gorm.DB, meterID uint, date time.Time, current string) *models.MeterReading {
	t.Helper()
	l := NewReadingLedger(db, NewSettings(db), zap.NewNop())
	r, err := l.Record(context.Background(), testCaller(), RecordReadingInput{
		MeterID:     meterID,
		ReadingDate: date,
		Current:     dec(t, current),
		Reader:      "李四",
	})
	if err != nil {
		t.Fatalf("seed reading meter=%d %s: %v", meterID, date.Format("2006-01-02"), err)
	}
	return r
}
