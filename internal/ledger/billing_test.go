package ledger

import (
	"context"
	"testing"
	"time"

	"meter-billing/internal/apperr"
	"meter-billing/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type billingBundle struct {
	DB     *gorm.DB
	Tenant *models.Tenant
	Water  *models.Meter
	Elec   *models.Meter
	Engine *BillingEngine
}

// billingFixture 准备一个有水电两块表、一月份抄表齐全的租户。
// 水：单价 3.50，用量 20；电：单价 0.80，用量 200。
func billingFixture(t *testing.T) *billingBundle {
	t.Helper()
	b := &billingBundle{DB: newTestDB(t)}
	b.Tenant = seedTenant(t, b.DB, "测试租户", models.TenantTypeOffice)
	b.Water = seedMeter(t, b.DB, b.Tenant.ID, "W-100", models.MeterKindWater, "100")
	b.Elec = seedMeter(t, b.DB, b.Tenant.ID, "E-100", models.MeterKindElectricity, "1000")
	seedPrice(t, b.DB, models.MeterKindWater, models.PriceScopeAll, "3.50", civil(2023, time.December, 1))
	seedPrice(t, b.DB, models.MeterKindElectricity, models.PriceScopeAll, "0.80", civil(2023, time.December, 1))
	seedReading(t, b.DB, b.Water.ID, civil(2024, time.January, 25), "120")
	seedReading(t, b.DB, b.Elec.ID, civil(2024, time.January, 25), "1200")
	b.Engine = NewBillingEngine(b.DB, NewPrices(b.DB), zap.NewNop())
	return b
}

func (b *billingBundle) readingLedger() *ReadingLedger {
	return NewReadingLedger(b.DB, NewSettings(b.DB), zap.NewNop())
}

func TestComputeForMonth(t *testing.T) {
	b := billingFixture(t)
	ctx := context.Background()

	res, err := b.Engine.ComputeForMonth(ctx, testCaller(), "2024-01")
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if res.NewCount != 1 || res.UpdatedCount != 0 || len(res.Failed) != 0 {
		t.Fatalf("result = %+v", res)
	}

	charge, err := b.Engine.Charge(ctx, b.Tenant.ID, "2024-01")
	if err != nil {
		t.Fatalf("load charge: %v", err)
	}
	wantDecimal(t, "water usage", charge.WaterUsage, "20")
	wantDecimal(t, "water amount", charge.WaterAmount, "70")
	wantDecimal(t, "elec usage", charge.ElecUsage, "200")
	wantDecimal(t, "elec amount", charge.ElecAmount, "160")
	wantDecimal(t, "total", charge.TotalAmount, "230")
	if charge.Status != models.ChargeStatusUnpaid {
		t.Errorf("status = %q, want unpaid", charge.Status)
	}
}

func TestComputeForMonthIdempotent(t *testing.T) {
	b := billingFixture(t)
	ctx := context.Background()

	if _, err := b.Engine.ComputeForMonth(ctx, testCaller(), "2024-01"); err != nil {
		t.Fatalf("first compute: %v", err)
	}
	res, err := b.Engine.ComputeForMonth(ctx, testCaller(), "2024-01")
	if err != nil {
		t.Fatalf("second compute: %v", err)
	}
	if res.NewCount != 0 || res.UpdatedCount != 1 {
		t.Fatalf("second run result = %+v", res)
	}

	var count int64
	b.DB.Model(&models.Charge{}).Where("tenant_id = ?", b.Tenant.ID).Count(&count)
	if count != 1 {
		t.Fatalf("charge rows = %d, want 1", count)
	}
	charge, _ := b.Engine.Charge(ctx, b.Tenant.ID, "2024-01")
	wantDecimal(t, "total after rerun", charge.TotalAmount, "230")
}

func TestComputePreservesPaymentStatus(t *testing.T) {
	b := billingFixture(t)
	ctx := context.Background()

	if _, err := b.Engine.ComputeForMonth(ctx, testCaller(), "2024-01"); err != nil {
		t.Fatalf("compute: %v", err)
	}
	charge, _ := b.Engine.Charge(ctx, b.Tenant.ID, "2024-01")

	payments := NewPaymentLedger(b.DB)
	if _, err := payments.Record(ctx, testCaller(), RecordPaymentInput{
		ChargeID:    charge.ID,
		PaymentDate: civil(2024, time.February, 1),
		Amount:      dec(t, "230"),
		Method:      models.PayMethodCash,
	}); err != nil {
		t.Fatalf("pay: %v", err)
	}

	// 重算不得把已缴状态打回未缴
	if _, err := b.Engine.ComputeForMonth(ctx, testCaller(), "2024-01"); err != nil {
		t.Fatalf("recompute: %v", err)
	}
	charge, _ = b.Engine.Charge(ctx, b.Tenant.ID, "2024-01")
	if charge.Status != models.ChargeStatusPaid {
		t.Fatalf("status after recompute = %q, want paid", charge.Status)
	}
}

func TestComputeSkipsTenantWithoutReadings(t *testing.T) {
	b := billingFixture(t)
	ctx := context.Background()
	seedTenant(t, b.DB, "无抄表租户", models.TenantTypeOffice)

	res, err := b.Engine.ComputeForMonth(ctx, testCaller(), "2024-01")
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if res.NewCount != 1 || res.SkippedCount != 1 {
		t.Fatalf("result = %+v", res)
	}
}

func TestComputeBillsDeactivatedTenant(t *testing.T) {
	b := billingFixture(t)
	ctx := context.Background()

	// 停用的租户当月有抄表仍需计费
	if err := NewTenants(b.DB).SetDeactivated(ctx, testCaller(), b.Tenant.ID, true); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	res, err := b.Engine.ComputeForMonth(ctx, testCaller(), "2024-01")
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if res.NewCount != 1 {
		t.Fatalf("deactivated tenant not billed: %+v", res)
	}
}

func TestComputeMissingPriceBillsZero(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	tn := seedTenant(t, db, "无价格租户", models.TenantTypeOffice)
	m := seedMeter(t, db, tn.ID, "W-200", models.MeterKindWater, "0")
	seedReading(t, db, m.ID, civil(2024, time.January, 25), "30")

	engine := NewBillingEngine(db, NewPrices(db), zap.NewNop())
	if _, err := engine.ComputeForTenant(ctx, testCaller(), tn.ID, "2024-01"); err != nil {
		t.Fatalf("compute: %v", err)
	}
	charge, err := engine.Charge(ctx, tn.ID, "2024-01")
	if err != nil {
		t.Fatalf("load charge: %v", err)
	}
	wantDecimal(t, "water usage", charge.WaterUsage, "30")
	wantDecimal(t, "water amount", charge.WaterAmount, "0")
	wantDecimal(t, "total", charge.TotalAmount, "0")
}

func TestComputeScopedPriceWins(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	office := seedTenant(t, db, "办公租户", models.TenantTypeOffice)
	shop := seedTenant(t, db, "门面租户", models.TenantTypeStorefront)
	mo := seedMeter(t, db, office.ID, "W-301", models.MeterKindWater, "0")
	ms := seedMeter(t, db, shop.ID, "W-302", models.MeterKindWater, "0")
	seedPrice(t, db, models.MeterKindWater, models.PriceScopeAll, "3.50", civil(2023, time.December, 1))
	seedPrice(t, db, models.MeterKindWater, models.PriceScopeStorefront, "5.00", civil(2023, time.December, 1))
	seedReading(t, db, mo.ID, civil(2024, time.January, 25), "10")
	seedReading(t, db, ms.ID, civil(2024, time.January, 25), "10")

	engine := NewBillingEngine(db, NewPrices(db), zap.NewNop())
	if _, err := engine.ComputeForMonth(ctx, testCaller(), "2024-01"); err != nil {
		t.Fatalf("compute: %v", err)
	}
	co, _ := engine.Charge(ctx, office.ID, "2024-01")
	cs, _ := engine.Charge(ctx, shop.ID, "2024-01")
	wantDecimal(t, "office unit price", co.WaterUnitPrice, "3.50")
	wantDecimal(t, "storefront unit price", cs.WaterUnitPrice, "5.00")
}

func TestComputeRejectsBadMonth(t *testing.T) {
	b := billingFixture(t)
	_, err := b.Engine.ComputeForMonth(context.Background(), testCaller(), "2024/01")
	wantKind(t, err, apperr.Invalid)
}
