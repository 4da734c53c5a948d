package ledger

import (
	"context"
	"testing"
	"time"

	"meter-billing/internal/apperr"
	"meter-billing/internal/models"

	"go.uber.org/zap"
)

func TestRecordReadingDerivesUsage(t *testing.T) {
	db := newTestDB(t)
	tn := seedTenant(t, db, "一楼办公室", models.TenantTypeOffice)
	m := seedMeter(t, db, tn.ID, "W-001", models.MeterKindWater, "100")
	l := NewReadingLedger(db, NewSettings(db), zap.NewNop())

	r, err := l.Record(context.Background(), testCaller(), RecordReadingInput{
		MeterID:     m.ID,
		ReadingDate: civil(2024, time.January, 25),
		Current:     dec(t, "120"),
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if r.Month != "2024-01" {
		t.Errorf("month = %q", r.Month)
	}
	// 首次抄表以水表初始读数为上期
	wantDecimal(t, "previous", r.Previous, "100")
	wantDecimal(t, "usage", r.Usage, "20")

	// 下一个月以上一次抄表为上期
	r2, err := l.Record(context.Background(), testCaller(), RecordReadingInput{
		MeterID:     m.ID,
		ReadingDate: civil(2024, time.February, 25),
		Current:     dec(t, "135.5"),
	})
	if err != nil {
		t.Fatalf("record second month: %v", err)
	}
	wantDecimal(t, "previous", r2.Previous, "120")
	wantDecimal(t, "usage", r2.Usage, "15.5")
}

func TestRecordReadingUpdateInPlace(t *testing.T) {
	db := newTestDB(t)
	tn := seedTenant(t, db, "二楼办公室", models.TenantTypeOffice)
	m := seedMeter(t, db, tn.ID, "W-002", models.MeterKindWater, "0")
	l := NewReadingLedger(db, NewSettings(db), zap.NewNop())

	first := seedReading(t, db, m.ID, civil(2024, time.January, 25), "10")

	// 同月重录：更新原记录，上期读数保持不变
	r, err := l.Record(context.Background(), testCaller(), RecordReadingInput{
		MeterID:     m.ID,
		ReadingDate: civil(2024, time.January, 26),
		Current:     dec(t, "12"),
	})
	if err != nil {
		t.Fatalf("re-record: %v", err)
	}
	if r.ID != first.ID {
		t.Fatalf("expected in-place update of row %d, got new row %d", first.ID, r.ID)
	}
	wantDecimal(t, "previous", r.Previous, "0")
	wantDecimal(t, "usage", r.Usage, "12")

	var count int64
	db.Model(&models.MeterReading{}).Where("meter_id = ?", m.ID).Count(&count)
	if count != 1 {
		t.Fatalf("reading rows = %d, want 1", count)
	}
}

func TestRecordReadingRejectsNonMonotonicDate(t *testing.T) {
	db := newTestDB(t)
	tn := seedTenant(t, db, "三楼办公室", models.TenantTypeOffice)
	m := seedMeter(t, db, tn.ID, "W-003", models.MeterKindWater, "0")
	l := NewReadingLedger(db, NewSettings(db), zap.NewNop())

	seedReading(t, db, m.ID, civil(2024, time.February, 25), "10")

	_, err := l.Record(context.Background(), testCaller(), RecordReadingInput{
		MeterID:     m.ID,
		ReadingDate: civil(2024, time.January, 25),
		Current:     dec(t, "20"),
	})
	wantKind(t, err, apperr.Invalid)
}

func TestRecordReadingNegativeUsage(t *testing.T) {
	db := newTestDB(t)
	tn := seedTenant(t, db, "门面甲", models.TenantTypeStorefront)
	m := seedMeter(t, db, tn.ID, "E-001", models.MeterKindElectricity, "100")
	l := NewReadingLedger(db, NewSettings(db), zap.NewNop())

	// 本期小于上期且无调整：拒绝
	_, err := l.Record(context.Background(), testCaller(), RecordReadingInput{
		MeterID:     m.ID,
		ReadingDate: civil(2024, time.January, 25),
		Current:     dec(t, "90"),
	})
	wantKind(t, err, apperr.Invalid)

	// 负调整导致用量为负：未确认时拒绝
	in := RecordReadingInput{
		MeterID:     m.ID,
		ReadingDate: civil(2024, time.January, 25),
		Current:     dec(t, "100"),
		Adjustment:  dec(t, "-15"),
	}
	_, err = l.Record(context.Background(), testCaller(), in)
	wantKind(t, err, apperr.Invalid)

	// 显式确认后放行
	in.Force = true
	r, err := l.Record(context.Background(), testCaller(), in)
	if err != nil {
		t.Fatalf("forced record: %v", err)
	}
	wantDecimal(t, "usage", r.Usage, "-15")
}

func TestRecordReadingRejectsNegativeCurrentAndFutureDate(t *testing.T) {
	db := newTestDB(t)
	tn := seedTenant(t, db, "门面乙", models.TenantTypeStorefront)
	m := seedMeter(t, db, tn.ID, "E-002", models.MeterKindElectricity, "0")
	l := NewReadingLedger(db, NewSettings(db), zap.NewNop())

	_, err := l.Record(context.Background(), testCaller(), RecordReadingInput{
		MeterID:     m.ID,
		ReadingDate: civil(2024, time.January, 25),
		Current:     dec(t, "-1"),
	})
	wantKind(t, err, apperr.Invalid)

	_, err = l.Record(context.Background(), testCaller(), RecordReadingInput{
		MeterID:     m.ID,
		ReadingDate: today().AddDate(0, 0, 1),
		Current:     dec(t, "1"),
	})
	wantKind(t, err, apperr.Invalid)
}

func TestRecordReadingAnomalyWarning(t *testing.T) {
	db := newTestDB(t)
	tn := seedTenant(t, db, "门面丙", models.TenantTypeStorefront)
	m := seedMeter(t, db, tn.ID, "W-010", models.MeterKindWater, "0")
	l := NewReadingLedger(db, NewSettings(db), zap.NewNop())

	// 三个月平稳用量，均值 10
	seedReading(t, db, m.ID, civil(2024, time.January, 25), "10")
	seedReading(t, db, m.ID, civil(2024, time.February, 25), "20")
	seedReading(t, db, m.ID, civil(2024, time.March, 25), "30")

	// 用量 270 远超均值两倍：预警
	in := RecordReadingInput{
		MeterID:     m.ID,
		ReadingDate: civil(2024, time.April, 25),
		Current:     dec(t, "300"),
	}
	_, err := l.Record(context.Background(), testCaller(), in)
	wantKind(t, err, apperr.Anomaly)

	detail, ok := apperr.AnomalyDetail(err)
	if !ok {
		t.Fatalf("anomaly error carries no detail: %v", err)
	}
	wantDecimal(t, "detail.usage", detail.Usage, "270")
	wantDecimal(t, "detail.mean", detail.Mean, "10")
	if detail.Samples != 3 {
		t.Errorf("samples = %d, want 3", detail.Samples)
	}

	// 确认后记录成功
	in.Force = true
	r, err := l.Record(context.Background(), testCaller(), in)
	if err != nil {
		t.Fatalf("forced record after anomaly: %v", err)
	}
	wantDecimal(t, "usage", r.Usage, "270")
}

func TestRecordReadingAnomalyAbsoluteJump(t *testing.T) {
	db := newTestDB(t)
	tn := seedTenant(t, db, "门面丁", models.TenantTypeStorefront)
	m := seedMeter(t, db, tn.ID, "E-010", models.MeterKindElectricity, "0")
	l := NewReadingLedger(db, NewSettings(db), zap.NewNop())

	// 均值 300，用量 550 未超两倍均值，但超出 max_usage_jump=200
	seedReading(t, db, m.ID, civil(2024, time.January, 25), "300")
	seedReading(t, db, m.ID, civil(2024, time.February, 25), "600")
	seedReading(t, db, m.ID, civil(2024, time.March, 25), "900")

	_, err := l.Record(context.Background(), testCaller(), RecordReadingInput{
		MeterID:     m.ID,
		ReadingDate: civil(2024, time.April, 25),
		Current:     dec(t, "1450"),
	})
	wantKind(t, err, apperr.Anomaly)
}

func TestRecordReadingAnomalyLowUsage(t *testing.T) {
	db := newTestDB(t)
	tn := seedTenant(t, db, "门面己", models.TenantTypeStorefront)
	m := seedMeter(t, db, tn.ID, "E-011", models.MeterKindElectricity, "0")
	l := NewReadingLedger(db, NewSettings(db), zap.NewNop())

	// 均值 300，用量骤降到 50（不足均值一半）：同样预警
	seedReading(t, db, m.ID, civil(2024, time.January, 25), "300")
	seedReading(t, db, m.ID, civil(2024, time.February, 25), "600")
	seedReading(t, db, m.ID, civil(2024, time.March, 25), "900")

	in := RecordReadingInput{
		MeterID:     m.ID,
		ReadingDate: civil(2024, time.April, 25),
		Current:     dec(t, "950"),
	}
	_, err := l.Record(context.Background(), testCaller(), in)
	wantKind(t, err, apperr.Anomaly)

	detail, ok := apperr.AnomalyDetail(err)
	if !ok {
		t.Fatalf("anomaly error carries no detail: %v", err)
	}
	wantDecimal(t, "detail.usage", detail.Usage, "50")
	wantDecimal(t, "detail.mean", detail.Mean, "300")

	in.Force = true
	r, err := l.Record(context.Background(), testCaller(), in)
	if err != nil {
		t.Fatalf("forced record after anomaly: %v", err)
	}
	wantDecimal(t, "usage", r.Usage, "50")
}

func TestRecordReadingTooFewSamplesNoAnomaly(t *testing.T) {
	db := newTestDB(t)
	tn := seedTenant(t, db, "门面戊", models.TenantTypeStorefront)
	m := seedMeter(t, db, tn.ID, "W-011", models.MeterKindWater, "0")
	l := NewReadingLedger(db, NewSettings(db), zap.NewNop())

	// 只有两个历史样本，不触发预警
	seedReading(t, db, m.ID, civil(2024, time.January, 25), "10")
	seedReading(t, db, m.ID, civil(2024, time.February, 25), "20")

	if _, err := l.Record(context.Background(), testCaller(), RecordReadingInput{
		MeterID:     m.ID,
		ReadingDate: civil(2024, time.March, 25),
		Current:     dec(t, "500"),
	}); err != nil {
		t.Fatalf("expected no anomaly with 2 samples: %v", err)
	}
}

func TestDeleteReadingGuards(t *testing.T) {
	db := newTestDB(t)
	tn := seedTenant(t, db, "一号商铺", models.TenantTypeStorefront)
	m := seedMeter(t, db, tn.ID, "W-020", models.MeterKindWater, "0")
	settings := NewSettings(db)
	l := NewReadingLedger(db, settings, zap.NewNop())
	ctx := context.Background()

	r := seedReading(t, db, m.ID, civil(2024, time.January, 25), "10")

	// 已生成账单：禁止删除
	seedPrice(t, db, models.MeterKindWater, models.PriceScopeAll, "3.50", civil(2023, time.December, 1))
	engine := NewBillingEngine(db, NewPrices(db), zap.NewNop())
	if _, err := engine.ComputeForTenant(ctx, testCaller(), tn.ID, "2024-01"); err != nil {
		t.Fatalf("compute: %v", err)
	}
	wantKind(t, l.Delete(ctx, testCaller(), r.ID), apperr.HasDependents)

	// 删除账单后可以删除
	charge, err := engine.Charge(ctx, tn.ID, "2024-01")
	if err != nil {
		t.Fatalf("load charge: %v", err)
	}
	if err := NewPaymentLedger(db).DeleteCharge(ctx, testCaller(), charge.ID); err != nil {
		t.Fatalf("delete charge: %v", err)
	}
	if err := l.Delete(ctx, testCaller(), r.ID); err != nil {
		t.Fatalf("delete reading: %v", err)
	}

	// 再删：不存在
	wantKind(t, l.Delete(ctx, testCaller(), r.ID), apperr.NotFound)
}

func TestReadingListFilters(t *testing.T) {
	db := newTestDB(t)
	tn1 := seedTenant(t, db, "商铺 A", models.TenantTypeStorefront)
	tn2 := seedTenant(t, db, "商铺 B", models.TenantTypeStorefront)
	m1 := seedMeter(t, db, tn1.ID, "W-031", models.MeterKindWater, "0")
	m2 := seedMeter(t, db, tn2.ID, "W-032", models.MeterKindWater, "0")
	l := NewReadingLedger(db, NewSettings(db), zap.NewNop())

	seedReading(t, db, m1.ID, civil(2024, time.January, 25), "10")
	seedReading(t, db, m1.ID, civil(2024, time.February, 25), "20")
	seedReading(t, db, m2.ID, civil(2024, time.January, 25), "5")

	got, err := l.List(context.Background(), ReadingFilter{Month: "2024-01"})
	if err != nil {
		t.Fatalf("list by month: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("month filter rows = %d, want 2", len(got))
	}

	got, err = l.List(context.Background(), ReadingFilter{TenantID: tn1.ID})
	if err != nil {
		t.Fatalf("list by tenant: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("tenant filter rows = %d, want 2", len(got))
	}

	got, err = l.List(context.Background(), ReadingFilter{MeterID: m2.ID})
	if err != nil {
		t.Fatalf("list by meter: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("meter filter rows = %d, want 1", len(got))
	}
}

func TestRecordReadingRequiresCaller(t *testing.T) {
	db := newTestDB(t)
	l := NewReadingLedger(db, NewSettings(db), zap.NewNop())
	_, err := l.Record(context.Background(), nil, RecordReadingInput{MeterID: 1})
	wantKind(t, err, apperr.Unauthorized)
}
