package ledger

import (
	"context"
	"testing"
	"time"

	"meter-billing/internal/models"
)

func TestArrears(t *testing.T) {
	b, charge, payments := paidFixture(t)
	ctx := context.Background()
	summaries := NewSummaries(b.DB)

	rows, err := summaries.Arrears(ctx, "")
	if err != nil {
		t.Fatalf("arrears: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("arrears rows = %d, want 1", len(rows))
	}
	wantDecimal(t, "due", rows[0].Due, "230")
	if rows[0].TenantName != "测试租户" || rows[0].Month != "2024-01" {
		t.Fatalf("row = %+v", rows[0])
	}

	// 部分缴纳后欠费减少
	if _, err := payments.Record(ctx, testCaller(), RecordPaymentInput{
		ChargeID:    charge.ID,
		PaymentDate: civil(2024, time.February, 1),
		Amount:      dec(t, "200"),
		Method:      models.PayMethodCash,
	}); err != nil {
		t.Fatalf("pay: %v", err)
	}
	rows, err = summaries.Arrears(ctx, "2024-01")
	if err != nil {
		t.Fatalf("arrears: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("arrears rows = %d, want 1", len(rows))
	}
	wantDecimal(t, "due", rows[0].Due, "30")
	wantDecimal(t, "paid", rows[0].Paid, "200")
	if rows[0].Status != models.ChargeStatusPartiallyPaid {
		t.Errorf("status = %q", rows[0].Status)
	}

	// 缴清后不再出现
	if _, err := payments.Record(ctx, testCaller(), RecordPaymentInput{
		ChargeID:    charge.ID,
		PaymentDate: civil(2024, time.February, 2),
		Amount:      dec(t, "30"),
		Method:      models.PayMethodCash,
	}); err != nil {
		t.Fatalf("pay off: %v", err)
	}
	rows, _ = summaries.Arrears(ctx, "")
	if len(rows) != 0 {
		t.Fatalf("arrears after payoff = %d rows", len(rows))
	}
}

func TestArrearsRepairsStaleStatus(t *testing.T) {
	b, charge, payments := paidFixture(t)
	ctx := context.Background()

	if _, err := payments.Record(ctx, testCaller(), RecordPaymentInput{
		ChargeID:    charge.ID,
		PaymentDate: civil(2024, time.February, 1),
		Amount:      dec(t, "100"),
		Method:      models.PayMethodCash,
	}); err != nil {
		t.Fatalf("pay: %v", err)
	}
	// 人为弄脏落库状态
	if err := b.DB.Model(&models.Charge{}).Where("id = ?", charge.ID).
		Update("status", models.ChargeStatusPaid).Error; err != nil {
		t.Fatalf("corrupt status: %v", err)
	}

	rows, err := NewSummaries(b.DB).Arrears(ctx, "")
	if err != nil {
		t.Fatalf("arrears: %v", err)
	}
	if len(rows) != 1 || rows[0].Status != models.ChargeStatusPartiallyPaid {
		t.Fatalf("rows = %+v", rows)
	}
	var reloaded models.Charge
	b.DB.First(&reloaded, charge.ID)
	if reloaded.Status != models.ChargeStatusPartiallyPaid {
		t.Fatalf("stored status not repaired: %q", reloaded.Status)
	}
}

func TestMonthlyReceived(t *testing.T) {
	b, charge, payments := paidFixture(t)
	ctx := context.Background()

	for _, p := range []struct {
		amount string
		method string
	}{
		{"100", models.PayMethodCash},
		{"80", models.PayMethodWeChat},
		{"50", models.PayMethodCash},
	} {
		if _, err := payments.Record(ctx, testCaller(), RecordPaymentInput{
			ChargeID:    charge.ID,
			PaymentDate: civil(2024, time.February, 1),
			Amount:      dec(t, p.amount),
			Method:      p.method,
		}); err != nil {
			t.Fatalf("pay %s: %v", p.amount, err)
		}
	}

	res, err := NewSummaries(b.DB).MonthlyReceived(ctx, "2024-01")
	if err != nil {
		t.Fatalf("monthly received: %v", err)
	}
	wantDecimal(t, "total", res.Total, "230")
	if len(res.ByMethod) != 2 {
		t.Fatalf("method buckets = %+v", res.ByMethod)
	}
	for _, m := range res.ByMethod {
		switch m.Method {
		case models.PayMethodCash:
			wantDecimal(t, "cash", m.Amount, "150")
		case models.PayMethodWeChat:
			wantDecimal(t, "wechat", m.Amount, "80")
		default:
			t.Errorf("unexpected method %q", m.Method)
		}
	}
	if len(res.ByType) != 1 || res.ByType[0].TenantType != models.TenantTypeOffice {
		t.Fatalf("type buckets = %+v", res.ByType)
	}
	wantDecimal(t, "office received", res.ByType[0].Amount, "230")
}

func TestDashboard(t *testing.T) {
	b, charge, payments := paidFixture(t)
	ctx := context.Background()

	if _, err := payments.Record(ctx, testCaller(), RecordPaymentInput{
		ChargeID:    charge.ID,
		PaymentDate: civil(2024, time.February, 1),
		Amount:      dec(t, "30"),
		Method:      models.PayMethodAlipay,
	}); err != nil {
		t.Fatalf("pay: %v", err)
	}

	res, err := NewSummaries(b.DB).Dashboard(ctx, "2024-01")
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if res.TenantsTotal != 1 || res.WaterMeters != 1 || res.ElectricityMeters != 1 {
		t.Fatalf("counts = %+v", res)
	}
	wantDecimal(t, "month water", res.MonthWaterAmount, "70")
	wantDecimal(t, "month elec", res.MonthElecAmount, "160")
	wantDecimal(t, "month total", res.MonthTotalAmount, "230")
	wantDecimal(t, "unpaid total", res.UnpaidTotal, "200")
	if res.UnpaidCharges != 1 {
		t.Errorf("unpaid charges = %d", res.UnpaidCharges)
	}
}
