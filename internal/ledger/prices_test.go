package ledger

import (
	"context"
	"testing"
	"time"

	"meter-billing/internal/apperr"
	"meter-billing/internal/models"
)

func TestPricePutClosesPredecessor(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	prices := NewPrices(db)

	seedPrice(t, db, models.MeterKindWater, models.PriceScopeAll, "3.50", civil(2023, time.January, 1))
	seedPrice(t, db, models.MeterKindWater, models.PriceScopeAll, "3.80", civil(2024, time.June, 1))

	list, err := prices.List(ctx, models.MeterKindWater)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("price rows = %d, want 2", len(list))
	}
	// 旧版本的截止日期被置为新版本的生效日期
	var old models.Price
	if err := db.Where("unit_price = ?", "3.5").First(&old).Error; err != nil {
		t.Fatalf("load old price: %v", err)
	}
	if old.EndDate == nil || !old.EndDate.Equal(civil(2024, time.June, 1)) {
		t.Fatalf("old end_date = %v, want 2024-06-01", old.EndDate)
	}

	// 历史时点取旧价，当前取新价
	p, ok, err := prices.At(ctx, models.MeterKindWater, models.TenantTypeOffice, civil(2024, time.January, 15))
	if err != nil || !ok {
		t.Fatalf("At: %v %v", ok, err)
	}
	wantDecimal(t, "price at 2024-01-15", p, "3.50")

	p, ok, err = prices.Current(ctx, models.MeterKindWater, models.TenantTypeOffice)
	if err != nil || !ok {
		t.Fatalf("Current: %v %v", ok, err)
	}
	wantDecimal(t, "current price", p, "3.80")
}

func TestPricePutRejectsEarlierStart(t *testing.T) {
	db := newTestDB(t)
	prices := NewPrices(db)

	seedPrice(t, db, models.MeterKindWater, models.PriceScopeAll, "3.80", civil(2024, time.June, 1))

	_, err := prices.Put(context.Background(), testCaller(), PriceInput{
		Resource:  models.MeterKindWater,
		Scope:     models.PriceScopeAll,
		UnitPrice: dec(t, "3.60"),
		StartDate: civil(2023, time.June, 1),
	})
	wantKind(t, err, apperr.Conflict)
}

func TestPriceScopeSpecificityWins(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	prices := NewPrices(db)

	seedPrice(t, db, models.MeterKindElectricity, models.PriceScopeAll, "0.80", civil(2023, time.January, 1))
	seedPrice(t, db, models.MeterKindElectricity, models.PriceScopeStorefront, "1.20", civil(2023, time.January, 1))

	p, ok, err := prices.Current(ctx, models.MeterKindElectricity, models.TenantTypeStorefront)
	if err != nil || !ok {
		t.Fatalf("Current storefront: %v %v", ok, err)
	}
	wantDecimal(t, "storefront price", p, "1.20")

	p, ok, err = prices.Current(ctx, models.MeterKindElectricity, models.TenantTypeOffice)
	if err != nil || !ok {
		t.Fatalf("Current office: %v %v", ok, err)
	}
	wantDecimal(t, "office price", p, "0.80")
}

func TestPriceMissingResolvesZero(t *testing.T) {
	db := newTestDB(t)
	p, ok, err := NewPrices(db).Current(context.Background(), models.MeterKindWater, models.TenantTypeOffice)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if ok {
		t.Fatal("ok = true for missing price")
	}
	wantDecimal(t, "missing price", p, "0")
}

func TestPriceValidation(t *testing.T) {
	db := newTestDB(t)
	prices := NewPrices(db)
	ctx := context.Background()

	_, err := prices.Put(ctx, testCaller(), PriceInput{
		Resource: "gas", Scope: models.PriceScopeAll,
		UnitPrice: dec(t, "1"), StartDate: civil(2024, time.January, 1),
	})
	wantKind(t, err, apperr.Invalid)

	_, err = prices.Put(ctx, testCaller(), PriceInput{
		Resource: models.MeterKindWater, Scope: "vip",
		UnitPrice: dec(t, "1"), StartDate: civil(2024, time.January, 1),
	})
	wantKind(t, err, apperr.Invalid)

	_, err = prices.Put(ctx, testCaller(), PriceInput{
		Resource: models.MeterKindWater, Scope: models.PriceScopeAll,
		UnitPrice: dec(t, "-1"), StartDate: civil(2024, time.January, 1),
	})
	wantKind(t, err, apperr.Invalid)

	_, err = prices.Put(ctx, testCaller(), PriceInput{
		Resource: models.MeterKindWater, Scope: models.PriceScopeAll,
		UnitPrice: dec(t, "1"),
	})
	wantKind(t, err, apperr.Invalid)
}
