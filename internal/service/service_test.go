package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"botica/backend/internal/advisor"
	"botica/backend/internal/cache"
	"botica/backend/internal/domain"
	"botica/backend/internal/store"
	"botica/backend/internal/store/memory"
)

func newTestService() *Service {
	repo := memory.NewSeeded()
	engine := advisor.NewEngine(cache.NoopAdvisoryCache{}, 5*time.Second)
	return New(repo, engine, 0)
}

func adminCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{
		Username: "admin",
		Role:     "admin",
	})
}

func sellerCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{
		Username: "seller",
		Role:     "seller",
	})
}

func TestCreateSaleSnapshotsPriceAndDecrementsStock(t *testing.T) {
	svc := newTestService()
	ctx := sellerCtx()

	before, err := svc.GetProduct(ctx, "prod-paracetamol-500")
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}

	sale, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
		ClientID:      "cli-walkin",
		PaymentMethod: "cash",
		Items: []domain.SaleItemRequest{
			{ProductID: "prod-paracetamol-500", Qty: 3},
		},
	})
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}

	if sale.TotalCents != before.PriceCents*3 {
		t.Fatalf("expected total %d, got %d", before.PriceCents*3, sale.TotalCents)
	}
	if len(sale.Items) != 1 || sale.Items[0].UnitPriceCents != before.PriceCents {
		t.Fatalf("expected unit price snapshot %d, got %+v", before.PriceCents, sale.Items)
	}

	after, err := svc.GetProduct(ctx, "prod-paracetamol-500")
	if err != nil {
		t.Fatalf("get product after sale failed: %v", err)
	}
	if after.Stock != before.Stock-3 {
		t.Fatalf("expected stock %d after sale, got %d", before.Stock-3, after.Stock)
	}
}

func TestCreateSaleRejectsCumulativeDuplicateItems(t *testing.T) {
	svc := newTestService()
	adminContext := adminCtx()

	product, err := svc.CreateProduct(adminContext, domain.ProductCreateRequest{
		Name:       "Test Duplicado",
		Category:   "analgesic",
		PriceCents: 500,
		Stock:      5,
	})
	if err != nil {
		t.Fatalf("create product failed: %v", err)
	}

	// Each line fits on its own; together they exceed the 5 units available.
	_, err = svc.CreateSale(sellerCtx(), domain.SaleCreateRequest{
		ClientID:      "cli-walkin",
		PaymentMethod: "cash",
		Items: []domain.SaleItemRequest{
			{ProductID: product.ID, Qty: 3},
			{ProductID: product.ID, Qty: 3},
		},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	unchanged, err := svc.GetProduct(adminContext, product.ID)
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if unchanged.Stock != 5 {
		t.Fatalf("expected stock untouched at 5 after rejected sale, got %d", unchanged.Stock)
	}
}

func TestCreateSaleAtomicOnPartialShortage(t *testing.T) {
	svc := newTestService()
	ctx := sellerCtx()

	before, err := svc.GetProduct(ctx, "prod-ibuprofen-400")
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}

	_, err = svc.CreateSale(ctx, domain.SaleCreateRequest{
		ClientID:      "cli-maria",
		PaymentMethod: "card",
		Items: []domain.SaleItemRequest{
			{ProductID: "prod-ibuprofen-400", Qty: 2},
			{ProductID: "prod-cough-syrup", Qty: 999},
		},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	after, err := svc.GetProduct(ctx, "prod-ibuprofen-400")
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if after.Stock != before.Stock {
		t.Fatalf("expected no stock change on failed sale, got %d -> %d", before.Stock, after.Stock)
	}
}

func TestCreateSaleRejectsEmptyOrderAndUnknownClient(t *testing.T) {
	svc := newTestService()
	ctx := sellerCtx()

	_, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
		ClientID:      "cli-walkin",
		PaymentMethod: "cash",
	})
	if !errors.Is(err, store.ErrEmptyOrder) {
		t.Fatalf("expected ErrEmptyOrder, got %v", err)
	}

	_, err = svc.CreateSale(ctx, domain.SaleCreateRequest{
		ClientID:      "cli-missing",
		PaymentMethod: "cash",
		Items: []domain.SaleItemRequest{
			{ProductID: "prod-paracetamol-500", Qty: 1},
		},
	})
	if !errors.Is(err, store.ErrClientNotFound) {
		t.Fatalf("expected ErrClientNotFound, got %v", err)
	}
}

func TestCreateSaleRejectsUnknownPaymentMethod(t *testing.T) {
	svc := newTestService()

	_, err := svc.CreateSale(sellerCtx(), domain.SaleCreateRequest{
		ClientID:      "cli-walkin",
		PaymentMethod: "crypto",
		Items: []domain.SaleItemRequest{
			{ProductID: "prod-paracetamol-500", Qty: 1},
		},
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for bad payment method, got %v", err)
	}
}

func TestVoidSaleRestoresStockAndRemovesSale(t *testing.T) {
	svc := newTestService()
	ctx := sellerCtx()

	before, err := svc.GetProduct(ctx, "prod-omeprazole-20")
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}

	sale, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
		ClientID:      "cli-jorge",
		PaymentMethod: "transfer",
		Items: []domain.SaleItemRequest{
			{ProductID: "prod-omeprazole-20", Qty: 4},
		},
	})
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}

	resp, err := svc.VoidSale(ctx, sale.ID, "wrong client")
	if err != nil {
		t.Fatalf("void sale failed: %v", err)
	}
	if resp.SaleID != sale.ID {
		t.Fatalf("unexpected voided sale id: %s", resp.SaleID)
	}

	restored, err := svc.GetProduct(ctx, "prod-omeprazole-20")
	if err != nil {
		t.Fatalf("get product after void failed: %v", err)
	}
	if restored.Stock != before.Stock {
		t.Fatalf("expected stock restored to %d, got %d", before.Stock, restored.Stock)
	}

	if _, err := svc.GetSale(ctx, sale.ID); !errors.Is(err, store.ErrSaleNotFound) {
		t.Fatalf("expected voided sale to be gone, got %v", err)
	}

	if _, err := svc.VoidSale(ctx, sale.ID, "twice"); !errors.Is(err, store.ErrSaleNotFound) {
		t.Fatalf("expected second void to fail with ErrSaleNotFound, got %v", err)
	}
}

func TestSalePriceImmutableAfterCatalogUpdate(t *testing.T) {
	svc := newTestService()

	sale, err := svc.CreateSale(sellerCtx(), domain.SaleCreateRequest{
		ClientID:      "cli-walkin",
		PaymentMethod: "cash",
		Items: []domain.SaleItemRequest{
			{ProductID: "prod-vitamin-c", Qty: 2},
		},
	})
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}
	originalUnitPrice := sale.Items[0].UnitPriceCents

	newPrice := originalUnitPrice * 2
	if _, err := svc.UpdateProduct(adminCtx(), "prod-vitamin-c", domain.ProductUpdateRequest{
		PriceCents: &newPrice,
	}); err != nil {
		t.Fatalf("update product failed: %v", err)
	}

	reloaded, err := svc.GetSale(sellerCtx(), sale.ID)
	if err != nil {
		t.Fatalf("get sale failed: %v", err)
	}
	if reloaded.Items[0].UnitPriceCents != originalUnitPrice {
		t.Fatalf("expected snapshot price %d, got %d", originalUnitPrice, reloaded.Items[0].UnitPriceCents)
	}
	if reloaded.TotalCents != originalUnitPrice*2 {
		t.Fatalf("expected total %d, got %d", originalUnitPrice*2, reloaded.TotalCents)
	}
}

func TestCreateProductRequiresAdmin(t *testing.T) {
	svc := newTestService()

	_, err := svc.CreateProduct(sellerCtx(), domain.ProductCreateRequest{
		Name:       "Vendaje elastico",
		Category:   "first-aid",
		PriceCents: 700,
		Stock:      30,
	})
	if err == nil {
		t.Fatalf("expected non-admin create product to fail")
	}
}

func TestUpdateProductPatchesOnlyProvidedFields(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	before, err := svc.GetProduct(ctx, "prod-loratadine-10")
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}

	newPrice := int64(830)
	updated, err := svc.UpdateProduct(ctx, "prod-loratadine-10", domain.ProductUpdateRequest{
		PriceCents: &newPrice,
	})
	if err != nil {
		t.Fatalf("update product failed: %v", err)
	}
	if updated.PriceCents != 830 {
		t.Fatalf("expected price 830, got %d", updated.PriceCents)
	}
	if updated.Name != before.Name || updated.Stock != before.Stock {
		t.Fatalf("expected untouched fields to survive patch")
	}
}

func TestAdjustStockRejectsNegativeResult(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	product, err := svc.GetProduct(ctx, "prod-saline-500")
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}

	_, err = svc.AdjustStock(ctx, "prod-saline-500", domain.StockAdjustRequest{
		Delta:  -(product.Stock + 1),
		Reason: "breakage",
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	adjusted, err := svc.AdjustStock(ctx, "prod-saline-500", domain.StockAdjustRequest{
		Delta:  10,
		Reason: "restock",
	})
	if err != nil {
		t.Fatalf("adjust stock failed: %v", err)
	}
	if adjusted.Stock != product.Stock+10 {
		t.Fatalf("expected stock %d, got %d", product.Stock+10, adjusted.Stock)
	}
}

func TestDeleteProductBlockedBySalesHistory(t *testing.T) {
	svc := newTestService()

	_, err := svc.CreateSale(sellerCtx(), domain.SaleCreateRequest{
		ClientID:      "cli-walkin",
		PaymentMethod: "cash",
		Items: []domain.SaleItemRequest{
			{ProductID: "prod-gauze-10", Qty: 1},
		},
	})
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}

	if err := svc.DeleteProduct(adminCtx(), "prod-gauze-10"); !errors.Is(err, store.ErrProductHasSales) {
		t.Fatalf("expected ErrProductHasSales, got %v", err)
	}
}

func TestClientDocumentImmutableOnUpdate(t *testing.T) {
	svc := newTestService()
	ctx := sellerCtx()

	newPhone := "912345678"
	updated, err := svc.UpdateClient(ctx, "cli-maria", domain.ClientUpdateRequest{
		Phone: &newPhone,
	})
	if err != nil {
		t.Fatalf("update client failed: %v", err)
	}
	if updated.Document != "45821673" {
		t.Fatalf("expected document to stay 45821673, got %s", updated.Document)
	}
	if updated.Phone != "912345678" {
		t.Fatalf("expected phone updated, got %s", updated.Phone)
	}
}

func TestCreateClientRejectsDuplicateDocument(t *testing.T) {
	svc := newTestService()

	_, err := svc.CreateClient(sellerCtx(), domain.ClientCreateRequest{
		Name:     "Otro Cliente",
		Document: "45821673",
	})
	if !errors.Is(err, store.ErrDuplicateIdentity) {
		t.Fatalf("expected ErrDuplicateIdentity, got %v", err)
	}
}

func TestDailyTotalEmptyDayIsZero(t *testing.T) {
	svc := newTestService()

	total, err := svc.DailyTotal(adminCtx(), "2020-01-01")
	if err != nil {
		t.Fatalf("daily total failed: %v", err)
	}
	if total.TotalCents != 0 || total.Sales != 0 {
		t.Fatalf("expected zero totals for empty day, got %+v", total)
	}
}

func TestSalesReportMatchesRecordedSales(t *testing.T) {
	svc := newTestService()
	ctx := sellerCtx()

	first, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
		ClientID:      "cli-walkin",
		PaymentMethod: "cash",
		Items: []domain.SaleItemRequest{
			{ProductID: "prod-paracetamol-500", Qty: 2},
		},
	})
	if err != nil {
		t.Fatalf("first sale failed: %v", err)
	}
	second, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
		ClientID:      "cli-maria",
		PaymentMethod: "card",
		Items: []domain.SaleItemRequest{
			{ProductID: "prod-alcohol-70", Qty: 1},
		},
	})
	if err != nil {
		t.Fatalf("second sale failed: %v", err)
	}

	report, err := svc.SalesReport(adminCtx())
	if err != nil {
		t.Fatalf("sales report failed: %v", err)
	}
	if report.TotalAllTimeCents != first.TotalCents+second.TotalCents {
		t.Fatalf("expected all-time total %d, got %d", first.TotalCents+second.TotalCents, report.TotalAllTimeCents)
	}

	today := time.Now().UTC().Format("2006-01-02")
	var bucketTotal int64
	for _, bucket := range report.TotalsByDay {
		if bucket.Date == today {
			bucketTotal = bucket.TotalCents
		}
	}
	if bucketTotal != report.TotalAllTimeCents {
		t.Fatalf("expected today's bucket %d to match all-time total %d", bucketTotal, report.TotalAllTimeCents)
	}
}

func TestListNearExpiryUsesDefaultHorizon(t *testing.T) {
	svc := newTestService()

	products, err := svc.ListNearExpiry(sellerCtx(), 0)
	if err != nil {
		t.Fatalf("list near expiry failed: %v", err)
	}

	ids := make(map[string]bool, len(products))
	for _, product := range products {
		ids[product.ID] = true
	}
	if !ids["prod-amoxicillin-500"] || !ids["prod-cough-syrup"] {
		t.Fatalf("expected seeded near-expiry products in result, got %v", ids)
	}
	if ids["prod-vitamin-c"] {
		t.Fatalf("did not expect product without expiry date in near-expiry list")
	}
}

func TestStockAdvisoryFlagsDepletedProduct(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	product, err := svc.CreateProduct(ctx, domain.ProductCreateRequest{
		Name:         "Termometro digital",
		Category:     "device",
		PriceCents:   3200,
		Stock:        0,
		ReorderLevel: 3,
	})
	if err != nil {
		t.Fatalf("create product failed: %v", err)
	}

	advisory, err := svc.StockAdvisory(ctx, 30)
	if err != nil {
		t.Fatalf("stock advisory failed: %v", err)
	}

	found := false
	for _, alert := range advisory.Alerts {
		if alert.ProductID == product.ID && alert.Code == domain.AlertOutOfStock {
			found = true
			if alert.Severity != domain.SeverityCritical {
				t.Fatalf("expected critical severity for out of stock, got %s", alert.Severity)
			}
		}
	}
	if !found {
		t.Fatalf("expected out-of-stock alert for new product")
	}
}

func TestAuditLogsRequireAdmin(t *testing.T) {
	svc := newTestService()

	if _, err := svc.ListAuditLogs(sellerCtx(), "", 10); err == nil {
		t.Fatalf("expected seller audit log access to fail")
	}

	sale, err := svc.CreateSale(sellerCtx(), domain.SaleCreateRequest{
		ClientID:      "cli-walkin",
		PaymentMethod: "cash",
		Items: []domain.SaleItemRequest{
			{ProductID: "prod-paracetamol-500", Qty: 1},
		},
	})
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}

	logs, err := svc.ListAuditLogs(adminCtx(), "", 50)
	if err != nil {
		t.Fatalf("list audit logs failed: %v", err)
	}

	found := false
	for _, entry := range logs {
		if entry.Action == "sale_create" && entry.EntityID == sale.ID {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("expected sale_create audit entry for %s", sale.ID)
	}
}

func TestConfiguredExpiryHorizonAppliesByDefault(t *testing.T) {
	repo := memory.NewSeeded()
	engine := advisor.NewEngine(cache.NoopAdvisoryCache{}, 5*time.Second)
	svc := New(repo, engine, 400)
	ctx := sellerCtx()

	products, err := svc.ListNearExpiry(ctx, 0)
	if err != nil {
		t.Fatalf("list near expiry failed: %v", err)
	}
	found := false
	for _, p := range products {
		if p.ID == "prod-paracetamol-500" {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("a 400-day horizon should include products expiring in a year")
	}

	advisory, err := svc.StockAdvisory(ctx, 0)
	if err != nil {
		t.Fatalf("stock advisory failed: %v", err)
	}
	if advisory.HorizonDays != 400 {
		t.Fatalf("advisory horizon = %d, want 400", advisory.HorizonDays)
	}
}

func TestMonthlyTotalRespectsCalendarBoundaries(t *testing.T) {
	repo := memory.NewSeeded()
	svc := New(repo, advisor.NewEngine(cache.NoopAdvisoryCache{}, 5*time.Second), 0)
	ctx := context.Background()

	janEnd := time.Date(2024, 1, 31, 23, 59, 59, 0, time.UTC)
	febStart := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	for _, created := range []time.Time{janEnd, febStart} {
		if _, err := repo.CreateSale(ctx, domain.Sale{
			ClientID:      "cli-walkin",
			PaymentMethod: domain.PaymentCash,
			CreatedAt:     created,
			Items:         []domain.SaleLine{{ProductID: "prod-gauze-10", Qty: 1}},
		}); err != nil {
			t.Fatalf("create sale failed: %v", err)
		}
	}

	jan, err := svc.MonthlyTotal(ctx, "2024-01")
	if err != nil {
		t.Fatalf("january total failed: %v", err)
	}
	if jan.Period != "2024-01" || jan.Sales != 1 || jan.TotalCents != 340 {
		t.Fatalf("january total = %+v, want 1 sale of 340 cents", jan)
	}

	feb, err := svc.MonthlyTotal(ctx, "2024-02")
	if err != nil {
		t.Fatalf("february total failed: %v", err)
	}
	if feb.Sales != 1 || feb.TotalCents != 340 {
		t.Fatalf("february total = %+v, want 1 sale of 340 cents", feb)
	}

	report, err := svc.SalesReport(ctx)
	if err != nil {
		t.Fatalf("sales report failed: %v", err)
	}
	var sum int64
	for _, bucket := range report.TotalsByDay {
		sum += bucket.TotalCents
	}
	if sum != report.TotalAllTimeCents {
		t.Fatalf("daily buckets sum to %d, want all-time total %d", sum, report.TotalAllTimeCents)
	}
}

func TestListLowStockThresholdAndReorderFallback(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	low, err := svc.ListLowStock(ctx, 0)
	if err != nil {
		t.Fatalf("list low stock failed: %v", err)
	}
	if len(low) != 0 {
		t.Fatalf("seeded catalog has no product at its reorder level, got %d", len(low))
	}

	if _, err := svc.AdjustStock(ctx, "prod-saline-500", domain.StockAdjustRequest{Delta: -40, Reason: "breakage"}); err != nil {
		t.Fatalf("adjust stock failed: %v", err)
	}

	low, err = svc.ListLowStock(ctx, 0)
	if err != nil {
		t.Fatalf("list low stock failed: %v", err)
	}
	if len(low) != 1 || low[0].ID != "prod-saline-500" {
		t.Fatalf("reorder-level fallback should flag only the saline, got %+v", low)
	}

	// An explicit threshold overrides per-product reorder levels.
	low, err = svc.ListLowStock(ctx, 50)
	if err != nil {
		t.Fatalf("list low stock failed: %v", err)
	}
	want := map[string]bool{
		"prod-saline-500":    true,
		"prod-omeprazole-20": true,
		"prod-cough-syrup":   true,
	}
	if len(low) != len(want) {
		t.Fatalf("threshold 50 matched %d products, want %d", len(low), len(want))
	}
	for _, p := range low {
		if !want[p.ID] {
			t.Fatalf("unexpected low-stock product %s", p.ID)
		}
	}
}
