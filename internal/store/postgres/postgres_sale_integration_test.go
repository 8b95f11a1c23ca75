package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"retailpos/backend/internal/domain"
	"retailpos/backend/internal/receipt"
)

func TestCreateSaleDecrementsInventory(t *testing.T) {
	databaseURL := os.Getenv("RETAILPOS_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set RETAILPOS_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	productID := fmt.Sprintf("prod-sale-it-%d", stamp)
	sku := fmt.Sprintf("SKU-SALE-IT-%d", stamp)
	saleID := fmt.Sprintf("sale-it-%d", stamp)
	storeID := "store-it"

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sale_items WHERE sale_id = $1`, saleID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, saleID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM inventory WHERE product_id = $1`, productID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, productID)
	})

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, sku, name, category, price, cost, unit_of_measure, created_at)
		VALUES ($1, $2, 'Integration Widget', 'test', 5.00, 3.50, 'unit', now())
	`, productID, sku); err != nil {
		t.Fatalf("insert product: %v", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO inventory (id, product_id, store_id, quantity, reorder_level, last_updated)
		VALUES ($1, $2, $3, 10, 2, now())
	`, receipt.NewID("inv"), productID, storeID); err != nil {
		t.Fatalf("seed stock: %v", err)
	}

	now := time.Now().UTC()
	sale := domain.Sale{
		ID:            saleID,
		TotalAmount:   decimal.NewFromFloat(10.00),
		FinalAmount:   decimal.NewFromFloat(10.00),
		PaymentMethod: domain.PaymentCash,
		Date:          now,
		UserID:        "user-it",
		StoreID:       storeID,
		ReceiptNumber: receipt.Number(now),
		LineItems: []domain.SaleLineItem{
			{ProductID: productID, Quantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromFloat(5.00), Total: decimal.NewFromFloat(10.00)},
		},
	}
	if _, err := s.CreateSale(ctx, sale); err != nil {
		t.Fatalf("create sale: %v", err)
	}

	var qty decimal.Decimal
	if err := s.db.QueryRowContext(ctx, `
		SELECT quantity FROM inventory WHERE product_id = $1 AND store_id = $2
	`, productID, storeID).Scan(&qty); err != nil {
		t.Fatalf("query stock: %v", err)
	}
	if !qty.Equal(decimal.NewFromInt(8)) {
		t.Fatalf("expected stock 8 after sale, got %s", qty.String())
	}

	got, err := s.GetSaleByReceipt(ctx, sale.ReceiptNumber)
	if err != nil {
		t.Fatalf("get sale by receipt: %v", err)
	}
	if got.ID != saleID {
		t.Fatalf("expected sale %s, got %s", saleID, got.ID)
	}
	if len(got.LineItems) != 1 {
		t.Fatalf("expected 1 line item, got %d", len(got.LineItems))
	}
}
