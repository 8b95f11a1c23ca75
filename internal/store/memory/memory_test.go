package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"retailpos/backend/internal/domain"
	"retailpos/backend/internal/receipt"
	"retailpos/backend/internal/store"
)

func testSale(productID string, qty string) domain.Sale {
	quantity := decimal.RequireFromString(qty)
	price := decimal.NewFromFloat(1.99)
	gross := quantity.Mul(price)
	now := time.Now().UTC()
	return domain.Sale{
		ID:            receipt.NewID("sale"),
		TotalAmount:   gross,
		FinalAmount:   gross,
		PaymentMethod: domain.PaymentCash,
		Date:          now,
		StoreID:       DefaultStoreID,
		ReceiptNumber: receipt.Number(now),
		LineItems: []domain.SaleLineItem{
			{ProductID: productID, Quantity: quantity, UnitPrice: price, Total: gross},
		},
	}
}

func TestCreateSaleDuplicateReceiptConflicts(t *testing.T) {
	t.Setenv("SEED_ADMIN_PASSWORD", "x")
	t.Setenv("SEED_CASHIER_PASSWORD", "x")
	s := NewSeeded()
	ctx := context.Background()

	sale := testSale("prod-milk-01", "1")
	if _, err := s.CreateSale(ctx, sale); err != nil {
		t.Fatalf("first sale failed: %v", err)
	}

	dup := testSale("prod-milk-01", "1")
	dup.ReceiptNumber = sale.ReceiptNumber
	if _, err := s.CreateSale(ctx, dup); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict on duplicate receipt, got %v", err)
	}
}

func TestCreateSaleUnstockedProduct(t *testing.T) {
	t.Setenv("SEED_ADMIN_PASSWORD", "x")
	t.Setenv("SEED_CASHIER_PASSWORD", "x")
	s := NewSeeded()
	ctx := context.Background()

	sale := testSale("prod-milk-01", "1")
	sale.StoreID = "store-without-stock"
	if _, err := s.CreateSale(ctx, sale); !errors.Is(err, store.ErrProductNotStocked) {
		t.Fatalf("expected ErrProductNotStocked, got %v", err)
	}

	unknown := testSale("prod-ghost-01", "1")
	if _, err := s.CreateSale(ctx, unknown); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown product, got %v", err)
	}
}

func TestSeededUsersLogin(t *testing.T) {
	t.Setenv("SEED_ADMIN_PASSWORD", "x")
	t.Setenv("SEED_CASHIER_PASSWORD", "x")
	s := NewSeeded()

	for _, username := range []string{"admin", "manager", "cashier", "stock"} {
		u, err := s.GetUserByUsername(context.Background(), username)
		if err != nil {
			t.Fatalf("seed user %s missing: %v", username, err)
		}
		if !u.Active {
			t.Fatalf("seed user %s inactive", username)
		}
	}
}
