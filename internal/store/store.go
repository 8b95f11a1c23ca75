package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"retailpos/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation failed")
	ErrProductNotStocked = errors.New("product not stocked at store")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrConflict          = errors.New("concurrent update conflict")
	ErrForbidden         = errors.New("forbidden")
	ErrDuplicate         = errors.New("duplicate record")
)

type Repository interface {
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProductByID(ctx context.Context, id string) (*domain.Product, error)
	GetProductBySKU(ctx context.Context, sku string) (*domain.Product, error)
	ListProducts(ctx context.Context, category string, search string, skip int, limit int) ([]domain.Product, error)
	UpdateProduct(ctx context.Context, id string, patch domain.ProductPatch) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error

	AdjustInventory(ctx context.Context, adj domain.InventoryAdjustment) (*domain.InventoryRecord, error)
	GetInventory(ctx context.Context, productID string, storeID string) (*domain.InventoryRecord, error)
	ListInventory(ctx context.Context, filter domain.InventoryFilter) ([]domain.InventoryView, error)
	SetReorderLevel(ctx context.Context, productID string, storeID string, level decimal.Decimal) (*domain.InventoryRecord, error)

	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	GetSaleByID(ctx context.Context, id string) (*domain.Sale, error)
	GetSaleByReceipt(ctx context.Context, receipt string) (*domain.Sale, error)
	ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error)

	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	GetCustomerByID(ctx context.Context, id string) (*domain.Customer, error)
	GetCustomerByPhone(ctx context.Context, phone string) (*domain.Customer, error)
	UpdateCustomer(ctx context.Context, id string, patch domain.CustomerPatch) (*domain.Customer, error)
	ListCustomers(ctx context.Context, search string, skip int, limit int) ([]domain.Customer, error)

	CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error)
	ListSuppliers(ctx context.Context) ([]domain.Supplier, error)

	SalesSummary(ctx context.Context, scope domain.StoreScope, from time.Time, to time.Time) (*domain.SalesSummary, error)
	TopProducts(ctx context.Context, scope domain.StoreScope, from time.Time, to time.Time, limit int) ([]domain.TopProduct, error)
	InventoryMetrics(ctx context.Context, scope domain.StoreScope) (*domain.InventoryMetrics, error)
	DailySales(ctx context.Context, scope domain.StoreScope, from time.Time, to time.Time) ([]domain.DailySales, error)
	CustomerInsights(ctx context.Context, limit int) ([]domain.CustomerInsight, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error)
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
}
