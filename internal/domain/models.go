package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoleAdmin       = "admin"
	RoleManager     = "manager"
	RoleCashier     = "cashier"
	RoleStockKeeper = "stock_keeper"
)

const (
	PaymentCash   = "cash"
	PaymentCard   = "card"
	PaymentUPI    = "upi"
	PaymentWallet = "wallet"
	PaymentCheck  = "check"
)

type Product struct {
	ID            string          `json:"id"`
	SKU           string          `json:"sku"`
	Barcode       string          `json:"barcode,omitempty"`
	QRCode        string          `json:"qr_code,omitempty"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	Category      string          `json:"category,omitempty"`
	Price         decimal.Decimal `json:"price"`
	Cost          decimal.Decimal `json:"cost"`
	SupplierID    string          `json:"supplier_id,omitempty"`
	UnitOfMeasure string          `json:"unit_of_measure"`
	CreatedAt     time.Time       `json:"created_at"`
}

type ProductCreateRequest struct {
	SKU           string          `json:"sku"`
	Barcode       string          `json:"barcode,omitempty"`
	QRCode        string          `json:"qr_code,omitempty"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	Category      string          `json:"category,omitempty"`
	Price         decimal.Decimal `json:"price"`
	Cost          decimal.Decimal `json:"cost"`
	SupplierID    string          `json:"supplier_id,omitempty"`
	UnitOfMeasure string          `json:"unit_of_measure,omitempty"`
}

// ProductPatch applies only the fields that were supplied; absent fields
// leave the stored value untouched.
type ProductPatch struct {
	Name          *string          `json:"name,omitempty"`
	Description   *string          `json:"description,omitempty"`
	Category      *string          `json:"category,omitempty"`
	Barcode       *string          `json:"barcode,omitempty"`
	QRCode        *string          `json:"qr_code,omitempty"`
	Price         *decimal.Decimal `json:"price,omitempty"`
	Cost          *decimal.Decimal `json:"cost,omitempty"`
	SupplierID    *string          `json:"supplier_id,omitempty"`
	UnitOfMeasure *string          `json:"unit_of_measure,omitempty"`
}

type InventoryRecord struct {
	ID           string          `json:"id"`
	ProductID    string          `json:"product_id"`
	StoreID      string          `json:"store_id"`
	Quantity     decimal.Decimal `json:"quantity"`
	ReorderLevel decimal.Decimal `json:"reorder_level"`
	ExpiryDate   *time.Time      `json:"expiry_date,omitempty"`
	LastUpdated  time.Time       `json:"last_updated"`
}

// InventoryView is an InventoryRecord joined with the product metadata the
// read path reports alongside it.
type InventoryView struct {
	InventoryRecord
	ProductName  string          `json:"product_name"`
	ProductSKU   string          `json:"product_sku"`
	ProductPrice decimal.Decimal `json:"product_price"`
}

type InventoryAdjustment struct {
	ProductID string          `json:"product_id"`
	StoreID   string          `json:"store_id,omitempty"`
	Delta     decimal.Decimal `json:"quantity_change"`
	Reason    string          `json:"reason,omitempty"`
}

type InventoryFilter struct {
	StoreID      string
	LowStockOnly bool
	ExpiringDays int
}

type Customer struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Phone         string          `json:"phone"`
	Email         string          `json:"email,omitempty"`
	LoyaltyPoints int64           `json:"loyalty_points"`
	TotalSpent    decimal.Decimal `json:"total_spent"`
	CreatedAt     time.Time       `json:"created_at"`
}

type CustomerCreateRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email,omitempty"`
}

type CustomerPatch struct {
	Name  *string `json:"name,omitempty"`
	Phone *string `json:"phone,omitempty"`
	Email *string `json:"email,omitempty"`
}

type Supplier struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type SupplierCreateRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// CartLine is one requested line of a checkout. Duplicate product ids are
// legal and stay independent lines.
type CartLine struct {
	ProductID string          `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Discount  decimal.Decimal `json:"discount"`
}

type SaleRequest struct {
	CustomerID     string          `json:"customer_id,omitempty"`
	PaymentMethod  string          `json:"payment_method"`
	LineItems      []CartLine      `json:"line_items"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TaxRate        decimal.Decimal `json:"tax_rate"`
}

type SaleLineItem struct {
	ProductID string          `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Discount  decimal.Decimal `json:"discount"`
	Total     decimal.Decimal `json:"total"`
}

type Sale struct {
	ID             string          `json:"id"`
	CustomerID     string          `json:"customer_id,omitempty"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	FinalAmount    decimal.Decimal `json:"final_amount"`
	PaymentMethod  string          `json:"payment_method"`
	Date           time.Time       `json:"date"`
	UserID         string          `json:"user_id"`
	StoreID        string          `json:"store_id"`
	ReceiptNumber  string          `json:"receipt_number"`
	LineItems      []SaleLineItem  `json:"line_items"`
}

type SaleFilter struct {
	Scope StoreScope
	From  *time.Time
	To    *time.Time
	Skip  int
	Limit int
}

// Actor is the authenticated operator attached to a request context.
type Actor struct {
	UserID   string
	Username string
	Role     string
	StoreID  string
}

// StoreScope is the single policy decision every scoped read applies before
// touching data: either all stores (admin) or exactly one.
type StoreScope struct {
	All     bool
	StoreID string
}

func (s StoreScope) Matches(storeID string) bool {
	return s.All || s.StoreID == storeID
}

type SalesSummary struct {
	TotalSales              decimal.Decimal `json:"total_sales"`
	TotalTransactions       int64           `json:"total_transactions"`
	AverageTransactionValue decimal.Decimal `json:"average_transaction_value"`
	TotalDiscount           decimal.Decimal `json:"total_discount"`
	StartDate               time.Time       `json:"start_date"`
	EndDate                 time.Time       `json:"end_date"`
}

type TopProduct struct {
	ProductID     string          `json:"product_id"`
	ProductName   string          `json:"product_name"`
	SKU           string          `json:"sku"`
	TotalQuantity decimal.Decimal `json:"total_quantity_sold"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
}

type InventoryMetrics struct {
	TotalItems          int64           `json:"total_items"`
	LowStockItems       int64           `json:"low_stock_items"`
	OutOfStockItems     int64           `json:"out_of_stock_items"`
	TotalInventoryValue decimal.Decimal `json:"total_inventory_value"`
}

type DailySales struct {
	Date             string          `json:"date"`
	TotalSales       decimal.Decimal `json:"total_sales"`
	TransactionCount int64           `json:"transaction_count"`
}

type CustomerInsight struct {
	CustomerID    string          `json:"customer_id"`
	Name          string          `json:"name"`
	Phone         string          `json:"phone"`
	TotalSpent    decimal.Decimal `json:"total_spent"`
	LoyaltyPoints int64           `json:"loyalty_points"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	StoreID     string `json:"store_id,omitempty"`
	ExpiresAt   string `json:"expires_at"`
}

// UserAccount holds operator credentials. Password is the bcrypt hash.
type UserAccount struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	Password  string    `json:"-"`
	Role      string    `json:"role"`
	StoreID   string    `json:"store_id,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

func IsValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleManager, RoleCashier, RoleStockKeeper:
		return true
	}
	return false
}

func IsValidPaymentMethod(method string) bool {
	switch method {
	case PaymentCash, PaymentCard, PaymentUPI, PaymentWallet, PaymentCheck:
		return true
	}
	return false
}
