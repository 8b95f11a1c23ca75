package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"retailpos/backend/internal/domain"
	"retailpos/backend/internal/receipt"
	"retailpos/backend/internal/store"
)

const DefaultStoreID = "store-1"

type Store struct {
	mu              sync.RWMutex
	productsByID    map[string]domain.Product
	productIDBySKU  map[string]string
	inventoryByKey  map[string]domain.InventoryRecord
	salesByID       map[string]*domain.Sale
	salesByReceipt  map[string]*domain.Sale
	customersByID   map[string]domain.Customer
	suppliersByID   map[string]domain.Supplier
	usersByUsername map[string]domain.UserAccount
}

func invKey(productID, storeID string) string {
	return productID + "|" + storeID
}

// seedUsers builds the initial in-memory operator accounts for dev/demo
// mode. Credentials come from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD;
// if unset, hardcoded dev defaults are used with a warning. These accounts
// are never used in production (the backend uses PostgreSQL when
// DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
		storeID  string
	}{
		{"admin", adminPwd, domain.RoleAdmin, ""},
		{"manager", cashierPwd, domain.RoleManager, DefaultStoreID},
		{"cashier", cashierPwd, domain.RoleCashier, DefaultStoreID},
		{"stock", cashierPwd, domain.RoleStockKeeper, DefaultStoreID},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			ID:        receipt.NewID("user"),
			Username:  u.username,
			Email:     u.username + "@retailpos.local",
			Password:  string(hash),
			Role:      u.role,
			StoreID:   u.storeID,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func New() *Store {
	return &Store{
		productsByID:    make(map[string]domain.Product),
		productIDBySKU:  make(map[string]string),
		inventoryByKey:  make(map[string]domain.InventoryRecord),
		salesByID:       make(map[string]*domain.Sale),
		salesByReceipt:  make(map[string]*domain.Sale),
		customersByID:   make(map[string]domain.Customer),
		suppliersByID:   make(map[string]domain.Supplier),
		usersByUsername: make(map[string]domain.UserAccount),
	}
}

func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()

	products := []domain.Product{
		{ID: "prod-rice-01", SKU: "SKU-RICE-01", Name: "Basmati Rice 5kg", Category: "grocery", Price: decimal.NewFromFloat(12.50), Cost: decimal.NewFromFloat(9.80), UnitOfMeasure: "bag"},
		{ID: "prod-milk-01", SKU: "SKU-MILK-01", Name: "Whole Milk 1L", Category: "dairy", Price: decimal.NewFromFloat(1.99), Cost: decimal.NewFromFloat(1.40), UnitOfMeasure: "carton"},
		{ID: "prod-bread-01", SKU: "SKU-BREAD-01", Name: "Wheat Bread Loaf", Category: "bakery", Price: decimal.NewFromFloat(2.49), Cost: decimal.NewFromFloat(1.60), UnitOfMeasure: "loaf"},
		{ID: "prod-eggs-01", SKU: "SKU-EGGS-01", Name: "Eggs Dozen", Category: "dairy", Price: decimal.NewFromFloat(3.29), Cost: decimal.NewFromFloat(2.50), UnitOfMeasure: "dozen"},
		{ID: "prod-coffee-01", SKU: "SKU-COFFEE-01", Name: "Ground Coffee 250g", Category: "beverage", Price: decimal.NewFromFloat(6.75), Cost: decimal.NewFromFloat(4.90), UnitOfMeasure: "pack"},
		{ID: "prod-sugar-01", SKU: "SKU-SUGAR-01", Name: "Sugar 1kg", Category: "grocery", Price: decimal.NewFromFloat(1.80), Cost: decimal.NewFromFloat(1.30), UnitOfMeasure: "bag"},
		{ID: "prod-apple-01", SKU: "SKU-APPLE-01", Name: "Apples (per kg)", Category: "produce", Price: decimal.NewFromFloat(2.99), Cost: decimal.NewFromFloat(2.10), UnitOfMeasure: "kg"},
		{ID: "prod-soap-01", SKU: "SKU-SOAP-01", Name: "Bath Soap Bar", Category: "household", Price: decimal.NewFromFloat(1.25), Cost: decimal.NewFromFloat(0.80), UnitOfMeasure: "bar"},
	}
	for _, p := range products {
		p.CreatedAt = now
		s.productsByID[p.ID] = p
		s.productIDBySKU[p.SKU] = p.ID
		key := invKey(p.ID, DefaultStoreID)
		s.inventoryByKey[key] = domain.InventoryRecord{
			ID:           receipt.NewID("inv"),
			ProductID:    p.ID,
			StoreID:      DefaultStoreID,
			Quantity:     decimal.NewFromInt(120),
			ReorderLevel: decimal.NewFromInt(10),
			LastUpdated:  now,
		}
	}

	s.usersByUsername = seedUsers()
	return s
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.productIDBySKU[product.SKU]; exists {
		return nil, fmt.Errorf("sku %s: %w", product.SKU, store.ErrDuplicate)
	}
	if product.ID == "" {
		product.ID = receipt.NewID("prod")
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	s.productsByID[product.ID] = product
	s.productIDBySKU[product.SKU] = product.ID
	out := product
	return &out, nil
}

func (s *Store) GetProductByID(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.productsByID[id]
	if !ok {
		return nil, fmt.Errorf("product %s: %w", id, store.ErrNotFound)
	}
	out := p
	return &out, nil
}

func (s *Store) GetProductBySKU(_ context.Context, sku string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.productIDBySKU[sku]
	if !ok {
		return nil, fmt.Errorf("product sku %s: %w", sku, store.ErrNotFound)
	}
	p := s.productsByID[id]
	return &p, nil
}

func (s *Store) ListProducts(_ context.Context, category string, search string, skip int, limit int) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(search)
	products := make([]domain.Product, 0, len(s.productsByID))
	for _, p := range s.productsByID {
		if category != "" && p.Category != category {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(p.Name), needle) && !strings.Contains(strings.ToLower(p.SKU), needle) {
			continue
		}
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		return strings.Compare(a.Name, b.Name)
	})
	return paginate(products, skip, limit), nil
}

func (s *Store) UpdateProduct(_ context.Context, id string, patch domain.ProductPatch) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.productsByID[id]
	if !ok {
		return nil, fmt.Errorf("product %s: %w", id, store.ErrNotFound)
	}
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Category != nil {
		p.Category = *patch.Category
	}
	if patch.Barcode != nil {
		p.Barcode = *patch.Barcode
	}
	if patch.QRCode != nil {
		p.QRCode = *patch.QRCode
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.Cost != nil {
		p.Cost = *patch.Cost
	}
	if patch.SupplierID != nil {
		p.SupplierID = *patch.SupplierID
	}
	if patch.UnitOfMeasure != nil {
		p.UnitOfMeasure = *patch.UnitOfMeasure
	}
	s.productsByID[id] = p
	out := p
	return &out, nil
}

// DeleteProduct refuses to remove a product that appears in sale history or
// still carries nonzero stock anywhere.
func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.productsByID[id]
	if !ok {
		return fmt.Errorf("product %s: %w", id, store.ErrNotFound)
	}
	for _, sale := range s.salesByID {
		for _, line := range sale.LineItems {
			if line.ProductID == id {
				return fmt.Errorf("product %s has sale history: %w", id, store.ErrValidation)
			}
		}
	}
	for key, rec := range s.inventoryByKey {
		if rec.ProductID == id {
			if rec.Quantity.IsPositive() {
				return fmt.Errorf("product %s still has stock: %w", id, store.ErrValidation)
			}
			delete(s.inventoryByKey, key)
		}
	}
	delete(s.productIDBySKU, p.SKU)
	delete(s.productsByID, id)
	return nil
}

// AdjustInventory applies a signed delta, lazily creating the record at the
// store if missing. The resulting quantity clamps at zero rather than going
// negative.
func (s *Store) AdjustInventory(_ context.Context, adj domain.InventoryAdjustment) (*domain.InventoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.productsByID[adj.ProductID]; !ok {
		return nil, fmt.Errorf("product %s: %w", adj.ProductID, store.ErrNotFound)
	}
	key := invKey(adj.ProductID, adj.StoreID)
	rec, ok := s.inventoryByKey[key]
	if !ok {
		rec = domain.InventoryRecord{
			ID:        receipt.NewID("inv"),
			ProductID: adj.ProductID,
			StoreID:   adj.StoreID,
			Quantity:  decimal.Zero,
		}
	}
	next := rec.Quantity.Add(adj.Delta)
	if next.IsNegative() {
		next = decimal.Zero
	}
	rec.Quantity = next
	rec.LastUpdated = time.Now().UTC()
	s.inventoryByKey[key] = rec
	out := rec
	return &out, nil
}

func (s *Store) GetInventory(_ context.Context, productID string, storeID string) (*domain.InventoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.inventoryByKey[invKey(productID, storeID)]
	if !ok {
		return nil, fmt.Errorf("inventory for product %s at %s: %w", productID, storeID, store.ErrNotFound)
	}
	out := rec
	return &out, nil
}

func (s *Store) ListInventory(_ context.Context, filter domain.InventoryFilter) ([]domain.InventoryView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now().UTC()
	views := make([]domain.InventoryView, 0, len(s.inventoryByKey))
	for _, rec := range s.inventoryByKey {
		if filter.StoreID != "" && rec.StoreID != filter.StoreID {
			continue
		}
		if filter.LowStockOnly && rec.Quantity.GreaterThan(rec.ReorderLevel) {
			continue
		}
		if filter.ExpiringDays > 0 {
			if rec.ExpiryDate == nil {
				continue
			}
			cutoff := now.AddDate(0, 0, filter.ExpiringDays)
			if rec.ExpiryDate.After(cutoff) {
				continue
			}
		}
		p := s.productsByID[rec.ProductID]
		views = append(views, domain.InventoryView{
			InventoryRecord: rec,
			ProductName:     p.Name,
			ProductSKU:      p.SKU,
			ProductPrice:    p.Price,
		})
	}
	slices.SortFunc(views, func(a, b domain.InventoryView) int {
		return strings.Compare(a.ProductName, b.ProductName)
	})
	return views, nil
}

func (s *Store) SetReorderLevel(_ context.Context, productID string, storeID string, level decimal.Decimal) (*domain.InventoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := invKey(productID, storeID)
	rec, ok := s.inventoryByKey[key]
	if !ok {
		return nil, fmt.Errorf("inventory for product %s at %s: %w", productID, storeID, store.ErrNotFound)
	}
	rec.ReorderLevel = level
	rec.LastUpdated = time.Now().UTC()
	s.inventoryByKey[key] = rec
	out := rec
	return &out, nil
}

// CreateSale commits a checkout as one atomic unit. Stock for every line is
// validated and decremented under the lock, loyalty is accrued, and the sale
// record is stored. Any failure leaves every balance untouched.
func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.salesByReceipt[sale.ReceiptNumber]; exists {
		return nil, fmt.Errorf("receipt %s: %w", sale.ReceiptNumber, store.ErrConflict)
	}

	// Stage decrements per inventory record so duplicate lines for the same
	// product accumulate against one balance before anything is applied.
	staged := make(map[string]decimal.Decimal)
	for _, line := range sale.LineItems {
		product, ok := s.productsByID[line.ProductID]
		if !ok {
			return nil, fmt.Errorf("product %s: %w", line.ProductID, store.ErrNotFound)
		}
		key := invKey(line.ProductID, sale.StoreID)
		rec, ok := s.inventoryByKey[key]
		if !ok {
			return nil, fmt.Errorf("product %s (%s): %w", product.Name, line.ProductID, store.ErrProductNotStocked)
		}
		pending := staged[key].Add(line.Quantity)
		if pending.GreaterThan(rec.Quantity) {
			return nil, fmt.Errorf("product %s (%s) has %s, requested %s: %w",
				product.Name, line.ProductID, rec.Quantity.String(), pending.String(), store.ErrInsufficientStock)
		}
		staged[key] = pending
	}

	now := time.Now().UTC()
	for key, qty := range staged {
		rec := s.inventoryByKey[key]
		rec.Quantity = rec.Quantity.Sub(qty)
		rec.LastUpdated = now
		s.inventoryByKey[key] = rec
	}

	if sale.CustomerID != "" {
		c, ok := s.customersByID[sale.CustomerID]
		if ok {
			c.TotalSpent = c.TotalSpent.Add(sale.FinalAmount)
			c.LoyaltyPoints += sale.FinalAmount.Div(decimal.NewFromInt(10)).IntPart()
			s.customersByID[sale.CustomerID] = c
		}
	}

	stored := sale
	s.salesByID[stored.ID] = &stored
	s.salesByReceipt[stored.ReceiptNumber] = &stored
	out := stored
	return &out, nil
}

func (s *Store) GetSaleByID(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.salesByID[id]
	if !ok {
		return nil, fmt.Errorf("sale %s: %w", id, store.ErrNotFound)
	}
	out := *sale
	return &out, nil
}

func (s *Store) GetSaleByReceipt(_ context.Context, receiptNumber string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.salesByReceipt[receiptNumber]
	if !ok {
		return nil, fmt.Errorf("receipt %s: %w", receiptNumber, store.ErrNotFound)
	}
	out := *sale
	return &out, nil
}

func (s *Store) ListSales(_ context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0, len(s.salesByID))
	for _, sale := range s.salesByID {
		if !filter.Scope.Matches(sale.StoreID) {
			continue
		}
		if filter.From != nil && sale.Date.Before(*filter.From) {
			continue
		}
		if filter.To != nil && sale.Date.After(*filter.To) {
			continue
		}
		sales = append(sales, *sale)
	}
	slices.SortFunc(sales, func(a, b domain.Sale) int {
		return b.Date.Compare(a.Date)
	})
	return paginate(sales, filter.Skip, filter.Limit), nil
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.customersByID {
		if c.Phone == customer.Phone {
			return nil, fmt.Errorf("phone %s: %w", customer.Phone, store.ErrDuplicate)
		}
	}
	if customer.ID == "" {
		customer.ID = receipt.NewID("cust")
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}
	customer.TotalSpent = decimal.Zero
	s.customersByID[customer.ID] = customer
	out := customer
	return &out, nil
}

func (s *Store) GetCustomerByID(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customersByID[id]
	if !ok {
		return nil, fmt.Errorf("customer %s: %w", id, store.ErrNotFound)
	}
	out := c
	return &out, nil
}

func (s *Store) GetCustomerByPhone(_ context.Context, phone string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.customersByID {
		if c.Phone == phone {
			out := c
			return &out, nil
		}
	}
	return nil, fmt.Errorf("customer phone %s: %w", phone, store.ErrNotFound)
}

func (s *Store) UpdateCustomer(_ context.Context, id string, patch domain.CustomerPatch) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.customersByID[id]
	if !ok {
		return nil, fmt.Errorf("customer %s: %w", id, store.ErrNotFound)
	}
	if patch.Phone != nil && *patch.Phone != c.Phone {
		for otherID, other := range s.customersByID {
			if otherID != id && other.Phone == *patch.Phone {
				return nil, fmt.Errorf("phone %s: %w", *patch.Phone, store.ErrDuplicate)
			}
		}
		c.Phone = *patch.Phone
	}
	if patch.Name != nil {
		c.Name = *patch.Name
	}
	if patch.Email != nil {
		c.Email = *patch.Email
	}
	s.customersByID[id] = c
	out := c
	return &out, nil
}

func (s *Store) ListCustomers(_ context.Context, search string, skip int, limit int) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(search)
	customers := make([]domain.Customer, 0, len(s.customersByID))
	for _, c := range s.customersByID {
		if needle != "" && !strings.Contains(strings.ToLower(c.Name), needle) && !strings.Contains(c.Phone, needle) {
			continue
		}
		customers = append(customers, c)
	}
	slices.SortFunc(customers, func(a, b domain.Customer) int {
		return strings.Compare(a.Name, b.Name)
	})
	return paginate(customers, skip, limit), nil
}

func (s *Store) CreateSupplier(_ context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if supplier.ID == "" {
		supplier.ID = receipt.NewID("sup")
	}
	if supplier.CreatedAt.IsZero() {
		supplier.CreatedAt = time.Now().UTC()
	}
	s.suppliersByID[supplier.ID] = supplier
	out := supplier
	return &out, nil
}

func (s *Store) ListSuppliers(_ context.Context) ([]domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	suppliers := make([]domain.Supplier, 0, len(s.suppliersByID))
	for _, sup := range s.suppliersByID {
		suppliers = append(suppliers, sup)
	}
	slices.SortFunc(suppliers, func(a, b domain.Supplier) int {
		return strings.Compare(a.Name, b.Name)
	})
	return suppliers, nil
}

func (s *Store) SalesSummary(_ context.Context, scope domain.StoreScope, from time.Time, to time.Time) (*domain.SalesSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := domain.SalesSummary{
		TotalSales:              decimal.Zero,
		AverageTransactionValue: decimal.Zero,
		TotalDiscount:           decimal.Zero,
		StartDate:               from,
		EndDate:                 to,
	}
	for _, sale := range s.salesByID {
		if !scope.Matches(sale.StoreID) || sale.Date.Before(from) || sale.Date.After(to) {
			continue
		}
		summary.TotalSales = summary.TotalSales.Add(sale.FinalAmount)
		summary.TotalDiscount = summary.TotalDiscount.Add(sale.DiscountAmount)
		summary.TotalTransactions++
	}
	if summary.TotalTransactions > 0 {
		summary.AverageTransactionValue = summary.TotalSales.
			Div(decimal.NewFromInt(summary.TotalTransactions)).Round(4)
	}
	return &summary, nil
}

func (s *Store) TopProducts(_ context.Context, scope domain.StoreScope, from time.Time, to time.Time, limit int) ([]domain.TopProduct, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byProduct := make(map[string]*domain.TopProduct)
	for _, sale := range s.salesByID {
		if !scope.Matches(sale.StoreID) || sale.Date.Before(from) || sale.Date.After(to) {
			continue
		}
		for _, line := range sale.LineItems {
			agg, ok := byProduct[line.ProductID]
			if !ok {
				p := s.productsByID[line.ProductID]
				agg = &domain.TopProduct{
					ProductID:     line.ProductID,
					ProductName:   p.Name,
					SKU:           p.SKU,
					TotalQuantity: decimal.Zero,
					TotalRevenue:  decimal.Zero,
				}
				byProduct[line.ProductID] = agg
			}
			agg.TotalQuantity = agg.TotalQuantity.Add(line.Quantity)
			agg.TotalRevenue = agg.TotalRevenue.Add(line.Total)
		}
	}

	top := make([]domain.TopProduct, 0, len(byProduct))
	for _, agg := range byProduct {
		top = append(top, *agg)
	}
	slices.SortFunc(top, func(a, b domain.TopProduct) int {
		return b.TotalQuantity.Cmp(a.TotalQuantity)
	})
	if limit > 0 && len(top) > limit {
		top = top[:limit]
	}
	return top, nil
}

func (s *Store) InventoryMetrics(_ context.Context, scope domain.StoreScope) (*domain.InventoryMetrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	metrics := domain.InventoryMetrics{TotalInventoryValue: decimal.Zero}
	for _, rec := range s.inventoryByKey {
		if !scope.Matches(rec.StoreID) {
			continue
		}
		metrics.TotalItems++
		if rec.Quantity.IsZero() {
			metrics.OutOfStockItems++
		} else if !rec.Quantity.GreaterThan(rec.ReorderLevel) {
			metrics.LowStockItems++
		}
		cost := s.productsByID[rec.ProductID].Cost
		metrics.TotalInventoryValue = metrics.TotalInventoryValue.Add(rec.Quantity.Mul(cost))
	}
	return &metrics, nil
}

func (s *Store) DailySales(_ context.Context, scope domain.StoreScope, from time.Time, to time.Time) ([]domain.DailySales, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byDate := make(map[string]*domain.DailySales)
	for _, sale := range s.salesByID {
		if !scope.Matches(sale.StoreID) || sale.Date.Before(from) || sale.Date.After(to) {
			continue
		}
		day := sale.Date.UTC().Format("2006-01-02")
		agg, ok := byDate[day]
		if !ok {
			agg = &domain.DailySales{Date: day, TotalSales: decimal.Zero}
			byDate[day] = agg
		}
		agg.TotalSales = agg.TotalSales.Add(sale.FinalAmount)
		agg.TransactionCount++
	}

	days := make([]domain.DailySales, 0, len(byDate))
	for _, agg := range byDate {
		days = append(days, *agg)
	}
	slices.SortFunc(days, func(a, b domain.DailySales) int {
		return strings.Compare(a.Date, b.Date)
	})
	return days, nil
}

func (s *Store) CustomerInsights(_ context.Context, limit int) ([]domain.CustomerInsight, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	insights := make([]domain.CustomerInsight, 0, len(s.customersByID))
	for _, c := range s.customersByID {
		insights = append(insights, domain.CustomerInsight{
			CustomerID:    c.ID,
			Name:          c.Name,
			Phone:         c.Phone,
			TotalSpent:    c.TotalSpent,
			LoyaltyPoints: c.LoyaltyPoints,
		})
	}
	slices.SortFunc(insights, func(a, b domain.CustomerInsight) int {
		return b.TotalSpent.Cmp(a.TotalSpent)
	})
	if limit > 0 && len(insights) > limit {
		insights = insights[:limit]
	}
	return insights, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByUsername[user.Username]; exists {
		return fmt.Errorf("username %s: %w", user.Username, store.ErrDuplicate)
	}
	if user.ID == "" {
		user.ID = receipt.NewID("user")
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.usersByUsername[username]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", username, store.ErrNotFound)
	}
	out := u
	return &out, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, u := range s.usersByUsername {
		users = append(users, u)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func paginate[T any](items []T, skip int, limit int) []T {
	if skip < 0 {
		skip = 0
	}
	if skip >= len(items) {
		return []T{}
	}
	items = items[skip:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
