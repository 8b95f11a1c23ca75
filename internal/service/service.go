package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"retailpos/backend/internal/cache"
	"retailpos/backend/internal/domain"
	"retailpos/backend/internal/events"
	"retailpos/backend/internal/receipt"
	"retailpos/backend/internal/store"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// saleRetries bounds how often a checkout is retried when the store reports
// a serialization conflict.
const saleRetries = 3

type Service struct {
	repo           store.Repository
	analyticsCache cache.AnalyticsCache
	publisher      events.SalePublisher
	logger         *zap.Logger
	defaultStoreID string
}

func New(repo store.Repository, analyticsCache cache.AnalyticsCache, publisher events.SalePublisher, logger *zap.Logger, defaultStoreID string) *Service {
	if defaultStoreID == "" {
		defaultStoreID = "store-1"
	}
	if analyticsCache == nil {
		analyticsCache = cache.NewNoop()
	}
	if publisher == nil {
		publisher = events.NewNoopPublisher()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		repo:           repo,
		analyticsCache: analyticsCache,
		publisher:      publisher,
		logger:         logger,
		defaultStoreID: defaultStoreID,
	}
}

func requireActor(ctx context.Context, roles ...string) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.Actor{}, store.ErrForbidden
	}
	if len(roles) == 0 {
		return actor, nil
	}
	for _, role := range roles {
		if actor.Role == role {
			return actor, nil
		}
	}
	return domain.Actor{}, fmt.Errorf("role %s: %w", actor.Role, store.ErrForbidden)
}

// actorStore resolves the store a write lands in. Operators without an
// assigned store fall back to the default store.
func (s *Service) actorStore(actor domain.Actor) string {
	if actor.StoreID != "" {
		return actor.StoreID
	}
	return s.defaultStoreID
}

// storeScopeFor is the one policy decision behind every scoped read: admins
// see all stores, everyone else exactly their own.
func (s *Service) storeScopeFor(actor domain.Actor) domain.StoreScope {
	if actor.Role == domain.RoleAdmin {
		return domain.StoreScope{All: true}
	}
	return domain.StoreScope{StoreID: s.actorStore(actor)}
}

// CreateSale validates the cart, computes totals, and commits the checkout
// through the store as one atomic unit. Serialization conflicts are retried
// a bounded number of times before surfacing to the caller.
func (s *Service) CreateSale(ctx context.Context, req domain.SaleRequest) (domain.Sale, error) {
	actor, err := requireActor(ctx, domain.RoleAdmin, domain.RoleManager, domain.RoleCashier)
	if err != nil {
		return domain.Sale{}, err
	}

	if len(req.LineItems) == 0 {
		return domain.Sale{}, fmt.Errorf("cart is empty: %w", store.ErrValidation)
	}
	if !domain.IsValidPaymentMethod(req.PaymentMethod) {
		return domain.Sale{}, fmt.Errorf("payment method %q: %w", req.PaymentMethod, store.ErrValidation)
	}
	if req.DiscountAmount.IsNegative() {
		return domain.Sale{}, fmt.Errorf("discount amount is negative: %w", store.ErrValidation)
	}
	if req.TaxRate.IsNegative() {
		return domain.Sale{}, fmt.Errorf("tax rate is negative: %w", store.ErrValidation)
	}

	total := decimal.Zero
	lines := make([]domain.SaleLineItem, 0, len(req.LineItems))
	for i, line := range req.LineItems {
		if line.ProductID == "" {
			return domain.Sale{}, fmt.Errorf("line %d: missing product id: %w", i, store.ErrValidation)
		}
		if !line.Quantity.IsPositive() {
			return domain.Sale{}, fmt.Errorf("line %d: quantity must be positive: %w", i, store.ErrValidation)
		}
		if line.UnitPrice.IsNegative() {
			return domain.Sale{}, fmt.Errorf("line %d: unit price is negative: %w", i, store.ErrValidation)
		}
		if line.Discount.IsNegative() {
			return domain.Sale{}, fmt.Errorf("line %d: discount is negative: %w", i, store.ErrValidation)
		}
		gross := line.Quantity.Mul(line.UnitPrice)
		total = total.Add(gross)
		lines = append(lines, domain.SaleLineItem{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Discount:  line.Discount,
			Total:     gross.Sub(line.Discount),
		})
	}
	if req.DiscountAmount.GreaterThan(total) {
		return domain.Sale{}, fmt.Errorf("discount %s exceeds total %s: %w",
			req.DiscountAmount.String(), total.String(), store.ErrValidation)
	}

	if req.CustomerID != "" {
		if _, err := s.repo.GetCustomerByID(ctx, req.CustomerID); err != nil {
			return domain.Sale{}, err
		}
	}

	taxBase := total.Sub(req.DiscountAmount)
	tax := taxBase.Mul(req.TaxRate).Div(decimal.NewFromInt(100))
	final := taxBase.Add(tax)

	storeID := s.actorStore(actor)
	var created *domain.Sale
	for attempt := 0; attempt < saleRetries; attempt++ {
		now := time.Now().UTC()
		sale := domain.Sale{
			ID:             receipt.NewID("sale"),
			CustomerID:     req.CustomerID,
			TotalAmount:    total,
			DiscountAmount: req.DiscountAmount,
			TaxAmount:      tax,
			FinalAmount:    final,
			PaymentMethod:  req.PaymentMethod,
			Date:           now,
			UserID:         actor.UserID,
			StoreID:        storeID,
			ReceiptNumber:  receipt.Number(now),
			LineItems:      lines,
		}

		created, err = s.repo.CreateSale(ctx, sale)
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrConflict) {
			return domain.Sale{}, err
		}
		s.logger.Warn("checkout conflict, retrying",
			zap.String("store_id", storeID),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}
	if err != nil {
		return domain.Sale{}, err
	}

	s.analyticsCache.Invalidate(ctx, created.StoreID)
	if err := s.publisher.PublishSale(ctx, *created); err != nil {
		// Best effort: the sale is already committed.
		s.logger.Warn("sale event publish failed",
			zap.String("sale_id", created.ID),
			zap.Error(err))
	}

	s.logger.Info("sale completed",
		zap.String("sale_id", created.ID),
		zap.String("receipt", created.ReceiptNumber),
		zap.String("store_id", created.StoreID),
		zap.String("final_amount", created.FinalAmount.String()))
	return *created, nil
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Sale{}, err
	}

	sale, err := s.repo.GetSaleByID(ctx, id)
	if err != nil {
		return domain.Sale{}, err
	}
	if !s.storeScopeFor(actor).Matches(sale.StoreID) {
		return domain.Sale{}, fmt.Errorf("sale %s belongs to another store: %w", id, store.ErrForbidden)
	}
	return *sale, nil
}

func (s *Service) GetSaleByReceipt(ctx context.Context, receiptNumber string) (domain.Sale, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Sale{}, err
	}

	sale, err := s.repo.GetSaleByReceipt(ctx, receiptNumber)
	if err != nil {
		return domain.Sale{}, err
	}
	if !s.storeScopeFor(actor).Matches(sale.StoreID) {
		return domain.Sale{}, fmt.Errorf("receipt %s belongs to another store: %w", receiptNumber, store.ErrForbidden)
	}
	return *sale, nil
}

func (s *Service) ListSales(ctx context.Context, from *time.Time, to *time.Time, skip int, limit int) ([]domain.Sale, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if from != nil && to != nil && to.Before(*from) {
		return nil, fmt.Errorf("date range is inverted: %w", store.ErrValidation)
	}

	return s.repo.ListSales(ctx, domain.SaleFilter{
		Scope: s.storeScopeFor(actor),
		From:  from,
		To:    to,
		Skip:  skip,
		Limit: limit,
	})
}

// AdjustInventory applies a signed delta to the stock balance. Negative
// results clamp to zero; the record is created lazily on first adjustment.
func (s *Service) AdjustInventory(ctx context.Context, adj domain.InventoryAdjustment) (domain.InventoryRecord, error) {
	actor, err := requireActor(ctx, domain.RoleAdmin, domain.RoleManager, domain.RoleStockKeeper)
	if err != nil {
		return domain.InventoryRecord{}, err
	}
	if adj.ProductID == "" {
		return domain.InventoryRecord{}, fmt.Errorf("missing product id: %w", store.ErrValidation)
	}
	if adj.Delta.IsZero() {
		return domain.InventoryRecord{}, fmt.Errorf("zero quantity change: %w", store.ErrValidation)
	}
	if adj.StoreID == "" {
		adj.StoreID = s.actorStore(actor)
	}
	if actor.Role != domain.RoleAdmin && adj.StoreID != s.actorStore(actor) {
		return domain.InventoryRecord{}, fmt.Errorf("store %s: %w", adj.StoreID, store.ErrForbidden)
	}

	rec, err := s.repo.AdjustInventory(ctx, adj)
	if err != nil {
		return domain.InventoryRecord{}, err
	}
	s.analyticsCache.Invalidate(ctx, adj.StoreID)
	s.logger.Info("inventory adjusted",
		zap.String("product_id", adj.ProductID),
		zap.String("store_id", adj.StoreID),
		zap.String("delta", adj.Delta.String()),
		zap.String("quantity", rec.Quantity.String()),
		zap.String("reason", adj.Reason))
	return *rec, nil
}

func (s *Service) ListInventory(ctx context.Context, filter domain.InventoryFilter) ([]domain.InventoryView, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if filter.ExpiringDays < 0 {
		return nil, fmt.Errorf("expiring window is negative: %w", store.ErrValidation)
	}
	scope := s.storeScopeFor(actor)
	if !scope.All {
		filter.StoreID = scope.StoreID
	}
	return s.repo.ListInventory(ctx, filter)
}

func (s *Service) GetInventory(ctx context.Context, productID string, storeID string) (domain.InventoryRecord, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.InventoryRecord{}, err
	}
	if storeID == "" {
		storeID = s.actorStore(actor)
	}
	if !s.storeScopeFor(actor).Matches(storeID) {
		return domain.InventoryRecord{}, fmt.Errorf("store %s: %w", storeID, store.ErrForbidden)
	}
	rec, err := s.repo.GetInventory(ctx, productID, storeID)
	if err != nil {
		return domain.InventoryRecord{}, err
	}
	return *rec, nil
}

func (s *Service) SetReorderLevel(ctx context.Context, productID string, storeID string, level decimal.Decimal) (domain.InventoryRecord, error) {
	actor, err := requireActor(ctx, domain.RoleAdmin, domain.RoleManager, domain.RoleStockKeeper)
	if err != nil {
		return domain.InventoryRecord{}, err
	}
	if level.IsNegative() {
		return domain.InventoryRecord{}, fmt.Errorf("reorder level is negative: %w", store.ErrValidation)
	}
	if storeID == "" {
		storeID = s.actorStore(actor)
	}
	if actor.Role != domain.RoleAdmin && storeID != s.actorStore(actor) {
		return domain.InventoryRecord{}, fmt.Errorf("store %s: %w", storeID, store.ErrForbidden)
	}
	rec, err := s.repo.SetReorderLevel(ctx, productID, storeID, level)
	if err != nil {
		return domain.InventoryRecord{}, err
	}
	return *rec, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	if _, err := requireActor(ctx, domain.RoleAdmin, domain.RoleManager); err != nil {
		return domain.Product{}, err
	}

	req.SKU = strings.ToUpper(strings.TrimSpace(req.SKU))
	req.Name = strings.TrimSpace(req.Name)
	if req.SKU == "" || req.Name == "" {
		return domain.Product{}, fmt.Errorf("sku and name are required: %w", store.ErrValidation)
	}
	if req.Price.IsNegative() || req.Cost.IsNegative() {
		return domain.Product{}, fmt.Errorf("price and cost must be non-negative: %w", store.ErrValidation)
	}
	if req.UnitOfMeasure == "" {
		req.UnitOfMeasure = "unit"
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		SKU:           req.SKU,
		Barcode:       strings.TrimSpace(req.Barcode),
		QRCode:        strings.TrimSpace(req.QRCode),
		Name:          req.Name,
		Description:   strings.TrimSpace(req.Description),
		Category:      strings.TrimSpace(req.Category),
		Price:         req.Price,
		Cost:          req.Cost,
		SupplierID:    req.SupplierID,
		UnitOfMeasure: req.UnitOfMeasure,
	})
	if err != nil {
		return domain.Product{}, err
	}
	s.logger.Info("product created", zap.String("product_id", created.ID), zap.String("sku", created.SKU))
	return *created, nil
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	if _, err := requireActor(ctx); err != nil {
		return domain.Product{}, err
	}
	p, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return *p, nil
}

func (s *Service) GetProductBySKU(ctx context.Context, sku string) (domain.Product, error) {
	if _, err := requireActor(ctx); err != nil {
		return domain.Product{}, err
	}
	sku = strings.ToUpper(strings.TrimSpace(sku))
	p, err := s.repo.GetProductBySKU(ctx, sku)
	if err != nil {
		return domain.Product{}, err
	}
	return *p, nil
}

func (s *Service) ListProducts(ctx context.Context, category string, search string, skip int, limit int) ([]domain.Product, error) {
	if _, err := requireActor(ctx); err != nil {
		return nil, err
	}
	return s.repo.ListProducts(ctx, strings.TrimSpace(category), strings.TrimSpace(search), skip, limit)
}

func (s *Service) UpdateProduct(ctx context.Context, id string, patch domain.ProductPatch) (domain.Product, error) {
	if _, err := requireActor(ctx, domain.RoleAdmin, domain.RoleManager); err != nil {
		return domain.Product{}, err
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return domain.Product{}, fmt.Errorf("name cannot be blank: %w", store.ErrValidation)
	}
	if patch.Price != nil && patch.Price.IsNegative() {
		return domain.Product{}, fmt.Errorf("price is negative: %w", store.ErrValidation)
	}
	if patch.Cost != nil && patch.Cost.IsNegative() {
		return domain.Product{}, fmt.Errorf("cost is negative: %w", store.ErrValidation)
	}

	updated, err := s.repo.UpdateProduct(ctx, id, patch)
	if err != nil {
		return domain.Product{}, err
	}
	return *updated, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if _, err := requireActor(ctx, domain.RoleAdmin); err != nil {
		return err
	}
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.logger.Info("product deleted", zap.String("product_id", id))
	return nil
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (domain.Customer, error) {
	if _, err := requireActor(ctx, domain.RoleAdmin, domain.RoleManager, domain.RoleCashier); err != nil {
		return domain.Customer{}, err
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)
	if req.Name == "" || req.Phone == "" {
		return domain.Customer{}, fmt.Errorf("name and phone are required: %w", store.ErrValidation)
	}

	created, err := s.repo.CreateCustomer(ctx, domain.Customer{
		Name:  req.Name,
		Phone: req.Phone,
		Email: strings.TrimSpace(req.Email),
	})
	if err != nil {
		return domain.Customer{}, err
	}
	return *created, nil
}

func (s *Service) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	if _, err := requireActor(ctx); err != nil {
		return domain.Customer{}, err
	}
	c, err := s.repo.GetCustomerByID(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}
	return *c, nil
}

func (s *Service) GetCustomerByPhone(ctx context.Context, phone string) (domain.Customer, error) {
	if _, err := requireActor(ctx); err != nil {
		return domain.Customer{}, err
	}
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return domain.Customer{}, fmt.Errorf("phone is required: %w", store.ErrValidation)
	}
	c, err := s.repo.GetCustomerByPhone(ctx, phone)
	if err != nil {
		return domain.Customer{}, err
	}
	return *c, nil
}

func (s *Service) UpdateCustomer(ctx context.Context, id string, patch domain.CustomerPatch) (domain.Customer, error) {
	if _, err := requireActor(ctx, domain.RoleAdmin, domain.RoleManager); err != nil {
		return domain.Customer{}, err
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return domain.Customer{}, fmt.Errorf("name cannot be blank: %w", store.ErrValidation)
	}
	if patch.Phone != nil && strings.TrimSpace(*patch.Phone) == "" {
		return domain.Customer{}, fmt.Errorf("phone cannot be blank: %w", store.ErrValidation)
	}
	updated, err := s.repo.UpdateCustomer(ctx, id, patch)
	if err != nil {
		return domain.Customer{}, err
	}
	return *updated, nil
}

func (s *Service) ListCustomers(ctx context.Context, search string, skip int, limit int) ([]domain.Customer, error) {
	if _, err := requireActor(ctx); err != nil {
		return nil, err
	}
	return s.repo.ListCustomers(ctx, strings.TrimSpace(search), skip, limit)
}

func (s *Service) CreateSupplier(ctx context.Context, req domain.SupplierCreateRequest) (domain.Supplier, error) {
	if _, err := requireActor(ctx, domain.RoleAdmin, domain.RoleManager); err != nil {
		return domain.Supplier{}, err
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Supplier{}, fmt.Errorf("name is required: %w", store.ErrValidation)
	}
	created, err := s.repo.CreateSupplier(ctx, domain.Supplier{
		Name:  req.Name,
		Phone: strings.TrimSpace(req.Phone),
		Email: strings.TrimSpace(req.Email),
	})
	if err != nil {
		return domain.Supplier{}, err
	}
	return *created, nil
}

func (s *Service) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	if _, err := requireActor(ctx); err != nil {
		return nil, err
	}
	return s.repo.ListSuppliers(ctx)
}

func (s *Service) CreateUser(ctx context.Context, username string, email string, password string, role string, storeID string) error {
	if _, err := requireActor(ctx, domain.RoleAdmin); err != nil {
		return err
	}
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return fmt.Errorf("username and password are required: %w", store.ErrValidation)
	}
	if !domain.IsValidRole(role) {
		return fmt.Errorf("role %q: %w", role, store.ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.repo.CreateUser(ctx, domain.UserAccount{
		Username: username,
		Email:    strings.TrimSpace(email),
		Password: string(hash),
		Role:     role,
		StoreID:  storeID,
		Active:   true,
	})
}

func (s *Service) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	if _, err := requireActor(ctx, domain.RoleAdmin); err != nil {
		return nil, err
	}
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	// Hashes never leave the service layer.
	for i := range users {
		users[i].Password = ""
	}
	return users, nil
}
