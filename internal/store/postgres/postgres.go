package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"retailpos/backend/internal/domain"
	"retailpos/backend/internal/receipt"
	"retailpos/backend/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const productColumns = `id, sku, COALESCE(barcode,''), COALESCE(qr_code,''), name,
	COALESCE(description,''), COALESCE(category,''), price, cost,
	COALESCE(supplier_id,''), unit_of_measure, created_at`

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" {
		product.ID = receipt.NewID("prod")
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (
			id, sku, barcode, qr_code, name, description, category,
			price, cost, supplier_id, unit_of_measure, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, product.ID, product.SKU, nullIfEmpty(product.Barcode), nullIfEmpty(product.QRCode),
		product.Name, product.Description, product.Category, product.Price, product.Cost,
		nullIfEmpty(product.SupplierID), product.UnitOfMeasure, product.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("sku %s: %w", product.SKU, store.ErrDuplicate)
		}
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	return s.getProduct(ctx, "id", id)
}

func (s *Store) GetProductBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	return s.getProduct(ctx, "sku", sku)
}

func (s *Store) getProduct(ctx context.Context, column string, value string) (*domain.Product, error) {
	if column != "id" && column != "sku" {
		return nil, fmt.Errorf("unsupported lookup column")
	}

	var p domain.Product
	query := fmt.Sprintf(`SELECT %s FROM products WHERE %s = $1`, productColumns, column)
	err := s.db.QueryRowContext(ctx, query, value).Scan(
		&p.ID, &p.SKU, &p.Barcode, &p.QRCode, &p.Name, &p.Description, &p.Category,
		&p.Price, &p.Cost, &p.SupplierID, &p.UnitOfMeasure, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("product %s: %w", value, store.ErrNotFound)
		}
		return nil, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return &p, nil
}

func (s *Store) ListProducts(ctx context.Context, category string, search string, skip int, limit int) ([]domain.Product, error) {
	if limit < 1 {
		limit = 100
	}
	if skip < 0 {
		skip = 0
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM products
		WHERE ($1 = '' OR category = $1)
			AND ($2 = '' OR name ILIKE '%%' || $2 || '%%' OR sku ILIKE '%%' || $2 || '%%')
		ORDER BY name
		OFFSET $3 LIMIT $4
	`, productColumns)

	rows, err := s.db.QueryContext(ctx, query, category, search, skip, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, limit)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Barcode, &p.QRCode, &p.Name, &p.Description,
			&p.Category, &p.Price, &p.Cost, &p.SupplierID, &p.UnitOfMeasure, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.CreatedAt = p.CreatedAt.UTC()
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) UpdateProduct(ctx context.Context, id string, patch domain.ProductPatch) (*domain.Product, error) {
	query := fmt.Sprintf(`
		UPDATE products
		SET name = COALESCE($2::text, name),
			description = COALESCE($3::text, description),
			category = COALESCE($4::text, category),
			barcode = COALESCE($5::text, barcode),
			qr_code = COALESCE($6::text, qr_code),
			price = COALESCE($7::numeric, price),
			cost = COALESCE($8::numeric, cost),
			supplier_id = COALESCE($9::text, supplier_id),
			unit_of_measure = COALESCE($10::text, unit_of_measure)
		WHERE id = $1
		RETURNING %s
	`, productColumns)

	var p domain.Product
	err := s.db.QueryRowContext(ctx, query, id,
		patch.Name, patch.Description, patch.Category, patch.Barcode, patch.QRCode,
		nullDecimal(patch.Price), nullDecimal(patch.Cost), patch.SupplierID, patch.UnitOfMeasure,
	).Scan(
		&p.ID, &p.SKU, &p.Barcode, &p.QRCode, &p.Name, &p.Description, &p.Category,
		&p.Price, &p.Cost, &p.SupplierID, &p.UnitOfMeasure, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("product %s: %w", id, store.ErrNotFound)
		}
		return nil, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return &p, nil
}

// DeleteProduct refuses to remove a product that appears in sale history or
// still carries nonzero stock.
func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var saleRefs int64
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sale_items WHERE product_id = $1
	`, id).Scan(&saleRefs); err != nil {
		return err
	}
	if saleRefs > 0 {
		return fmt.Errorf("product %s has sale history: %w", id, store.ErrValidation)
	}

	var stocked int64
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM inventory WHERE product_id = $1 AND quantity > 0
	`, id).Scan(&stocked); err != nil {
		return err
	}
	if stocked > 0 {
		return fmt.Errorf("product %s still has stock: %w", id, store.ErrValidation)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM inventory WHERE product_id = $1`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("product %s: %w", id, store.ErrNotFound)
	}
	return tx.Commit()
}

// AdjustInventory applies a signed delta, lazily creating the record when
// the product has never been stocked at the store. The quantity clamps at
// zero instead of going negative.
func (s *Store) AdjustInventory(ctx context.Context, adj domain.InventoryAdjustment) (*domain.InventoryRecord, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)
	`, adj.ProductID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("product %s: %w", adj.ProductID, store.ErrNotFound)
	}

	var rec domain.InventoryRecord
	var expiry sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO inventory (id, product_id, store_id, quantity, reorder_level, last_updated)
		VALUES ($1, $2, $3, GREATEST($4::numeric, 0), 10, now())
		ON CONFLICT (product_id, store_id)
		DO UPDATE SET quantity = GREATEST(inventory.quantity + $4::numeric, 0), last_updated = now()
		RETURNING id, product_id, store_id, quantity, reorder_level, expiry_date, last_updated
	`, receipt.NewID("inv"), adj.ProductID, adj.StoreID, adj.Delta).Scan(
		&rec.ID, &rec.ProductID, &rec.StoreID, &rec.Quantity, &rec.ReorderLevel, &expiry, &rec.LastUpdated,
	)
	if err != nil {
		return nil, translateConflict(err)
	}
	if expiry.Valid {
		e := expiry.Time.UTC()
		rec.ExpiryDate = &e
	}
	rec.LastUpdated = rec.LastUpdated.UTC()
	return &rec, nil
}

func (s *Store) GetInventory(ctx context.Context, productID string, storeID string) (*domain.InventoryRecord, error) {
	var rec domain.InventoryRecord
	var expiry sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, product_id, store_id, quantity, reorder_level, expiry_date, last_updated
		FROM inventory
		WHERE product_id = $1 AND store_id = $2
	`, productID, storeID).Scan(
		&rec.ID, &rec.ProductID, &rec.StoreID, &rec.Quantity, &rec.ReorderLevel, &expiry, &rec.LastUpdated,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("inventory for product %s at %s: %w", productID, storeID, store.ErrNotFound)
		}
		return nil, err
	}
	if expiry.Valid {
		e := expiry.Time.UTC()
		rec.ExpiryDate = &e
	}
	rec.LastUpdated = rec.LastUpdated.UTC()
	return &rec, nil
}

func (s *Store) ListInventory(ctx context.Context, filter domain.InventoryFilter) ([]domain.InventoryView, error) {
	query := `
		SELECT i.id, i.product_id, i.store_id, i.quantity, i.reorder_level, i.expiry_date,
			i.last_updated, p.name, p.sku, p.price
		FROM inventory i
		JOIN products p ON p.id = i.product_id
		WHERE ($1 = '' OR i.store_id = $1)
			AND ($2 = 0 OR (i.expiry_date IS NOT NULL AND i.expiry_date <= CURRENT_DATE + make_interval(days => $2)))
	`
	if filter.LowStockOnly {
		query += ` AND i.quantity <= i.reorder_level`
	}
	query += ` ORDER BY p.name`

	rows, err := s.db.QueryContext(ctx, query, filter.StoreID, filter.ExpiringDays)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	views := make([]domain.InventoryView, 0, 64)
	for rows.Next() {
		var v domain.InventoryView
		var expiry sql.NullTime
		if err := rows.Scan(&v.ID, &v.ProductID, &v.StoreID, &v.Quantity, &v.ReorderLevel,
			&expiry, &v.LastUpdated, &v.ProductName, &v.ProductSKU, &v.ProductPrice); err != nil {
			return nil, err
		}
		if expiry.Valid {
			e := expiry.Time.UTC()
			v.ExpiryDate = &e
		}
		v.LastUpdated = v.LastUpdated.UTC()
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return views, nil
}

func (s *Store) SetReorderLevel(ctx context.Context, productID string, storeID string, level decimal.Decimal) (*domain.InventoryRecord, error) {
	var rec domain.InventoryRecord
	var expiry sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		UPDATE inventory
		SET reorder_level = $3, last_updated = now()
		WHERE product_id = $1 AND store_id = $2
		RETURNING id, product_id, store_id, quantity, reorder_level, expiry_date, last_updated
	`, productID, storeID, level).Scan(
		&rec.ID, &rec.ProductID, &rec.StoreID, &rec.Quantity, &rec.ReorderLevel, &expiry, &rec.LastUpdated,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("inventory for product %s at %s: %w", productID, storeID, store.ErrNotFound)
		}
		return nil, err
	}
	if expiry.Valid {
		e := expiry.Time.UTC()
		rec.ExpiryDate = &e
	}
	rec.LastUpdated = rec.LastUpdated.UTC()
	return &rec, nil
}

// CreateSale commits a checkout as one atomic unit. Inventory rows for every
// product in the cart are locked with FOR UPDATE, stock is validated against
// the summed quantity per product, decremented, loyalty accrued, and the
// sale plus its line items inserted. Serialization failures surface as
// ErrConflict so the caller can retry the whole transaction.
func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	productIDs := make([]string, 0, len(sale.LineItems))
	seen := make(map[string]bool, len(sale.LineItems))
	for _, line := range sale.LineItems {
		if !seen[line.ProductID] {
			seen[line.ProductID] = true
			productIDs = append(productIDs, line.ProductID)
		}
	}

	nameByID := make(map[string]string, len(productIDs))
	nameRows, err := tx.QueryContext(ctx, `
		SELECT id, name FROM products WHERE id = ANY($1)
	`, productIDs)
	if err != nil {
		return nil, err
	}
	for nameRows.Next() {
		var id, name string
		if err := nameRows.Scan(&id, &name); err != nil {
			_ = nameRows.Close()
			return nil, err
		}
		nameByID[id] = name
	}
	if err := nameRows.Err(); err != nil {
		_ = nameRows.Close()
		return nil, err
	}
	_ = nameRows.Close()
	for _, id := range productIDs {
		if _, ok := nameByID[id]; !ok {
			return nil, fmt.Errorf("product %s: %w", id, store.ErrNotFound)
		}
	}

	// Locking in product id order keeps acquisition consistent across
	// concurrent checkouts and avoids deadlocks.
	stockRows, err := tx.QueryContext(ctx, `
		SELECT product_id, quantity
		FROM inventory
		WHERE store_id = $1 AND product_id = ANY($2)
		ORDER BY product_id
		FOR UPDATE
	`, sale.StoreID, productIDs)
	if err != nil {
		return nil, translateConflict(err)
	}
	stockByID := make(map[string]decimal.Decimal, len(productIDs))
	for stockRows.Next() {
		var id string
		var qty decimal.Decimal
		if err := stockRows.Scan(&id, &qty); err != nil {
			_ = stockRows.Close()
			return nil, err
		}
		stockByID[id] = qty
	}
	if err := stockRows.Err(); err != nil {
		_ = stockRows.Close()
		return nil, err
	}
	_ = stockRows.Close()

	needed := make(map[string]decimal.Decimal, len(productIDs))
	for _, line := range sale.LineItems {
		needed[line.ProductID] = needed[line.ProductID].Add(line.Quantity)
	}
	for _, id := range productIDs {
		available, stocked := stockByID[id]
		if !stocked {
			return nil, fmt.Errorf("product %s (%s): %w", nameByID[id], id, store.ErrProductNotStocked)
		}
		if needed[id].GreaterThan(available) {
			return nil, fmt.Errorf("product %s (%s) has %s, requested %s: %w",
				nameByID[id], id, available.String(), needed[id].String(), store.ErrInsufficientStock)
		}
	}

	for _, id := range productIDs {
		_, err := tx.ExecContext(ctx, `
			UPDATE inventory
			SET quantity = quantity - $1, last_updated = now()
			WHERE store_id = $2 AND product_id = $3
		`, needed[id], sale.StoreID, id)
		if err != nil {
			return nil, translateConflict(err)
		}
	}

	if sale.CustomerID != "" {
		points := sale.FinalAmount.Div(decimal.NewFromInt(10)).IntPart()
		_, err := tx.ExecContext(ctx, `
			UPDATE customers
			SET total_spent = total_spent + $1, loyalty_points = loyalty_points + $2
			WHERE id = $3
		`, sale.FinalAmount, points, sale.CustomerID)
		if err != nil {
			return nil, translateConflict(err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sales (
			id, customer_id, total_amount, discount_amount, tax_amount, final_amount,
			payment_method, date, user_id, store_id, receipt_number
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, sale.ID, nullIfEmpty(sale.CustomerID), sale.TotalAmount, sale.DiscountAmount,
		sale.TaxAmount, sale.FinalAmount, sale.PaymentMethod, sale.Date, sale.UserID,
		sale.StoreID, sale.ReceiptNumber)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("receipt %s: %w", sale.ReceiptNumber, store.ErrConflict)
		}
		return nil, translateConflict(err)
	}

	for _, line := range sale.LineItems {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sale_items (sale_id, product_id, quantity, unit_price, discount, total)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, sale.ID, line.ProductID, line.Quantity, line.UnitPrice, line.Discount, line.Total)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, translateConflict(err)
	}
	return &sale, nil
}

func (s *Store) GetSaleByID(ctx context.Context, id string) (*domain.Sale, error) {
	return s.getSale(ctx, "id", id)
}

func (s *Store) GetSaleByReceipt(ctx context.Context, receiptNumber string) (*domain.Sale, error) {
	return s.getSale(ctx, "receipt_number", receiptNumber)
}

func (s *Store) getSale(ctx context.Context, column string, value string) (*domain.Sale, error) {
	if column != "id" && column != "receipt_number" {
		return nil, fmt.Errorf("unsupported lookup column")
	}

	var sale domain.Sale
	query := fmt.Sprintf(`
		SELECT id, COALESCE(customer_id,''), total_amount, discount_amount, tax_amount,
			final_amount, payment_method, date, user_id, store_id, receipt_number
		FROM sales
		WHERE %s = $1
	`, column)
	err := s.db.QueryRowContext(ctx, query, value).Scan(
		&sale.ID, &sale.CustomerID, &sale.TotalAmount, &sale.DiscountAmount, &sale.TaxAmount,
		&sale.FinalAmount, &sale.PaymentMethod, &sale.Date, &sale.UserID, &sale.StoreID,
		&sale.ReceiptNumber,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("sale %s: %w", value, store.ErrNotFound)
		}
		return nil, err
	}
	sale.Date = sale.Date.UTC()

	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, quantity, unit_price, discount, total
		FROM sale_items
		WHERE sale_id = $1
		ORDER BY id
	`, sale.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.SaleLineItem, 0, 8)
	for rows.Next() {
		var line domain.SaleLineItem
		if err := rows.Scan(&line.ProductID, &line.Quantity, &line.UnitPrice, &line.Discount, &line.Total); err != nil {
			return nil, err
		}
		items = append(items, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sale.LineItems = items
	return &sale, nil
}

func (s *Store) ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	limit := filter.Limit
	if limit < 1 {
		limit = 100
	}
	skip := filter.Skip
	if skip < 0 {
		skip = 0
	}
	scopeStore := ""
	if !filter.Scope.All {
		scopeStore = filter.Scope.StoreID
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, COALESCE(customer_id,''), total_amount, discount_amount, tax_amount,
			final_amount, payment_method, date, user_id, store_id, receipt_number
		FROM sales
		WHERE ($1 = '' OR store_id = $1)
			AND ($2::timestamptz IS NULL OR date >= $2)
			AND ($3::timestamptz IS NULL OR date <= $3)
		ORDER BY date DESC
		OFFSET $4 LIMIT $5
	`, scopeStore, filter.From, filter.To, skip, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, limit)
	for rows.Next() {
		var sale domain.Sale
		if err := rows.Scan(&sale.ID, &sale.CustomerID, &sale.TotalAmount, &sale.DiscountAmount,
			&sale.TaxAmount, &sale.FinalAmount, &sale.PaymentMethod, &sale.Date, &sale.UserID,
			&sale.StoreID, &sale.ReceiptNumber); err != nil {
			return nil, err
		}
		sale.Date = sale.Date.UTC()
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sales, nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.ID == "" {
		customer.ID = receipt.NewID("cust")
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, phone, email, loyalty_points, total_spent, created_at)
		VALUES ($1,$2,$3,$4,0,0,$5)
	`, customer.ID, customer.Name, customer.Phone, nullIfEmpty(customer.Email), customer.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("phone %s: %w", customer.Phone, store.ErrDuplicate)
		}
		return nil, err
	}

	customer.LoyaltyPoints = 0
	customer.TotalSpent = decimal.Zero
	created := customer
	return &created, nil
}

func (s *Store) GetCustomerByID(ctx context.Context, id string) (*domain.Customer, error) {
	var c domain.Customer
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, phone, COALESCE(email,''), loyalty_points, total_spent, created_at
		FROM customers
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.LoyaltyPoints, &c.TotalSpent, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("customer %s: %w", id, store.ErrNotFound)
		}
		return nil, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

func (s *Store) GetCustomerByPhone(ctx context.Context, phone string) (*domain.Customer, error) {
	var c domain.Customer
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, phone, COALESCE(email,''), loyalty_points, total_spent, created_at
		FROM customers
		WHERE phone = $1
	`, phone).Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.LoyaltyPoints, &c.TotalSpent, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("customer phone %s: %w", phone, store.ErrNotFound)
		}
		return nil, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, id string, patch domain.CustomerPatch) (*domain.Customer, error) {
	var c domain.Customer
	err := s.db.QueryRowContext(ctx, `
		UPDATE customers SET
			name  = COALESCE($2::text, name),
			phone = COALESCE($3::text, phone),
			email = COALESCE($4::text, email)
		WHERE id = $1
		RETURNING id, name, phone, COALESCE(email,''), loyalty_points, total_spent, created_at
	`, id, patch.Name, patch.Phone, patch.Email).
		Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.LoyaltyPoints, &c.TotalSpent, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("customer %s: %w", id, store.ErrNotFound)
		}
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("phone: %w", store.ErrDuplicate)
		}
		return nil, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

func (s *Store) ListCustomers(ctx context.Context, search string, skip int, limit int) ([]domain.Customer, error) {
	if limit < 1 {
		limit = 100
	}
	if skip < 0 {
		skip = 0
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, phone, COALESCE(email,''), loyalty_points, total_spent, created_at
		FROM customers
		WHERE ($1 = '' OR name ILIKE '%' || $1 || '%' OR phone LIKE '%' || $1 || '%')
		ORDER BY name
		OFFSET $2 LIMIT $3
	`, search, skip, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, limit)
	for rows.Next() {
		var c domain.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.LoyaltyPoints, &c.TotalSpent, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.CreatedAt = c.CreatedAt.UTC()
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return customers, nil
}

func (s *Store) CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	if supplier.ID == "" {
		supplier.ID = receipt.NewID("sup")
	}
	if supplier.CreatedAt.IsZero() {
		supplier.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO suppliers (id, name, phone, email, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, supplier.ID, supplier.Name, nullIfEmpty(supplier.Phone), nullIfEmpty(supplier.Email), supplier.CreatedAt)
	if err != nil {
		return nil, err
	}
	created := supplier
	return &created, nil
}

func (s *Store) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(phone,''), COALESCE(email,''), created_at
		FROM suppliers
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	suppliers := make([]domain.Supplier, 0, 32)
	for rows.Next() {
		var sup domain.Supplier
		if err := rows.Scan(&sup.ID, &sup.Name, &sup.Phone, &sup.Email, &sup.CreatedAt); err != nil {
			return nil, err
		}
		sup.CreatedAt = sup.CreatedAt.UTC()
		suppliers = append(suppliers, sup)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return suppliers, nil
}

func (s *Store) SalesSummary(ctx context.Context, scope domain.StoreScope, from time.Time, to time.Time) (*domain.SalesSummary, error) {
	scopeStore := ""
	if !scope.All {
		scopeStore = scope.StoreID
	}

	summary := domain.SalesSummary{StartDate: from, EndDate: to}
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(final_amount),0), COUNT(*), COALESCE(SUM(discount_amount),0)
		FROM sales
		WHERE ($1 = '' OR store_id = $1) AND date BETWEEN $2 AND $3
	`, scopeStore, from, to).Scan(&summary.TotalSales, &summary.TotalTransactions, &summary.TotalDiscount)
	if err != nil {
		return nil, err
	}
	if summary.TotalTransactions > 0 {
		summary.AverageTransactionValue = summary.TotalSales.
			Div(decimal.NewFromInt(summary.TotalTransactions)).Round(4)
	} else {
		summary.AverageTransactionValue = decimal.Zero
	}
	return &summary, nil
}

func (s *Store) TopProducts(ctx context.Context, scope domain.StoreScope, from time.Time, to time.Time, limit int) ([]domain.TopProduct, error) {
	if limit < 1 {
		limit = 10
	}
	scopeStore := ""
	if !scope.All {
		scopeStore = scope.StoreID
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT si.product_id, p.name, p.sku, SUM(si.quantity), SUM(si.total)
		FROM sale_items si
		JOIN sales s ON s.id = si.sale_id
		JOIN products p ON p.id = si.product_id
		WHERE ($1 = '' OR s.store_id = $1) AND s.date BETWEEN $2 AND $3
		GROUP BY si.product_id, p.name, p.sku
		ORDER BY SUM(si.quantity) DESC
		LIMIT $4
	`, scopeStore, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	top := make([]domain.TopProduct, 0, limit)
	for rows.Next() {
		var tp domain.TopProduct
		if err := rows.Scan(&tp.ProductID, &tp.ProductName, &tp.SKU, &tp.TotalQuantity, &tp.TotalRevenue); err != nil {
			return nil, err
		}
		top = append(top, tp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return top, nil
}

func (s *Store) InventoryMetrics(ctx context.Context, scope domain.StoreScope) (*domain.InventoryMetrics, error) {
	scopeStore := ""
	if !scope.All {
		scopeStore = scope.StoreID
	}

	var metrics domain.InventoryMetrics
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN i.quantity > 0 AND i.quantity <= i.reorder_level THEN 1 ELSE 0 END),0),
			COALESCE(SUM(CASE WHEN i.quantity = 0 THEN 1 ELSE 0 END),0),
			COALESCE(SUM(i.quantity * p.cost),0)
		FROM inventory i
		JOIN products p ON p.id = i.product_id
		WHERE ($1 = '' OR i.store_id = $1)
	`, scopeStore).Scan(&metrics.TotalItems, &metrics.LowStockItems, &metrics.OutOfStockItems, &metrics.TotalInventoryValue)
	if err != nil {
		return nil, err
	}
	return &metrics, nil
}

func (s *Store) DailySales(ctx context.Context, scope domain.StoreScope, from time.Time, to time.Time) ([]domain.DailySales, error) {
	scopeStore := ""
	if !scope.All {
		scopeStore = scope.StoreID
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT to_char(date AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day,
			COALESCE(SUM(final_amount),0), COUNT(*)
		FROM sales
		WHERE ($1 = '' OR store_id = $1) AND date BETWEEN $2 AND $3
		GROUP BY day
		ORDER BY day
	`, scopeStore, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	days := make([]domain.DailySales, 0, 31)
	for rows.Next() {
		var d domain.DailySales
		if err := rows.Scan(&d.Date, &d.TotalSales, &d.TransactionCount); err != nil {
			return nil, err
		}
		days = append(days, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return days, nil
}

func (s *Store) CustomerInsights(ctx context.Context, limit int) ([]domain.CustomerInsight, error) {
	if limit < 1 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, phone, total_spent, loyalty_points
		FROM customers
		ORDER BY total_spent DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	insights := make([]domain.CustomerInsight, 0, limit)
	for rows.Next() {
		var ci domain.CustomerInsight
		if err := rows.Scan(&ci.CustomerID, &ci.Name, &ci.Phone, &ci.TotalSpent, &ci.LoyaltyPoints); err != nil {
			return nil, err
		}
		insights = append(insights, ci)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return insights, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.ID == "" {
		user.ID = receipt.NewID("user")
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, password, role, store_id, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, user.ID, user.Username, user.Email, user.Password, user.Role, nullIfEmpty(user.StoreID), user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("username %s: %w", user.Username, store.ErrDuplicate)
		}
		return err
	}
	return nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error) {
	var u domain.UserAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, email, password, role, COALESCE(store_id,''), active, created_at
		FROM users
		WHERE username = $1
	`, username).Scan(&u.ID, &u.Username, &u.Email, &u.Password, &u.Role, &u.StoreID, &u.Active, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", username, store.ErrNotFound)
		}
		return nil, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, email, password, role, COALESCE(store_id,''), active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var u domain.UserAccount
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.Password, &u.Role, &u.StoreID, &u.Active, &u.CreatedAt); err != nil {
			return nil, err
		}
		u.CreatedAt = u.CreatedAt.UTC()
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// translateConflict maps serialization failures (40001) and deadlocks
// (40P01) to ErrConflict so callers can retry the whole transaction.
func translateConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "40001" || pgErr.Code == "40P01" {
			return fmt.Errorf("%s: %w", pgErr.Code, store.ErrConflict)
		}
	}
	return err
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullDecimal(val *decimal.Decimal) any {
	if val == nil {
		return nil
	}
	return *val
}
