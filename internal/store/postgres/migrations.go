package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// migrate applies the schema on startup. Statements are idempotent so a
// restart against an already-provisioned database is a no-op.
func migrate(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS suppliers (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			phone TEXT,
			email TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			sku TEXT NOT NULL UNIQUE,
			barcode TEXT,
			qr_code TEXT,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			price NUMERIC(14,4) NOT NULL DEFAULT 0,
			cost NUMERIC(14,4) NOT NULL DEFAULT 0,
			supplier_id TEXT REFERENCES suppliers(id),
			unit_of_measure TEXT NOT NULL DEFAULT 'unit',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS inventory (
			id TEXT PRIMARY KEY,
			product_id TEXT NOT NULL REFERENCES products(id),
			store_id TEXT NOT NULL,
			quantity NUMERIC(14,4) NOT NULL DEFAULT 0,
			reorder_level NUMERIC(14,4) NOT NULL DEFAULT 10,
			expiry_date DATE,
			last_updated TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (product_id, store_id)
		)`,
		`CREATE TABLE IF NOT EXISTS customers (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			phone TEXT NOT NULL UNIQUE,
			email TEXT,
			loyalty_points BIGINT NOT NULL DEFAULT 0,
			total_spent NUMERIC(14,4) NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS sales (
			id TEXT PRIMARY KEY,
			customer_id TEXT REFERENCES customers(id),
			total_amount NUMERIC(14,4) NOT NULL,
			discount_amount NUMERIC(14,4) NOT NULL DEFAULT 0,
			tax_amount NUMERIC(14,4) NOT NULL DEFAULT 0,
			final_amount NUMERIC(14,4) NOT NULL,
			payment_method TEXT NOT NULL,
			date TIMESTAMPTZ NOT NULL DEFAULT now(),
			user_id TEXT NOT NULL,
			store_id TEXT NOT NULL,
			receipt_number TEXT NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS sale_items (
			id BIGSERIAL PRIMARY KEY,
			sale_id TEXT NOT NULL REFERENCES sales(id),
			product_id TEXT NOT NULL REFERENCES products(id),
			quantity NUMERIC(14,4) NOT NULL,
			unit_price NUMERIC(14,4) NOT NULL,
			discount NUMERIC(14,4) NOT NULL DEFAULT 0,
			total NUMERIC(14,4) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL DEFAULT '',
			password TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'cashier',
			store_id TEXT,
			active BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sales_store_date ON sales (store_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_sale_items_sale ON sale_items (sale_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sale_items_product ON sale_items (product_id)`,
		`CREATE INDEX IF NOT EXISTS idx_inventory_store ON inventory (store_id)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
