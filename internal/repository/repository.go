// Package repository persists CanonicalRecord values to PostgreSQL with
// a transactional upsert + audit trail, following the teacher's
// infrastructure/postgres package shape (InitSchema, parameterized
// queries inside sql.Tx) adapted from a single-table CRUD aggregate to
// an upsert+append-only-audit pair.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/ep-eaglepoint-ai/inventory-sync/internal/canonical"
)

// InventoryRow mirrors canonical.Record plus CreatedAt, set on first
// insert (spec §3).
type InventoryRow struct {
	ID          int64
	ProductID   string
	Quantity    int
	Source      canonical.Source
	WarehouseID string
	UpdatedAt   time.Time
	CreatedAt   time.Time
	Metadata    map[string]any
}

// AuditRow is an append-only record of a single successful upsert.
type AuditRow struct {
	ID           int64
	ProductID    string
	OldQuantity  *int
	NewQuantity  int
	Source       canonical.Source
	ChangedAt    time.Time
	Metadata     map[string]any
}

// Repository is the contract the worker depends on. Implemented by
// PostgresRepository; an in-memory fake backs the unit tests.
type Repository interface {
	Upsert(ctx context.Context, record canonical.Record) (InventoryRow, error)
	GetByProduct(ctx context.Context, productID string) ([]InventoryRow, error)
	GetAudit(ctx context.Context, productID string, limit int) ([]AuditRow, error)
}

// PostgresRepository implements Repository against a *sql.DB, in the
// teacher's infrastructure/postgres style.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// InitSchema creates the inventory and inventory_audit tables,
// matching the column set and indexes of spec §6.
func (r *PostgresRepository) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS inventory (
		id SERIAL PRIMARY KEY,
		product_id VARCHAR(255) NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity >= 0),
		source VARCHAR(50) NOT NULL,
		warehouse_id VARCHAR(255),
		updated_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		metadata JSONB,
		UNIQUE (product_id, source)
	);
	CREATE INDEX IF NOT EXISTS idx_inventory_product_id ON inventory (product_id);
	CREATE INDEX IF NOT EXISTS idx_inventory_source ON inventory (source);
	CREATE INDEX IF NOT EXISTS idx_inventory_updated_at ON inventory (updated_at);

	CREATE TABLE IF NOT EXISTS inventory_audit (
		id SERIAL PRIMARY KEY,
		product_id VARCHAR(255) NOT NULL,
		old_quantity INTEGER,
		new_quantity INTEGER NOT NULL,
		source VARCHAR(50) NOT NULL,
		changed_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		metadata JSONB
	);
	CREATE INDEX IF NOT EXISTS idx_audit_product_id ON inventory_audit (product_id);
	CREATE INDEX IF NOT EXISTS idx_audit_changed_at ON inventory_audit (changed_at);
	`
	_, err := r.db.Exec(schema)
	return err
}
