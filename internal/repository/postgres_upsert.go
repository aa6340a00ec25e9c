package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lib/pq"

	"github.com/ep-eaglepoint-ai/inventory-sync/internal/canonical"
	"github.com/ep-eaglepoint-ai/inventory-sync/internal/errs"
)

// Upsert persists record inside a single transaction: reserve the
// existing row (if any), read old_quantity, insert-or-update the
// inventory row unconditionally, append an audit row, commit. Every
// step happens in one transaction so a crash between steps leaves no
// partial state (spec §4.B).
func (r *PostgresRepository) Upsert(ctx context.Context, record canonical.Record) (InventoryRow, error) {
	if err := record.Validate(); err != nil {
		return InventoryRow{}, err
	}

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return InventoryRow{}, classify(err, "begin transaction")
	}
	defer tx.Rollback()

	// Step 1+2: reserve the existing row (if any) and read old_quantity.
	// The FOR UPDATE clause serializes with any concurrent writer that
	// slipped past the distributed lock upstream.
	var oldQuantity *int
	row := tx.QueryRowContext(ctx,
		`SELECT quantity FROM inventory WHERE product_id = $1 AND source = $2 FOR UPDATE`,
		record.ProductID, record.Source,
	)
	var q int
	switch err := row.Scan(&q); err {
	case nil:
		oldQuantity = &q
	case sql.ErrNoRows:
		oldQuantity = nil
	default:
		return InventoryRow{}, classify(err, "read old quantity")
	}

	metadataJSON, err := json.Marshal(record.Metadata)
	if err != nil {
		return InventoryRow{}, errs.Wrap(errs.KindBadPayload, "marshal metadata", err)
	}

	// Step 3: insert-or-update unconditionally. Ordering is enforced by
	// the lock manager upstream, not by a last-write-wins timestamp
	// comparison here (spec §4.B, Open Question in §9).
	now := time.Now().UTC()
	var out InventoryRow
	err = tx.QueryRowContext(ctx,
		`INSERT INTO inventory (product_id, quantity, source, warehouse_id, updated_at, created_at, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (product_id, source) DO UPDATE SET
		   quantity = EXCLUDED.quantity,
		   warehouse_id = EXCLUDED.warehouse_id,
		   updated_at = EXCLUDED.updated_at,
		   metadata = EXCLUDED.metadata
		 RETURNING id, product_id, quantity, source, warehouse_id, updated_at, created_at`,
		record.ProductID, record.Quantity, record.Source, record.WarehouseID, record.UpdatedAt, now, metadataJSON,
	).Scan(&out.ID, &out.ProductID, &out.Quantity, &out.Source, &out.WarehouseID, &out.UpdatedAt, &out.CreatedAt)
	if err != nil {
		return InventoryRow{}, classify(err, "upsert inventory row")
	}
	out.Metadata = record.Metadata

	// Step 4: append the audit row with merged metadata containing
	// warehouse_id.
	auditMetadata := map[string]any{}
	for k, v := range record.Metadata {
		auditMetadata[k] = v
	}
	auditMetadata["warehouse_id"] = record.WarehouseID
	auditMetadataJSON, err := json.Marshal(auditMetadata)
	if err != nil {
		return InventoryRow{}, errs.Wrap(errs.KindBadPayload, "marshal audit metadata", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO inventory_audit (product_id, old_quantity, new_quantity, source, changed_at, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		record.ProductID, oldQuantity, record.Quantity, record.Source, now, auditMetadataJSON,
	)
	if err != nil {
		return InventoryRow{}, classify(err, "insert audit row")
	}

	// Step 5: commit.
	if err := tx.Commit(); err != nil {
		return InventoryRow{}, classify(err, "commit upsert transaction")
	}

	return out, nil
}

// classify maps a driver-level error to the pipeline's retriable vs
// terminal storage error kinds: constraint violations are permanent,
// connection/serialization/deadlock failures are transient.
func classify(err error, during string) error {
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code.Class() {
		case "23": // integrity_constraint_violation
			return errs.Wrap(errs.KindPermanentStorage, during, err)
		case "40": // transaction_rollback (serialization failure, deadlock)
			return errs.Wrap(errs.KindTransientStorage, during, err)
		}
	}
	return errs.Wrap(errs.KindTransientStorage, during, err)
}
