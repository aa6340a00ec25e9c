package repository

import (
	"context"
	"encoding/json"
)

// GetByProduct returns every InventoryRow for productID, ordered by
// source (spec §4.B).
func (r *PostgresRepository) GetByProduct(ctx context.Context, productID string) ([]InventoryRow, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, product_id, quantity, source, warehouse_id, updated_at, created_at, metadata
		 FROM inventory WHERE product_id = $1 ORDER BY source`,
		productID,
	)
	if err != nil {
		return nil, classify(err, "get by product")
	}
	defer rows.Close()

	var out []InventoryRow
	for rows.Next() {
		var row InventoryRow
		var metadataJSON []byte
		if err := rows.Scan(&row.ID, &row.ProductID, &row.Quantity, &row.Source, &row.WarehouseID, &row.UpdatedAt, &row.CreatedAt, &metadataJSON); err != nil {
			return nil, classify(err, "scan inventory row")
		}
		if len(metadataJSON) > 0 {
			_ = json.Unmarshal(metadataJSON, &row.Metadata)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// GetAudit returns up to limit AuditRows for productID, ordered by
// changed_at descending (spec §4.B). limit defaults to 50.
func (r *PostgresRepository) GetAudit(ctx context.Context, productID string, limit int) ([]AuditRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, product_id, old_quantity, new_quantity, source, changed_at, metadata
		 FROM inventory_audit WHERE product_id = $1 ORDER BY changed_at DESC LIMIT $2`,
		productID, limit,
	)
	if err != nil {
		return nil, classify(err, "get audit")
	}
	defer rows.Close()

	var out []AuditRow
	for rows.Next() {
		var row AuditRow
		var metadataJSON []byte
		if err := rows.Scan(&row.ID, &row.ProductID, &row.OldQuantity, &row.NewQuantity, &row.Source, &row.ChangedAt, &metadataJSON); err != nil {
			return nil, classify(err, "scan audit row")
		}
		if len(metadataJSON) > 0 {
			_ = json.Unmarshal(metadataJSON, &row.Metadata)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
