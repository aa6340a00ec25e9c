package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ep-eaglepoint-ai/inventory-sync/internal/canonical"
)

// Fake is an in-memory Repository used by worker and ingestion unit
// tests so they can exercise the upsert+audit contract without a live
// Postgres instance.
type Fake struct {
	mu    sync.Mutex
	rows  map[string]InventoryRow // key: productID+source
	audit map[string][]AuditRow
	nextID int64
}

func NewFake() *Fake {
	return &Fake{
		rows:  map[string]InventoryRow{},
		audit: map[string][]AuditRow{},
	}
}

func key(productID string, source canonical.Source) string {
	return productID + "|" + string(source)
}

func (f *Fake) Upsert(_ context.Context, record canonical.Record) (InventoryRow, error) {
	if err := record.Validate(); err != nil {
		return InventoryRow{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	k := key(record.ProductID, record.Source)
	existing, hadExisting := f.rows[k]

	var oldQuantity *int
	if hadExisting {
		q := existing.Quantity
		oldQuantity = &q
	}

	f.nextID++
	now := time.Now().UTC()
	row := InventoryRow{
		ID:          f.nextID,
		ProductID:   record.ProductID,
		Quantity:    record.Quantity,
		Source:      record.Source,
		WarehouseID: record.WarehouseID,
		UpdatedAt:   record.UpdatedAt,
		CreatedAt:   now,
		Metadata:    record.Metadata,
	}
	if hadExisting {
		row.CreatedAt = existing.CreatedAt
	}
	f.rows[k] = row

	auditMeta := map[string]any{}
	for mk, mv := range record.Metadata {
		auditMeta[mk] = mv
	}
	auditMeta["warehouse_id"] = record.WarehouseID

	f.audit[record.ProductID] = append(f.audit[record.ProductID], AuditRow{
		ID:          int64(len(f.audit[record.ProductID]) + 1),
		ProductID:   record.ProductID,
		OldQuantity: oldQuantity,
		NewQuantity: record.Quantity,
		Source:      record.Source,
		ChangedAt:   now,
		Metadata:    auditMeta,
	})

	return row, nil
}

func (f *Fake) GetByProduct(_ context.Context, productID string) ([]InventoryRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []InventoryRow
	for _, row := range f.rows {
		if row.ProductID == productID {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out, nil
}

func (f *Fake) GetAudit(_ context.Context, productID string, limit int) ([]AuditRow, error) {
	if limit <= 0 {
		limit = 50
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	rows := append([]AuditRow(nil), f.audit[productID]...)
	sort.Slice(rows, func(i, j int) bool { return rows[i].ChangedAt.After(rows[j].ChangedAt) })
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}
