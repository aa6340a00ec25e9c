package adapter

import (
	"testing"
	"time"

	"github.com/ep-eaglepoint-ai/inventory-sync/internal/canonical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarketplaceA_Transform_Valid(t *testing.T) {
	a := NewMarketplaceA(nil)
	raw := map[string]any{
		"product_code":    "PROD-ABC-123",
		"available_stock": float64(50),
		"timestamp":       "2026-01-01T10:00:00Z",
		"warehouse":       "WH-NY-01",
	}

	rec, err := a.Transform(raw)
	require.NoError(t, err)
	assert.Equal(t, "PROD-ABC-123", rec.ProductID)
	assert.Equal(t, 50, rec.Quantity)
	assert.Equal(t, "WH-NY-01", rec.WarehouseID)
	assert.Equal(t, canonical.SourceMarketplaceA, rec.Source)
	assert.Equal(t, time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC), rec.UpdatedAt)
}

func TestMarketplaceA_Transform_MissingField(t *testing.T) {
	a := NewMarketplaceA(nil)
	_, err := a.Transform(map[string]any{"available_stock": float64(1), "timestamp": "2026-01-01T10:00:00Z"})
	require.Error(t, err)
}

func TestMarketplaceA_Transform_NegativeQuantity(t *testing.T) {
	a := NewMarketplaceA(nil)
	raw := map[string]any{
		"product_code":    "P1",
		"available_stock": float64(-5),
		"timestamp":       "2026-01-01T10:00:00Z",
	}
	_, err := a.Transform(raw)
	require.Error(t, err)
}

func TestMarketplaceA_TransformBatch_DropsFailures(t *testing.T) {
	var dropped int
	a := NewMarketplaceA(func(raw map[string]any, err error) { dropped++ })

	batch := []map[string]any{
		{"product_code": "P1", "available_stock": float64(10), "timestamp": "2026-01-01T10:00:00Z"},
		{"available_stock": float64(10), "timestamp": "2026-01-01T10:00:00Z"}, // missing product_code
		{"product_code": "P2", "available_stock": float64(20), "timestamp": "2026-01-01T10:00:00Z"},
	}

	out := a.TransformBatch(batch)
	assert.Len(t, out, 2)
	assert.Equal(t, 1, dropped)
}
