package adapter

import (
	"testing"
	"time"

	"github.com/ep-eaglepoint-ai/inventory-sync/internal/canonical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarketplaceB_Transform_Valid(t *testing.T) {
	b := NewMarketplaceB(nil)
	raw := map[string]any{
		"sku":           "SKU1",
		"qty":           float64(7),
		"location_id":   "L",
		"last_modified": float64(1735689600),
	}

	rec, err := b.Transform(raw)
	require.NoError(t, err)
	assert.Equal(t, "SKU1", rec.ProductID)
	assert.Equal(t, 7, rec.Quantity)
	assert.Equal(t, "L", rec.WarehouseID)
	assert.Equal(t, canonical.SourceMarketplaceB, rec.Source)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), rec.UpdatedAt)
}

func TestMarketplaceB_Transform_MissingSKU(t *testing.T) {
	b := NewMarketplaceB(nil)
	_, err := b.Transform(map[string]any{"qty": float64(1), "last_modified": float64(1)})
	require.Error(t, err)
}
