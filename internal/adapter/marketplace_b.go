package adapter

import (
	"time"

	"github.com/ep-eaglepoint-ai/inventory-sync/internal/canonical"
)

// MarketplaceB maps:
//
//	sku              -> product_id
//	qty              -> quantity
//	location_id      -> warehouse_id
//	last_modified    -> updated_at, Unix seconds converted to an
//	                    RFC3339 UTC instant (epoch_millis = last_modified*1000)
//	additional_info  -> metadata
type MarketplaceB struct {
	OnFailure FailureLogger
}

func NewMarketplaceB(onFailure FailureLogger) *MarketplaceB {
	return &MarketplaceB{OnFailure: onFailure}
}

func (b *MarketplaceB) Transform(raw map[string]any) (canonical.Record, error) {
	productID, err := requireString(raw, "sku")
	if err != nil {
		return canonical.Record{}, err
	}

	quantity, err := requireInt(raw, "qty")
	if err != nil {
		return canonical.Record{}, err
	}

	lastModified, err := requireInt64(raw, "last_modified")
	if err != nil {
		return canonical.Record{}, err
	}
	updatedAt := time.UnixMilli(lastModified * 1000).UTC()

	rec := canonical.Record{
		ProductID:   productID,
		Quantity:    quantity,
		Source:      canonical.SourceMarketplaceB,
		WarehouseID: optionalString(raw, "location_id"),
		UpdatedAt:   updatedAt,
		Metadata:    optionalMap(raw, "additional_info"),
	}

	if err := rec.Validate(); err != nil {
		return canonical.Record{}, err
	}
	return rec, nil
}

func (b *MarketplaceB) TransformBatch(raw []map[string]any) []canonical.Record {
	return transformBatch(raw, b.Transform, b.OnFailure)
}
