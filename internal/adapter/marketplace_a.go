package adapter

import (
	"time"

	"github.com/ep-eaglepoint-ai/inventory-sync/internal/canonical"
	"github.com/ep-eaglepoint-ai/inventory-sync/internal/errs"
)

// MarketplaceA maps:
//
//	product_code     -> product_id
//	available_stock  -> quantity
//	warehouse        -> warehouse_id
//	timestamp        -> updated_at (parsed as RFC3339; the instant and
//	                    offset are kept, the original string is not)
//	metadata         -> metadata
type MarketplaceA struct {
	OnFailure FailureLogger
}

func NewMarketplaceA(onFailure FailureLogger) *MarketplaceA {
	return &MarketplaceA{OnFailure: onFailure}
}

func (a *MarketplaceA) Transform(raw map[string]any) (canonical.Record, error) {
	productID, err := requireString(raw, "product_code")
	if err != nil {
		return canonical.Record{}, err
	}

	quantity, err := requireInt(raw, "available_stock")
	if err != nil {
		return canonical.Record{}, err
	}

	timestampRaw, err := requireString(raw, "timestamp")
	if err != nil {
		return canonical.Record{}, err
	}
	updatedAt, err := time.Parse(time.RFC3339, timestampRaw)
	if err != nil {
		return canonical.Record{}, errs.Wrap(errs.KindBadPayload, "timestamp is not RFC3339", err)
	}

	rec := canonical.Record{
		ProductID:   productID,
		Quantity:    quantity,
		Source:      canonical.SourceMarketplaceA,
		WarehouseID: optionalString(raw, "warehouse"),
		UpdatedAt:   updatedAt,
		Metadata:    optionalMap(raw, "metadata"),
	}

	if err := rec.Validate(); err != nil {
		return canonical.Record{}, err
	}
	return rec, nil
}

func (a *MarketplaceA) TransformBatch(raw []map[string]any) []canonical.Record {
	return transformBatch(raw, a.Transform, a.OnFailure)
}
