// Package canonical defines the normalized inventory record that every
// source adapter produces and every downstream component (queue,
// repository, worker) consumes.
package canonical

import (
	"time"

	"github.com/ep-eaglepoint-ai/inventory-sync/internal/errs"
)

// Source identifies which marketplace a record originated from.
type Source string

const (
	SourceMarketplaceA Source = "marketplace_a"
	SourceMarketplaceB Source = "marketplace_b"
)

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	switch s {
	case SourceMarketplaceA, SourceMarketplaceB:
		return true
	default:
		return false
	}
}

// Record is the internal normalized form every adapter produces.
// UpdatedAt is the instant named by the source's own timestamp; it is
// never overwritten with ingestion time (invariant I5).
type Record struct {
	ProductID   string
	Quantity    int
	Source      Source
	WarehouseID string
	UpdatedAt   time.Time
	Metadata    map[string]any
}

// Validate enforces the canonical schema: non-empty product id,
// non-negative quantity, known source. Adapters call this after
// mapping source-specific fields so validation failures surface as
// errs.BadPayload regardless of which source produced the record.
func (r Record) Validate() error {
	if r.ProductID == "" {
		return errs.Wrap(errs.KindBadPayload, "validate record", errs.ErrMissingProductID)
	}
	if r.Quantity < 0 {
		return errs.Wrap(errs.KindBadPayload, "validate record", errs.ErrNegativeQuantity)
	}
	if !r.Source.Valid() {
		return errs.Wrap(errs.KindBadPayload, "validate record", errs.ErrUnknownSource)
	}
	return nil
}
