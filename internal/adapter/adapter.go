// Package adapter normalizes source-specific marketplace payloads into
// canonical.Record values. Adapters are pure, stateless, and have no
// I/O dependencies (spec §4.A), modeled on the teacher's
// interface-per-concern style (domain.LeadRepository) but applied to
// source normalization instead of storage.
package adapter

import "github.com/ep-eaglepoint-ai/inventory-sync/internal/canonical"

// Adapter is the capability set every marketplace source implements:
// transform a single raw payload, or a batch where individual failures
// are dropped and logged rather than failing the whole batch.
type Adapter interface {
	Transform(raw map[string]any) (canonical.Record, error)
	TransformBatch(raw []map[string]any) []canonical.Record
}

// FailureLogger receives (raw payload, error) for every item dropped
// during TransformBatch. Adapters accept one at construction so the
// caller controls how drops are observed without adapters taking a
// logger dependency of their own choosing.
type FailureLogger func(raw map[string]any, err error)

func transformBatch(raw []map[string]any, transform func(map[string]any) (canonical.Record, error), onFailure FailureLogger) []canonical.Record {
	out := make([]canonical.Record, 0, len(raw))
	for _, item := range raw {
		rec, err := transform(item)
		if err != nil {
			if onFailure != nil {
				onFailure(item, err)
			}
			continue
		}
		out = append(out, rec)
	}
	return out
}
