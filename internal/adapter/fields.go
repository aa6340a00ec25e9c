package adapter

import (
	"fmt"

	"github.com/ep-eaglepoint-ai/inventory-sync/internal/errs"
)

func requireString(raw map[string]any, key string) (string, error) {
	v, ok := raw[key]
	if !ok {
		return "", errs.New(errs.KindBadPayload, fmt.Sprintf("missing required field %q", key))
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", errs.New(errs.KindBadPayload, fmt.Sprintf("field %q must be a non-empty string", key))
	}
	return s, nil
}

func optionalString(raw map[string]any, key string) string {
	v, ok := raw[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// requireInt accepts any JSON-decoded numeric representation (float64
// from encoding/json, or int/int64 from hand-built test fixtures).
func requireInt(raw map[string]any, key string) (int, error) {
	v, ok := raw[key]
	if !ok {
		return 0, errs.New(errs.KindBadPayload, fmt.Sprintf("missing required field %q", key))
	}
	switch n := v.(type) {
	case float64:
		return int(n), nil
	case int:
		return n, nil
	case int64:
		return int(n), nil
	default:
		return 0, errs.New(errs.KindBadPayload, fmt.Sprintf("field %q must be numeric", key))
	}
}

func requireInt64(raw map[string]any, key string) (int64, error) {
	v, ok := raw[key]
	if !ok {
		return 0, errs.New(errs.KindBadPayload, fmt.Sprintf("missing required field %q", key))
	}
	switch n := v.(type) {
	case float64:
		return int64(n), nil
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	default:
		return 0, errs.New(errs.KindBadPayload, fmt.Sprintf("field %q must be numeric", key))
	}
}

func optionalMap(raw map[string]any, key string) map[string]any {
	v, ok := raw[key]
	if !ok {
		return nil
	}
	m, _ := v.(map[string]any)
	return m
}
