package cards

import (
	"encoding/json"
	"fmt"
	"strings"
)

// reservedKeys are payload keys callers must never set through a save: the
// status field would bypass the state machine, the rest are row metadata the
// lifecycle owns.
var reservedKeys = map[string]bool{
	"id":                true,
	"subtype":           true,
	"status":            true,
	"rejection_note":    true,
	"status_changed_at": true,
	"graph_synced_at":   true,
	"created_at":        true,
	"updated_at":        true,
}

// NormalizePayload strips reserved keys and collapses whitespace in every
// string value, recursively.
func NormalizePayload(payload map[string]any) map[string]any {
	out := make(map[string]any, len(payload))
	for key, val := range payload {
		if reservedKeys[strings.ToLower(strings.TrimSpace(key))] {
			continue
		}
		out[key] = normalizeValue(val)
	}
	return out
}

func normalizeValue(val any) any {
	switch v := val.(type) {
	case string:
		return CollapseWhitespace(v)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, inner := range v {
			out[k] = normalizeValue(inner)
		}
		return out
	case []any:
		out := make([]any, 0, len(v))
		for _, inner := range v {
			out = append(out, normalizeValue(inner))
		}
		return out
	default:
		return val
	}
}

// CollapseWhitespace trims and folds runs of whitespace into single spaces.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// MergeAttrs merges a normalized payload into an existing attribute bag.
// Payload values win; the "title" key is lifted out for the row title and not
// stored in the bag. Lists are replaced wholesale.
func MergeAttrs(existing []byte, payload map[string]any) (attrs []byte, title string, err error) {
	bag, err := decodeAttrs(existing)
	if err != nil {
		return nil, "", err
	}
	for key, val := range payload {
		if key == "title" {
			if s, ok := val.(string); ok {
				title = s
			}
			continue
		}
		bag[key] = val
	}
	raw, err := json.Marshal(bag)
	if err != nil {
		return nil, "", fmt.Errorf("encode attrs: %w", err)
	}
	return raw, title, nil
}
