package cards

import (
	"encoding/json"
	"fmt"

	"github.com/archiletras/fichas-backend/internal/types"
)

// Transition names the two gated status moves.
type Transition string

const (
	ToReview    Transition = "to_review"
	ToValidated Transition = "to_validated"
)

// Placeholder substitutes null/empty source fields in graph properties so the
// projection never stores nulls.
const Placeholder = "unknown"

// Node is one derived graph node. Merge holds the natural-key properties used
// for idempotent MERGE; Props holds the remaining properties. The ficha id is
// stamped onto every node by the graph layer.
type Node struct {
	Label string
	Merge map[string]any
	Props map[string]any
}

// Edge connects two nodes of a projection by index into the node slice.
type Edge struct {
	From int
	To   int
	Type string
}

// Section is one enrichable free-text unit of a card. The prompt for a section
// is built from that section's own fields only.
type Section struct {
	// ID addresses where the generated text is written back, e.g. "summary",
	// "work:0", "criticism:2".
	ID     string
	Prompt string
}

// KeyField is one component of a subtype's natural key. Field "title" refers
// to the row title column; any other name refers to an attribute-bag key.
type KeyField struct {
	Field string
	Value string
}

// Subtype is the capability set implemented once per card subtype: readiness
// rules, natural key, enrichable sections and the graph projector. Selected
// once by tag instead of switch statements scattered through the lifecycle.
type Subtype interface {
	Tag() string

	// MissingFields returns the field names still required for the given
	// transition. Empty means ready.
	MissingFields(f *types.Ficha, t Transition) []string

	// NaturalKey returns the duplicate-detection key fields. ok is false when
	// the key is blank and no duplicate check is possible.
	NaturalKey(attrs map[string]any) (key []KeyField, ok bool)

	// Sections lists the enrichable text sections of the card.
	Sections(f *types.Ficha, tpl Templates) ([]Section, error)

	// ApplySections writes generated texts back into the attribute bag and
	// returns the updated bag.
	ApplySections(attrs []byte, outputs map[string]string) ([]byte, error)

	// Project derives the full node/edge set for a validated card.
	Project(f *types.Ficha) ([]Node, []Edge, error)
}

var registry = map[string]Subtype{
	types.SubtypeAuthor:    authorSubtype{},
	types.SubtypeMagazine:  magazineSubtype{},
	types.SubtypeAnthology: anthologySubtype{},
	types.SubtypeGrouping:  groupingSubtype{},
}

// ForTag resolves the capability set for a subtype tag.
func ForTag(tag string) (Subtype, error) {
	s, ok := registry[tag]
	if !ok {
		return nil, fmt.Errorf("unknown card subtype %q", tag)
	}
	return s, nil
}

func decodeAttrs(raw []byte) (map[string]any, error) {
	attrs := map[string]any{}
	if len(raw) == 0 {
		return attrs, nil
	}
	if err := json.Unmarshal(raw, &attrs); err != nil {
		return nil, fmt.Errorf("decode attrs: %w", err)
	}
	return attrs, nil
}

func strField(attrs map[string]any, key string) string {
	v, _ := attrs[key].(string)
	return v
}

func orPlaceholder(s string) string {
	if s == "" {
		return Placeholder
	}
	return s
}

func listField(attrs map[string]any, key string) []map[string]any {
	raw, _ := attrs[key].([]any)
	out := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}
