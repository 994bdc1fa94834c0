package cards

import (
	"encoding/json"
	"strings"

	"github.com/archiletras/fichas-backend/internal/types"
)

type groupingSubtype struct{}

func (groupingSubtype) Tag() string { return types.SubtypeGrouping }

func (groupingSubtype) MissingFields(f *types.Ficha, t Transition) []string {
	var missing []string
	if strings.TrimSpace(f.Title) == "" {
		missing = append(missing, "title")
	}
	if t == ToValidated {
		attrs, err := decodeAttrs(f.Attrs)
		if err != nil {
			return append(missing, "description")
		}
		if strings.TrimSpace(strField(attrs, "description")) == "" {
			missing = append(missing, "description")
		}
	}
	return missing
}

func (groupingSubtype) NaturalKey(attrs map[string]any) ([]KeyField, bool) {
	title := strings.TrimSpace(strField(attrs, "title"))
	if title == "" {
		return nil, false
	}
	return []KeyField{{Field: "title", Value: title}}, true
}

func (groupingSubtype) Sections(f *types.Ficha, tpl Templates) ([]Section, error) {
	attrs, err := decodeAttrs(f.Attrs)
	if err != nil {
		return nil, err
	}
	return []Section{{
		ID: "summary",
		Prompt: renderPrompt(tpl.GroupingSummary, map[string]string{
			"title":        f.Title,
			"founded_year": strField(attrs, "founded_year"),
			"description":  strField(attrs, "description"),
		}),
	}}, nil
}

func (groupingSubtype) ApplySections(raw []byte, outputs map[string]string) ([]byte, error) {
	attrs, err := decodeAttrs(raw)
	if err != nil {
		return nil, err
	}
	if text, ok := outputs["summary"]; ok {
		attrs["summary"] = text
	}
	return json.Marshal(attrs)
}

func (groupingSubtype) Project(f *types.Ficha) ([]Node, []Edge, error) {
	attrs, err := decodeAttrs(f.Attrs)
	if err != nil {
		return nil, nil, err
	}

	nodes := []Node{{
		Label: "Grouping",
		Merge: map[string]any{"title": orPlaceholder(f.Title)},
		Props: map[string]any{
			"foundedYear": orPlaceholder(strField(attrs, "founded_year")),
			"description": orPlaceholder(strField(attrs, "description")),
			"summary":     orPlaceholder(strField(attrs, "summary")),
		},
	}}
	var edges []Edge

	for _, m := range listField(attrs, "members") {
		name := strings.TrimSpace(strField(m, "name"))
		if name == "" {
			continue
		}
		nodes = append(nodes, Node{
			Label: "Author",
			Merge: map[string]any{"fullName": name},
			Props: map[string]any{
				"role": orPlaceholder(strField(m, "role")),
			},
		})
		edges = append(edges, Edge{From: len(nodes) - 1, To: 0, Type: "MEMBER_OF"})
	}

	nodes, edges = appendMultimedia(nodes, edges, attrs, 0)
	return nodes, edges, nil
}
