package cards

import (
	"encoding/json"
	"strings"

	"github.com/archiletras/fichas-backend/internal/types"
)

type magazineSubtype struct{}

func (magazineSubtype) Tag() string { return types.SubtypeMagazine }

func (magazineSubtype) MissingFields(f *types.Ficha, t Transition) []string {
	var missing []string
	if strings.TrimSpace(f.Title) == "" {
		missing = append(missing, "title")
	}
	if t == ToValidated {
		attrs, err := decodeAttrs(f.Attrs)
		if err != nil {
			return append(missing, "publication_place", "description")
		}
		if strings.TrimSpace(strField(attrs, "publication_place")) == "" {
			missing = append(missing, "publication_place")
		}
		if strings.TrimSpace(strField(attrs, "description")) == "" {
			missing = append(missing, "description")
		}
	}
	return missing
}

func (magazineSubtype) NaturalKey(attrs map[string]any) ([]KeyField, bool) {
	title := strings.TrimSpace(strField(attrs, "title"))
	if title == "" {
		return nil, false
	}
	return []KeyField{{Field: "title", Value: title}}, true
}

func (magazineSubtype) Sections(f *types.Ficha, tpl Templates) ([]Section, error) {
	attrs, err := decodeAttrs(f.Attrs)
	if err != nil {
		return nil, err
	}
	return []Section{{
		ID: "summary",
		Prompt: renderPrompt(tpl.MagazineSummary, map[string]string{
			"title":             f.Title,
			"publication_place": strField(attrs, "publication_place"),
			"founded_year":      strField(attrs, "founded_year"),
			"description":       strField(attrs, "description"),
		}),
	}}, nil
}

func (magazineSubtype) ApplySections(raw []byte, outputs map[string]string) ([]byte, error) {
	attrs, err := decodeAttrs(raw)
	if err != nil {
		return nil, err
	}
	if text, ok := outputs["summary"]; ok {
		attrs["summary"] = text
	}
	return json.Marshal(attrs)
}

func (magazineSubtype) Project(f *types.Ficha) ([]Node, []Edge, error) {
	attrs, err := decodeAttrs(f.Attrs)
	if err != nil {
		return nil, nil, err
	}

	nodes := []Node{{
		Label: "Magazine",
		Merge: map[string]any{"title": orPlaceholder(f.Title)},
		Props: map[string]any{
			"foundedYear": orPlaceholder(strField(attrs, "founded_year")),
			"ceasedYear":  orPlaceholder(strField(attrs, "ceased_year")),
			"description": orPlaceholder(strField(attrs, "description")),
			"summary":     orPlaceholder(strField(attrs, "summary")),
		},
	}}
	var edges []Edge

	if place := strings.TrimSpace(strField(attrs, "publication_place")); place != "" {
		nodes = append(nodes, Node{
			Label: "Place",
			Merge: map[string]any{"name": place},
			Props: map[string]any{},
		})
		edges = append(edges, Edge{From: 0, To: len(nodes) - 1, Type: "PUBLISHED_IN"})
	}

	nodes, edges = appendMultimedia(nodes, edges, attrs, 0)
	return nodes, edges, nil
}
