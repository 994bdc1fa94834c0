package cards

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/archiletras/fichas-backend/internal/types"
)

type anthologySubtype struct{}

func (anthologySubtype) Tag() string { return types.SubtypeAnthology }

func (anthologySubtype) MissingFields(f *types.Ficha, t Transition) []string {
	var missing []string
	if strings.TrimSpace(f.Title) == "" {
		missing = append(missing, "title")
	}
	if t == ToValidated {
		attrs, err := decodeAttrs(f.Attrs)
		if err != nil {
			return append(missing, "publisher", "description")
		}
		if strings.TrimSpace(strField(attrs, "publisher")) == "" {
			missing = append(missing, "publisher")
		}
		if strings.TrimSpace(strField(attrs, "description")) == "" {
			missing = append(missing, "description")
		}
	}
	return missing
}

func (anthologySubtype) NaturalKey(attrs map[string]any) ([]KeyField, bool) {
	title := strings.TrimSpace(strField(attrs, "title"))
	if title == "" {
		return nil, false
	}
	key := []KeyField{{Field: "title", Value: title}}
	if year := strings.TrimSpace(strField(attrs, "published_year")); year != "" {
		key = append(key, KeyField{Field: "published_year", Value: year})
	}
	return key, true
}

func (anthologySubtype) Sections(f *types.Ficha, tpl Templates) ([]Section, error) {
	attrs, err := decodeAttrs(f.Attrs)
	if err != nil {
		return nil, err
	}
	sections := []Section{{
		ID: "summary",
		Prompt: renderPrompt(tpl.AnthologySummary, map[string]string{
			"title":          f.Title,
			"publisher":      strField(attrs, "publisher"),
			"published_year": strField(attrs, "published_year"),
			"description":    strField(attrs, "description"),
		}),
	}}
	for i, w := range listField(attrs, "works") {
		sections = append(sections, Section{
			ID: fmt.Sprintf("work:%d", i),
			Prompt: renderPrompt(tpl.WorkSummary, map[string]string{
				"title": strField(w, "title"),
				"year":  strField(w, "year"),
				"genre": strField(w, "genre"),
			}),
		})
	}
	return sections, nil
}

func (anthologySubtype) ApplySections(raw []byte, outputs map[string]string) ([]byte, error) {
	attrs, err := decodeAttrs(raw)
	if err != nil {
		return nil, err
	}
	if text, ok := outputs["summary"]; ok {
		attrs["summary"] = text
	}
	applyIndexedOutputs(attrs, "works", "work:", outputs)
	return json.Marshal(attrs)
}

func (anthologySubtype) Project(f *types.Ficha) ([]Node, []Edge, error) {
	attrs, err := decodeAttrs(f.Attrs)
	if err != nil {
		return nil, nil, err
	}

	nodes := []Node{{
		Label: "Anthology",
		Merge: map[string]any{"title": orPlaceholder(f.Title)},
		Props: map[string]any{
			"publisher":     orPlaceholder(strField(attrs, "publisher")),
			"publishedYear": orPlaceholder(strField(attrs, "published_year")),
			"description":   orPlaceholder(strField(attrs, "description")),
			"summary":       orPlaceholder(strField(attrs, "summary")),
		},
	}}
	var edges []Edge

	for _, w := range listField(attrs, "works") {
		nodes = append(nodes, Node{
			Label: "Work",
			Merge: map[string]any{"title": orPlaceholder(strField(w, "title"))},
			Props: map[string]any{
				"year":    orPlaceholder(strField(w, "year")),
				"genre":   orPlaceholder(strField(w, "genre")),
				"summary": orPlaceholder(strField(w, "summary")),
			},
		})
		edges = append(edges, Edge{From: 0, To: len(nodes) - 1, Type: "COLLECTS"})
	}

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
