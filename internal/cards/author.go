package cards

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/archiletras/fichas-backend/internal/types"
)

// authorSubtype covers the richest attribute bag: biographical fields plus
// works, criticisms and multimedia, each with its own generated summary.
type authorSubtype struct{}

func (authorSubtype) Tag() string { return types.SubtypeAuthor }

func (authorSubtype) MissingFields(f *types.Ficha, t Transition) []string {
	attrs, err := decodeAttrs(f.Attrs)
	if err != nil {
		return []string{"full_name"}
	}
	var missing []string
	if strings.TrimSpace(strField(attrs, "full_name")) == "" {
		missing = append(missing, "full_name")
	}
	if t == ToValidated {
		if strings.TrimSpace(strField(attrs, "birth_date")) == "" {
			missing = append(missing, "birth_date")
		}
		if strings.TrimSpace(strField(attrs, "biography")) == "" {
			missing = append(missing, "biography")
		}
	}
	return missing
}

func (authorSubtype) NaturalKey(attrs map[string]any) ([]KeyField, bool) {
	fullName := strings.TrimSpace(strField(attrs, "full_name"))
	if fullName == "" {
		return nil, false
	}
	key := []KeyField{{Field: "full_name", Value: fullName}}
	if birth := strings.TrimSpace(strField(attrs, "birth_date")); birth != "" {
		key = append(key, KeyField{Field: "birth_date", Value: birth})
	}
	return key, true
}

func (authorSubtype) Sections(f *types.Ficha, tpl Templates) ([]Section, error) {
	attrs, err := decodeAttrs(f.Attrs)
	if err != nil {
		return nil, err
	}

	sections := []Section{{
		ID: "summary",
		Prompt: renderPrompt(tpl.AuthorSummary, map[string]string{
			"full_name":   strField(attrs, "full_name"),
			"birth_date":  strField(attrs, "birth_date"),
			"birth_place": strField(attrs, "birth_place"),
			"biography":   strField(attrs, "biography"),
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
	for i, c := range listField(attrs, "criticisms") {
		sections = append(sections, Section{
			ID: fmt.Sprintf("criticism:%d", i),
			Prompt: renderPrompt(tpl.CriticismSummary, map[string]string{
				"author": strField(c, "author"),
				"title":  strField(c, "title"),
				"text":   strField(c, "text"),
			}),
		})
	}
	return sections, nil
}

func (authorSubtype) ApplySections(raw []byte, outputs map[string]string) ([]byte, error) {
	attrs, err := decodeAttrs(raw)
	if err != nil {
		return nil, err
	}
	if text, ok := outputs["summary"]; ok {
		attrs["summary"] = text
	}
	applyIndexedOutputs(attrs, "works", "work:", outputs)
	applyIndexedOutputs(attrs, "criticisms", "criticism:", outputs)
	return json.Marshal(attrs)
}

func (authorSubtype) Project(f *types.Ficha) ([]Node, []Edge, error) {
	attrs, err := decodeAttrs(f.Attrs)
	if err != nil {
		return nil, nil, err
	}

	nodes := []Node{{
		Label: "Author",
		Merge: map[string]any{"fullName": orPlaceholder(strField(attrs, "full_name"))},
		Props: map[string]any{
			"title":      orPlaceholder(f.Title),
			"birthDate":  orPlaceholder(strField(attrs, "birth_date")),
			"deathDate":  orPlaceholder(strField(attrs, "death_date")),
			"birthPlace": orPlaceholder(strField(attrs, "birth_place")),
			"biography":  orPlaceholder(strField(attrs, "biography")),
			"summary":    orPlaceholder(strField(attrs, "summary")),
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
		edges = append(edges, Edge{From: 0, To: len(nodes) - 1, Type: "CREATED"})
	}

	for _, c := range listField(attrs, "criticisms") {
		nodes = append(nodes, Node{
			Label: "Criticism",
			Merge: map[string]any{
				"title":  orPlaceholder(strField(c, "title")),
				"author": orPlaceholder(strField(c, "author")),
			},
			Props: map[string]any{
				"text":    orPlaceholder(strField(c, "text")),
				"summary": orPlaceholder(strField(c, "summary")),
			},
		})
		edges = append(edges, Edge{From: len(nodes) - 1, To: 0, Type: "CRITIQUES"})
	}

	nodes, edges = appendMultimedia(nodes, edges, attrs, 0)

	if place := strings.TrimSpace(strField(attrs, "birth_place")); place != "" {
		nodes = append(nodes, Node{
			Label: "Place",
			Merge: map[string]any{"name": place},
			Props: map[string]any{},
		})
		edges = append(edges, Edge{From: 0, To: len(nodes) - 1, Type: "BORN_IN"})
	}

	return nodes, edges, nil
}

// applyIndexedOutputs writes "prefix:i" outputs into the summary field of the
// i-th entry of the named list.
func applyIndexedOutputs(attrs map[string]any, listKey, prefix string, outputs map[string]string) {
	raw, _ := attrs[listKey].([]any)
	for i, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if text, ok := outputs[fmt.Sprintf("%s%d", prefix, i)]; ok {
			m["summary"] = text
		}
	}
}

// appendMultimedia adds one node per multimedia entry, linked from the node at
// ownerIdx.
func appendMultimedia(nodes []Node, edges []Edge, attrs map[string]any, ownerIdx int) ([]Node, []Edge) {
	for _, m := range listField(attrs, "multimedia") {
		nodes = append(nodes, Node{
			Label: "Multimedia",
			Merge: map[string]any{"url": orPlaceholder(strField(m, "url"))},
			Props: map[string]any{
				"kind":    orPlaceholder(strField(m, "kind")),
				"caption": orPlaceholder(strField(m, "caption")),
			},
		})
		edges = append(edges, Edge{From: ownerIdx, To: len(nodes) - 1, Type: "HAS_MEDIA"})
	}
	return nodes, edges
}
