package cards

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/archiletras/fichas-backend/internal/types"
)

func fichaWith(t *testing.T, subtype, title string, attrs map[string]any) *types.Ficha {
	t.Helper()
	raw, err := json.Marshal(attrs)
	if err != nil {
		t.Fatalf("encode attrs: %v", err)
	}
	return &types.Ficha{Subtype: subtype, Title: title, Attrs: raw}
}

func TestForTagUnknownSubtype(t *testing.T) {
	if _, err := ForTag("movie"); err == nil {
		t.Fatalf("expected error for unknown subtype")
	}
}

func TestMissingFields(t *testing.T) {
	cases := []struct {
		name       string
		subtype    string
		title      string
		attrs      map[string]any
		transition Transition
		want       []string
	}{
		{
			name:       "author review needs full name",
			subtype:    types.SubtypeAuthor,
			attrs:      map[string]any{"full_name": "   "},
			transition: ToReview,
			want:       []string{"full_name"},
		},
		{
			name:       "author review ready",
			subtype:    types.SubtypeAuthor,
			attrs:      map[string]any{"full_name": "Gabriela Mistral"},
			transition: ToReview,
			want:       nil,
		},
		{
			name:       "author validation needs birth date and biography",
			subtype:    types.SubtypeAuthor,
			attrs:      map[string]any{"full_name": "Gabriela Mistral"},
			transition: ToValidated,
			want:       []string{"birth_date", "biography"},
		},
		{
			name:       "magazine review needs title",
			subtype:    types.SubtypeMagazine,
			title:      "",
			attrs:      map[string]any{},
			transition: ToReview,
			want:       []string{"title"},
		},
		{
			name:       "magazine validation needs place and description",
			subtype:    types.SubtypeMagazine,
			title:      "Repertorio Americano",
			attrs:      map[string]any{},
			transition: ToValidated,
			want:       []string{"publication_place", "description"},
		},
		{
			name:       "anthology validation needs publisher and description",
			subtype:    types.SubtypeAnthology,
			title:      "Antología de poesía chilena",
			attrs:      map[string]any{"publisher": "Zig-Zag"},
			transition: ToValidated,
			want:       []string{"description"},
		},
		{
			name:       "grouping validation needs description",
			subtype:    types.SubtypeGrouping,
			title:      "Generación del 38",
			attrs:      map[string]any{},
			transition: ToValidated,
			want:       []string{"description"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sub, err := ForTag(tc.subtype)
			if err != nil {
				t.Fatalf("ForTag: %v", err)
			}
			f := fichaWith(t, tc.subtype, tc.title, tc.attrs)
			got := sub.MissingFields(f, tc.transition)
			if strings.Join(got, ",") != strings.Join(tc.want, ",") {
				t.Fatalf("MissingFields = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestAuthorNaturalKey(t *testing.T) {
	sub, _ := ForTag(types.SubtypeAuthor)

	if _, ok := sub.NaturalKey(map[string]any{"full_name": "  "}); ok {
		t.Fatalf("blank full name must yield no key")
	}

	key, ok := sub.NaturalKey(map[string]any{"full_name": "Gabriela Mistral", "birth_date": "1889-04-07"})
	if !ok {
		t.Fatalf("expected key")
	}
	if len(key) != 2 || key[0].Field != "full_name" || key[1].Field != "birth_date" {
		t.Fatalf("unexpected key %v", key)
	}
}

func TestAuthorSectionsCoverWorksAndCriticisms(t *testing.T) {
	sub, _ := ForTag(types.SubtypeAuthor)
	f := fichaWith(t, types.SubtypeAuthor, "Gabriela Mistral", map[string]any{
		"full_name": "Gabriela Mistral",
		"works": []any{
			map[string]any{"title": "Desolación", "year": "1922"},
			map[string]any{"title": "Tala"},
		},
		"criticisms": []any{
			map[string]any{"author": "Alone", "title": "Sobre Desolación", "text": "..."},
		},
	})

	sections, err := sub.Sections(f, DefaultTemplates())
	if err != nil {
		t.Fatalf("Sections: %v", err)
	}
	if len(sections) != 4 {
		t.Fatalf("expected summary + 2 works + 1 criticism, got %d", len(sections))
	}
	ids := map[string]bool{}
	for _, s := range sections {
		ids[s.ID] = true
		if strings.TrimSpace(s.Prompt) == "" {
			t.Fatalf("section %q has an empty prompt", s.ID)
		}
	}
	for _, want := range []string{"summary", "work:0", "work:1", "criticism:0"} {
		if !ids[want] {
			t.Fatalf("missing section %q in %v", want, ids)
		}
	}
}

func TestAuthorSectionPromptsAreSectionScoped(t *testing.T) {
	sub, _ := ForTag(types.SubtypeAuthor)
	f := fichaWith(t, types.SubtypeAuthor, "Gabriela Mistral", map[string]any{
		"full_name": "Gabriela Mistral",
		"biography": "SECRET-BIOGRAPHY",
		"works": []any{
			map[string]any{"title": "Desolación", "year": "1922", "genre": "poetry"},
		},
	})

	sections, err := sub.Sections(f, DefaultTemplates())
	if err != nil {
		t.Fatalf("Sections: %v", err)
	}
	for _, s := range sections {
		if s.ID == "work:0" && strings.Contains(s.Prompt, "SECRET-BIOGRAPHY") {
			t.Fatalf("work prompt leaked author fields: %q", s.Prompt)
		}
	}
}

func TestAuthorApplySections(t *testing.T) {
	sub, _ := ForTag(types.SubtypeAuthor)
	raw, _ := json.Marshal(map[string]any{
		"full_name": "Gabriela Mistral",
		"works": []any{
			map[string]any{"title": "Desolación"},
			map[string]any{"title": "Tala"},
		},
	})

	out, err := sub.ApplySections(raw, map[string]string{
		"summary": "generated author summary",
		"work:1":  "generated work summary",
	})
	if err != nil {
		t.Fatalf("ApplySections: %v", err)
	}

	var bag map[string]any
	if err := json.Unmarshal(out, &bag); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if bag["summary"] != "generated author summary" {
		t.Fatalf("summary not applied: %v", bag["summary"])
	}
	works := bag["works"].([]any)
	if _, ok := works[0].(map[string]any)["summary"]; ok {
		t.Fatalf("work:0 got a summary it should not have")
	}
	if works[1].(map[string]any)["summary"] != "generated work summary" {
		t.Fatalf("work:1 summary not applied: %v", works[1])
	}
}

func TestAuthorProjection(t *testing.T) {
	sub, _ := ForTag(types.SubtypeAuthor)
	f := fichaWith(t, types.SubtypeAuthor, "Gabriela Mistral", map[string]any{
		"full_name":   "Gabriela Mistral",
		"birth_place": "Vicuña",
		"works": []any{
			map[string]any{"title": "Desolación"},
		},
		"criticisms": []any{
			map[string]any{"author": "Alone", "title": "Sobre Desolación"},
		},
		"multimedia": []any{
			map[string]any{"kind": "photo", "url": "https://example.org/gm.jpg"},
		},
	})

	nodes, edges, err := sub.Project(f)
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	// Author + Work + Criticism + Multimedia + Place.
	if len(nodes) != 5 {
		t.Fatalf("expected 5 nodes, got %d: %v", len(nodes), nodes)
	}
	if len(edges) != 4 {
		t.Fatalf("expected 4 edges, got %d: %v", len(edges), edges)
	}
	if nodes[0].Label != "Author" || nodes[0].Merge["fullName"] != "Gabriela Mistral" {
		t.Fatalf("author node wrong: %+v", nodes[0])
	}

	edgeTypes := map[string]bool{}
	for _, e := range edges {
		edgeTypes[e.Type] = true
		if e.From < 0 || e.From >= len(nodes) || e.To < 0 || e.To >= len(nodes) {
			t.Fatalf("edge indexes out of range: %+v", e)
		}
	}
	for _, want := range []string{"CREATED", "CRITIQUES", "HAS_MEDIA", "BORN_IN"} {
		if !edgeTypes[want] {
			t.Fatalf("missing edge type %s in %v", want, edgeTypes)
		}
	}
}

func TestProjectionNeverEmitsEmptyProps(t *testing.T) {
	sub, _ := ForTag(types.SubtypeAuthor)
	f := fichaWith(t, types.SubtypeAuthor, "", map[string]any{
		"full_name": "Gabriela Mistral",
	})

	nodes, _, err := sub.Project(f)
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	for key, val := range nodes[0].Props {
		if s, ok := val.(string); ok && s == "" {
			t.Fatalf("prop %q is empty, want placeholder", key)
		}
	}
	if nodes[0].Props["biography"] != Placeholder {
		t.Fatalf("missing biography should project as %q, got %v", Placeholder, nodes[0].Props["biography"])
	}
}

func TestGroupingProjectionSkipsUnnamedMembers(t *testing.T) {
	sub, _ := ForTag(types.SubtypeGrouping)
	f := fichaWith(t, types.SubtypeGrouping, "Generación del 38", map[string]any{
		"members": []any{
			map[string]any{"name": "Nicomedes Guzmán"},
			map[string]any{"name": "   "},
		},
	})

	nodes, edges, err := sub.Project(f)
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("expected grouping + 1 member, got %d", len(nodes))
	}
	if edges[0].Type != "MEMBER_OF" || edges[0].From != 1 || edges[0].To != 0 {
		t.Fatalf("member edge wrong: %+v", edges[0])
	}
}

func TestRenderPrompt(t *testing.T) {
	out := renderPrompt("About {title}, founded {founded_year}.", map[string]string{
		"title":        "Mandrágora",
		"founded_year": "",
	})
	if out != "About Mandrágora, founded (not recorded)." {
		t.Fatalf("renderPrompt = %q", out)
	}
}
