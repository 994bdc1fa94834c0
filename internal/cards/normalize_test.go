package cards

import (
	"encoding/json"
	"testing"
)

func TestNormalizePayloadStripsReservedKeys(t *testing.T) {
	payload := map[string]any{
		"full_name":         "Gabriela Mistral",
		"status":            "validated",
		"Status":            "validated",
		" subtype ":         "magazine",
		"id":                "11111111-1111-1111-1111-111111111111",
		"rejection_note":    "sneaky",
		"graph_synced_at":   "2026-01-01",
		"status_changed_at": "2026-01-01",
	}

	out := NormalizePayload(payload)
	if len(out) != 1 {
		t.Fatalf("expected only full_name to survive, got %v", out)
	}
	if out["full_name"] != "Gabriela Mistral" {
		t.Fatalf("full_name mangled: %v", out["full_name"])
	}
}

func TestNormalizePayloadCollapsesWhitespaceRecursively(t *testing.T) {
	payload := map[string]any{
		"full_name": "  Gabriela \t  Mistral \n",
		"works": []any{
			map[string]any{"title": " Desolación  \n "},
		},
		"count": float64(3),
	}

	out := NormalizePayload(payload)
	if out["full_name"] != "Gabriela Mistral" {
		t.Fatalf("whitespace not collapsed: %q", out["full_name"])
	}
	works := out["works"].([]any)
	if works[0].(map[string]any)["title"] != "Desolación" {
		t.Fatalf("nested whitespace not collapsed: %v", works[0])
	}
	if out["count"] != float64(3) {
		t.Fatalf("non-string value changed: %v", out["count"])
	}
}

func TestCollapseWhitespace(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"   ", ""},
		{"gabriela   mistral", "gabriela mistral"},
		{"\tone\n two  ", "one two"},
	}
	for _, tc := range cases {
		if got := CollapseWhitespace(tc.in); got != tc.want {
			t.Fatalf("CollapseWhitespace(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMergeAttrsLiftsTitleAndReplacesLists(t *testing.T) {
	existing, _ := json.Marshal(map[string]any{
		"biography": "old bio",
		"works":     []any{map[string]any{"title": "Old Work"}},
	})

	attrs, title, err := MergeAttrs(existing, map[string]any{
		"title":      "Gabriela Mistral",
		"birth_date": "1889-04-07",
		"works": []any{
			map[string]any{"title": "Desolación"},
			map[string]any{"title": "Tala"},
		},
	})
	if err != nil {
		t.Fatalf("MergeAttrs: %v", err)
	}
	if title != "Gabriela Mistral" {
		t.Fatalf("title not lifted: %q", title)
	}

	var bag map[string]any
	if err := json.Unmarshal(attrs, &bag); err != nil {
		t.Fatalf("decode merged attrs: %v", err)
	}
	if _, ok := bag["title"]; ok {
		t.Fatalf("title leaked into the attribute bag")
	}
	if bag["biography"] != "old bio" {
		t.Fatalf("untouched field lost: %v", bag["biography"])
	}
	if bag["birth_date"] != "1889-04-07" {
		t.Fatalf("new field missing: %v", bag["birth_date"])
	}
	works := bag["works"].([]any)
	if len(works) != 2 {
		t.Fatalf("list not replaced wholesale: %v", works)
	}
}

func TestNormalizeKeyAndEscapeLike(t *testing.T) {
	if got := normalizeKey("  Gabriela   MISTRAL "); got != "gabriela mistral" {
		t.Fatalf("normalizeKey = %q", got)
	}
	if got := escapeLike(`100%_done\`); got != `100\%\_done\\` {
		t.Fatalf("escapeLike = %q", got)
	}
}
