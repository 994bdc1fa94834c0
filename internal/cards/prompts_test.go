package cards

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadTemplatesEmptyPathUsesDefaults(t *testing.T) {
	tpl, err := LoadTemplates("")
	if err != nil {
		t.Fatalf("LoadTemplates: %v", err)
	}
	if tpl != DefaultTemplates() {
		t.Fatalf("empty path should return defaults")
	}
}

func TestLoadTemplatesOverridesOnlyNamedEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	raw := "author_summary: \"Describe {full_name} briefly.\"\n"
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	tpl, err := LoadTemplates(path)
	if err != nil {
		t.Fatalf("LoadTemplates: %v", err)
	}
	if tpl.AuthorSummary != "Describe {full_name} briefly." {
		t.Fatalf("override not applied: %q", tpl.AuthorSummary)
	}
	if tpl.WorkSummary != DefaultTemplates().WorkSummary {
		t.Fatalf("unrelated template changed: %q", tpl.WorkSummary)
	}
}

func TestLoadTemplatesMissingFile(t *testing.T) {
	tpl, err := LoadTemplates("/nonexistent/prompts.yaml")
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
	if tpl != DefaultTemplates() {
		t.Fatalf("missing file should still return defaults")
	}
}
