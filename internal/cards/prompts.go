package cards

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Templates holds the per-section prompt templates. Tokens of the form
// {field} are replaced with the section's own field values; a template never
// sees fields from another section.
type Templates struct {
	AuthorSummary    string `yaml:"author_summary"`
	WorkSummary      string `yaml:"work_summary"`
	CriticismSummary string `yaml:"criticism_summary"`
	MagazineSummary  string `yaml:"magazine_summary"`
	AnthologySummary string `yaml:"anthology_summary"`
	GroupingSummary  string `yaml:"grouping_summary"`
}

func DefaultTemplates() Templates {
	return Templates{
		AuthorSummary:    "Write a concise biographical summary of the author {full_name}. Birth date: {birth_date}. Birth place: {birth_place}. Known biography: {biography}",
		WorkSummary:      "Write a short summary of the literary work \"{title}\" ({year}), genre: {genre}.",
		CriticismSummary: "Summarize the following piece of literary criticism titled \"{title}\" by {author}: {text}",
		MagazineSummary:  "Write a concise description of the literary magazine {title}, published in {publication_place}, founded {founded_year}. Known description: {description}",
		AnthologySummary: "Write a concise description of the anthology {title}, published by {publisher} in {published_year}. Known description: {description}",
		GroupingSummary:  "Write a concise description of the literary group {title}, founded {founded_year}. Known description: {description}",
	}
}

// LoadTemplates reads template overrides from a YAML file, falling back to the
// defaults for any template the file leaves empty. An empty path returns the
// defaults.
func LoadTemplates(path string) (Templates, error) {
	tpl := DefaultTemplates()
	path = strings.TrimSpace(path)
	if path == "" {
		return tpl, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return tpl, fmt.Errorf("read prompt templates: %w", err)
	}
	var override Templates
	if err := yaml.Unmarshal(raw, &override); err != nil {
		return tpl, fmt.Errorf("parse prompt templates: %w", err)
	}
	merge := func(dst *string, src string) {
		if strings.TrimSpace(src) != "" {
			*dst = src
		}
	}
	merge(&tpl.AuthorSummary, override.AuthorSummary)
	merge(&tpl.WorkSummary, override.WorkSummary)
	merge(&tpl.CriticismSummary, override.CriticismSummary)
	merge(&tpl.MagazineSummary, override.MagazineSummary)
	merge(&tpl.AnthologySummary, override.AnthologySummary)
	merge(&tpl.GroupingSummary, override.GroupingSummary)
	return tpl, nil
}

func renderPrompt(tpl string, vals map[string]string) string {
	out := tpl
	for key, val := range vals {
		if strings.TrimSpace(val) == "" {
			val = "(not recorded)"
		}
		out = strings.ReplaceAll(out, "{"+key+"}", val)
	}
	return out
}
