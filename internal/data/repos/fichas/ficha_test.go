package fichas

import (
	"testing"
	"time"
)

func TestWithUpdatedAtDoesNotMutateInput(t *testing.T) {
	fields := map[string]any{"status": "draft"}

	patch := withUpdatedAt(fields)

	if len(fields) != 1 {
		t.Fatalf("caller map was mutated: %v", fields)
	}
	if _, ok := fields["updated_at"]; ok {
		t.Fatalf("updated_at leaked into caller map")
	}
	if patch["status"] != "draft" {
		t.Fatalf("patch lost a field: %v", patch)
	}
	if _, ok := patch["updated_at"].(time.Time); !ok {
		t.Fatalf("patch missing updated_at stamp: %v", patch)
	}
}
