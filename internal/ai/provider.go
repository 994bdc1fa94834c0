package ai

import "context"

// TextGenerator is the capability every text-generation provider implements.
// Adding a provider means implementing this and registering it with the
// gateway; orchestration code never changes.
type TextGenerator interface {
	// Name is the stable provider identifier used for overrides and health.
	Name() string

	// GenerateText runs one prompt and returns the generated text.
	GenerateText(ctx context.Context, prompt string) (string, error)

	// IsConfigured reports whether the provider's credentials/endpoint are
	// present. Static per process.
	IsConfigured() bool

	// IsReachable is a best-effort network probe. It must never panic or
	// error; any failure resolves to false.
	IsReachable(ctx context.Context) bool
}
