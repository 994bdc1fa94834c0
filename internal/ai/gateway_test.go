package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/archiletras/fichas-backend/internal/domain"
	"github.com/archiletras/fichas-backend/internal/platform/logger"
)

type fakeProvider struct {
	name        string
	configured  bool
	reachable   bool
	output      string
	err         error
	calls       int
	panicProbe  bool
	reachableFn func(ctx context.Context) bool
}

func (p *fakeProvider) Name() string       { return p.name }
func (p *fakeProvider) IsConfigured() bool { return p.configured }

func (p *fakeProvider) IsReachable(ctx context.Context) bool {
	if p.panicProbe {
		panic("probe blew up")
	}
	if p.reachableFn != nil {
		return p.reachableFn(ctx)
	}
	return p.reachable
}

func (p *fakeProvider) GenerateText(ctx context.Context, prompt string) (string, error) {
	p.calls++
	if p.err != nil {
		return "", p.err
	}
	return p.output, nil
}

func newTestGateway(defaultProvider string, providers ...TextGenerator) *Gateway {
	return NewGateway(logger.NewNop(), defaultProvider, time.Second, time.Second, providers...)
}

func TestGenerateUsesDefaultProviderFirst(t *testing.T) {
	first := &fakeProvider{name: "openai", configured: true, output: "from openai"}
	second := &fakeProvider{name: "deepseek", configured: true, output: "from deepseek"}
	g := newTestGateway("deepseek", first, second)

	res, err := g.Generate(context.Background(), "hello", GenerateOptions{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.ProviderUsed != "deepseek" {
		t.Fatalf("expected default provider deepseek, got %q", res.ProviderUsed)
	}
	if first.calls != 0 {
		t.Fatalf("non-default provider was called %d times before the default", first.calls)
	}
}

func TestGenerateFallsBackOnProviderFailure(t *testing.T) {
	broken := &fakeProvider{name: "openai", configured: true, err: errors.New("boom")}
	healthy := &fakeProvider{name: "ollama", configured: true, output: "fallback text"}
	g := newTestGateway("openai", broken, healthy)

	res, err := g.Generate(context.Background(), "hello", GenerateOptions{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.ProviderUsed != "ollama" {
		t.Fatalf("expected fallback to ollama, got %q", res.ProviderUsed)
	}
	if res.Output != "fallback text" {
		t.Fatalf("unexpected output %q", res.Output)
	}
	if broken.calls != 1 {
		t.Fatalf("broken provider called %d times, want 1", broken.calls)
	}
}

func TestGenerateSkipsUnconfiguredProviders(t *testing.T) {
	unconfigured := &fakeProvider{name: "openai", configured: false}
	configured := &fakeProvider{name: "deepseek", configured: true, output: "ok"}
	g := newTestGateway("openai", unconfigured, configured)

	res, err := g.Generate(context.Background(), "hello", GenerateOptions{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.ProviderUsed != "deepseek" {
		t.Fatalf("expected deepseek, got %q", res.ProviderUsed)
	}
	if unconfigured.calls != 0 {
		t.Fatalf("unconfigured provider was called")
	}
}

func TestGenerateAggregatesAllFailures(t *testing.T) {
	a := &fakeProvider{name: "openai", configured: true, err: errors.New("rate limited")}
	b := &fakeProvider{name: "deepseek", configured: true, err: errors.New("timeout")}
	g := newTestGateway("openai", a, b)

	_, err := g.Generate(context.Background(), "hello", GenerateOptions{})
	if !domain.IsCode(err, domain.CodeAllProvidersFailed) {
		t.Fatalf("expected all_providers_failed, got %v", err)
	}
	de := domain.AsError(err)
	if len(de.PerProvider) != 2 {
		t.Fatalf("expected 2 per-provider failures, got %d", len(de.PerProvider))
	}
	if de.PerProvider["openai"] != "rate limited" || de.PerProvider["deepseek"] != "timeout" {
		t.Fatalf("unexpected failure map %v", de.PerProvider)
	}
}

func TestGenerateOverridePinsProvider(t *testing.T) {
	a := &fakeProvider{name: "openai", configured: true, output: "default"}
	b := &fakeProvider{name: "ollama", configured: true, output: "pinned"}
	g := newTestGateway("openai", a, b)

	res, err := g.Generate(context.Background(), "hello", GenerateOptions{ProviderOverride: "ollama"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.ProviderUsed != "ollama" || res.Output != "pinned" {
		t.Fatalf("override ignored: provider=%q output=%q", res.ProviderUsed, res.Output)
	}
	if a.calls != 0 {
		t.Fatalf("default provider called despite override")
	}
}

func TestGenerateOverrideDoesNotFallBack(t *testing.T) {
	pinned := &fakeProvider{name: "ollama", configured: true, err: errors.New("down")}
	other := &fakeProvider{name: "openai", configured: true, output: "ok"}
	g := newTestGateway("openai", other, pinned)

	_, err := g.Generate(context.Background(), "hello", GenerateOptions{ProviderOverride: "ollama"})
	if !domain.IsCode(err, domain.CodeAllProvidersFailed) {
		t.Fatalf("expected all_providers_failed, got %v", err)
	}
	if other.calls != 0 {
		t.Fatalf("fallback ran past an explicit override")
	}
}

func TestGenerateOverrideUnconfiguredIsValidation(t *testing.T) {
	g := newTestGateway("openai", &fakeProvider{name: "openai", configured: true, output: "ok"})

	_, err := g.Generate(context.Background(), "hello", GenerateOptions{ProviderOverride: "deepseek"})
	if !domain.IsCode(err, domain.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGenerateEmptyPrompt(t *testing.T) {
	g := newTestGateway("openai", &fakeProvider{name: "openai", configured: true, output: "ok"})

	_, err := g.Generate(context.Background(), "   ", GenerateOptions{})
	if !domain.IsCode(err, domain.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGenerateNoConfiguredProviders(t *testing.T) {
	g := newTestGateway("openai", &fakeProvider{name: "openai"}, &fakeProvider{name: "deepseek"})

	_, err := g.Generate(context.Background(), "hello", GenerateOptions{})
	if !domain.IsCode(err, domain.CodeAllProvidersFailed) {
		t.Fatalf("expected all_providers_failed, got %v", err)
	}
}

func TestHealthReport(t *testing.T) {
	g := newTestGateway("openai",
		&fakeProvider{name: "openai", configured: true, reachable: true},
		&fakeProvider{name: "deepseek", configured: false},
		&fakeProvider{name: "ollama", configured: true, reachable: false},
	)

	report := g.Health(context.Background())
	if report.DefaultProvider != "openai" {
		t.Fatalf("default provider %q", report.DefaultProvider)
	}
	if len(report.Providers) != 3 {
		t.Fatalf("expected 3 providers, got %d", len(report.Providers))
	}
	byName := map[string]ProviderHealth{}
	for _, p := range report.Providers {
		byName[p.Name] = p
	}
	if !byName["openai"].Configured || !byName["openai"].Reachable {
		t.Fatalf("openai health wrong: %+v", byName["openai"])
	}
	if byName["deepseek"].Configured || byName["deepseek"].Reachable {
		t.Fatalf("unconfigured provider must report false/false: %+v", byName["deepseek"])
	}
	if byName["ollama"].Reachable {
		t.Fatalf("unreachable provider reported reachable")
	}
}

func TestHealthProbeTimeoutIsUnreachable(t *testing.T) {
	hung := &fakeProvider{
		name:       "openai",
		configured: true,
		// Blocks until the per-probe timeout cancels the context, like a
		// provider endpoint that accepts the connection and never answers.
		reachableFn: func(ctx context.Context) bool {
			<-ctx.Done()
			return ctx.Err() == nil
		},
	}
	g := NewGateway(logger.NewNop(), "openai", time.Second, 20*time.Millisecond, hung)

	done := make(chan HealthReport, 1)
	go func() { done <- g.Health(context.Background()) }()

	select {
	case report := <-done:
		if report.Providers[0].Reachable {
			t.Fatalf("timed-out probe reported reachable")
		}
	case <-time.After(time.Second):
		t.Fatalf("probe timeout did not fire")
	}
}

func TestHealthProbePanicIsUnreachable(t *testing.T) {
	g := newTestGateway("openai",
		&fakeProvider{name: "openai", configured: true, panicProbe: true},
	)

	report := g.Health(context.Background())
	if report.Providers[0].Reachable {
		t.Fatalf("panicking probe must report unreachable")
	}
}
