package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/archiletras/fichas-backend/internal/domain"
	"github.com/archiletras/fichas-backend/internal/platform/logger"
)

// GenerateOptions tune a single gateway call.
type GenerateOptions struct {
	// ProviderOverride pins the call to one configured provider; no fallback
	// past it.
	ProviderOverride string
	// Timeout bounds the whole call including fallbacks. Zero uses the
	// gateway default.
	Timeout time.Duration
}

// GenerateResult reports which provider produced the output.
type GenerateResult struct {
	ProviderUsed string `json:"provider_used"`
	Output       string `json:"output"`
	LatencyMs    int64  `json:"latency_ms"`
}

// ProviderHealth is the per-provider slice of a health report. Ephemeral,
// recomputed per query.
type ProviderHealth struct {
	Name       string `json:"name"`
	Configured bool   `json:"configured"`
	Reachable  bool   `json:"reachable"`
}

// HealthReport is the gateway's health view.
type HealthReport struct {
	DefaultProvider string           `json:"default_provider"`
	Providers       []ProviderHealth `json:"providers"`
}

// Gateway fans a text-generation call over an ordered provider chain: the
// default provider first, the remaining configured providers after, in
// registration order. No shared mutable state; concurrent calls are
// independent.
type Gateway struct {
	log            *logger.Logger
	providers      []TextGenerator
	defaultName    string
	requestTimeout time.Duration
	probeTimeout   time.Duration
}

func NewGateway(baseLog *logger.Logger, defaultProvider string, requestTimeout, probeTimeout time.Duration, providers ...TextGenerator) *Gateway {
	if requestTimeout <= 0 {
		requestTimeout = 60 * time.Second
	}
	if probeTimeout <= 0 {
		probeTimeout = 3 * time.Second
	}

	defaultProvider = strings.TrimSpace(strings.ToLower(defaultProvider))
	ordered := make([]TextGenerator, 0, len(providers))
	for _, p := range providers {
		if p.Name() == defaultProvider {
			ordered = append([]TextGenerator{p}, ordered...)
		} else {
			ordered = append(ordered, p)
		}
	}
	if defaultProvider == "" && len(ordered) > 0 {
		defaultProvider = ordered[0].Name()
	}

	return &Gateway{
		log:            baseLog.With("service", "TextGateway"),
		providers:      ordered,
		defaultName:    defaultProvider,
		requestTimeout: requestTimeout,
		probeTimeout:   probeTimeout,
	}
}

// Generate runs the prompt through the provider chain. An intermediate
// provider's failure is never surfaced: either some provider succeeds, or the
// call fails with one aggregated error per attempted provider.
func (g *Gateway) Generate(ctx context.Context, prompt string, opts GenerateOptions) (GenerateResult, error) {
	const op = "ai.Generate"
	var out GenerateResult

	if strings.TrimSpace(prompt) == "" {
		return out, domain.NewError(domain.CodeValidation, op, "empty prompt", nil)
	}

	chain := g.configured()
	if override := strings.TrimSpace(strings.ToLower(opts.ProviderOverride)); override != "" {
		p := g.findConfigured(override)
		if p == nil {
			return out, domain.NewError(domain.CodeValidation, op,
				fmt.Sprintf("provider %q is not configured", override), nil)
		}
		chain = []TextGenerator{p}
	}
	if len(chain) == 0 {
		return out, domain.AllProvidersFailed(op, map[string]string{})
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = g.requestTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	failures := make(map[string]string, len(chain))
	for _, p := range chain {
		if ctx.Err() != nil {
			failures[p.Name()] = ctx.Err().Error()
			break
		}
		start := time.Now()
		text, err := p.GenerateText(ctx, prompt)
		if err != nil {
			failures[p.Name()] = err.Error()
			g.log.Warn("provider failed, trying next", "provider", p.Name(), "error", err)
			continue
		}
		return GenerateResult{
			ProviderUsed: p.Name(),
			Output:       text,
			LatencyMs:    time.Since(start).Milliseconds(),
		}, nil
	}
	return out, domain.AllProvidersFailed(op, failures)
}

// Health reports configured/reachable per provider plus the resolved default.
// Probes run concurrently, each bounded by the probe timeout; a probe failure
// is a false, never an error.
func (g *Gateway) Health(ctx context.Context) HealthReport {
	report := HealthReport{
		DefaultProvider: g.defaultName,
		Providers:       make([]ProviderHealth, len(g.providers)),
	}

	eg, probeCtx := errgroup.WithContext(ctx)
	for i, p := range g.providers {
		report.Providers[i] = ProviderHealth{
			Name:       p.Name(),
			Configured: p.IsConfigured(),
		}
		if !p.IsConfigured() {
			continue
		}
		eg.Go(func() error {
			pctx, cancel := context.WithTimeout(probeCtx, g.probeTimeout)
			defer cancel()
			report.Providers[i].Reachable = safeProbe(pctx, p)
			return nil
		})
	}
	_ = eg.Wait()
	return report
}

// DefaultProvider returns the resolved default provider name.
func (g *Gateway) DefaultProvider() string { return g.defaultName }

func safeProbe(ctx context.Context, p TextGenerator) (reachable bool) {
	defer func() {
		if recover() != nil {
			reachable = false
		}
	}()
	return p.IsReachable(ctx)
}

func (g *Gateway) configured() []TextGenerator {
	out := make([]TextGenerator, 0, len(g.providers))
	for _, p := range g.providers {
		if p.IsConfigured() {
			out = append(out, p)
		}
	}
	return out
}

func (g *Gateway) findConfigured(name string) TextGenerator {
	for _, p := range g.providers {
		if p.Name() == name && p.IsConfigured() {
			return p
		}
	}
	return nil
}
