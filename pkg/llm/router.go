package llm

import (
	"context"
	"log/slog"
)

// PhaseRequest is one phase's prompt plus its provider tuning.
type PhaseRequest struct {
	Ticker string
	Phase  string
	System string
	User   string
	Config GenerateConfig
	// SecondaryConfig overrides Config for the fallback provider when the
	// two need different tuning (max tokens, 529 handling). Nil means
	// reuse Config.
	SecondaryConfig *GenerateConfig
	// Validate rejects structurally invalid output so the router treats it
	// as provider failure and moves on to the next attempt or provider.
	Validate func(map[string]any) error
}

// PhasePolicy pairs a primary and an optional fallback gateway with the
// retry depth tuned for one phase. The depths are intentional per-phase
// product tuning, not a general policy: the extraction and enrichment
// phases fall back after one primary attempt, while dedup and synthesis
// give the primary a second attempt first. A nil Secondary disables
// fallback entirely (the known-information filter runs primary-only).
type PhasePolicy struct {
	Primary         Gateway
	Secondary       Gateway
	PrimaryAttempts int
	// ContentRetries is the budget of extra same-provider attempts spent
	// only when output parses as truncated JSON. Distinct from the
	// transport retries inside each gateway.
	ContentRetries int
}

// Run executes the phase against the primary, falling back to the
// secondary on failure. Returns (nil, nil) when every provider failed;
// callers must treat that as "phase could not run".
func (p PhasePolicy) Run(ctx context.Context, req PhaseRequest) (map[string]any, *Usage) {
	attempts := p.PrimaryAttempts
	if attempts < 1 {
		attempts = 1
	}

	result, usage := runGateway(ctx, p.Primary, req, req.Config, attempts, p.ContentRetries)
	if result != nil {
		slog.Info("phase completed", "ticker", req.Ticker, "phase", req.Phase, "provider", usage.Model)
		return result, usage
	}

	if p.Secondary == nil {
		slog.Error("primary provider failed with no fallback configured",
			"ticker", req.Ticker, "phase", req.Phase, "provider", p.Primary.Name())
		return nil, nil
	}

	slog.Warn("primary provider failed, falling back",
		"ticker", req.Ticker, "phase", req.Phase,
		"primary", p.Primary.Name(), "fallback", p.Secondary.Name())

	cfg := req.Config
	if req.SecondaryConfig != nil {
		cfg = *req.SecondaryConfig
	}
	result, usage = runGateway(ctx, p.Secondary, req, cfg, 1, p.ContentRetries)
	if result == nil {
		slog.Error("both providers failed", "ticker", req.Ticker, "phase", req.Phase)
		return nil, nil
	}
	slog.Info("phase completed via fallback", "ticker", req.Ticker, "phase", req.Phase, "provider", usage.Model)
	return result, usage
}

func runGateway(ctx context.Context, gw Gateway, req PhaseRequest, cfg GenerateConfig, attempts, contentRetries int) (map[string]any, *Usage) {
	total := attempts
	for i := 0; i < total; i++ {
		raw, usage, err := gw.Generate(ctx, req.System, req.User, cfg)
		if err != nil {
			slog.Warn("provider call failed",
				"ticker", req.Ticker, "phase", req.Phase, "provider", gw.Name(),
				"attempt", i+1, "error", err)
			continue
		}

		parsed := ExtractJSON(raw)
		if parsed != nil {
			if req.Validate != nil {
				if err := req.Validate(parsed); err != nil {
					slog.Warn("provider output failed validation",
						"ticker", req.Ticker, "phase", req.Phase, "provider", gw.Name(),
						"attempt", i+1, "error", err)
					continue
				}
			}
			return parsed, usage
		}

		slog.Warn("provider returned unparseable output",
			"ticker", req.Ticker, "phase", req.Phase, "provider", gw.Name(),
			"attempt", i+1, "preview", preview(raw, 200))

		if contentRetries > 0 && LooksTruncated(raw) {
			contentRetries--
			total++
			slog.Info("output looks truncated, retrying within same provider",
				"ticker", req.Ticker, "phase", req.Phase, "provider", gw.Name())
		}
	}
	return nil, nil
}
