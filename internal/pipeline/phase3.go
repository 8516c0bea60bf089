package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"marketbrief/internal/model"
	"marketbrief/pkg/llm"
)

func buildPhase3UserContent(ticker string, merged *model.Report, now time.Time) string {
	payload, _ := json.Marshal(merged)
	return fmt.Sprintf("TICKER: %s\nCURRENT DATE: %s\n\nBRIEFING JSON:\n%s\n",
		ticker, now.Format("2006-01-02"), payload)
}

// parsePhase3Dedup walks the response's sections structure collecting each
// bullet's deduplication tag by bullet_id. Bullets without a tag are simply
// absent from the map; the merge defaults them to unique.
func parsePhase3Dedup(raw map[string]any) map[string]*model.Deduplication {
	out := make(map[string]*model.Deduplication)
	sections, ok := raw["sections"].(map[string]any)
	if !ok {
		return out
	}
	for _, listRaw := range sections {
		list, ok := listRaw.([]any)
		if !ok {
			continue
		}
		for _, item := range list {
			obj, ok := item.(map[string]any)
			if !ok {
				continue
			}
			id, ok := obj["bullet_id"].(string)
			if !ok || id == "" {
				continue
			}
			dedupRaw, ok := obj["deduplication"].(map[string]any)
			if !ok {
				continue
			}
			payload, err := json.Marshal(dedupRaw)
			if err != nil {
				continue
			}
			var d model.Deduplication
			if err := json.Unmarshal(payload, &d); err != nil || d.Status == "" {
				continue
			}
			out[id] = &d
		}
	}
	return out
}

// RunPhase3 tags cross-bullet redundancy. The primary here is Anthropic
// with an extra attempt before falling back; dedup output quality matters
// more than the cost of the retry. A nil map means both providers failed
// and the report aborts.
func (p *Pipeline) RunPhase3(ctx context.Context, ticker string, merged *model.Report) (map[string]*model.Deduplication, *llm.Usage) {
	policy := llm.PhasePolicy{
		Primary:         p.claude,
		Secondary:       p.gemini,
		PrimaryAttempts: 2,
		ContentRetries:  1,
	}
	raw, usage := policy.Run(ctx, llm.PhaseRequest{
		Ticker: ticker,
		Phase:  "phase3",
		System: p.prompts.Phase3,
		User:   buildPhase3UserContent(ticker, merged, p.now()),
		Config: llm.GenerateConfig{
			MaxTokens:   16000,
			Temperature: 0.2,
			Timeout:     120 * time.Second,
			RetryOn529:  true,
		},
		SecondaryConfig: &llm.GenerateConfig{
			MaxTokens:     16000,
			Temperature:   1.0,
			Seed:          42,
			Timeout:       120 * time.Second,
			ThinkingLevel: "HIGH",
			JSONResponse:  true,
		},
	})
	if raw == nil {
		return nil, nil
	}
	return parsePhase3Dedup(raw), usage
}
