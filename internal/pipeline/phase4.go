package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"marketbrief/internal/model"
	"marketbrief/pkg/llm"
)

// Word-count bounds for the synthesized paragraphs. Logged only, never a
// rejection reason.
const (
	bottomLineMaxWords = 150
	scenarioMinWords   = 80
	scenarioMaxWords   = 160
)

const placeholderContext = "No relevant filing context found for this development."

// FilterSurvivingBullets returns, per bullet section, the bullets eligible
// for synthesis: not filtered out as stale and not absorbed as duplicates.
func FilterSurvivingBullets(report *model.Report) map[string][]*model.Bullet {
	survivors := make(map[string][]*model.Bullet, len(model.BulletSections))
	for _, name := range model.BulletSections {
		var kept []*model.Bullet
		for _, b := range report.Sections[name] {
			if b.FilterStatus == model.FilterFilteredOut {
				continue
			}
			if b.DedupStatus() == model.DedupDuplicate {
				continue
			}
			kept = append(kept, b)
		}
		survivors[name] = kept
	}
	return survivors
}

// SignalCounts are computed before the call and injected verbatim so the
// model never counts sentiment itself.
type SignalCounts struct {
	Total   int `json:"total_count"`
	Bullish int `json:"bullish_count"`
	Bearish int `json:"bearish_count"`
}

func countSignals(survivors map[string][]*model.Bullet) SignalCounts {
	var c SignalCounts
	for _, bullets := range survivors {
		for _, b := range bullets {
			c.Total++
			switch strings.ToLower(strings.TrimSpace(b.Sentiment)) {
			case "bullish":
				c.Bullish++
			case "bearish":
				c.Bearish++
			}
		}
	}
	return c
}

func survivorCount(survivors map[string][]*model.Bullet) int {
	n := 0
	for _, bullets := range survivors {
		n += len(bullets)
	}
	return n
}

func buildPhase4UserContent(ticker string, survivors map[string][]*model.Bullet, counts SignalCounts, now time.Time) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("TICKER: %s\n", ticker))
	sb.WriteString(fmt.Sprintf("CURRENT DATE: %s\n\n", now.Format("2006-01-02")))
	sb.WriteString(fmt.Sprintf("SIGNAL COUNTS (pre-computed, use as given): total=%d bullish=%d bearish=%d\n\n",
		counts.Total, counts.Bullish, counts.Bearish))
	sb.WriteString("SURVIVING BULLETS:\n")
	payload, _ := json.Marshal(map[string]any{"sections": survivors, "_signal_counts": counts})
	sb.Write(payload)
	sb.WriteString("\n")
	return sb.String()
}

// placeholderQuiet is the deterministic result for a period with zero
// surviving bullets. No provider call is made.
func placeholderQuiet(ticker string) *model.Phase4 {
	return &model.Phase4{
		BottomLine: model.Paragraph{
			Content:        fmt.Sprintf("No material developments were reported for %s during this period.", ticker),
			Context:        placeholderContext,
			SourceArticles: []int{},
		},
		UpsideScenario: model.Paragraph{
			Content:        "No new upside drivers emerged during this period.",
			Context:        placeholderContext,
			SourceArticles: []int{},
		},
		DownsideScenario: model.Paragraph{
			Content:        "No new downside risks emerged during this period.",
			Context:        placeholderContext,
			SourceArticles: []int{},
		},
	}
}

// placeholderUnavailable is the degraded result when both providers fail.
func placeholderUnavailable(ticker string) *model.Phase4 {
	return &model.Phase4{
		BottomLine: model.Paragraph{
			Content:        fmt.Sprintf("Summary generation was unavailable for %s this period.", ticker),
			SourceArticles: []int{},
		},
		UpsideScenario: model.Paragraph{
			Content:        "Summary generation was unavailable this period.",
			SourceArticles: []int{},
		},
		DownsideScenario: model.Paragraph{
			Content:        "Summary generation was unavailable this period.",
			SourceArticles: []int{},
		},
	}
}

// ParsePhase4Response validates the synthesis output. Each of the three
// paragraph keys must exist; a missing one gets a placeholder. content and
// context are coerced to strings, source_articles filtered to non-negative
// integers (integral floats accepted), and word counts checked but only
// logged.
func ParsePhase4Response(raw map[string]any, ticker string) *model.Phase4 {
	fallback := placeholderUnavailable(ticker)
	out := &model.Phase4{
		BottomLine:       parseParagraph(raw, "phase4_bottom_line", ticker, fallback.BottomLine),
		UpsideScenario:   parseParagraph(raw, "phase4_upside_scenario", ticker, fallback.UpsideScenario),
		DownsideScenario: parseParagraph(raw, "phase4_downside_scenario", ticker, fallback.DownsideScenario),
	}

	logWordBounds(ticker, "phase4_bottom_line", out.BottomLine.Content, 0, bottomLineMaxWords)
	logWordBounds(ticker, "phase4_upside_scenario", out.UpsideScenario.Content, scenarioMinWords, scenarioMaxWords)
	logWordBounds(ticker, "phase4_downside_scenario", out.DownsideScenario.Content, scenarioMinWords, scenarioMaxWords)
	return out
}

func parseParagraph(raw map[string]any, key, ticker string, fallback model.Paragraph) model.Paragraph {
	obj, ok := raw[key].(map[string]any)
	if !ok {
		slog.Warn("synthesis response missing paragraph, using placeholder", "ticker", ticker, "key", key)
		return fallback
	}

	p := model.Paragraph{SourceArticles: []int{}}
	p.Content = coerceString(obj["content"])
	p.Context = coerceString(obj["context"])
	if dr, ok := obj["date_range"].(string); ok {
		p.DateRange = dr
	}
	if list, ok := obj["source_articles"].([]any); ok {
		for _, v := range list {
			if n, ok := asNonNegativeInt(v); ok {
				p.SourceArticles = append(p.SourceArticles, n)
			}
		}
	}
	if strings.TrimSpace(p.Content) == "" {
		slog.Warn("synthesis paragraph empty, using placeholder", "ticker", ticker, "key", key)
		return fallback
	}
	return p
}

func coerceString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprintf("%v", s)
	}
}

func logWordBounds(ticker, key, content string, min, max int) {
	words := len(strings.Fields(content))
	if min > 0 && words < min {
		slog.Warn("paragraph under word bound", "ticker", ticker, "key", key, "words", words, "min", min)
	}
	if max > 0 && words > max {
		slog.Warn("paragraph over word bound", "ticker", ticker, "key", key, "words", words, "max", max)
	}
}

// RunPhase4 synthesizes the narrative paragraphs from the surviving
// bullets. Zero survivors short-circuits to the quiet-period placeholder
// with zeroed usage. Provider failure degrades to a placeholder rather
// than aborting: synthesis is an enhancement, not a foundation.
func (p *Pipeline) RunPhase4(ctx context.Context, ticker string, merged *model.Report) (*model.Phase4, *llm.Usage) {
	survivors := FilterSurvivingBullets(merged)
	if survivorCount(survivors) == 0 {
		slog.Info("zero surviving bullets, emitting placeholder paragraphs", "ticker", ticker)
		return placeholderQuiet(ticker), &llm.Usage{Model: "none"}
	}

	counts := countSignals(survivors)
	policy := llm.PhasePolicy{
		Primary:         p.claude,
		Secondary:       p.gemini,
		PrimaryAttempts: 2,
		ContentRetries:  1,
	}
	raw, usage := policy.Run(ctx, llm.PhaseRequest{
		Ticker: ticker,
		Phase:  "phase4",
		System: p.prompts.Phase4,
		User:   buildPhase4UserContent(ticker, survivors, counts, p.now()),
		Config: llm.GenerateConfig{
			MaxTokens:   8000,
			Temperature: 0.3,
			Timeout:     120 * time.Second,
			RetryOn529:  true,
		},
		SecondaryConfig: &llm.GenerateConfig{
			MaxTokens:     8000,
			Temperature:   1.0,
			Seed:          42,
			Timeout:       120 * time.Second,
			ThinkingLevel: "HIGH",
			JSONResponse:  true,
		},
	})
	if raw == nil {
		slog.Warn("synthesis failed on both providers, emitting placeholder paragraphs", "ticker", ticker)
		return placeholderUnavailable(ticker), nil
	}
	return ParsePhase4Response(raw, ticker), usage
}
