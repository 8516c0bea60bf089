package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"marketbrief/internal/model"
	"marketbrief/pkg/llm"
)

// FilingStore is the filing lookup the filter and enrichment phases need.
// Absent filings are (nil, nil), not errors.
type FilingStore interface {
	LatestFiling(ticker, filingType string) (*model.Filing, error)
	EightKFilings(ticker string, since, until time.Time, capExhibits bool) ([]model.EightK, error)
}

// Pipeline runs the full per-ticker report generation. One ticker's run is
// strictly sequential: each phase consumes the previous phase's merged
// output. Concurrency, if any, lives above this type, across tickers.
type Pipeline struct {
	gemini     llm.Gateway
	claude     llm.Gateway
	filings    FilingStore
	prompts    Prompts
	reportType string
	loc        *time.Location
	now        func() time.Time
}

func New(gemini, claude llm.Gateway, filings FilingStore, reportType string) *Pipeline {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.UTC
	}
	if reportType == "" {
		reportType = ReportDaily
	}
	return &Pipeline{
		gemini:     gemini,
		claude:     claude,
		filings:    filings,
		prompts:    DefaultPrompts(),
		reportType: reportType,
		loc:        loc,
		now:        time.Now,
	}
}

// Result is one completed report plus per-phase usage for cost accounting.
type Result struct {
	Report *model.Report
	Usage  []model.LLMUsage
}

// Run generates a ticker's report end to end:
//
//	phase1 -> known-info filter -> phase2 -> merge(1+2) ->
//	phase3 -> merge(2+3) -> phase4 -> post-process dates
//
// Phases 1-3 failing on both providers aborts the run; the filter and
// phase 4 degrade gracefully instead. The returned report is the full
// merged graph including soft-filtered and duplicate bullets; callers
// wanting the user-facing view apply ApplyDeduplication.
func (p *Pipeline) Run(ctx context.Context, ticker string, companyName string, articles *model.CategorizedArticles) (*Result, error) {
	result := &Result{}
	record := func(phase string, usage *llm.Usage) {
		if usage == nil {
			return
		}
		result.Usage = append(result.Usage, model.LLMUsage{
			Ticker:       ticker,
			Phase:        phase,
			Model:        usage.Model,
			InputTokens:  usage.InputTokens,
			OutputTokens: usage.OutputTokens,
		})
	}

	entries := BuildArticleTimeline(articles)
	slog.Info("starting report generation", "ticker", ticker, "articles", len(entries))

	phase1, usage := p.RunPhase1(ctx, ticker, entries)
	if phase1 == nil {
		return nil, fmt.Errorf("theme extraction failed for %s", ticker)
	}
	record("phase1", usage)

	filtered, usage := p.RunKnownInfoFilter(ctx, ticker, phase1)
	record("known_info_filter", usage)

	merged := filtered
	enrichments, usage, skipped := p.RunPhase2(ctx, ticker, companyName, filtered)
	if enrichments == nil && !skipped {
		return nil, fmt.Errorf("enrichment failed for %s", ticker)
	}
	record("phase2", usage)
	if enrichments != nil {
		merged = MergePhase1Phase2(filtered, enrichments)
	}

	dedup, usage := p.RunPhase3(ctx, ticker, merged)
	if dedup == nil {
		return nil, fmt.Errorf("deduplication failed for %s", ticker)
	}
	record("phase3", usage)
	merged = MergePhase3WithPhase2(merged, dedup)

	phase4, usage := p.RunPhase4(ctx, ticker, merged)
	record("phase4", usage)

	PostProcessPhase4Dates(phase4, FilterSurvivingBullets(merged), p.reportType, p.now(), p.loc)
	merged.Phase4 = phase4

	result.Report = merged
	slog.Info("report generation complete", "ticker", ticker, "phases_billed", len(result.Usage))
	return result, nil
}
