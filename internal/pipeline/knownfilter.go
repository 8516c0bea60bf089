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

// The 2/3 stale cutoff and the 7-day knowledge-base buffer are tuned
// product constants. Do not derive them from anything.
const (
	kbBufferDays       = 7
	fallbackWindowDays = 90
	transcriptCharCap  = 150000
)

// FilterableSections are analyzed for staleness. The remaining sections
// are exempt: analyst sentiment, catalysts, and key variables stay useful
// even when the underlying facts are known.
var FilterableSections = []string{
	model.SectionMajorDevelopments,
	model.SectionFinancialPerformance,
	model.SectionRiskFactors,
	model.SectionCompetitiveDynamics,
}

var exemptSections = map[string]bool{
	model.SectionWallStreetSentiment: true,
	model.SectionUpcomingCatalysts:   true,
	model.SectionKeyVariables:        true,
	model.SectionBottomLine:          true,
	model.SectionUpsideScenario:      true,
	model.SectionDownsideScenario:    true,
}

// Bullet classifications produced by the threshold rule.
const (
	ClassExempt      = "exempt"
	ClassAllNew      = "all_new"
	ClassAllKnown    = "all_known"
	ClassMostlyKnown = "mostly_known"
	ClassMostlyNew   = "mostly_new"
)

// Claim is one atomic statement tagged against the knowledge base.
type Claim struct {
	Text     string `json:"text"`
	Status   string `json:"status"`
	Evidence string `json:"evidence"`
}

// SentenceAnalysis is the model's verdict for one sentence of a bullet.
type SentenceAnalysis struct {
	Sentence string  `json:"sentence"`
	Action   string  `json:"action"`
	Claims   []Claim `json:"claims"`
}

// BulletAnalysis is the per-bullet result of the tagging step. The KEEP or
// REMOVE decision is NOT taken from the model's filtered_content; the
// deterministic threshold rule below decides.
type BulletAnalysis struct {
	BulletID        string             `json:"bullet_id"`
	Sentences       []SentenceAnalysis `json:"sentences"`
	FilteredContent string             `json:"filtered_content"`
}

// RemovedCount returns how many sentences the model marked REMOVE.
func (a *BulletAnalysis) RemovedCount() int {
	n := 0
	for _, s := range a.Sentences {
		if strings.EqualFold(strings.TrimSpace(s.Action), "REMOVE") {
			n++
		}
	}
	return n
}

// HasPhase1Bullets reports whether any filterable section has bullets. An
// empty extraction skips the filter entirely, no network call.
func HasPhase1Bullets(report *model.Report) bool {
	if report == nil {
		return false
	}
	for _, name := range FilterableSections {
		if len(report.Sections[name]) > 0 {
			return true
		}
	}
	return false
}

// ClassifyBullet applies the deterministic threshold rule: given how many
// of a bullet's sentences were tagged REMOVE, decide whether the bullet
// survives. The 2/3 cutoff is compared with integer math so 2-of-3 lands
// exactly on mostly_known.
func ClassifyBullet(removed, total int, exempt bool) (classification string, keep bool) {
	if exempt {
		return ClassExempt, true
	}
	if total == 0 || removed == 0 {
		return ClassAllNew, true
	}
	if removed == total {
		return ClassAllKnown, false
	}
	if 3*removed >= 2*total {
		return ClassMostlyKnown, false
	}
	return ClassMostlyNew, true
}

// knowledgeBase is what a bullet's claims are judged against: the latest
// earnings transcript plus recent material 8-Ks. 10-K and 10-Q are
// deliberately excluded; their boilerplate risk language false-positives
// against genuine news.
type knowledgeBase struct {
	Transcript *model.Filing
	EightKs    []model.EightK
}

func (kb *knowledgeBase) empty() bool {
	return kb.Transcript == nil && len(kb.EightKs) == 0
}

// fetchKnowledgeBase loads the filter's comparison set. The 7-day buffer
// applies to every filing in it: articles need time to react to a filing
// before being judged stale against it. A transcript filed inside the
// buffer still anchors the 8-K window but is itself excluded, so coverage
// of a fresh earnings call is never marked stale against that call.
func (p *Pipeline) fetchKnowledgeBase(ticker string, now time.Time) (*knowledgeBase, error) {
	kb := &knowledgeBase{}

	transcript, err := p.filings.LatestFiling(ticker, "Transcript")
	if err != nil {
		return nil, fmt.Errorf("fetch transcript: %w", err)
	}

	since := now.AddDate(0, 0, -fallbackWindowDays)
	cutoff := now.AddDate(0, 0, -kbBufferDays)
	if transcript != nil {
		since = transcript.FilingDate
		if transcript.FilingDate.After(cutoff) {
			slog.Info("transcript inside the 7-day buffer, excluded from knowledge base",
				"ticker", ticker, "filed", transcript.FilingDate.Format("2006-01-02"))
		} else {
			kb.Transcript = transcript
		}
	}
	until := cutoff
	if until.After(since) {
		eightKs, err := p.filings.EightKFilings(ticker, since, until, true)
		if err != nil {
			return nil, fmt.Errorf("fetch 8-K filings: %w", err)
		}
		kb.EightKs = eightKs
	}
	return kb, nil
}

// buildFilingTimeline renders the knowledge-base header. Each filing gets
// the stable identifier claim evidence refers to, and an age marker:
// filings older than a week are STALE (articles repeating them are old
// news), newer ones FRESH.
func buildFilingTimeline(kb *knowledgeBase, now time.Time) string {
	var sb strings.Builder
	sb.WriteString("KNOWLEDGE BASE FILINGS:\n")

	ageMarker := func(date time.Time) string {
		if now.Sub(date) > kbBufferDays*24*time.Hour {
			return "STALE"
		}
		return "FRESH"
	}

	if kb.Transcript != nil {
		sb.WriteString(fmt.Sprintf("TRANSCRIPT_1 | Earnings Call Transcript (%s) | %s | %s\n",
			kb.Transcript.Period,
			kb.Transcript.FilingDate.Format("2006-01-02"),
			ageMarker(kb.Transcript.FilingDate)))
	}
	for i, f := range kb.EightKs {
		sb.WriteString(fmt.Sprintf("8K_%d | %s | %s | %s\n",
			i+1, f.Title, f.FilingDate.Format("2006-01-02"), ageMarker(f.FilingDate)))
	}
	return sb.String()
}

func buildFilterUserContent(ticker string, report *model.Report, kb *knowledgeBase, now time.Time) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("TICKER: %s\n", ticker))
	sb.WriteString(fmt.Sprintf("CURRENT DATE: %s\n\n", now.Format("2006-01-02")))
	sb.WriteString(buildFilingTimeline(kb, now))
	sb.WriteString("\n")

	if kb.Transcript != nil {
		sb.WriteString("=== TRANSCRIPT_1 ===\n")
		sb.WriteString(truncateText(kb.Transcript.Text, transcriptCharCap))
		sb.WriteString("\n\n")
	}
	for i, f := range kb.EightKs {
		sb.WriteString(fmt.Sprintf("=== 8K_%d (%s) ===\n", i+1, f.FilingDate.Format("2006-01-02")))
		sb.WriteString(f.Summary)
		sb.WriteString("\n\n")
	}

	// All sections go to the model, exempt ones included: their analyses
	// are kept for audit even though the classifier always keeps them.
	sb.WriteString("BULLETS TO ANALYZE:\n")
	payload, _ := json.Marshal(map[string]any{"sections": report.Sections})
	sb.Write(payload)
	sb.WriteString("\n")
	return sb.String()
}

func truncateText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "\n[truncated]"
}

// parseFilterAnalyses reads the tagging response into a bullet_id lookup.
// Malformed entries are skipped, not fatal; a bullet without an analysis
// simply stays included.
func parseFilterAnalyses(raw map[string]any) map[string]*BulletAnalysis {
	out := make(map[string]*BulletAnalysis)
	list, ok := raw["analyses"].([]any)
	if !ok {
		return out
	}
	for _, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		payload, err := json.Marshal(obj)
		if err != nil {
			continue
		}
		var analysis BulletAnalysis
		if err := json.Unmarshal(payload, &analysis); err != nil {
			continue
		}
		if analysis.BulletID == "" {
			continue
		}
		out[analysis.BulletID] = &analysis
	}
	return out
}

// ApplyFilterToPhase1 annotates the report with the filter verdicts.
// Filtering is soft: a REMOVE verdict marks the bullet filtered_out but
// never deletes it, so QA can audit what was dropped and why. Exempt
// sections and bullets the model skipped are always included.
func ApplyFilterToPhase1(report *model.Report, analyses map[string]*BulletAnalysis) *model.Report {
	out := report.Clone()
	for _, name := range model.SectionNames {
		exempt := exemptSections[name]
		for _, b := range out.Sections[name] {
			analysis := analyses[b.BulletID]
			var classification string
			var keep bool
			if analysis == nil {
				classification, keep = ClassifyBullet(0, 0, exempt)
			} else {
				classification, keep = ClassifyBullet(analysis.RemovedCount(), len(analysis.Sentences), exempt)
			}
			if classification == ClassExempt {
				b.Exempt = true
			}
			if keep {
				b.FilterStatus = model.FilterIncluded
				b.FilterReason = ""
			} else {
				b.FilterStatus = model.FilterFilteredOut
				b.FilterReason = "stale"
			}
			slog.Debug("bullet classified",
				"bullet_id", b.BulletID, "section", name,
				"classification", classification, "keep", keep)
		}
	}
	return out
}

// RunKnownInfoFilter runs the staleness filter over the extraction output.
// It degrades gracefully: on empty input, missing knowledge base, or
// provider failure it returns the report unchanged. There is no fallback
// provider for this phase.
func (p *Pipeline) RunKnownInfoFilter(ctx context.Context, ticker string, report *model.Report) (*model.Report, *llm.Usage) {
	if !HasPhase1Bullets(report) {
		slog.Info("no bullets to filter, skipping known-information filter", "ticker", ticker)
		return report, nil
	}

	now := p.now()
	kb, err := p.fetchKnowledgeBase(ticker, now)
	if err != nil {
		slog.Warn("knowledge base fetch failed, skipping filter", "ticker", ticker, "error", err)
		return report, nil
	}
	if kb.empty() {
		slog.Info("no transcript or 8-K filings on record, skipping filter", "ticker", ticker)
		return report, nil
	}

	policy := llm.PhasePolicy{Primary: p.gemini, ContentRetries: 1}
	raw, usage := policy.Run(ctx, llm.PhaseRequest{
		Ticker: ticker,
		Phase:  "known_info_filter",
		System: p.prompts.KnownInfo,
		User:   buildFilterUserContent(ticker, report, kb, now),
		Config: llm.GenerateConfig{
			MaxTokens:     20000,
			Temperature:   1.0,
			Seed:          42,
			Timeout:       180 * time.Second,
			ThinkingLevel: "HIGH",
			JSONResponse:  true,
		},
	})
	if raw == nil {
		slog.Warn("known-information filter failed, continuing unfiltered", "ticker", ticker)
		return report, nil
	}

	analyses := parseFilterAnalyses(raw)
	if len(analyses) == 0 {
		slog.Warn("filter returned no usable analyses, continuing unfiltered", "ticker", ticker)
		return report, usage
	}

	filtered := ApplyFilterToPhase1(report, analyses)
	slog.Info("known-information filter applied",
		"ticker", ticker, "analyzed", len(analyses))
	return filtered, usage
}
