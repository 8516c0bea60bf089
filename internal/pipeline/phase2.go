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

// The escape-hatch sentinel the enrichment prompt uses for "nothing
// relevant in the filings". Stripped to "" before display.
const escapeHatchPrefix = "No relevant filing context found"

var validEntities = map[string]bool{
	"Competitor": true,
	"Market":     true,
	"Upstream":   true,
	"Downstream": true,
}

// hasEnrichableBullets gates the phase: with zero bullets across the five
// enrichable sections there is nothing to enrich and no call is made.
func hasEnrichableBullets(report *model.Report) bool {
	for _, name := range model.EnrichableSections {
		if len(report.Sections[name]) > 0 {
			return true
		}
	}
	return false
}

// filingContext is the filing set handed to the enrichment prompt. Unlike
// the knowledge-base fetch, 8-Ks here carry no 7-day delay and no exhibit
// cap: this phase wants context, not staleness judgment.
type filingContext struct {
	TenK       *model.Filing
	TenQ       *model.Filing
	Transcript *model.Filing
	EightKs    []model.EightK
}

func (p *Pipeline) fetchFilingContext(ticker string, now time.Time) (*filingContext, error) {
	fc := &filingContext{}
	var err error
	if fc.TenK, err = p.filings.LatestFiling(ticker, "10-K"); err != nil {
		return nil, fmt.Errorf("fetch 10-K: %w", err)
	}
	if fc.TenQ, err = p.filings.LatestFiling(ticker, "10-Q"); err != nil {
		return nil, fmt.Errorf("fetch 10-Q: %w", err)
	}
	if fc.Transcript, err = p.filings.LatestFiling(ticker, "Transcript"); err != nil {
		return nil, fmt.Errorf("fetch transcript: %w", err)
	}

	since := now.AddDate(0, 0, -fallbackWindowDays)
	if fc.Transcript != nil {
		since = fc.Transcript.FilingDate
	}
	if fc.EightKs, err = p.filings.EightKFilings(ticker, since, now, false); err != nil {
		return nil, fmt.Errorf("fetch 8-K filings: %w", err)
	}
	return fc, nil
}

// looksGarbled flags filing text that is table noise rather than prose:
// almost no distinct characters, or dominated by dashes or digits.
func looksGarbled(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return true
	}
	unique := make(map[rune]bool)
	dashes, digits, total := 0, 0, 0
	for _, r := range trimmed {
		unique[r] = true
		total++
		switch {
		case r == '-':
			dashes++
		case r >= '0' && r <= '9':
			digits++
		}
	}
	if len(unique) < 10 {
		return true
	}
	if float64(dashes)/float64(total) > 0.3 {
		return true
	}
	return float64(digits)/float64(total) > 0.2
}

func buildPhase2UserContent(ticker string, companyName string, report *model.Report, fc *filingContext, now time.Time) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("TICKER: %s", ticker))
	if companyName != "" {
		sb.WriteString(fmt.Sprintf(" (%s)", companyName))
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("CURRENT DATE: %s\n\n", now.Format("2006-01-02")))

	sb.WriteString("BRIEFING JSON:\n")
	payload, _ := json.Marshal(report)
	sb.Write(payload)
	sb.WriteString("\n\n")

	writeFiling := func(label string, f *model.Filing) {
		if f == nil || looksGarbled(f.Text) {
			return
		}
		sb.WriteString(fmt.Sprintf("=== %s (%s, filed %s) ===\n", label, f.Period, f.FilingDate.Format("2006-01-02")))
		sb.WriteString(truncateText(f.Text, transcriptCharCap))
		sb.WriteString("\n\n")
	}

	writeFiling("EARNINGS CALL TRANSCRIPT", fc.Transcript)
	for _, f := range fc.EightKs {
		sb.WriteString(fmt.Sprintf("=== 8-K %s (filed %s) ===\n", f.Title, f.FilingDate.Format("2006-01-02")))
		sb.WriteString(f.Summary)
		sb.WriteString("\n\n")
	}
	writeFiling("10-Q", fc.TenQ)
	writeFiling("10-K", fc.TenK)
	return sb.String()
}

// ParseEnrichmentShapes resolves the three response shapes providers
// produce, checked in order:
//  1. wrapped under an "enrichments" key
//  2. a full "sections" structure, flattened by walking every bullet and
//     re-keying on its bullet_id
//  3. already a flat {bullet_id: {...}} map
//
// The result maps bullet_id to the raw enrichment object; values that are
// not objects are preserved here and dropped during validation.
func ParseEnrichmentShapes(raw map[string]any) map[string]any {
	if wrapped, ok := raw["enrichments"].(map[string]any); ok {
		return wrapped
	}
	if sections, ok := raw["sections"].(map[string]any); ok {
		flat := make(map[string]any)
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
				enrichment := make(map[string]any, len(obj))
				for k, v := range obj {
					if k != "bullet_id" && k != "topic_label" && k != "content" && k != "source_articles" && k != "filing_hints" {
						enrichment[k] = v
					}
				}
				flat[id] = enrichment
			}
		}
		return flat
	}
	return raw
}

// ValidatePhase2JSON is partial-accept: individually broken bullets are
// repaired or dropped, and the phase fails only when nothing validates.
// Required fields are context/impact/sentiment/reason/relevance, plus
// entity for competitive_industry_dynamics bullets; missing or empty
// required fields become "" rather than rejecting the bullet. An entity
// outside the known set is reset to "" with a warning. A bullet whose
// value is not an object at all is dropped. Unknown bullet_ids are skipped.
func ValidatePhase2JSON(flat map[string]any, phase1 *model.Report) (map[string]*model.Enrichment, error) {
	sectionOf := make(map[string]string)
	for name, bullets := range phase1.Sections {
		for _, b := range bullets {
			sectionOf[b.BulletID] = name
		}
	}

	valid := make(map[string]*model.Enrichment)
	for id, value := range flat {
		section, known := sectionOf[id]
		if !known {
			slog.Warn("enrichment for unknown bullet_id, skipping", "bullet_id", id)
			continue
		}
		obj, ok := value.(map[string]any)
		if !ok {
			slog.Warn("enrichment value is not an object, dropping bullet", "bullet_id", id)
			continue
		}

		str := func(field string) string {
			s, _ := obj[field].(string)
			return strings.TrimSpace(s)
		}
		e := &model.Enrichment{
			Context:   str("context"),
			Impact:    str("impact"),
			Sentiment: str("sentiment"),
			Reason:    str("reason"),
			Relevance: str("relevance"),
		}
		if section == model.SectionCompetitiveDynamics {
			e.Entity = str("entity")
			if e.Entity != "" && !validEntities[e.Entity] {
				slog.Warn("invalid entity value, resetting", "bullet_id", id, "entity", e.Entity)
				e.Entity = ""
			}
		}
		valid[id] = e
	}

	if len(valid) == 0 {
		return nil, fmt.Errorf("no valid enrichments in response")
	}
	return valid, nil
}

// StripEscapeHatch converts the "nothing relevant" sentinel to an empty
// context string.
func StripEscapeHatch(context string) string {
	if strings.HasPrefix(strings.TrimSpace(context), escapeHatchPrefix) {
		return ""
	}
	return context
}

// RunPhase2 enriches the briefing with filing context. A nil map means the
// phase failed on both providers; the caller aborts the report. A nil map
// with skipped=true means there was nothing to enrich.
func (p *Pipeline) RunPhase2(ctx context.Context, ticker, companyName string, report *model.Report) (enrichments map[string]*model.Enrichment, usage *llm.Usage, skipped bool) {
	if !hasEnrichableBullets(report) {
		slog.Info("no enrichable bullets, skipping enrichment", "ticker", ticker)
		return nil, nil, true
	}

	now := p.now()
	fc, err := p.fetchFilingContext(ticker, now)
	if err != nil {
		slog.Warn("filing context fetch failed, enriching without filings", "ticker", ticker, "error", err)
		fc = &filingContext{}
	}

	policy := llm.PhasePolicy{Primary: p.gemini, Secondary: p.claude, ContentRetries: 1}
	raw, usage := policy.Run(ctx, llm.PhaseRequest{
		Ticker: ticker,
		Phase:  "phase2",
		System: p.prompts.Phase2,
		User:   buildPhase2UserContent(ticker, companyName, report, fc, now),
		Config: llm.GenerateConfig{
			MaxTokens:     20000,
			Temperature:   1.0,
			Seed:          42,
			Timeout:       180 * time.Second,
			ThinkingLevel: "HIGH",
			JSONResponse:  true,
		},
		Validate: func(m map[string]any) error {
			_, err := ValidatePhase2JSON(ParseEnrichmentShapes(m), report)
			return err
		},
	})
	if raw == nil {
		return nil, nil, false
	}

	valid, err := ValidatePhase2JSON(ParseEnrichmentShapes(raw), report)
	if err != nil {
		slog.Error("enrichment output failed validation", "ticker", ticker, "error", err)
		return nil, nil, false
	}
	return valid, usage, false
}
