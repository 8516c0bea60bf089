package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"marketbrief/internal/model"
	"marketbrief/pkg/llm"
)

// TimelineEntry is one article in the merged, date-sorted timeline. Index
// is the 0-based identifier every later phase's source_articles refers to,
// so the timeline must be built exactly once per report.
type TimelineEntry struct {
	Index   int
	Tag     string
	Article model.Article
}

// BuildArticleTimeline merges the categorized article lists into one
// sequence sorted by published_at descending. Articles without a timestamp
// sort last. Only articles with a non-empty ai_summary are eligible. The
// sort is stable so equal timestamps keep their category order.
func BuildArticleTimeline(articles *model.CategorizedArticles) []TimelineEntry {
	var entries []TimelineEntry
	for _, category := range model.ArticleCategories {
		for _, a := range articles.All()[category] {
			if strings.TrimSpace(a.AISummary) == "" {
				continue
			}
			entries = append(entries, TimelineEntry{Tag: categoryTag(category, a.SearchKeyword), Article: a})
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		ti, tj := entries[i].Article.PublishedAt, entries[j].Article.PublishedAt
		if ti == nil && tj == nil {
			return false
		}
		if ti == nil {
			return false
		}
		if tj == nil {
			return true
		}
		return ti.After(*tj)
	})

	for i := range entries {
		entries[i].Index = i
	}
	return entries
}

func categoryTag(category, keyword string) string {
	switch category {
	case model.CategoryIndustry:
		return fmt.Sprintf("[INDUSTRY - %s]", keyword)
	case model.CategoryCompetitor:
		return "[COMPETITOR]"
	case model.CategoryUpstream:
		return "[UPSTREAM]"
	case model.CategoryDownstream:
		return "[DOWNSTREAM]"
	default:
		return "[COMPANY]"
	}
}

// buildPhase1UserContent renders the prompt context: header, then one line
// per timeline article.
func buildPhase1UserContent(ticker string, entries []TimelineEntry, now time.Time) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("TICKER: %s\n", ticker))
	sb.WriteString(fmt.Sprintf("CURRENT DATE: %s (%s)\n", now.Format("2006-01-02"), now.Weekday()))
	sb.WriteString(fmt.Sprintf("ARTICLE COUNT: %d\n\n", len(entries)))

	if len(entries) == 0 {
		sb.WriteString("No articles were published in this period. Produce empty sections.\n")
		return sb.String()
	}

	sb.WriteString("ARTICLE TIMELINE (newest first):\n")
	for _, e := range entries {
		date := "unknown"
		if e.Article.PublishedAt != nil {
			date = e.Article.PublishedAt.Format("2006-01-02 15:04")
		}
		sb.WriteString(fmt.Sprintf("[%d] %s %s [%s] %s: %s\n",
			e.Index, e.Tag, e.Article.Title, e.Article.Domain, date, e.Article.AISummary))
	}
	return sb.String()
}

// ValidatePhase1JSON checks the extractor's output against the fixed
// seven-section schema and converts it to the report model. filing_hints is
// the one known-safe field: malformed or missing shapes are repaired to the
// empty default rather than rejected. Everything else invalid fails the
// whole phase.
func ValidatePhase1JSON(raw map[string]any) (*model.Report, error) {
	sectionsRaw, ok := raw["sections"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("missing or invalid 'sections' key")
	}

	report := &model.Report{Sections: make(map[string][]*model.Bullet, len(model.SectionNames))}
	for _, name := range model.SectionNames {
		listRaw, present := sectionsRaw[name]
		if !present {
			return nil, fmt.Errorf("missing section %q", name)
		}
		list, ok := listRaw.([]any)
		if !ok {
			return nil, fmt.Errorf("section %q must be an array", name)
		}

		bullets := make([]*model.Bullet, 0, len(list))
		for i, item := range list {
			obj, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%s[%d] must be an object", name, i)
			}
			bullet, err := validateBullet(name, i, obj)
			if err != nil {
				return nil, err
			}
			bullets = append(bullets, bullet)
		}
		report.Sections[name] = bullets
	}
	return report, nil
}

func validateBullet(section string, idx int, obj map[string]any) (*model.Bullet, error) {
	b := &model.Bullet{}
	for _, field := range []string{"bullet_id", "topic_label", "content"} {
		s, ok := obj[field].(string)
		if !ok || strings.TrimSpace(s) == "" {
			return nil, fmt.Errorf("%s[%d] missing required field %q", section, idx, field)
		}
		switch field {
		case "bullet_id":
			b.BulletID = s
		case "topic_label":
			b.TopicLabel = s
		case "content":
			b.Content = s
		}
	}

	articles, err := validateSourceArticles(section, idx, obj["source_articles"])
	if err != nil {
		return nil, err
	}
	b.SourceArticles = articles

	b.FilingHints = repairFilingHints(obj["filing_hints"])

	if dr, ok := obj["date_range"].(string); ok {
		b.DateRange = dr
	}
	return b, nil
}

func validateSourceArticles(section string, idx int, raw any) ([]int, error) {
	if raw == nil {
		return []int{}, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%s[%d] source_articles must be an array", section, idx)
	}
	out := make([]int, 0, len(list))
	for j, v := range list {
		n, ok := asNonNegativeInt(v)
		if !ok {
			return nil, fmt.Errorf("%s[%d] source_articles[%d] must be non-negative integer", section, idx, j)
		}
		out = append(out, n)
	}
	return out, nil
}

// asNonNegativeInt accepts JSON numbers that are integral and >= 0.
func asNonNegativeInt(v any) (int, bool) {
	f, ok := v.(float64)
	if !ok {
		return 0, false
	}
	n := int(f)
	if float64(n) != f || n < 0 {
		return 0, false
	}
	return n, true
}

// repairFilingHints accepts only the exact {"10-K": [...], "10-Q": [...],
// "Transcript": [...]} shape with string-array values; anything else is
// replaced with the empty default. Repair, never rejection.
func repairFilingHints(raw any) map[string][]string {
	obj, ok := raw.(map[string]any)
	if !ok || len(obj) != len(model.FilingTypes) {
		return model.DefaultFilingHints()
	}
	hints := make(map[string][]string, len(model.FilingTypes))
	for _, ft := range model.FilingTypes {
		listRaw, present := obj[ft]
		if !present {
			return model.DefaultFilingHints()
		}
		list, ok := listRaw.([]any)
		if !ok {
			return model.DefaultFilingHints()
		}
		labels := make([]string, 0, len(list))
		for _, v := range list {
			s, ok := v.(string)
			if !ok {
				return model.DefaultFilingHints()
			}
			labels = append(labels, s)
		}
		hints[ft] = labels
	}
	return hints
}

// UsedArticleIndices returns the sorted set of timeline indices referenced
// anywhere in the report, for the rendering layer.
func UsedArticleIndices(report *model.Report) []int {
	seen := make(map[int]bool)
	for _, bullets := range report.Sections {
		for _, b := range bullets {
			for _, idx := range b.SourceArticles {
				seen[idx] = true
			}
		}
	}
	out := make([]int, 0, len(seen))
	for idx := range seen {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

// RunPhase1 extracts themes from the article timeline. A nil report means
// the phase failed on both providers and the ticker's report must abort.
func (p *Pipeline) RunPhase1(ctx context.Context, ticker string, entries []TimelineEntry) (*model.Report, *llm.Usage) {
	user := buildPhase1UserContent(ticker, entries, p.now())

	policy := llm.PhasePolicy{Primary: p.gemini, Secondary: p.claude, ContentRetries: 1}
	raw, usage := policy.Run(ctx, llm.PhaseRequest{
		Ticker: ticker,
		Phase:  "phase1",
		System: p.prompts.Phase1,
		User:   user,
		Config: llm.GenerateConfig{
			MaxTokens:     20000,
			Temperature:   1.0,
			Seed:          42,
			Timeout:       120 * time.Second,
			ThinkingLevel: "HIGH",
			JSONResponse:  true,
		},
		Validate: func(m map[string]any) error {
			_, err := ValidatePhase1JSON(m)
			return err
		},
	})
	if raw == nil {
		return nil, nil
	}

	report, err := ValidatePhase1JSON(raw)
	if err != nil {
		slog.Error("phase1 output failed validation", "ticker", ticker, "error", err)
		return nil, nil
	}
	return report, usage
}
