package pipeline

import (
	"strings"
	"testing"
	"time"

	"marketbrief/internal/model"
)

func ts(s string) *time.Time {
	t, err := time.Parse("2006-01-02 15:04", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestBuildArticleTimeline(t *testing.T) {
	articles := &model.CategorizedArticles{
		Company: []model.Article{
			{Title: "old company news", AISummary: "s", PublishedAt: ts("2026-08-20 09:00")},
			{Title: "no summary yet", AISummary: "", PublishedAt: ts("2026-08-27 09:00")},
			{Title: "undated company news", AISummary: "s"},
		},
		Industry: []model.Article{
			{Title: "sector update", AISummary: "s", SearchKeyword: "lithium", PublishedAt: ts("2026-08-26 12:00")},
		},
		Competitor: []model.Article{
			{Title: "rival launch", AISummary: "s", PublishedAt: ts("2026-08-26 12:00")},
		},
	}

	entries := BuildArticleTimeline(articles)

	if len(entries) != 4 {
		t.Fatalf("expected 4 eligible articles, got %d", len(entries))
	}
	// Newest first; equal timestamps keep category order (industry before
	// competitor); undated last.
	wantTitles := []string{"sector update", "rival launch", "old company news", "undated company news"}
	for i, want := range wantTitles {
		if entries[i].Article.Title != want {
			t.Errorf("position %d: got %q, want %q", i, entries[i].Article.Title, want)
		}
		if entries[i].Index != i {
			t.Errorf("position %d: index %d not sequential", i, entries[i].Index)
		}
	}
	if entries[0].Tag != "[INDUSTRY - lithium]" {
		t.Errorf("got tag %q", entries[0].Tag)
	}
	if entries[1].Tag != "[COMPETITOR]" {
		t.Errorf("got tag %q", entries[1].Tag)
	}
}

func TestBuildPhase1UserContentQuietDay(t *testing.T) {
	now := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	content := buildPhase1UserContent("AAPL", nil, now)

	if !strings.Contains(content, "ARTICLE COUNT: 0") {
		t.Error("expected zero article count")
	}
	if !strings.Contains(content, "No articles were published") {
		t.Error("expected quiet-day line")
	}
	if !strings.Contains(content, "2026-08-28 (Friday)") {
		t.Errorf("expected date with weekday, got:\n%s", content)
	}
}

func TestBuildPhase1UserContentTimelineFormat(t *testing.T) {
	entries := []TimelineEntry{{
		Index: 0,
		Tag:   "[COMPANY]",
		Article: model.Article{
			Title: "Q3 beat", Domain: "reuters.com",
			PublishedAt: ts("2026-08-27 14:30"), AISummary: "Revenue up 12%.",
		},
	}}
	content := buildPhase1UserContent("AAPL", entries, time.Now())

	want := "[0] [COMPANY] Q3 beat [reuters.com] 2026-08-27 14:30: Revenue up 12%."
	if !strings.Contains(content, want) {
		t.Errorf("timeline line missing, got:\n%s", content)
	}
}

func validPhase1Raw() map[string]any {
	sections := map[string]any{}
	for _, name := range model.SectionNames {
		sections[name] = []any{}
	}
	sections[model.SectionMajorDevelopments] = []any{
		map[string]any{
			"bullet_id":       "md_1",
			"topic_label":     "Q3 results",
			"content":         "Revenue rose 12% year over year.",
			"source_articles": []any{float64(0), float64(2)},
			"filing_hints": map[string]any{
				"10-K": []any{}, "10-Q": []any{"Revenue"}, "Transcript": []any{},
			},
		},
	}
	return map[string]any{"sections": sections}
}

func TestValidatePhase1JSON(t *testing.T) {
	report, err := ValidatePhase1JSON(validPhase1Raw())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b := report.Sections[model.SectionMajorDevelopments][0]
	if b.BulletID != "md_1" || len(b.SourceArticles) != 2 {
		t.Errorf("bullet not carried over: %+v", b)
	}
	if len(b.FilingHints["10-Q"]) != 1 {
		t.Errorf("filing hints lost: %+v", b.FilingHints)
	}
}

func TestValidatePhase1JSONMissingSection(t *testing.T) {
	raw := validPhase1Raw()
	delete(raw["sections"].(map[string]any), model.SectionKeyVariables)

	if _, err := ValidatePhase1JSON(raw); err == nil {
		t.Fatal("expected error for missing section")
	}
}

func TestValidatePhase1JSONMissingBulletField(t *testing.T) {
	raw := validPhase1Raw()
	bullet := raw["sections"].(map[string]any)[model.SectionMajorDevelopments].([]any)[0].(map[string]any)
	delete(bullet, "topic_label")

	if _, err := ValidatePhase1JSON(raw); err == nil {
		t.Fatal("expected error for missing topic_label")
	}
}

func TestValidatePhase1JSONRepairsFilingHints(t *testing.T) {
	tests := []struct {
		name  string
		hints any
	}{
		{name: "missing entirely", hints: nil},
		{name: "not an object", hints: "10-K"},
		{name: "wrong keys", hints: map[string]any{"10-K": []any{}, "10-Q": []any{}, "S-1": []any{}}},
		{name: "non-array value", hints: map[string]any{"10-K": "x", "10-Q": []any{}, "Transcript": []any{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := validPhase1Raw()
			bullet := raw["sections"].(map[string]any)[model.SectionMajorDevelopments].([]any)[0].(map[string]any)
			if tt.hints == nil {
				delete(bullet, "filing_hints")
			} else {
				bullet["filing_hints"] = tt.hints
			}

			report, err := ValidatePhase1JSON(raw)
			if err != nil {
				t.Fatalf("filing_hints must repair, not reject: %v", err)
			}
			hints := report.Sections[model.SectionMajorDevelopments][0].FilingHints
			for _, ft := range model.FilingTypes {
				if got, ok := hints[ft]; !ok || len(got) != 0 {
					t.Errorf("expected empty default for %s, got %v", ft, got)
				}
			}
		})
	}
}

func TestValidatePhase1JSONSourceArticleErrors(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		wantErr string
	}{
		{
			name:    "negative index",
			value:   []any{float64(-1)},
			wantErr: "major_developments[0] source_articles[0] must be non-negative integer",
		},
		{
			name:    "fractional index",
			value:   []any{float64(0), float64(1.5)},
			wantErr: "major_developments[0] source_articles[1] must be non-negative integer",
		},
		{
			name:    "string index",
			value:   []any{"3"},
			wantErr: "major_developments[0] source_articles[0] must be non-negative integer",
		},
		{
			name:    "not an array",
			value:   "0,1",
			wantErr: "major_developments[0] source_articles must be an array",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := validPhase1Raw()
			bullet := raw["sections"].(map[string]any)[model.SectionMajorDevelopments].([]any)[0].(map[string]any)
			bullet["source_articles"] = tt.value

			_, err := ValidatePhase1JSON(raw)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if err.Error() != tt.wantErr {
				t.Errorf("got %q, want %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestUsedArticleIndices(t *testing.T) {
	report := &model.Report{Sections: map[string][]*model.Bullet{
		model.SectionMajorDevelopments: {
			{BulletID: "md_1", SourceArticles: []int{3, 0}},
		},
		model.SectionRiskFactors: {
			{BulletID: "rf_1", SourceArticles: []int{0, 5}},
		},
	}}

	got := UsedArticleIndices(report)
	want := []int{0, 3, 5}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %v, want %v", got, want)
			break
		}
	}
}
