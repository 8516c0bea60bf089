package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"marketbrief/internal/model"
	"marketbrief/pkg/llm"
)

// scriptedGateway replays canned responses in call order.
type scriptedGateway struct {
	name      string
	responses []string
	calls     int
}

func (g *scriptedGateway) Generate(_ context.Context, _, _ string, _ llm.GenerateConfig) (string, *llm.Usage, error) {
	if g.calls >= len(g.responses) {
		return "", nil, errors.New("no scripted response left")
	}
	resp := g.responses[g.calls]
	g.calls++
	return resp, &llm.Usage{InputTokens: 100, OutputTokens: 50, Model: g.name}, nil
}

func (g *scriptedGateway) Name() string { return g.name }

type fakeFilingStore struct {
	transcript *model.Filing
	tenK       *model.Filing
	tenQ       *model.Filing
	eightKs    []model.EightK
	err        error

	eightKSince  time.Time
	eightKUntil  time.Time
	eightKCapped bool
}

func (s *fakeFilingStore) LatestFiling(_ string, filingType string) (*model.Filing, error) {
	if s.err != nil {
		return nil, s.err
	}
	switch filingType {
	case "Transcript":
		return s.transcript, nil
	case "10-K":
		return s.tenK, nil
	case "10-Q":
		return s.tenQ, nil
	}
	return nil, nil
}

func (s *fakeFilingStore) EightKFilings(_ string, since, until time.Time, capExhibits bool) ([]model.EightK, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.eightKSince = since
	s.eightKUntil = until
	s.eightKCapped = capExhibits
	return s.eightKs, nil
}

func newTestPipeline(gemini, claude llm.Gateway, filings FilingStore, now time.Time) *Pipeline {
	p := New(gemini, claude, filings, ReportDaily)
	p.loc = time.UTC
	p.now = func() time.Time { return now }
	return p
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func TestPipelineRunEndToEnd(t *testing.T) {
	now := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)

	phase1Sections := map[string]any{}
	for _, name := range model.SectionNames {
		phase1Sections[name] = []any{}
	}
	phase1Sections[model.SectionMajorDevelopments] = []any{
		map[string]any{
			"bullet_id": "md_1", "topic_label": "Plant expansion",
			"content":         "Company announced a new plant. Capacity doubles next year.",
			"source_articles": []any{0},
			"date_range":      "Aug 27",
		},
		map[string]any{
			"bullet_id": "md_2", "topic_label": "Old guidance",
			"content":         "Guidance repeated from the earnings call.",
			"source_articles": []any{1},
		},
	}
	phase1Resp := mustJSON(t, map[string]any{"sections": phase1Sections})

	filterResp := mustJSON(t, map[string]any{"analyses": []any{
		map[string]any{"bullet_id": "md_1", "sentences": []any{
			map[string]any{"sentence": "s1", "action": "KEEP"},
			map[string]any{"sentence": "s2", "action": "KEEP"},
		}},
		map[string]any{"bullet_id": "md_2", "sentences": []any{
			map[string]any{"sentence": "s1", "action": "REMOVE"},
		}},
	}})

	phase2Resp := mustJSON(t, map[string]any{"enrichments": map[string]any{
		"md_1": map[string]any{
			"context": "Transcript confirms the capex plan.", "impact": "high impact",
			"sentiment": "bullish", "reason": "capacity growth", "relevance": "core",
		},
	}})

	phase3Resp := mustJSON(t, map[string]any{"sections": map[string]any{
		model.SectionMajorDevelopments: []any{
			map[string]any{"bullet_id": "md_1", "deduplication": map[string]any{"status": "unique"}},
		},
	}})

	phase4Resp := mustJSON(t, map[string]any{
		"phase4_bottom_line": map[string]any{
			"content": "The expansion is the story this period.", "context": "", "source_articles": []any{float64(0)},
		},
		"phase4_upside_scenario": map[string]any{
			"content": "Capacity gains could lift revenue.", "source_articles": []any{},
		},
		"phase4_downside_scenario": map[string]any{
			"content": "Execution risk on the buildout.", "source_articles": []any{},
		},
	})

	gemini := &scriptedGateway{name: "gemini", responses: []string{phase1Resp, filterResp, phase2Resp}}
	claude := &scriptedGateway{name: "claude", responses: []string{phase3Resp, phase4Resp}}
	store := &fakeFilingStore{
		transcript: &model.Filing{
			FilingType: "Transcript", Period: "Q2 2026", Text: "We are expanding capacity.",
			FilingDate: time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC),
		},
	}
	p := newTestPipeline(gemini, claude, store, now)

	articles := &model.CategorizedArticles{Company: []model.Article{
		{Title: "Plant news", AISummary: "New plant announced.", PublishedAt: ts("2026-08-27 10:00")},
		{Title: "Guidance recap", AISummary: "Guidance unchanged.", PublishedAt: ts("2026-08-27 09:00")},
	}}

	result, err := p.Run(context.Background(), "TST", "Test Corp", articles)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if gemini.calls != 3 || claude.calls != 2 {
		t.Errorf("gateway calls = gemini %d, claude %d; want 3 and 2", gemini.calls, claude.calls)
	}

	md := result.Report.Sections[model.SectionMajorDevelopments]
	if len(md) != 2 {
		t.Fatalf("expected both bullets retained, got %d", len(md))
	}
	byID := map[string]*model.Bullet{md[0].BulletID: md[0], md[1].BulletID: md[1]}

	if byID["md_1"].FilterStatus != model.FilterIncluded {
		t.Error("md_1 should survive the filter")
	}
	if byID["md_2"].FilterStatus != model.FilterFilteredOut {
		t.Error("md_2 should be soft-filtered as stale")
	}
	if byID["md_1"].Context != "Transcript confirms the capex plan." || byID["md_1"].Impact != "high impact" {
		t.Errorf("enrichment not merged: %+v", byID["md_1"])
	}
	if byID["md_2"].DedupStatus() != model.DedupUnique {
		t.Error("bullet absent from dedup response must default to unique")
	}

	if result.Report.Phase4 == nil {
		t.Fatal("phase4 missing")
	}
	if result.Report.Phase4.BottomLine.Content != "The expansion is the story this period." {
		t.Errorf("bottom line wrong: %q", result.Report.Phase4.BottomLine.Content)
	}
	// Only md_1 survives and carries "Aug 27"; all three paragraphs share it.
	for _, para := range []model.Paragraph{
		result.Report.Phase4.BottomLine,
		result.Report.Phase4.UpsideScenario,
		result.Report.Phase4.DownsideScenario,
	} {
		if para.DateRange != "Aug 27" {
			t.Errorf("date_range = %q, want %q", para.DateRange, "Aug 27")
		}
	}

	if len(result.Usage) != 5 {
		t.Errorf("expected 5 usage rows, got %d", len(result.Usage))
	}
}

func TestPipelineRunAbortsWhenExtractionFails(t *testing.T) {
	now := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	gemini := &scriptedGateway{name: "gemini"}
	claude := &scriptedGateway{name: "claude"}
	p := newTestPipeline(gemini, claude, &fakeFilingStore{}, now)

	_, err := p.Run(context.Background(), "TST", "", &model.CategorizedArticles{})
	if err == nil {
		t.Fatal("expected error when extraction fails on both providers")
	}
}
