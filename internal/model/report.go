package model

import "time"

// Section names for the bullet sections of a report. Order matters for
// rendering and for building prompt context.
const (
	SectionMajorDevelopments    = "major_developments"
	SectionFinancialPerformance = "financial_performance"
	SectionRiskFactors          = "risk_factors"
	SectionWallStreetSentiment  = "wall_street_sentiment"
	SectionCompetitiveDynamics  = "competitive_industry_dynamics"
	SectionUpcomingCatalysts    = "upcoming_catalysts"
	SectionKeyVariables         = "key_variables"
)

// Paragraph section names, produced only by the synthesis phase.
const (
	SectionBottomLine       = "bottom_line"
	SectionUpsideScenario   = "upside_scenario"
	SectionDownsideScenario = "downside_scenario"
)

// SectionNames is the full fixed set of bullet sections.
var SectionNames = []string{
	SectionMajorDevelopments,
	SectionFinancialPerformance,
	SectionRiskFactors,
	SectionWallStreetSentiment,
	SectionCompetitiveDynamics,
	SectionUpcomingCatalysts,
	SectionKeyVariables,
}

// EnrichableSections receive filing-context enrichment and impact sorting.
// wall_street_sentiment and key_variables are excluded.
var EnrichableSections = []string{
	SectionMajorDevelopments,
	SectionFinancialPerformance,
	SectionRiskFactors,
	SectionCompetitiveDynamics,
	SectionUpcomingCatalysts,
}

// BulletSections are eligible for deduplication and paragraph synthesis.
// key_variables is excluded.
var BulletSections = []string{
	SectionMajorDevelopments,
	SectionFinancialPerformance,
	SectionRiskFactors,
	SectionWallStreetSentiment,
	SectionCompetitiveDynamics,
	SectionUpcomingCatalysts,
}

// Filter status values set by the known-information filter.
const (
	FilterIncluded    = "included"
	FilterFilteredOut = "filtered_out"
)

// Deduplication status values.
const (
	DedupUnique    = "unique"
	DedupPrimary   = "primary"
	DedupDuplicate = "duplicate"
)

// FilingTypes is the fixed key set of filing_hints.
var FilingTypes = []string{"10-K", "10-Q", "Transcript"}

// Bullet is the atomic unit of a report. bullet_id is assigned during theme
// extraction and is the key for every later merge. topic_label and content
// are never rewritten after extraction; later phases only annotate.
type Bullet struct {
	BulletID       string              `json:"bullet_id"`
	TopicLabel     string              `json:"topic_label"`
	Content        string              `json:"content"`
	SourceArticles []int               `json:"source_articles"`
	FilingHints    map[string][]string `json:"filing_hints,omitempty"`
	DateRange      string              `json:"date_range,omitempty"`

	// Enrichment fields, absent before the enrichment phase.
	Impact    string `json:"impact,omitempty"`
	Sentiment string `json:"sentiment,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Relevance string `json:"relevance,omitempty"`
	Context   string `json:"context,omitempty"`
	Entity    string `json:"entity,omitempty"`

	// Known-information filter fields. Filtering is soft: a filtered-out
	// bullet stays in the report for audit display. Exempt marks bullets
	// in sections the filter analyzes but never removes from.
	FilterStatus string `json:"filter_status,omitempty"`
	FilterReason string `json:"filter_reason,omitempty"`
	Exempt       bool   `json:"exempt,omitempty"`

	// Deduplication tag, defaulted to unique during the phase 3 merge.
	Deduplication *Deduplication `json:"deduplication,omitempty"`
}

// Deduplication describes a bullet's role in cross-bullet redundancy.
// A primary absorbs the source articles of the duplicates it subsumes.
type Deduplication struct {
	Status      string   `json:"status"`
	Absorbs     []string `json:"absorbs,omitempty"`
	AbsorbedBy  string   `json:"absorbed_by,omitempty"`
	SharedTheme string   `json:"shared_theme,omitempty"`
}

// Enrichment is the per-bullet metadata produced by the enrichment phase,
// keyed by bullet_id before being merged onto the bullets.
type Enrichment struct {
	Context   string `json:"context"`
	Impact    string `json:"impact"`
	Sentiment string `json:"sentiment"`
	Reason    string `json:"reason"`
	Relevance string `json:"relevance"`
	Entity    string `json:"entity,omitempty"`
}

// Paragraph is a synthesized narrative section (bottom line, upside,
// downside). Same shape as a bullet minus identity fields.
type Paragraph struct {
	Content        string `json:"content"`
	Context        string `json:"context,omitempty"`
	SourceArticles []int  `json:"source_articles"`
	DateRange      string `json:"date_range,omitempty"`
}

// Phase4 holds the three synthesized paragraphs.
type Phase4 struct {
	BottomLine       Paragraph `json:"phase4_bottom_line"`
	UpsideScenario   Paragraph `json:"phase4_upside_scenario"`
	DownsideScenario Paragraph `json:"phase4_downside_scenario"`
}

// Report is the merged bullet graph carried across phases, plus the
// synthesized paragraphs once phase 4 has run.
type Report struct {
	Sections map[string][]*Bullet `json:"sections"`
	Phase4   *Phase4              `json:"phase4,omitempty"`
}

// Clone returns a deep copy. Merge steps copy before annotating so earlier
// phase outputs stay intact for audit.
func (r *Report) Clone() *Report {
	if r == nil {
		return nil
	}
	out := &Report{Sections: make(map[string][]*Bullet, len(r.Sections))}
	for name, bullets := range r.Sections {
		copied := make([]*Bullet, len(bullets))
		for i, b := range bullets {
			copied[i] = b.Clone()
		}
		out.Sections[name] = copied
	}
	if r.Phase4 != nil {
		p4 := *r.Phase4
		p4.BottomLine.SourceArticles = append([]int(nil), r.Phase4.BottomLine.SourceArticles...)
		p4.UpsideScenario.SourceArticles = append([]int(nil), r.Phase4.UpsideScenario.SourceArticles...)
		p4.DownsideScenario.SourceArticles = append([]int(nil), r.Phase4.DownsideScenario.SourceArticles...)
		out.Phase4 = &p4
	}
	return out
}

// Clone returns a deep copy of the bullet.
func (b *Bullet) Clone() *Bullet {
	if b == nil {
		return nil
	}
	out := *b
	out.SourceArticles = append([]int(nil), b.SourceArticles...)
	if b.FilingHints != nil {
		out.FilingHints = make(map[string][]string, len(b.FilingHints))
		for k, v := range b.FilingHints {
			out.FilingHints[k] = append([]string(nil), v...)
		}
	}
	if b.Deduplication != nil {
		d := *b.Deduplication
		d.Absorbs = append([]string(nil), b.Deduplication.Absorbs...)
		out.Deduplication = &d
	}
	return &out
}

// DedupStatus returns the bullet's deduplication status, defaulting to
// unique when no tag is present.
func (b *Bullet) DedupStatus() string {
	if b.Deduplication == nil || b.Deduplication.Status == "" {
		return DedupUnique
	}
	return b.Deduplication.Status
}

// DefaultFilingHints returns the repaired empty filing_hints shape.
func DefaultFilingHints() map[string][]string {
	hints := make(map[string][]string, len(FilingTypes))
	for _, t := range FilingTypes {
		hints[t] = []string{}
	}
	return hints
}

// StoredReport is a persisted report row.
type StoredReport struct {
	ID         int64
	Ticker     string
	ReportType string
	Report     *Report
	ModelUsed  string
	CreatedAt  time.Time
}

// ReportRequest is the queue message between the API and the report worker.
type ReportRequest struct {
	Ticker     string `json:"ticker"`
	ReportType string `json:"report_type"`
}

// LLMUsage is a per-phase token accounting row.
type LLMUsage struct {
	ID           int64
	Ticker       string
	Phase        string
	Model        string
	InputTokens  int64
	OutputTokens int64
	CreatedAt    time.Time
}
