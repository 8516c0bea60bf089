package model

import "time"

const (
	StatusPending    = "pending"
	StatusSummarized = "summarized"
	StatusFailed     = "failed"
)

// Article categories, matching the feed the fetcher writes.
const (
	CategoryCompany    = "company"
	CategoryIndustry   = "industry"
	CategoryCompetitor = "competitor"
	CategoryUpstream   = "upstream"
	CategoryDownstream = "downstream"
)

// Categories in the order the timeline builder tags them.
var ArticleCategories = []string{
	CategoryCompany,
	CategoryIndustry,
	CategoryCompetitor,
	CategoryUpstream,
	CategoryDownstream,
}

// Article is a fetched news article for a ticker. PublishedAt is nil when
// the source supplied no timestamp; such articles sort last in the timeline.
type Article struct {
	ID            int64
	Ticker        string
	Category      string
	Title         string
	Detail        string
	URL           string
	Domain        string
	SearchKeyword string
	PublishedAt   *time.Time
	AISummary     string
	QualityScore  float64
	ModelUsed     string
	FetchedAt     time.Time
	Status        string
	ExternalID    string
}

// CategorizedArticles groups a ticker's articles by category for the
// theme-extraction timeline.
type CategorizedArticles struct {
	Company    []Article
	Industry   []Article
	Competitor []Article
	Upstream   []Article
	Downstream []Article
}

// All returns the category lists in tagging order.
func (c *CategorizedArticles) All() map[string][]Article {
	return map[string][]Article{
		CategoryCompany:    c.Company,
		CategoryIndustry:   c.Industry,
		CategoryCompetitor: c.Competitor,
		CategoryUpstream:   c.Upstream,
		CategoryDownstream: c.Downstream,
	}
}
