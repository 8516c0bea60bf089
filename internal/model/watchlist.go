package model

// WatchlistEntry is one tracked ticker and the search keywords that drive
// the non-company article categories for it.
type WatchlistEntry struct {
	ID                 int64
	Ticker             string
	CompanyName        string
	IndustryKeywords   []string
	CompetitorKeywords []string
	UpstreamKeywords   []string
	DownstreamKeywords []string
	Active             bool
}
