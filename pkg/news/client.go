package news

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"strings"
	"time"
)

type Article struct {
	ExternalID  string
	Headline    string
	Detail      string
	URL         string
	Source      string
	PublishedAt time.Time
	Publisher   string
}

// CompanyNewsClient fetches news about one ticker directly.
type CompanyNewsClient interface {
	FetchCompanyNews(ticker string, from, to time.Time) ([]Article, error)
	Name() string
}

// KeywordNewsClient fetches news by search keyword, used for the industry,
// competitor, upstream and downstream categories where no ticker feed
// exists.
type KeywordNewsClient interface {
	FetchKeywordNews(keyword string, limit int) ([]Article, error)
	Name() string
}

// Domain extracts the bare hostname of an article URL for display,
// "unknown" when the URL does not parse.
func Domain(articleURL string) string {
	parsed, err := url.Parse(articleURL)
	if err != nil || parsed.Host == "" {
		return "unknown"
	}
	return strings.TrimPrefix(parsed.Host, "www.")
}

func generateExternalID(url string) string {
	sum := sha256.Sum256([]byte(url))
	return fmt.Sprintf("%x", sum)[:16]
}
