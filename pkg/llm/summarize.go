package llm

import "fmt"

// Article content beyond this is truncated before the prompt is built.
const contentCharLimit = 50000

const companySummaryPrompt = `You are a financial analyst summarizing a news article about a specific company for professional investors.

Rules:
1. Lead with the single most market-relevant fact
2. Keep all figures: amounts, percentages, dates, guidance numbers
3. Name the executives and counterparties involved
4. Note whether the news is company-issued or third-party reporting
5. 2-4 sentences, neutral tone, no speculation

Output as JSON only, no other text:
{
  "summary": "the summary",
  "quality": 0.0-1.0 how substantive the article was (1.0 = dense primary reporting, 0.2 = thin rehash)
}`

const competitorSummaryPrompt = `You are a financial analyst summarizing a news article about a competitor of the company an investor follows.

Rules:
1. Focus on what the competitor's move implies for the competitive landscape
2. Keep figures: market share, pricing, capacity, guidance
3. 2-3 sentences, neutral tone

Output as JSON only, no other text:
{
  "summary": "the summary",
  "quality": 0.0-1.0 how substantive the article was
}`

const upstreamSummaryPrompt = `You are a financial analyst summarizing a news article about a supplier or input market upstream of the company an investor follows.

Rules:
1. Focus on supply availability, input pricing, and capacity changes
2. Keep figures and dates
3. 2-3 sentences, neutral tone

Output as JSON only, no other text:
{
  "summary": "the summary",
  "quality": 0.0-1.0 how substantive the article was
}`

const downstreamSummaryPrompt = `You are a financial analyst summarizing a news article about customers or end markets downstream of the company an investor follows.

Rules:
1. Focus on demand signals, order activity, and end-market pricing
2. Keep figures and dates
3. 2-3 sentences, neutral tone

Output as JSON only, no other text:
{
  "summary": "the summary",
  "quality": 0.0-1.0 how substantive the article was
}`

const industrySummaryPrompt = `You are a financial analyst summarizing an industry news article for investors tracking a sector keyword.

Rules:
1. Focus on the industry-level development, not individual stock moves
2. Keep figures: prices, volumes, regulatory dates
3. 2-3 sentences, neutral tone

Output as JSON only, no other text:
{
  "summary": "the summary",
  "quality": 0.0-1.0 how substantive the article was
}`

// ArticleSummaryInput is one article to summarize, with the category that
// selects its prompt.
type ArticleSummaryInput struct {
	Category string
	Title    string
	Content  string
	Keyword  string
}

type ArticleSummaryResult struct {
	Summary   string
	Quality   float64
	ModelUsed string
}

// ArticleSummarizer produces the ai_summary field the theme extractor
// consumes.
type ArticleSummarizer interface {
	SummarizeArticle(input ArticleSummaryInput) (*ArticleSummaryResult, error)
}

func summaryPromptFor(category string) string {
	switch category {
	case "competitor":
		return competitorSummaryPrompt
	case "upstream":
		return upstreamSummaryPrompt
	case "downstream":
		return downstreamSummaryPrompt
	case "industry":
		return industrySummaryPrompt
	default:
		return companySummaryPrompt
	}
}

func articleSummaryUserPrompt(input ArticleSummaryInput) string {
	content := input.Content
	if len(content) > contentCharLimit {
		content = content[:contentCharLimit]
	}
	if input.Keyword != "" {
		return fmt.Sprintf("Keyword: %s\nTitle: %s\nArticle: %s", input.Keyword, input.Title, content)
	}
	return fmt.Sprintf("Title: %s\nArticle: %s", input.Title, content)
}
