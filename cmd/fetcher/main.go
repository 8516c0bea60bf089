package main

import (
	"encoding/json"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"marketbrief/db"
	"marketbrief/internal/model"
	"marketbrief/internal/repository"
	"marketbrief/pkg/llm"
	"marketbrief/pkg/news"
)

const (
	keywordArticleLimit = 10
	maxSummaryRetries   = 3
	summaryBatchSize    = 200
)

func main() {

	godotenv.Load()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	err := db.Connect()
	if err != nil {
		log.Fatalf("error connecting to DB: %v", err)
	}
	defer db.Close()

	err = db.ConnectRedis()
	if err != nil {
		log.Fatalf("error connecting to Redis: %v", err)
	}
	defer db.CloseRedis()

	finnhubKey := os.Getenv("FINNHUB_API_KEY")
	if finnhubKey == "" {
		log.Fatal("FINNHUB_API_KEY is not set")
	}
	companyClient := news.NewFinnHubClient(finnhubKey)

	var keywordClient news.KeywordNewsClient
	if key := os.Getenv("MASSIVE_API_KEY"); key != "" {
		keywordClient = news.NewMassiveClient(key)
	} else {
		slog.Warn("MASSIVE_API_KEY not set, skipping keyword categories")
	}

	articleRepo := repository.NewArticleRepository(db.DB)
	watchlistRepo := repository.NewWatchlistRepository(db.DB)

	entries, err := watchlistRepo.GetActive()
	if err != nil {
		log.Fatalf("error loading watchlist: %v", err)
	}
	if len(entries) == 0 {
		slog.Info("watchlist is empty, nothing to fetch")
		return
	}

	to := time.Now()
	from := to.Add(-24 * time.Hour)

	for _, entry := range entries {
		fetchTicker(articleRepo, companyClient, keywordClient, entry, from, to)
	}

	summarizePending(articleRepo)

	for _, entry := range entries {
		payload, err := json.Marshal(model.ReportRequest{Ticker: entry.Ticker, ReportType: "daily"})
		if err != nil {
			slog.Error("error marshaling report request", "ticker", entry.Ticker, "error", err)
			continue
		}
		if err := db.PushToQueue(db.ReportQueueKey, string(payload)); err != nil {
			slog.Error("error enqueueing report request", "ticker", entry.Ticker, "error", err)
		}
	}
	slog.Info("report requests enqueued", "tickers", len(entries))
}

func fetchTicker(repo *repository.ArticleRepository, company news.CompanyNewsClient, keyword news.KeywordNewsClient, entry model.WatchlistEntry, from, to time.Time) {
	var saved, duplicated, errors int

	companyArticles, err := company.FetchCompanyNews(entry.Ticker, from, to)
	if err != nil {
		slog.Error("error fetching company news", "ticker", entry.Ticker, "error", err)
		errors++
	}
	for _, a := range companyArticles {
		saveFetched(repo, entry.Ticker, model.CategoryCompany, "", a, &saved, &duplicated, &errors)
	}

	if keyword != nil {
		keywordSets := map[string][]string{
			model.CategoryIndustry:   entry.IndustryKeywords,
			model.CategoryCompetitor: entry.CompetitorKeywords,
			model.CategoryUpstream:   entry.UpstreamKeywords,
			model.CategoryDownstream: entry.DownstreamKeywords,
		}
		for category, keywords := range keywordSets {
			for _, kw := range keywords {
				articles, err := keyword.FetchKeywordNews(kw, keywordArticleLimit)
				if err != nil {
					slog.Error("error fetching keyword news", "ticker", entry.Ticker, "keyword", kw, "error", err)
					errors++
					continue
				}
				for _, a := range articles {
					saveFetched(repo, entry.Ticker, category, kw, a, &saved, &duplicated, &errors)
				}
			}
		}
	}

	slog.Info("fetch complete", "ticker", entry.Ticker, "saved", saved, "duplicated", duplicated, "errors", errors)
}

func saveFetched(repo *repository.ArticleRepository, ticker, category, keyword string, a news.Article, saved, duplicated, errors *int) {
	var publishedAt *time.Time
	if !a.PublishedAt.IsZero() {
		t := a.PublishedAt
		publishedAt = &t
	}

	article := model.Article{
		Ticker:        ticker,
		Category:      category,
		Title:         a.Headline,
		Detail:        a.Detail,
		URL:           a.URL,
		Domain:        news.Domain(a.URL),
		SearchKeyword: keyword,
		PublishedAt:   publishedAt,
		ExternalID:    a.ExternalID,
	}

	success, err := repo.Save(&article)
	if err != nil {
		slog.Error("error saving article", "ticker", ticker, "url", a.URL, "error", err)
		*errors++
		return
	}

	if !success {
		*duplicated++
		return
	}

	*saved++
}

func summarizePending(repo *repository.ArticleRepository) {
	var summarizer llm.ArticleSummarizer
	openAIKey := os.Getenv("OPENAI_API_KEY")
	anthropicKey := os.Getenv("ANTHROPIC_API_KEY")

	switch {
	case openAIKey != "" && anthropicKey != "":
		summarizer = &llm.FallbackSummarizer{
			Primary:  llm.NewOpenAIClient(openAIKey),
			Fallback: llm.NewAnthropicClient(anthropicKey),
		}
	case openAIKey != "":
		summarizer = llm.NewOpenAIClient(openAIKey)
	case anthropicKey != "":
		summarizer = llm.NewAnthropicClient(anthropicKey)
	default:
		slog.Warn("no summarizer API key configured, leaving articles pending")
		return
	}

	pending, err := repo.GetPending(summaryBatchSize)
	if err != nil {
		slog.Error("error loading pending articles", "error", err)
		return
	}

	var summarized, failed int
	for _, article := range pending {
		errorCount, err := repo.GetErrorCount(article.ID)
		if err != nil {
			slog.Error("error getting error count", "article_id", article.ID, "error", err)
			continue
		}
		if errorCount >= maxSummaryRetries {
			slog.Warn("article exceeded max retries, marking as failed", "article_id", article.ID, "error_count", errorCount)
			repo.UpdateStatus(article.ID, model.StatusFailed)
			failed++
			continue
		}

		result, err := summarizer.SummarizeArticle(llm.ArticleSummaryInput{
			Category: article.Category,
			Title:    article.Title,
			Content:  article.Detail,
			Keyword:  article.SearchKeyword,
		})
		if err != nil {
			slog.Error("error summarizing article", "article_id", article.ID, "error", err)
			repo.SaveError(article.ID, err.Error(), "llm_error")
			failed++
			continue
		}

		if err := repo.SaveSummary(article.ID, result.Summary, result.Quality, result.ModelUsed); err != nil {
			slog.Error("error saving summary", "article_id", article.ID, "error", err)
			failed++
			continue
		}
		summarized++
	}

	slog.Info("summarization complete", "summarized", summarized, "failed", failed, "pending", len(pending))
}
